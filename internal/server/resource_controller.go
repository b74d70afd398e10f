package server

import (
	"github.com/labstack/echo/v4"

	"github.com/nguyentranbao-ct/crm-console/internal/models"
	pkgmdw "github.com/nguyentranbao-ct/crm-console/internal/server/middleware"
)

type contactBody struct {
	Name           string               `json:"name" validate:"required"`
	Email          string               `json:"email"`
	Phone          string               `json:"phone"`
	AvatarURL      string               `json:"avatar_url"`
	Tags           []string             `json:"tags"`
	PipelineStage  models.PipelineStage `json:"pipeline_stage"`
	OwnerID        models.ObjectID      `json:"owner_id" validate:"omitempty,objectid"`
	Value          float64              `json:"value"`
	Temperature    models.Temperature   `json:"temperature"`
	NextActionDate string               `json:"next_action_date"`
	LeadSource     string               `json:"lead_source"`
}

func (b contactBody) contact(id models.ObjectID) *models.Contact {
	return &models.Contact{
		ID:             id,
		Name:           b.Name,
		Email:          b.Email,
		Phone:          b.Phone,
		AvatarURL:      b.AvatarURL,
		Tags:           b.Tags,
		PipelineStage:  b.PipelineStage,
		OwnerID:        b.OwnerID,
		Value:          b.Value,
		Temperature:    b.Temperature,
		NextActionDate: b.NextActionDate,
		LeadSource:     b.LeadSource,
	}
}

type createContactRequest struct {
	contactBody
}

type updateContactRequest struct {
	ContactID models.ObjectID `param:"contact_id" validate:"required,objectid"`
	contactBody
}

type contactIDRequest struct {
	ContactID models.ObjectID `param:"contact_id" validate:"required,objectid"`
}

type operatorBody struct {
	Name      string      `json:"name" validate:"required"`
	Login     string      `json:"login" validate:"required,email"`
	Role      models.Role `json:"role" validate:"omitempty,oneof=manager agent"`
	AvatarURL string      `json:"avatar_url"`
}

func (b operatorBody) operator(id models.ObjectID) *models.Operator {
	return &models.Operator{
		ID:        id,
		Name:      b.Name,
		Login:     b.Login,
		Role:      b.Role,
		AvatarURL: b.AvatarURL,
	}
}

type createOperatorRequest struct {
	operatorBody
	Password string `json:"password" validate:"required,min=6"`
}

type updateOperatorRequest struct {
	OperatorID models.ObjectID `param:"operator_id" validate:"required,objectid"`
	operatorBody
}

type operatorIDRequest struct {
	OperatorID models.ObjectID `param:"operator_id" validate:"required,objectid"`
}

type quickReplyRequest struct {
	ID       models.ObjectID `param:"id" validate:"omitempty,objectid"`
	Shortcut string          `json:"shortcut" validate:"required"`
	Text     string          `json:"text" validate:"required"`
}

type knowledgeBaseRequest struct {
	ID      models.ObjectID `param:"id" validate:"omitempty,objectid"`
	Title   string          `json:"title" validate:"required"`
	Content string          `json:"content" validate:"required"`
	Tags    []string        `json:"tags"`
}

type catalogIDRequest struct {
	ID models.ObjectID `param:"id" validate:"required,objectid"`
}

type channelsRequest struct {
	Channels []*models.Channel `json:"channels" validate:"dive,required"`
}

func (cc *consoleController) ListContacts(c echo.Context, _ emptyRequest) ([]*models.Contact, error) {
	return consoleFrom(c).VisibleContacts(), nil
}

func (cc *consoleController) CreateContact(c echo.Context, req createContactRequest) (*pkgmdw.Response, error) {
	contact, err := consoleFrom(c).AddContact(c.Request().Context(), req.contact(""))
	if err != nil {
		return nil, err
	}
	return created(contact), nil
}

func (cc *consoleController) UpdateContact(c echo.Context, req updateContactRequest) (*models.Contact, error) {
	return consoleFrom(c).UpdateContact(c.Request().Context(), req.contact(req.ContactID))
}

func (cc *consoleController) DeleteContact(c echo.Context, req contactIDRequest) error {
	return consoleFrom(c).DeleteContact(c.Request().Context(), req.ContactID)
}

func (cc *consoleController) ListOperators(c echo.Context, _ emptyRequest) ([]*models.Operator, error) {
	return consoleFrom(c).Operators()
}

func (cc *consoleController) CreateOperator(c echo.Context, req createOperatorRequest) (*pkgmdw.Response, error) {
	op, err := consoleFrom(c).AddOperator(c.Request().Context(), req.operator(""), req.Password)
	if err != nil {
		return nil, err
	}
	return created(op), nil
}

func (cc *consoleController) UpdateOperator(c echo.Context, req updateOperatorRequest) (*models.Operator, error) {
	return consoleFrom(c).UpdateOperator(c.Request().Context(), req.operator(req.OperatorID))
}

func (cc *consoleController) DeleteOperator(c echo.Context, req operatorIDRequest) error {
	return consoleFrom(c).DeleteOperator(c.Request().Context(), req.OperatorID)
}

func (cc *consoleController) ListQuickReplies(c echo.Context, _ emptyRequest) ([]*models.QuickReply, error) {
	return consoleFrom(c).QuickReplies()
}

func (cc *consoleController) CreateQuickReply(c echo.Context, req quickReplyRequest) (*pkgmdw.Response, error) {
	qr, err := consoleFrom(c).AddQuickReply(c.Request().Context(), &models.QuickReply{
		Shortcut: req.Shortcut,
		Text:     req.Text,
	})
	if err != nil {
		return nil, err
	}
	return created(qr), nil
}

func (cc *consoleController) UpdateQuickReply(c echo.Context, req quickReplyRequest) (*models.QuickReply, error) {
	return consoleFrom(c).UpdateQuickReply(c.Request().Context(), &models.QuickReply{
		ID:       req.ID,
		Shortcut: req.Shortcut,
		Text:     req.Text,
	})
}

func (cc *consoleController) DeleteQuickReply(c echo.Context, req catalogIDRequest) error {
	return consoleFrom(c).DeleteQuickReply(c.Request().Context(), req.ID)
}

func (cc *consoleController) ListKnowledgeBase(c echo.Context, _ emptyRequest) ([]*models.KnowledgeBaseItem, error) {
	return consoleFrom(c).KnowledgeBase()
}

func (cc *consoleController) CreateKnowledgeBaseItem(c echo.Context, req knowledgeBaseRequest) (*pkgmdw.Response, error) {
	item, err := consoleFrom(c).AddKnowledgeBaseItem(c.Request().Context(), &models.KnowledgeBaseItem{
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
	})
	if err != nil {
		return nil, err
	}
	return created(item), nil
}

func (cc *consoleController) UpdateKnowledgeBaseItem(c echo.Context, req knowledgeBaseRequest) (*models.KnowledgeBaseItem, error) {
	return consoleFrom(c).UpdateKnowledgeBaseItem(c.Request().Context(), &models.KnowledgeBaseItem{
		ID:      req.ID,
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
	})
}

func (cc *consoleController) DeleteKnowledgeBaseItem(c echo.Context, req catalogIDRequest) error {
	return consoleFrom(c).DeleteKnowledgeBaseItem(c.Request().Context(), req.ID)
}

func (cc *consoleController) ListChannels(c echo.Context, _ emptyRequest) ([]*models.Channel, error) {
	return consoleFrom(c).Channels()
}

func (cc *consoleController) SetChannels(c echo.Context, req channelsRequest) ([]*models.Channel, error) {
	cons := consoleFrom(c)
	if err := cons.SetChannels(req.Channels); err != nil {
		return nil, err
	}
	return cons.Channels()
}
