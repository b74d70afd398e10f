package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nguyentranbao-ct/crm-console/internal/console"
	"github.com/nguyentranbao-ct/crm-console/internal/models"
	pkgmdw "github.com/nguyentranbao-ct/crm-console/internal/server/middleware"
)

// consoleController exposes the commands of the caller's console. Every
// handler runs behind resolveConsole.
type consoleController struct{}

func newConsoleController() *consoleController {
	return &consoleController{}
}

type viewRequest struct {
	View string `json:"view" validate:"required"`
}

type activeChatRequest struct {
	// empty clears the selection
	ChatID models.ObjectID `json:"chat_id"`
}

type themeRequest struct {
	Theme console.Theme `json:"theme" validate:"required"`
}

type whatsAppModeRequest struct {
	Mode console.WhatsAppMode `json:"mode" validate:"required"`
}

type switchOperatorRequest struct {
	OperatorID models.ObjectID `json:"operator_id" validate:"required,objectid"`
}

type chatRequest struct {
	ChatID models.ObjectID `param:"chat_id" validate:"required"`
}

type sendMessageRequest struct {
	ChatID models.ObjectID    `param:"chat_id" validate:"required"`
	Text   string             `json:"text" validate:"required"`
	Type   models.MessageType `json:"type" validate:"omitempty,oneof=text internal"`
}

type contactChatRequest struct {
	ContactID models.ObjectID `param:"contact_id" validate:"required,objectid"`
}

type sendEmailRequest struct {
	ContactID models.ObjectID `json:"contact_id" validate:"required,objectid"`
	Subject   string          `json:"subject" validate:"required"`
	Body      string          `json:"body" validate:"required"`
}

func (cc *consoleController) Snapshot(c echo.Context, _ emptyRequest) (console.Snapshot, error) {
	return consoleFrom(c).Snapshot(), nil
}

func (cc *consoleController) SetView(c echo.Context, req viewRequest) (console.Snapshot, error) {
	cons := consoleFrom(c)
	view, err := console.ParseView(req.View)
	if err != nil {
		return console.Snapshot{}, err
	}
	if err := cons.SetActiveView(view); err != nil {
		return console.Snapshot{}, err
	}
	return cons.Snapshot(), nil
}

func (cc *consoleController) SetActiveChat(c echo.Context, req activeChatRequest) (console.Snapshot, error) {
	cons := consoleFrom(c)
	if err := cons.SetActiveChat(req.ChatID); err != nil {
		return console.Snapshot{}, err
	}
	return cons.Snapshot(), nil
}

func (cc *consoleController) SetTheme(c echo.Context, req themeRequest) (console.Snapshot, error) {
	cons := consoleFrom(c)
	if err := cons.SetTheme(req.Theme); err != nil {
		return console.Snapshot{}, err
	}
	return cons.Snapshot(), nil
}

func (cc *consoleController) SetWhatsAppMode(c echo.Context, req whatsAppModeRequest) (console.Snapshot, error) {
	cons := consoleFrom(c)
	if err := cons.SetWhatsAppMode(req.Mode); err != nil {
		return console.Snapshot{}, err
	}
	return cons.Snapshot(), nil
}

func (cc *consoleController) SwitchOperator(c echo.Context, req switchOperatorRequest) (console.Snapshot, error) {
	cons := consoleFrom(c)
	if _, err := cons.SwitchOperator(req.OperatorID); err != nil {
		return console.Snapshot{}, err
	}
	return cons.Snapshot(), nil
}

func (cc *consoleController) ListChats(c echo.Context, _ emptyRequest) ([]*models.Chat, error) {
	return consoleFrom(c).VisibleChats(), nil
}

func (cc *consoleController) GetChat(c echo.Context, req chatRequest) (*models.Chat, error) {
	return consoleFrom(c).Chat(req.ChatID)
}

func (cc *consoleController) SendMessage(c echo.Context, req sendMessageRequest) (*pkgmdw.Response, error) {
	typ := req.Type
	if typ == "" {
		typ = models.MessageTypeText
	}
	msg, err := consoleFrom(c).SendMessage(c.Request().Context(), req.ChatID, req.Text, typ)
	if err != nil {
		return nil, err
	}
	return created(msg), nil
}

func (cc *consoleController) TakeOver(c echo.Context, req chatRequest) (*models.Chat, error) {
	return consoleFrom(c).TakeOverChat(c.Request().Context(), req.ChatID)
}

func (cc *consoleController) NavigateToContact(c echo.Context, req contactChatRequest) (*models.Chat, error) {
	return consoleFrom(c).NavigateToContact(c.Request().Context(), req.ContactID)
}

func (cc *consoleController) SendEmail(c echo.Context, req sendEmailRequest) (*pkgmdw.Response, error) {
	err := consoleFrom(c).SendEmail(c.Request().Context(), req.ContactID, req.Subject, req.Body)
	if err != nil {
		return nil, err
	}
	return accepted(), nil
}

func created(data any) *pkgmdw.Response {
	return &pkgmdw.Response{
		Status:  http.StatusCreated,
		Success: true,
		Data:    data,
	}
}
