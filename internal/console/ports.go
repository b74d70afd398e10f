package console

import (
	"context"
	"time"

	"github.com/nguyentranbao-ct/crm-console/internal/models"
	"go.uber.org/zap"
)

// Store is the remote workspace store the console mirrors.
type Store interface {
	ListOperators(ctx context.Context) ([]*models.Operator, error)
	ListContacts(ctx context.Context) ([]*models.Contact, error)
	// ListChats returns chats with their messages nested in descending timestamp order.
	ListChats(ctx context.Context) ([]*models.Chat, error)
	ListQuickReplies(ctx context.Context) ([]*models.QuickReply, error)
	ListKnowledgeBase(ctx context.Context) ([]*models.KnowledgeBaseItem, error)

	CreateOperator(ctx context.Context, op *models.Operator, password string) (*models.Operator, error)
	UpdateOperator(ctx context.Context, op *models.Operator) (*models.Operator, error)
	DeleteOperator(ctx context.Context, id models.ObjectID) error

	CreateContact(ctx context.Context, contact *models.Contact) (*models.Contact, error)
	UpdateContact(ctx context.Context, contact *models.Contact) (*models.Contact, error)
	// DeleteContact also removes the contact's chats and their messages.
	DeleteContact(ctx context.Context, id models.ObjectID) error

	CreateChat(ctx context.Context, chat *models.Chat) (*models.Chat, error)
	UpdateChatHandler(ctx context.Context, chatID models.ObjectID, handledBy models.HandledBy) error
	// InsertMessage persists the message and publishes it on the realtime feed.
	InsertMessage(ctx context.Context, msg *models.Message) (*models.Message, error)

	CreateQuickReply(ctx context.Context, qr *models.QuickReply) (*models.QuickReply, error)
	UpdateQuickReply(ctx context.Context, qr *models.QuickReply) (*models.QuickReply, error)
	DeleteQuickReply(ctx context.Context, id models.ObjectID) error

	CreateKnowledgeBaseItem(ctx context.Context, item *models.KnowledgeBaseItem) (*models.KnowledgeBaseItem, error)
	UpdateKnowledgeBaseItem(ctx context.Context, item *models.KnowledgeBaseItem) (*models.KnowledgeBaseItem, error)
	DeleteKnowledgeBaseItem(ctx context.Context, id models.ObjectID) error
}

type Authenticator interface {
	SignIn(ctx context.Context, login, password string) (*models.Operator, error)
	SignUp(ctx context.Context, req models.SignUpRequest) (*models.Operator, error)
}

type Mailer interface {
	Send(ctx context.Context, email *models.Email) error
}

type Options struct {
	// RequestTimeout bounds every remote call. Zero means no bound.
	RequestTimeout time.Duration
	// Location renders chat display timestamps.
	Location *time.Location
	Now      func() time.Time
}

type Deps struct {
	Store   Store
	Auth    Authenticator
	Mailer  Mailer
	Logger  *zap.SugaredLogger
	Options Options
}
