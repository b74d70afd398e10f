package usecase

import (
	"context"
	"time"

	"github.com/nguyentranbao-ct/crm-console/internal/config"
	"github.com/nguyentranbao-ct/crm-console/internal/kafka"
	"github.com/nguyentranbao-ct/crm-console/internal/logger"
	"github.com/nguyentranbao-ct/crm-console/internal/models"
	"github.com/nguyentranbao-ct/crm-console/internal/repo/mongodb"
	"go.uber.org/zap"
)

// summaryLayout matches the clock format consoles render for chat rows.
const summaryLayout = "15:04"

// OperatorAccounts owns credential handling for operator records.
type OperatorAccounts interface {
	CreateOperator(ctx context.Context, op *models.Operator, password string) (*models.Operator, error)
	RevokeOperator(ctx context.Context, id models.ObjectID) error
}

// WorkspaceStore is the remote store consoles mirror: repositories for
// reads and writes, plus the realtime feed for inserted messages.
type WorkspaceStore struct {
	operators mongodb.OperatorRepository
	contacts  mongodb.ContactRepository
	chats     mongodb.ChatRepository
	messages  mongodb.MessageRepository
	replies   mongodb.QuickReplyRepository
	kb        mongodb.KnowledgeBaseRepository
	accounts  OperatorAccounts
	publisher kafka.Publisher
	loc       *time.Location
	log       *zap.SugaredLogger
}

type WorkspaceRepos struct {
	Operators     mongodb.OperatorRepository
	Contacts      mongodb.ContactRepository
	Chats         mongodb.ChatRepository
	Messages      mongodb.MessageRepository
	QuickReplies  mongodb.QuickReplyRepository
	KnowledgeBase mongodb.KnowledgeBaseRepository
}

func NewWorkspaceStore(cfg *config.Config, repos WorkspaceRepos, accounts OperatorAccounts, publisher kafka.Publisher) *WorkspaceStore {
	return &WorkspaceStore{
		operators: repos.Operators,
		contacts:  repos.Contacts,
		chats:     repos.Chats,
		messages:  repos.Messages,
		replies:   repos.QuickReplies,
		kb:        repos.KnowledgeBase,
		accounts:  accounts,
		publisher: publisher,
		loc:       cfg.Console.Location(),
		log:       logger.Named("workspace"),
	}
}

func (s *WorkspaceStore) ListOperators(ctx context.Context) ([]*models.Operator, error) {
	return s.operators.List(ctx)
}

func (s *WorkspaceStore) ListContacts(ctx context.Context) ([]*models.Contact, error) {
	return s.contacts.List(ctx)
}

func (s *WorkspaceStore) ListChats(ctx context.Context) ([]*models.Chat, error) {
	return s.chats.ListWithMessages(ctx)
}

func (s *WorkspaceStore) ListQuickReplies(ctx context.Context) ([]*models.QuickReply, error) {
	return s.replies.List(ctx)
}

func (s *WorkspaceStore) ListKnowledgeBase(ctx context.Context) ([]*models.KnowledgeBaseItem, error) {
	return s.kb.List(ctx)
}

func (s *WorkspaceStore) CreateOperator(ctx context.Context, op *models.Operator, password string) (*models.Operator, error) {
	return s.accounts.CreateOperator(ctx, op, password)
}

func (s *WorkspaceStore) UpdateOperator(ctx context.Context, op *models.Operator) (*models.Operator, error) {
	return s.operators.Update(ctx, op)
}

// DeleteOperator removes the operator and revokes their session tokens.
func (s *WorkspaceStore) DeleteOperator(ctx context.Context, id models.ObjectID) error {
	if err := s.operators.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.accounts.RevokeOperator(ctx, id); err != nil {
		s.log.Warnw("Failed to revoke tokens of deleted operator", "operator_id", id, "error", err)
	}
	return nil
}

func (s *WorkspaceStore) CreateContact(ctx context.Context, contact *models.Contact) (*models.Contact, error) {
	return s.contacts.Create(ctx, contact)
}

func (s *WorkspaceStore) UpdateContact(ctx context.Context, contact *models.Contact) (*models.Contact, error) {
	return s.contacts.Update(ctx, contact)
}

// DeleteContact removes the contact's messages, then its chats, then the
// contact itself, so a failed call can be retried to completion.
func (s *WorkspaceStore) DeleteContact(ctx context.Context, id models.ObjectID) error {
	chatIDs, err := s.chats.ListIDsByContact(ctx, id)
	if err != nil {
		return err
	}
	removed, err := s.messages.DeleteByChats(ctx, chatIDs)
	if err != nil {
		return err
	}
	if _, err := s.chats.DeleteByContact(ctx, id); err != nil {
		return err
	}
	if err := s.contacts.Delete(ctx, id); err != nil {
		return err
	}

	s.log.Infow("Contact deleted",
		"contact_id", id,
		"chats", len(chatIDs),
		"messages", removed)
	return nil
}

func (s *WorkspaceStore) CreateChat(ctx context.Context, chat *models.Chat) (*models.Chat, error) {
	return s.chats.Create(ctx, chat)
}

func (s *WorkspaceStore) UpdateChatHandler(ctx context.Context, chatID models.ObjectID, handledBy models.HandledBy) error {
	return s.chats.UpdateHandler(ctx, chatID, handledBy)
}

// InsertMessage persists msg, refreshes the chat summary and publishes the
// insert. A publish failure is logged; the message is stored either way and
// shows up on the next load.
func (s *WorkspaceStore) InsertMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	if err := msg.Sender.Validate(); err != nil {
		return nil, models.InvalidArgument(err.Error())
	}
	in := *msg
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now().UTC()
	}

	saved, err := s.messages.Create(ctx, &in)
	if err != nil {
		return nil, err
	}

	ts := saved.Timestamp.In(s.loc).Format(summaryLayout)
	if err := s.chats.UpdateSummary(ctx, saved.ChatID, saved.Text, ts); err != nil {
		s.log.Warnw("Failed to update chat summary", "chat_id", saved.ChatID, "error", err)
	}

	if err := s.publisher.PublishMessageInserted(ctx, saved); err != nil {
		s.log.Errorw("Failed to publish inserted message",
			"chat_id", saved.ChatID,
			"message_id", saved.ID,
			"error", err)
	}
	return saved, nil
}

func (s *WorkspaceStore) CreateQuickReply(ctx context.Context, qr *models.QuickReply) (*models.QuickReply, error) {
	return s.replies.Create(ctx, qr)
}

func (s *WorkspaceStore) UpdateQuickReply(ctx context.Context, qr *models.QuickReply) (*models.QuickReply, error) {
	return s.replies.Update(ctx, qr)
}

func (s *WorkspaceStore) DeleteQuickReply(ctx context.Context, id models.ObjectID) error {
	return s.replies.Delete(ctx, id)
}

func (s *WorkspaceStore) CreateKnowledgeBaseItem(ctx context.Context, item *models.KnowledgeBaseItem) (*models.KnowledgeBaseItem, error) {
	return s.kb.Create(ctx, item)
}

func (s *WorkspaceStore) UpdateKnowledgeBaseItem(ctx context.Context, item *models.KnowledgeBaseItem) (*models.KnowledgeBaseItem, error) {
	return s.kb.Update(ctx, item)
}

func (s *WorkspaceStore) DeleteKnowledgeBaseItem(ctx context.Context, id models.ObjectID) error {
	return s.kb.Delete(ctx, id)
}
