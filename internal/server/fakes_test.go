package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nguyentranbao-ct/crm-console/internal/models"
)

const (
	managerID = models.ObjectID("64b7f0c2a1b2c3d4e5f60001")
	agentID   = models.ObjectID("64b7f0c2a1b2c3d4e5f60002")
	contactID = models.ObjectID("64b7f0c2a1b2c3d4e5f60101")
	chatID    = models.ObjectID("64b7f0c2a1b2c3d4e5f60201")
)

// memoryStore is a minimal in-memory workspace.
type memoryStore struct {
	mu        sync.Mutex
	operators []*models.Operator
	contacts  []*models.Contact
	chats     []*models.Chat
	deleted   []models.ObjectID
	seq       int
}

func newMemoryStore() *memoryStore {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return &memoryStore{
		operators: []*models.Operator{
			{ID: managerID, Name: "Ana Souza", Login: "manager@crm.local", Role: models.RoleManager},
			{ID: agentID, Name: "Bruno Lima", Login: "agent@crm.local", Role: models.RoleAgent},
		},
		contacts: []*models.Contact{
			{ID: contactID, Name: "Maria Silva", Email: "maria@example.com", PipelineStage: models.StageLead, OwnerID: agentID, Tags: []string{}},
		},
		chats: []*models.Chat{
			{
				ID: chatID, ContactID: contactID, ContactName: "Maria Silva", HandledBy: models.Bot,
				Messages: []*models.Message{{
					ID: "64b7f0c2a1b2c3d4e5f60301", ChatID: chatID, Text: "Hi",
					Sender: models.ContactSender(contactID), Type: models.MessageTypeText,
					Status: models.StatusDelivered, Timestamp: now,
				}},
			},
		},
	}
}

func (s *memoryStore) nextID() models.ObjectID {
	s.seq++
	return models.ObjectID(fmt.Sprintf("64b7f0c2a1b2c3d4e5f6%04d", 9000+s.seq))
}

func (s *memoryStore) ListOperators(context.Context) ([]*models.Operator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Operator, len(s.operators))
	for i, op := range s.operators {
		out[i] = op.Clone()
	}
	return out, nil
}

func (s *memoryStore) ListContacts(context.Context) ([]*models.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Contact, len(s.contacts))
	for i, ct := range s.contacts {
		out[i] = ct.Clone()
	}
	return out, nil
}

func (s *memoryStore) ListChats(context.Context) ([]*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Chat, len(s.chats))
	for i, ch := range s.chats {
		out[i] = ch.Clone()
	}
	return out, nil
}

func (s *memoryStore) ListQuickReplies(context.Context) ([]*models.QuickReply, error) {
	return []*models.QuickReply{}, nil
}

func (s *memoryStore) ListKnowledgeBase(context.Context) ([]*models.KnowledgeBaseItem, error) {
	return []*models.KnowledgeBaseItem{}, nil
}

func (s *memoryStore) CreateOperator(_ context.Context, op *models.Operator, _ string) (*models.Operator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := op.Clone()
	saved.ID = s.nextID()
	s.operators = append(s.operators, saved)
	return saved.Clone(), nil
}

func (s *memoryStore) UpdateOperator(_ context.Context, op *models.Operator) (*models.Operator, error) {
	return op.Clone(), nil
}

func (s *memoryStore) DeleteOperator(_ context.Context, id models.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *memoryStore) CreateContact(_ context.Context, ct *models.Contact) (*models.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := ct.Clone()
	saved.ID = s.nextID()
	s.contacts = append(s.contacts, saved)
	return saved.Clone(), nil
}

func (s *memoryStore) UpdateContact(_ context.Context, ct *models.Contact) (*models.Contact, error) {
	return ct.Clone(), nil
}

func (s *memoryStore) DeleteContact(_ context.Context, id models.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *memoryStore) CreateChat(_ context.Context, ch *models.Chat) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := ch.Clone()
	saved.ID = s.nextID()
	return saved, nil
}

func (s *memoryStore) UpdateChatHandler(context.Context, models.ObjectID, models.HandledBy) error {
	return nil
}

func (s *memoryStore) InsertMessage(_ context.Context, msg *models.Message) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := *msg
	saved.ID = s.nextID()
	return &saved, nil
}

func (s *memoryStore) CreateQuickReply(_ context.Context, qr *models.QuickReply) (*models.QuickReply, error) {
	saved := *qr
	saved.ID = s.nextID()
	return &saved, nil
}

func (s *memoryStore) UpdateQuickReply(_ context.Context, qr *models.QuickReply) (*models.QuickReply, error) {
	saved := *qr
	return &saved, nil
}

func (s *memoryStore) DeleteQuickReply(context.Context, models.ObjectID) error {
	return nil
}

func (s *memoryStore) CreateKnowledgeBaseItem(_ context.Context, item *models.KnowledgeBaseItem) (*models.KnowledgeBaseItem, error) {
	saved := *item
	saved.ID = s.nextID()
	return &saved, nil
}

func (s *memoryStore) UpdateKnowledgeBaseItem(_ context.Context, item *models.KnowledgeBaseItem) (*models.KnowledgeBaseItem, error) {
	saved := *item
	return &saved, nil
}

func (s *memoryStore) DeleteKnowledgeBaseItem(context.Context, models.ObjectID) error {
	return nil
}

// memoryAuth issues opaque tokens and accepts "changeme123" for every
// operator of the store.
type memoryAuth struct {
	store *memoryStore

	mu      sync.Mutex
	tokens  map[string]*models.SessionClaims
	signUps int
	resets  []string
}

func newMemoryAuth(store *memoryStore) *memoryAuth {
	return &memoryAuth{
		store:  store,
		tokens: make(map[string]*models.SessionClaims),
	}
}

func (a *memoryAuth) find(pred func(*models.Operator) bool) *models.Operator {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	for _, op := range a.store.operators {
		if pred(op) {
			return op.Clone()
		}
	}
	return nil
}

func (a *memoryAuth) SignIn(_ context.Context, login, password string) (*models.Operator, error) {
	op := a.find(func(op *models.Operator) bool { return op.Login == login })
	if op == nil || password != "changeme123" {
		return nil, models.ErrInvalidCredentials
	}
	return op, nil
}

func (a *memoryAuth) SignUp(ctx context.Context, req models.SignUpRequest) (*models.Operator, error) {
	a.mu.Lock()
	a.signUps++
	a.mu.Unlock()
	return a.store.CreateOperator(ctx, &models.Operator{Name: req.Name, Login: req.Login, Role: models.RoleAgent}, req.Password)
}

func (a *memoryAuth) IssueToken(_ context.Context, op *models.Operator, sessionID, _, _ string) (*models.LoginResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	token := "token-" + sessionID
	expires := time.Now().Add(time.Hour)
	a.tokens[token] = &models.SessionClaims{OperatorID: op.ID.String(), SessionID: sessionID, ExpiresAt: expires}
	return &models.LoginResponse{Token: token, SessionID: sessionID, Operator: *op, ExpiresAt: expires}, nil
}

func (a *memoryAuth) ValidateToken(_ context.Context, token string) (*models.SessionClaims, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	claims, ok := a.tokens[token]
	if !ok {
		return nil, models.ErrInvalidToken
	}
	cp := *claims
	return &cp, nil
}

func (a *memoryAuth) Operator(_ context.Context, id string) (*models.Operator, error) {
	op := a.find(func(op *models.Operator) bool { return op.ID.String() == id })
	if op == nil {
		return nil, models.ErrNotFound
	}
	return op, nil
}

func (a *memoryAuth) RevokeToken(_ context.Context, token string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.tokens, token)
	return nil
}

func (a *memoryAuth) RequestPasswordReset(_ context.Context, login string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resets = append(a.resets, login)
	return nil
}

func (a *memoryAuth) ConfirmPasswordReset(context.Context, models.PasswordResetConfirmRequest) error {
	return nil
}

func (a *memoryAuth) OAuthURL() (string, error) {
	return "", models.ErrOAuthDisabled
}

func (a *memoryAuth) OAuthCallback(context.Context, string, string) (*models.Operator, error) {
	return nil, models.ErrOAuthDisabled
}

type memoryMailer struct {
	mu   sync.Mutex
	sent []*models.Email
}

func (m *memoryMailer) Send(_ context.Context, email *models.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, email)
	return nil
}
