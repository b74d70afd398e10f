package usecase

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/nguyentranbao-ct/crm-console/internal/config"
	"github.com/nguyentranbao-ct/crm-console/internal/models"
)

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:        "test-secret",
			TokenTTL:         time.Hour,
			StateKey:         "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=",
			PasswordResetURL: "https://crm.example.com/reset-password",
			PasswordResetTTL: time.Hour,
		},
		OAuth: config.OAuthConfig{
			Enabled:     true,
			ClientID:    "client",
			AuthURL:     "https://accounts.example.com/auth",
			TokenURL:    "https://accounts.example.com/token",
			UserInfoURL: "https://accounts.example.com/userinfo",
			RedirectURL: "http://localhost:8080/api/v1/auth/oauth/callback",
			Scopes:      []string{"email"},
		},
		Console: config.ConsoleConfig{
			Timezone:      "UTC",
			SeedWorkspace: true,
		},
	}
}

type fakeOperatorRepo struct {
	mu        sync.Mutex
	items     []*models.Operator
	calls     int
	getByIDErr error
}

func (r *fakeOperatorRepo) List(context.Context) ([]*models.Operator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return slices.Clone(r.items), nil
}

func (r *fakeOperatorRepo) GetByID(_ context.Context, id models.ObjectID) (*models.Operator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.getByIDErr != nil {
		return nil, r.getByIDErr
	}
	for _, op := range r.items {
		if op.ID == id {
			c := *op
			c.PasswordHash = ""
			return &c, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *fakeOperatorRepo) GetByLogin(_ context.Context, login string) (*models.Operator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	for _, op := range r.items {
		if op.Login == login {
			c := *op
			return &c, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *fakeOperatorRepo) Create(_ context.Context, op *models.Operator) (*models.Operator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	for _, existing := range r.items {
		if existing.Login == op.Login {
			return nil, models.ErrLoginTaken
		}
	}
	c := *op
	c.ID = models.NewObjectID()
	r.items = append(r.items, &c)
	out := c
	out.PasswordHash = ""
	return &out, nil
}

func (r *fakeOperatorRepo) Update(_ context.Context, op *models.Operator) (*models.Operator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	for i, existing := range r.items {
		if existing.ID == op.ID {
			c := *op
			c.PasswordHash = existing.PasswordHash
			r.items[i] = &c
			return op, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *fakeOperatorRepo) UpdatePassword(_ context.Context, id models.ObjectID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	for _, op := range r.items {
		if op.ID == id {
			op.PasswordHash = hash
			return nil
		}
	}
	return models.ErrNotFound
}

func (r *fakeOperatorRepo) Delete(_ context.Context, id models.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	n := len(r.items)
	r.items = slices.DeleteFunc(r.items, func(o *models.Operator) bool { return o.ID == id })
	if len(r.items) == n {
		return models.ErrNotFound
	}
	return nil
}

func (r *fakeOperatorRepo) Count(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.items)), nil
}

type fakeTokenRepo struct {
	mu     sync.Mutex
	tokens []*models.AuthToken
}

func (r *fakeTokenRepo) Create(_ context.Context, token *models.AuthToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	token.ID = models.NewObjectID()
	c := *token
	r.tokens = append(r.tokens, &c)
	return nil
}

func (r *fakeTokenRepo) GetByTokenHash(_ context.Context, hash string) (*models.AuthToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.TokenHash == hash {
			c := *t
			return &c, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *fakeTokenRepo) RevokeToken(_ context.Context, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.TokenHash == hash {
			t.IsRevoked = true
			return nil
		}
	}
	return models.ErrNotFound
}

func (r *fakeTokenRepo) RevokeOperatorTokens(_ context.Context, id models.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.OperatorID == id {
			t.IsRevoked = true
		}
	}
	return nil
}

func (r *fakeTokenRepo) DeleteExpiredTokens(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.tokens)
	r.tokens = slices.DeleteFunc(r.tokens, func(t *models.AuthToken) bool {
		return t.IsRevoked || t.ExpiresAt.Before(time.Now())
	})
	return int64(n - len(r.tokens)), nil
}

type fakeResetRepo struct {
	mu     sync.Mutex
	resets []*models.PasswordReset
}

func (r *fakeResetRepo) Create(_ context.Context, reset *models.PasswordReset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reset.ID = models.NewObjectID()
	c := *reset
	r.resets = append(r.resets, &c)
	return nil
}

func (r *fakeResetRepo) GetActiveByTokenHash(_ context.Context, hash string) (*models.PasswordReset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.resets {
		if p.TokenHash == hash && p.UsedAt == nil && p.ExpiresAt.After(time.Now()) {
			c := *p
			return &c, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *fakeResetRepo) MarkUsed(_ context.Context, id models.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.resets {
		if p.ID == id {
			now := time.Now()
			p.UsedAt = &now
			return nil
		}
	}
	return models.ErrNotFound
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []*models.Email
	err  error
}

func (m *fakeMailer) Send(_ context.Context, email *models.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, email)
	return nil
}

type fakeContactRepo struct {
	items []*models.Contact
}

func (r *fakeContactRepo) List(context.Context) ([]*models.Contact, error) {
	return slices.Clone(r.items), nil
}

func (r *fakeContactRepo) GetByID(_ context.Context, id models.ObjectID) (*models.Contact, error) {
	for _, c := range r.items {
		if c.ID == id {
			return c.Clone(), nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *fakeContactRepo) Create(_ context.Context, contact *models.Contact) (*models.Contact, error) {
	c := contact.Clone()
	c.ID = models.NewObjectID()
	r.items = append([]*models.Contact{c}, r.items...)
	return c.Clone(), nil
}

func (r *fakeContactRepo) Update(_ context.Context, contact *models.Contact) (*models.Contact, error) {
	for i, c := range r.items {
		if c.ID == contact.ID {
			r.items[i] = contact.Clone()
			return contact.Clone(), nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *fakeContactRepo) Delete(_ context.Context, id models.ObjectID) error {
	n := len(r.items)
	r.items = slices.DeleteFunc(r.items, func(c *models.Contact) bool { return c.ID == id })
	if len(r.items) == n {
		return models.ErrNotFound
	}
	return nil
}

type fakeChatRepo struct {
	items     []*models.Chat
	messages  *fakeMessageRepo
	deleteErr error
}

func (r *fakeChatRepo) ListWithMessages(context.Context) ([]*models.Chat, error) {
	out := make([]*models.Chat, 0, len(r.items))
	for _, ch := range r.items {
		c := ch.Clone()
		for _, m := range r.messages.items {
			if m.ChatID == ch.ID {
				c.Messages = append(c.Messages, m)
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *fakeChatRepo) GetByID(_ context.Context, id models.ObjectID) (*models.Chat, error) {
	for _, ch := range r.items {
		if ch.ID == id {
			return ch.Clone(), nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *fakeChatRepo) ListIDsByContact(_ context.Context, contactID models.ObjectID) ([]models.ObjectID, error) {
	var ids []models.ObjectID
	for _, ch := range r.items {
		if ch.ContactID == contactID {
			ids = append(ids, ch.ID)
		}
	}
	return ids, nil
}

func (r *fakeChatRepo) Create(_ context.Context, chat *models.Chat) (*models.Chat, error) {
	c := chat.Clone()
	c.ID = models.NewObjectID()
	r.items = append(r.items, c)
	return c.Clone(), nil
}

func (r *fakeChatRepo) UpdateHandler(_ context.Context, id models.ObjectID, handledBy models.HandledBy) error {
	for _, ch := range r.items {
		if ch.ID == id {
			ch.HandledBy = handledBy
			return nil
		}
	}
	return models.ErrNotFound
}

func (r *fakeChatRepo) UpdateSummary(_ context.Context, id models.ObjectID, last, ts string) error {
	for _, ch := range r.items {
		if ch.ID == id {
			ch.LastMessage = last
			ch.Timestamp = ts
			return nil
		}
	}
	return models.ErrNotFound
}

func (r *fakeChatRepo) DeleteByContact(_ context.Context, contactID models.ObjectID) (int64, error) {
	if r.deleteErr != nil {
		return 0, r.deleteErr
	}
	n := len(r.items)
	r.items = slices.DeleteFunc(r.items, func(ch *models.Chat) bool { return ch.ContactID == contactID })
	return int64(n - len(r.items)), nil
}

type fakeMessageRepo struct {
	items []*models.Message
	err   error
}

func (r *fakeMessageRepo) Create(_ context.Context, msg *models.Message) (*models.Message, error) {
	if r.err != nil {
		return nil, r.err
	}
	c := *msg
	c.ID = models.NewObjectID()
	r.items = append(r.items, &c)
	out := c
	return &out, nil
}

func (r *fakeMessageRepo) CreateMany(_ context.Context, msgs []*models.Message) error {
	for _, m := range msgs {
		c := *m
		c.ID = models.NewObjectID()
		r.items = append(r.items, &c)
	}
	return nil
}

func (r *fakeMessageRepo) DeleteByChats(_ context.Context, chatIDs []models.ObjectID) (int64, error) {
	n := len(r.items)
	r.items = slices.DeleteFunc(r.items, func(m *models.Message) bool { return slices.Contains(chatIDs, m.ChatID) })
	return int64(n - len(r.items)), nil
}

type fakeQuickReplyRepo struct {
	items []*models.QuickReply
}

func (r *fakeQuickReplyRepo) List(context.Context) ([]*models.QuickReply, error) {
	return slices.Clone(r.items), nil
}

func (r *fakeQuickReplyRepo) Create(_ context.Context, qr *models.QuickReply) (*models.QuickReply, error) {
	c := *qr
	c.ID = models.NewObjectID()
	r.items = append(r.items, &c)
	return &c, nil
}

func (r *fakeQuickReplyRepo) Update(_ context.Context, qr *models.QuickReply) (*models.QuickReply, error) {
	return qr, nil
}

func (r *fakeQuickReplyRepo) Delete(context.Context, models.ObjectID) error {
	return nil
}

type fakeKnowledgeBaseRepo struct {
	items []*models.KnowledgeBaseItem
}

func (r *fakeKnowledgeBaseRepo) List(context.Context) ([]*models.KnowledgeBaseItem, error) {
	return slices.Clone(r.items), nil
}

func (r *fakeKnowledgeBaseRepo) Create(_ context.Context, item *models.KnowledgeBaseItem) (*models.KnowledgeBaseItem, error) {
	c := item.Clone()
	c.ID = models.NewObjectID()
	r.items = append(r.items, c)
	return c, nil
}

func (r *fakeKnowledgeBaseRepo) Update(_ context.Context, item *models.KnowledgeBaseItem) (*models.KnowledgeBaseItem, error) {
	return item, nil
}

func (r *fakeKnowledgeBaseRepo) Delete(context.Context, models.ObjectID) error {
	return nil
}

type fakePublisher struct {
	published []*models.Message
	err       error
}

func (p *fakePublisher) PublishMessageInserted(_ context.Context, msg *models.Message) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, msg)
	return nil
}

type authFixture struct {
	operators *fakeOperatorRepo
	tokens    *fakeTokenRepo
	resets    *fakeResetRepo
	mailer    *fakeMailer
	uc        *AuthUseCase
}

func newAuthFixture(cfg *config.Config) (*authFixture, error) {
	f := &authFixture{
		operators: &fakeOperatorRepo{},
		tokens:    &fakeTokenRepo{},
		resets:    &fakeResetRepo{},
		mailer:    &fakeMailer{},
	}
	uc, err := NewAuthUseCase(cfg, f.operators, f.tokens, f.resets, f.mailer)
	if err != nil {
		return nil, err
	}
	f.uc = uc
	return f, nil
}

type storeFixture struct {
	repos     WorkspaceRepos
	contacts  *fakeContactRepo
	chats     *fakeChatRepo
	messages  *fakeMessageRepo
	publisher *fakePublisher
	auth      *authFixture
	store     *WorkspaceStore
}

func newStoreFixture(cfg *config.Config) (*storeFixture, error) {
	auth, err := newAuthFixture(cfg)
	if err != nil {
		return nil, err
	}
	messages := &fakeMessageRepo{}
	f := &storeFixture{
		contacts:  &fakeContactRepo{},
		chats:     &fakeChatRepo{messages: messages},
		messages:  messages,
		publisher: &fakePublisher{},
		auth:      auth,
	}
	f.repos = WorkspaceRepos{
		Operators:     auth.operators,
		Contacts:      f.contacts,
		Chats:         f.chats,
		Messages:      f.messages,
		QuickReplies:  &fakeQuickReplyRepo{},
		KnowledgeBase: &fakeKnowledgeBaseRepo{},
	}
	f.store = NewWorkspaceStore(cfg, f.repos, auth.uc, f.publisher)
	return f, nil
}
