package console

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/nguyentranbao-ct/crm-console/internal/models"
	"github.com/stretchr/testify/require"
)

var errStoreDown = errors.New("store is down")

// fakeStore is an in-memory workspace store. Failures are injected per
// method name.
type fakeStore struct {
	mu            sync.Mutex
	operators     []*models.Operator
	contacts      []*models.Contact
	chats         []*models.Chat
	quickReplies  []*models.QuickReply
	knowledgeBase []*models.KnowledgeBaseItem

	errs     map[string]error
	calls    map[string]int
	inserted []*models.Message
	drafts   []*models.Chat

	// onListChats runs while the chats fetch is in flight.
	onListChats func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (f *fakeStore) fail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[method] = err
}

func (f *fakeStore) called(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeStore) enter(method string) error {
	f.calls[method]++
	return f.errs[method]
}

func (f *fakeStore) ListOperators(context.Context) ([]*models.Operator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListOperators"); err != nil {
		return nil, err
	}
	out := make([]*models.Operator, len(f.operators))
	for i, o := range f.operators {
		out[i] = o.Clone()
	}
	return out, nil
}

func (f *fakeStore) ListContacts(context.Context) ([]*models.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListContacts"); err != nil {
		return nil, err
	}
	out := make([]*models.Contact, len(f.contacts))
	for i, ct := range f.contacts {
		out[i] = ct.Clone()
	}
	return out, nil
}

// ListChats nests messages newest first, the way the store query does.
func (f *fakeStore) ListChats(context.Context) ([]*models.Chat, error) {
	f.mu.Lock()
	hook := f.onListChats
	err := f.enter("ListChats")
	out := make([]*models.Chat, len(f.chats))
	for i, ch := range f.chats {
		cp := ch.Clone()
		slices.SortFunc(cp.Messages, func(a, b *models.Message) int { return b.Timestamp.Compare(a.Timestamp) })
		out[i] = cp
	}
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (f *fakeStore) ListQuickReplies(context.Context) ([]*models.QuickReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListQuickReplies"); err != nil {
		return nil, err
	}
	return slices.Clone(f.quickReplies), nil
}

func (f *fakeStore) ListKnowledgeBase(context.Context) ([]*models.KnowledgeBaseItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListKnowledgeBase"); err != nil {
		return nil, err
	}
	return slices.Clone(f.knowledgeBase), nil
}

func (f *fakeStore) CreateOperator(_ context.Context, op *models.Operator, _ string) (*models.Operator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateOperator"); err != nil {
		return nil, err
	}
	saved := op.Clone()
	saved.ID = models.NewObjectID()
	f.operators = append(f.operators, saved)
	return saved.Clone(), nil
}

func (f *fakeStore) UpdateOperator(_ context.Context, op *models.Operator) (*models.Operator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateOperator"); err != nil {
		return nil, err
	}
	replaceByID(f.operators, func(o *models.Operator) models.ObjectID { return o.ID }, op.Clone())
	return op.Clone(), nil
}

func (f *fakeStore) DeleteOperator(_ context.Context, id models.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteOperator"); err != nil {
		return err
	}
	f.operators = slices.DeleteFunc(f.operators, func(o *models.Operator) bool { return o.ID == id })
	return nil
}

func (f *fakeStore) CreateContact(_ context.Context, ct *models.Contact) (*models.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateContact"); err != nil {
		return nil, err
	}
	saved := ct.Clone()
	saved.ID = models.NewObjectID()
	f.contacts = append(f.contacts, saved)
	return saved.Clone(), nil
}

func (f *fakeStore) UpdateContact(_ context.Context, ct *models.Contact) (*models.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateContact"); err != nil {
		return nil, err
	}
	replaceByID(f.contacts, func(c *models.Contact) models.ObjectID { return c.ID }, ct.Clone())
	return ct.Clone(), nil
}

func (f *fakeStore) DeleteContact(_ context.Context, id models.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteContact"); err != nil {
		return err
	}
	f.contacts = slices.DeleteFunc(f.contacts, func(c *models.Contact) bool { return c.ID == id })
	f.chats = slices.DeleteFunc(f.chats, func(c *models.Chat) bool { return c.ContactID == id })
	return nil
}

func (f *fakeStore) CreateChat(_ context.Context, chat *models.Chat) (*models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafts = append(f.drafts, chat.Clone())
	if err := f.enter("CreateChat"); err != nil {
		return nil, err
	}
	saved := chat.Clone()
	saved.ID = models.NewObjectID()
	f.chats = append(f.chats, saved)
	return saved.Clone(), nil
}

func (f *fakeStore) UpdateChatHandler(_ context.Context, chatID models.ObjectID, handledBy models.HandledBy) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateChatHandler"); err != nil {
		return err
	}
	for _, ch := range f.chats {
		if ch.ID == chatID {
			ch.HandledBy = handledBy
		}
	}
	return nil
}

func (f *fakeStore) InsertMessage(_ context.Context, msg *models.Message) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("InsertMessage"); err != nil {
		return nil, err
	}
	saved := *msg
	saved.ID = models.NewObjectID()
	f.inserted = append(f.inserted, &saved)
	return &saved, nil
}

func (f *fakeStore) CreateQuickReply(_ context.Context, qr *models.QuickReply) (*models.QuickReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateQuickReply"); err != nil {
		return nil, err
	}
	saved := *qr
	saved.ID = models.NewObjectID()
	f.quickReplies = append(f.quickReplies, &saved)
	return &saved, nil
}

func (f *fakeStore) UpdateQuickReply(_ context.Context, qr *models.QuickReply) (*models.QuickReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateQuickReply"); err != nil {
		return nil, err
	}
	saved := *qr
	return &saved, nil
}

func (f *fakeStore) DeleteQuickReply(_ context.Context, id models.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteQuickReply"); err != nil {
		return err
	}
	f.quickReplies = slices.DeleteFunc(f.quickReplies, func(q *models.QuickReply) bool { return q.ID == id })
	return nil
}

func (f *fakeStore) CreateKnowledgeBaseItem(_ context.Context, item *models.KnowledgeBaseItem) (*models.KnowledgeBaseItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateKnowledgeBaseItem"); err != nil {
		return nil, err
	}
	saved := item.Clone()
	saved.ID = models.NewObjectID()
	f.knowledgeBase = append(f.knowledgeBase, saved)
	return saved.Clone(), nil
}

func (f *fakeStore) UpdateKnowledgeBaseItem(_ context.Context, item *models.KnowledgeBaseItem) (*models.KnowledgeBaseItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateKnowledgeBaseItem"); err != nil {
		return nil, err
	}
	return item.Clone(), nil
}

func (f *fakeStore) DeleteKnowledgeBaseItem(_ context.Context, id models.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteKnowledgeBaseItem"); err != nil {
		return err
	}
	f.knowledgeBase = slices.DeleteFunc(f.knowledgeBase, func(k *models.KnowledgeBaseItem) bool { return k.ID == id })
	return nil
}

type fakeAuth struct {
	// store receives operators created by sign up, as the real
	// authenticator writes to the same workspace.
	store       *fakeStore
	mu          sync.Mutex
	operators   map[string]*models.Operator
	passwords   map[string]string
	signUpCalls int
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{
		operators: make(map[string]*models.Operator),
		passwords: make(map[string]string),
	}
}

func (a *fakeAuth) register(op *models.Operator, password string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.operators[op.Login] = op.Clone()
	a.passwords[op.Login] = password
}

func (a *fakeAuth) SignIn(_ context.Context, login, password string) (*models.Operator, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	op, ok := a.operators[login]
	if !ok || a.passwords[login] != password {
		return nil, models.ErrInvalidCredentials
	}
	return op.Clone(), nil
}

func (a *fakeAuth) SignUp(_ context.Context, req models.SignUpRequest) (*models.Operator, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.signUpCalls++
	if _, ok := a.operators[req.Login]; ok {
		return nil, models.ErrLoginTaken
	}
	op := &models.Operator{ID: models.NewObjectID(), Name: req.Name, Login: req.Login, Role: models.RoleAgent}
	a.operators[req.Login] = op
	a.passwords[req.Login] = req.Password
	if a.store != nil {
		a.store.mu.Lock()
		a.store.operators = append(a.store.operators, op.Clone())
		a.store.mu.Unlock()
	}
	return op.Clone(), nil
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
	cp := *email
	m.sent = append(m.sent, &cp)
	return nil
}

var t0 = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

// workspaceFixture is a small workspace with one manager, two agents and
// chats in every visibility state.
type workspaceFixture struct {
	store  *fakeStore
	auth   *fakeAuth
	mailer *fakeMailer

	manager, bruno, carla *models.Operator

	// brunoContact is owned by bruno, carlaContact by carla, managerContact
	// by the manager. newContact is bruno's and has no chat.
	brunoContact, carlaContact, managerContact, newContact *models.Contact

	// brunoChat is handled by bruno, botChat by the bot, carlaChat by carla
	// and emptyChat by the manager with no messages.
	brunoChat, botChat, carlaChat, emptyChat *models.Chat
}

func message(chatID models.ObjectID, sender models.Sender, text string, at time.Duration) *models.Message {
	return &models.Message{
		ID:        models.NewObjectID(),
		ChatID:    chatID,
		Sender:    sender,
		Text:      text,
		Type:      models.MessageTypeText,
		Status:    models.StatusDelivered,
		Timestamp: t0.Add(at),
	}
}

func newWorkspaceFixture() *workspaceFixture {
	fx := &workspaceFixture{
		store:  newFakeStore(),
		auth:   newFakeAuth(),
		mailer: &fakeMailer{},
	}

	fx.manager = &models.Operator{ID: models.NewObjectID(), Name: "Ana Souza", Login: "ana@example.com", Role: models.RoleManager}
	fx.bruno = &models.Operator{ID: models.NewObjectID(), Name: "Bruno Lima", Login: "bruno@example.com", Role: models.RoleAgent}
	fx.carla = &models.Operator{ID: models.NewObjectID(), Name: "Carla Dias", Login: "carla@example.com", Role: models.RoleAgent}

	contact := func(name, email string, owner *models.Operator) *models.Contact {
		return &models.Contact{
			ID:            models.NewObjectID(),
			Name:          name,
			Email:         email,
			Tags:          []string{"vip"},
			PipelineStage: models.StageLead,
			OwnerID:       owner.ID,
		}
	}
	fx.brunoContact = contact("Maria Silva", "maria@example.com", fx.bruno)
	fx.carlaContact = contact("Joao Pereira", "joao@example.com", fx.carla)
	fx.managerContact = contact("Lucia Alves", "", fx.manager)
	fx.newContact = contact("Pedro Costa", "pedro@example.com", fx.bruno)

	chat := func(ct *models.Contact, by models.HandledBy) *models.Chat {
		return &models.Chat{ID: models.NewObjectID(), ContactID: ct.ID, ContactName: ct.Name, HandledBy: by}
	}
	fx.brunoChat = chat(fx.brunoContact, models.HandledByOperator(fx.bruno.ID))
	fx.brunoChat.Messages = []*models.Message{
		message(fx.brunoChat.ID, models.ContactSender(fx.brunoContact.ID), "Hello", time.Minute),
		message(fx.brunoChat.ID, models.OperatorSender(fx.bruno.ID), "Hi Maria", 3*time.Minute),
	}
	fx.botChat = chat(fx.carlaContact, models.Bot)
	fx.botChat.Messages = []*models.Message{
		message(fx.botChat.ID, models.BotSender(), "How can I help?", 2*time.Minute),
	}
	fx.carlaChat = chat(fx.managerContact, models.HandledByOperator(fx.carla.ID))
	fx.carlaChat.Messages = []*models.Message{
		message(fx.carlaChat.ID, models.ContactSender(fx.managerContact.ID), "Any news?", 5*time.Minute),
	}
	fx.emptyChat = &models.Chat{ID: models.NewObjectID(), ContactID: models.NewObjectID(), ContactName: "Nobody", HandledBy: models.HandledByOperator(fx.manager.ID)}

	fx.store.operators = []*models.Operator{fx.manager.Clone(), fx.bruno.Clone(), fx.carla.Clone()}
	fx.store.contacts = []*models.Contact{fx.brunoContact.Clone(), fx.carlaContact.Clone(), fx.managerContact.Clone(), fx.newContact.Clone()}
	fx.store.chats = []*models.Chat{fx.emptyChat.Clone(), fx.botChat.Clone(), fx.brunoChat.Clone(), fx.carlaChat.Clone()}
	fx.store.quickReplies = []*models.QuickReply{{ID: models.NewObjectID(), Shortcut: "/hi", Text: "Hello!"}}
	fx.store.knowledgeBase = []*models.KnowledgeBaseItem{{ID: models.NewObjectID(), Title: "Pricing", Content: "See the sheet."}}

	fx.auth.store = fx.store
	fx.auth.register(fx.manager, "secret-ana")
	fx.auth.register(fx.bruno, "secret-bruno")
	return fx
}

func (fx *workspaceFixture) deps() Deps {
	return Deps{
		Store:  fx.store,
		Auth:   fx.auth,
		Mailer: fx.mailer,
		Options: Options{
			RequestTimeout: time.Second,
			Location:       time.UTC,
			Now:            func() time.Time { return t0.Add(time.Hour) },
		},
	}
}

func (fx *workspaceFixture) console(t *testing.T) *Console {
	t.Helper()
	return New("console-test", fx.deps())
}

// loggedIn returns a console with op signed in and the workspace loaded.
func (fx *workspaceFixture) loggedIn(t *testing.T, op *models.Operator) *Console {
	t.Helper()
	c := fx.console(t)
	got := c.StartSession(context.Background(), op)
	require.NotNil(t, got)
	require.Equal(t, op.ID, got.ID)
	return c
}

func chatIDs(chats []*models.Chat) []models.ObjectID {
	ids := make([]models.ObjectID, len(chats))
	for i, ch := range chats {
		ids[i] = ch.ID
	}
	return ids
}

func contactIDs(contacts []*models.Contact) []models.ObjectID {
	ids := make([]models.ObjectID, len(contacts))
	for i, ct := range contacts {
		ids[i] = ct.ID
	}
	return ids
}
