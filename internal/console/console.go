// Package console holds the per-session state of the CRM console: the
// operator session, entity caches, view routing and the command handlers
// that keep them consistent with the workspace store.
//
// Every state transition happens inside the console mutex. Remote calls are
// made with the mutex released so realtime events and other requests are
// never blocked behind the network.
package console

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nguyentranbao-ct/crm-console/internal/models"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var validate = validator.New()

type EventType string

const (
	EventSession     EventType = "session"
	EventOperators   EventType = "operators"
	EventContacts    EventType = "contacts"
	EventChats       EventType = "chats"
	EventCatalog     EventType = "catalog"
	EventView        EventType = "view"
	EventPreferences EventType = "preferences"
	EventPending     EventType = "pending"
)

// Event tells subscribers which part of the console changed.
type Event struct {
	Type EventType `json:"type"`
	At   time.Time `json:"at"`
}

type Console struct {
	id     string
	store  Store
	auth   Authenticator
	mailer Mailer
	log    *zap.SugaredLogger
	opts   Options

	mu           sync.Mutex
	session      session
	caches       caches
	router       router
	prefs        preferences
	pending      *pendingTracker
	listeners    map[int]chan Event
	nextListener int
}

func New(id string, deps Deps) *Console {
	opts := deps.Options
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Console{
		id:        id,
		store:     deps.Store,
		auth:      deps.Auth,
		mailer:    deps.Mailer,
		log:       log.With("console_id", id),
		opts:      opts,
		router:    defaultRouter(),
		prefs:     defaultPreferences(),
		pending:   newPendingTracker(),
		listeners: make(map[int]chan Event),
	}
}

func (c *Console) ID() string {
	return c.id
}

// Subscribe registers a change listener. Slow listeners miss events rather
// than block the console.
func (c *Console) Subscribe() (<-chan Event, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextListener
	c.nextListener++
	ch := make(chan Event, 32)
	c.listeners[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if l, ok := c.listeners[id]; ok {
				delete(c.listeners, id)
				close(l)
			}
		})
	}
}

func (c *Console) notifyLocked(types ...EventType) {
	now := c.opts.Now()
	for _, t := range types {
		for _, ch := range c.listeners {
			select {
			case ch <- Event{Type: t, At: now}:
			default:
			}
		}
	}
}

// closeListeners ends every subscription. Used when the console is discarded.
func (c *Console) closeListeners() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.listeners {
		delete(c.listeners, id)
		close(ch)
	}
}

// resetLocked clears everything tied to the operator session. The display
// theme survives logout.
func (c *Console) resetLocked() {
	c.session.clear()
	c.caches = caches{}
	c.router = defaultRouter()
	c.prefs.reset()
	c.pending.reset()
}

func (c *Console) remoteCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.RequestTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.opts.RequestTimeout)
}

func (c *Console) now() time.Time {
	return c.opts.Now()
}

// activeLocked returns the acting operator or ErrNoActiveOperator.
func (c *Console) activeLocked() (*models.Operator, error) {
	if c.session.active == nil {
		return nil, models.ErrNoActiveOperator
	}
	return c.session.active, nil
}

// Snapshot is a point-in-time view of the console for clients.
type Snapshot struct {
	SessionID     string           `json:"session_id"`
	Operator      *models.Operator `json:"operator"`
	Authenticated *models.Operator `json:"authenticated"`
	ActiveView    View             `json:"active_view"`
	ActiveChatID  *string          `json:"active_chat_id"`
	Theme         Theme            `json:"theme"`
	WhatsAppMode  WhatsAppMode     `json:"whatsapp_mode"`
	Pending       []Mutation       `json:"pending"`
}

func (c *Console) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		SessionID:     c.id,
		Operator:      c.session.active.Clone(),
		Authenticated: c.session.authenticated.Clone(),
		ActiveView:    c.router.view,
		Theme:         c.prefs.theme,
		WhatsAppMode:  c.prefs.whatsAppMode,
		Pending:       c.pending.list(),
	}
	if c.router.activeChatID != "" {
		id := c.router.activeChatID.String()
		s.ActiveChatID = &id
	}
	return s
}

// remoteErr keeps store errors that already carry a status code and marks
// everything else as an unavailable remote.
func remoteErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return status.Errorf(codes.DeadlineExceeded, "%s: %v", op, err)
	}
	if _, ok := status.FromError(err); ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	return models.Unavailable(op, err)
}

func validationErr(err error) error {
	return models.InvalidArgument(err.Error())
}
