package console

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/nguyentranbao-ct/crm-console/internal/models"
	"go.uber.org/zap"
)

// Registry owns every open console and fans realtime events out to them.
// It lives as long as the process, so the realtime subscription is made once
// and never depends on who is logged in.
type Registry struct {
	deps Deps
	log  *zap.SugaredLogger

	mu       sync.RWMutex
	consoles map[string]*Console
}

func NewRegistry(deps Deps) *Registry {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	deps.Logger = log
	return &Registry{
		deps:     deps,
		log:      log,
		consoles: make(map[string]*Console),
	}
}

// Open creates an empty console with a fresh session id.
func (r *Registry) Open() *Console {
	return r.OpenWithID(uuid.NewString())
}

// OpenWithID returns the console with the given id, creating it if needed.
func (r *Registry) OpenWithID(id string) *Console {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.consoles[id]; ok {
		return c
	}
	c := New(id, r.deps)
	r.consoles[id] = c
	return c
}

func (r *Registry) Get(id string) (*Console, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.consoles[id]
	return c, ok
}

// Close logs the console out and drops it.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	c, ok := r.consoles[id]
	delete(r.consoles, id)
	r.mu.Unlock()
	if !ok {
		return
	}
	c.Logout()
	c.closeListeners()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.consoles)
}

// HandleMessageInserted applies one inserted message to every open console.
func (r *Registry) HandleMessageInserted(ctx context.Context, msg *models.Message) error {
	if msg == nil || msg.ChatID == "" {
		return models.InvalidArgument("message insert without chat id")
	}
	if err := msg.Sender.Validate(); err != nil {
		return models.InvalidArgument(err.Error())
	}

	r.mu.RLock()
	targets := make([]*Console, 0, len(r.consoles))
	for _, c := range r.consoles {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	applied := 0
	for _, c := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.ApplyMessageInserted(msg) {
			applied++
		}
	}
	r.log.Debugw("message fanned out", "message_id", msg.ID, "chat_id", msg.ChatID, "consoles", len(targets), "applied", applied)
	return nil
}

// CloseAll drops every console, used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	consoles := r.consoles
	r.consoles = make(map[string]*Console)
	r.mu.Unlock()
	for _, c := range consoles {
		c.Logout()
		c.closeListeners()
	}
}
