package console

import (
	"context"

	"github.com/nguyentranbao-ct/crm-console/internal/models"
)

// session tracks who is logged in and who the console is acting as. They
// differ only while a manager is acting as another operator.
type session struct {
	authenticated *models.Operator
	active        *models.Operator
	// generation changes on every login and logout so that results of
	// in-flight calls can be recognised as stale.
	generation uint64
}

func (s *session) begin(op *models.Operator) {
	s.authenticated = op.Clone()
	s.active = op.Clone()
	s.generation++
}

func (s *session) clear() {
	s.authenticated = nil
	s.active = nil
	s.generation++
}

// replace refreshes the session copies of op after a roster update.
func (s *session) replace(op *models.Operator) {
	if s.active != nil && s.active.ID == op.ID {
		s.active = op.Clone()
	}
	if s.authenticated != nil && s.authenticated.ID == op.ID {
		s.authenticated = op.Clone()
	}
}

// Login signs the operator in and bulk-loads the workspace.
func (c *Console) Login(ctx context.Context, login, password string) (*models.Operator, error) {
	rctx, cancel := c.remoteCtx(ctx)
	op, err := c.auth.SignIn(rctx, login, password)
	cancel()
	if err != nil {
		c.log.Warnw("sign in failed", "login", login, "error", err)
		return nil, err
	}
	return c.StartSession(ctx, op), nil
}

// SignUp registers a new operator. A mismatched confirmation is rejected
// before anything reaches the authenticator.
func (c *Console) SignUp(ctx context.Context, req models.SignUpRequest) (*models.Operator, error) {
	if req.Password != req.ConfirmPassword {
		return nil, models.ErrPasswordMismatch
	}
	if err := validate.Struct(req); err != nil {
		return nil, validationErr(err)
	}

	rctx, cancel := c.remoteCtx(ctx)
	op, err := c.auth.SignUp(rctx, req)
	cancel()
	if err != nil {
		c.log.Warnw("sign up failed", "login", req.Login, "error", err)
		return nil, err
	}
	return c.StartSession(ctx, op), nil
}

// StartSession installs op as the session identity and loads the caches.
// It is used directly for OAuth callbacks and token restores.
func (c *Console) StartSession(ctx context.Context, op *models.Operator) *models.Operator {
	c.mu.Lock()
	c.resetLocked()
	c.session.begin(op)
	c.notifyLocked(EventSession, EventView)
	c.mu.Unlock()

	if err := c.Load(ctx); err != nil {
		c.log.Warnw("workspace load skipped", "error", err)
	}
	return c.CurrentOperator()
}

// Logout clears the session and every field derived from it.
func (c *Console) Logout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	c.notifyLocked(EventSession, EventOperators, EventContacts, EventChats, EventCatalog, EventView, EventPending)
}

// CurrentOperator returns the operator the console acts as, or nil.
func (c *Console) CurrentOperator() *models.Operator {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.active.Clone()
}

func (c *Console) AuthenticatedOperator() *models.Operator {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.authenticated.Clone()
}

// SwitchOperator lets a manager act as another operator from the roster.
// Switching back to the authenticated identity is always allowed.
func (c *Console) SwitchOperator(id models.ObjectID) (*models.Operator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.authenticated == nil {
		return nil, models.ErrNoActiveOperator
	}
	target := c.caches.operator(id)
	if target == nil {
		return nil, models.ErrNotFound
	}
	d := Authorize(Request{
		Actor:  c.session.authenticated,
		Action: ActionSwitchOperator,
		Target: target,
	})
	if !d.Permit {
		return nil, d.Err()
	}

	c.session.active = target.Clone()
	c.enforceInvariantsLocked()
	c.notifyLocked(EventSession, EventView, EventContacts, EventChats)
	return c.session.active.Clone(), nil
}
