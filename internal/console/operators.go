package console

import (
	"context"

	"github.com/nguyentranbao-ct/crm-console/internal/models"
)

// AddOperator registers a new operator and appends it to the roster.
func (c *Console) AddOperator(ctx context.Context, in *models.Operator, password string) (*models.Operator, error) {
	if in == nil {
		return nil, models.InvalidArgument("missing operator")
	}

	c.mu.Lock()
	op, err := c.activeLocked()
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if d := Authorize(Request{Actor: op, Action: ActionAddOperator}); !d.Permit {
		c.mu.Unlock()
		return nil, d.Err()
	}
	c.mu.Unlock()

	draft := in.Clone()
	draft.ID = ""
	draft.PasswordHash = ""
	if draft.Role == "" {
		draft.Role = models.RoleAgent
	}
	if err := validate.Struct(draft); err != nil {
		return nil, validationErr(err)
	}
	if err := validate.Var(password, "required,min=6"); err != nil {
		return nil, models.InvalidArgument("password must be at least 6 characters")
	}

	c.mu.Lock()
	gen := c.session.generation
	c.mu.Unlock()

	rctx, cancel := c.remoteCtx(ctx)
	saved, err := c.store.CreateOperator(rctx, draft, password)
	cancel()
	if err != nil {
		c.log.Errorw("create operator failed", "login", draft.Login, "error", err)
		return nil, remoteErr("create operator", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.staleLocked(gen) {
		c.caches.operators = append(c.caches.operators, saved.Clone())
		c.notifyLocked(EventOperators)
	}
	return saved.Clone(), nil
}

// UpdateOperator updates a profile. Operators may edit themselves; managers
// may edit anyone and change roles of others. Edits to the session identity
// are reflected in the session.
func (c *Console) UpdateOperator(ctx context.Context, in *models.Operator) (*models.Operator, error) {
	if in == nil {
		return nil, models.InvalidArgument("missing operator")
	}

	c.mu.Lock()
	op, err := c.activeLocked()
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	existing := c.caches.operator(in.ID)
	if existing == nil {
		c.mu.Unlock()
		return nil, models.ErrNotFound
	}
	if d := Authorize(Request{Actor: op, Action: ActionUpdateOperator, Target: existing}); !d.Permit {
		c.mu.Unlock()
		return nil, d.Err()
	}

	draft := in.Clone()
	draft.PasswordHash = ""
	if draft.Role == "" {
		draft.Role = existing.Role
	}
	if draft.Role != existing.Role {
		if d := Authorize(Request{Actor: op, Action: ActionChangeRole, Target: existing}); !d.Permit {
			c.mu.Unlock()
			return nil, d.Err()
		}
	}
	if err := validate.Struct(draft); err != nil {
		c.mu.Unlock()
		return nil, validationErr(err)
	}
	draft.CreatedAt = existing.CreatedAt
	draft.UpdatedAt = c.now()
	gen := c.session.generation
	c.mu.Unlock()

	rctx, cancel := c.remoteCtx(ctx)
	saved, err := c.store.UpdateOperator(rctx, draft)
	cancel()
	if err != nil {
		c.log.Errorw("update operator failed", "operator_id", in.ID, "error", err)
		return nil, remoteErr("update operator", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.staleLocked(gen) {
		return saved.Clone(), nil
	}
	replaceByID(c.caches.operators, func(o *models.Operator) models.ObjectID { return o.ID }, saved.Clone())
	c.session.replace(saved)
	c.enforceInvariantsLocked()
	c.notifyLocked(EventOperators, EventSession, EventContacts, EventChats)
	return saved.Clone(), nil
}

// DeleteOperator removes someone else from the roster.
func (c *Console) DeleteOperator(ctx context.Context, id models.ObjectID) error {
	c.mu.Lock()
	op, err := c.activeLocked()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	target := c.caches.operator(id)
	if d := Authorize(Request{Actor: op, Action: ActionDeleteOperator, Target: target}); !d.Permit {
		c.mu.Unlock()
		return d.Err()
	}
	if target == nil {
		c.mu.Unlock()
		return models.ErrNotFound
	}
	gen := c.session.generation
	c.mu.Unlock()

	rctx, cancel := c.remoteCtx(ctx)
	err = c.store.DeleteOperator(rctx, id)
	cancel()
	if err != nil {
		c.log.Errorw("delete operator failed", "operator_id", id, "error", err)
		return remoteErr("delete operator", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.staleLocked(gen) {
		return nil
	}
	c.caches.removeOperator(id)
	c.enforceInvariantsLocked()
	c.notifyLocked(EventOperators, EventSession)
	return nil
}
