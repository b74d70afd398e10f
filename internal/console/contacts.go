package console

import (
	"context"
	"slices"

	"github.com/nguyentranbao-ct/crm-console/internal/models"
)

// AddContact creates a contact and puts it at the top of the list. An empty
// owner defaults to the active operator.
func (c *Console) AddContact(ctx context.Context, in *models.Contact) (*models.Contact, error) {
	if in == nil {
		return nil, models.InvalidArgument("missing contact")
	}

	c.mu.Lock()
	op, err := c.activeLocked()
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	draft := in.Clone()
	draft.ID = ""
	if draft.OwnerID == "" {
		draft.OwnerID = op.ID
	}
	if draft.PipelineStage == "" {
		draft.PipelineStage = models.StageLead
	}
	draft.NormalizeTags()
	if d := Authorize(Request{Actor: op, Action: ActionCreateContact, Contact: draft}); !d.Permit {
		c.mu.Unlock()
		return nil, d.Err()
	}
	if err := validate.Struct(draft); err != nil {
		c.mu.Unlock()
		return nil, validationErr(err)
	}
	now := c.now()
	draft.CreatedAt, draft.UpdatedAt = now, now
	gen := c.session.generation
	c.mu.Unlock()

	rctx, cancel := c.remoteCtx(ctx)
	saved, err := c.store.CreateContact(rctx, draft)
	cancel()
	if err != nil {
		c.log.Errorw("create contact failed", "name", draft.Name, "error", err)
		return nil, remoteErr("create contact", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.staleLocked(gen) {
		return saved.Clone(), nil
	}
	c.caches.contacts = slices.Insert(c.caches.contacts, 0, saved.Clone())
	c.notifyLocked(EventContacts)
	return saved.Clone(), nil
}

// UpdateContact replaces a contact's full record. Changing the owner is a
// reassignment and needs a manager.
func (c *Console) UpdateContact(ctx context.Context, in *models.Contact) (*models.Contact, error) {
	if in == nil {
		return nil, models.InvalidArgument("missing contact")
	}

	c.mu.Lock()
	op, err := c.activeLocked()
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	existing := c.caches.contact(in.ID)
	if existing == nil {
		c.mu.Unlock()
		return nil, models.ErrNotFound
	}
	if d := Authorize(Request{Actor: op, Action: ActionUpdateContact, Contact: existing}); !d.Permit {
		c.mu.Unlock()
		return nil, d.Err()
	}

	draft := in.Clone()
	if draft.OwnerID == "" {
		draft.OwnerID = existing.OwnerID
	}
	if draft.OwnerID != existing.OwnerID {
		if d := Authorize(Request{Actor: op, Action: ActionReassignContact, Contact: existing}); !d.Permit {
			c.mu.Unlock()
			return nil, d.Err()
		}
	}
	draft.NormalizeTags()
	if err := validate.Struct(draft); err != nil {
		c.mu.Unlock()
		return nil, validationErr(err)
	}
	draft.CreatedAt = existing.CreatedAt
	draft.UpdatedAt = c.now()
	gen := c.session.generation
	c.mu.Unlock()

	rctx, cancel := c.remoteCtx(ctx)
	saved, err := c.store.UpdateContact(rctx, draft)
	cancel()
	if err != nil {
		c.log.Errorw("update contact failed", "contact_id", in.ID, "error", err)
		return nil, remoteErr("update contact", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.staleLocked(gen) {
		return saved.Clone(), nil
	}
	replaceByID(c.caches.contacts, func(ct *models.Contact) models.ObjectID { return ct.ID }, saved.Clone())
	for _, ch := range c.caches.chats {
		if ch.ContactID == saved.ID {
			ch.ContactName = saved.Name
			ch.AvatarURL = saved.AvatarURL
		}
	}
	c.enforceInvariantsLocked()
	c.notifyLocked(EventContacts, EventChats)
	return saved.Clone(), nil
}

// DeleteContact removes a contact together with every chat that references it.
func (c *Console) DeleteContact(ctx context.Context, id models.ObjectID) error {
	c.mu.Lock()
	op, err := c.activeLocked()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	ct := c.caches.contact(id)
	if d := Authorize(Request{Actor: op, Action: ActionDeleteContact, Contact: ct}); !d.Permit {
		c.mu.Unlock()
		return d.Err()
	}
	if ct == nil {
		c.mu.Unlock()
		return models.ErrNotFound
	}
	gen := c.session.generation
	c.mu.Unlock()

	rctx, cancel := c.remoteCtx(ctx)
	err = c.store.DeleteContact(rctx, id)
	cancel()
	if err != nil {
		c.log.Errorw("delete contact failed", "contact_id", id, "error", err)
		return remoteErr("delete contact", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.staleLocked(gen) {
		return nil
	}
	c.caches.removeContact(id)
	c.enforceInvariantsLocked()
	c.notifyLocked(EventContacts, EventChats)
	c.log.Infow("contact deleted", "contact_id", id, "operator_id", op.ID)
	return nil
}
