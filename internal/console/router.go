package console

import (
	"context"
	"fmt"
	"slices"

	"github.com/nguyentranbao-ct/crm-console/internal/models"
)

type View string

const (
	ViewDashboard     View = "dashboard"
	ViewWhatsApp      View = "whatsapp"
	ViewCRM           View = "crm"
	ViewQuickReplies  View = "quick_replies"
	ViewKnowledgeBase View = "knowledge_base"
	ViewEmail         View = "email"
	ViewChannels      View = "channels"
	ViewUsers         View = "users"
	ViewSettings      View = "settings"
)

var views = []View{
	ViewDashboard, ViewWhatsApp, ViewCRM, ViewQuickReplies, ViewKnowledgeBase,
	ViewEmail, ViewChannels, ViewUsers, ViewSettings,
}

func ParseView(s string) (View, error) {
	v := View(s)
	if !slices.Contains(views, v) {
		return "", models.InvalidArgument(fmt.Sprintf("unknown view %q", s))
	}
	return v, nil
}

const placeholderText = "Start the conversation!"

type router struct {
	view         View
	activeChatID models.ObjectID
}

func defaultRouter() router {
	return router{view: ViewDashboard}
}

func (c *Console) SetActiveView(v View) error {
	if _, err := ParseView(string(v)); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.activeLocked(); err != nil {
		return err
	}
	c.router.view = v
	c.notifyLocked(EventView)
	return nil
}

// SetActiveChat activates a visible chat and clears its unread counter.
// An empty id deactivates.
func (c *Console) SetActiveChat(id models.ObjectID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	op, err := c.activeLocked()
	if err != nil {
		return err
	}
	if id == "" {
		c.router.activeChatID = ""
		c.notifyLocked(EventView)
		return nil
	}
	ch := c.caches.chat(id)
	if !CanSeeChat(op, ch) {
		return models.ErrChatNotVisible
	}
	c.router.activeChatID = id
	ch.UnreadCount = 0
	c.notifyLocked(EventView, EventChats)
	return nil
}

// NavigateToContact opens the contact's chat, creating one when none exists.
// A created chat is shown immediately under a placeholder id and persisted
// afterwards; the store id replaces the placeholder once confirmed. A
// placeholder left behind by a failed create is persisted again on the next
// navigation.
func (c *Console) NavigateToContact(ctx context.Context, contactID models.ObjectID) (*models.Chat, error) {
	c.mu.Lock()
	op, err := c.activeLocked()
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	ct := c.caches.contact(contactID)
	if !CanSeeContact(op, ct) {
		c.mu.Unlock()
		return nil, models.ErrNotFound
	}

	if existing := c.caches.chatForContact(contactID); existing != nil {
		if !CanSeeChat(op, existing) {
			c.mu.Unlock()
			return nil, models.PermissionDenied("chat is handled by another operator")
		}
		c.router.activeChatID = existing.ID
		c.router.view = ViewWhatsApp
		existing.UnreadCount = 0
		if existing.ID.IsPersisted() || c.pending.inFlight(MutationCreateChat, existing.ID.String()) {
			defer c.mu.Unlock()
			c.notifyLocked(EventView, EventChats)
			return existing.Clone(), nil
		}
		return c.persistChatLocked(ctx, existing.ID)
	}

	now := c.now()
	placeholder := models.ObjectID(fmt.Sprintf("chat-%s-%d", ct.ID, now.UnixMilli()))
	chat := &models.Chat{
		ID:          placeholder,
		ContactID:   ct.ID,
		ContactName: ct.Name,
		AvatarURL:   ct.AvatarURL,
		LastMessage: placeholderText,
		Timestamp:   now.In(c.opts.Location).Format(clockLayout),
		HandledBy:   models.HandledByOperator(op.ID),
		Messages:    []*models.Message{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	c.caches.chats = slices.Insert(c.caches.chats, 0, chat)
	c.router.activeChatID = placeholder
	c.router.view = ViewWhatsApp
	return c.persistChatLocked(ctx, placeholder)
}

// persistChatLocked stores the cached placeholder chat and swaps in the
// store id. It must be called with c.mu held and releases it.
func (c *Console) persistChatLocked(ctx context.Context, placeholder models.ObjectID) (*models.Chat, error) {
	m := c.pending.begin(MutationCreateChat, placeholder.String(), c.now())
	gen := c.session.generation
	draft := c.caches.chat(placeholder).Clone()
	draft.ID = ""
	c.notifyLocked(EventChats, EventView, EventPending)
	c.mu.Unlock()

	rctx, cancel := c.remoteCtx(ctx)
	saved, err := c.store.CreateChat(rctx, draft)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.notifyLocked(EventChats, EventView, EventPending)

	if c.session.generation != gen {
		return nil, models.ErrNoActiveOperator
	}
	local := c.caches.chat(placeholder)
	if err != nil {
		c.log.Errorw("persist chat failed", "contact_id", draft.ContactID, "error", err)
		c.pending.fail(m.ID, err, c.now())
		return local.Clone(), remoteErr("create chat", err)
	}

	c.pending.confirm(m.ID, saved.ID.String(), c.now())
	if local == nil {
		return saved.Clone(), nil
	}
	local.ID = saved.ID
	if c.router.activeChatID == placeholder {
		c.router.activeChatID = saved.ID
	}
	return local.Clone(), nil
}

// enforceInvariantsLocked self-heals references that no longer resolve:
// an active operator missing from the roster and an active chat that left
// the visible projection.
func (c *Console) enforceInvariantsLocked() {
	if c.caches.rosterKnown && c.session.active != nil {
		auth := c.session.authenticated
		if auth == nil || c.caches.operator(auth.ID) == nil {
			c.log.Warnw("authenticated operator left the roster, clearing session")
			c.resetLocked()
			c.notifyLocked(EventSession)
			return
		}
		if active := c.caches.operator(c.session.active.ID); active != nil {
			c.session.active = active.Clone()
		} else {
			c.log.Warnw("active operator left the roster, falling back", "operator_id", c.session.active.ID)
			c.session.active = c.caches.operator(auth.ID).Clone()
			c.notifyLocked(EventSession)
		}
		c.session.authenticated = c.caches.operator(auth.ID).Clone()
	}

	if c.router.activeChatID != "" {
		if !CanSeeChat(c.session.active, c.caches.chat(c.router.activeChatID)) {
			c.router.activeChatID = ""
			c.notifyLocked(EventView)
		}
	}
}
