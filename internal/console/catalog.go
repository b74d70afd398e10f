package console

import (
	"context"
	"fmt"
	"slices"

	"github.com/nguyentranbao-ct/crm-console/internal/models"
)

type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

type WhatsAppMode string

const (
	WhatsAppIntegrated WhatsAppMode = "integrated"
	WhatsAppClassic    WhatsAppMode = "classic"
)

type preferences struct {
	theme        Theme
	whatsAppMode WhatsAppMode
}

func defaultPreferences() preferences {
	return preferences{theme: ThemeSystem, whatsAppMode: WhatsAppIntegrated}
}

// reset restores session preferences. The theme is a device preference and
// is kept.
func (p *preferences) reset() {
	p.whatsAppMode = WhatsAppIntegrated
}

func (c *Console) SetTheme(t Theme) error {
	switch t {
	case ThemeLight, ThemeDark, ThemeSystem:
	default:
		return models.InvalidArgument(fmt.Sprintf("unknown theme %q", t))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefs.theme = t
	c.notifyLocked(EventPreferences)
	return nil
}

func (c *Console) SetWhatsAppMode(m WhatsAppMode) error {
	if m != WhatsAppIntegrated && m != WhatsAppClassic {
		return models.InvalidArgument(fmt.Sprintf("unknown whatsapp mode %q", m))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.activeLocked(); err != nil {
		return err
	}
	c.prefs.whatsAppMode = m
	c.notifyLocked(EventPreferences)
	return nil
}

func (c *Console) QuickReplies() ([]*models.QuickReply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.activeLocked(); err != nil {
		return nil, err
	}
	out := make([]*models.QuickReply, len(c.caches.quickReplies))
	for i, q := range c.caches.quickReplies {
		cp := *q
		out[i] = &cp
	}
	return out, nil
}

func (c *Console) KnowledgeBase() ([]*models.KnowledgeBaseItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.activeLocked(); err != nil {
		return nil, err
	}
	out := make([]*models.KnowledgeBaseItem, len(c.caches.knowledgeBase))
	for i, k := range c.caches.knowledgeBase {
		out[i] = k.Clone()
	}
	return out, nil
}

func (c *Console) Channels() ([]*models.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.activeLocked(); err != nil {
		return nil, err
	}
	out := make([]*models.Channel, len(c.caches.channels))
	for i, ch := range c.caches.channels {
		cp := *ch
		out[i] = &cp
	}
	return out, nil
}

// SetChannels replaces the connected channel list of this console.
func (c *Console) SetChannels(channels []*models.Channel) error {
	for _, ch := range channels {
		if ch == nil {
			return models.InvalidArgument("missing channel")
		}
		if err := validate.Struct(ch); err != nil {
			return validationErr(err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.authorizeLocked(ActionManageChannels); err != nil {
		return err
	}
	next := make([]*models.Channel, len(channels))
	for i, ch := range channels {
		cp := *ch
		next[i] = &cp
	}
	c.caches.channels = next
	c.notifyLocked(EventCatalog)
	return nil
}

// authorizeLocked checks an action that needs no subject beyond the actor.
func (c *Console) authorizeLocked(action Action) error {
	op, err := c.activeLocked()
	if err != nil {
		return err
	}
	return Authorize(Request{Actor: op, Action: action}).Err()
}

// beginCatalogWrite authorizes a catalog write and returns the session
// generation the result must still match.
func (c *Console) beginCatalogWrite() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.authorizeLocked(ActionManageCatalog); err != nil {
		return 0, err
	}
	return c.session.generation, nil
}

// commit applies fn when the session is still gen.
func (c *Console) commit(gen uint64, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.staleLocked(gen) {
		return
	}
	fn()
	c.notifyLocked(EventCatalog)
}

func (c *Console) AddQuickReply(ctx context.Context, in *models.QuickReply) (*models.QuickReply, error) {
	if in == nil {
		return nil, models.InvalidArgument("missing quick reply")
	}
	gen, err := c.beginCatalogWrite()
	if err != nil {
		return nil, err
	}
	draft := *in
	draft.ID = ""
	if err := validate.Struct(draft); err != nil {
		return nil, validationErr(err)
	}

	rctx, cancel := c.remoteCtx(ctx)
	saved, err := c.store.CreateQuickReply(rctx, &draft)
	cancel()
	if err != nil {
		c.log.Errorw("create quick reply failed", "shortcut", draft.Shortcut, "error", err)
		return nil, remoteErr("create quick reply", err)
	}
	cached := *saved
	c.commit(gen, func() { c.caches.quickReplies = append(c.caches.quickReplies, &cached) })
	return saved, nil
}

func (c *Console) UpdateQuickReply(ctx context.Context, in *models.QuickReply) (*models.QuickReply, error) {
	if in == nil {
		return nil, models.InvalidArgument("missing quick reply")
	}
	gen, err := c.beginCatalogWrite()
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, validationErr(err)
	}

	rctx, cancel := c.remoteCtx(ctx)
	saved, err := c.store.UpdateQuickReply(rctx, in)
	cancel()
	if err != nil {
		c.log.Errorw("update quick reply failed", "id", in.ID, "error", err)
		return nil, remoteErr("update quick reply", err)
	}
	cached := *saved
	c.commit(gen, func() {
		replaceByID(c.caches.quickReplies, func(q *models.QuickReply) models.ObjectID { return q.ID }, &cached)
	})
	return saved, nil
}

func (c *Console) DeleteQuickReply(ctx context.Context, id models.ObjectID) error {
	gen, err := c.beginCatalogWrite()
	if err != nil {
		return err
	}

	rctx, cancel := c.remoteCtx(ctx)
	err = c.store.DeleteQuickReply(rctx, id)
	cancel()
	if err != nil {
		c.log.Errorw("delete quick reply failed", "id", id, "error", err)
		return remoteErr("delete quick reply", err)
	}
	c.commit(gen, func() {
		c.caches.quickReplies = slices.DeleteFunc(c.caches.quickReplies, func(q *models.QuickReply) bool { return q.ID == id })
	})
	return nil
}

func (c *Console) AddKnowledgeBaseItem(ctx context.Context, in *models.KnowledgeBaseItem) (*models.KnowledgeBaseItem, error) {
	if in == nil {
		return nil, models.InvalidArgument("missing knowledge base item")
	}
	gen, err := c.beginCatalogWrite()
	if err != nil {
		return nil, err
	}
	draft := in.Clone()
	draft.ID = ""
	if err := validate.Struct(draft); err != nil {
		return nil, validationErr(err)
	}

	rctx, cancel := c.remoteCtx(ctx)
	saved, err := c.store.CreateKnowledgeBaseItem(rctx, draft)
	cancel()
	if err != nil {
		c.log.Errorw("create knowledge base item failed", "title", draft.Title, "error", err)
		return nil, remoteErr("create knowledge base item", err)
	}
	c.commit(gen, func() { c.caches.knowledgeBase = append(c.caches.knowledgeBase, saved.Clone()) })
	return saved, nil
}

func (c *Console) UpdateKnowledgeBaseItem(ctx context.Context, in *models.KnowledgeBaseItem) (*models.KnowledgeBaseItem, error) {
	if in == nil {
		return nil, models.InvalidArgument("missing knowledge base item")
	}
	gen, err := c.beginCatalogWrite()
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, validationErr(err)
	}

	rctx, cancel := c.remoteCtx(ctx)
	saved, err := c.store.UpdateKnowledgeBaseItem(rctx, in)
	cancel()
	if err != nil {
		c.log.Errorw("update knowledge base item failed", "id", in.ID, "error", err)
		return nil, remoteErr("update knowledge base item", err)
	}
	c.commit(gen, func() {
		replaceByID(c.caches.knowledgeBase, func(k *models.KnowledgeBaseItem) models.ObjectID { return k.ID }, saved.Clone())
	})
	return saved, nil
}

func (c *Console) DeleteKnowledgeBaseItem(ctx context.Context, id models.ObjectID) error {
	gen, err := c.beginCatalogWrite()
	if err != nil {
		return err
	}

	rctx, cancel := c.remoteCtx(ctx)
	err = c.store.DeleteKnowledgeBaseItem(rctx, id)
	cancel()
	if err != nil {
		c.log.Errorw("delete knowledge base item failed", "id", id, "error", err)
		return remoteErr("delete knowledge base item", err)
	}
	c.commit(gen, func() {
		c.caches.knowledgeBase = slices.DeleteFunc(c.caches.knowledgeBase, func(k *models.KnowledgeBaseItem) bool { return k.ID == id })
	})
	return nil
}
