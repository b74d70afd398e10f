package console

import (
	"context"
	"slices"

	"github.com/nguyentranbao-ct/crm-console/internal/models"
	"golang.org/x/sync/errgroup"
)

type caches struct {
	operators []*models.Operator
	// rosterKnown is false until the operator list was fetched successfully;
	// roster checks on the active operator are skipped before that.
	rosterKnown   bool
	contacts      []*models.Contact
	chats         []*models.Chat
	quickReplies  []*models.QuickReply
	knowledgeBase []*models.KnowledgeBaseItem
	channels      []*models.Channel
}

type workspace struct {
	operators     []*models.Operator
	operatorsOK   bool
	contacts      []*models.Contact
	chats         []*models.Chat
	quickReplies  []*models.QuickReply
	knowledgeBase []*models.KnowledgeBaseItem
}

// Load fetches every collection concurrently and applies the results in a
// single state update. A failed fetch leaves that collection empty.
func (c *Console) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.session.active == nil {
		c.mu.Unlock()
		return models.ErrNoActiveOperator
	}
	gen := c.session.generation
	c.mu.Unlock()

	ws := c.fetchWorkspace(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.generation != gen {
		c.log.Infow("discarding stale workspace load")
		return nil
	}

	for _, chat := range ws.chats {
		if chat.Messages == nil {
			chat.Messages = []*models.Message{}
		}
		sortMessages(chat.Messages)
		if chat.LastMessage == "" && len(chat.Messages) > 0 {
			refreshSummary(chat, c.opts.Location)
		}
	}
	sortChats(ws.chats)

	c.caches.operators = ws.operators
	c.caches.rosterKnown = ws.operatorsOK
	c.caches.contacts = ws.contacts
	c.caches.chats = ws.chats
	c.caches.quickReplies = ws.quickReplies
	c.caches.knowledgeBase = ws.knowledgeBase

	c.enforceInvariantsLocked()
	c.notifyLocked(EventOperators, EventContacts, EventChats, EventCatalog, EventSession)

	c.log.Infow("workspace loaded",
		"operators", len(ws.operators),
		"contacts", len(ws.contacts),
		"chats", len(ws.chats),
		"quick_replies", len(ws.quickReplies),
		"knowledge_base", len(ws.knowledgeBase),
	)
	return nil
}

func (c *Console) fetchWorkspace(ctx context.Context) workspace {
	var ws workspace
	var g errgroup.Group

	g.Go(func() error {
		ws.operators, ws.operatorsOK = fetch(ctx, c, "operators", c.store.ListOperators)
		return nil
	})
	g.Go(func() error {
		ws.contacts, _ = fetch(ctx, c, "contacts", c.store.ListContacts)
		return nil
	})
	g.Go(func() error {
		ws.chats, _ = fetch(ctx, c, "chats", c.store.ListChats)
		return nil
	})
	g.Go(func() error {
		ws.quickReplies, _ = fetch(ctx, c, "quick_replies", c.store.ListQuickReplies)
		return nil
	})
	g.Go(func() error {
		ws.knowledgeBase, _ = fetch(ctx, c, "knowledge_base", c.store.ListKnowledgeBase)
		return nil
	})

	_ = g.Wait()
	return ws
}

// fetch runs one bounded list call. Failures degrade to an empty collection.
func fetch[T any](ctx context.Context, c *Console, name string, list func(context.Context) ([]T, error)) ([]T, bool) {
	rctx, cancel := c.remoteCtx(ctx)
	defer cancel()

	items, err := list(rctx)
	if err != nil {
		c.log.Errorw("workspace fetch failed", "collection", name, "error", err)
		return []T{}, false
	}
	if items == nil {
		items = []T{}
	}
	return items, true
}

// sortChats orders chats by latest message, newest first. Chats without
// messages use the epoch floor and keep their relative order at the end.
func sortChats(chats []*models.Chat) {
	slices.SortStableFunc(chats, func(a, b *models.Chat) int {
		return b.LatestActivity().Compare(a.LatestActivity())
	})
}

func sortMessages(msgs []*models.Message) {
	slices.SortStableFunc(msgs, func(a, b *models.Message) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
}

func (cs *caches) operator(id models.ObjectID) *models.Operator {
	i := slices.IndexFunc(cs.operators, func(o *models.Operator) bool { return o.ID == id })
	if i < 0 {
		return nil
	}
	return cs.operators[i]
}

func (cs *caches) contact(id models.ObjectID) *models.Contact {
	i := slices.IndexFunc(cs.contacts, func(ct *models.Contact) bool { return ct.ID == id })
	if i < 0 {
		return nil
	}
	return cs.contacts[i]
}

func (cs *caches) chat(id models.ObjectID) *models.Chat {
	i := slices.IndexFunc(cs.chats, func(ch *models.Chat) bool { return ch.ID == id })
	if i < 0 {
		return nil
	}
	return cs.chats[i]
}

func (cs *caches) chatForContact(contactID models.ObjectID) *models.Chat {
	i := slices.IndexFunc(cs.chats, func(ch *models.Chat) bool { return ch.ContactID == contactID })
	if i < 0 {
		return nil
	}
	return cs.chats[i]
}

func (cs *caches) removeContact(id models.ObjectID) {
	cs.contacts = slices.DeleteFunc(cs.contacts, func(ct *models.Contact) bool { return ct.ID == id })
	cs.chats = slices.DeleteFunc(cs.chats, func(ch *models.Chat) bool { return ch.ContactID == id })
}

func (cs *caches) removeOperator(id models.ObjectID) {
	cs.operators = slices.DeleteFunc(cs.operators, func(o *models.Operator) bool { return o.ID == id })
}

func replaceByID[T any](items []*T, id func(*T) models.ObjectID, updated *T) bool {
	target := id(updated)
	for i, it := range items {
		if id(it) == target {
			items[i] = updated
			return true
		}
	}
	return false
}

// Operators returns the roster.
func (c *Console) Operators() ([]*models.Operator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.activeLocked(); err != nil {
		return nil, err
	}
	out := make([]*models.Operator, 0, len(c.caches.operators))
	for _, o := range c.caches.operators {
		out = append(out, o.Clone())
	}
	return out, nil
}
