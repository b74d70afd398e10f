package console

import (
	"github.com/nguyentranbao-ct/crm-console/internal/models"
)

// CanSeeContact: managers see every contact, agents only the ones they own.
func CanSeeContact(op *models.Operator, ct *models.Contact) bool {
	if op == nil || ct == nil {
		return false
	}
	return op.IsManager() || ct.OwnerID == op.ID
}

// CanSeeChat: managers see every chat, agents see their own chats and the
// ones still handled by the bot.
func CanSeeChat(op *models.Operator, ch *models.Chat) bool {
	if op == nil || ch == nil {
		return false
	}
	return op.IsManager() || ch.HandledBy.IsOperator(op.ID) || ch.HandledBy.IsBot()
}

// VisibleContacts never mutates its input; the result is a new slice.
func VisibleContacts(op *models.Operator, contacts []*models.Contact) []*models.Contact {
	out := make([]*models.Contact, 0, len(contacts))
	for _, ct := range contacts {
		if CanSeeContact(op, ct) {
			out = append(out, ct)
		}
	}
	return out
}

func VisibleChats(op *models.Operator, chats []*models.Chat) []*models.Chat {
	out := make([]*models.Chat, 0, len(chats))
	for _, ch := range chats {
		if CanSeeChat(op, ch) {
			out = append(out, ch)
		}
	}
	return out
}

// VisibleContacts returns copies of the contacts the active operator may see.
func (c *Console) VisibleContacts() []*models.Contact {
	c.mu.Lock()
	defer c.mu.Unlock()

	visible := VisibleContacts(c.session.active, c.caches.contacts)
	out := make([]*models.Contact, len(visible))
	for i, ct := range visible {
		out[i] = ct.Clone()
	}
	return out
}

// VisibleChats returns copies of the chats the active operator may see, in
// activity order.
func (c *Console) VisibleChats() []*models.Chat {
	c.mu.Lock()
	defer c.mu.Unlock()

	visible := VisibleChats(c.session.active, c.caches.chats)
	out := make([]*models.Chat, len(visible))
	for i, ch := range visible {
		out[i] = ch.Clone()
	}
	return out
}

// Chat returns one visible chat.
func (c *Console) Chat(id models.ObjectID) (*models.Chat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := c.caches.chat(id)
	if !CanSeeChat(c.session.active, ch) {
		return nil, models.ErrChatNotVisible
	}
	return ch.Clone(), nil
}
