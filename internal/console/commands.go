package console

import (
	"context"
	"strings"

	"github.com/nguyentranbao-ct/crm-console/internal/models"
)

// staleLocked reports whether the session changed since gen was captured.
func (c *Console) staleLocked(gen uint64) bool {
	return c.session.generation != gen
}

// SendMessage persists an operator message. The chat is not touched
// locally: the realtime feed delivers the inserted message back to every
// console, this one included.
func (c *Console) SendMessage(ctx context.Context, chatID models.ObjectID, text string, typ models.MessageType) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if typ == "" {
		typ = models.MessageTypeText
	}

	c.mu.Lock()
	op, err := c.activeLocked()
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	chat := c.caches.chat(chatID)
	if chat == nil {
		c.mu.Unlock()
		return nil, models.ErrChatNotVisible
	}
	if d := Authorize(Request{Actor: op, Action: ActionSendMessage, Chat: chat}); !d.Permit {
		c.mu.Unlock()
		return nil, d.Err()
	}
	if !chat.ID.IsPersisted() {
		c.mu.Unlock()
		return nil, models.ErrChatNotPersisted
	}

	msg := &models.Message{
		ChatID:    chat.ID,
		Sender:    models.OperatorSender(op.ID),
		Text:      text,
		AvatarURL: op.AvatarURL,
		Type:      typ,
		Status:    models.StatusSent,
		Timestamp: c.now().UTC(),
	}
	if err := validate.Struct(msg); err != nil {
		c.mu.Unlock()
		return nil, validationErr(err)
	}
	m := c.pending.begin(MutationSendMessage, chat.ID.String(), c.now())
	gen := c.session.generation
	c.notifyLocked(EventPending)
	c.mu.Unlock()

	rctx, cancel := c.remoteCtx(ctx)
	saved, err := c.store.InsertMessage(rctx, msg)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.log.Errorw("send message failed", "chat_id", chatID, "error", err)
		if !c.staleLocked(gen) {
			c.pending.fail(m.ID, err, c.now())
			c.notifyLocked(EventPending)
		}
		return nil, remoteErr("send message", err)
	}
	if !c.staleLocked(gen) {
		c.pending.confirm(m.ID, saved.ID.String(), c.now())
		c.notifyLocked(EventPending)
	}
	return saved, nil
}

// TakeOverChat assigns the chat to the active operator. The assignment is
// shown immediately and rolled back if the store rejects it.
func (c *Console) TakeOverChat(ctx context.Context, chatID models.ObjectID) (*models.Chat, error) {
	c.mu.Lock()
	op, err := c.activeLocked()
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	chat := c.caches.chat(chatID)
	if chat == nil {
		c.mu.Unlock()
		return nil, models.ErrChatNotVisible
	}
	if d := Authorize(Request{Actor: op, Action: ActionTakeOverChat, Chat: chat}); !d.Permit {
		c.mu.Unlock()
		return nil, d.Err()
	}
	if chat.HandledBy.IsOperator(op.ID) {
		defer c.mu.Unlock()
		return chat.Clone(), nil
	}
	if !chat.ID.IsPersisted() {
		c.mu.Unlock()
		return nil, models.ErrChatNotPersisted
	}

	previous := chat.HandledBy
	next := models.HandledByOperator(op.ID)
	chat.HandledBy = next
	m := c.pending.begin(MutationTakeOver, chat.ID.String(), c.now())
	gen := c.session.generation
	c.notifyLocked(EventChats, EventPending)
	c.mu.Unlock()

	rctx, cancel := c.remoteCtx(ctx)
	err = c.store.UpdateChatHandler(rctx, chatID, next)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.staleLocked(gen) {
		if err != nil {
			return nil, remoteErr("take over chat", err)
		}
		return nil, models.ErrNoActiveOperator
	}
	defer c.notifyLocked(EventChats, EventPending)

	current := c.caches.chat(chatID)
	if err != nil {
		c.log.Errorw("take over failed, rolling back", "chat_id", chatID, "handled_by", previous, "error", err)
		if current != nil && current.HandledBy == next {
			current.HandledBy = previous
		}
		c.pending.fail(m.ID, err, c.now())
		c.enforceInvariantsLocked()
		return nil, remoteErr("take over chat", err)
	}

	c.pending.confirm(m.ID, "", c.now())
	c.log.Infow("chat taken over", "chat_id", chatID, "operator_id", op.ID)
	if current == nil {
		return nil, models.ErrChatNotVisible
	}
	return current.Clone(), nil
}
