package console

import (
	"slices"
	"time"

	"github.com/nguyentranbao-ct/crm-console/internal/models"
)

const clockLayout = "15:04"

// applyMessage merges a realtime message into the chat list. Messages for
// unknown chats and already-seen message ids are dropped. The chat list is
// re-sorted in place; the touched chat is returned when something changed.
func applyMessage(chats []*models.Chat, msg *models.Message, loc *time.Location) (*models.Chat, bool) {
	i := slices.IndexFunc(chats, func(ch *models.Chat) bool { return ch.ID == msg.ChatID })
	if i < 0 {
		return nil, false
	}
	chat := chats[i]
	if chat.HasMessage(msg.ID) {
		return chat, false
	}

	chat.Messages = append(chat.Messages, msg)
	sortMessages(chat.Messages)
	refreshSummary(chat, loc)
	sortChats(chats)
	return chat, true
}

// refreshSummary copies the newest message into the chat's denormalized fields.
func refreshSummary(chat *models.Chat, loc *time.Location) {
	if len(chat.Messages) == 0 {
		return
	}
	latest := chat.Messages[len(chat.Messages)-1]
	chat.LastMessage = latest.Text
	chat.Timestamp = latest.Timestamp.In(loc).Format(clockLayout)
}

// ApplyMessageInserted is the realtime entry point for one message insert.
// It reports whether the console state changed.
func (c *Console) ApplyMessageInserted(msg *models.Message) bool {
	if msg == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	chat, changed := applyMessage(c.caches.chats, msg, c.opts.Location)
	if !changed {
		return false
	}
	if msg.Sender.Kind == models.SenderContact && chat.ID != c.router.activeChatID {
		chat.UnreadCount++
	}
	c.notifyLocked(EventChats)
	return true
}
