package models

import (
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// HandledBy is either the Bot sentinel or an operator identity.
type HandledBy string

const Bot HandledBy = "bot"

func HandledByOperator(id ObjectID) HandledBy {
	return HandledBy(id)
}

func (h HandledBy) IsBot() bool {
	return h == Bot
}

func (h HandledBy) IsOperator(id ObjectID) bool {
	return id != "" && string(h) == string(id)
}

// Chat is a conversation thread tied to one contact.
// Messages are kept in ascending timestamp order.
type Chat struct {
	ID          ObjectID   `bson:"_id,omitempty" json:"id"`
	ContactID   ObjectID   `bson:"contact_id" json:"contact_id"`
	ContactName string     `bson:"contact_name" json:"contact_name"`
	AvatarURL   string     `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`
	LastMessage string     `bson:"last_message" json:"last_message"`
	Timestamp   string     `bson:"timestamp" json:"timestamp"`
	UnreadCount int        `bson:"unread_count" json:"unread_count"`
	HandledBy   HandledBy  `bson:"handled_by" json:"handled_by"`
	Messages    []*Message `bson:"messages,omitempty" json:"messages"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
}

func (Chat) CollectionName() string {
	return "chats"
}

func (c Chat) GetObjectID() ObjectID {
	return c.ID
}

func (c Chat) GetUpdates() any {
	return bson.M{
		"contact_name": c.ContactName,
		"avatar_url":   c.AvatarURL,
		"last_message": c.LastMessage,
		"timestamp":    c.Timestamp,
		"unread_count": c.UnreadCount,
		"handled_by":   c.HandledBy,
		"updated_at":   time.Now(),
	}
}

var epoch = time.Unix(0, 0).UTC()

// LatestActivity returns the newest message timestamp, or the Unix epoch for
// a chat without messages.
func (c *Chat) LatestActivity() time.Time {
	latest := epoch
	for _, m := range c.Messages {
		if m.Timestamp.After(latest) {
			latest = m.Timestamp
		}
	}
	return latest
}

func (c *Chat) HasMessage(id ObjectID) bool {
	if id == "" {
		return false
	}
	return slices.ContainsFunc(c.Messages, func(m *Message) bool {
		return m.ID == id
	})
}

// Clone copies the chat and its message slice. Message values are shared and
// must be treated as immutable.
func (c *Chat) Clone() *Chat {
	if c == nil {
		return nil
	}
	out := *c
	out.Messages = slices.Clone(c.Messages)
	if out.Messages == nil {
		out.Messages = []*Message{}
	}
	return &out
}
