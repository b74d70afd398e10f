package models

import (
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

type QuickReply struct {
	ID        ObjectID  `bson:"_id,omitempty" json:"id"`
	Shortcut  string    `bson:"shortcut" json:"shortcut" validate:"required,startswith=/"`
	Text      string    `bson:"text" json:"text" validate:"required"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

func (QuickReply) CollectionName() string {
	return "quick_replies"
}

func (q QuickReply) GetObjectID() ObjectID {
	return q.ID
}

func (q QuickReply) GetUpdates() any {
	return bson.M{
		"shortcut":   q.Shortcut,
		"text":       q.Text,
		"updated_at": time.Now(),
	}
}

type KnowledgeBaseItem struct {
	ID        ObjectID  `bson:"_id,omitempty" json:"id"`
	Title     string    `bson:"title" json:"title" validate:"required"`
	Content   string    `bson:"content" json:"content" validate:"required"`
	Tags      []string  `bson:"tags" json:"tags"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

func (KnowledgeBaseItem) CollectionName() string {
	return "knowledge_base"
}

func (k KnowledgeBaseItem) GetObjectID() ObjectID {
	return k.ID
}

func (k KnowledgeBaseItem) GetUpdates() any {
	return bson.M{
		"title":      k.Title,
		"content":    k.Content,
		"tags":       k.Tags,
		"updated_at": time.Now(),
	}
}

func (k *KnowledgeBaseItem) Clone() *KnowledgeBaseItem {
	if k == nil {
		return nil
	}
	out := *k
	out.Tags = slices.Clone(k.Tags)
	return &out
}

// Channel is a connected messaging channel, e.g. a WhatsApp number.
type Channel struct {
	ID        string `json:"id" validate:"required"`
	Name      string `json:"name" validate:"required"`
	Kind      string `json:"kind" validate:"required"`
	Connected bool   `json:"connected"`
}
