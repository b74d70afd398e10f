package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/nguyentranbao-ct/crm-console/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

type ChatRepository interface {
	// ListWithMessages nests every chat's messages, newest first.
	ListWithMessages(ctx context.Context) ([]*models.Chat, error)
	GetByID(ctx context.Context, id models.ObjectID) (*models.Chat, error)
	ListIDsByContact(ctx context.Context, contactID models.ObjectID) ([]models.ObjectID, error)
	Create(ctx context.Context, chat *models.Chat) (*models.Chat, error)
	UpdateHandler(ctx context.Context, id models.ObjectID, handledBy models.HandledBy) error
	UpdateSummary(ctx context.Context, id models.ObjectID, lastMessage, timestamp string) error
	DeleteByContact(ctx context.Context, contactID models.ObjectID) (int64, error)
}

type chatRepo struct {
	baseRepo[models.Chat]
}

func NewChatRepository(db *DB) ChatRepository {
	return &chatRepo{
		baseRepo: newBaseRepo[models.Chat](db.Database),
	}
}

func (r *chatRepo) ListWithMessages(ctx context.Context) ([]*models.Chat, error) {
	pipeline := []bson.M{
		{
			"$lookup": bson.M{
				"from": models.Message{}.CollectionName(),
				"let":  bson.M{"chat_id": "$_id"},
				"pipeline": []bson.M{
					{
						"$match": bson.M{
							"$expr": bson.M{"$eq": []any{"$chat_id", "$$chat_id"}},
						},
					},
					{
						"$sort": bson.M{"timestamp": -1},
					},
				},
				"as": "messages",
			},
		},
		{
			"$sort": bson.M{"updated_at": -1},
		},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate chats: %w", err)
	}
	defer cursor.Close(ctx)

	var chats []*models.Chat
	if err := cursor.All(ctx, &chats); err != nil {
		return nil, fmt.Errorf("failed to decode chats: %w", err)
	}
	return chats, nil
}

func (r *chatRepo) GetByID(ctx context.Context, id models.ObjectID) (*models.Chat, error) {
	return r.FindByID(ctx, id.String())
}

func (r *chatRepo) ListIDsByContact(ctx context.Context, contactID models.ObjectID) ([]models.ObjectID, error) {
	chats, err := r.Find(ctx, bson.M{"contact_id": contactID})
	if err != nil {
		return nil, fmt.Errorf("failed to list contact chats: %w", err)
	}
	ids := make([]models.ObjectID, len(chats))
	for i, ch := range chats {
		ids[i] = ch.ID
	}
	return ids, nil
}

func (r *chatRepo) Create(ctx context.Context, chat *models.Chat) (*models.Chat, error) {
	now := time.Now()
	doc := *chat.Clone()
	doc.ID = ""
	doc.Messages = nil
	doc.CreatedAt = now
	doc.UpdatedAt = now

	id, err := r.Insert(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}
	doc.ID = models.ObjectID(id)
	doc.Messages = []*models.Message{}
	return &doc, nil
}

func (r *chatRepo) UpdateHandler(ctx context.Context, id models.ObjectID, handledBy models.HandledBy) error {
	err := r.UpdateFields(ctx, byID(id), bson.M{
		"handled_by": handledBy,
		"updated_at": time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to update chat handler: %w", err)
	}
	return nil
}

func (r *chatRepo) UpdateSummary(ctx context.Context, id models.ObjectID, lastMessage, timestamp string) error {
	err := r.UpdateFields(ctx, byID(id), bson.M{
		"last_message": lastMessage,
		"timestamp":    timestamp,
		"updated_at":   time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to update chat summary: %w", err)
	}
	return nil
}

func (r *chatRepo) DeleteByContact(ctx context.Context, contactID models.ObjectID) (int64, error) {
	n, err := r.DeleteMany(ctx, bson.M{"contact_id": contactID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete contact chats: %w", err)
	}
	return n, nil
}
