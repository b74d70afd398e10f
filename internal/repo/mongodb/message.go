package mongodb

import (
	"context"
	"fmt"

	"github.com/nguyentranbao-ct/crm-console/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) (*models.Message, error)
	CreateMany(ctx context.Context, msgs []*models.Message) error
	DeleteByChats(ctx context.Context, chatIDs []models.ObjectID) (int64, error)
}

type messageRepo struct {
	baseRepo[models.Message]
}

func NewMessageRepository(db *DB) MessageRepository {
	return &messageRepo{
		baseRepo: newBaseRepo[models.Message](db.Database),
	}
}

func (r *messageRepo) Create(ctx context.Context, msg *models.Message) (*models.Message, error) {
	doc := *msg
	doc.ID = ""
	id, err := r.Insert(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	doc.ID = models.ObjectID(id)
	return &doc, nil
}

func (r *messageRepo) CreateMany(ctx context.Context, msgs []*models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	docs := make([]models.Message, len(msgs))
	for i, m := range msgs {
		docs[i] = *m
		docs[i].ID = ""
	}
	if _, err := r.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to create messages: %w", err)
	}
	return nil
}

func (r *messageRepo) DeleteByChats(ctx context.Context, chatIDs []models.ObjectID) (int64, error) {
	if len(chatIDs) == 0 {
		return 0, nil
	}
	n, err := r.DeleteMany(ctx, bson.M{"chat_id": bson.M{"$in": chatIDs}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete messages: %w", err)
	}
	return n, nil
}
