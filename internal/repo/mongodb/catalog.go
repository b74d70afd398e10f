package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/nguyentranbao-ct/crm-console/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type QuickReplyRepository interface {
	List(ctx context.Context) ([]*models.QuickReply, error)
	Create(ctx context.Context, reply *models.QuickReply) (*models.QuickReply, error)
	Update(ctx context.Context, reply *models.QuickReply) (*models.QuickReply, error)
	Delete(ctx context.Context, id models.ObjectID) error
}

type KnowledgeBaseRepository interface {
	List(ctx context.Context) ([]*models.KnowledgeBaseItem, error)
	Create(ctx context.Context, item *models.KnowledgeBaseItem) (*models.KnowledgeBaseItem, error)
	Update(ctx context.Context, item *models.KnowledgeBaseItem) (*models.KnowledgeBaseItem, error)
	Delete(ctx context.Context, id models.ObjectID) error
}

type quickReplyRepo struct {
	baseRepo[models.QuickReply]
}

func NewQuickReplyRepository(db *DB) QuickReplyRepository {
	return &quickReplyRepo{
		baseRepo: newBaseRepo[models.QuickReply](db.Database),
	}
}

func (r *quickReplyRepo) List(ctx context.Context) ([]*models.QuickReply, error) {
	replies, err := r.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "shortcut", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list quick replies: %w", err)
	}
	return pointers(replies), nil
}

func (r *quickReplyRepo) Create(ctx context.Context, reply *models.QuickReply) (*models.QuickReply, error) {
	now := time.Now()
	doc := *reply
	doc.ID = ""
	doc.CreatedAt = now
	doc.UpdatedAt = now
	id, err := r.Insert(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to create quick reply: %w", err)
	}
	doc.ID = models.ObjectID(id)
	return &doc, nil
}

func (r *quickReplyRepo) Update(ctx context.Context, reply *models.QuickReply) (*models.QuickReply, error) {
	return r.UpdateOne(ctx, byID(reply.ID), *reply)
}

func (r *quickReplyRepo) Delete(ctx context.Context, id models.ObjectID) error {
	return r.DeleteOne(ctx, byID(id))
}

type knowledgeBaseRepo struct {
	baseRepo[models.KnowledgeBaseItem]
}

func NewKnowledgeBaseRepository(db *DB) KnowledgeBaseRepository {
	return &knowledgeBaseRepo{
		baseRepo: newBaseRepo[models.KnowledgeBaseItem](db.Database),
	}
}

func (r *knowledgeBaseRepo) List(ctx context.Context) ([]*models.KnowledgeBaseItem, error) {
	items, err := r.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "title", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge base: %w", err)
	}
	return pointers(items), nil
}

func (r *knowledgeBaseRepo) Create(ctx context.Context, item *models.KnowledgeBaseItem) (*models.KnowledgeBaseItem, error) {
	now := time.Now()
	doc := *item.Clone()
	doc.ID = ""
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	doc.CreatedAt = now
	doc.UpdatedAt = now
	id, err := r.Insert(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to create knowledge base item: %w", err)
	}
	doc.ID = models.ObjectID(id)
	return &doc, nil
}

func (r *knowledgeBaseRepo) Update(ctx context.Context, item *models.KnowledgeBaseItem) (*models.KnowledgeBaseItem, error) {
	return r.UpdateOne(ctx, byID(item.ID), *item)
}

func (r *knowledgeBaseRepo) Delete(ctx context.Context, id models.ObjectID) error {
	return r.DeleteOne(ctx, byID(id))
}
