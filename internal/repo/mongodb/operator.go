package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/nguyentranbao-ct/crm-console/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type OperatorRepository interface {
	List(ctx context.Context) ([]*models.Operator, error)
	GetByID(ctx context.Context, id models.ObjectID) (*models.Operator, error)
	// GetByLogin includes the password hash.
	GetByLogin(ctx context.Context, login string) (*models.Operator, error)
	Create(ctx context.Context, op *models.Operator) (*models.Operator, error)
	Update(ctx context.Context, op *models.Operator) (*models.Operator, error)
	UpdatePassword(ctx context.Context, id models.ObjectID, hash string) error
	Delete(ctx context.Context, id models.ObjectID) error
	Count(ctx context.Context) (int64, error)
}

type operatorRepo struct {
	baseRepo[models.Operator]
}

func NewOperatorRepository(db *DB) OperatorRepository {
	return &operatorRepo{
		baseRepo: newBaseRepo[models.Operator](db.Database),
	}
}

var withoutPasswordHash = bson.M{"password_hash": 0}

func (r *operatorRepo) List(ctx context.Context) ([]*models.Operator, error) {
	opts := options.Find().
		SetProjection(withoutPasswordHash).
		SetSort(bson.D{{Key: "created_at", Value: 1}})
	ops, err := r.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list operators: %w", err)
	}
	return pointers(ops), nil
}

func (r *operatorRepo) GetByID(ctx context.Context, id models.ObjectID) (*models.Operator, error) {
	if !id.IsPersisted() {
		return nil, models.ErrNotFound
	}
	return r.FindOne(ctx, byID(id), options.FindOne().SetProjection(withoutPasswordHash))
}

func (r *operatorRepo) GetByLogin(ctx context.Context, login string) (*models.Operator, error) {
	return r.FindOne(ctx, bson.M{"login": login})
}

func (r *operatorRepo) Create(ctx context.Context, op *models.Operator) (*models.Operator, error) {
	now := time.Now()
	doc := *op
	doc.ID = ""
	doc.CreatedAt = now
	doc.UpdatedAt = now

	id, err := r.Insert(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return nil, models.ErrLoginTaken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create operator: %w", err)
	}
	doc.ID = models.ObjectID(id)
	doc.PasswordHash = ""
	return &doc, nil
}

func (r *operatorRepo) Update(ctx context.Context, op *models.Operator) (*models.Operator, error) {
	opts := options.FindOneAndUpdate().SetProjection(withoutPasswordHash)
	updated, err := r.UpdateOne(ctx, byID(op.ID), *op, opts)
	if mongo.IsDuplicateKeyError(err) {
		return nil, models.ErrLoginTaken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update operator: %w", err)
	}
	return updated, nil
}

func (r *operatorRepo) UpdatePassword(ctx context.Context, id models.ObjectID, hash string) error {
	err := r.UpdateFields(ctx, byID(id), bson.M{
		"password_hash": hash,
		"updated_at":    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

func (r *operatorRepo) Delete(ctx context.Context, id models.ObjectID) error {
	if err := r.DeleteOne(ctx, byID(id)); err != nil {
		return fmt.Errorf("failed to delete operator: %w", err)
	}
	return nil
}

func (r *operatorRepo) Count(ctx context.Context) (int64, error) {
	return r.baseRepo.Count(ctx, bson.M{})
}
