package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/nguyentranbao-ct/crm-console/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

type PasswordResetRepository interface {
	Create(ctx context.Context, reset *models.PasswordReset) error
	// GetActiveByTokenHash only matches unused, unexpired tickets.
	GetActiveByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordReset, error)
	MarkUsed(ctx context.Context, id models.ObjectID) error
}

type passwordResetRepo struct {
	baseRepo[models.PasswordReset]
}

func NewPasswordResetRepository(db *DB) PasswordResetRepository {
	return &passwordResetRepo{
		baseRepo: newBaseRepo[models.PasswordReset](db.Database),
	}
}

func (r *passwordResetRepo) Create(ctx context.Context, reset *models.PasswordReset) error {
	reset.ID = ""
	reset.CreatedAt = time.Now()
	id, err := r.Insert(ctx, *reset)
	if err != nil {
		return fmt.Errorf("failed to create password reset: %w", err)
	}
	reset.ID = models.ObjectID(id)
	return nil
}

func (r *passwordResetRepo) GetActiveByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordReset, error) {
	return r.FindOne(ctx, bson.M{
		"token_hash": tokenHash,
		"used_at":    bson.M{"$exists": false},
		"expires_at": bson.M{"$gt": time.Now()},
	})
}

func (r *passwordResetRepo) MarkUsed(ctx context.Context, id models.ObjectID) error {
	if err := r.UpdateFields(ctx, byID(id), bson.M{"used_at": time.Now()}); err != nil {
		return fmt.Errorf("failed to mark password reset used: %w", err)
	}
	return nil
}
