package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/nguyentranbao-ct/crm-console/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

type AuthTokenRepository interface {
	Create(ctx context.Context, token *models.AuthToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.AuthToken, error)
	RevokeToken(ctx context.Context, tokenHash string) error
	RevokeOperatorTokens(ctx context.Context, operatorID models.ObjectID) error
	DeleteExpiredTokens(ctx context.Context) (int64, error)
}

type authTokenRepo struct {
	baseRepo[models.AuthToken]
}

func NewAuthTokenRepository(db *DB) AuthTokenRepository {
	return &authTokenRepo{
		baseRepo: newBaseRepo[models.AuthToken](db.Database),
	}
}

func (r *authTokenRepo) Create(ctx context.Context, token *models.AuthToken) error {
	token.ID = ""
	token.CreatedAt = time.Now()

	id, err := r.Insert(ctx, *token)
	if err != nil {
		return fmt.Errorf("failed to create auth token: %w", err)
	}
	token.ID = models.ObjectID(id)
	return nil
}

func (r *authTokenRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*models.AuthToken, error) {
	return r.FindOne(ctx, bson.M{"token_hash": tokenHash})
}

func (r *authTokenRepo) RevokeToken(ctx context.Context, tokenHash string) error {
	err := r.UpdateFields(ctx, bson.M{"token_hash": tokenHash}, bson.M{"is_revoked": true})
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (r *authTokenRepo) RevokeOperatorTokens(ctx context.Context, operatorID models.ObjectID) error {
	filter := bson.M{"operator_id": operatorID, "is_revoked": false}
	update := bson.M{"$set": bson.M{"is_revoked": true}}
	if err := r.UpdateMany(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to revoke operator tokens: %w", err)
	}
	return nil
}

// DeleteExpiredTokens removes expired and revoked tokens. The TTL index does
// the same for expired ones eventually.
func (r *authTokenRepo) DeleteExpiredTokens(ctx context.Context) (int64, error) {
	filter := bson.M{
		"$or": []bson.M{
			{"expires_at": bson.M{"$lt": time.Now()}},
			{"is_revoked": true},
		},
	}
	n, err := r.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	return n, nil
}
