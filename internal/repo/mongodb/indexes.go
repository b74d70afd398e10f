package mongodb

import (
	"context"

	"github.com/nguyentranbao-ct/crm-console/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type collectionIndexes struct {
	collection string
	models     []mongo.IndexModel
}

func indexPlan() []collectionIndexes {
	return []collectionIndexes{
		{
			collection: models.Operator{}.CollectionName(),
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "login", Value: 1}}, Options: options.Index().SetUnique(true)},
			},
		},
		{
			collection: models.Contact{}.CollectionName(),
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "owner_id", Value: 1}}},
				{Keys: bson.D{{Key: "created_at", Value: -1}}},
			},
		},
		{
			collection: models.Chat{}.CollectionName(),
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "contact_id", Value: 1}}},
			},
		},
		{
			collection: models.Message{}.CollectionName(),
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "chat_id", Value: 1}, {Key: "timestamp", Value: -1}}},
			},
		},
		{
			collection: models.AuthToken{}.CollectionName(),
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "token_hash", Value: 1}}, Options: options.Index().SetUnique(true)},
				{Keys: bson.D{{Key: "operator_id", Value: 1}}},
				{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
			},
		},
		{
			collection: models.PasswordReset{}.CollectionName(),
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "token_hash", Value: 1}}, Options: options.Index().SetUnique(true)},
				{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
			},
		},
	}
}

// EnsureIndexes creates the indexes the repositories rely on. Failures are
// logged and skipped so a restricted user can still boot the service.
func EnsureIndexes(ctx context.Context, db *DB, log *zap.Logger) {
	for _, plan := range indexPlan() {
		names, err := db.Database.Collection(plan.collection).Indexes().CreateMany(ctx, plan.models)
		if err != nil {
			log.Warn("failed to create indexes",
				zap.String("collection", plan.collection),
				zap.Error(err))
			continue
		}
		log.Debug("indexes ensured",
			zap.String("collection", plan.collection),
			zap.Strings("indexes", names))
	}
}
