package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/nguyentranbao-ct/crm-console/internal/config"
)

type DB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func clientOptions(cfg config.DatabaseConfig) *options.ClientOptions {
	opts := options.Client().
		SetAppName("crm-console").
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMaxConnIdleTime(30 * time.Second).
		SetTimeout(cfg.Timeout)
	if cfg.URI != "" {
		return opts.ApplyURI(cfg.URI)
	}
	opts.SetHosts(cfg.Hosts).SetDirect(cfg.Direct)
	if cfg.Password != "" {
		opts.SetAuth(options.Credential{
			AuthSource: cfg.AuthDB,
			Username:   cfg.Username,
			Password:   cfg.Password,
		})
	}
	return opts
}

// NewConnection connects and pings the primary, so a bad address fails
// at startup rather than on the first query.
func NewConnection(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	client, err := mongo.Connect(ctx, clientOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return &DB{
		Client:   client,
		Database: client.Database(cfg.Database),
	}, nil
}

func (db *DB) Close(ctx context.Context) error {
	return db.Client.Disconnect(ctx)
}
