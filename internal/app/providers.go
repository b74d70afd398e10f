package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"

	"github.com/nguyentranbao-ct/crm-console/internal/config"
	"github.com/nguyentranbao-ct/crm-console/internal/console"
	"github.com/nguyentranbao-ct/crm-console/internal/kafka"
	"github.com/nguyentranbao-ct/crm-console/internal/logger"
	"github.com/nguyentranbao-ct/crm-console/internal/repo/mailer"
	"github.com/nguyentranbao-ct/crm-console/internal/repo/mongodb"
	"github.com/nguyentranbao-ct/crm-console/internal/usecase"
)

const tokenCleanupInterval = time.Hour

func newMongoDB(lc fx.Lifecycle, cfg *config.Config) (*mongodb.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := mongodb.NewConnection(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init mongo client: %w", err)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			mongodb.EnsureIndexes(ctx, db, logger.Named("mongodb").Desugar())
			return nil
		},
		OnStop: db.Close,
	})
	return db, nil
}

func newWorkspaceStore(
	cfg *config.Config,
	operators mongodb.OperatorRepository,
	contacts mongodb.ContactRepository,
	chats mongodb.ChatRepository,
	messages mongodb.MessageRepository,
	replies mongodb.QuickReplyRepository,
	kb mongodb.KnowledgeBaseRepository,
	accounts usecase.OperatorAccounts,
	publisher kafka.Publisher,
) *usecase.WorkspaceStore {
	return usecase.NewWorkspaceStore(cfg, usecase.WorkspaceRepos{
		Operators:     operators,
		Contacts:      contacts,
		Chats:         chats,
		Messages:      messages,
		QuickReplies:  replies,
		KnowledgeBase: kb,
	}, accounts, publisher)
}

func newRegistry(
	lc fx.Lifecycle,
	cfg *config.Config,
	store *usecase.WorkspaceStore,
	auth *usecase.AuthUseCase,
	mail mailer.Mailer,
) *console.Registry {
	registry := console.NewRegistry(console.Deps{
		Store:  store,
		Auth:   auth,
		Mailer: mail,
		Logger: logger.Named("console"),
		Options: console.Options{
			RequestTimeout: cfg.Console.RequestTimeout,
			Location:       cfg.Console.Location(),
		},
	})
	lc.Append(fx.StopHook(registry.CloseAll))
	return registry
}

func seedWorkspace(lc fx.Lifecycle, seeder *usecase.WorkspaceInitializer) {
	lc.Append(fx.Hook{
		OnStart: seeder.Seed,
	})
}

// scheduleTokenCleanup purges expired session tokens every hour.
func scheduleTokenCleanup(lc fx.Lifecycle, auth *usecase.AuthUseCase) {
	log := logger.Named("token-cleanup")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				ticker := time.NewTicker(tokenCleanupInterval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						if err := auth.CleanupExpiredTokens(ctx); err != nil {
							log.Warnw("token cleanup failed", "error", err)
						}
					}
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			<-done
			return nil
		},
	})
}
