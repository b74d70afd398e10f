package app

import (
	"github.com/nguyentranbao-ct/crm-console/internal/config"
	"github.com/nguyentranbao-ct/crm-console/internal/console"
	"github.com/nguyentranbao-ct/crm-console/internal/kafka"
	"github.com/nguyentranbao-ct/crm-console/internal/logger"
	"github.com/nguyentranbao-ct/crm-console/internal/repo/mailer"
	"github.com/nguyentranbao-ct/crm-console/internal/repo/mongodb"
	"github.com/nguyentranbao-ct/crm-console/internal/server"
	"github.com/nguyentranbao-ct/crm-console/internal/usecase"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap/zapcore"
)

func Invoke(funcs ...any) *fx.App {
	conf := config.MustLoad()
	if err := logger.Init(conf.Log.Level, conf.Log.Format); err != nil {
		panic(err)
	}
	log := logger.Named("app")
	log.Debugw("config loaded",
		"server_addr", conf.Server.Addr,
		"database", conf.Database.Database,
		"kafka_enabled", conf.Kafka.Enabled,
		"mail_enabled", conf.Mail.Enabled,
		"oauth_enabled", conf.OAuth.Enabled,
	)

	return fx.New(
		fx.WithLogger(func() fxevent.Logger {
			l := &fxevent.ZapLogger{
				Logger: log.Desugar(),
			}
			l.UseLogLevel(zapcore.DebugLevel)
			return l
		}),
		fx.Provide(
			newMongoDB,

			mongodb.NewOperatorRepository,
			mongodb.NewContactRepository,
			mongodb.NewChatRepository,
			mongodb.NewMessageRepository,
			mongodb.NewQuickReplyRepository,
			mongodb.NewKnowledgeBaseRepository,
			mongodb.NewAuthTokenRepository,
			mongodb.NewPasswordResetRepository,

			kafka.NewLocalFeed,
			kafka.NewPublisher,
			mailer.New,

			usecase.NewAuthUseCase,
			newWorkspaceStore,
			usecase.NewWorkspaceInitializer,

			newRegistry,

			fx.Annotate(
				func(uc *usecase.AuthUseCase) *usecase.AuthUseCase { return uc },
				fx.As(new(server.Authenticator), new(usecase.OperatorAccounts)),
			),
			fx.Annotate(
				func(r *console.Registry) *console.Registry { return r },
				fx.As(new(server.Sessions), new(kafka.EventHandler)),
			),
		),
		fx.Supply(conf),
		fx.Invoke(seedWorkspace),
		fx.Invoke(scheduleTokenCleanup),
		fx.Invoke(funcs...),
	)
}
