package server

import (
	"context"
	"errors"
	"net/http"
	"regexp"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/nguyentranbao-ct/crm-console/internal/config"
	"github.com/nguyentranbao-ct/crm-console/internal/logger"
	pkgmdw "github.com/nguyentranbao-ct/crm-console/internal/server/middleware"
	"github.com/nguyentranbao-ct/crm-console/pkg/ctxval"
)

func StartServer(
	lc fx.Lifecycle,
	sd fx.Shutdowner,
	conf *config.Config,
	auth Authenticator,
	sessions Sessions,
) error {
	log := logger.Named("http")
	e, err := newEcho(conf, auth, sessions, log)
	if err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Infow("starting HTTP server", "addr", conf.Server.Addr)
				if err := e.Start(conf.Server.Addr); !errors.Is(err, http.ErrServerClosed) {
					log.Errorw("HTTP server stopped", "error", err)
					_ = sd.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return e.Shutdown(ctx)
		},
	})
	return nil
}

func newEcho(conf *config.Config, auth Authenticator, sessions Sessions, log *zap.SugaredLogger) (*echo.Echo, error) {
	cors, err := regexp.Compile(conf.Server.CORSPattern)
	if err != nil {
		return nil, err
	}

	metrics, err := pkgmdw.MetricsWithConfig(metricsConfig())
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = pkgmdw.NewValidator()
	e.HTTPErrorHandler = pkgmdw.ErrorHandler(log)

	logConfig := pkgmdw.LogRequestConfig{
		Logger: log,
		Skipper: func(c echo.Context) bool {
			p := c.Request().URL.Path
			return p == "/health" || p == "/metrics" || c.Path() == "/api/v1/ws"
		},
		Redact: []string{"password", "confirm_password", "new_password", "token", "code", "state"},
		Fields: func(c echo.Context) []any {
			if id, ok := ctxval.Get[ctxKey, string](c.Request().Context(), actingOperatorKey); ok {
				return []any{"acting_operator_id", id}
			}
			return nil
		},
	}

	e.Use(pkgmdw.CORS(pkgmdw.CORSConfig{
		AllowOrigin:   cors,
		ExposeHeaders: []string{echo.HeaderXRequestID},
		MaxAge:        600,
	}))
	e.Use(metrics)
	e.Use(pkgmdw.RequestID())
	e.Use(contextValues())
	e.Use(pkgmdw.LogRequest(logConfig))
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			log.Errorw("PANIC RECOVER", "error", err, "stack", string(stack))
			return err
		},
	}))
	if conf.Server.StatsdAddress != "" {
		profiler, err := pkgmdw.ProfilerWithConfig(pkgmdw.ProfilerConfig{
			Address: conf.Server.StatsdAddress,
			Service: "crm-console",
		})
		if err != nil {
			return nil, err
		}
		e.Use(profiler)
	}
	if conf.Server.EnablePprof {
		pkgmdw.PprofWrap(e.Group("/debug/pprof"))
	}

	e.GET("/health", health)

	ac := newAuthController(auth, sessions)
	cc := newConsoleController()

	api := e.Group("/api/v1")
	api.POST("/auth/login", pkgmdw.WrapHandler(ac.Login))
	api.POST("/auth/signup", pkgmdw.WrapHandler(ac.SignUp))
	api.POST("/auth/password-reset", pkgmdw.WrapHandler(ac.RequestPasswordReset))
	api.POST("/auth/password-reset/confirm", pkgmdw.WrapHandler(ac.ConfirmPasswordReset))
	api.GET("/auth/oauth/url", pkgmdw.WrapHandler(ac.OAuthURL))
	api.GET("/auth/oauth/callback", pkgmdw.WrapHandler(ac.OAuthCallback))

	authed := api.Group("",
		pkgmdw.JWTAuth(auth),
		resolveConsole(auth, sessions),
	)
	authed.POST("/auth/logout", pkgmdw.WrapHandler(ac.Logout))
	authed.GET("/auth/me", pkgmdw.WrapHandler(ac.Me))

	authed.GET("/console", pkgmdw.WrapHandler(cc.Snapshot))
	authed.PUT("/console/view", pkgmdw.WrapHandler(cc.SetView))
	authed.PUT("/console/active-chat", pkgmdw.WrapHandler(cc.SetActiveChat))
	authed.PUT("/console/theme", pkgmdw.WrapHandler(cc.SetTheme))
	authed.PUT("/console/whatsapp-mode", pkgmdw.WrapHandler(cc.SetWhatsAppMode))
	authed.PUT("/console/operator", pkgmdw.WrapHandler(cc.SwitchOperator))

	authed.GET("/chats", pkgmdw.WrapHandler(cc.ListChats))
	authed.GET("/chats/:chat_id", pkgmdw.WrapHandler(cc.GetChat))
	authed.POST("/chats/:chat_id/messages", pkgmdw.WrapHandler(cc.SendMessage))
	authed.POST("/chats/:chat_id/take-over", pkgmdw.WrapHandler(cc.TakeOver))
	authed.POST("/contacts/:contact_id/chat", pkgmdw.WrapHandler(cc.NavigateToContact))

	authed.GET("/contacts", pkgmdw.WrapHandler(cc.ListContacts))
	authed.POST("/contacts", pkgmdw.WrapHandler(cc.CreateContact))
	authed.PUT("/contacts/:contact_id", pkgmdw.WrapHandler(cc.UpdateContact))
	authed.DELETE("/contacts/:contact_id", pkgmdw.WrapHandler(cc.DeleteContact))

	authed.GET("/operators", pkgmdw.WrapHandler(cc.ListOperators))
	authed.POST("/operators", pkgmdw.WrapHandler(cc.CreateOperator))
	authed.PUT("/operators/:operator_id", pkgmdw.WrapHandler(cc.UpdateOperator))
	authed.DELETE("/operators/:operator_id", pkgmdw.WrapHandler(cc.DeleteOperator))

	authed.GET("/quick-replies", pkgmdw.WrapHandler(cc.ListQuickReplies))
	authed.POST("/quick-replies", pkgmdw.WrapHandler(cc.CreateQuickReply))
	authed.PUT("/quick-replies/:id", pkgmdw.WrapHandler(cc.UpdateQuickReply))
	authed.DELETE("/quick-replies/:id", pkgmdw.WrapHandler(cc.DeleteQuickReply))

	authed.GET("/knowledge-base", pkgmdw.WrapHandler(cc.ListKnowledgeBase))
	authed.POST("/knowledge-base", pkgmdw.WrapHandler(cc.CreateKnowledgeBaseItem))
	authed.PUT("/knowledge-base/:id", pkgmdw.WrapHandler(cc.UpdateKnowledgeBaseItem))
	authed.DELETE("/knowledge-base/:id", pkgmdw.WrapHandler(cc.DeleteKnowledgeBaseItem))

	authed.GET("/channels", pkgmdw.WrapHandler(cc.ListChannels))
	authed.PUT("/channels", pkgmdw.WrapHandler(cc.SetChannels))

	authed.POST("/emails", pkgmdw.WrapHandler(cc.SendEmail))

	authed.GET("/ws", newSocketHandler(log.Named("ws")).Serve)

	return e, nil
}

func metricsConfig() pkgmdw.MetricsConfig {
	conf := pkgmdw.DefaultMetricsConfig
	conf.Namespace = "crm_console"
	conf.Skipper = func(c echo.Context) bool {
		// websocket streams stay open for the whole session
		return c.Path() == "/api/v1/ws"
	}
	return conf
}

func health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "crm-console",
	})
}
