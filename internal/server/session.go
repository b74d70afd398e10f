package server

import (
	"context"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/singleflight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nguyentranbao-ct/crm-console/internal/console"
	"github.com/nguyentranbao-ct/crm-console/internal/models"
	pkgmdw "github.com/nguyentranbao-ct/crm-console/internal/server/middleware"
	"github.com/nguyentranbao-ct/crm-console/pkg/ctxval"
)

type Authenticator interface {
	pkgmdw.TokenValidator
	IssueToken(ctx context.Context, op *models.Operator, sessionID, userAgent, ipAddress string) (*models.LoginResponse, error)
	Operator(ctx context.Context, id string) (*models.Operator, error)
	RevokeToken(ctx context.Context, token string) error
	RequestPasswordReset(ctx context.Context, login string) error
	ConfirmPasswordReset(ctx context.Context, req models.PasswordResetConfirmRequest) error
	OAuthURL() (string, error)
	OAuthCallback(ctx context.Context, state, code string) (*models.Operator, error)
}

// Sessions holds one console per issued session token.
type Sessions interface {
	Open() *console.Console
	OpenWithID(id string) *console.Console
	Get(id string) (*console.Console, bool)
	Close(id string)
}

type ctxKey string

const (
	actingOperatorKey ctxKey = "acting_operator_id"

	contextKeyConsole = "console"
)

// contextValues makes values set by handlers visible to the outer
// middlewares, the request logger in particular.
func contextValues() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			c.SetRequest(req.WithContext(ctxval.Wrap(req.Context())))
			return next(c)
		}
	}
}

// resolveConsole attaches the console of the token's session. A console
// that is gone, e.g. after a restart, is reopened under the same id and
// reloaded for the token's operator.
func resolveConsole(auth Authenticator, sessions Sessions) echo.MiddlewareFunc {
	var restores singleflight.Group

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			sessionID := pkgmdw.GetSessionID(c)
			operatorID := pkgmdw.GetOperatorID(c)
			if sessionID == "" || operatorID == "" {
				return models.ErrInvalidToken
			}

			cons, ok := sessions.Get(sessionID)
			if !ok || cons.AuthenticatedOperator() == nil {
				v, err, _ := restores.Do(sessionID, func() (any, error) {
					op, err := auth.Operator(ctx, operatorID)
					if status.Code(err) == codes.NotFound {
						return nil, models.ErrInvalidToken
					}
					if err != nil {
						return nil, err
					}
					restored := sessions.OpenWithID(sessionID)
					restored.StartSession(ctx, op)
					return restored, nil
				})
				if err != nil {
					return err
				}
				cons = v.(*console.Console)
			} else if cons.AuthenticatedOperator().ID.String() != operatorID {
				return models.ErrInvalidToken
			}

			c.Set(contextKeyConsole, cons)
			err := next(c)
			if op := cons.CurrentOperator(); op != nil {
				ctxval.Set(ctx, actingOperatorKey, op.ID.String())
			}
			return err
		}
	}
}

func consoleFrom(c echo.Context) *console.Console {
	cons, _ := c.Get(contextKeyConsole).(*console.Console)
	return cons
}
