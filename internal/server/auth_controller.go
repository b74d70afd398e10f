package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nguyentranbao-ct/crm-console/internal/console"
	"github.com/nguyentranbao-ct/crm-console/internal/models"
	pkgmdw "github.com/nguyentranbao-ct/crm-console/internal/server/middleware"
)

type authController struct {
	auth     Authenticator
	sessions Sessions
}

func newAuthController(auth Authenticator, sessions Sessions) *authController {
	return &authController{
		auth:     auth,
		sessions: sessions,
	}
}

type emptyRequest struct{}

type oauthCallbackRequest struct {
	State string `query:"state" validate:"required"`
	Code  string `query:"code" validate:"required"`
}

type oauthURLResponse struct {
	URL string `json:"url"`
}

type logoutRequest struct {
	SessionID string `jwt:"jti"`
}

func (ac *authController) Login(c echo.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	return ac.openSession(c, func(ctx context.Context, cons *console.Console) (*models.Operator, error) {
		return cons.Login(ctx, req.Login, req.Password)
	})
}

func (ac *authController) SignUp(c echo.Context, req models.SignUpRequest) (*models.LoginResponse, error) {
	return ac.openSession(c, func(ctx context.Context, cons *console.Console) (*models.Operator, error) {
		return cons.SignUp(ctx, req)
	})
}

func (ac *authController) OAuthURL(c echo.Context, _ emptyRequest) (*oauthURLResponse, error) {
	url, err := ac.auth.OAuthURL()
	if err != nil {
		return nil, err
	}
	return &oauthURLResponse{URL: url}, nil
}

func (ac *authController) OAuthCallback(c echo.Context, req oauthCallbackRequest) (*models.LoginResponse, error) {
	return ac.openSession(c, func(ctx context.Context, cons *console.Console) (*models.Operator, error) {
		op, err := ac.auth.OAuthCallback(ctx, req.State, req.Code)
		if err != nil {
			return nil, err
		}
		return cons.StartSession(ctx, op), nil
	})
}

func (ac *authController) RequestPasswordReset(c echo.Context, req models.PasswordResetRequest) (*pkgmdw.Response, error) {
	if err := ac.auth.RequestPasswordReset(c.Request().Context(), req.Login); err != nil {
		return nil, err
	}
	return accepted(), nil
}

func (ac *authController) ConfirmPasswordReset(c echo.Context, req models.PasswordResetConfirmRequest) error {
	return ac.auth.ConfirmPasswordReset(c.Request().Context(), req)
}

func (ac *authController) Logout(c echo.Context, req logoutRequest) error {
	if err := ac.auth.RevokeToken(c.Request().Context(), pkgmdw.GetToken(c)); err != nil {
		return err
	}
	ac.sessions.Close(req.SessionID)
	return nil
}

func (ac *authController) Me(c echo.Context, _ emptyRequest) (console.Snapshot, error) {
	return consoleFrom(c).Snapshot(), nil
}

// openSession runs a sign-in flow on a fresh console and issues a token
// bound to it. The console is dropped when the flow fails.
func (ac *authController) openSession(c echo.Context, signIn func(context.Context, *console.Console) (*models.Operator, error)) (*models.LoginResponse, error) {
	ctx := c.Request().Context()
	cons := ac.sessions.Open()

	op, err := signIn(ctx, cons)
	if err == nil && op == nil {
		err = models.ErrNoActiveOperator
	}
	if err != nil {
		ac.sessions.Close(cons.ID())
		return nil, err
	}

	resp, err := ac.auth.IssueToken(ctx, op, cons.ID(), c.Request().UserAgent(), c.RealIP())
	if err != nil {
		ac.sessions.Close(cons.ID())
		return nil, err
	}
	return resp, nil
}

func accepted() *pkgmdw.Response {
	return &pkgmdw.Response{
		Status:  http.StatusAccepted,
		Success: true,
	}
}
