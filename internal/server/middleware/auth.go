package middleware

import (
	"context"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/nguyentranbao-ct/crm-console/internal/models"
)

const (
	ContextKeyUser  = "user"
	ContextKeyToken = "token"
)

type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*models.SessionClaims, error)
}

// ExtractToken reads the bearer token. Browsers cannot set headers on a
// websocket upgrade, so the token query parameter is accepted as well.
func ExtractToken(c echo.Context) string {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		token, ok := strings.CutPrefix(h, "Bearer ")
		if !ok {
			return ""
		}
		return strings.TrimSpace(token)
	}
	return c.QueryParam("token")
}

// JWTAuth validates the session token and exposes its claims as registered
// jwt claims, so handlers can bind `jwt:"sub"` (operator) and `jwt:"jti"`
// (session).
func JWTAuth(v TokenValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := ExtractToken(c)
			if token == "" {
				return models.ErrInvalidToken
			}

			claims, err := v.ValidateToken(c.Request().Context(), token)
			if err != nil {
				return err
			}

			c.Set(ContextKeyToken, token)
			c.Set(ContextKeyUser, &jwt.Token{
				Valid: true,
				Claims: &jwt.RegisteredClaims{
					Subject:   claims.OperatorID,
					ID:        claims.SessionID,
					ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
				},
			})
			return next(c)
		}
	}
}

func GetToken(c echo.Context) string {
	token, _ := c.Get(ContextKeyToken).(string)
	return token
}
