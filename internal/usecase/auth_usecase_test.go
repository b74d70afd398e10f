package usecase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nguyentranbao-ct/crm-console/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func signUpRequest() models.SignUpRequest {
	return models.SignUpRequest{
		Name:            "Bruno Costa",
		Login:           "Bruno@CRM.local",
		Password:        "s3cret!",
		ConfirmPassword: "s3cret!",
	}
}

func TestSignUp(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects mismatched confirmation before any store call", func(t *testing.T) {
		f, err := newAuthFixture(testConfig())
		require.NoError(t, err)

		req := signUpRequest()
		req.ConfirmPassword = "other"
		_, err = f.uc.SignUp(ctx, req)
		assert.ErrorIs(t, err, models.ErrPasswordMismatch)
		assert.Zero(t, f.operators.calls)
	})

	t.Run("creates an agent with a hashed password", func(t *testing.T) {
		f, err := newAuthFixture(testConfig())
		require.NoError(t, err)

		op, err := f.uc.SignUp(ctx, signUpRequest())
		require.NoError(t, err)
		assert.Equal(t, models.RoleAgent, op.Role)
		assert.Equal(t, "bruno@crm.local", op.Login)
		assert.Empty(t, op.PasswordHash)

		require.Len(t, f.operators.items, 1)
		stored := f.operators.items[0]
		assert.NotEqual(t, "s3cret!", stored.PasswordHash)
		assert.NotEmpty(t, stored.PasswordHash)
	})

	t.Run("rejects a taken login", func(t *testing.T) {
		f, err := newAuthFixture(testConfig())
		require.NoError(t, err)

		_, err = f.uc.SignUp(ctx, signUpRequest())
		require.NoError(t, err)
		_, err = f.uc.SignUp(ctx, signUpRequest())
		assert.Equal(t, codes.AlreadyExists, status.Code(err))
	})

	t.Run("falls back to a minimal agent when the profile is unreadable", func(t *testing.T) {
		f, err := newAuthFixture(testConfig())
		require.NoError(t, err)
		f.operators.getByIDErr = models.Unavailable("get operator", context.DeadlineExceeded)

		op, err := f.uc.SignUp(ctx, signUpRequest())
		require.NoError(t, err)
		assert.True(t, op.ID.IsPersisted())
		assert.Equal(t, "Bruno Costa", op.Name)
		assert.Equal(t, models.RoleAgent, op.Role)
	})
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()
	f, err := newAuthFixture(testConfig())
	require.NoError(t, err)
	_, err = f.uc.SignUp(ctx, signUpRequest())
	require.NoError(t, err)

	op, err := f.uc.SignIn(ctx, " bruno@crm.local ", "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, "Bruno Costa", op.Name)
	assert.Empty(t, op.PasswordHash)

	_, err = f.uc.SignIn(ctx, "bruno@crm.local", "wrong")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	_, err = f.uc.SignIn(ctx, "nobody@crm.local", "s3cret!")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestSessionTokens(t *testing.T) {
	ctx := context.Background()
	f, err := newAuthFixture(testConfig())
	require.NoError(t, err)
	op, err := f.uc.SignUp(ctx, signUpRequest())
	require.NoError(t, err)

	resp, err := f.uc.IssueToken(ctx, op, "console-1", "test-agent", "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "console-1", resp.SessionID)
	require.Len(t, f.tokens.tokens, 1)
	assert.NotEqual(t, resp.Token, f.tokens.tokens[0].TokenHash)

	t.Run("round trip", func(t *testing.T) {
		claims, err := f.uc.ValidateToken(ctx, resp.Token)
		require.NoError(t, err)
		assert.Equal(t, op.ID.String(), claims.OperatorID)
		assert.Equal(t, "console-1", claims.SessionID)
	})

	t.Run("rejects a token signed with another key", func(t *testing.T) {
		forged := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
			OperatorID: op.ID.String(),
			SessionID:  "console-1",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		s, err := forged.SignedString([]byte("other-secret"))
		require.NoError(t, err)
		_, err = f.uc.ValidateToken(ctx, s)
		assert.ErrorIs(t, err, models.ErrInvalidToken)
	})

	t.Run("rejects expired tokens", func(t *testing.T) {
		f.uc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { f.uc.now = time.Now }()
		_, err := f.uc.ValidateToken(ctx, resp.Token)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("rejects revoked tokens", func(t *testing.T) {
		require.NoError(t, f.uc.RevokeToken(ctx, resp.Token))
		_, err := f.uc.ValidateToken(ctx, resp.Token)
		assert.ErrorIs(t, err, models.ErrInvalidToken)
	})

	t.Run("revoking an unknown token is a no-op", func(t *testing.T) {
		assert.NoError(t, f.uc.RevokeToken(ctx, "unknown"))
	})
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()
	f, err := newAuthFixture(testConfig())
	require.NoError(t, err)
	op, err := f.uc.SignUp(ctx, signUpRequest())
	require.NoError(t, err)
	session, err := f.uc.IssueToken(ctx, op, "console-1", "", "")
	require.NoError(t, err)

	t.Run("unknown login succeeds silently", func(t *testing.T) {
		require.NoError(t, f.uc.RequestPasswordReset(ctx, "ghost@crm.local"))
		assert.Empty(t, f.mailer.sent)
	})

	require.NoError(t, f.uc.RequestPasswordReset(ctx, "bruno@crm.local"))
	require.Len(t, f.mailer.sent, 1)
	email := f.mailer.sent[0]
	assert.Equal(t, "bruno@crm.local", email.To)
	assert.Contains(t, email.Body, "Hi Bruno,")

	link := email.Body[strings.Index(email.Body, "https://"):]
	link = strings.Fields(link)[0]
	u, err := url.Parse(link)
	require.NoError(t, err)
	token := u.Query().Get("token")
	require.NotEmpty(t, token)

	err = f.uc.ConfirmPasswordReset(ctx, models.PasswordResetConfirmRequest{Token: token, Password: "n3w-pass"})
	require.NoError(t, err)

	_, err = f.uc.SignIn(ctx, "bruno@crm.local", "n3w-pass")
	assert.NoError(t, err)
	_, err = f.uc.ValidateToken(ctx, session.Token)
	assert.ErrorIs(t, err, models.ErrInvalidToken, "existing sessions are revoked")

	err = f.uc.ConfirmPasswordReset(ctx, models.PasswordResetConfirmRequest{Token: token, Password: "again-pass"})
	assert.ErrorIs(t, err, models.ErrInvalidToken, "tickets are single use")
}

func TestOAuthState(t *testing.T) {
	f, err := newAuthFixture(testConfig())
	require.NoError(t, err)

	authURL, err := f.uc.OAuthURL()
	require.NoError(t, err)
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)

	assert.NoError(t, f.uc.checkState(state))
	assert.ErrorIs(t, f.uc.checkState("garbage"), models.ErrInvalidOAuthState)

	f.uc.now = func() time.Time { return time.Now().Add(11 * time.Minute) }
	assert.ErrorIs(t, f.uc.checkState(state), models.ErrInvalidOAuthState)
}

func TestOAuthCallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/token":
			_, _ = w.Write([]byte(`{"access_token":"at-123","token_type":"Bearer","expires_in":3600}`))
		case "/userinfo":
			if r.Header.Get("Authorization") != "Bearer at-123" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"email":"Carla@Example.com","name":"Carla Dias","picture":"https://img.example.com/c.png"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.OAuth.TokenURL = srv.URL + "/token"
	cfg.OAuth.UserInfoURL = srv.URL + "/userinfo"
	f, err := newAuthFixture(cfg)
	require.NoError(t, err)
	ctx := context.Background()

	authURL, err := f.uc.OAuthURL()
	require.NoError(t, err)
	u, _ := url.Parse(authURL)
	state := u.Query().Get("state")

	op, err := f.uc.OAuthCallback(ctx, state, "code-1")
	require.NoError(t, err)
	assert.Equal(t, "carla@example.com", op.Login)
	assert.Equal(t, "Carla Dias", op.Name)
	assert.Equal(t, models.RoleAgent, op.Role)

	again, err := f.uc.OAuthCallback(ctx, state, "code-2")
	require.NoError(t, err)
	assert.Equal(t, op.ID, again.ID, "second login reuses the provisioned operator")
	assert.Len(t, f.operators.items, 1)

	_, err = f.uc.OAuthCallback(ctx, "tampered", "code-3")
	assert.ErrorIs(t, err, models.ErrInvalidOAuthState)
}

func TestOAuthDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.OAuth.Enabled = false
	f, err := newAuthFixture(cfg)
	require.NoError(t, err)

	_, err = f.uc.OAuthURL()
	assert.ErrorIs(t, err, models.ErrOAuthDisabled)
	_, err = f.uc.OAuthCallback(context.Background(), "s", "c")
	assert.ErrorIs(t, err, models.ErrOAuthDisabled)
}

func TestParseProfile(t *testing.T) {
	tests := []struct {
		name string
		body string
		want models.OAuthProfile
	}{
		{
			name: "oidc",
			body: `{"email":"ana@crm.local","name":"Ana Souza","picture":"https://img/a.png"}`,
			want: models.OAuthProfile{Email: "ana@crm.local", Name: "Ana Souza", Picture: "https://img/a.png"},
		},
		{
			name: "split name",
			body: `{"mail":"bruno@crm.local","given_name":"Bruno","family_name":"Lima"}`,
			want: models.OAuthProfile{Email: "bruno@crm.local", Name: "Bruno Lima"},
		},
		{
			name: "github style",
			body: `{"email":"carla@crm.local","name":null,"login":"carla","avatar_url":"https://img/c.png"}`,
			want: models.OAuthProfile{Email: "carla@crm.local", Name: "carla", Picture: "https://img/c.png"},
		},
		{
			name: "no email",
			body: `{"login":"dave"}`,
			want: models.OAuthProfile{Name: "dave"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseProfile([]byte(tt.body)))
		})
	}
}
