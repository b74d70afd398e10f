package usecase

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"github.com/nguyentranbao-ct/crm-console/internal/config"
	"github.com/nguyentranbao-ct/crm-console/internal/logger"
	"github.com/nguyentranbao-ct/crm-console/internal/models"
	"github.com/nguyentranbao-ct/crm-console/internal/repo/mailer"
	"github.com/nguyentranbao-ct/crm-console/internal/repo/mongodb"
	"github.com/nguyentranbao-ct/crm-console/pkg/crypto"
	"github.com/nguyentranbao-ct/crm-console/pkg/tmplx"
	"github.com/nguyentranbao-ct/crm-console/pkg/util"
	"go.uber.org/zap"
)

const oauthStateTTL = 10 * time.Minute

var resetEmail = tmplx.MustParse("password_reset",
	"Hi {{ firstName .Name }},\n\n"+
		"Use the link below to choose a new password. It expires in {{ .TTL }}.\n\n"+
		"{{ .Link }}\n\n"+
		"If you did not ask for this, ignore this email.\n")

type sessionClaims struct {
	OperatorID string `json:"operator_id"`
	SessionID  string `json:"session_id"`
	jwt.RegisteredClaims
}

type AuthUseCase struct {
	operators mongodb.OperatorRepository
	tokens    mongodb.AuthTokenRepository
	resets    mongodb.PasswordResetRepository
	mailer    mailer.Mailer
	state     *crypto.Sealer
	oauth     *oauth2.Config
	http      *resty.Client
	cfg       config.AuthConfig
	oauthCfg  config.OAuthConfig
	log       *zap.SugaredLogger
	now       func() time.Time
}

func NewAuthUseCase(
	cfg *config.Config,
	operators mongodb.OperatorRepository,
	tokens mongodb.AuthTokenRepository,
	resets mongodb.PasswordResetRepository,
	mail mailer.Mailer,
) (*AuthUseCase, error) {
	state, err := crypto.NewSealer(cfg.Auth.StateKey)
	if err != nil {
		return nil, fmt.Errorf("oauth state key: %w", err)
	}
	return &AuthUseCase{
		operators: operators,
		tokens:    tokens,
		resets:    resets,
		mailer:    mail,
		state:     state,
		oauth: &oauth2.Config{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			RedirectURL:  cfg.OAuth.RedirectURL,
			Scopes:       cfg.OAuth.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.OAuth.AuthURL,
				TokenURL: cfg.OAuth.TokenURL,
			},
		},
		http:     util.NewRestyClient(),
		cfg:      cfg.Auth,
		oauthCfg: cfg.OAuth,
		log:      logger.Named("auth"),
		now:      time.Now,
	}, nil
}

// SignIn verifies login and password against the stored bcrypt hash.
func (uc *AuthUseCase) SignIn(ctx context.Context, login, password string) (*models.Operator, error) {
	op, err := uc.operators.GetByLogin(ctx, normalizeLogin(login))
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operator by login: %w", err)
	}
	if op.PasswordHash == "" {
		return nil, models.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return nil, models.ErrInvalidCredentials
	}
	op.PasswordHash = ""
	return op, nil
}

// SignUp registers a new Agent. If the stored profile cannot be read back,
// the caller still gets a minimal operator built from the request.
func (uc *AuthUseCase) SignUp(ctx context.Context, req models.SignUpRequest) (*models.Operator, error) {
	if req.Password != req.ConfirmPassword {
		return nil, models.ErrPasswordMismatch
	}

	created, err := uc.CreateOperator(ctx, &models.Operator{
		Name:  strings.TrimSpace(req.Name),
		Login: req.Login,
		Role:  models.RoleAgent,
	}, req.Password)
	if err != nil {
		return nil, err
	}

	op, err := uc.operators.GetByID(ctx, created.ID)
	if err != nil {
		uc.log.Warnw("Signed up operator not readable, using request fields",
			"operator_id", created.ID, "error", err)
		return &models.Operator{
			ID:    created.ID,
			Name:  strings.TrimSpace(req.Name),
			Login: normalizeLogin(req.Login),
			Role:  models.RoleAgent,
		}, nil
	}
	return op, nil
}

// CreateOperator hashes the password and stores the operator.
func (uc *AuthUseCase) CreateOperator(ctx context.Context, op *models.Operator, password string) (*models.Operator, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	in := *op
	in.Login = normalizeLogin(in.Login)
	in.PasswordHash = hash
	return uc.operators.Create(ctx, &in)
}

// IssueToken signs a session token for op bound to a console session.
func (uc *AuthUseCase) IssueToken(ctx context.Context, op *models.Operator, sessionID, userAgent, ipAddress string) (*models.LoginResponse, error) {
	now := uc.now()
	expiresAt := now.Add(uc.cfg.TokenTTL)

	claims := sessionClaims{
		OperatorID: op.ID.String(),
		SessionID:  sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   op.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(uc.cfg.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	err = uc.tokens.Create(ctx, &models.AuthToken{
		OperatorID: op.ID,
		SessionID:  sessionID,
		TokenHash:  hashToken(token),
		ExpiresAt:  expiresAt,
		UserAgent:  userAgent,
		IPAddress:  ipAddress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store auth token: %w", err)
	}

	return &models.LoginResponse{
		Token:     token,
		SessionID: sessionID,
		Operator:  *op,
		ExpiresAt: expiresAt,
	}, nil
}

// ValidateToken checks the signature, expiry and revocation of a token.
func (uc *AuthUseCase) ValidateToken(ctx context.Context, tokenString string) (*models.SessionClaims, error) {
	claims, err := uc.parseJWT(tokenString)
	if err != nil {
		return nil, err
	}

	stored, err := uc.tokens.GetByTokenHash(ctx, hashToken(tokenString))
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	if stored.IsRevoked || stored.ExpiresAt.Before(uc.now()) {
		return nil, models.ErrInvalidToken
	}

	return &models.SessionClaims{
		OperatorID: claims.OperatorID,
		SessionID:  claims.SessionID,
		ExpiresAt:  claims.ExpiresAt.Time,
	}, nil
}

// Operator loads the profile a validated token refers to.
func (uc *AuthUseCase) Operator(ctx context.Context, id string) (*models.Operator, error) {
	op, err := uc.operators.GetByID(ctx, models.ObjectID(id))
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrInvalidToken
	}
	return op, err
}

func (uc *AuthUseCase) RevokeToken(ctx context.Context, tokenString string) error {
	err := uc.tokens.RevokeToken(ctx, hashToken(tokenString))
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	return err
}

// RevokeOperator ends every session of a removed operator.
func (uc *AuthUseCase) RevokeOperator(ctx context.Context, id models.ObjectID) error {
	return uc.tokens.RevokeOperatorTokens(ctx, id)
}

func (uc *AuthUseCase) CleanupExpiredTokens(ctx context.Context) error {
	n, err := uc.tokens.DeleteExpiredTokens(ctx)
	if err != nil {
		return err
	}
	uc.log.Debugw("Expired tokens removed", "count", n)
	return nil
}

// RequestPasswordReset emails a single-use reset link. Unknown logins are
// not reported to the caller.
func (uc *AuthUseCase) RequestPasswordReset(ctx context.Context, login string) error {
	op, err := uc.operators.GetByLogin(ctx, normalizeLogin(login))
	if errors.Is(err, models.ErrNotFound) {
		uc.log.Infow("Password reset for unknown login", "login", login)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get operator by login: %w", err)
	}

	token, err := randomToken()
	if err != nil {
		return err
	}
	err = uc.resets.Create(ctx, &models.PasswordReset{
		OperatorID: op.ID,
		TokenHash:  hashToken(token),
		ExpiresAt:  uc.now().Add(uc.cfg.PasswordResetTTL),
	})
	if err != nil {
		return fmt.Errorf("failed to store password reset: %w", err)
	}

	link, err := url.Parse(uc.cfg.PasswordResetURL)
	if err != nil {
		return fmt.Errorf("invalid password reset url: %w", err)
	}
	q := link.Query()
	q.Set("token", token)
	link.RawQuery = q.Encode()

	body, err := resetEmail.Render(map[string]any{
		"Name": op.Name,
		"Link": link.String(),
		"TTL":  uc.cfg.PasswordResetTTL.String(),
	})
	if err != nil {
		return fmt.Errorf("render reset email: %w", err)
	}
	if err := uc.mailer.Send(ctx, &models.Email{
		To:      op.Login,
		Subject: "Reset your password",
		Body:    body,
	}); err != nil {
		return models.Unavailable("send reset email", err)
	}
	return nil
}

// ConfirmPasswordReset sets a new password and revokes existing sessions.
func (uc *AuthUseCase) ConfirmPasswordReset(ctx context.Context, req models.PasswordResetConfirmRequest) error {
	reset, err := uc.resets.GetActiveByTokenHash(ctx, hashToken(req.Token))
	if errors.Is(err, models.ErrNotFound) {
		return models.ErrInvalidToken
	}
	if err != nil {
		return fmt.Errorf("failed to get password reset: %w", err)
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return err
	}
	if err := uc.operators.UpdatePassword(ctx, reset.OperatorID, hash); err != nil {
		return err
	}
	if err := uc.resets.MarkUsed(ctx, reset.ID); err != nil {
		return err
	}
	if err := uc.tokens.RevokeOperatorTokens(ctx, reset.OperatorID); err != nil {
		uc.log.Warnw("Failed to revoke tokens after password reset",
			"operator_id", reset.OperatorID, "error", err)
	}
	return nil
}

// OAuthURL returns the provider consent URL with a fresh encrypted state.
func (uc *AuthUseCase) OAuthURL() (string, error) {
	if !uc.oauthCfg.Enabled {
		return "", models.ErrOAuthDisabled
	}
	state, err := uc.state.Seal(uuid.NewString(), uc.now())
	if err != nil {
		return "", fmt.Errorf("seal state: %w", err)
	}
	return uc.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

// OAuthCallback validates the state, exchanges the code and signs the
// provider account in, creating an Agent on first use.
func (uc *AuthUseCase) OAuthCallback(ctx context.Context, state, code string) (*models.Operator, error) {
	if !uc.oauthCfg.Enabled {
		return nil, models.ErrOAuthDisabled
	}
	if err := uc.checkState(state); err != nil {
		return nil, err
	}

	tok, err := uc.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidCredentials, err)
	}

	resp, err := uc.http.R().
		SetContext(ctx).
		SetAuthToken(tok.AccessToken).
		Get(uc.oauthCfg.UserInfoURL)
	if err != nil {
		return nil, models.Unavailable("fetch userinfo", err)
	}
	if resp.IsError() {
		return nil, models.Unavailable("fetch userinfo", fmt.Errorf("status %d", resp.StatusCode()))
	}
	profile := parseProfile(resp.Body())
	if profile.Email == "" {
		return nil, models.InvalidArgument("provider returned no email")
	}

	return uc.provision(ctx, profile)
}

func (uc *AuthUseCase) provision(ctx context.Context, profile models.OAuthProfile) (*models.Operator, error) {
	op, err := uc.operators.GetByLogin(ctx, normalizeLogin(profile.Email))
	if err == nil {
		op.PasswordHash = ""
		return op, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to get operator by login: %w", err)
	}

	name := profile.Name
	if name == "" {
		name = strings.Split(profile.Email, "@")[0]
	}
	created, err := uc.operators.Create(ctx, &models.Operator{
		Name:      name,
		Login:     normalizeLogin(profile.Email),
		Role:      models.RoleAgent,
		AvatarURL: profile.Picture,
	})
	if err != nil {
		return nil, err
	}
	uc.log.Infow("Provisioned operator from OAuth", "operator_id", created.ID, "login", created.Login)
	return created, nil
}

func (uc *AuthUseCase) checkState(state string) error {
	nonce, err := uc.state.Open(state, oauthStateTTL, uc.now())
	if err != nil {
		return models.ErrInvalidOAuthState
	}
	if _, err := uuid.Parse(nonce); err != nil {
		return models.ErrInvalidOAuthState
	}
	return nil
}

func (uc *AuthUseCase) parseJWT(tokenString string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(uc.cfg.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(uc.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidToken, err)
	}
	if claims.OperatorID == "" || claims.SessionID == "" {
		return nil, models.ErrInvalidToken
	}
	return claims, nil
}

// parseProfile reads the userinfo document. OIDC providers use email and
// picture; GitHub style ones use login and avatar_url.
func parseProfile(body []byte) models.OAuthProfile {
	first := func(paths ...string) string {
		for _, p := range paths {
			if v := gjson.GetBytes(body, p); v.Exists() && v.String() != "" {
				return v.String()
			}
		}
		return ""
	}
	name := first("name")
	if name == "" {
		name = strings.TrimSpace(first("given_name") + " " + first("family_name"))
	}
	if name == "" {
		name = first("login")
	}
	return models.OAuthProfile{
		Email:   first("email", "mail", "upn"),
		Name:    name,
		Picture: first("picture", "avatar_url"),
	}
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", models.InvalidArgument(fmt.Sprintf("hash password: %v", err))
	}
	return string(hash), nil
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func normalizeLogin(login string) string {
	return strings.ToLower(strings.TrimSpace(login))
}
