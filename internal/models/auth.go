package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// AuthToken stores the hash of an issued session token so it can be revoked.
type AuthToken struct {
	ID         ObjectID  `bson:"_id,omitempty" json:"id"`
	OperatorID ObjectID  `bson:"operator_id" json:"operator_id" validate:"required"`
	SessionID  string    `bson:"session_id" json:"session_id"`
	TokenHash  string    `bson:"token_hash" json:"-"` // hashed JWT token
	ExpiresAt  time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
	IsRevoked  bool      `bson:"is_revoked" json:"is_revoked"`
	UserAgent  string    `bson:"user_agent" json:"user_agent"`
	IPAddress  string    `bson:"ip_address" json:"ip_address"`
}

func (AuthToken) CollectionName() string {
	return "auth_tokens"
}

func (t AuthToken) GetObjectID() ObjectID {
	return t.ID
}

func (t AuthToken) GetUpdates() any {
	return bson.M{"is_revoked": t.IsRevoked}
}

// PasswordReset is a single-use reset ticket.
type PasswordReset struct {
	ID         ObjectID   `bson:"_id,omitempty" json:"id"`
	OperatorID ObjectID   `bson:"operator_id" json:"operator_id"`
	TokenHash  string     `bson:"token_hash" json:"-"`
	ExpiresAt  time.Time  `bson:"expires_at" json:"expires_at"`
	UsedAt     *time.Time `bson:"used_at,omitempty" json:"used_at,omitempty"`
	CreatedAt  time.Time  `bson:"created_at" json:"created_at"`
}

func (PasswordReset) CollectionName() string {
	return "password_resets"
}

func (p PasswordReset) GetObjectID() ObjectID {
	return p.ID
}

func (p PasswordReset) GetUpdates() any {
	return bson.M{"used_at": p.UsedAt}
}

type LoginRequest struct {
	Login    string `json:"login" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type SignUpRequest struct {
	Name            string `json:"name" validate:"required"`
	Login           string `json:"login" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

type PasswordResetRequest struct {
	Login string `json:"login" validate:"required,email"`
}

type PasswordResetConfirmRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	SessionID string    `json:"session_id"`
	Operator  Operator  `json:"operator"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionClaims are the identity facts carried by a session token.
type SessionClaims struct {
	OperatorID string
	SessionID  string
	ExpiresAt  time.Time
}

// OAuthProfile is the subset of the provider's userinfo document we use.
type OAuthProfile struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}
