package models

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrNotFound = status.Errorf(codes.NotFound, "not found")

	ErrInvalidCredentials = status.Error(codes.Unauthenticated, "invalid login or password")
	ErrInvalidToken       = status.Error(codes.Unauthenticated, "invalid token")
	ErrNoActiveOperator   = status.Error(codes.Unauthenticated, "no active operator")
	ErrInvalidOAuthState  = status.Error(codes.Unauthenticated, "invalid or expired oauth state")
	ErrOAuthDisabled      = status.Error(codes.Unimplemented, "oauth login is not configured")

	ErrPasswordMismatch = status.Error(codes.InvalidArgument, "password and confirmation do not match")
	ErrLoginTaken       = status.Error(codes.AlreadyExists, "login is already registered")

	ErrChatNotVisible   = status.Error(codes.NotFound, "chat not found")
	ErrChatNotPersisted = status.Error(codes.FailedPrecondition, "chat is not persisted yet")
)

// PermissionDenied is returned when the authorization policy denies a command.
func PermissionDenied(reason string) error {
	return status.Error(codes.PermissionDenied, reason)
}

// InvalidArgument wraps a validation failure.
func InvalidArgument(msg string) error {
	return status.Error(codes.InvalidArgument, msg)
}

// Unavailable marks a failed remote write.
func Unavailable(op string, err error) error {
	return status.Errorf(codes.Unavailable, "%s: %v", op, err)
}
