package auth

import (
	"errors"
	"fmt"
)

// Reasons the request could not be authenticated
// Sent back to the client so it may react: re-login, refresh token, fix credentials
type Kind string

const (
	KindMissingAuthentication Kind = "missing_authentication"
	KindInvalidScheme         Kind = "invalid_scheme"
	KindExpiredToken          Kind = "expired_token"
	KindInvalidToken          Kind = "invalid_token"
	KindMalformedCredentials  Kind = "malformed_credentials"
	KindInvalidCredentials    Kind = "invalid_credentials"
)

// Authorization header could not be split into scheme and credentials
var ErrMalformedHeader = errors.New("authorization header is malformed")

// Deactivated users keep their identity but get no new tokens
var ErrUserInactive = errors.New("user is not active")

// Request credentials are missing or not valid
type AuthenticationError struct {
	Kind Kind
	Err  error
}

func (e *AuthenticationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("authentication failed: %s", e.Kind)
	}
	return fmt.Sprintf("authentication failed: %s. Err: %v", e.Kind, e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

func authError(kind Kind, err error) *AuthenticationError {
	return &AuthenticationError{Kind: kind, Err: err}
}
