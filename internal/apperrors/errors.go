package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")

	// Authenticated user is not permitted to do the action
	ErrForbidden = errors.New("forbidden")

	ErrAuthCodeTypeInvalid = errors.New("auth code type is invalid")
	ErrAuthCodeConflict    = errors.New("auth code for user and type already exists")
)
