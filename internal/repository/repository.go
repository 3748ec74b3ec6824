package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/bemserver/internal/models"
)

// Access to all repositories bound to the same db connection (or transaction)
type Storage interface {
	User() UserRepo
	AuthCode() AuthCodeRepo

	// Run fn in transaction
	// Commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}

type CreateUserParams struct {
	Email          string
	Name           string
	HashedPassword string
	IsAdmin        bool
	IsActive       bool
}

// User repository interface
type UserRepo interface {
	// Create user
	// If user with email exists already has to return error apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, params CreateUserParams) (models.User, error)

	// Get user by it's id or email
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	// Replace user password hash
	// If user not found must return apperrors.ErrUserNotFound
	SetPassword(ctx context.Context, userID uuid.UUID, hashedPassword string) error
}

// One-time auth codes repository interface
type AuthCodeRepo interface {
	// Save code if no other row has the same code value
	// Returns created=false (and no error) if code value is taken already
	// If the user has code of the type already must return apperrors.ErrAuthCodeConflict
	CreateIfCodeFree(ctx context.Context, code models.AuthCode) (created bool, err error)

	// Delete user code of the type if any
	DeleteForUser(ctx context.Context, userID uuid.UUID, codeType string) error

	// Delete and return code matching user, type and value exactly, if it not expired at 'now'
	// Returns found=false (and no error) if there is no such valid code
	Consume(ctx context.Context, userID uuid.UUID, codeType string, code string, now time.Time) (models.AuthCode, bool, error)

	// Delete codes expired at 'now', returns count of deleted codes
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
