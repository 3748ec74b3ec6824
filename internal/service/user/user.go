package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nkiryanov/bemserver/internal/apperrors"
	"github.com/nkiryanov/bemserver/internal/models"
	"github.com/nkiryanov/bemserver/internal/repository"
	"github.com/nkiryanov/bemserver/internal/service/auth"
)

var ErrPasswordEmpty = errors.New("password must not be empty")

type UserService struct {
	hasher  auth.PasswordHasher
	storage repository.Storage
}

func NewService(hasher auth.PasswordHasher, storage repository.Storage) *UserService {
	if hasher == nil {
		hasher = auth.DefaultHasher
	}

	return &UserService{
		hasher:  hasher,
		storage: storage,
	}
}

type CreateOption func(*repository.CreateUserParams)

func WithName(name string) CreateOption {
	return func(p *repository.CreateUserParams) { p.Name = name }
}

func WithAdmin() CreateOption {
	return func(p *repository.CreateUserParams) { p.IsAdmin = true }
}

// Users are active by default
func WithInactive() CreateOption {
	return func(p *repository.CreateUserParams) { p.IsActive = false }
}

func (s *UserService) CreateUser(ctx context.Context, email string, password string, opts ...CreateOption) (models.User, error) {
	hash, err := s.hash(password)
	if err != nil {
		return models.User{}, err
	}

	params := repository.CreateUserParams{
		Email:          email,
		HashedPassword: hash,
		IsActive:       true,
	}
	for _, opt := range opts {
		opt(&params)
	}

	user, err := s.storage.User().CreateUser(ctx, params)
	if err != nil {
		return models.User{}, fmt.Errorf("can't create user. Err: %w", err)
	}

	return user, nil
}

func (s *UserService) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return s.storage.User().GetUserByID(ctx, userID)
}

func (s *UserService) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return s.storage.User().GetUserByEmail(ctx, email)
}

// Set new password for already resolved user
func (s *UserService) UpdatePassword(ctx context.Context, user models.User, password string) error {
	hash, err := s.hash(password)
	if err != nil {
		return err
	}

	if err := s.storage.User().SetPassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("can't update password. Err: %w", err)
	}

	return nil
}

// Check current user may access target user data: admins may access anybody, others only themselves
func (s *UserService) Authorize(current models.User, targetID uuid.UUID) error {
	if current.IsAdmin || current.ID == targetID {
		return nil
	}
	return apperrors.ErrForbidden
}

func (s *UserService) hash(password string) (string, error) {
	if password == "" {
		return "", ErrPasswordEmpty
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("can't use this as password, Err: %w", err)
	}
	return hash, nil
}
