package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/nkiryanov/bemserver/internal/apperrors"
	"github.com/nkiryanov/bemserver/internal/models"
	"github.com/nkiryanov/bemserver/internal/service/notify"
)

type userService interface {
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	UpdatePassword(ctx context.Context, user models.User, password string) error
}

type codeManager interface {
	Generate(ctx context.Context, user models.User, codeType string) (string, error)
	Verify(ctx context.Context, user models.User, code string, codeType string) (models.User, bool, error)
}

// Password recovery and email confirmation with one-time codes
type AccountService struct {
	users  userService
	codes  codeManager
	sender notify.CodeSender
}

func NewService(users userService, codes codeManager, sender notify.CodeSender) *AccountService {
	return &AccountService{
		users:  users,
		codes:  codes,
		sender: sender,
	}
}

// Send password reset code if user with the email exists
// Unknown email is not an error so callers can't find out registered emails
func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("error while getting user. Err: %w", err)
	}

	return s.sendCode(ctx, user, models.AuthCodeResetPassword)
}

// Set new password if code is valid
// Returns ok=false if email unknown or code is not valid
func (s *AccountService) ResetPassword(ctx context.Context, email string, code string, password string) (bool, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("error while getting user. Err: %w", err)
	}

	user, ok, err := s.codes.Verify(ctx, user, code, models.AuthCodeResetPassword)
	if err != nil || !ok {
		return false, err
	}

	if err := s.users.UpdatePassword(ctx, user, password); err != nil {
		return false, err
	}

	return true, nil
}

// Send email verification code to the user
func (s *AccountService) RequestEmailVerification(ctx context.Context, user models.User) error {
	return s.sendCode(ctx, user, models.AuthCodeVerifyEmail)
}

// Check email verification code
func (s *AccountService) VerifyEmail(ctx context.Context, user models.User, code string) (bool, error) {
	_, ok, err := s.codes.Verify(ctx, user, code, models.AuthCodeVerifyEmail)
	return ok, err
}

// Concurrent request for the same user and type wins: its code is sent, no second one is needed
func (s *AccountService) sendCode(ctx context.Context, user models.User, codeType string) error {
	code, err := s.codes.Generate(ctx, user, codeType)
	switch {
	case errors.Is(err, apperrors.ErrAuthCodeConflict):
		return nil
	case err != nil:
		return err
	}

	if err := s.sender.SendCode(ctx, user, codeType, code); err != nil {
		return fmt.Errorf("error while sending %s code. Err: %w", codeType, err)
	}

	return nil
}
