package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/nkiryanov/bemserver/internal/apperrors"
	"github.com/nkiryanov/bemserver/internal/models"
)

var errWrongPassword = errors.New("wrong password")

// Verify base64 encoded 'email:password' pair
type BasicVerifier struct {
	users  userFinder
	hasher PasswordHasher

	// Hash compared when the user not found, so the response takes the same time
	dummyOnce sync.Once
	dummyHash string
}

func NewBasicVerifier(users userFinder, hasher PasswordHasher) *BasicVerifier {
	return &BasicVerifier{users: users, hasher: hasher}
}

// Basic credentials are never refresh credentials: refresh flag ignored
func (v *BasicVerifier) Verify(ctx context.Context, credentials string, _ bool) (models.User, error) {
	decoded, err := base64.StdEncoding.DecodeString(credentials)
	if err != nil {
		return models.User{}, authError(KindMalformedCredentials, err)
	}
	if !utf8.Valid(decoded) {
		return models.User{}, authError(KindMalformedCredentials, errors.New("credentials are not utf-8"))
	}

	email, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return models.User{}, authError(KindMalformedCredentials, errors.New("no colon in credentials"))
	}

	return v.CheckPassword(ctx, email, password)
}

// Find the user by email and compare password
// Unknown email and wrong password are reported the same way
func (v *BasicVerifier) CheckPassword(ctx context.Context, email string, password string) (models.User, error) {
	user, err := v.users.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		_ = v.hasher.Compare(v.dummy(), password)
		return models.User{}, authError(KindInvalidCredentials, err)
	case err != nil:
		return models.User{}, fmt.Errorf("error while getting user. Err: %w", err)
	}

	if err := v.hasher.Compare(user.HashedPassword, password); err != nil {
		return models.User{}, authError(KindInvalidCredentials, errWrongPassword)
	}

	return user, nil
}

func (v *BasicVerifier) dummy() string {
	v.dummyOnce.Do(func() {
		// Hash error leaves it empty, compare fails then
		v.dummyHash, _ = v.hasher.Hash("dummy-password")
	})
	return v.dummyHash
}
