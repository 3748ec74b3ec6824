package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/nkiryanov/bemserver/internal/apperrors"
	"github.com/nkiryanov/bemserver/internal/models"
	"github.com/nkiryanov/bemserver/internal/service/auth/tokenmanager"
)

type tokenParser interface {
	Parse(value string) (tokenmanager.Claims, error)
}

// Verify signed tokens issued by tokenmanager
type BearerVerifier struct {
	tokens tokenParser
	users  userFinder
}

func NewBearerVerifier(tokens tokenParser, users userFinder) *BearerVerifier {
	return &BearerVerifier{tokens: tokens, users: users}
}

// Verify token and return its owner
// If refresh is set only refresh tokens are accepted, only access tokens otherwise
func (v *BearerVerifier) Verify(ctx context.Context, credentials string, refresh bool) (models.User, error) {
	claims, err := v.tokens.Parse(credentials)
	switch {
	case errors.Is(err, tokenmanager.ErrTokenExpired):
		return models.User{}, authError(KindExpiredToken, err)
	case err != nil:
		return models.User{}, authError(KindInvalidToken, err)
	}

	want := models.TokenTypeAccess
	if refresh {
		want = models.TokenTypeRefresh
	}
	if claims.Type != want {
		return models.User{}, authError(KindInvalidToken, fmt.Errorf("%s token used instead of %s", claims.Type, want))
	}

	user, err := v.users.GetUserByEmail(ctx, claims.Email)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return models.User{}, authError(KindInvalidToken, err)
	case err != nil:
		return models.User{}, fmt.Errorf("error while getting token owner. Err: %w", err)
	}

	return user, nil
}
