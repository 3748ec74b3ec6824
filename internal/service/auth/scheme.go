package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/nkiryanov/bemserver/internal/models"
)

// Credential scheme as it set in Authorization header
type Scheme string

const (
	SchemeBearer Scheme = "Bearer"
	SchemeBasic  Scheme = "Basic"
)

var DefaultSchemes = []Scheme{SchemeBearer}

// Parse configured scheme names
// Names are case sensitive, unknown and duplicated names are rejected
func ParseSchemes(names []string) ([]Scheme, error) {
	if len(names) == 0 {
		return nil, errors.New("at least one auth method must be enabled")
	}

	schemes := make([]Scheme, 0, len(names))
	seen := make(map[Scheme]bool, len(names))

	for _, name := range names {
		s := Scheme(name)
		switch s {
		case SchemeBearer, SchemeBasic:
		default:
			return nil, fmt.Errorf("unknown auth method %q", name)
		}

		if seen[s] {
			return nil, fmt.Errorf("auth method %q set twice", name)
		}
		seen[s] = true
		schemes = append(schemes, s)
	}

	return schemes, nil
}

// Verifier resolves scheme credentials to the user
// Must return *AuthenticationError if credentials not valid
type Verifier interface {
	Verify(ctx context.Context, credentials string, refresh bool) (models.User, error)
}

type userFinder interface {
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
}
