package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nkiryanov/bemserver/internal/models"
)

type Config struct {
	// Enabled credential schemes, in the order they advertised to clients
	// DefaultSchemes if empty
	Schemes []Scheme

	// Hasher to compare user passwords
	// DefaultHasher if not set
	Hasher PasswordHasher
}

type TokenManager interface {
	tokenParser
	IssuePair(user models.User) (models.TokenPair, error)
}

// Auth service
// Dispatches Authorization header to the scheme verifier and issues tokens
type AuthService struct {
	schemes   []Scheme
	verifiers map[Scheme]Verifier

	// Manager to issue token pairs (access and refresh)
	tokens TokenManager

	// Check email and password for token issue
	passwords *BasicVerifier
}

func NewService(cfg Config, tokens TokenManager, users userFinder) (*AuthService, error) {
	if tokens == nil || users == nil {
		return nil, errors.New("token manager and user repo must not be nil")
	}

	schemes := cfg.Schemes
	if len(schemes) == 0 {
		schemes = DefaultSchemes
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = DefaultHasher
	}

	passwords := NewBasicVerifier(users, hasher)
	verifiers := make(map[Scheme]Verifier, len(schemes))

	for _, s := range schemes {
		if _, ok := verifiers[s]; ok {
			return nil, fmt.Errorf("auth method %q set twice", s)
		}

		switch s {
		case SchemeBearer:
			verifiers[s] = NewBearerVerifier(tokens, users)
		case SchemeBasic:
			verifiers[s] = passwords
		default:
			return nil, fmt.Errorf("unknown auth method %q", s)
		}
	}

	return &AuthService{
		schemes:   schemes,
		verifiers: verifiers,
		tokens:    tokens,
		passwords: passwords,
	}, nil
}

// Authenticate Authorization header value
// If refresh is set bearer tokens have to be refresh tokens
//
// Returns *AuthenticationError if credentials are missing or not valid,
// ErrMalformedHeader if header could not be split into scheme and credentials.
// Any other error is internal
func (s *AuthService) Authenticate(ctx context.Context, header string, refresh bool) (models.User, error) {
	if header == "" {
		return models.User{}, authError(KindMissingAuthentication, nil)
	}

	scheme, credentials, ok := strings.Cut(header, " ")
	if !ok {
		return models.User{}, ErrMalformedHeader
	}

	verifier, ok := s.verifiers[Scheme(scheme)]
	if !ok {
		return models.User{}, authError(KindInvalidScheme, fmt.Errorf("scheme %q not enabled", scheme))
	}

	return verifier.Verify(ctx, credentials, refresh)
}

// Value for WWW-Authenticate header
func (s *AuthService) Challenge() string {
	names := make([]string, len(s.schemes))
	for i, scheme := range s.schemes {
		names[i] = string(scheme)
	}
	return strings.Join(names, ", ")
}

func (s *AuthService) Schemes() []Scheme {
	return append([]Scheme(nil), s.schemes...)
}

// Exchange email and password to token pair
// Inactive users are rejected the same way as wrong password
func (s *AuthService) Login(ctx context.Context, email string, password string) (models.TokenPair, error) {
	user, err := s.passwords.CheckPassword(ctx, email, password)
	if err != nil {
		return models.TokenPair{}, err
	}

	if !user.IsActive {
		return models.TokenPair{}, authError(KindInvalidCredentials, ErrUserInactive)
	}

	return s.IssueTokens(user)
}

// Issue new token pair for already authenticated user
// Inactive users get *AuthenticationError with invalid_token kind, so refresh tokens stop working
func (s *AuthService) IssueTokens(user models.User) (models.TokenPair, error) {
	if !user.IsActive {
		return models.TokenPair{}, authError(KindInvalidToken, ErrUserInactive)
	}

	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not generated, sorry. %w", err)
	}
	return pair, nil
}
