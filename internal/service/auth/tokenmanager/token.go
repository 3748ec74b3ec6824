package tokenmanager

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nkiryanov/bemserver/internal/models"
)

const (
	defaultAccessTokenTTL  = 24 * time.Hour
	defaultRefreshTokenTTL = 60 * 24 * time.Hour
	signingMethod          = "HS256"
)

var (
	// Token was valid once but its expiration time passed
	ErrTokenExpired = errors.New("token is expired")

	// Token could not be decoded, verified or has wrong claims
	ErrTokenInvalid = errors.New("token is invalid")
)

// Signed token payload
type Claims struct {
	jwt.RegisteredClaims
	Email string           `json:"email"`
	Type  models.TokenType `json:"type"`
}

// Validate is called by jwt parser after registered claims checked
func (c Claims) Validate() error {
	if c.Email == "" {
		return errors.New("email claim is required")
	}

	switch c.Type {
	case models.TokenTypeAccess, models.TokenTypeRefresh:
		return nil
	default:
		return fmt.Errorf("unknown token type %q", c.Type)
	}
}

// Token manager with sensible default
type Config struct {
	// Secret key to sign tokens
	// Required to be set
	SecretKey string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Clock to issue and verify tokens with
	// time.Now if not set
	Now func() time.Time
}

type TokenManager struct {
	// Secret key to sign tokens
	key []byte

	// JWT MAC (Message Authentication Code) algorithm
	alg jwt.SigningMethod

	// Access and refresh token lifetimes
	accessTTL  time.Duration
	refreshTTL time.Duration

	now func() time.Time
}

func New(cfg Config) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &TokenManager{
		key:        []byte(cfg.SecretKey),
		alg:        jwt.GetSigningMethod(signingMethod),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        cfg.Now,
	}, nil
}

// Issue signed token of the type for the user
func (m *TokenManager) Issue(user models.User, tokenType models.TokenType) (models.IssuedToken, error) {
	var ttl time.Duration
	switch tokenType {
	case models.TokenTypeAccess:
		ttl = m.accessTTL
	case models.TokenTypeRefresh:
		ttl = m.refreshTTL
	default:
		return models.IssuedToken{}, fmt.Errorf("unknown token type %q", tokenType)
	}

	expiresAt := m.now().Truncate(time.Second).Add(ttl)

	token := jwt.NewWithClaims(m.alg, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(expiresAt)},
		Email:            user.Email,
		Type:             tokenType,
	})

	value, err := token.SignedString(m.key)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing %s token. Err: %w", tokenType, err)
	}

	return models.IssuedToken{Value: value, ExpiresAt: expiresAt}, nil
}

// Issue access and refresh tokens for the user
func (m *TokenManager) IssuePair(user models.User) (models.TokenPair, error) {
	access, err := m.Issue(user, models.TokenTypeAccess)
	if err != nil {
		return models.TokenPair{}, err
	}

	refresh, err := m.Issue(user, models.TokenTypeRefresh)
	if err != nil {
		return models.TokenPair{}, err
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

// Parse and validate token
// Returns error wrapping ErrTokenExpired or ErrTokenInvalid
func (m *TokenManager) Parse(value string) (Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(
		value,
		claims,
		func(t *jwt.Token) (any, error) {
			return m.key, nil
		},
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(m.now),
	)

	switch {
	case err == nil:
		return *claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, fmt.Errorf("%w. Err: %v", ErrTokenExpired, err)
	default:
		return Claims{}, fmt.Errorf("%w. Err: %v", ErrTokenInvalid, err)
	}
}
