package authcode

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/bemserver/internal/apperrors"
	"github.com/nkiryanov/bemserver/internal/models"
	"github.com/nkiryanov/bemserver/internal/repository"
)

const (
	defaultCodeTTL = 10 * time.Minute

	// Codes are decimal numbers below the bound, zero padded
	codeBound  = 1_000_000
	codeFormat = "%06d"

	maxTypeLength = 20
)

type Config struct {
	// How long code may be used
	// If not set than default is used
	TTL time.Duration

	// time.Now if not set
	Now func() time.Time

	// Source of randomness, crypto/rand if not set
	Rand io.Reader
}

// Issue and check one-time codes sent to users out of band
type Manager struct {
	storage repository.Storage
	ttl     time.Duration
	now     func() time.Time
	rand    io.Reader
}

func New(cfg Config, storage repository.Storage) *Manager {
	if cfg.TTL == 0 {
		cfg.TTL = defaultCodeTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.Reader
	}

	return &Manager{
		storage: storage,
		ttl:     cfg.TTL,
		now:     cfg.Now,
		rand:    cfg.Rand,
	}
}

// Generate new code of the type for the user
// Previous user code of the same type stops working
func (m *Manager) Generate(ctx context.Context, user models.User, codeType string) (string, error) {
	if err := validateType(codeType); err != nil {
		return "", err
	}

	var code string

	err := m.storage.InTx(ctx, func(s repository.Storage) error {
		if err := s.AuthCode().DeleteForUser(ctx, user.ID, codeType); err != nil {
			return err
		}

		now := m.now()

		// Repeat until code value is not used by anybody
		for {
			value, err := m.random()
			if err != nil {
				return err
			}

			created, err := s.AuthCode().CreateIfCodeFree(ctx, models.AuthCode{
				ID:        uuid.New(),
				UserID:    user.ID,
				Code:      value,
				Type:      codeType,
				CreatedAt: now,
				ExpiresAt: now.Add(m.ttl),
			})
			if err != nil {
				return err
			}
			if created {
				code = value
				return nil
			}

			if err := ctx.Err(); err != nil {
				return err
			}
		}
	})
	if err != nil {
		return "", fmt.Errorf("error while generating %s code. Err: %w", codeType, err)
	}

	return code, nil
}

// Check code and burn it
// Returns ok=false if code is wrong, expired or was used already
func (m *Manager) Verify(ctx context.Context, user models.User, code string, codeType string) (models.User, bool, error) {
	if err := validateType(codeType); err != nil {
		return models.User{}, false, err
	}

	_, found, err := m.storage.AuthCode().Consume(ctx, user.ID, codeType, code, m.now())
	if err != nil {
		return models.User{}, false, fmt.Errorf("error while verifying %s code. Err: %w", codeType, err)
	}
	if !found {
		return models.User{}, false, nil
	}

	return user, true, nil
}

func (m *Manager) random() (string, error) {
	n, err := rand.Int(m.rand, big.NewInt(codeBound))
	if err != nil {
		return "", fmt.Errorf("error while reading random code. Err: %w", err)
	}
	return fmt.Sprintf(codeFormat, n.Int64()), nil
}

func validateType(codeType string) error {
	if codeType == "" || len(codeType) > maxTypeLength {
		return fmt.Errorf("%w: %q", apperrors.ErrAuthCodeTypeInvalid, codeType)
	}
	return nil
}
