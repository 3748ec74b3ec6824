package authcode

import (
	"bytes"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/bemserver/internal/apperrors"
	"github.com/nkiryanov/bemserver/internal/models"
	"github.com/nkiryanov/bemserver/internal/repository"
	"github.com/nkiryanov/bemserver/internal/repository/postgres"
	"github.com/nkiryanov/bemserver/internal/testutil"
)

// Random source that makes rand.Int(r, 1e6) return the numbers in order
func numbers(nn ...int) *bytes.Reader {
	var b []byte
	for _, n := range nn {
		b = append(b, byte(n>>16), byte(n>>8), byte(n))
	}
	return bytes.NewReader(b)
}

func Test_Manager(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	type env struct {
		storage repository.Storage
		clock   *testutil.Clock
		john    models.User
		jane    models.User
	}

	withTx := func(t *testing.T, fn func(e env)) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)

			createUser := func(email string) models.User {
				u, err := storage.User().CreateUser(t.Context(), repository.CreateUserParams{Email: email, HashedPassword: "hash", IsActive: true})
				require.NoError(t, err)
				return u
			}

			fn(env{
				storage: storage,
				clock:   testutil.NewClock(start),
				john:    createUser("john@example.com"),
				jane:    createUser("jane@example.com"),
			})
		})
	}

	t.Run("generate six digits", func(t *testing.T) {
		withTx(t, func(e env) {
			m := New(Config{Now: e.clock.Now}, e.storage)

			code, err := m.Generate(t.Context(), e.john, models.AuthCodeResetPassword)

			require.NoError(t, err)
			require.Regexp(t, regexp.MustCompile(`^[0-9]{6}$`), code)
		})
	})

	t.Run("small numbers zero padded", func(t *testing.T) {
		withTx(t, func(e env) {
			m := New(Config{Now: e.clock.Now, Rand: numbers(42)}, e.storage)

			code, err := m.Generate(t.Context(), e.john, models.AuthCodeResetPassword)

			require.NoError(t, err)
			require.Equal(t, "000042", code)
		})
	})

	t.Run("verify once", func(t *testing.T) {
		withTx(t, func(e env) {
			m := New(Config{Now: e.clock.Now}, e.storage)
			code, err := m.Generate(t.Context(), e.john, models.AuthCodeResetPassword)
			require.NoError(t, err)

			user, ok, err := m.Verify(t.Context(), e.john, code, models.AuthCodeResetPassword)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, e.john.ID, user.ID)

			_, ok, err = m.Verify(t.Context(), e.john, code, models.AuthCodeResetPassword)
			require.NoError(t, err)
			require.False(t, ok, "code must work only once")
		})
	})

	t.Run("wrong code", func(t *testing.T) {
		withTx(t, func(e env) {
			m := New(Config{Now: e.clock.Now, Rand: numbers(111111)}, e.storage)
			_, err := m.Generate(t.Context(), e.john, models.AuthCodeResetPassword)
			require.NoError(t, err)

			_, ok, err := m.Verify(t.Context(), e.john, "222222", models.AuthCodeResetPassword)
			require.NoError(t, err)
			require.False(t, ok)

			_, ok, err = m.Verify(t.Context(), e.john, "111111", models.AuthCodeResetPassword)
			require.NoError(t, err)
			require.True(t, ok, "wrong attempt does not burn the code")
		})
	})

	t.Run("no code generated", func(t *testing.T) {
		withTx(t, func(e env) {
			m := New(Config{Now: e.clock.Now}, e.storage)

			_, ok, err := m.Verify(t.Context(), e.john, "123456", models.AuthCodeResetPassword)

			require.NoError(t, err)
			require.False(t, ok)
		})
	})

	t.Run("code of other user", func(t *testing.T) {
		withTx(t, func(e env) {
			m := New(Config{Now: e.clock.Now, Rand: numbers(111111)}, e.storage)
			_, err := m.Generate(t.Context(), e.john, models.AuthCodeResetPassword)
			require.NoError(t, err)

			_, ok, err := m.Verify(t.Context(), e.jane, "111111", models.AuthCodeResetPassword)

			require.NoError(t, err)
			require.False(t, ok)
		})
	})

	t.Run("expired code", func(t *testing.T) {
		withTx(t, func(e env) {
			m := New(Config{Now: e.clock.Now, Rand: numbers(111111)}, e.storage)
			_, err := m.Generate(t.Context(), e.john, models.AuthCodeResetPassword)
			require.NoError(t, err)

			e.clock.Advance(10 * time.Minute)
			_, ok, err := m.Verify(t.Context(), e.john, "111111", models.AuthCodeResetPassword)
			require.NoError(t, err)
			require.False(t, ok, "code expires after ten minutes")

			_, found, err := e.storage.AuthCode().Consume(t.Context(), e.john.ID, models.AuthCodeResetPassword, "111111", start)
			require.NoError(t, err)
			require.True(t, found, "expired code is not deleted by verification")
		})
	})

	t.Run("valid just before expiration", func(t *testing.T) {
		withTx(t, func(e env) {
			m := New(Config{Now: e.clock.Now, Rand: numbers(111111)}, e.storage)
			_, err := m.Generate(t.Context(), e.john, models.AuthCodeResetPassword)
			require.NoError(t, err)

			e.clock.Advance(10*time.Minute - time.Second)
			_, ok, err := m.Verify(t.Context(), e.john, "111111", models.AuthCodeResetPassword)

			require.NoError(t, err)
			require.True(t, ok)
		})
	})

	t.Run("new code replaces previous one", func(t *testing.T) {
		withTx(t, func(e env) {
			m := New(Config{Now: e.clock.Now, Rand: numbers(111111, 222222)}, e.storage)
			first, err := m.Generate(t.Context(), e.john, models.AuthCodeResetPassword)
			require.NoError(t, err)
			second, err := m.Generate(t.Context(), e.john, models.AuthCodeResetPassword)
			require.NoError(t, err)

			_, ok, err := m.Verify(t.Context(), e.john, first, models.AuthCodeResetPassword)
			require.NoError(t, err)
			require.False(t, ok, "previous code must stop working")

			_, ok, err = m.Verify(t.Context(), e.john, second, models.AuthCodeResetPassword)
			require.NoError(t, err)
			require.True(t, ok)
		})
	})

	t.Run("same value may be drawn again for the same user and type", func(t *testing.T) {
		withTx(t, func(e env) {
			m := New(Config{Now: e.clock.Now, Rand: numbers(111111, 111111)}, e.storage)
			_, err := m.Generate(t.Context(), e.john, models.AuthCodeResetPassword)
			require.NoError(t, err)

			code, err := m.Generate(t.Context(), e.john, models.AuthCodeResetPassword)

			require.NoError(t, err)
			require.Equal(t, "111111", code, "previous code deleted first so its value is free")
		})
	})

	t.Run("other types untouched", func(t *testing.T) {
		withTx(t, func(e env) {
			m := New(Config{Now: e.clock.Now, Rand: numbers(111111, 222222, 333333)}, e.storage)
			reset, err := m.Generate(t.Context(), e.john, models.AuthCodeResetPassword)
			require.NoError(t, err)
			verify, err := m.Generate(t.Context(), e.john, models.AuthCodeVerifyEmail)
			require.NoError(t, err)

			// Regenerate and use reset code, verify email code has to survive
			_, err = m.Generate(t.Context(), e.john, models.AuthCodeResetPassword)
			require.NoError(t, err)
			_, ok, err := m.Verify(t.Context(), e.john, reset, models.AuthCodeResetPassword)
			require.NoError(t, err)
			require.False(t, ok)

			_, ok, err = m.Verify(t.Context(), e.john, verify, models.AuthCodeVerifyEmail)
			require.NoError(t, err)
			require.True(t, ok)
		})
	})

	t.Run("code of other type not accepted", func(t *testing.T) {
		withTx(t, func(e env) {
			m := New(Config{Now: e.clock.Now, Rand: numbers(111111)}, e.storage)
			code, err := m.Generate(t.Context(), e.john, models.AuthCodeVerifyEmail)
			require.NoError(t, err)

			_, ok, err := m.Verify(t.Context(), e.john, code, models.AuthCodeResetPassword)

			require.NoError(t, err)
			require.False(t, ok)
		})
	})

	t.Run("collision draws again", func(t *testing.T) {
		withTx(t, func(e env) {
			m := New(Config{Now: e.clock.Now, Rand: numbers(111111, 111111, 222222)}, e.storage)
			johnCode, err := m.Generate(t.Context(), e.john, models.AuthCodeResetPassword)
			require.NoError(t, err)

			janeCode, err := m.Generate(t.Context(), e.jane, models.AuthCodeResetPassword)

			require.NoError(t, err)
			require.Equal(t, "111111", johnCode)
			require.Equal(t, "222222", janeCode, "taken value is skipped")
		})
	})

	t.Run("invalid type", func(t *testing.T) {
		withTx(t, func(e env) {
			m := New(Config{Now: e.clock.Now}, e.storage)

			_, err := m.Generate(t.Context(), e.john, "")
			require.ErrorIs(t, err, apperrors.ErrAuthCodeTypeInvalid)

			_, _, err = m.Verify(t.Context(), e.john, "123456", "type-longer-than-twenty-chars")
			require.ErrorIs(t, err, apperrors.ErrAuthCodeTypeInvalid)
		})
	})
}
