package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/bemserver/internal/apperrors"
	"github.com/nkiryanov/bemserver/internal/models"
)

type AuthCodeRepo struct {
	DB DBTX
}

const authCodeColumns = `id, user_id, code, type, created_at, expires_at`

// Conflict on code value is expected (random code collision) and silently skipped
// Conflict on (user_id, type) is not
const createAuthCode = `-- name: CreateAuthCode if code value free
INSERT INTO auth_codes (id, user_id, code, type, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (code) DO NOTHING
RETURNING id
`

func (r *AuthCodeRepo) CreateIfCodeFree(ctx context.Context, c models.AuthCode) (bool, error) {
	rows, _ := r.DB.Query(ctx, createAuthCode, c.ID, c.UserID, c.Code, c.Type, c.CreatedAt, c.ExpiresAt)
	_, err := pgx.CollectOneRow(rows, pgx.RowTo[uuid.UUID])

	var pgErr *pgconn.PgError
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, pgx.ErrNoRows):
		return false, nil
	case errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation:
		return false, fmt.Errorf("repo error: %w", apperrors.ErrAuthCodeConflict)
	default:
		return false, fmt.Errorf("db error: %w", err)
	}
}

const deleteUserAuthCode = `-- name: DeleteUserAuthCode
DELETE FROM auth_codes
WHERE user_id = $1 AND type = $2
`

func (r *AuthCodeRepo) DeleteForUser(ctx context.Context, userID uuid.UUID, codeType string) error {
	_, err := r.DB.Exec(ctx, deleteUserAuthCode, userID, codeType)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const consumeAuthCode = `-- name: ConsumeAuthCode
DELETE FROM auth_codes
WHERE user_id = $1 AND type = $2 AND code = $3 AND expires_at > $4
RETURNING ` + authCodeColumns

// Delete in one statement so concurrent requests can't use the same code twice
func (r *AuthCodeRepo) Consume(ctx context.Context, userID uuid.UUID, codeType string, code string, now time.Time) (models.AuthCode, bool, error) {
	rows, _ := r.DB.Query(ctx, consumeAuthCode, userID, codeType, code, now)
	c, err := pgx.CollectOneRow(rows, rowToAuthCode)

	switch {
	case err == nil:
		return c, true, nil
	case errors.Is(err, pgx.ErrNoRows):
		return c, false, nil
	default:
		return c, false, fmt.Errorf("db error: %w", err)
	}
}

const deleteExpiredAuthCodes = `-- name: DeleteExpiredAuthCodes
DELETE FROM auth_codes
WHERE expires_at <= $1
`

func (r *AuthCodeRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteExpiredAuthCodes, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

func rowToAuthCode(row pgx.CollectableRow) (models.AuthCode, error) {
	var c models.AuthCode
	err := row.Scan(&c.ID, &c.UserID, &c.Code, &c.Type, &c.CreatedAt, &c.ExpiresAt)
	return c, err
}
