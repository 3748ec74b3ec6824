package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/bemserver/internal/apperrors"
	"github.com/nkiryanov/bemserver/internal/models"
	"github.com/nkiryanov/bemserver/internal/repository"
)

type UserRepo struct {
	DB DBTX
}

const userColumns = `id, created_at, email, name, password_hash, is_admin, is_active`

const createUser = `-- name: CreateUser
INSERT INTO users (id, email, name, password_hash, is_admin, is_active)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + userColumns

func (r *UserRepo) CreateUser(ctx context.Context, p repository.CreateUserParams) (models.User, error) {
	rows, _ := r.DB.Query(ctx, createUser, uuid.New(), p.Email, p.Name, p.HashedPassword, p.IsAdmin, p.IsActive)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return user, apperrors.ErrUserAlreadyExists
		}

		return user, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

const getUserByID = `-- name: GetUserByID
SELECT ` + userColumns + ` FROM users
WHERE id = $1
`

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByID, id)
	return collectUser(rows)
}

const getUserByEmail = `-- name: GetUserByEmail
SELECT ` + userColumns + ` FROM users
WHERE email = $1
`

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByEmail, email)
	return collectUser(rows)
}

const setPassword = `-- name: SetPassword
UPDATE users
SET password_hash = $2
WHERE id = $1
`

func (r *UserRepo) SetPassword(ctx context.Context, id uuid.UUID, hashedPassword string) error {
	tag, err := r.DB.Exec(ctx, setPassword, id, hashedPassword)
	switch {
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case tag.RowsAffected() == 0:
		return apperrors.ErrUserNotFound
	default:
		return nil
	}
}

func collectUser(rows pgx.Rows) (models.User, error) {
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.CreatedAt, &u.Email, &u.Name, &u.HashedPassword, &u.IsAdmin, &u.IsActive)
	return u, err
}
