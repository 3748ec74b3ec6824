package postgres

import (
	"context"
	"fmt"

	"github.com/nkiryanov/bemserver/internal/repository"
)

type Storage struct {
	db DBTX
}

func NewStorage(db DBTX) repository.Storage {
	return &Storage{db: db}
}

func (s *Storage) User() repository.UserRepo {
	return &UserRepo{DB: s.db}
}

func (s *Storage) AuthCode() repository.AuthCodeRepo {
	return &AuthCodeRepo{DB: s.db}
}

// Run fn in transaction
// If storage is already bound to transaction pgx starts savepoint (pseudo nested transaction)
func (s *Storage) InTx(ctx context.Context, fn func(repository.Storage) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("db tx error: %w", err)
	}

	defer func() {
		switch err {
		case nil:
			err = tx.Commit(ctx)
		default:
			_ = tx.Rollback(ctx)
		}
	}()

	err = fn(NewStorage(tx))

	return err
}
