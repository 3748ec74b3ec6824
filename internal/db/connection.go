package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nkiryanov/bemserver/internal/logger"
)

//go:embed migrations/*.sql
var migrations embed.FS

// golang-migrate logger writing to app logger
type migrateLogger struct {
	logger logger.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrateLogger) Verbose() bool {
	return false
}

// Run embedded migrations (users and auth codes schema)
// Check the example at https://github.com/golang-migrate/migrate/blob/v4.18.1/source/iofs/example_test.go
// dsn: database source name in format postgres://...
func Migrate(dsn string, l logger.Logger) error {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return err
	}

	migrator, err := migrate.NewWithSourceInstance(
		"iofs",
		source,
		strings.NewReplacer(
			"postgres://", "pgx5://", // golang-migrate expects dsn in format 'pgx5://...' only, make it happy with 'postgres://...'
			"postgresql://", "pgx5://",
		).Replace(dsn),
	)
	if err != nil {
		return fmt.Errorf("error while preparing migrator. Err: %w", err)
	}
	defer migrator.Close() // nolint:errcheck
	migrator.Log = migrateLogger{logger: l}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("error while applying migrations. Err: %w", upErr)
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		return fmt.Errorf("error while reading schema version. Err: %w", err)
	}
	if dirty {
		return fmt.Errorf("schema version %d is dirty, fix it manually", version)
	}

	l.Info("Database schema is up to date", "version", version, "changed", upErr == nil)
	return nil
}

func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("cant initialize connection pool. Err: %w", err)
	}

	// Fail fast: pgxpool connects lazily
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("cant reach database. Err: %w", err)
	}

	return pool, nil
}

func ConnectAndMigrate(ctx context.Context, dsn string, l logger.Logger) (*pgxpool.Pool, error) {
	err := Migrate(dsn, l)
	if err != nil {
		return nil, err
	}

	return Connect(ctx, dsn)
}
