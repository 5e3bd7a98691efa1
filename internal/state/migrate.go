package state

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// goose keeps its configuration in package globals.
var gooseMu sync.Mutex

// gooseLogger routes goose output to slog.
type gooseLogger struct {
	logger *slog.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...), slog.String("component", "goose"))
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...), slog.String("component", "goose"))
}

func withGoose[T any](logger *slog.Logger, fn func() (T, error)) (T, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	var zero T
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{logger: logger})
	if err := goose.SetDialect("sqlite"); err != nil {
		return zero, fmt.Errorf("failed to set dialect: %w", err)
	}
	return fn()
}

// Migrate runs all pending database migrations.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	return MigrateWithDB(ctx, s.db, s.logger)
}

// MigrateWithDB runs migrations using a raw database connection.
func MigrateWithDB(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	_, err := withGoose(logger, func() (struct{}, error) {
		if err := goose.UpContext(ctx, db, "migrations"); err != nil {
			return struct{}{}, fmt.Errorf("failed to run migrations: %w", err)
		}
		return struct{}{}, nil
	})
	return err
}

// GetMigrationVersion returns the current migration version.
func (s *SQLiteStore) GetMigrationVersion(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database not opened")
	}
	return withGoose(s.logger, func() (int64, error) {
		return goose.GetDBVersionContext(ctx, s.db)
	})
}
