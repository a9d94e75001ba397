package pg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dmitrymomot/certdesk/core/logger"
)

// DefaultRetryInterval is used when Config.RetryInterval is not set.
const DefaultRetryInterval = 5 * time.Second

// Migrate applies pending goose migrations from cfg.MigrationsPath.
func Migrate(ctx context.Context, pool *pgxpool.Pool, cfg Config, log *slog.Logger) error {
	if cfg.MigrationsPath == "" {
		return ErrMigrationPathNotProvided
	}
	if _, err := os.Stat(cfg.MigrationsPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrMigrationsDirNotFound, cfg.MigrationsPath)
		}
		return errors.Join(ErrFailedToApplyMigrations, err)
	}
	if log == nil {
		log = logger.Nop()
	}

	// goose works on database/sql; wrap the pool instead of opening a second one
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(nil)
	goose.SetLogger(gooseLogger{log: log})
	if cfg.MigrationsTable != "" {
		goose.SetTableName(cfg.MigrationsTable)
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	if err := goose.UpContext(ctx, db, cfg.MigrationsPath); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}
	return nil
}

// Migrator runs migrations as a boot phase.
type Migrator struct {
	pool   *pgxpool.Pool
	cfg    Config
	logger *slog.Logger
}

// NewMigrator binds a pool and config into a Migrator.
func NewMigrator(pool *pgxpool.Pool, cfg Config, log *slog.Logger) *Migrator {
	if log == nil {
		log = logger.Nop()
	}
	return &Migrator{pool: pool, cfg: cfg, logger: log}
}

// RunPendingMigrations waits for the database and applies pending migrations.
func (m *Migrator) RunPendingMigrations(ctx context.Context) error {
	if err := Ping(ctx, m.pool, m.cfg); err != nil {
		return err
	}

	start := time.Now()
	if err := Migrate(ctx, m.pool, m.cfg, m.logger); err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "migrations applied", logger.Component("migrate"), logger.Elapsed(start))
	return nil
}

type gooseLogger struct {
	log *slog.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.log.Info(fmt.Sprintf(format, v...), logger.Component("goose"))
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	// only goose's CLI helpers call Fatalf; never exit from library code
	l.log.Error(fmt.Sprintf(format, v...), logger.Component("goose"))
}
