package data

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/KotFed0t/equal_weight_fund/config"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/jmoiron/sqlx"
)

const (
	pgConnAttempts = 5
	pgConnPause    = time.Second
)

func postgresDSN(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=disable password=%s",
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.User,
		cfg.Postgres.DbName,
		cfg.Postgres.Password,
	)
}

// NewPostgresClient connects to the history database and applies pending migrations.
func NewPostgresClient(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	var (
		db  *sqlx.DB
		err error
	)

	for attempt := 1; attempt <= pgConnAttempts; attempt++ {
		db, err = sqlx.ConnectContext(ctx, "pgx", postgresDSN(cfg))
		if err == nil {
			break
		}

		slog.Info("Postgres is trying to connect", slog.Int("attempts left", pgConnAttempts-attempt))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pgConnPause):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetConnMaxIdleTime(time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second)

	slog.Info("Postgres connected")

	if err := migratePostgres(db, cfg.Postgres.MigrationDir); err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Info("postgres migrated successfully")

	return db, nil
}

func migratePostgres(db *sqlx.DB, migrationDir string) error {
	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", migrationDir), "postgres", driver)
	if err != nil {
		return fmt.Errorf("migration source %s: %w", migrationDir, err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up: %w", err)
	}

	return nil
}
