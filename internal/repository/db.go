package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/voxhall/audio-insights/internal/common"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DB pairs the sql handle with its driver name so repositories can
// rebind placeholders for the sqlite backend. Queries are written with
// postgres-style $N placeholders, parameters in order.
type DB struct {
	*sql.DB
	driver string
}

// Rebind converts $N placeholders to ? for the sqlite driver.
func (d *DB) Rebind(query string) string {
	if d.driver != DriverSQLite {
		return query
	}
	var b strings.Builder
	for i := 0; i < len(query); i++ {
		if query[i] != '$' {
			b.WriteByte(query[i])
			continue
		}
		j := i + 1
		for j < len(query) && query[j] >= '0' && query[j] <= '9' {
			j++
		}
		if j == i+1 {
			b.WriteByte(query[i])
			continue
		}
		b.WriteByte('?')
		i = j - 1
	}
	return b.String()
}

// Open connects the configured backend. For postgres it builds a pgx
// pool and wraps it for database/sql; for sqlite it opens the embedded
// driver directly and the returned pool is nil.
func Open(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*DB, *pgxpool.Pool, error) {
	if cfg.Driver == DriverSQLite {
		logger.Info("opening sqlite store", "dsn", cfg.DSN)
		db, err := sql.Open("sqlite", cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		// The sqlite driver serializes writers; a single connection
		// avoids database-is-locked errors under the worker pool.
		db.SetMaxOpenConns(1)
		return &DB{DB: db, driver: DriverSQLite}, nil, nil
	}

	logger.Info("connecting to database", "driver", cfg.Driver)
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database config", "error", err)
		return nil, nil, err
	}
	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "audio-insights"

	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, nil, err
	}

	db := stdlib.OpenDBFromPool(pool)
	logger.Info("successfully connected to database")
	return &DB{DB: db, driver: DriverPostgres}, pool, nil
}

// Close closes the database connections gracefully.
func Close(db *DB, pool *pgxpool.Pool, logger *slog.Logger) {
	logger.Info("closing database connections")
	if db != nil {
		if err := db.DB.Close(); err != nil {
			logger.Error("failed to close sql handle", "error", err)
		}
	}
	if pool != nil {
		pool.Close()
	}
	logger.Info("database connections closed")
}

// HealthCheck pings the store to catch DSN issues early.
func HealthCheck(ctx context.Context, db *DB, logger *slog.Logger) error {
	logger.Debug("pinging database")
	if err := db.PingContext(ctx); err != nil {
		return err
	}
	logger.Debug("database ping successful")
	return nil
}

// Migrate creates the document tables when absent. The store is
// deliberately schemaless beyond the keys queried by the pipeline:
// documents live in the doc column, with id, file_path, and status
// lifted out for lookups.
func Migrate(ctx context.Context, db *DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			file_path TEXT NOT NULL,
			status TEXT NOT NULL,
			doc TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS jobs_file_path_idx ON jobs (file_path)`,
		`CREATE TABLE IF NOT EXISTS prompt_subcategories (
			id TEXT PRIMARY KEY,
			doc TEXT NOT NULL
		)`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return common.WrapError(err, "migrate")
		}
	}
	return nil
}
