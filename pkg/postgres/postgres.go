package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/hierarchy"
	"github.com/jakechorley/tilavaraus-allocation/pkg/db"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	migrationsDir   = "migrations"
	applicationName = "tilavaraus-allocation"
)

// DB implements the allocation stores and the unit hierarchy on PostgreSQL
type DB struct {
	pool *pgxpool.Pool
}

var (
	_ db.Database        = (*DB)(nil)
	_ hierarchy.Resolver = (*DB)(nil)
)

// NewDB opens a connection pool for connString and checks it with a ping
func NewDB(ctx context.Context, connString string) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if _, ok := poolConfig.ConnConfig.RuntimeParams["application_name"]; !ok {
		poolConfig.ConnConfig.RuntimeParams["application_name"] = applicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (d *DB) Close() {
	d.pool.Close()
}

// RunMigrations applies the embedded SQL files that schema_migrations does
// not list yet, in file name order, and returns the names it applied.
// Each file runs in its own transaction under an advisory lock, so two
// concurrent runs never apply the same file.
func (d *DB) RunMigrations(ctx context.Context, logger *zap.Logger) ([]string, error) {
	// Step 1: Tracking table
	if _, err := d.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return nil, fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	// Step 2: Work out what is pending
	applied, err := d.appliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := pendingMigrations(migrationsFS, applied)
	if err != nil {
		return nil, err
	}
	logger.Debug("Found migrations",
		zap.Int("applied", len(applied)),
		zap.Strings("pending", pending))

	// Step 3: Apply them one by one
	var ran []string
	for _, filename := range pending {
		content, err := fs.ReadFile(migrationsFS, path.Join(migrationsDir, filename))
		if err != nil {
			return ran, fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		didRun, err := d.applyMigration(ctx, filename, string(content))
		if err != nil {
			return ran, err
		}
		if !didRun {
			logger.Info("Migration applied by another run", zap.String("migration", filename))
			continue
		}

		logger.Info("Applied migration", zap.String("migration", filename))
		ran = append(ran, filename)
	}

	return ran, nil
}

func (d *DB) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := d.pool.Query(ctx, `SELECT filename FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	filenames, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}

	applied := make(map[string]bool, len(filenames))
	for _, f := range filenames {
		applied[f] = true
	}
	return applied, nil
}

// applyMigration runs one file and records it. It returns false when the
// file was recorded by a concurrent run while this one waited for the lock.
func (d *DB) applyMigration(ctx context.Context, filename, content string) (bool, error) {
	ran := false
	err := pgx.BeginFunc(ctx, d.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('schema_migrations'))`); err != nil {
			return fmt.Errorf("failed to lock schema_migrations: %w", err)
		}

		var done bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE filename = $1)`, filename,
		).Scan(&done); err != nil {
			return fmt.Errorf("failed to check migration %s: %w", filename, err)
		}
		if done {
			return nil
		}

		if _, err := tx.Exec(ctx, content); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, filename); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", filename, err)
		}
		ran = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return ran, nil
}

// pendingMigrations lists the .sql files under migrations/ that are not in
// applied, sorted by name
func pendingMigrations(fsys fs.FS, applied map[string]bool) ([]string, error) {
	entries, err := fs.ReadDir(fsys, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var pending []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") || applied[name] {
			continue
		}
		pending = append(pending, name)
	}
	slices.Sort(pending)
	return pending, nil
}
