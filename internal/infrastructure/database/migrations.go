package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
	"time"
)

// MigrationsFS holds the schema files, one subdirectory per dialect:
//
//	sqlite/20260301_090000_initial_schema.up.sql
//	postgres/20260301_090000_initial_schema.down.sql
//
// The migrations package sets it from an embedded filesystem.
var MigrationsFS fs.FS

// MigrationsDir is the directory within MigrationsFS holding the dialect
// subdirectories.
var MigrationsDir = "."

// ErrNoDownMigration is returned when rolling back a version that ships no
// .down.sql file.
var ErrNoDownMigration = errors.New("database: migration has no down script")

// Migration is one versioned schema change for the pool's dialect.
type Migration struct {
	// Version is the YYYYMMDD_HHMMSS prefix of the filename.
	Version string
	Name    string
	Up      string
	Down    string
}

// MigrationStatus summarises the schema_migrations table against the
// embedded files.
type MigrationStatus struct {
	Current string   `json:"current"`
	Applied int      `json:"applied"`
	Pending []string `json:"pending,omitempty"`
}

// Migrate applies every pending migration in version order. Each migration
// commits on its own, so a failure leaves earlier ones applied and a rerun
// resumes at the failed version.
func (db *DB) Migrate(ctx context.Context) error {
	migrations, applied, err := db.migrationState(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		err := db.inTx(ctx, m.Up,
			"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
			m.Version, time.Now().UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// Rollback reverts the most recently applied migration and returns it.
// The zero Migration is returned when nothing is applied.
func (db *DB) Rollback(ctx context.Context) (Migration, error) {
	migrations, applied, err := db.migrationState(ctx)
	if err != nil {
		return Migration{}, err
	}

	for _, m := range slices.Backward(migrations) {
		if !applied[m.Version] {
			continue
		}
		if strings.TrimSpace(m.Down) == "" {
			return Migration{}, fmt.Errorf("%w: %s", ErrNoDownMigration, m.Version)
		}
		err := db.inTx(ctx, m.Down, "DELETE FROM schema_migrations WHERE version = ?", m.Version)
		if err != nil {
			return Migration{}, fmt.Errorf("rolling back migration %s (%s): %w", m.Version, m.Name, err)
		}
		return m, nil
	}
	return Migration{}, nil
}

// MigrationStatus reports the newest applied version and what is still pending.
func (db *DB) MigrationStatus(ctx context.Context) (MigrationStatus, error) {
	migrations, applied, err := db.migrationState(ctx)
	if err != nil {
		return MigrationStatus{}, err
	}

	var status MigrationStatus
	for _, m := range migrations {
		if applied[m.Version] {
			status.Applied++
			status.Current = m.Version
			continue
		}
		status.Pending = append(status.Pending, m.Version)
	}
	return status, nil
}

// migrationState loads the dialect's files and the set of applied versions.
func (db *DB) migrationState(ctx context.Context) ([]Migration, map[string]bool, error) {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)`)
	if err != nil {
		return nil, nil, fmt.Errorf("creating migrations table: %w", err)
	}

	migrations, err := loadMigrations(db.dialect)
	if err != nil {
		return nil, nil, fmt.Errorf("loading migrations: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, nil, fmt.Errorf("reading applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, nil, fmt.Errorf("scanning applied migration: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating applied migrations: %w", err)
	}
	return migrations, applied, nil
}

// inTx runs a schema script and its bookkeeping statement atomically.
func (db *DB) inTx(ctx context.Context, script, bookkeeping string, args ...any) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("executing script: %w", err)
	}
	if _, err := tx.ExecContext(ctx, db.Rebind(bookkeeping), args...); err != nil {
		return fmt.Errorf("updating schema_migrations: %w", err)
	}
	return tx.Commit()
}

// loadMigrations reads the dialect subdirectory and pairs up/down files by
// version, oldest first. A missing directory yields no migrations.
func loadMigrations(dialect string) ([]Migration, error) {
	if MigrationsFS == nil {
		return nil, nil
	}

	dir := path.Join(MigrationsDir, dialect)
	files, err := fs.Glob(MigrationsFS, path.Join(dir, "*.sql"))
	if err != nil {
		return nil, err
	}

	byVersion := make(map[string]*Migration)
	for _, file := range files {
		version, name, direction, ok := splitMigrationFilename(path.Base(file))
		if !ok {
			continue
		}
		body, err := fs.ReadFile(MigrationsFS, file)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}

		m := byVersion[version]
		if m == nil {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		}
		if direction == "up" {
			m.Up = string(body)
		} else {
			m.Down = string(body)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" {
			return nil, fmt.Errorf("migration %s has a down script but no up script", m.Version)
		}
		migrations = append(migrations, *m)
	}
	slices.SortFunc(migrations, func(a, b Migration) int {
		return strings.Compare(a.Version, b.Version)
	})
	return migrations, nil
}

// splitMigrationFilename parses YYYYMMDD_HHMMSS_name.{up,down}.sql.
func splitMigrationFilename(file string) (version, name, direction string, ok bool) {
	base, found := strings.CutSuffix(file, ".sql")
	if !found {
		return "", "", "", false
	}
	if base, found = strings.CutSuffix(base, ".up"); found {
		direction = "up"
	} else if base, found = strings.CutSuffix(base, ".down"); found {
		direction = "down"
	} else {
		return "", "", "", false
	}

	date, rest, found := strings.Cut(base, "_")
	if !found || len(date) != 8 {
		return "", "", "", false
	}
	clock, name, _ := strings.Cut(rest, "_")
	if len(clock) != 6 {
		return "", "", "", false
	}
	return date + "_" + clock, name, direction, true
}
