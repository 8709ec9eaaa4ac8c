// Package dbtest opens migrated database pools for tests.
//
// SQLite always works. Postgres runs only when ITHMONITOR_TEST_PG_DSN names a
// reachable server; each call gets its own schema, dropped on cleanup, so
// suites can run in parallel against one database.
package dbtest

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/ith-monitor-core/internal/infrastructure/database"
	_ "github.com/nerrad567/ith-monitor-core/migrations" // registers embedded schema
)

// PostgresDSNEnv names the variable holding the test server's connection string.
const PostgresDSNEnv = "ITHMONITOR_TEST_PG_DSN"

const setupTimeout = 30 * time.Second

// SQLite opens a migrated SQLite database in a temp dir.
func SQLite(t testing.TB) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Driver:      database.DialectSQLite,
		Path:        filepath.Join(t.TempDir(), "ith.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	require.NoError(t, err, "opening test database")
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	migrate(t, db)
	return db
}

// Postgres opens a migrated pool confined to a fresh schema. The test is
// skipped when ITHMONITOR_TEST_PG_DSN is unset or the server is unreachable.
func Postgres(t testing.TB) *database.DB {
	t.Helper()

	dsn := os.Getenv(PostgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", PostgresDSNEnv)
	}

	admin, err := database.Open(database.Config{Driver: database.DialectPostgres, DSN: dsn, MaxOpenConns: 1})
	if err != nil {
		t.Skipf("test postgres not reachable: %v", err)
	}
	t.Cleanup(func() { admin.Close() }) //nolint:errcheck // Test cleanup

	schema := "ith_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()
	_, err = admin.ExecContext(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err, "creating schema %s", schema)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
		defer cancel()
		admin.ExecContext(ctx, "DROP SCHEMA IF EXISTS "+schema+" CASCADE") //nolint:errcheck // Test cleanup
	})

	scopedDSN, err := withSearchPath(dsn, schema)
	require.NoError(t, err)
	db, err := database.Open(database.Config{Driver: database.DialectPostgres, DSN: scopedDSN, MaxOpenConns: 4})
	require.NoError(t, err, "opening schema-scoped pool")
	// Registered after the schema drop so it runs first.
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	migrate(t, db)
	return db
}

// Dialects returns the stores a repository suite should run against:
// SQLite always, Postgres when configured.
func Dialects() map[string]func(testing.TB) *database.DB {
	return map[string]func(testing.TB) *database.DB{
		database.DialectSQLite:   SQLite,
		database.DialectPostgres: Postgres,
	}
}

func migrate(t testing.TB, db *database.DB) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()
	require.NoError(t, db.Migrate(ctx), "migrating test database")
}

// withSearchPath pins every pooled connection to schema. pgx forwards
// unknown DSN parameters as runtime settings.
func withSearchPath(dsn, schema string) (string, error) {
	if !strings.Contains(dsn, "://") {
		return dsn + " search_path=" + schema, nil
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
