package main

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/ith-monitor-core/internal/infrastructure/database"
	"github.com/nerrad567/ith-monitor-core/internal/infrastructure/logging"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test-config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// freePort asks the kernel for an unused TCP port.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// TestRun_InvalidConfig verifies run fails on an unparseable config file.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("ITHMONITOR_CONFIG", writeConfig(t, "database: [not, a, map"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.Error(t, run(ctx))
}

// TestRun_UnsupportedDriver verifies validation errors stop startup.
func TestRun_UnsupportedDriver(t *testing.T) {
	t.Setenv("ITHMONITOR_CONFIG", writeConfig(t, `
database:
  driver: oracle
`))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.ErrorContains(t, run(ctx), "database.driver")
}

// TestRun_StartupAndShutdown runs the service on SQLite with the optional
// collaborators disabled and stops it via context cancellation.
func TestRun_StartupAndShutdown(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ITHMONITOR_CONFIG", writeConfig(t, `
database:
  driver: sqlite
  path: "`+filepath.Join(dir, "ith.db")+`"
  busy_timeout: 5

api:
  host: "127.0.0.1"
  port: `+strconv.Itoa(freePort(t))+`

mqtt:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stdout
`))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, run(ctx))
	assert.FileExists(t, filepath.Join(dir, "ith.db"))
}

// TestRun_MQTTUnreachable verifies an enabled but unreachable broker fails startup.
func TestRun_MQTTUnreachable(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ITHMONITOR_CONFIG", writeConfig(t, `
database:
  path: "`+filepath.Join(dir, "ith.db")+`"

mqtt:
  enabled: true
  broker:
    host: "127.0.0.1"
    port: 19999
    client_id: "test-client"
  reconnect:
    initial_delay: 1
    max_delay: 5

logging:
  level: error
`))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	assert.Error(t, run(ctx), "an unreachable broker must fail startup")
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("ITHMONITOR_CONFIG", "")
	assert.Equal(t, defaultConfigPath, getConfigPath())

	t.Setenv("ITHMONITOR_CONFIG", "/custom/path/config.yaml")
	assert.Equal(t, "/custom/path/config.yaml", getConfigPath())
}

// TestLoadConfig_MissingFileUsesDefaults verifies the no-file fallback.
func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"), logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.API.Port)
}

func TestHealthCheck_DisabledCollaborators(t *testing.T) {
	db, err := database.Open(database.Config{
		Driver:      database.DialectSQLite,
		Path:        filepath.Join(t.TempDir(), "ith.db"),
		BusyTimeout: 5,
	})
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, healthCheck(context.Background(), db, nil, nil))
}

// TestMigrateDown reverts one migration per call, newest first, and is a
// no-op once nothing is applied.
func TestMigrateDown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ith.db")
	t.Setenv("ITHMONITOR_CONFIG", writeConfig(t, `
database:
  driver: sqlite
  path: "`+path+`"
  busy_timeout: 5
logging:
  level: error
`))
	ctx := context.Background()

	status := func() database.MigrationStatus {
		t.Helper()
		db, err := database.Open(database.Config{Driver: database.DialectSQLite, Path: path, BusyTimeout: 5})
		require.NoError(t, err)
		defer db.Close()
		st, err := db.MigrationStatus(ctx)
		require.NoError(t, err)
		return st
	}

	db, err := database.Open(database.Config{Driver: database.DialectSQLite, Path: path, BusyTimeout: 5})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))
	before, err := db.MigrationStatus(ctx)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	require.Empty(t, before.Pending)

	require.NoError(t, migrateDown(ctx))
	after := status()
	assert.Equal(t, before.Applied-1, after.Applied)
	assert.Equal(t, []string{before.Current}, after.Pending)

	for range after.Applied {
		require.NoError(t, migrateDown(ctx))
	}
	assert.Zero(t, status().Applied)
	assert.NoError(t, migrateDown(ctx), "nothing left to revert")
}
