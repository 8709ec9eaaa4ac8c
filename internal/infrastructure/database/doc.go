// Package database provides relational store connectivity for ITH Monitor Core.
//
// Two dialects are supported behind the same *DB wrapper:
//   - sqlite (github.com/mattn/go-sqlite3): single-file deployments, one
//     writer connection, WAL mode
//   - postgres (github.com/jackc/pgx/v5/stdlib): networked deployments with a
//     bounded connection pool
//
// Queries are written once with ? placeholders; ExecContext, QueryContext and
// QueryRowContext rebind them for the active dialect. Statements run inside a
// *sql.Tx must be passed through Rebind explicitly.
//
// IsUniqueViolation recognises unique-constraint errors from both drivers so
// repositories can translate them into domain errors.
//
// Usage:
//
//	db, err := database.Open(database.Config{Driver: "sqlite", Path: "./data/ithmonitor.db"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration Strategy:
//
// Migrations are embedded per dialect (migrations/sqlite, migrations/postgres)
// and named YYYYMMDD_HHMMSS_description.{up,down}.sql. Each runs in its own
// transaction and is recorded in schema_migrations. Rollback reverts the
// newest applied version and MigrationStatus reports what is pending.
//
// The dbtest subpackage opens migrated pools for tests: SQLite in a temp
// dir, and PostgreSQL in a throwaway schema when ITHMONITOR_TEST_PG_DSN is set.
package database
