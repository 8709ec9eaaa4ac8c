// Package migrations embeds SQL migration files into the binary.
//
// Each dialect has its own subdirectory; the database package picks the one
// matching the open pool.
package migrations

import (
	"embed"

	"github.com/nerrad567/ith-monitor-core/internal/infrastructure/database"
)

//go:embed sqlite/*.sql postgres/*.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
