package outbox

import (
	"embed"
	"io/fs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrations returns the embedded schema migrations for the outbox table,
// ready to be applied with pg.Migrate.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		// The embedded tree is fixed at compile time; this cannot fail
		// for a correctly built binary.
		panic(err)
	}
	return sub
}
