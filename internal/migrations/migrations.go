// Package migrations provides embedded SQL migrations for the client and
// server databases
package migrations

import (
	"embed"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql
var migrationsFS embed.FS

// Set names a group of migrations applied to one database
type Set string

const (
	// Client holds the local cache, pending queue and sync log tables
	Client Set = "client"
	// Server holds the users_progress table of the progress service
	Server Set = "server"
)

// GetSource creates a migrate source from the embedded migrations of set
func GetSource(set Set) (source.Driver, error) {
	sub, err := fs.Sub(migrationsFS, "sql/"+string(set))
	if err != nil {
		return nil, fmt.Errorf("failed to access embedded migrations: %w", err)
	}

	src, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source for %s: %w", set, err)
	}

	return src, nil
}
