// Package resources embeds the default configuration and schema migrations.
package resources

import (
	"embed"
	"io/fs"
)

// ApplicationYAML is the default application configuration.
//
//go:embed application.yaml
var ApplicationYAML []byte

//go:embed all:migrations
var migrationsFS embed.FS

// Migrations returns the migration tree rooted at migrations/, one directory per database type.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}
