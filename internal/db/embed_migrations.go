package db

import "embed"

// MigrationFS holds the schema migrations so cmd/migrate ships as a single
// binary with no SQL files on disk.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
