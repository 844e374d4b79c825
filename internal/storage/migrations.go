package storage

import "embed"

// Migrations holds the SQL schema migrations applied by cmd/tools/migrate.
//
//go:embed migrations/*.sql
var Migrations embed.FS
