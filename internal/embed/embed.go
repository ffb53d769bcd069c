package embed

import (
	"embed"
)

// Migrations goose SQL migrations for the portfolio database, compiled into
// the binary.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir root of Migrations
const MigrationsDir = "migrations"
