package postgres

import "embed"

// Migrations holds the golang-migrate scripts for the participants schema.
//
//go:embed migrations/*.sql
var Migrations embed.FS

const MigrationsDir = "migrations"
