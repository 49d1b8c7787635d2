package migration

import "embed"

const migrationsDir = "files"

//go:embed files/*.sql
var embeddedMigrations embed.FS
