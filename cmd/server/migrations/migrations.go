// Package migrations embeds the goose SQL migrations applied at startup by
// db.Migrate. The nested migrations/ directory matches goose's default
// lookup path inside the embedded filesystem.
package migrations

import "embed"

//go:embed migrations/*.sql
var FS embed.FS
