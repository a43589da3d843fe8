// Package migrations embeds the goose migrations of the SQLite snapshot store.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
