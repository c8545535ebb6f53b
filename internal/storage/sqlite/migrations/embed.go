package migrations

import "embed"

// FS contains embedded SQLite migrations for the saga record stores.
//
//go:embed *.sql
var FS embed.FS
