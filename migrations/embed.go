// Package migrations holds the geowatch schema as embedded SQL files.
//
// Pass FS to database.DB.Migrate; the files sit at the root of the FS.
package migrations

import "embed"

// FS contains every *.sql migration in this directory.
//
//go:embed *.sql
var FS embed.FS
