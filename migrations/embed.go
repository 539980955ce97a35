// Package migrations embeds the SQL schema migrations for use with
// storage.NewMigrator. cmd/server does not apply them at startup.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
