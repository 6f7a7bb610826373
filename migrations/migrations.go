// Package migrations embeds the SQL schema so the binaries carry it.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
