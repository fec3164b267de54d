// Package migrations embeds the SQL schema of the postgres snapshot repository.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
