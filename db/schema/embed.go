// Package schema embeds the Postgres migrations applied by golang-migrate.
package schema

import "embed"

// FS holds NNN_description.{up,down}.sql.
//
//go:embed *.sql
var FS embed.FS
