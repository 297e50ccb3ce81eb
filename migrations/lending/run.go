// Package lending embeds the goose migrations of the lending schema.
package lending

import "embed"

// MigrationsFS holds every *.sql migration in this directory.
//
//go:embed *.sql
var MigrationsFS embed.FS
