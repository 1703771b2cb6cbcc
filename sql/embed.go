// Package sql embeds the goose migrations applied by the migrate command.
package sql

import "embed"

//go:embed *.sql
var FS embed.FS
