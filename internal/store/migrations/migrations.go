// Package migrations embeds the gateway's SQL schema so the CLI's
// migrate subcommand can apply it without a separate asset pipeline.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
