// Package migrations embeds the goose SQL migrations for the node store.
package migrations

import "embed"

// PrefixEnv is the environment variable the migrations read the table prefix from
const PrefixEnv = "KBASE_TABLE_PREFIX"

//go:embed *.sql
var Migrations embed.FS
