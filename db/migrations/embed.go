// Package dbmigrations exposes embedded SQL migrations for riftpilot binaries.
package dbmigrations

import "embed"

// Files contains the embedded SQL migrations bundled into riftpilot binaries. The statements
// stay within the dialect shared by SQLite and PostgreSQL.
//
//go:embed *.sql
var Files embed.FS
