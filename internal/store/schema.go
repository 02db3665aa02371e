package store

import (
	_ "embed"
	"strings"
)

//go:embed schema.sql
var schemaSQL string

// Schema returns the DDL for the collection and target tables. It is
// portable between PostgreSQL and SQLite.
func Schema() string {
	return schemaSQL
}

// SchemaStatements splits Schema into individual statements for drivers
// that execute one statement per call.
func SchemaStatements() []string {
	var out []string
	for _, stmt := range strings.Split(schemaSQL, ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
	}
	return out
}
