package utils

import (
	"regexp"
	"strings"
)

// Unquoted CQL identifiers are case-insensitive alphanumerics capped at 48
// characters. Names interpolated into DDL (keyspaces, tables) must satisfy
// this; everything else is bound as a statement value.
var identifierRE = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{0,47}$`)

// ValidIdentifier reports whether name is usable as an unquoted CQL
// identifier.
//
// Examples:
//   - "migration_history" -> true
//   - "Users2" -> true
//   - "2fast" -> false
//   - "drop table" -> false
func ValidIdentifier(name string) bool {
	return identifierRE.MatchString(name)
}

// QuoteIdentifier wraps an identifier in double quotes, escaping embedded
// quotes, for names that need case preservation or reserved words.
//
// Examples:
//   - "Events" -> "\"Events\""
//   - "we\"ird" -> "\"we\"\"ird\""
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QualifiedName joins a keyspace and a name with a dot, quoting either part
// when it cannot stand unquoted. An empty keyspace yields the bare name.
//
// Examples:
//   - ("cqlward", "migration_history") -> "cqlward.migration_history"
//   - ("", "migration_history") -> "migration_history"
//   - ("cqlward", "Schema History") -> "cqlward.\"Schema History\""
func QualifiedName(keyspace, name string) string {
	if !ValidIdentifier(name) {
		name = QuoteIdentifier(name)
	}
	if keyspace == "" {
		return name
	}
	if !ValidIdentifier(keyspace) {
		keyspace = QuoteIdentifier(keyspace)
	}
	return keyspace + "." + name
}
