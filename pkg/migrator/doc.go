// Package migrator discovers and validates CQL migration scripts.
//
// A migration script is a file named V<version>__<description>.cql, where
// version is a positive integer (a sequence number or a sortable timestamp
// like 20240101120000) and description is free text used only for display.
// Discovery reads every script in a directory, checksums the raw bytes,
// splits the content into statements, and returns the set ordered by
// version.
//
// Checksums cover the raw script bytes before splitting, so any textual
// change — including comment-only edits — is later surfaced as drift rather
// than silently ignored.
//
// All discovery failures (bad names, duplicate versions, unreadable files,
// malformed CQL) are detected here, before any cluster contact.
package migrator
