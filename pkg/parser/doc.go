// Package parser splits raw CQL script text into discrete executable
// statements.
//
// Cassandra has no server-side notion of a multi-statement script, so a
// migration file must be broken into individual statements client-side before
// execution. The splitter is a small state machine rather than a grammar
// parser: statement bodies are treated as opaque text, and only the features
// that affect statement boundaries are modeled:
//
//   - unquoted, uncommented semicolons terminate statements
//   - single- and double-quoted literals (with doubled-quote escapes)
//     suppress boundary detection
//   - line comments (-- and //) and block comments (/* ... */) are stripped
//   - a trailing statement without a final semicolon is accepted
//
// Unterminated string literals and block comments are reported as a
// *ParseError carrying the line and column of the opening character.
package parser
