package parser

import (
	"fmt"
	"strings"
)

// splitState identifies the tokenizer state. Exactly one state is active at a
// time; transitions happen only on the characters handled below, which keeps
// boundary detection deterministic for any input.
type splitState int

const (
	stateNormal splitState = iota
	stateSingleQuote
	stateDoubleQuote
	stateLineComment
	stateBlockComment
)

// ParseError describes a malformed script and points at the character that
// opened the construct left unterminated.
type ParseError struct {
	// Line is the 1-based line of the offending character
	Line int

	// Column is the 1-based column (in runes) of the offending character
	Column int

	// Message describes what was left unterminated
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Message)
}

// SplitStatements splits the full text of one CQL script into an ordered
// sequence of non-empty statement strings.
//
// Statements are terminated by an unquoted, uncommented semicolon. Text inside
// single- or double-quoted literals is copied through verbatim, including
// semicolons and sequences that merely resemble comment markers. Quotes are
// escaped by doubling ('' or ""), per CQL. Line comments (-- and //) run to
// end of line and block comments to their closing marker; both are stripped
// before boundary detection. Whitespace-only spans between semicolons are
// discarded. A trailing statement without a final semicolon is yielded as the
// last statement when non-empty.
//
// Example:
//
//	stmts, err := parser.SplitStatements(`
//		CREATE TABLE users (id uuid PRIMARY KEY, name text);
//		INSERT INTO users (id, name) VALUES (now(), 'semi; colon');
//	`)
//	// stmts has two entries; the literal semicolon does not split
//
// Returns a *ParseError when a string literal or block comment is left
// unterminated.
func SplitStatements(script string) ([]string, error) {
	var (
		stmts    []string
		buf      strings.Builder
		state    = stateNormal
		line     = 1
		col      = 0
		openLine int
		openCol  int
	)

	flush := func() {
		if s := strings.TrimSpace(buf.String()); s != "" {
			stmts = append(stmts, s)
		}
		buf.Reset()
	}

	runes := []rune(script)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\n' {
			line++
			col = 0
		} else {
			col++
		}

		var next rune
		if i+1 < len(runes) {
			next = runes[i+1]
		}

		switch state {
		case stateNormal:
			switch {
			case r == ';':
				flush()
			case r == '\'':
				state = stateSingleQuote
				openLine, openCol = line, col
				buf.WriteRune(r)
			case r == '"':
				state = stateDoubleQuote
				openLine, openCol = line, col
				buf.WriteRune(r)
			case r == '-' && next == '-':
				state = stateLineComment
				i++
				col++
			case r == '/' && next == '/':
				state = stateLineComment
				i++
				col++
			case r == '/' && next == '*':
				state = stateBlockComment
				openLine, openCol = line, col
				i++
				col++
			default:
				buf.WriteRune(r)
			}

		case stateSingleQuote:
			buf.WriteRune(r)
			if r == '\'' {
				if next == '\'' {
					// escaped quote, stay in the literal
					buf.WriteRune(next)
					i++
					col++
				} else {
					state = stateNormal
				}
			}

		case stateDoubleQuote:
			buf.WriteRune(r)
			if r == '"' {
				if next == '"' {
					buf.WriteRune(next)
					i++
					col++
				} else {
					state = stateNormal
				}
			}

		case stateLineComment:
			if r == '\n' {
				state = stateNormal
				buf.WriteRune(r)
			}

		case stateBlockComment:
			if r == '*' && next == '/' {
				state = stateNormal
				i++
				col++
				// keep tokens on either side of the comment separated
				buf.WriteRune(' ')
			}
		}
	}

	switch state {
	case stateSingleQuote, stateDoubleQuote:
		return nil, &ParseError{Line: openLine, Column: openCol, Message: "unterminated string literal"}
	case stateBlockComment:
		return nil, &ParseError{Line: openLine, Column: openCol, Message: "unterminated block comment"}
	}

	flush()
	return stmts, nil
}
