package migrator

import "fmt"

type (
	// InvalidNameError reports a .cql file that does not match the
	// V<version>__<description>.cql naming convention.
	InvalidNameError struct {
		Path string
	}

	// DuplicateVersionError reports two scripts that share a version number.
	DuplicateVersionError struct {
		Version int64
		Paths   []string
	}

	// UnreadableScriptError reports a script that could not be opened or read.
	UnreadableScriptError struct {
		Path string
		Err  error
	}
)

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid migration name %q: expected V<version>__<description>.cql", e.Path)
}

func (e *DuplicateVersionError) Error() string {
	return fmt.Sprintf("duplicate migration version %d: %v", e.Version, e.Paths)
}

func (e *UnreadableScriptError) Error() string {
	return fmt.Sprintf("unreadable migration script %q: %v", e.Path, e.Err)
}

func (e *UnreadableScriptError) Unwrap() error { return e.Err }
