package planner

import "fmt"

type (
	// DriftError reports a script whose content changed after it was
	// successfully applied.
	DriftError struct {
		Version  int64
		Path     string
		Expected string
		Actual   string
	}

	// OrderingError reports a pending version below the highest applied one.
	OrderingError struct {
		Version    int64
		MaxApplied int64
	}

	// MissingSourceError reports an applied version with no script on disk,
	// under the error policy.
	MissingSourceError struct {
		Version int64
	}

	// FailedError reports a partially applied migration blocking the run.
	FailedError struct {
		Version           int64
		StatementsApplied int
	}
)

func (e *DriftError) Error() string {
	return fmt.Sprintf("version %d drifted: %s has checksum %s, history records %s", e.Version, e.Path, e.Actual, e.Expected)
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("version %d is below the highest applied version %d", e.Version, e.MaxApplied)
}

func (e *MissingSourceError) Error() string {
	return fmt.Sprintf("applied version %d has no migration script", e.Version)
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("version %d previously failed after %d statement(s); resolve it manually and retry with the version flag", e.Version, e.StatementsApplied)
}
