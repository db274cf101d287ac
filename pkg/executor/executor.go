package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cqlward/cqlward/pkg/migrator"
)

type (
	// Conn executes a single statement against the cluster. Satisfied by
	// cassandra.Conn.
	Conn interface {
		Exec(ctx context.Context, stmt string, values ...any) error
	}

	// Executor applies migrations over a cluster connection.
	Executor struct {
		conn   Conn
		logger *slog.Logger
	}

	// Result describes one apply attempt.
	Result struct {
		// Version is the migration's version.
		Version int64

		// Success reports whether every statement applied.
		Success bool

		// StatementsApplied counts the statements that succeeded. On failure
		// it is the index of the failing statement.
		StatementsApplied int

		// TotalStatements is the statement count of the script.
		TotalStatements int

		// Duration is the wall time of the attempt.
		Duration time.Duration

		// Err is the statement failure when Success is false.
		Err error
	}

	// StatementError reports the exact statement that failed within a
	// migration. Index is zero-based script order.
	StatementError struct {
		Version   int64
		Index     int
		Statement string
		Err       error
	}
)

func (e *StatementError) Error() string {
	return fmt.Sprintf("version %d statement %d failed: %v", e.Version, e.Index+1, e.Err)
}

func (e *StatementError) Unwrap() error { return e.Err }

// New creates an Executor. A nil logger falls back to slog's default.
func New(conn Conn, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{conn: conn, logger: logger}
}

// Apply runs a migration's statements in order, halting at the first failure.
// The returned Result always reflects how far the attempt got; callers record
// it whether or not Success is set.
func (e *Executor) Apply(ctx context.Context, file *migrator.MigrationFile) *Result {
	result := &Result{
		Version:         file.Version,
		TotalStatements: len(file.Statements),
	}
	start := time.Now()
	defer func() { result.Duration = time.Since(start) }()

	e.logger.Info("applying migration",
		slog.Int64("version", file.Version),
		slog.String("description", file.Description),
		slog.Int("statements", len(file.Statements)),
	)

	for i, stmt := range file.Statements {
		e.logger.Debug("executing statement",
			slog.Int64("version", file.Version),
			slog.Int("index", i),
		)

		if err := e.conn.Exec(ctx, stmt); err != nil {
			result.Err = &StatementError{
				Version:   file.Version,
				Index:     i,
				Statement: stmt,
				Err:       err,
			}
			e.logger.Error("statement failed",
				slog.Int64("version", file.Version),
				slog.Int("index", i),
				slog.Any("error", err),
			)
			return result
		}
		result.StatementsApplied++
	}

	result.Success = true
	return result
}
