package adapter

import "errors"

// Sentinel failure categories. Callers match them with errors.Is; the
// engine's own error stays in the chain for diagnostics.
var (
	// ErrConnection marks a failure to open or upgrade the engine.
	ErrConnection = errors.New("connection error")

	// ErrConstraint marks a uniqueness violation on Create.
	ErrConstraint = errors.New("constraint violation")

	// ErrTransaction marks a transaction that failed to begin or commit.
	ErrTransaction = errors.New("transaction error")
)

// OpError tags any failure with the public operation that produced it, so
// every rejection reads "op() <cause>" regardless of which engine path
// failed. The cause chain stays reachable through Unwrap.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return e.Op + "() " + e.Err.Error()
}

func (e *OpError) Unwrap() error { return e.Err }
