package hybrid

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the engine.
var (
	// ErrInvalidConfig indicates unusable engine parameters. Fatal, not
	// retryable.
	ErrInvalidConfig = errors.New("hybrid: invalid configuration")

	// ErrInsufficientData indicates the corpus is too small to build an
	// index. Safe to retry once the corpus has grown.
	ErrInsufficientData = errors.New("hybrid: insufficient data to build index")

	// ErrNotReady indicates the engine has not completed initialization.
	ErrNotReady = errors.New("hybrid: engine not initialized")
)

// Error wraps a failure with the engine operation that produced it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("hybrid.%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}
