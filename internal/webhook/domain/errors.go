package domain

import "errors"

// ErrUnsupportedEventType is raised when no handler exists for an event's
// type. It is a classification error, not a transient fault, so it is never
// retried.
var ErrUnsupportedEventType = errors.New("no handler registered for event type")

// TerminalError marks a processing failure that retrying cannot fix: bad
// input, an unresolvable SKU, an unsupported event kind. The dispatch worker
// inspects the error kind to decide redelivery; anything not terminal is
// treated as transient and retry-eligible.
type TerminalError struct {
	Err error
}

func (e *TerminalError) Error() string { return e.Err.Error() }

func (e *TerminalError) Unwrap() error { return e.Err }

// Terminal wraps err as a terminal, non-retriable failure
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &TerminalError{Err: err}
}

// IsTerminal reports whether err (or anything it wraps) is terminal
func IsTerminal(err error) bool {
	var t *TerminalError
	return errors.As(err, &t)
}
