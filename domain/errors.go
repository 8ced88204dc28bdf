package domain

import "errors"

var (
	// ErrTransient marks infrastructure failures (lock timeouts, serialization
	// failures, unreachable collaborators) after which the whole attempt may
	// be retried because nothing was committed.
	ErrTransient = errors.New("transient failure")

	ErrNotFound              = errors.New("record not found")
	ErrAttemptImmutable      = errors.New("allocation attempts are append-only")
	ErrUnitPartiallyConsumed = errors.New("reward unit has partially consumed stock")
)
