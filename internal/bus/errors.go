package bus

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Lookup for a name that is not registered.
	ErrNotFound = errors.New("bus: entity not found")
	// ErrTypeMismatch matches every *TypeMismatchError.
	ErrTypeMismatch = errors.New("bus: payload type mismatch")
	// ErrLagged matches every *LaggedError.
	ErrLagged = errors.New("bus: receiver lagged")
	// ErrClosed is returned once the mailbox on the other side is gone.
	ErrClosed = errors.New("bus: mailbox closed")
)

// TypeMismatchError reports an Unwrap for the wrong payload kind.
type TypeMismatchError struct {
	Want Kind
	Got  Kind
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("bus: payload type mismatch: want %s, got %s", e.Want, e.Got)
}

func (e *TypeMismatchError) Is(target error) bool { return target == ErrTypeMismatch }

// LaggedError reports that a receiver fell more than the mailbox capacity
// behind and Missed messages were overwritten before it read them.
// The receiver has been moved to the oldest retained message.
type LaggedError struct {
	Missed uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("bus: receiver lagged, %d messages missed", e.Missed)
}

func (e *LaggedError) Is(target error) bool { return target == ErrLagged }
