package tasks

import (
	"errors"
	"fmt"
)

// Kind classifies store and reminder failures.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindPersistence
	KindDelivery
)

// ErrNotFound is wrapped by errors for a missing task index.
var ErrNotFound = errors.New("task not found")

// Error is the error type returned by this package.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Code is the stable identifier used in logs.
func (e *Error) Code() string {
	switch e.Kind {
	case KindValidation:
		return "VALIDATION"
	case KindNotFound:
		return "NOT_FOUND"
	case KindPersistence:
		return "PERSISTENCE"
	case KindDelivery:
		return "DELIVERY"
	}
	return "UNKNOWN"
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func notFound(op string, index int) error {
	return &Error{Kind: KindNotFound, Op: op, Err: fmt.Errorf("index %d: %w", index, ErrNotFound)}
}

func validation(op, msg string) error {
	return &Error{Kind: KindValidation, Op: op, Err: errors.New(msg)}
}
