// Package apperr defines the error kinds shared by the download and launch pipeline.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	Unknown Kind = iota
	Network
	HashMismatch
	NotFound
	BadArchive
	Cancelled
	SpawnFailed
	Config
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case Network:
		return "network"
	case HashMismatch:
		return "hash_mismatch"
	case NotFound:
		return "not_found"
	case BadArchive:
		return "bad_archive"
	case Cancelled:
		return "cancelled"
	case SpawnFailed:
		return "spawn_failed"
	case Config:
		return "config"
	default:
		return "unknown"
	}
}

// Retryable reports whether a failure of this kind is worth another attempt.
func (k Kind) Retryable() bool {
	return k == Network || k == HashMismatch
}

// Error is a failure tagged with a Kind and the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with a kind. A nil err produces an error carrying only the op.
func New(kind Kind, op string, err error) *Error {
	if err == nil {
		err = errors.New(kind.String())
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a kinded error from a format string.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var hm *HashMismatchError
	if errors.As(err, &hm) {
		return HashMismatch
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HashMismatchError is returned when downloaded content does not hash to the declared SHA-1.
type HashMismatchError struct {
	URL      string
	Expected string
	Actual   string
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("sha1 mismatch for %s: expected %s, got %s", e.URL, e.Expected, e.Actual)
}
