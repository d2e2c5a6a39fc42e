// Package vortexerr defines the error taxonomy shared by every core
// component. Callers compare kinds with errors.Is against the Sentinel
// values; wrapped errors retain the original cause via errors.Unwrap.
package vortexerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure the way an RPC adapter would map it onto a
// status code. Recoverability is documented per-kind below, not enforced
// by the type system.
type Kind int

const (
	// InvalidConfig: bad HNSW params at create. Recoverable (400-class).
	InvalidConfig Kind = iota
	// DimensionMismatch: vector dim != collection dim. Recoverable.
	DimensionMismatch
	// NotFound: external ID or collection missing. Recoverable.
	NotFound
	// AlreadyExists: duplicate collection or duplicate ID. Recoverable.
	AlreadyExists
	// StorageFull: segment at capacity. Recoverable by provisioning more.
	StorageFull
	// OutOfRange: internal-ID bounds violated. Not recoverable; bug or corruption.
	OutOfRange
	// Corrupt: magic/version/CRC/size mismatch. Not recoverable by the caller.
	Corrupt
	// WalAppend: underlying I/O on the log. Surfaces as fatal.
	WalAppend
	// Io: unclassified file I/O.
	Io
)

func (k Kind) String() string {
	switch k {
	case InvalidConfig:
		return "InvalidConfig"
	case DimensionMismatch:
		return "DimensionMismatch"
	case NotFound:
		return "NotFound"
	case AlreadyExists:
		return "AlreadyExists"
	case StorageFull:
		return "StorageFull"
	case OutOfRange:
		return "OutOfRange"
	case Corrupt:
		return "Corrupt"
	case WalAppend:
		return "WalAppend"
	case Io:
		return "Io"
	default:
		return "Unknown"
	}
}

// Error pairs a Kind with a message and an optional wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, vortexerr.Sentinel(vortexerr.InvalidConfig)) work by comparing kinds,
// via the package-level sentinel wrappers below.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New builds an *Error with no wrapped cause.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an *Error around an existing cause.
func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return New(kind, msg)
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Sentinel kind-only values, used with errors.Is for kind checks that don't
// care about the message: errors.Is(err, vortexerr.Sentinel(vortexerr.NotFound)).
func Sentinel(kind Kind) error {
	return &Error{Kind: kind, Msg: kind.String()}
}

// Of reports whether err carries the given Kind anywhere in its chain.
func Of(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
