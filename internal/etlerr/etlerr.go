// Package etlerr defines the error kinds the engine distinguishes when a job fails.
//
// A kind is a sentinel matched with errors.Is. Errors built here keep the
// underlying cause reachable as well, so callers can still inspect driver or
// HTTP errors.
package etlerr

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

var (
	ErrConfig              = errors.New("configuration error")
	ErrNotFound            = fmt.Errorf("not found: %w", ErrConfig)
	ErrAmbiguousCredential = fmt.Errorf("ambiguous credential: %w", ErrConfig)
	ErrUnsupportedType     = errors.New("unsupported database type")
	ErrImportMissing       = errors.New("driver not available")
	ErrConnection          = errors.New("connection error")
	ErrProtocol            = errors.New("protocol error")
	ErrSchema              = errors.New("schema error")
	ErrLoad                = errors.New("load error")
	ErrTimeout             = errors.New("timeout")
)

// Error attaches a kind to a cause.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return fmt.Sprintf("%s: %v", e.Msg, e.Kind)
	case e.Msg == "":
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %v: %v", e.Msg, e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// New returns an error of the given kind with a stack trace.
func New(kind error, format string, args ...any) error {
	return pkgerrors.WithStack(&Error{Kind: kind, Msg: fmt.Sprintf(format, args...)})
}

// Wrap classifies err as kind. A nil err yields nil.
func Wrap(kind error, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return pkgerrors.WithStack(&Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err})
}

// KindOf returns the first known kind found in err's chain, or nil.
func KindOf(err error) error {
	for _, k := range []error{
		ErrNotFound, ErrAmbiguousCredential, ErrConfig, ErrUnsupportedType, ErrImportMissing,
		ErrConnection, ErrProtocol, ErrSchema, ErrLoad, ErrTimeout,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Label is a short, metric-friendly name for err's kind.
func Label(err error) string {
	switch KindOf(err) {
	case ErrNotFound:
		return "not_found"
	case ErrAmbiguousCredential:
		return "ambiguous_credential"
	case ErrConfig:
		return "config"
	case ErrUnsupportedType:
		return "unsupported_type"
	case ErrImportMissing:
		return "import_missing"
	case ErrConnection:
		return "connection"
	case ErrProtocol:
		return "protocol"
	case ErrSchema:
		return "schema"
	case ErrLoad:
		return "load"
	case ErrTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}
