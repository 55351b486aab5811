// Package apperr defines the error kinds shared by the order workflow, the
// storage adapters and the HTTP layer.
//
// Every error produced by this service can be classified with KindOf. The
// HTTP layer maps kinds to status codes; storage adapters map driver errors to
// kinds; the workflow uses Boundary to decide what reaches the caller.
package apperr

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Kind classifies an error for propagation and presentation.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindNotFound
	KindInvalidRequest
	KindConflict
	KindOperationFailed
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidRequest:
		return "invalid_request"
	case KindConflict:
		return "conflict"
	case KindOperationFailed:
		return "operation_failed"
	default:
		return "unknown"
	}
}

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrConflict        = errors.New("conflict")
	ErrOperationFailed = errors.New("operation failed")
)

// Error is a classified error. Msg is safe to show to clients; Err is the
// underlying cause and is only exposed through Unwrap.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrInvalidRequest:
		return e.Kind == KindInvalidRequest
	case ErrConflict:
		return e.Kind == KindConflict
	case ErrOperationFailed:
		return e.Kind == KindOperationFailed
	}
	return false
}

// NotFound reports a missing entity, e.g. "Order ID: 42, not found.".
func NotFound(entity, id string) error {
	return &Error{
		Kind: KindNotFound,
		Msg:  fmt.Sprintf("%s ID: %s, not found.", entity, id),
	}
}

// Invalid reports a request the caller must correct before retrying.
func Invalid(format string, args ...any) error {
	return &Error{
		Kind: KindInvalidRequest,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// Conflict reports a uniqueness or state conflict detected by storage.
func Conflict(msg string, cause error) error {
	return &Error{Kind: KindConflict, Msg: msg, Err: cause}
}

// Failed wraps cause as an OperationFailed error with a stable message.
func Failed(msg string, cause error) error {
	return &Error{Kind: KindOperationFailed, Msg: msg, Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Boundary applies the workflow propagation policy: classified errors other
// than OperationFailed pass through unchanged, everything else is replaced by
// Failed(msg, err) so internal details never reach the caller.
func Boundary(err error, msg string) error {
	if err == nil {
		return nil
	}
	switch KindOf(err) {
	case KindNotFound, KindInvalidRequest, KindConflict:
		return err
	}
	return Failed(msg, err)
}
