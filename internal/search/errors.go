package search

import "fmt"

// LookupErrorCode represents specific per-entity lookup failure types.
type LookupErrorCode string

const (
	ErrBadStatus LookupErrorCode = "BAD_STATUS"
	ErrTransport LookupErrorCode = "TRANSPORT"
	ErrDecode    LookupErrorCode = "DECODE"
)

// LookupError is a structured error for one entity's failed code search. It is
// recovered inside Lookup and never returned to callers of the batch.
type LookupError struct {
	Code   LookupErrorCode
	Entity string
	Status int
	Cause  error
}

func (e *LookupError) Error() string {
	switch {
	case e.Code == ErrBadStatus:
		return fmt.Sprintf("[%s] %q: received status code %d", e.Code, e.Entity, e.Status)
	case e.Cause != nil:
		return fmt.Sprintf("[%s] %q: %v", e.Code, e.Entity, e.Cause)
	default:
		return fmt.Sprintf("[%s] %q", e.Code, e.Entity)
	}
}

func (e *LookupError) Unwrap() error {
	return e.Cause
}
