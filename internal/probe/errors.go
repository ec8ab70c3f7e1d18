package probe

import "errors"

// ErrKind identifies a class of configuration or usage error, so callers
// and tests branch on the kind rather than on message text.
type ErrKind int

const (
	ErrUnknown ErrKind = iota
	ErrMissingTarget
	ErrConflictingTarget
	ErrBadTarget
	ErrUnsupportedMethod
	ErrBadPolicy
	ErrBadPattern
	ErrBadBody
	ErrMisuse
)

// Error is a configuration or usage error produced by New or Run.
type Error struct {
	Kind ErrKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return "probe: " + e.Msg + ": " + e.Err.Error()
	}
	return "probe: " + e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err if it is a probe Error, ErrUnknown
// otherwise.
func KindOf(err error) ErrKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ErrUnknown
}
