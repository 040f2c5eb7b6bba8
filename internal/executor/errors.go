package executor

import "fmt"

// AccessDeniedError is returned when enforcement mode is "enforce" and the
// security check rejects a session access. It mirrors the teacher's
// permission.RejectedError shape: a sentinel wrapper carrying the reason.
type AccessDeniedError struct {
	Session string
	Reason  string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("Access denied: %s", e.Reason)
}

// IsAccessDeniedError reports whether err is an *AccessDeniedError.
func IsAccessDeniedError(err error) bool {
	_, ok := err.(*AccessDeniedError)
	return ok
}

// ProviderResolutionError wraps a resolver failure with the session name,
// per the "surface the original resolution error verbatim... wrapped with
// the session name" tie-break.
type ProviderResolutionError struct {
	Session string
	Err     error
}

func (e *ProviderResolutionError) Error() string {
	return fmt.Sprintf("session %q: %v", e.Session, e.Err)
}

func (e *ProviderResolutionError) Unwrap() error { return e.Err }
