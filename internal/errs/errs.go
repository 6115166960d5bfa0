// Package errs holds the error taxonomy shared by the client core and the
// reference service. Callers wrap a sentinel with fmt.Errorf("...: %w", ...)
// and classify with errors.Is.
package errs

import "errors"

var (
	// ErrValidation marks malformed input or input the service rejected.
	ErrValidation = errors.New("validation failed")

	// ErrAuthorization marks an action the caller has no rights for,
	// including a missing or expired session.
	ErrAuthorization = errors.New("not authorized")

	// ErrNotFound marks an entity that no longer exists.
	ErrNotFound = errors.New("not found")

	// ErrTransport marks network failures, timeouts and service errors.
	ErrTransport = errors.New("transport failure")

	// ErrConsistency marks a local invariant violation detected at runtime.
	// It is logged and healed rather than shown to users.
	ErrConsistency = errors.New("consistency violation")

	// ErrInFlight marks a favorite toggle rejected because another toggle
	// for the same user and story has not resolved yet.
	ErrInFlight = errors.New("request already in flight")
)

// Kind returns a short stable label for the class of err, or "unknown".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrAuthorization):
		return "authorization"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrConsistency):
		return "consistency"
	case errors.Is(err, ErrInFlight):
		return "in_flight"
	default:
		return "unknown"
	}
}
