package access

import "errors"

var (
	// ErrValidation marks input the caller got wrong: malformed paths,
	// unknown action names. Retrying the same call will fail again.
	ErrValidation = errors.New("invalid input")

	// ErrNotFound marks a lookup of an unknown user or permission id.
	ErrNotFound = errors.New("not found")

	// ErrForbidden marks an operation the acting identity may never
	// perform, such as deleting itself.
	ErrForbidden = errors.New("forbidden")

	// ErrStorage marks an I/O failure in the persistence collaborator.
	// The engine makes at most one attempt per call and propagates it
	// unchanged; retry policy belongs to the caller.
	ErrStorage = errors.New("storage failure")

	// ErrAccessDenied is returned by Require when the resolved action is
	// below the one the caller needs.
	ErrAccessDenied = errors.New("access denied")
)
