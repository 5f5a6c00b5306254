package api

const (
	// Generic request/server errors
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeUnauthorized   = "E_UNAUTHORIZED"    // missing or invalid credentials
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error

	// Access engine errors
	CodeNotFound     = "E_NOT_FOUND"      // unknown user or permission id
	CodeForbidden    = "E_FORBIDDEN"      // operation the acting identity may never perform
	CodeAccessDenied = "E_ACCESS_DENIED"  // resolved action below the required one
	CodeStorage      = "E_STORAGE_FAILED" // persistence collaborator failure
)
