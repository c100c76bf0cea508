package router

// invalidRequestError signals a malformed route request (bad task type,
// empty prompt, out-of-range temperature). Surfaced to the caller.
type invalidRequestError struct{ msg string }

func (e invalidRequestError) Error() string { return "invalid request: " + e.msg }

// IsInvalidRequest reports whether err indicates a malformed request.
func IsInvalidRequest(err error) bool {
	_, ok := err.(invalidRequestError)
	return ok
}

// executionError wraps a failed dispatch attempt with the backend name.
// It never escapes the dispatcher; failures convert into failover attempts.
type executionError struct {
	backend string
	err     error
}

func (e executionError) Error() string { return "backend " + e.backend + ": " + e.err.Error() }

func (e executionError) Unwrap() error { return e.err }

// IsExecutionError reports whether err came from a backend dispatch attempt.
func IsExecutionError(err error) bool {
	_, ok := err.(executionError)
	return ok
}
