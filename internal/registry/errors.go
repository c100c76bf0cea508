package registry

// configError signals invalid backend registration; fatal at startup.
type configError struct{ msg string }

func (e configError) Error() string { return e.msg }

// IsConfigError reports whether err came from backend registration/validation.
func IsConfigError(err error) bool {
	_, ok := err.(configError)
	return ok
}
