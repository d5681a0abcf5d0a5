package privacy

// SanitizedError carries a redacted message while keeping the original error
// available to errors.Is and errors.As.
type SanitizedError struct {
	original     error
	sanitizedMsg string
}

func (e *SanitizedError) Error() string {
	return e.sanitizedMsg
}

func (e *SanitizedError) Unwrap() error {
	return e.original
}

// WrapError redacts err with ScrubMessage. It returns nil for a nil err.
func WrapError(err error) error {
	return WrapErrorFunc(err, ScrubMessage)
}

// WrapErrorFunc redacts err with scrub.
func WrapErrorFunc(err error, scrub func(string) string) error {
	if err == nil {
		return nil
	}
	return &SanitizedError{
		original:     err,
		sanitizedMsg: scrub(err.Error()),
	}
}
