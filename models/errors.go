package models

// ValidationError reports missing or empty required input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError reports a lookup of a session id the store does not hold.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// UpstreamError reports any failure talking to, or coming back from, the AI service.
type UpstreamError struct {
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Message == "" && e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// FormattingError reports a failure rendering answer text to markup.
type FormattingError struct {
	Message string
	Err     error
}

func (e *FormattingError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *FormattingError) Unwrap() error { return e.Err }
