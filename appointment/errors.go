package appointment

import "net/http"

// InputError is a caller-input error. It carries one of a fixed set of
// messages and is never retried. Handlers translate it to a 400 response.
type InputError struct {
	msg string
}

// NewInputError returns an [InputError] with the given message. Prefer the
// predefined errors below so clients can match on the message.
func NewInputError(msg string) *InputError {
	return &InputError{msg: msg}
}

func (e *InputError) Error() string {
	return e.msg
}

// StatusCode returns the HTTP status for the error.
func (e *InputError) StatusCode() int {
	return http.StatusBadRequest
}

var (
	ErrMissingTenantID       = NewInputError("Missing tenantId")
	ErrInvalidTenantID       = NewInputError("Invalid tenantId")
	ErrMissingRequiredFields = NewInputError("Missing required fields")
	ErrInvalidEmail          = NewInputError("Invalid email format")
	ErrInvalidStatus         = NewInputError("Invalid status")
	ErrInvalidTimeRange      = NewInputError("End time must be after start time")
	ErrInvalidDate           = NewInputError("Invalid date format")
	ErrInvalidBody           = NewInputError("Invalid request body")
)
