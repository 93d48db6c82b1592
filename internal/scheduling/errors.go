package scheduling

import "fmt"

type ErrorCode string

const (
	ErrorInvalidTimeFormat ErrorCode = "INVALID_TIME_FORMAT"
	ErrorPastInstant       ErrorCode = "PAST_INSTANT"
	ErrorMissingField      ErrorCode = "MISSING_REQUIRED_FIELD"
	ErrorNotFound          ErrorCode = "NOT_FOUND"
	ErrorRateLimited       ErrorCode = "RATE_LIMITED"
	ErrorExternalService   ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrorTransport         ErrorCode = "TRANSPORT_ERROR"
)

// Error is a classified scheduling failure. Message is the user-facing
// explanation the conversational layer relays verbatim; Err retains the
// underlying cause for logs.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("scheduling: %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("scheduling: %s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// UserMessage returns the explanation meant for the end user.
func (e *Error) UserMessage() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func newError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}
