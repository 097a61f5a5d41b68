package apperrors

import "net/http"

// =============================================================================
// Error Codes
// =============================================================================

type ErrorCode string

const (
	ErrorCodeInternalError    ErrorCode = "INTERNAL_ERROR"
	ErrorCodeValidationError  ErrorCode = "VALIDATION_ERROR"
	ErrorCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrorCodeSonosUnreachable ErrorCode = "SONOS_UNREACHABLE"
	ErrorCodeSonosNoGroup     ErrorCode = "SONOS_GROUP_UNAVAILABLE"
)

// ErrorType categorizes errors by who has to act on them.
type ErrorType string

const (
	// ErrorTypeInvalidRequest indicates bad path parameters or unknown actions.
	ErrorTypeInvalidRequest ErrorType = "invalid_request_error"
	// ErrorTypeDeviceError indicates a speaker did not answer usefully.
	ErrorTypeDeviceError ErrorType = "device_error"
	// ErrorTypeAPIError indicates an internal error.
	ErrorTypeAPIError ErrorType = "api_error"
)

// ErrorBody is the serialized error payload.
// Format: {"type": "device_error", "code": "SONOS_UNREACHABLE", "message": "..."}
type ErrorBody struct {
	Type    ErrorType      `json:"type"`
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// AppError is the base error type for HTTP responses.
type AppError struct {
	Code       ErrorCode
	Message    string
	StatusCode int
	Details    map[string]any
}

func (err *AppError) Error() string {
	return err.Message
}

// ErrorBody returns the serializable form of err.
func (err *AppError) ErrorBody() ErrorBody {
	errType := ErrorTypeAPIError
	switch {
	case err.StatusCode == http.StatusBadGateway || err.StatusCode == http.StatusGatewayTimeout:
		errType = ErrorTypeDeviceError
	case err.StatusCode >= 400 && err.StatusCode < 500:
		errType = ErrorTypeInvalidRequest
	}

	return ErrorBody{
		Type:    errType,
		Code:    err.Code,
		Message: err.Message,
		Details: err.Details,
	}
}

func NewAppError(code ErrorCode, message string, statusCode int, details map[string]any) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Details:    details,
	}
}

func NewValidationError(message string, details map[string]any) *AppError {
	return NewAppError(ErrorCodeValidationError, message, http.StatusBadRequest, details)
}

func NewNotFoundError(message string, details map[string]any) *AppError {
	return NewAppError(ErrorCodeNotFound, message, http.StatusNotFound, details)
}

// NewDeviceError reports that the speaker at ip did not complete an action.
func NewDeviceError(message, ip string) *AppError {
	return NewAppError(ErrorCodeSonosUnreachable, message, http.StatusBadGateway, map[string]any{"ip": ip})
}

// NewGroupError reports that no member of ip's group could be adjusted.
func NewGroupError(message, ip string) *AppError {
	return NewAppError(ErrorCodeSonosNoGroup, message, http.StatusBadGateway, map[string]any{"ip": ip})
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrorCodeInternalError, message, http.StatusInternalServerError, nil)
}

// EnsureAppError converts an arbitrary error into an AppError.
func EnsureAppError(err error) *AppError {
	if err == nil {
		return NewInternalError("Unknown error")
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return NewInternalError("Internal server error")
}
