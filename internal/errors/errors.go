package errors

import (
	"errors"
	"net/http"
)

var (
	// ErrMissingFields is returned when a required field is absent or blank.
	ErrMissingFields = errors.New("missing required fields")
	// ErrInvalidDomain is returned when a registration email is outside the institutional domain.
	ErrInvalidDomain = errors.New("email must use the institutional domain")
	// ErrConflict is returned when the email is already registered.
	ErrConflict = errors.New("email already registered")
	// ErrInvalidCredentials is returned for both unknown emails and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized is returned when no valid identity is attached to the request.
	ErrUnauthorized = errors.New("authentication required")
	// ErrForbidden is returned when the identity lacks the privilege or ownership.
	ErrForbidden = errors.New("insufficient permissions")
	// ErrNotFound is returned when the addressed resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned when a field is present but malformed.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidImage is returned when an upload is not an accepted image.
	ErrInvalidImage = errors.New("only JPG, PNG, or WEBP images are allowed")
)

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

// Generic messages that never carry detail across the boundary.
const (
	msgUnauthorized = "authentication required"
	msgInternal     = "internal server error"
)

// MapErrorToHTTP maps domain errors to HTTP errors. Client errors keep the
// (possibly wrapped) message; authentication failures and anything not in
// the taxonomy are reduced to generic text.
func MapErrorToHTTP(err error) *HTTPError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrMissingFields):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "MISSING_FIELDS")
	case errors.Is(err, ErrInvalidDomain):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "INVALID_DOMAIN")
	case errors.Is(err, ErrInvalidInput):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "INVALID_INPUT")
	case errors.Is(err, ErrInvalidImage):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "INVALID_IMAGE")
	case errors.Is(err, ErrConflict):
		return NewHTTPError(http.StatusConflict, err.Error(), "CONFLICT")
	case errors.Is(err, ErrInvalidCredentials):
		return NewHTTPError(http.StatusUnauthorized, ErrInvalidCredentials.Error(), "INVALID_CREDENTIALS")
	case errors.Is(err, ErrUnauthorized):
		return NewHTTPError(http.StatusUnauthorized, msgUnauthorized, "UNAUTHORIZED")
	case errors.Is(err, ErrForbidden):
		return NewHTTPError(http.StatusForbidden, err.Error(), "FORBIDDEN")
	case errors.Is(err, ErrNotFound):
		return NewHTTPError(http.StatusNotFound, err.Error(), "NOT_FOUND")
	default:
		return NewHTTPError(http.StatusInternalServerError, msgInternal, "INTERNAL_ERROR")
	}
}

// IsUpstream reports whether err falls outside the domain taxonomy and will
// be surfaced as a generic 500.
func IsUpstream(err error) bool {
	return err != nil && MapErrorToHTTP(err).StatusCode == http.StatusInternalServerError
}
