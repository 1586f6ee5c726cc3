package api

import (
	"encoding/json"
	"net/http"

	"github.com/routervm/uplinkctl/src/internal/errors"
)

// ErrorCode represents standard API error codes.
type ErrorCode string

const (
	// ErrCodeInvalidRequest indicates malformed or invalid request data,
	// including unknown segments, malformed targets and unknown tunnels.
	ErrCodeInvalidRequest ErrorCode = "invalid_request"

	// ErrCodeNotFound indicates the requested resource was not found, or that
	// a target could not be resolved to a live interface.
	ErrCodeNotFound ErrorCode = "not_found"

	// ErrCodeForbidden indicates the client is not allowed to use the API.
	ErrCodeForbidden ErrorCode = "forbidden"

	// ErrCodeDependencyUnavailable indicates that OS tooling failed.
	ErrCodeDependencyUnavailable ErrorCode = "dependency_unavailable"

	// ErrCodeInternalError indicates an internal server error.
	ErrCodeInternalError ErrorCode = "internal_error"
)

// APIError represents a structured API error response.
type APIError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ErrorResponse wraps an APIError for JSON responses.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// NewAPIError creates a new APIError with the given code and message.
func NewAPIError(code ErrorCode, message string) APIError {
	return APIError{
		Code:    code,
		Message: message,
	}
}

// WithDetails adds details to an APIError.
func (e APIError) WithDetails(details map[string]interface{}) APIError {
	e.Details = details
	return e
}

// WriteError writes an error response to the HTTP response writer.
func WriteError(w http.ResponseWriter, statusCode int, err APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: err})
}

// WriteInvalidRequest writes a 400 Bad Request error.
func WriteInvalidRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, NewAPIError(ErrCodeInvalidRequest, message))
}

// WriteNotFound writes a 404 Not Found error.
func WriteNotFound(w http.ResponseWriter, resource string) {
	WriteError(w, http.StatusNotFound, NewAPIError(ErrCodeNotFound, resource+" not found"))
}

// WriteForbidden writes a 403 Forbidden error.
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, NewAPIError(ErrCodeForbidden, message))
}

// WriteInternalError writes a 500 Internal Server Error.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, NewAPIError(ErrCodeInternalError, message))
}

// WriteServiceError writes the response for an error returned by the
// control service, choosing the status from its domain code.
func WriteServiceError(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)
	apiErr := NewAPIError(apiCode(code), err.Error()).
		WithDetails(map[string]interface{}{"domain_code": string(code)})
	WriteError(w, httpStatus(code), apiErr)
}

func apiCode(code errors.ErrorCode) ErrorCode {
	switch code {
	case errors.ErrCodeConfig:
		return ErrCodeInvalidRequest
	case errors.ErrCodeNotFound:
		return ErrCodeNotFound
	case errors.ErrCodeDependency:
		return ErrCodeDependencyUnavailable
	default:
		return ErrCodeInternalError
	}
}

func httpStatus(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeConfig:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeDependency:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
