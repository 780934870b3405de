package dto

import (
	"net/http"

	"github.com/anucha1993/tour-api-sub001/internal/errs"
)

// APIError is the structured error response shape. All error responses use
// this format.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes
const (
	ErrCodeNotFound      = "not_found"
	ErrCodeBadRequest    = "bad_request"
	ErrCodeInternalError = "internal_error"
	ErrCodeValidation    = "validation_error"
	ErrCodeConflict      = "conflict"
	ErrCodeUpstream      = "upstream_error"
)

// NewAPIError creates a new APIError with the given code and message.
func NewAPIError(code, message string) APIError {
	return APIError{Code: code, Message: message}
}

// NotFoundError creates a not found error response.
func NotFoundError(resource string) APIError {
	return NewAPIError(ErrCodeNotFound, resource+" not found")
}

// BadRequestError creates a bad request error response.
func BadRequestError(message string) APIError {
	return NewAPIError(ErrCodeBadRequest, message)
}

// InternalError creates an internal server error response.
func InternalError() APIError {
	return NewAPIError(ErrCodeInternalError, "an internal error occurred")
}

// ValidationError creates a validation error response.
func ValidationError(message string) APIError {
	return NewAPIError(ErrCodeValidation, message)
}

// FromError maps an engine error to an HTTP status and response body.
func FromError(err error) (int, APIError) {
	switch {
	case errs.IsKind(err, errs.KindNotFound):
		return http.StatusNotFound, NewAPIError(ErrCodeNotFound, err.Error())
	case errs.IsKind(err, errs.KindValidation),
		errs.IsKind(err, errs.KindMapping),
		errs.IsKind(err, errs.KindConfiguration),
		errs.IsKind(err, errs.KindEndpointTemplate):
		return http.StatusBadRequest, NewAPIError(ErrCodeValidation, err.Error())
	case errs.IsKind(err, errs.KindConnection), errs.IsKind(err, errs.KindUpstream):
		return http.StatusBadGateway, NewAPIError(ErrCodeUpstream, err.Error())
	default:
		return http.StatusInternalServerError, InternalError()
	}
}
