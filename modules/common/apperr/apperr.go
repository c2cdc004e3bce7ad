package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned in the JSON error body.
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeRemoteCallFailed   = "REMOTE_CALL_FAILED"
	CodeRateLimited        = "RATE_LIMITED"
	CodeRemoteTimeout      = "REMOTE_TIMEOUT"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeEmptyResult        = "EMPTY_RESULT"
	CodeMalformedResult    = "MALFORMED_RESULT"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeRequestCanceled    = "REQUEST_CANCELED"
)

// StatusClientClosedRequest is the nginx convention for a client that went away before the response.
const StatusClientClosedRequest = 499

// Sentinel causes, matchable with errors.Is through an AppError.
var (
	ErrEmptyResult     = errors.New("remote service returned no predictions")
	ErrMalformedResult = errors.New("prediction does not carry a video url")
)

// AppError represents a request-scoped error with an HTTP status and error code.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// ErrorResponse represents the JSON error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// New creates a new application error.
func New(code, message string, statusCode int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
	}
}

// InvalidRequest creates a 400 error for bad client input.
func InvalidRequest(message string) *AppError {
	return New(CodeInvalidRequest, message, http.StatusBadRequest, nil)
}

// RemoteCallFailed creates a 502 error for a failed call to the inference service.
func RemoteCallFailed(err error) *AppError {
	return New(CodeRemoteCallFailed, "prediction request failed", http.StatusBadGateway, err)
}

// RateLimited creates a 429 error when the inference service throttles us.
func RateLimited(err error) *AppError {
	return New(CodeRateLimited, "prediction quota exceeded", http.StatusTooManyRequests, err)
}

// RemoteTimeout creates a 504 error when the prediction deadline expires.
func RemoteTimeout(err error) *AppError {
	return New(CodeRemoteTimeout, "prediction request timed out", http.StatusGatewayTimeout, err)
}

// ServiceUnavailable creates a 503 error, used while the circuit is open.
func ServiceUnavailable(err error) *AppError {
	return New(CodeServiceUnavailable, "prediction service temporarily unavailable", http.StatusServiceUnavailable, err)
}

// EmptyResult creates a 502 error for an empty predictions list.
func EmptyResult() *AppError {
	return New(CodeEmptyResult, "prediction response was empty", http.StatusBadGateway, ErrEmptyResult)
}

// MalformedResult creates a 502 error for a first prediction that is not a url.
func MalformedResult(detail string) *AppError {
	return New(CodeMalformedResult, "prediction response was malformed", http.StatusBadGateway,
		fmt.Errorf("%w: %s", ErrMalformedResult, detail))
}

// Canceled creates a 499 error when the caller gave up before the prediction finished.
func Canceled(err error) *AppError {
	return New(CodeRequestCanceled, "request canceled by client", StatusClientClosedRequest, err)
}

// Internal creates a 500 error.
func Internal(message string, err error) *AppError {
	return New(CodeInternalError, message, http.StatusInternalServerError, err)
}

// From extracts an AppError from err, falling back to a 500.
func From(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("internal server error", err)
}

// WriteJSON writes err as an ErrorResponse. The wrapped cause is never sent to the client.
func WriteJSON(w http.ResponseWriter, err error) {
	appErr := From(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: ErrorDetail{Code: appErr.Code, Message: appErr.Message},
	})
}
