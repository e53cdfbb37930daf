// Package api defines the JSON envelopes shared by every HTTP response.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Response is the success envelope. Success is derived from StatusCode.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

func NewResponse(statusCode int, data any, message string) Response {
	return Response{
		StatusCode: statusCode,
		Data:       data,
		Message:    message,
		Success:    statusCode < http.StatusBadRequest,
	}
}

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	Success    bool     `json:"success"`
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Errors     []string `json:"errors"`
}

// Error is an error that already knows how it should be presented.
type Error struct {
	Status  int
	Message string
	Errors  []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

func BadRequest(message string) *Error   { return NewError(http.StatusBadRequest, message) }
func Unauthorized(message string) *Error { return NewError(http.StatusUnauthorized, message) }
func NotFound(message string) *Error     { return NewError(http.StatusNotFound, message) }
func Conflict(message string) *Error     { return NewError(http.StatusConflict, message) }

// Internal hides err from the caller; it is kept only for logging.
func Internal(err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: "internal server error", Err: err}
}

// WriteJSON writes v with the given status code and disables caching.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Write sends a success envelope.
func Write(w http.ResponseWriter, statusCode int, data any, message string) {
	WriteJSON(w, statusCode, NewResponse(statusCode, data, message))
}

// WriteError sends the failure envelope for err. Errors that are not *Error
// become a bare 500 so nothing internal crosses the boundary.
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		apiErr = Internal(err)
	}

	errs := apiErr.Errors
	if errs == nil {
		errs = []string{}
	}

	WriteJSON(w, apiErr.Status, ErrorResponse{
		Success:    false,
		StatusCode: apiErr.Status,
		Message:    apiErr.Message,
		Errors:     errs,
	})
}
