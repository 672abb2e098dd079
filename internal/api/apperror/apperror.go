package apperror

import (
	"errors"
	"net/http"
)

// AppError is an error the HTTP boundary can report to the client as is.
type AppError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(msg string) *AppError {
	return &AppError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: msg}
}

func Validation(msg string, err error) *AppError {
	return &AppError{Status: http.StatusBadRequest, Code: "BAD_REQUEST", Message: msg, Err: err}
}

func Unauthorized(msg string) *AppError {
	return &AppError{Status: http.StatusUnauthorized, Code: "UNAUTHORIZED", Message: msg}
}

// Storage wraps a file storage failure. The cause is kept for logs only.
func Storage(err error) *AppError {
	return &AppError{Status: http.StatusInternalServerError, Code: "STORAGE_ERROR", Message: "File storage failure", Err: err}
}

// As reports whether err carries an *AppError.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
