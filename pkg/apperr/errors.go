package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUpstream     = errors.New("upstream service error")
	ErrDatabase     = errors.New("database error")
	ErrInternal     = errors.New("internal error")
)

func New(code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func Invalid(message string) *AppError {
	return New("INVALID_INPUT", message, ErrInvalidInput)
}

func Invalidf(format string, args ...interface{}) *AppError {
	return Invalid(fmt.Sprintf(format, args...))
}

func NotFound(message string) *AppError {
	return New("NOT_FOUND", message, ErrNotFound)
}

// Upstream wraps a failure of an external collaborator (LLM, DocuSign, SMTP, OCR).
func Upstream(service string, err error) *AppError {
	return New("UPSTREAM_ERROR", fmt.Sprintf("%s request failed: %v", service, err), fmt.Errorf("%w: %w", ErrUpstream, err))
}

func Database(message string, err error) *AppError {
	return New("DATABASE_ERROR", message, fmt.Errorf("%w: %w", ErrDatabase, err))
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus maps an error onto the response status the API reports.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Public returns the code and message safe to show to API clients.
func Public(err error) (code, message string) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code, ae.Message
	}
	return "INTERNAL_ERROR", "An unexpected error occurred"
}
