package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is an application error carrying the HTTP status it maps to.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is match any wrapped copy of the same sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// New creates a new Error.
func New(code int, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Wrap returns a copy of the sentinel carrying the underlying cause.
func Wrap(sentinel *Error, err error) *Error {
	return &Error{Code: sentinel.Code, Message: sentinel.Message, Err: err}
}

// AsError extracts an *Error from err, falling back to ErrInternal.
func AsError(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(ErrInternal, err)
}

var (
	ErrOrderNotFound   = New(http.StatusNotFound, "order not found", nil)
	ErrPaymentNotFound = New(http.StatusNotFound, "payment not found", nil)
	ErrForbidden       = New(http.StatusForbidden, "actor is not allowed to perform this transition", nil)

	// State machine and orchestration.
	ErrInvalidTransition = New(http.StatusConflict, "order status transition is not allowed", nil)
	ErrOrderNotPayable   = New(http.StatusConflict, "order is not in a payable state", nil)
	ErrAlreadyPaid       = New(http.StatusConflict, "order has already been paid", nil)
	ErrConflict          = New(http.StatusConflict, "state changed concurrently, please retry", nil)

	// Processor and webhook.
	ErrSignatureInvalid     = New(http.StatusBadRequest, "webhook signature verification failed", nil)
	ErrProcessorUnavailable = New(http.StatusBadGateway, "payment processor is temporarily unavailable", nil)
	ErrProcessorRejected    = New(http.StatusBadGateway, "payment processor rejected the request", nil)

	ErrValidation = New(http.StatusBadRequest, "invalid input", nil)
	ErrInternal   = New(http.StatusInternalServerError, "internal server error", nil)
)
