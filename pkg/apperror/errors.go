package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// HasCode reports whether err is (or wraps) an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsRetryable reports whether the provider should redeliver after this error.
// Anything that is not a terminal 4xx is treated as retryable.
func IsRetryable(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return true
	}
	return appErr.HTTPStatus >= http.StatusInternalServerError || appErr.HTTPStatus == http.StatusNotFound
}

// ---- Security & Authentication (SEC) ----

func ErrInvalidSignature() *AppError {
	return New("SEC_001", "Invalid webhook signature", http.StatusBadRequest)
}

func WrapInvalidSignature(err error) *AppError {
	return Wrap("SEC_001", "Invalid webhook signature", http.StatusBadRequest, err)
}

func ErrInvalidToken() *AppError {
	return New("SEC_002", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Webhook payloads (WH) ----

func ErrMalformedPayload(err error) *AppError {
	return Wrap("WH_001", "Malformed webhook payload", http.StatusBadRequest, err)
}

// ---- Validation (VAL) ----

// Validation returns a VAL_001 validation error.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

func ErrPayloadTooLarge() *AppError {
	return New("VAL_002", "Request body too large", http.StatusRequestEntityTooLarge)
}

func ErrUnknownProduct(productType string) *AppError {
	return New("VAL_001", fmt.Sprintf("Unknown product type %q", productType), http.StatusBadRequest)
}

// ---- Identity (USR / CUS) ----

func ErrUserNotFound() *AppError {
	return New("USR_001", "User not found", http.StatusNotFound)
}

func ErrCustomerLookupFailed(err error) *AppError {
	return Wrap("CUS_001", "Customer record lookup failed", http.StatusNotFound, err)
}

// ---- Orders & credentials (ORD / CRD) ----

func ErrOrderNotFound() *AppError {
	return New("ORD_001", "Order not found", http.StatusNotFound)
}

func ErrCredentialIssuance(err error) *AppError {
	return Wrap("CRD_001", "Credential issuance failed", http.StatusInternalServerError, err)
}

func ErrInvalidCredential() *AppError {
	return New("CRD_002", "Invalid credential", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

func ErrDownstreamUnavailable(err error) *AppError {
	return Wrap("SYS_002", "Downstream service unavailable", http.StatusServiceUnavailable, err)
}

func ErrEncryptionFailure(err error) *AppError {
	return Wrap("SYS_003", "Encryption service failure", http.StatusInternalServerError, err)
}
