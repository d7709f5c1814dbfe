package errors

import "net/http"

// Error code constants.
// The constructors below pair a code with a fixed message and HTTP status.

// Journey lifecycle error codes.
const (
	CodeJourneyNotFound       = "JOURNEY_NOT_FOUND"
	CodeJourneyAlreadyStarted = "JOURNEY_ALREADY_STARTED"
	CodeJourneyAlreadyDone    = "JOURNEY_ALREADY_COMPLETED"
)

// Validation error codes.
const (
	CodeInvalidData      = "INVALID_DATA"
	CodeValidationFailed = "VALIDATION_FAILED"
)

// Decision-engine error codes.
const (
	CodeDecisionEngineFailed = "DECISION_ENGINE_ERROR"
)

// Concurrency error codes.
const (
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
)

// Auth error codes.
const (
	CodeAuthFailed   = "AUTH_FAILED"
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeTokenInvalid = "TOKEN_INVALID"
)

// ErrJourneyNotFoundf creates a journey-not-found error.
func ErrJourneyNotFoundf() *AppError {
	return &AppError{
		Code:       CodeJourneyNotFound,
		Message:    "journey not found",
		HTTPStatus: http.StatusNotFound,
	}
}

// ErrInvalidDataf creates a schema-validation error.
func ErrInvalidDataf(reason string) *AppError {
	return &AppError{
		Code:       CodeInvalidData,
		Message:    "invalid data: " + reason,
		HTTPStatus: http.StatusBadRequest,
	}
}

// ErrConcurrentModificationf creates an optimistic-concurrency conflict error.
func ErrConcurrentModificationf() *AppError {
	return &AppError{
		Code:       CodeConcurrentModification,
		Message:    "concurrent modification, retry",
		HTTPStatus: http.StatusConflict,
	}
}
