// Package errors provides the structured error model shared by the wizard
// engine, the persistence gateways and the HTTP API.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Wizard flow errors
const (
	ErrCodeOutOfRangeStep        ErrorCode = "OUT_OF_RANGE_STEP"
	ErrCodeStepNotReady          ErrorCode = "STEP_NOT_READY"
	ErrCodeValidationFailed      ErrorCode = "VALIDATION_FAILED"
	ErrCodeIncompleteApplication ErrorCode = "INCOMPLETE_APPLICATION"
	ErrCodeDraftSubmitted        ErrorCode = "DRAFT_SUBMITTED"
	ErrCodeUnknownField          ErrorCode = "UNKNOWN_FIELD"
	ErrCodeInvalidInput          ErrorCode = "INVALID_INPUT"
	ErrCodeSchemaViolation       ErrorCode = "SCHEMA_VIOLATION"
	ErrCodeSessionClosed         ErrorCode = "SESSION_CLOSED"
)

// Persistence and integration errors
const (
	ErrCodeDraftNotFound          ErrorCode = "DRAFT_NOT_FOUND"
	ErrCodePersistenceFailure     ErrorCode = "PERSISTENCE_FAILURE"
	ErrCodeExternalServiceError   ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeSearchQueryFailed      ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a StandardError with the same code, so that
// errors.Is(err, errors.ErrStepNotReady) works on any instance of that kind.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrOutOfRangeStep        = &StandardError{Code: ErrCodeOutOfRangeStep}
	ErrStepNotReady          = &StandardError{Code: ErrCodeStepNotReady}
	ErrValidationFailed      = &StandardError{Code: ErrCodeValidationFailed}
	ErrIncompleteApplication = &StandardError{Code: ErrCodeIncompleteApplication}
	ErrDraftNotFound         = &StandardError{Code: ErrCodeDraftNotFound}
	ErrPersistenceFailure    = &StandardError{Code: ErrCodePersistenceFailure}
	ErrDraftSubmitted        = &StandardError{Code: ErrCodeDraftSubmitted}
	ErrUnknownField          = &StandardError{Code: ErrCodeUnknownField}
	ErrInvalidInput          = &StandardError{Code: ErrCodeInvalidInput}
	ErrSchemaViolation       = &StandardError{Code: ErrCodeSchemaViolation}
	ErrSessionClosed         = &StandardError{Code: ErrCodeSessionClosed}
)

// ==========================
// 2. Error Constructors
// ==========================

// NewOutOfRangeStepError rejects navigation outside [1, total].
func NewOutOfRangeStepError(step, total int) *StandardError {
	return &StandardError{
		Code:      ErrCodeOutOfRangeStep,
		Message:   "Step is outside the wizard range",
		Details:   fmt.Sprintf("step: %d, range: [1, %d]", step, total),
		Retryable: false,
		Metadata:  map[string]interface{}{"step": step, "totalSteps": total},
		Timestamp: time.Now().UTC(),
	}
}

// NewStepNotReadyError reports the intermediate steps blocking a skip-ahead.
func NewStepNotReadyError(target int, blocking []int) *StandardError {
	return &StandardError{
		Code:      ErrCodeStepNotReady,
		Message:   "Intermediate steps must be completed first",
		Details:   fmt.Sprintf("target: %d, blocking: %v", target, blocking),
		Retryable: false,
		Metadata:  map[string]interface{}{"step": target, "blockingSteps": blocking},
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationFailedError carries the per-field messages of a failed step.
func NewValidationFailedError(step int, fieldErrors map[string]string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Step validation failed",
		Details:   fmt.Sprintf("step: %d, failing fields: %d", step, len(fieldErrors)),
		Retryable: false,
		Metadata:  map[string]interface{}{"step": step, "fieldErrors": fieldErrors},
		Timestamp: time.Now().UTC(),
	}
}

func NewIncompleteApplicationError(missing []int) *StandardError {
	return &StandardError{
		Code:      ErrCodeIncompleteApplication,
		Message:   "Application has steps that have not passed validation",
		Details:   fmt.Sprintf("missingSteps: %v", missing),
		Retryable: false,
		Metadata:  map[string]interface{}{"missingSteps": missing},
		Timestamp: time.Now().UTC(),
	}
}

func NewDraftNotFoundError(id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDraftNotFound,
		Message:   "Draft not found",
		Details:   fmt.Sprintf("draftId: %s", id),
		Retryable: false,
		Metadata:  map[string]interface{}{"draftId": id},
		Timestamp: time.Now().UTC(),
	}
}

// NewPersistenceFailureError wraps a gateway failure. The caller may retry.
func NewPersistenceFailureError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePersistenceFailure,
		Message:   fmt.Sprintf("Persistence gateway %s failed", op),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewDraftSubmittedError(id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDraftSubmitted,
		Message:   "Draft has been submitted and is read-only",
		Details:   fmt.Sprintf("draftId: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewUnknownFieldError(key string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownField,
		Message:   "Field is not declared by any step",
		Details:   fmt.Sprintf("field: %s", key),
		Retryable: false,
		Metadata:  map[string]interface{}{"field": key},
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Invalid request input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSchemaViolationError reports a submission document rejected by the
// submission JSON Schema.
func NewSchemaViolationError(violations []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSchemaViolation,
		Message:   "Submission document does not match schema",
		Details:   strings.Join(violations, "; "),
		Retryable: false,
		Metadata:  map[string]interface{}{"violations": violations},
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionClosedError reports an operation on a machine that has been
// released. The draft itself is intact and can be resumed.
func NewSessionClosedError(id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionClosed,
		Message:   "Draft session has been closed",
		Details:   fmt.Sprintf("draftId: %s", id),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExternalServiceError,
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewSearchQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchQueryFailed,
		Message:   "Application search failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   fmt.Sprintf("Failed to send %s notification", channel),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// AsStandard extracts a *StandardError from err's chain.
func AsStandard(err error) (*StandardError, bool) {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// HTTPStatus maps an error code to the HTTP status the API responds with.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeOutOfRangeStep, ErrCodeInvalidInput, ErrCodeUnknownField:
		return http.StatusBadRequest
	case ErrCodeDraftNotFound:
		return http.StatusNotFound
	case ErrCodeStepNotReady, ErrCodeIncompleteApplication, ErrCodeDraftSubmitted, ErrCodeSessionClosed:
		return http.StatusConflict
	case ErrCodeValidationFailed, ErrCodeSchemaViolation:
		return http.StatusUnprocessableEntity
	case ErrCodePersistenceFailure, ErrCodeExternalServiceError, ErrCodeSearchQueryFailed,
		ErrCodeNotificationSendFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	switch code {
	case ErrCodePersistenceFailure, ErrCodeExternalServiceError, ErrCodeSearchQueryFailed,
		ErrCodeNotificationSendFailed, ErrCodeSessionClosed:
		return true
	default:
		return false
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "STEP") || strings.Contains(codeStr, "INCOMPLETE"):
		return "NAVIGATION"
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "SCHEMA") ||
		strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "FIELD"):
		return "VALIDATION"
	case strings.Contains(codeStr, "DRAFT") || strings.Contains(codeStr, "PERSISTENCE") ||
		strings.Contains(codeStr, "SESSION"):
		return "PERSISTENCE"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "EXTERNAL"):
		return "INTEGRATION"
	default:
		return "OTHER"
	}
}
