package apperrors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// Error codes surfaced by the core services.
const (
	CodeNotFound                = "NOT_FOUND"
	CodePreconditionFailed      = "PRECONDITION_FAILED"
	CodeConflict                = "CONFLICT"
	CodeUnauthorized            = "UNAUTHORIZED"
	CodeValidation              = "VALIDATION_ERROR"
	CodeExternalOperationFailed = "EXTERNAL_OPERATION_FAILED"
	CodeSettlementInconsistency = "SETTLEMENT_INCONSISTENCY"
	CodeInternal                = "INTERNAL_ERROR"
)

// AppError is the error type returned across service boundaries.
type AppError struct {
	Code          string
	Status        int
	Message       string
	CorrelationID string
	Err           error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound reports an absent project, lot or record.
func NotFound(msg string) *AppError {
	return &AppError{Code: CodeNotFound, Status: http.StatusNotFound, Message: msg}
}

// PreconditionFailed reports a check that failed before any state changed
// (insufficient credits, funds or token balance).
func PreconditionFailed(msg string) *AppError {
	return &AppError{Code: CodePreconditionFailed, Status: http.StatusBadRequest, Message: msg}
}

// Conflict reports a uniqueness violation that is not an idempotent replay.
func Conflict(msg string) *AppError {
	return &AppError{Code: CodeConflict, Status: http.StatusConflict, Message: msg}
}

// Unauthorized reports a failed authentication.
func Unauthorized(msg string) *AppError {
	return &AppError{Code: CodeUnauthorized, Status: http.StatusUnauthorized, Message: msg}
}

// Validation reports a malformed request.
func Validation(msg string) *AppError {
	return &AppError{Code: CodeValidation, Status: http.StatusBadRequest, Message: msg}
}

// ExternalFailure reports a ledger call that itself errored. No prior step in
// the same call succeeded, so the whole operation is safe to retry.
func ExternalFailure(msg string, err error) *AppError {
	return &AppError{
		Code:          CodeExternalOperationFailed,
		Status:        http.StatusBadGateway,
		Message:       msg,
		CorrelationID: uuid.NewString(),
		Err:           err,
	}
}

// Inconsistency reports a committed external side effect with no corresponding
// local record. The correlation id ties the response to the persisted
// breadcrumb and the log line.
func Inconsistency(msg, correlationID string, err error) *AppError {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	return &AppError{
		Code:          CodeSettlementInconsistency,
		Status:        http.StatusInternalServerError,
		Message:       msg,
		CorrelationID: correlationID,
		Err:           err,
	}
}

// Internal wraps an unexpected error.
func Internal(err error) *AppError {
	return &AppError{Code: CodeInternal, Status: http.StatusInternalServerError, Message: "internal error", Err: err}
}

// HTTPResponse maps an error to a status code and response body. Precondition
// and not-found errors carry their descriptive reason; external and
// inconsistency errors return a generic failure plus the correlation id, never
// exposing the inconsistency itself to the end user.
func HTTPResponse(err error) (int, map[string]interface{}) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, map[string]interface{}{"error": "internal server error"}
	}

	switch appErr.Code {
	case CodeExternalOperationFailed, CodeSettlementInconsistency, CodeInternal:
		body := map[string]interface{}{"error": "operation failed, please contact support"}
		if appErr.CorrelationID != "" {
			body["correlation_id"] = appErr.CorrelationID
		}
		return appErr.Status, body
	default:
		return appErr.Status, map[string]interface{}{"error": appErr.Message, "code": appErr.Code}
	}
}

// IsCode reports whether err is an AppError with the given code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}
