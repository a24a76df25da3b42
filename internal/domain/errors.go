package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Caller-recoverable: the request can be corrected and resubmitted
	ErrorCodeResolutionGap      ErrorCode = "RESOLUTION_GAP"
	ErrorCodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
	ErrorCodeDuplicateSuspected ErrorCode = "DUPLICATE_SUSPECTED"
	ErrorCodeChargeInProgress   ErrorCode = "CHARGE_IN_PROGRESS"

	// Gateway outcomes (no money moved, or the gateway contract was broken)
	ErrorCodeGatewayRejected     ErrorCode = "GATEWAY_REJECTED"
	ErrorCodeGatewayInconsistent ErrorCode = "GATEWAY_INCONSISTENT"

	// Money moved but the ledger could not be fully written
	ErrorCodePersistenceAfterCharge ErrorCode = "PERSISTENCE_AFTER_CHARGE"

	// Internal Errors (INTERNAL_*)
	ErrorCodeChargeAlreadyAttempted ErrorCode = "CHARGE_ALREADY_ATTEMPTED"
	ErrorCodeInternalError          ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError          ErrorCode = "INTERNAL_DATABASE_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail field to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// Reason returns the human-readable message of a DomainError, or err.Error() otherwise
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}

// IsCallerRecoverable reports whether the caller can fix the request and try again
func IsCallerRecoverable(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeResolutionGap ||
		code == ErrorCodeValidationFailed ||
		code == ErrorCodeDuplicateSuspected ||
		code == ErrorCodeChargeInProgress
}

// IsValidationError checks if an error is a validation or resolution error
func IsValidationError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeValidationFailed || code == ErrorCodeResolutionGap
}

// IsGatewayError checks if an error is a payment gateway error
func IsGatewayError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeGatewayRejected || code == ErrorCodeGatewayInconsistent
}

// RequiresReconciliation reports whether money may have moved without a complete ledger record.
// Such errors must never be retried automatically.
func RequiresReconciliation(err error) bool {
	var recErr *ReconciliationError
	if errors.As(err, &recErr) {
		return true
	}
	return IsDomainError(err, ErrorCodePersistenceAfterCharge)
}

// ReconciliationError is returned when the gateway charged successfully but a later
// ledger write failed. Transaction carries everything known about the charge.
type ReconciliationError struct {
	Err         error
	Transaction *Transaction
	Stage       string
}

func (e *ReconciliationError) Error() string {
	code := ""
	if e.Transaction != nil {
		code = e.Transaction.TransactionCode
	}
	return fmt.Sprintf("%s: charge %q succeeded but %s failed, reconciliation required: %v",
		ErrorCodePersistenceAfterCharge, code, e.Stage, e.Err)
}

// Unwrap exposes the failure as a PERSISTENCE_AFTER_CHARGE DomainError
func (e *ReconciliationError) Unwrap() error {
	return WrapError(ErrorCodePersistenceAfterCharge, "charge succeeded but could not be recorded", e.Err)
}

// Structured error instances
var (
	ErrChargeAlreadyAttempted = NewDomainError(ErrorCodeChargeAlreadyAttempted, "a transaction has already been produced for this attempt")
)
