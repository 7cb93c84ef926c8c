package ipr

import (
	"errors"
	"fmt"
)

// ProtocolError represents a protocol-level failure with a machine-readable code
type ProtocolError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common error codes
const (
	// ErrCodeInvalidRequest marks malformed or incomplete local input.
	// Never retried; surfaced to the caller that supplied the bad input.
	ErrCodeInvalidRequest = "invalid_request"

	// ErrCodeIntegrityViolation marks a received transfer whose fields are
	// internally inconsistent or fail condition regeneration. No ledger
	// mutation occurs.
	ErrCodeIntegrityViolation = "integrity_violation"

	// ErrCodeExpiredPacket marks a malformed or past expiry on an incoming packet.
	ErrCodeExpiredPacket = "expired_packet"

	// ErrCodeTransferExpired marks a sender-side wait that exceeded its
	// deadline. Retryable at the caller's discretion.
	ErrCodeTransferExpired = "transfer_expired"

	// ErrCodeDuplicateSubmission marks a ledger id collision that the send
	// engine could not reconcile via fulfillment lookup.
	ErrCodeDuplicateSubmission = "duplicate_submission"

	// ErrCodeFulfillmentPending marks a duplicate submission whose original
	// transfer has not been fulfilled yet. Retryable.
	ErrCodeFulfillmentPending = "fulfillment_pending"

	// ErrCodeMaxSourceAmountExceeded marks a quote above the caller's
	// slippage bound.
	ErrCodeMaxSourceAmountExceeded = "max_source_amount_exceeded"

	// ErrCodeMaxHoldDurationExceeded marks a quote hold above the caller's
	// liquidity-risk bound.
	ErrCodeMaxHoldDurationExceeded = "max_hold_duration_exceeded"

	// ErrCodeUpstreamFailure marks quoting, ledger connectivity, or
	// discovery transport failures, propagated with operation context.
	ErrCodeUpstreamFailure = "upstream_failure"
)

// Ledger contract sentinels. Concrete ledger plugins wrap or return these so
// the engines can branch on them with errors.Is.
var (
	// ErrDuplicateID is returned by Ledger.SendTransfer when a transfer with
	// the same id already exists.
	ErrDuplicateID = errors.New("duplicate transfer id")

	// ErrMissingFulfillment is returned by Ledger.GetFulfillment when the
	// transfer exists but has not been fulfilled yet.
	ErrMissingFulfillment = errors.New("transfer has not yet been fulfilled")

	// ErrTransferNotFound is returned when the referenced transfer does not exist.
	ErrTransferNotFound = errors.New("transfer not found")
)

// NewProtocolError creates a protocol error with optional details
func NewProtocolError(code, message string, details map[string]interface{}) *ProtocolError {
	return &ProtocolError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewValidationError creates an invalid-request error
func NewValidationError(format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{
		Code:    ErrCodeInvalidRequest,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewIntegrityError creates an integrity-violation error
func NewIntegrityError(format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{
		Code:    ErrCodeIntegrityViolation,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewExpiryError creates an expired-packet error
func NewExpiryError(format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{
		Code:    ErrCodeExpiredPacket,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewUpstreamError wraps a collaborator failure with the failing operation
func NewUpstreamError(operation string, err error) *ProtocolError {
	return &ProtocolError{
		Code:    ErrCodeUpstreamFailure,
		Message: fmt.Sprintf("%s: %v", operation, err),
		Details: map[string]interface{}{"operation": operation},
	}
}

// IsCode reports whether err is a ProtocolError carrying the given code
func IsCode(err error, code string) bool {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}
