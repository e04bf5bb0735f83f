package proxyfox

import (
	"errors"
	"fmt"
)

// PaymentError represents a payment-specific error
type PaymentError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any *PaymentError carrying the same code, so the sentinels
// below work with errors.Is regardless of message or details.
func (e *PaymentError) Is(target error) bool {
	var pe *PaymentError
	if !errors.As(target, &pe) {
		return false
	}
	return pe.Code == e.Code
}

// Verification error codes (rejected with 402)
const (
	ErrCodeMalformedProof            = "malformed_proof"
	ErrCodeRecipientMismatch         = "recipient_mismatch"
	ErrCodeInsufficientAmount        = "insufficient_amount"
	ErrCodeTransactionNotFound       = "transaction_not_found"
	ErrCodeOnChainRecipientMismatch  = "onchain_recipient_mismatch"
	ErrCodeOnChainAmountInsufficient = "onchain_amount_insufficient"
	ErrCodeTransactionUnconfirmed    = "transaction_unconfirmed"
	ErrCodeVerificationAborted       = "verification_aborted"
	ErrCodeProofReplayed             = "proof_replayed"
)

// Gateway error codes
const (
	ErrCodeResourceNotFound    = "resource_not_found"
	ErrCodeActionNotFound      = "action_not_found"
	ErrCodeUpstreamUnreachable = "upstream_unreachable"
	ErrCodeLedgerUnavailable   = "ledger_unavailable"
)

// Payment client error codes
const (
	ErrCodeInvalidChallenge    = "invalid_challenge"
	ErrCodeBroadcastError      = "broadcast_error"
	ErrCodeConfirmationTimeout = "confirmation_timeout"
	ErrCodePaymentRejected     = "payment_rejected"
)

// Sentinels for errors.Is.
var (
	ErrMalformedProof            = &PaymentError{Code: ErrCodeMalformedProof}
	ErrRecipientMismatch         = &PaymentError{Code: ErrCodeRecipientMismatch}
	ErrInsufficientAmount        = &PaymentError{Code: ErrCodeInsufficientAmount}
	ErrTransactionNotFound       = &PaymentError{Code: ErrCodeTransactionNotFound}
	ErrOnChainRecipientMismatch  = &PaymentError{Code: ErrCodeOnChainRecipientMismatch}
	ErrOnChainAmountInsufficient = &PaymentError{Code: ErrCodeOnChainAmountInsufficient}
	ErrTransactionUnconfirmed    = &PaymentError{Code: ErrCodeTransactionUnconfirmed}
	ErrVerificationAborted       = &PaymentError{Code: ErrCodeVerificationAborted}
	ErrProofReplayed             = &PaymentError{Code: ErrCodeProofReplayed}
	ErrResourceNotFound          = &PaymentError{Code: ErrCodeResourceNotFound}
	ErrActionNotFound            = &PaymentError{Code: ErrCodeActionNotFound}
	ErrUpstreamUnreachable       = &PaymentError{Code: ErrCodeUpstreamUnreachable}
	ErrLedgerUnavailable         = &PaymentError{Code: ErrCodeLedgerUnavailable}
	ErrInvalidChallenge          = &PaymentError{Code: ErrCodeInvalidChallenge}
	ErrBroadcastError            = &PaymentError{Code: ErrCodeBroadcastError}
	ErrConfirmationTimeout       = &PaymentError{Code: ErrCodeConfirmationTimeout}
	ErrPaymentRejected           = &PaymentError{Code: ErrCodePaymentRejected}
)

// ErrNotFound is returned by Ledger implementations when a transaction,
// receipt or block does not exist.
var ErrNotFound = errors.New("not found")

// NewPaymentError creates a new payment error
func NewPaymentError(code, message string, details map[string]interface{}) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// IsVerificationError reports whether err is one of the codes a gateway
// answers with 402 Payment Required.
func IsVerificationError(err error) bool {
	var pe *PaymentError
	if !errors.As(err, &pe) {
		return false
	}
	switch pe.Code {
	case ErrCodeMalformedProof,
		ErrCodeRecipientMismatch,
		ErrCodeInsufficientAmount,
		ErrCodeTransactionNotFound,
		ErrCodeOnChainRecipientMismatch,
		ErrCodeOnChainAmountInsufficient,
		ErrCodeTransactionUnconfirmed,
		ErrCodeVerificationAborted,
		ErrCodeProofReplayed:
		return true
	}
	return false
}

// ErrorCode returns the PaymentError code of err, or "" when err is not one.
func ErrorCode(err error) string {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
