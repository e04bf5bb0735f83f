package proxyfox

import (
	"context"
	"time"
)

// ============================================================================
// Verifier Hook Context Types
// ============================================================================

// VerifyContext contains information passed to verify hooks
type VerifyContext struct {
	Ctx         context.Context
	Token       string
	Expectation Expectation
	Timestamp   time.Time
}

// VerifyResultContext contains verify operation result and context
type VerifyResultContext struct {
	VerifyContext
	Result   *VerifiedProof
	Duration time.Duration
}

// VerifyFailureContext contains verify operation failure and context
type VerifyFailureContext struct {
	VerifyContext
	Error    error
	Duration time.Duration
}

// BeforeHookResult represents the result of a "before" hook
// If Abort is true, the operation will be aborted with the given Reason
type BeforeHookResult struct {
	Abort  bool
	Reason string
}

// ============================================================================
// Verifier Hook Function Types
// ============================================================================

// BeforeVerifyHook is called before any proof check runs.
// Returning Abort=true rejects the proof with ErrVerificationAborted.
type BeforeVerifyHook func(VerifyContext) (*BeforeHookResult, error)

// AfterVerifyHook is called after successful verification.
// Any error returned is logged but does not affect the result.
type AfterVerifyHook func(VerifyResultContext) error

// OnVerifyFailureHook is called when verification fails.
// Any error returned is logged and the verification error is returned unchanged.
type OnVerifyFailureHook func(VerifyFailureContext) error

// WithBeforeVerifyHook registers a hook to execute before payment verification
func WithBeforeVerifyHook(hook BeforeVerifyHook) VerifierOption {
	return func(v *Verifier) {
		v.beforeHooks = append(v.beforeHooks, hook)
	}
}

// WithAfterVerifyHook registers a hook to execute after successful payment verification
func WithAfterVerifyHook(hook AfterVerifyHook) VerifierOption {
	return func(v *Verifier) {
		v.afterHooks = append(v.afterHooks, hook)
	}
}

// WithOnVerifyFailureHook registers a hook to execute when payment verification fails
func WithOnVerifyFailureHook(hook OnVerifyFailureHook) VerifierOption {
	return func(v *Verifier) {
		v.failureHooks = append(v.failureHooks, hook)
	}
}
