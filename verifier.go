package proxyfox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Verifier checks a payment proof first against its own claims and then
// against the ledger. It holds no per-request state and is safe for
// concurrent use.
type Verifier struct {
	ledger Ledger
	logger *zap.Logger
	now    func() time.Time

	beforeHooks  []BeforeVerifyHook
	afterHooks   []AfterVerifyHook
	failureHooks []OnVerifyFailureHook
}

// VerifierOption configures a Verifier
type VerifierOption func(*Verifier)

// WithVerifierLogger sets the logger used by the verifier.
func WithVerifierLogger(logger *zap.Logger) VerifierOption {
	return func(v *Verifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithClock overrides time.Now, used for VerifiedAt and hook timestamps.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// NewVerifier creates a verifier reading from the given ledger.
func NewVerifier(ledger Ledger, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		ledger: ledger,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify runs the checks in order and stops at the first failure. Failures
// carry one of the verification error codes, except ledger transport errors
// which carry ErrCodeLedgerUnavailable.
func (v *Verifier) Verify(ctx context.Context, token string, expected Expectation) (*VerifiedProof, error) {
	hookCtx := VerifyContext{
		Ctx:         ctx,
		Token:       token,
		Expectation: expected,
		Timestamp:   v.now(),
	}

	for _, hook := range v.beforeHooks {
		result, err := hook(hookCtx)
		if err != nil {
			return nil, v.fail(hookCtx, NewPaymentError(ErrCodeVerificationAborted, "before verify hook: "+err.Error(), nil))
		}
		if result != nil && result.Abort {
			return nil, v.fail(hookCtx, NewPaymentError(ErrCodeVerificationAborted, result.Reason, nil))
		}
	}

	verified, err := v.verify(ctx, token, expected)
	if err != nil {
		return nil, v.fail(hookCtx, err)
	}

	resultCtx := VerifyResultContext{
		VerifyContext: hookCtx,
		Result:        verified,
		Duration:      v.now().Sub(hookCtx.Timestamp),
	}
	for _, hook := range v.afterHooks {
		if err := hook(resultCtx); err != nil {
			v.logger.Warn("after verify hook failed", zap.Error(err))
		}
	}
	return verified, nil
}

func (v *Verifier) verify(ctx context.Context, token string, expected Expectation) (*VerifiedProof, error) {
	proof, err := DecodeProof(token)
	if err != nil {
		return nil, err
	}

	log := v.logger.With(zap.String("tx", proof.TransactionHash))

	if !SameAddress(proof.Recipient, expected.Recipient) {
		return nil, NewPaymentError(ErrCodeRecipientMismatch, "proof recipient does not match", map[string]interface{}{
			"expected": expected.Recipient,
			"claimed":  proof.Recipient,
		})
	}

	if proof.Amount.LessThan(expected.MinAmount) {
		return nil, NewPaymentError(ErrCodeInsufficientAmount, "claimed amount is below the price", map[string]interface{}{
			"required": expected.MinAmount.String(),
			"claimed":  proof.Amount.String(),
		})
	}

	tx, err := v.ledger.GetTransaction(ctx, proof.TransactionHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, NewPaymentError(ErrCodeTransactionNotFound, "transaction not found on ledger", map[string]interface{}{
				"transactionHash": proof.TransactionHash,
			})
		}
		log.Error("ledger transaction lookup failed", zap.Error(err))
		return nil, ledgerUnavailable(err)
	}
	if tx == nil {
		return nil, NewPaymentError(ErrCodeTransactionNotFound, "transaction not found on ledger", map[string]interface{}{
			"transactionHash": proof.TransactionHash,
		})
	}

	if !SameAddress(tx.To, expected.Recipient) {
		return nil, NewPaymentError(ErrCodeOnChainRecipientMismatch, "transaction was sent to a different address", map[string]interface{}{
			"expected": expected.Recipient,
			"onChain":  tx.To,
		})
	}

	if tx.Value.LessThan(expected.MinAmount) {
		return nil, NewPaymentError(ErrCodeOnChainAmountInsufficient, "transferred value is below the price", map[string]interface{}{
			"required": expected.MinAmount.String(),
			"onChain":  tx.Value.String(),
		})
	}

	receipt, err := v.ledger.GetTransactionReceipt(ctx, proof.TransactionHash)
	if err != nil && !errors.Is(err, ErrNotFound) {
		log.Error("ledger receipt lookup failed", zap.Error(err))
		return nil, ledgerUnavailable(err)
	}
	if receipt == nil || receipt.Status != ReceiptStatusSuccess {
		return nil, NewPaymentError(ErrCodeTransactionUnconfirmed, "transaction is not confirmed as successful", map[string]interface{}{
			"transactionHash": proof.TransactionHash,
		})
	}

	log.Debug("payment verified", zap.Stringer("amount", tx.Value))
	return &VerifiedProof{Proof: *proof, VerifiedAt: v.now()}, nil
}

func (v *Verifier) fail(hookCtx VerifyContext, err error) error {
	failureCtx := VerifyFailureContext{
		VerifyContext: hookCtx,
		Error:         err,
		Duration:      v.now().Sub(hookCtx.Timestamp),
	}
	for _, hook := range v.failureHooks {
		if hookErr := hook(failureCtx); hookErr != nil {
			v.logger.Warn("verify failure hook failed", zap.Error(hookErr))
		}
	}
	return err
}

func ledgerUnavailable(err error) error {
	return fmt.Errorf("%w: %v", NewPaymentError(ErrCodeLedgerUnavailable, "ledger request failed", nil), err)
}
