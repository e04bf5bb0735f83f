package proxyfox

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// PaymentState is a step of the caller-side payment flow.
type PaymentState string

const (
	StateIdle                 PaymentState = "idle"
	StateAwaitingChallenge    PaymentState = "awaiting_challenge"
	StatePaying               PaymentState = "paying"
	StateAwaitingConfirmation PaymentState = "awaiting_confirmation"
	StateRetrying             PaymentState = "retrying"
	StateDone                 PaymentState = "done"
	StateFailed               PaymentState = "failed"
)

// Terminal reports whether no further transition is possible.
func (s PaymentState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// PendingPayment is a transfer that has been broadcast but not yet confirmed.
type PendingPayment struct {
	Challenge Challenge
	Signed    *SignedTransfer
	TxHash    string
}

// Payer answers a payment challenge with a transfer and builds the proof.
type Payer struct {
	wallet Wallet
	ledger Ledger
	logger *zap.Logger
	now    func() time.Time
}

// PayerOption configures a Payer
type PayerOption func(*Payer)

// WithPayerLogger sets the logger used by the payer.
func WithPayerLogger(logger *zap.Logger) PayerOption {
	return func(p *Payer) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithPayerClock overrides the clock used when a block timestamp is unavailable.
func WithPayerClock(now func() time.Time) PayerOption {
	return func(p *Payer) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPayer creates a payer that transfers with wallet and reads block
// timestamps from ledger.
func NewPayer(wallet Wallet, ledger Ledger, opts ...PayerOption) *Payer {
	p := &Payer{
		wallet: wallet,
		ledger: ledger,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ValidateChallenge checks that a challenge names a recipient and a
// non-negative amount.
func ValidateChallenge(c Challenge) error {
	if c.Recipient == "" {
		return NewPaymentError(ErrCodeInvalidChallenge, "challenge has no recipient", nil)
	}
	if c.Amount.Value.IsNegative() {
		return NewPaymentError(ErrCodeInvalidChallenge, "challenge amount is negative", map[string]interface{}{
			"amount": c.Amount.String(),
		})
	}
	return nil
}

// Pay performs Broadcast followed by Confirm.
func (p *Payer) Pay(ctx context.Context, c Challenge) (*Proof, error) {
	pending, err := p.Broadcast(ctx, c)
	if err != nil {
		return nil, err
	}
	return p.Confirm(ctx, pending)
}

// Broadcast signs and sends exactly the published amount to the published recipient.
func (p *Payer) Broadcast(ctx context.Context, c Challenge) (*PendingPayment, error) {
	if err := ValidateChallenge(c); err != nil {
		return nil, err
	}

	transfer := Transfer{To: c.Recipient, Amount: c.Amount}
	signed, err := p.wallet.SignTransfer(ctx, transfer)
	if err != nil {
		if errors.Is(err, ErrInvalidChallenge) {
			return nil, err
		}
		return nil, NewPaymentError(ErrCodeBroadcastError, "failed to sign transfer", map[string]interface{}{
			"error": err.Error(),
		})
	}

	hash, err := p.wallet.SendTransaction(ctx, signed)
	if err != nil {
		return nil, NewPaymentError(ErrCodeBroadcastError, "failed to broadcast transfer", map[string]interface{}{
			"error": err.Error(),
		})
	}

	p.logger.Info("payment broadcast",
		zap.String("tx", hash),
		zap.String("to", c.Recipient),
		zap.Stringer("amount", c.Amount))

	return &PendingPayment{Challenge: c, Signed: signed, TxHash: hash}, nil
}

// Confirm waits for the receipt and assembles the proof. A mined but
// reverted transfer still yields a proof with status Failed.
func (p *Payer) Confirm(ctx context.Context, pending *PendingPayment) (*Proof, error) {
	receipt, err := p.wallet.WaitForReceipt(ctx, pending.TxHash)
	if err != nil {
		if errors.Is(err, ErrConfirmationTimeout) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, NewPaymentError(ErrCodeConfirmationTimeout, "failed waiting for receipt", map[string]interface{}{
			"transactionHash": pending.TxHash,
			"error":           err.Error(),
		})
	}

	timestamp := p.now()
	if block, err := p.ledger.GetBlock(ctx, receipt.BlockNumber); err == nil && block != nil {
		timestamp = block.Timestamp
	} else {
		p.logger.Warn("block lookup failed, using local time",
			zap.Uint64("block", receipt.BlockNumber),
			zap.Error(err))
	}

	status := ProofStatusSuccess
	if receipt.Status != ReceiptStatusSuccess {
		status = ProofStatusFailed
	}

	asset := pending.Challenge.Amount.Asset
	if asset == "" {
		asset = DefaultAsset
	}
	amount := pending.Challenge.Amount
	amount.Asset = asset

	return &Proof{
		Payer:           p.wallet.Address(),
		Recipient:       pending.Challenge.Recipient,
		Amount:          amount,
		Asset:           asset,
		Signature:       pending.Signed.Signature,
		TransactionHash: pending.TxHash,
		BlockNumber:     receipt.BlockNumber,
		Status:          status,
		Timestamp:       timestamp.UTC().Format(time.RFC3339),
	}, nil
}
