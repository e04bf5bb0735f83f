package proxyfox

import (
	"strings"
	"time"
)

// PaymentHeader carries the encoded proof on the retried request.
const PaymentHeader = "X-PAYMENT"

// Network identifies the ledger a payment is made on (e.g. "flow-evm-testnet").
type Network string

// Proof is the caller's claim that a payment was made. It is created once by
// the payment client after confirmation and never mutated afterwards.
type Proof struct {
	Payer           string `json:"payer"`
	Recipient       string `json:"recipient"`
	Amount          Amount `json:"amount"`
	Asset           string `json:"asset"`
	Signature       string `json:"signature"`
	TransactionHash string `json:"transactionHash"`
	BlockNumber     uint64 `json:"blockNumber"`
	Status          string `json:"status"`
	Timestamp       string `json:"timestamp"`
}

// Proof status tags
const (
	ProofStatusSuccess = "Success"
	ProofStatusFailed  = "Failed"
)

// VerifiedProof is a proof that passed both the claim checks and the ledger checks.
type VerifiedProof struct {
	Proof
	VerifiedAt time.Time `json:"verifiedAt"`
}

// Expectation is what the gateway requires of a proof for one action.
type Expectation struct {
	Recipient string
	MinAmount Amount
}

// Challenge is the body of a 402 Payment Required response.
type Challenge struct {
	Message   string  `json:"message"`
	Recipient string  `json:"recipient"`
	Amount    Amount  `json:"amount"`
	PayTo     string  `json:"payTo"`
	Network   Network `json:"network"`
	Resource  string  `json:"resource,omitempty"`
	Action    string  `json:"action,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// Resource is one monetized upstream service as known to a Catalog.
type Resource struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Recipient    string   `json:"recipient"`
	UpstreamBase string   `json:"upstreamBase"`
	Network      Network  `json:"network"`
	Actions      []Action `json:"actions"`
}

// Action is one priced operation of a Resource.
type Action struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
	Price       Amount `json:"price"`
}

// FindAction returns the action with the given id, or false.
func (r *Resource) FindAction(id string) (Action, bool) {
	for _, a := range r.Actions {
		if a.ID == id {
			return a, true
		}
	}
	return Action{}, false
}

// PricingRule is the resolved price for one (resource, action) pair.
type PricingRule struct {
	ResourceID   string
	ActionID     string
	Recipient    string
	Price        Amount
	UpstreamBase string
	Network      Network
}

// Free reports whether the action can be forwarded without payment.
func (r PricingRule) Free() bool {
	return r.Price.IsZero()
}

// Expectation returns what a proof must satisfy for this rule.
func (r PricingRule) Expectation() Expectation {
	return Expectation{Recipient: r.Recipient, MinAmount: r.Price}
}

// Challenge builds the 402 body for this rule.
func (r PricingRule) Challenge(message string) Challenge {
	return Challenge{
		Message:   message,
		Recipient: r.Recipient,
		Amount:    r.Price,
		PayTo:     r.Recipient,
		Network:   r.Network,
		Resource:  r.ResourceID,
		Action:    r.ActionID,
	}
}

// LedgerTransaction is the on-chain view of a transfer.
type LedgerTransaction struct {
	Hash        string
	To          string
	Value       Amount
	BlockNumber uint64
}

// ReceiptStatus is the execution outcome of a mined transaction.
type ReceiptStatus int

const (
	ReceiptStatusFailed ReceiptStatus = iota
	ReceiptStatusSuccess
)

// TransactionReceipt reports whether a mined transaction succeeded.
type TransactionReceipt struct {
	TxHash      string
	Status      ReceiptStatus
	BlockNumber uint64
}

// Block is the subset of a block the payment flow needs.
type Block struct {
	Number    uint64
	Timestamp time.Time
}

// Transfer is a native-asset payment the client is asked to make.
type Transfer struct {
	To     string
	Amount Amount
}

// SignedTransfer is a transfer signed by a Wallet but not yet broadcast.
type SignedTransfer struct {
	Transfer
	From      string
	Signature string
	Raw       any
}

// SameAddress compares two ledger addresses case-insensitively.
func SameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
