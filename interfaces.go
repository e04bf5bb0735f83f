package proxyfox

import "context"

// Ledger is the read side of the chain used during verification.
// Implementations return an error wrapping ErrNotFound when the object does
// not exist, and any other error for transport failures.
type Ledger interface {
	GetTransaction(ctx context.Context, hash string) (*LedgerTransaction, error)
	GetTransactionReceipt(ctx context.Context, hash string) (*TransactionReceipt, error)
	GetBlock(ctx context.Context, number uint64) (*Block, error)
}

// Wallet holds one signing credential and can move funds with it.
type Wallet interface {
	Address() string
	SignTransfer(ctx context.Context, transfer Transfer) (*SignedTransfer, error)
	SendTransaction(ctx context.Context, signed *SignedTransfer) (string, error)
	// WaitForReceipt blocks until the transaction is mined or the wallet's
	// receipt timeout elapses, in which case it returns ErrConfirmationTimeout.
	WaitForReceipt(ctx context.Context, hash string) (*TransactionReceipt, error)
}

// Catalog resolves resource ids to their pricing and upstream configuration.
// Unknown ids return an error wrapping ErrResourceNotFound.
type Catalog interface {
	ResolveResource(ctx context.Context, id string) (*Resource, error)
}

// ResourceLister is implemented by catalogs that can enumerate their resources.
type ResourceLister interface {
	ListResources(ctx context.Context) ([]Resource, error)
}
