// Package chain provides an in-memory ledger and wallet for tests.
package chain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/proxyfox/proxyfox"
)

// Chain is an in-memory ledger. Transactions sent through a Wallet are mined
// immediately, one block per transaction.
type Chain struct {
	mu       sync.Mutex
	txs      map[string]*proxyfox.LedgerTransaction
	receipts map[string]*proxyfox.TransactionReceipt
	blocks   map[uint64]*proxyfox.Block
	height   uint64
	genesis  time.Time

	// Err, when set, is returned by every ledger read.
	Err error
	// Calls counts ledger reads.
	Calls int
}

// New creates an empty chain whose first block is stamped at genesis.
func New(genesis time.Time) *Chain {
	return &Chain{
		txs:      make(map[string]*proxyfox.LedgerTransaction),
		receipts: make(map[string]*proxyfox.TransactionReceipt),
		blocks:   make(map[uint64]*proxyfox.Block),
		height:   100,
		genesis:  genesis,
	}
}

// Mine records a transfer to `to` of `value` and returns its hash.
// When reverted is true the receipt reports failure.
func (c *Chain) Mine(to string, value proxyfox.Amount, reverted bool) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.height++
	hash := fmt.Sprintf("0x%064x", c.height)
	status := proxyfox.ReceiptStatusSuccess
	if reverted {
		status = proxyfox.ReceiptStatusFailed
	}

	c.txs[hash] = &proxyfox.LedgerTransaction{Hash: hash, To: to, Value: value, BlockNumber: c.height}
	c.receipts[hash] = &proxyfox.TransactionReceipt{TxHash: hash, Status: status, BlockNumber: c.height}
	c.blocks[c.height] = &proxyfox.Block{
		Number:    c.height,
		Timestamp: c.genesis.Add(time.Duration(c.height) * time.Second),
	}
	return hash
}

// AddPending records a transaction that has no receipt yet.
func (c *Chain) AddPending(to string, value proxyfox.Amount) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.height++
	hash := fmt.Sprintf("0x%064x", c.height)
	c.txs[hash] = &proxyfox.LedgerTransaction{Hash: hash, To: to, Value: value}
	return hash
}

func (c *Chain) GetTransaction(ctx context.Context, hash string) (*proxyfox.LedgerTransaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls++
	if c.Err != nil {
		return nil, c.Err
	}
	tx, ok := c.txs[hash]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", hash, proxyfox.ErrNotFound)
	}
	cp := *tx
	return &cp, nil
}

func (c *Chain) GetTransactionReceipt(ctx context.Context, hash string) (*proxyfox.TransactionReceipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls++
	if c.Err != nil {
		return nil, c.Err
	}
	r, ok := c.receipts[hash]
	if !ok {
		return nil, fmt.Errorf("receipt %s: %w", hash, proxyfox.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (c *Chain) GetBlock(ctx context.Context, number uint64) (*proxyfox.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls++
	if c.Err != nil {
		return nil, c.Err
	}
	b, ok := c.blocks[number]
	if !ok {
		return nil, fmt.Errorf("block %d: %w", number, proxyfox.ErrNotFound)
	}
	cp := *b
	return &cp, nil
}

// Wallet pays on a Chain from a fixed address.
type Wallet struct {
	chain   *Chain
	address string

	// SendErr, when set, is returned by SendTransaction.
	SendErr error
	// WaitErr, when set, is returned by WaitForReceipt.
	WaitErr error
	// Revert makes every mined transfer fail.
	Revert bool
	// Underpay, when set, replaces the transferred value.
	Underpay *proxyfox.Amount

	mu    sync.Mutex
	sends int
}

// NewWallet creates a wallet paying from address on chain.
func NewWallet(c *Chain, address string) *Wallet {
	return &Wallet{chain: c, address: address}
}

func (w *Wallet) Address() string {
	return w.address
}

func (w *Wallet) SignTransfer(ctx context.Context, transfer proxyfox.Transfer) (*proxyfox.SignedTransfer, error) {
	return &proxyfox.SignedTransfer{
		Transfer:  transfer,
		From:      w.address,
		Signature: fmt.Sprintf("0xsigned:%s:%s", transfer.To, transfer.Amount),
	}, nil
}

func (w *Wallet) SendTransaction(ctx context.Context, signed *proxyfox.SignedTransfer) (string, error) {
	w.mu.Lock()
	w.sends++
	w.mu.Unlock()
	if w.SendErr != nil {
		return "", w.SendErr
	}
	value := signed.Amount
	if w.Underpay != nil {
		value = *w.Underpay
	}
	return w.chain.Mine(signed.To, value, w.Revert), nil
}

func (w *Wallet) WaitForReceipt(ctx context.Context, hash string) (*proxyfox.TransactionReceipt, error) {
	if w.WaitErr != nil {
		return nil, w.WaitErr
	}
	return w.chain.GetTransactionReceipt(ctx, hash)
}

// Sends returns how many transactions were broadcast.
func (w *Wallet) Sends() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sends
}
