// Package evmnode fakes the subset of an EVM JSON-RPC node used by the
// ledger and wallet, keeping go-ethereum types end to end.
package evmnode

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Node is an in-memory EVM node. Sent transactions are mined into a new
// block after ConfirmAfter receipt polls.
type Node struct {
	mu       sync.Mutex
	chainID  *big.Int
	txs      map[common.Hash]*types.Transaction
	receipts map[common.Hash]*types.Receipt
	polls    map[common.Hash]int
	headers  map[uint64]*types.Header
	nonces   map[common.Address]uint64
	height   uint64
	baseTime uint64

	// ConfirmAfter is how many receipt lookups return NotFound before a
	// sent transaction is mined. Negative means never.
	ConfirmAfter int
	// Revert marks mined transactions as failed.
	Revert bool
	// Err, when set, fails every call.
	Err error
	// SendErr, when set, fails SendTransaction.
	SendErr error

	Sent []*types.Transaction
}

// New creates a node for chainID.
func New(chainID int64) *Node {
	return &Node{
		chainID:  big.NewInt(chainID),
		txs:      make(map[common.Hash]*types.Transaction),
		receipts: make(map[common.Hash]*types.Receipt),
		polls:    make(map[common.Hash]int),
		headers:  make(map[uint64]*types.Header),
		nonces:   make(map[common.Address]uint64),
		height:   1000,
		baseTime: 1767225600,
	}
}

// Include records tx as mined with the given status.
func (n *Node) Include(tx *types.Transaction, status uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.txs[tx.Hash()] = tx
	n.mine(tx, status)
}

// AddPending records tx without a receipt.
func (n *Node) AddPending(tx *types.Transaction) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.txs[tx.Hash()] = tx
}

func (n *Node) mine(tx *types.Transaction, status uint64) {
	n.height++
	n.headers[n.height] = &types.Header{
		Number: new(big.Int).SetUint64(n.height),
		Time:   n.baseTime + n.height,
	}
	n.receipts[tx.Hash()] = &types.Receipt{
		Status:      status,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(n.height),
	}
}

func (n *Node) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return nil, false, n.Err
	}
	tx, ok := n.txs[hash]
	if !ok {
		return nil, false, ethereum.NotFound
	}
	_, mined := n.receipts[hash]
	return tx, !mined, nil
}

func (n *Node) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return nil, n.Err
	}
	if r, ok := n.receipts[hash]; ok {
		return r, nil
	}
	tx, ok := n.txs[hash]
	if !ok || n.ConfirmAfter < 0 {
		return nil, ethereum.NotFound
	}
	n.polls[hash]++
	if n.polls[hash] <= n.ConfirmAfter {
		return nil, ethereum.NotFound
	}
	status := types.ReceiptStatusSuccessful
	if n.Revert {
		status = types.ReceiptStatusFailed
	}
	n.mine(tx, status)
	return n.receipts[hash], nil
}

func (n *Node) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return nil, n.Err
	}
	h, ok := n.headers[number.Uint64()]
	if !ok {
		return nil, ethereum.NotFound
	}
	return h, nil
}

func (n *Node) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return 0, n.Err
	}
	return n.nonces[account], nil
}

func (n *Node) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if n.Err != nil {
		return nil, n.Err
	}
	return big.NewInt(1_000_000_000), nil
}

func (n *Node) ChainID(ctx context.Context) (*big.Int, error) {
	if n.Err != nil {
		return nil, n.Err
	}
	return new(big.Int).Set(n.chainID), nil
}

func (n *Node) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	if n.SendErr != nil {
		return n.SendErr
	}
	signer := types.LatestSignerForChainID(n.chainID)
	from, err := types.Sender(signer, tx)
	if err != nil {
		return err
	}
	n.nonces[from]++
	n.txs[tx.Hash()] = tx
	n.Sent = append(n.Sent, tx)
	return nil
}

// Header returns the header at number, for assertions.
func (n *Node) Header(number uint64) *types.Header {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.headers[number]
}
