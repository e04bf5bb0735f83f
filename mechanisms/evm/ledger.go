package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/proxyfox/proxyfox"
)

// Ledger implements proxyfox.Ledger over an EVM JSON-RPC node.
type Ledger struct {
	reader  Reader
	network NetworkConfig
	logger  *zap.Logger
}

// LedgerOption configures a Ledger
type LedgerOption func(*Ledger)

// WithLedgerLogger sets the logger.
func WithLedgerLogger(logger *zap.Logger) LedgerOption {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLedger creates a ledger reading from reader on the given network.
func NewLedger(reader Reader, network NetworkConfig, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		reader:  reader,
		network: network,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Network returns the network this ledger reads.
func (l *Ledger) Network() NetworkConfig {
	return l.network
}

// parseHash treats a malformed hash as an unknown transaction.
func parseHash(hash string) (common.Hash, error) {
	b, err := hexutil.Decode(hash)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid transaction hash %q: %w", hash, proxyfox.ErrNotFound)
	}
	return common.BytesToHash(b), nil
}

func notFound(err error) bool {
	return errors.Is(err, ethereum.NotFound)
}

func (l *Ledger) GetTransaction(ctx context.Context, hash string) (*proxyfox.LedgerTransaction, error) {
	h, err := parseHash(hash)
	if err != nil {
		return nil, err
	}

	tx, pending, err := l.reader.TransactionByHash(ctx, h)
	if err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("transaction %s: %w", hash, proxyfox.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch transaction %s: %w", hash, err)
	}

	var to string
	if tx.To() != nil {
		to = tx.To().Hex()
	}

	l.logger.Debug("transaction fetched",
		zap.String("tx", hash),
		zap.String("to", to),
		zap.Bool("pending", pending))

	return &proxyfox.LedgerTransaction{
		Hash:  tx.Hash().Hex(),
		To:    to,
		Value: FromWei(tx.Value(), l.network.Decimals, l.network.Symbol),
	}, nil
}

func (l *Ledger) GetTransactionReceipt(ctx context.Context, hash string) (*proxyfox.TransactionReceipt, error) {
	h, err := parseHash(hash)
	if err != nil {
		return nil, err
	}

	receipt, err := l.reader.TransactionReceipt(ctx, h)
	if err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("receipt %s: %w", hash, proxyfox.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch receipt %s: %w", hash, err)
	}
	return ConvertReceipt(receipt), nil
}

// ConvertReceipt maps a go-ethereum receipt to the ledger-neutral form.
func ConvertReceipt(receipt *types.Receipt) *proxyfox.TransactionReceipt {
	status := proxyfox.ReceiptStatusFailed
	if receipt.Status == types.ReceiptStatusSuccessful {
		status = proxyfox.ReceiptStatusSuccess
	}
	var block uint64
	if receipt.BlockNumber != nil {
		block = receipt.BlockNumber.Uint64()
	}
	return &proxyfox.TransactionReceipt{
		TxHash:      receipt.TxHash.Hex(),
		Status:      status,
		BlockNumber: block,
	}
}

func (l *Ledger) GetBlock(ctx context.Context, number uint64) (*proxyfox.Block, error) {
	header, err := l.reader.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("block %d: %w", number, proxyfox.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch block %d: %w", number, err)
	}
	return &proxyfox.Block{
		Number:    header.Number.Uint64(),
		Timestamp: time.Unix(int64(header.Time), 0).UTC(),
	}, nil
}
