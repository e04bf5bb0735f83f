package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/proxyfox/proxyfox"
	pfevm "github.com/proxyfox/proxyfox/mechanisms/evm"
)

const (
	DefaultReceiptTimeout = 60 * time.Second
	DefaultPollInterval   = time.Second
)

// Wallet implements proxyfox.Wallet using an ECDSA private key held in
// memory. It pays in the network's native token.
type Wallet struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	backend    pfevm.Backend
	network    pfevm.NetworkConfig

	receiptTimeout time.Duration
	pollInterval   time.Duration
	logger         *zap.Logger
}

// WalletOption configures a Wallet
type WalletOption func(*Wallet)

// WithReceiptTimeout bounds WaitForReceipt.
func WithReceiptTimeout(d time.Duration) WalletOption {
	return func(w *Wallet) {
		if d > 0 {
			w.receiptTimeout = d
		}
	}
}

// WithPollInterval sets how often WaitForReceipt polls the node.
func WithPollInterval(d time.Duration) WalletOption {
	return func(w *Wallet) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithWalletLogger sets the logger.
func WithWalletLogger(logger *zap.Logger) WalletOption {
	return func(w *Wallet) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWalletFromPrivateKey creates a wallet from a hex-encoded private key
// (with or without "0x" prefix).
func NewWalletFromPrivateKey(privateKeyHex string, backend pfevm.Backend, network pfevm.NetworkConfig, opts ...WalletOption) (*Wallet, error) {
	privateKeyHex = strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")

	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	w := &Wallet{
		privateKey:     privateKey,
		address:        crypto.PubkeyToAddress(privateKey.PublicKey),
		backend:        backend,
		network:        network,
		receiptTimeout: DefaultReceiptTimeout,
		pollInterval:   DefaultPollInterval,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Address returns the Ethereum address of the signer.
func (w *Wallet) Address() string {
	return w.address.Hex()
}

// Ledger returns a ledger reading from the same node.
func (w *Wallet) Ledger() *pfevm.Ledger {
	return pfevm.NewLedger(w.backend, w.network, pfevm.WithLedgerLogger(w.logger))
}

// SignTransfer builds and signs a native value transfer. The signature is
// the hex encoding of the signed transaction.
func (w *Wallet) SignTransfer(ctx context.Context, transfer proxyfox.Transfer) (*proxyfox.SignedTransfer, error) {
	if !common.IsHexAddress(transfer.To) {
		return nil, fmt.Errorf("invalid recipient address %q", transfer.To)
	}
	to := common.HexToAddress(transfer.To)

	value, err := pfevm.ToWei(transfer.Amount.Value, w.network.Decimals)
	if err != nil {
		return nil, err
	}

	nonce, err := w.backend.PendingNonceAt(ctx, w.address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := w.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}

	chainID := w.network.ChainID
	if chainID == nil {
		chainID, err = w.backend.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get chain ID: %w", err)
		}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      pfevm.NativeTransferGas,
		GasPrice: gasPrice,
	})

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), w.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	raw, err := signedTx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction: %w", err)
	}

	return &proxyfox.SignedTransfer{
		Transfer:  transfer,
		From:      w.address.Hex(),
		Signature: hexutil.Encode(raw),
		Raw:       signedTx,
	}, nil
}

// SendTransaction broadcasts a transfer signed by this wallet.
func (w *Wallet) SendTransaction(ctx context.Context, signed *proxyfox.SignedTransfer) (string, error) {
	tx, ok := signed.Raw.(*types.Transaction)
	if !ok {
		return "", fmt.Errorf("signed transfer was not produced by an EVM wallet")
	}
	if err := w.backend.SendTransaction(ctx, tx); err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}
	w.logger.Info("transaction sent", zap.String("tx", tx.Hash().Hex()), zap.Uint64("nonce", tx.Nonce()))
	return tx.Hash().Hex(), nil
}

// WaitForReceipt polls for the receipt until it appears or the receipt
// timeout elapses.
func (w *Wallet) WaitForReceipt(ctx context.Context, hash string) (*proxyfox.TransactionReceipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, w.receiptTimeout)
	defer cancel()

	h := common.HexToHash(hash)
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := w.backend.TransactionReceipt(waitCtx, h)
		if err == nil && receipt != nil {
			return pfevm.ConvertReceipt(receipt), nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			w.logger.Debug("receipt poll failed", zap.String("tx", hash), zap.Error(err))
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, proxyfox.NewPaymentError(proxyfox.ErrCodeConfirmationTimeout,
				fmt.Sprintf("transaction receipt not found after %s", w.receiptTimeout),
				map[string]interface{}{"transactionHash": hash})
		case <-ticker.C:
		}
	}
}
