package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/proxyfox/proxyfox"
)

// NetworkConfig describes an EVM chain and its native asset.
type NetworkConfig struct {
	Name     proxyfox.Network
	ChainID  *big.Int
	Symbol   string
	Decimals int32
	RPCURL   string
}

// GetNetworkConfig returns the configuration for a named network.
func GetNetworkConfig(network proxyfox.Network) (*NetworkConfig, error) {
	if config, ok := NetworkConfigs[network]; ok {
		return &config, nil
	}
	return nil, fmt.Errorf("unsupported network: %s", network)
}

// Reader is the read surface of an EVM node used by Ledger.
// *ethclient.Client satisfies it.
type Reader interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (tx *types.Transaction, isPending bool, err error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// Backend adds what a wallet needs to sign and broadcast.
// *ethclient.Client satisfies it.
type Backend interface {
	Reader
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}
