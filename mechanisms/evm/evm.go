// Package evm reads payments from EVM-compatible chains such as Flow EVM.
// It converts between native units and decimal amounts and implements
// proxyfox.Ledger over a JSON-RPC node.
package evm

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/proxyfox/proxyfox"
)

// Dial connects to rpcURL and returns the client and a ledger for network.
// When rpcURL is empty the network's default endpoint is used.
func Dial(ctx context.Context, rpcURL string, network proxyfox.Network, logger *zap.Logger) (*ethclient.Client, *Ledger, error) {
	config, err := GetNetworkConfig(network)
	if err != nil {
		return nil, nil, err
	}
	if rpcURL == "" {
		rpcURL = config.RPCURL
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", rpcURL, err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to read chain id from %s: %w", rpcURL, err)
	}
	if chainID.Cmp(config.ChainID) != 0 {
		client.Close()
		return nil, nil, fmt.Errorf("rpc %s serves chain %s, expected %s for %s", rpcURL, chainID, config.ChainID, network)
	}

	return client, NewLedger(client, *config, WithLedgerLogger(logger)), nil
}
