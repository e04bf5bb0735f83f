package evm

import (
	"math/big"

	"github.com/proxyfox/proxyfox"
)

const (
	// NativeDecimals is the precision of the native token on EVM chains.
	NativeDecimals = 18

	// NativeTransferGas is the fixed gas cost of a plain value transfer.
	NativeTransferGas = 21000

	NetworkFlowTestnet proxyfox.Network = "flow-evm-testnet"
	NetworkFlowMainnet proxyfox.Network = "flow-evm-mainnet"
)

var (
	// Network chain IDs
	ChainIDFlowTestnet = big.NewInt(545)
	ChainIDFlowMainnet = big.NewInt(747)

	// NetworkConfigs lists the networks known by name.
	NetworkConfigs = map[proxyfox.Network]NetworkConfig{
		NetworkFlowTestnet: {
			Name:     NetworkFlowTestnet,
			ChainID:  ChainIDFlowTestnet,
			Symbol:   "FLOW",
			Decimals: NativeDecimals,
			RPCURL:   "https://testnet.evm.nodes.onflow.org",
		},
		NetworkFlowMainnet: {
			Name:     NetworkFlowMainnet,
			ChainID:  ChainIDFlowMainnet,
			Symbol:   "FLOW",
			Decimals: NativeDecimals,
			RPCURL:   "https://mainnet.evm.nodes.onflow.org",
		},
	}
)
