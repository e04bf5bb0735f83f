package evm

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/proxyfox/proxyfox"
)

// ToWei converts a decimal amount into the smallest unit. An amount with
// more fractional digits than decimals cannot be paid exactly and yields an
// invalid_challenge error.
func ToWei(amount decimal.Decimal, decimals int32) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("negative amount: %s", amount)
	}
	wei := amount.Shift(decimals)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, proxyfox.NewPaymentError(proxyfox.ErrCodeInvalidChallenge, "amount has more precision than the network supports", map[string]interface{}{
			"amount":   amount.String(),
			"decimals": decimals,
		})
	}
	return wei.BigInt(), nil
}

// FromWei converts a smallest-unit integer into an Amount of symbol.
func FromWei(wei *big.Int, decimals int32, symbol string) proxyfox.Amount {
	if wei == nil {
		return proxyfox.Amount{Value: decimal.Zero, Asset: symbol}
	}
	return proxyfox.Amount{Value: decimal.NewFromBigInt(wei, -decimals), Asset: symbol}
}
