package replay

import (
	"context"
	"strings"
)

// KeyPrefix namespaces replay keys in shared stores.
const KeyPrefix = "proxyfox:replay:"

// Store claims transaction hashes. Implementations must be safe for
// concurrent use and Claim must be atomic: of two concurrent claims for the
// same hash exactly one returns true. Release forgets a claim so the hash
// can be claimed again.
type Store interface {
	Claim(ctx context.Context, txHash string) (bool, error)
	Release(ctx context.Context, txHash string) error
}

// Key normalizes a transaction hash into a store key. Hex hashes compare
// case-insensitively.
func Key(txHash string) string {
	return KeyPrefix + strings.ToLower(strings.TrimSpace(txHash))
}
