package catalog

import (
	"strings"

	"github.com/proxyfox/proxyfox"
)

// ParsePrice accepts the price forms found in catalogs: "0.01", "$0.01"
// and "0.01 FLOW". A bare number is denominated in the native asset.
func ParsePrice(s string) (proxyfox.Amount, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	return proxyfox.ParseAmount(s)
}
