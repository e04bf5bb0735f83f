package proxyfox

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultAsset is the native token symbol used when an amount carries none.
const DefaultAsset = "FLOW"

// Amount is a non-negative decimal quantity of a named asset, e.g. "12.5 FLOW".
type Amount struct {
	Value decimal.Decimal
	Asset string
}

// NewAmount builds an Amount from a decimal string and a symbol.
func NewAmount(value, asset string) (Amount, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	if d.IsNegative() {
		return Amount{}, fmt.Errorf("invalid amount %q: negative", value)
	}
	return Amount{Value: d, Asset: asset}, nil
}

// MustAmount is like NewAmount but panics on error. Intended for constants and tests.
func MustAmount(value, asset string) Amount {
	a, err := NewAmount(value, asset)
	if err != nil {
		panic(err)
	}
	return a
}

// ParseAmount parses "<decimal> <SYMBOL>". A bare decimal gets DefaultAsset.
func ParseAmount(s string) (Amount, error) {
	fields := strings.Fields(s)
	switch len(fields) {
	case 1:
		return NewAmount(fields[0], DefaultAsset)
	case 2:
		return NewAmount(fields[0], fields[1])
	default:
		return Amount{}, fmt.Errorf("invalid amount %q: expected \"<decimal> <symbol>\"", s)
	}
}

// String renders the canonical "<decimal> <SYMBOL>" form.
func (a Amount) String() string {
	if a.Asset == "" {
		return a.Value.String()
	}
	return a.Value.String() + " " + a.Asset
}

// MarshalText implements encoding.TextMarshaler.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := ParseAmount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// IsZero reports whether the magnitude is zero.
func (a Amount) IsZero() bool {
	return a.Value.IsZero()
}

// LessThan compares magnitudes only; the asset symbol is informational.
func (a Amount) LessThan(b Amount) bool {
	return a.Value.LessThan(b.Value)
}

// Equal reports whether both magnitude and symbol match.
func (a Amount) Equal(b Amount) bool {
	return a.Value.Equal(b.Value) && a.Asset == b.Asset
}
