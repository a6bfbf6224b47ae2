package core

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// UsdDecimals is the fixed precision of normalized USD values.
const UsdDecimals = 18

// UsdString renders an 18-decimal USD value as a human-readable decimal
// string, e.g. 2200000000000000000000 -> "2200".
func UsdString(usd *big.Int) string {
	return decimal.NewFromBigInt(usd, -UsdDecimals).String()
}

// ParseUsd parses a human-readable decimal USD string into an 18-decimal
// value, truncating any precision beyond 18 places.
func ParseUsd(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("parsing USD value %q: %w", s, err)
	}
	return d.Shift(UsdDecimals).Truncate(0).BigInt(), nil
}
