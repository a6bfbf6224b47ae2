package core

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// CurrencyKind discriminates the two settlement currency classes.
type CurrencyKind uint8

const (
	// CurrencyNative is the chain's native coin.
	CurrencyNative CurrencyKind = iota
	// CurrencyToken is a fungible token identified by its contract address.
	CurrencyToken
)

// Currency identifies what an amount is denominated in. It is a closed
// variant: either the native coin, or one whitelisted fungible token.
// Amounts in either class are 18-decimal base units.
type Currency struct {
	Kind  CurrencyKind
	Token common.Address // zero unless Kind == CurrencyToken
}

// NativeCurrency returns the native-coin currency.
func NativeCurrency() Currency {
	return Currency{Kind: CurrencyNative}
}

// TokenCurrency returns the currency for the fungible token at addr.
func TokenCurrency(addr common.Address) Currency {
	return Currency{Kind: CurrencyToken, Token: addr}
}

// IsNative reports whether c is the native coin.
func (c Currency) IsNative() bool {
	return c.Kind == CurrencyNative
}

// String returns the canonical form used in logs, events and persistence
// keys: "native", or "token:0x...".
func (c Currency) String() string {
	if c.IsNative() {
		return "native"
	}
	return fmt.Sprintf("token:%s", c.Token.Hex())
}
