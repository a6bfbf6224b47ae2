package ledger

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// StaticFeed is a price feed answering a fixed value until changed, in the
// shape of a Chainlink aggregator: a scaled integer answer plus a decimal
// precision. It implements core.PriceFeed.
type StaticFeed struct {
	answer   *big.Int
	decimals uint8
}

// NewStaticFeed creates a feed answering answer at the given precision.
func NewStaticFeed(answer *big.Int, decimals uint8) *StaticFeed {
	return &StaticFeed{answer: new(big.Int).Set(answer), decimals: decimals}
}

// NewUsdFeed creates an 8-decimal feed from a human-readable USD price, e.g.
// "2000" -> answer 200000000000.
func NewUsdFeed(price string) (*StaticFeed, error) {
	d, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parsing feed price %q: %w", price, err)
	}
	return &StaticFeed{answer: d.Shift(8).Truncate(0).BigInt(), decimals: 8}, nil
}

// SetAnswer updates the feed's current answer.
func (f *StaticFeed) SetAnswer(answer *big.Int) {
	f.answer = new(big.Int).Set(answer)
}

// LatestAnswer implements core.PriceFeed.
func (f *StaticFeed) LatestAnswer() (*big.Int, error) {
	return new(big.Int).Set(f.answer), nil
}

// Decimals implements core.PriceFeed.
func (f *StaticFeed) Decimals() uint8 {
	return f.decimals
}
