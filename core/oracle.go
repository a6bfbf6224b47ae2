package core

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PriceFeed answers the current USD price of one unit of some currency as a
// scaled integer. A feed reporting 2000 USD with 8 decimals answers
// 200000000000. Feeds are external; reads are pure.
type PriceFeed interface {
	LatestAnswer() (*big.Int, error)
	Decimals() uint8
}

// FeedNotifier observes committed feed bindings (used for durable snapshots).
type FeedNotifier interface {
	FeedBound(currency Currency, feed PriceFeed)
}

// FeedRegistry holds the authorized price-feed bindings: one for the native
// coin and one per whitelisted token. Only the configurator set at
// construction may change bindings; every other component reads them.
type FeedRegistry struct {
	configurator common.Address
	nativeFeed   PriceFeed
	tokenFeeds   map[common.Address]PriceFeed
	notifier     FeedNotifier
}

// NewFeedRegistry creates a registry whose bindings only configurator may set.
func NewFeedRegistry(configurator common.Address) *FeedRegistry {
	return &FeedRegistry{
		configurator: configurator,
		tokenFeeds:   make(map[common.Address]PriceFeed),
	}
}

// SetNotifier installs an observer for committed bindings. Pass nil to remove.
func (r *FeedRegistry) SetNotifier(n FeedNotifier) {
	r.notifier = n
}

// Configurator returns the identity allowed to change bindings.
func (r *FeedRegistry) Configurator() common.Address {
	return r.configurator
}

// SetFeed binds currency to feed, overwriting any prior binding. Fails with
// ErrUnauthorized unless caller is the configurator.
func (r *FeedRegistry) SetFeed(caller common.Address, currency Currency, feed PriceFeed) error {
	if caller != r.configurator {
		return fmt.Errorf("%w: %s may not set price feeds", ErrUnauthorized, caller.Hex())
	}
	if currency.IsNative() {
		r.nativeFeed = feed
	} else {
		r.tokenFeeds[currency.Token] = feed
	}
	if r.notifier != nil {
		r.notifier.FeedBound(currency, feed)
	}
	return nil
}

// RestoreFeed reinstalls a binding from a durable snapshot, bypassing the
// configurator check and the notifier. Only the startup loading path should
// call this.
func (r *FeedRegistry) RestoreFeed(currency Currency, feed PriceFeed) {
	if currency.IsNative() {
		r.nativeFeed = feed
	} else {
		r.tokenFeeds[currency.Token] = feed
	}
}

// Feed resolves the binding for currency, failing with ErrUnconfiguredFeed
// when none exists.
func (r *FeedRegistry) Feed(currency Currency) (PriceFeed, error) {
	if currency.IsNative() {
		if r.nativeFeed == nil {
			return nil, fmt.Errorf("%w: native coin", ErrUnconfiguredFeed)
		}
		return r.nativeFeed, nil
	}
	feed, ok := r.tokenFeeds[currency.Token]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnconfiguredFeed, currency)
	}
	return feed, nil
}

// NormalizeToUsd converts amount (base units of currency, 18 decimals) into
// an 18-decimal USD value using the bound feed:
//
//	usd = amount * answer / 10^feedDecimals
//
// The product is taken in arbitrary-precision integers before the division,
// so realistic amount*price combinations cannot overflow, and the division
// truncates toward zero so comparisons are reproducible.
func (r *FeedRegistry) NormalizeToUsd(currency Currency, amount *big.Int) (*big.Int, error) {
	feed, err := r.Feed(currency)
	if err != nil {
		return nil, err
	}
	answer, err := feed.LatestAnswer()
	if err != nil {
		return nil, fmt.Errorf("%w: reading feed for %s: %v", ErrUnconfiguredFeed, currency, err)
	}
	if answer == nil || answer.Sign() <= 0 {
		return nil, fmt.Errorf("%w: feed for %s answered %v", ErrUnconfiguredFeed, currency, answer)
	}
	usd := new(big.Int).Mul(amount, answer)
	return usd.Quo(usd, pow10(feed.Decimals())), nil
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
