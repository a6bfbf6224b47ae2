package core

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Auction is the durable record of one listing. Creation-time fields are
// immutable; only the highest-bid group changes while bidding is open, and
// Ended flips false→true exactly once at settlement.
type Auction struct {
	ID            uint64
	Seller        common.Address
	AssetContract common.Address
	AssetID       *big.Int
	StartPrice    *big.Int // in StartCurrency base units
	StartCurrency Currency
	EndTimestamp  int64 // unix seconds; bidding closes at this instant

	HighestBidder      common.Address // zero address until the first valid bid
	HighestBid         *big.Int       // in HighestBidCurrency base units
	HighestBidCurrency Currency
	HighestBidInUsd    *big.Int // 18-decimal USD; never decreases

	Ended bool
}

// HasBid reports whether at least one valid bid has been accepted.
func (a *Auction) HasBid() bool {
	return a.HighestBidder != (common.Address{})
}

// Clone returns a deep copy. Mutating operations work on a clone and swap it
// into the store so a failed operation leaves the stored record untouched.
func (a *Auction) Clone() *Auction {
	c := *a
	c.AssetID = new(big.Int).Set(a.AssetID)
	c.StartPrice = new(big.Int).Set(a.StartPrice)
	c.HighestBid = new(big.Int).Set(a.HighestBid)
	c.HighestBidInUsd = new(big.Int).Set(a.HighestBidInUsd)
	return &c
}
