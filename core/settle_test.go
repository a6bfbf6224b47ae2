package core

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestEndAuction_BeforeDeadline(t *testing.T) {
	f := newFixture(t)
	id := f.createDefault(t)

	err := f.house.EndAuction(id)
	check.True(t, errors.Is(err, ErrAuctionStillOpen))

	a, err := f.house.Auction(id)
	assert.NoError(t, err)
	check.False(t, a.Ended)
}

func TestEndAuction_WithWinner(t *testing.T) {
	f := newFixture(t)
	id := f.createDefault(t)
	f.bank.fundCoin(bidder1, amt("5"))
	assert.NoError(t, f.house.PlaceBid(bidder1, id, amt("1.1")))

	f.clock.advance(time.Hour + time.Second)
	assert.NoError(t, f.house.EndAuction(id))

	// Asset to the winner, funds to the seller, escrow emptied.
	check.Equal(t, bidder1, f.custody.ownerOf(nftRef, big.NewInt(0)))
	check.Equal(t, 0, f.bank.coinBalance(seller).Cmp(amt("1.1")))
	check.Equal(t, 0, f.bank.coinBalance(houseAddr).Cmp(big.NewInt(0)))

	a, err := f.house.Auction(id)
	assert.NoError(t, err)
	check.True(t, a.Ended)

	assert.Equal(t, 1, len(f.events.Ended))
	e := f.events.Ended[0]
	check.Equal(t, id, e.AuctionID)
	check.Equal(t, bidder1, e.Winner)
	check.Equal(t, 0, e.Amount.Cmp(amt("1.1")))
}

func TestEndAuction_TokenBidPaysSellerInTokens(t *testing.T) {
	f := newFixture(t)
	id := f.createDefault(t)
	f.bank.fundToken(tokenA, bidder1, amt("2500"))
	assert.NoError(t, f.house.PlaceBidToken(bidder1, id, amt("2500"), tokenA))

	f.clock.advance(2 * time.Hour)
	assert.NoError(t, f.house.EndAuction(id))

	check.Equal(t, bidder1, f.custody.ownerOf(nftRef, big.NewInt(0)))
	check.Equal(t, 0, f.bank.tokenBalance(tokenA, seller).Cmp(amt("2500")))
	check.Equal(t, 0, f.bank.tokenBalance(tokenA, houseAddr).Cmp(big.NewInt(0)))
}

func TestEndAuction_NoBidsReturnsAssetToSeller(t *testing.T) {
	f := newFixture(t)
	id := f.createDefault(t)

	f.clock.advance(2 * time.Hour)
	assert.NoError(t, f.house.EndAuction(id))

	check.Equal(t, seller, f.custody.ownerOf(nftRef, big.NewInt(0)))
	check.Equal(t, 0, f.bank.coinBalance(seller).Cmp(big.NewInt(0)))
	check.Equal(t, 0, f.bank.coinBalance(houseAddr).Cmp(big.NewInt(0)))

	// Winner reported as absent, amount as the start price.
	assert.Equal(t, 1, len(f.events.Ended))
	e := f.events.Ended[0]
	check.Equal(t, common.Address{}, e.Winner)
	check.Equal(t, 0, e.Amount.Cmp(amt("1")))
}

func TestEndAuction_SecondCallFails(t *testing.T) {
	f := newFixture(t)
	id := f.createDefault(t)
	f.bank.fundCoin(bidder1, amt("5"))
	assert.NoError(t, f.house.PlaceBid(bidder1, id, amt("1.1")))

	f.clock.advance(2 * time.Hour)
	assert.NoError(t, f.house.EndAuction(id))

	err := f.house.EndAuction(id)
	check.True(t, errors.Is(err, ErrAlreadyEnded))

	// The single settlement's transfers did not repeat.
	check.Equal(t, 0, f.bank.coinBalance(seller).Cmp(amt("1.1")))
	check.Equal(t, 1, len(f.events.Ended))
}

func TestEndAuction_UnknownAuction(t *testing.T) {
	f := newFixture(t)

	err := f.house.EndAuction(42)
	check.True(t, errors.Is(err, ErrNotFound))
}

func TestEndAuction_AnyCallerMaySettle(t *testing.T) {
	// EndAuction takes no caller identity at all; this pins that the
	// operation's effects do not depend on who invokes it.
	f := newFixture(t)
	id := f.createDefault(t)
	f.clock.advance(2 * time.Hour)

	assert.NoError(t, f.house.EndAuction(id))
	check.Equal(t, seller, f.custody.ownerOf(nftRef, big.NewInt(0)))
}

func TestEndAuction_AssetReleaseFailureReopens(t *testing.T) {
	f := newFixture(t)
	id := f.createDefault(t)
	f.bank.fundCoin(bidder1, amt("5"))
	assert.NoError(t, f.house.PlaceBid(bidder1, id, amt("1.1")))
	f.clock.advance(2 * time.Hour)

	f.custody.failRelease = errors.New("custody offline")
	err := f.house.EndAuction(id)
	check.True(t, errors.Is(err, ErrTransferFailed))

	// Atomic failure: not ended, funds still escrowed, retry succeeds.
	a, err2 := f.house.Auction(id)
	assert.NoError(t, err2)
	check.False(t, a.Ended)
	check.Equal(t, 0, f.bank.coinBalance(houseAddr).Cmp(amt("1.1")))

	f.custody.failRelease = nil
	assert.NoError(t, f.house.EndAuction(id))
	check.Equal(t, bidder1, f.custody.ownerOf(nftRef, big.NewInt(0)))
}

// reentrantCustody calls back into the house from inside the settlement
// transfer, the way an untrusted external contract could.
type reentrantCustody struct {
	*testCustody
	house     *AuctionHouse
	auctionID uint64
	reentered error
	armed     bool
}

func (c *reentrantCustody) ReleaseAsset(recipient, contract common.Address, id *big.Int) error {
	if c.armed {
		c.armed = false
		c.reentered = c.house.EndAuction(c.auctionID)
	}
	return c.testCustody.ReleaseAsset(recipient, contract, id)
}

func TestEndAuction_ReentrantSettleSeesEndedFlag(t *testing.T) {
	f := newFixture(t)
	custody := &reentrantCustody{testCustody: f.custody}
	f.house = NewAuctionHouse(f.store, f.feeds, custody, f.bank, f.bank, f.events)
	f.house.SetClock(f.clock.now)
	custody.house = f.house

	id := f.createDefault(t)
	f.bank.fundCoin(bidder1, amt("5"))
	assert.NoError(t, f.house.PlaceBid(bidder1, id, amt("1.1")))
	f.clock.advance(2 * time.Hour)

	custody.auctionID = id
	custody.armed = true
	assert.NoError(t, f.house.EndAuction(id))

	// The nested call found Ended already committed and was turned away;
	// seller was paid exactly once.
	check.True(t, errors.Is(custody.reentered, ErrAlreadyEnded))
	check.Equal(t, 0, f.bank.coinBalance(seller).Cmp(amt("1.1")))
	check.Equal(t, 1, len(f.events.Ended))
}

// reentrantVault rebids from inside the refund payout.
type reentrantVault struct {
	*testBank
	house     *AuctionHouse
	auctionID uint64
	rebidder  common.Address
	rebid     *big.Int
	reentered error
	armed     bool
}

func (v *reentrantVault) PayCoin(recipient common.Address, amount *big.Int) error {
	if v.armed {
		v.armed = false
		v.reentered = v.house.PlaceBid(v.rebidder, v.auctionID, v.rebid)
	}
	return v.testBank.PayCoin(recipient, amount)
}

func TestPlaceBid_ReentrantRebidSeesCommittedBid(t *testing.T) {
	f := newFixture(t)
	vault := &reentrantVault{testBank: f.bank}
	f.house = NewAuctionHouse(f.store, f.feeds, f.custody, f.bank, vault, f.events)
	f.house.SetClock(f.clock.now)
	vault.house = f.house

	id := f.createDefault(t)
	f.bank.fundCoin(bidder1, amt("5"))
	f.bank.fundCoin(bidder2, amt("5"))
	assert.NoError(t, f.house.PlaceBid(bidder1, id, amt("1.1")))

	// While bidder1's refund is paying out, bidder1 tries to rebid the same
	// 1.1; it must compare against the already committed 1.2, not 1.1.
	vault.auctionID = id
	vault.rebidder = bidder1
	vault.rebid = amt("1.1")
	vault.armed = true
	assert.NoError(t, f.house.PlaceBid(bidder2, id, amt("1.2")))

	check.True(t, errors.Is(vault.reentered, ErrBidTooLow))

	a, err := f.house.Auction(id)
	assert.NoError(t, err)
	check.Equal(t, bidder2, a.HighestBidder)
}
