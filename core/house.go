package core

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// AuctionHouse is the transactional auction core. Each public operation
// (CreateAuction, PlaceBid, PlaceBidToken, EndAuction) runs to completion and
// either commits its full state mutation or commits nothing. The house holds
// no locks: the surrounding platform must serialize operations (the server
// does this with a single dispatch mutex). The discipline the house itself
// enforces is ordering: record state is committed strictly before any
// external transfer that could reenter, so a reentrant call lands on already
// advanced preconditions instead of stale state.
type AuctionHouse struct {
	store   *AuctionStore
	feeds   *FeedRegistry
	custody AssetCustody
	tokens  TokenVault
	coins   CoinVault
	sink    EventSink
	now     func() time.Time
}

// NewAuctionHouse wires the core against its store, feed registry and
// external collaborators. sink may be nil when no consumer wants events.
func NewAuctionHouse(store *AuctionStore, feeds *FeedRegistry, custody AssetCustody, tokens TokenVault, coins CoinVault, sink EventSink) *AuctionHouse {
	return &AuctionHouse{
		store:   store,
		feeds:   feeds,
		custody: custody,
		tokens:  tokens,
		coins:   coins,
		sink:    sink,
		now:     time.Now,
	}
}

// SetClock overrides the time source. Deadlines are evaluated against this
// clock; tests install a deterministic one.
func (h *AuctionHouse) SetClock(now func() time.Time) {
	h.now = now
}

// Feeds returns the house's feed registry.
func (h *AuctionHouse) Feeds() *FeedRegistry {
	return h.feeds
}

// Auction returns a copy of the record for id, or ErrNotFound.
func (h *AuctionHouse) Auction(id uint64) (*Auction, error) {
	a, err := h.store.Get(id)
	if err != nil {
		return nil, err
	}
	return a.Clone(), nil
}

// CreateAuction opens a new listing for the asset (assetContract, assetID)
// owned by caller. The asset is escrowed immediately; the reserve is
// startPrice in startCurrency, normalized to USD at creation time so a
// no-bid auction still has a well-defined reserve. Returns the new id.
func (h *AuctionHouse) CreateAuction(caller, assetContract common.Address, assetID *big.Int, startPrice *big.Int, startCurrency Currency, duration time.Duration) (uint64, error) {
	if duration <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidDuration, duration)
	}
	if startPrice == nil || startPrice.Sign() <= 0 {
		return 0, fmt.Errorf("%w: start price must be positive", ErrInvalidPrice)
	}

	// Normalize the reserve before touching the asset, so an unconfigured
	// start currency fails without any escrow to unwind.
	reserveUsd, err := h.feeds.NormalizeToUsd(startCurrency, startPrice)
	if err != nil {
		return 0, err
	}

	if err := h.custody.EscrowAsset(caller, assetContract, assetID); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrEscrowFailed, err)
	}

	a := &Auction{
		Seller:             caller,
		AssetContract:      assetContract,
		AssetID:            new(big.Int).Set(assetID),
		StartPrice:         new(big.Int).Set(startPrice),
		StartCurrency:      startCurrency,
		EndTimestamp:       h.now().Add(duration).Unix(),
		HighestBid:         big.NewInt(0),
		HighestBidCurrency: startCurrency,
		HighestBidInUsd:    reserveUsd,
	}
	id, err := h.store.Append(a)
	if err != nil {
		// Hand the asset back; the record never existed.
		if rerr := h.custody.ReleaseAsset(caller, assetContract, assetID); rerr != nil {
			return 0, fmt.Errorf("%w: %v (asset stuck in escrow: %v)", ErrEscrowFailed, err, rerr)
		}
		return 0, err
	}

	h.emitCreated(AuctionCreatedEvent{
		AuctionID:     id,
		Seller:        a.Seller,
		AssetContract: a.AssetContract,
		AssetID:       new(big.Int).Set(a.AssetID),
		StartPrice:    new(big.Int).Set(a.StartPrice),
		EndTimestamp:  a.EndTimestamp,
	})
	return id, nil
}

// pullFunds moves amount of cur from payer into house escrow.
func (h *AuctionHouse) pullFunds(payer common.Address, cur Currency, amount *big.Int) error {
	if cur.IsNative() {
		return h.coins.DepositCoin(payer, amount)
	}
	return h.tokens.PullTokens(cur.Token, payer, amount)
}

// payOut moves amount of cur from house escrow to recipient.
func (h *AuctionHouse) payOut(recipient common.Address, cur Currency, amount *big.Int) error {
	if cur.IsNative() {
		return h.coins.PayCoin(recipient, amount)
	}
	return h.tokens.PushTokens(cur.Token, recipient, amount)
}

func (h *AuctionHouse) emitCreated(e AuctionCreatedEvent) {
	if h.sink != nil {
		h.sink.AuctionCreated(e)
	}
}

func (h *AuctionHouse) emitBid(e BidPlacedEvent) {
	if h.sink != nil {
		h.sink.BidPlaced(e)
	}
}

func (h *AuctionHouse) emitEnded(e AuctionEndedEvent) {
	if h.sink != nil {
		h.sink.AuctionEnded(e)
	}
}
