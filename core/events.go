package core

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EventSink receives a notification for every committed state transition.
// Events are emitted after the transition is fully committed; a sink cannot
// veto or mutate anything.
type EventSink interface {
	AuctionCreated(e AuctionCreatedEvent)
	BidPlaced(e BidPlacedEvent)
	AuctionEnded(e AuctionEndedEvent)
}

// AuctionCreatedEvent announces a new listing.
type AuctionCreatedEvent struct {
	AuctionID     uint64
	Seller        common.Address
	AssetContract common.Address
	AssetID       *big.Int
	StartPrice    *big.Int
	EndTimestamp  int64
}

// BidPlacedEvent announces an accepted bid. Amount is in the bid's own
// currency base units.
type BidPlacedEvent struct {
	AuctionID uint64
	Bidder    common.Address
	Amount    *big.Int
}

// AuctionEndedEvent announces settlement. Winner is the zero address and
// Amount the start price when the auction closed with no bids.
type AuctionEndedEvent struct {
	AuctionID uint64
	Winner    common.Address
	Amount    *big.Int
}

// EventRecorder is an EventSink that appends every event, in order. Used by
// tests and by callers that drain events after each operation.
type EventRecorder struct {
	Created []AuctionCreatedEvent
	Bids    []BidPlacedEvent
	Ended   []AuctionEndedEvent
}

func (r *EventRecorder) AuctionCreated(e AuctionCreatedEvent) { r.Created = append(r.Created, e) }
func (r *EventRecorder) BidPlaced(e BidPlacedEvent)           { r.Bids = append(r.Bids, e) }
func (r *EventRecorder) AuctionEnded(e AuctionEndedEvent)     { r.Ended = append(r.Ended, e) }
