package core

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PlaceBid places a native-coin bid on auctionID; value is the coin the
// caller attached to the operation.
func (h *AuctionHouse) PlaceBid(caller common.Address, auctionID uint64, value *big.Int) error {
	return h.placeBid(caller, auctionID, value, NativeCurrency())
}

// PlaceBidToken places a bid denominated in the fungible token at token. The
// caller must first have granted the house a transfer allowance of at least
// amount; the house pulls the funds into escrow.
func (h *AuctionHouse) PlaceBidToken(caller common.Address, auctionID uint64, amount *big.Int, token common.Address) error {
	return h.placeBid(caller, auctionID, amount, TokenCurrency(token))
}

// placeBid is the shared comparison core. Preconditions are checked in a
// fixed order, each mapping to its own failure kind. A rejected bid always hands
// the just-pulled funds back to the caller before failing, and a failed
// refund of the displaced bidder rejects the whole bid, so at every exit the
// escrow matches the recorded highest bidder exactly.
func (h *AuctionHouse) placeBid(caller common.Address, auctionID uint64, amount *big.Int, cur Currency) error {
	rec, err := h.store.Get(auctionID)
	if err != nil {
		return err
	}
	if rec.Ended || !h.now().Before(time.Unix(rec.EndTimestamp, 0)) {
		return fmt.Errorf("%w: auction %d", ErrAuctionClosed, auctionID)
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: bid must be positive", ErrInvalidAmount)
	}

	if err := h.pullFunds(caller, cur, amount); err != nil {
		return fmt.Errorf("%w: pulling bid funds: %v", ErrTransferFailed, err)
	}

	candidateUsd, err := h.feeds.NormalizeToUsd(cur, amount)
	if err != nil {
		if rerr := h.payOut(caller, cur, amount); rerr != nil {
			return fmt.Errorf("%w; returning funds also failed: %v", err, rerr)
		}
		return err
	}

	// Strict inequality: a bid equal to the current highest USD value loses.
	if candidateUsd.Cmp(rec.HighestBidInUsd) <= 0 {
		if rerr := h.payOut(caller, cur, amount); rerr != nil {
			return fmt.Errorf("%w: returning rejected bid funds: %v", ErrTransferFailed, rerr)
		}
		return fmt.Errorf("%w: %s USD <= current %s USD", ErrBidTooLow, candidateUsd, rec.HighestBidInUsd)
	}

	displaced := rec.HasBid()
	working := rec.Clone()
	working.HighestBidder = caller
	working.HighestBid = new(big.Int).Set(amount)
	working.HighestBidCurrency = cur
	working.HighestBidInUsd = candidateUsd

	// Commit the new highest bid before the refund goes out: a reentrant
	// call from the refunded party competes against the new bid, not the one
	// it just lost to.
	if err := h.store.Replace(working); err != nil {
		if rerr := h.payOut(caller, cur, amount); rerr != nil {
			return fmt.Errorf("%w (returning funds also failed: %v)", err, rerr)
		}
		return err
	}

	if displaced {
		if err := h.payOut(rec.HighestBidder, rec.HighestBidCurrency, rec.HighestBid); err != nil {
			// The refund must complete or the whole bid is rejected: restore
			// the previous record and hand the new funds back.
			if rerr := h.store.Replace(rec); rerr != nil {
				return fmt.Errorf("%w: refunding displaced bidder: %v (rollback also failed: %v)", ErrTransferFailed, err, rerr)
			}
			if rerr := h.payOut(caller, cur, amount); rerr != nil {
				return fmt.Errorf("%w: refunding displaced bidder: %v (returning funds also failed: %v)", ErrTransferFailed, err, rerr)
			}
			return fmt.Errorf("%w: refunding displaced bidder: %v", ErrTransferFailed, err)
		}
	}

	h.emitBid(BidPlacedEvent{
		AuctionID: auctionID,
		Bidder:    caller,
		Amount:    new(big.Int).Set(amount),
	})
	return nil
}
