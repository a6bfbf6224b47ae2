package core

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EndAuction settles auctionID once its deadline has passed: asset to the
// winner and escrowed funds to the seller, or asset back to the seller when
// no bid was ever placed. Any caller may settle; the deadline is an
// objective fact, not the seller's decision. The Ended flag is committed
// before either transfer, so a reentrant call fails with ErrAlreadyEnded and
// a second call can never pay out twice.
func (h *AuctionHouse) EndAuction(auctionID uint64) error {
	rec, err := h.store.Get(auctionID)
	if err != nil {
		return err
	}
	if h.now().Unix() < rec.EndTimestamp {
		return fmt.Errorf("%w: auction %d closes at %d", ErrAuctionStillOpen, auctionID, rec.EndTimestamp)
	}
	if rec.Ended {
		return fmt.Errorf("%w: auction %d", ErrAlreadyEnded, auctionID)
	}

	working := rec.Clone()
	working.Ended = true
	if err := h.store.Replace(working); err != nil {
		return err
	}

	if working.HasBid() {
		if err := h.custody.ReleaseAsset(working.HighestBidder, working.AssetContract, working.AssetID); err != nil {
			// Nothing has moved yet; reopen the record and fail atomically.
			if rerr := h.store.Replace(rec); rerr != nil {
				return fmt.Errorf("%w: releasing asset to winner: %v (rollback also failed: %v)", ErrTransferFailed, err, rerr)
			}
			return fmt.Errorf("%w: releasing asset to winner: %v", ErrTransferFailed, err)
		}
		if err := h.payOut(working.Seller, working.HighestBidCurrency, working.HighestBid); err != nil {
			// The escrow invariant guarantees the funds are house-held, so a
			// conforming collaborator cannot fail here; surface the fault.
			return fmt.Errorf("%w: paying seller: %v", ErrTransferFailed, err)
		}
		h.emitEnded(AuctionEndedEvent{
			AuctionID: auctionID,
			Winner:    working.HighestBidder,
			Amount:    new(big.Int).Set(working.HighestBid),
		})
		return nil
	}

	if err := h.custody.ReleaseAsset(working.Seller, working.AssetContract, working.AssetID); err != nil {
		if rerr := h.store.Replace(rec); rerr != nil {
			return fmt.Errorf("%w: returning asset to seller: %v (rollback also failed: %v)", ErrTransferFailed, err, rerr)
		}
		return fmt.Errorf("%w: returning asset to seller: %v", ErrTransferFailed, err)
	}
	h.emitEnded(AuctionEndedEvent{
		AuctionID: auctionID,
		Winner:    common.Address{},
		Amount:    new(big.Int).Set(working.StartPrice),
	})
	return nil
}
