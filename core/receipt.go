package core

import (
	"crypto/sha256"
	"fmt"
)

// Receipt hashes give off-process consumers a stable identity for each
// committed event, so replayed or duplicated notifications can be deduped.
// The canonical string joins the event's fields with "|" in field order.

// ReceiptHash returns the hex SHA-256 of a "|"-joined canonical string.
func ReceiptHash(fields ...string) string {
	data := ""
	for i, f := range fields {
		if i > 0 {
			data += "|"
		}
		data += f
	}
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// ReceiptHash returns the canonical hash of a bid-accepted event.
//
// Formula: SHA256(auction_id + "|" + bidder + "|" + amount)
func (e BidPlacedEvent) ReceiptHash() string {
	return ReceiptHash(fmt.Sprintf("%d", e.AuctionID), e.Bidder.Hex(), e.Amount.String())
}

// ReceiptHash returns the canonical hash of a settlement event.
//
// Formula: SHA256(auction_id + "|" + winner + "|" + amount)
func (e AuctionEndedEvent) ReceiptHash() string {
	return ReceiptHash(fmt.Sprintf("%d", e.AuctionID), e.Winner.Hex(), e.Amount.String())
}
