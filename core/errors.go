package core

import "errors"

// Every failure of a public operation maps to exactly one of these kinds and
// aborts the operation with no state change. Callers match with errors.Is;
// the wrapped detail carries the specifics.
var (
	ErrNotFound         = errors.New("auction not found")
	ErrInvalidDuration  = errors.New("invalid duration")
	ErrInvalidPrice     = errors.New("invalid price")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEscrowFailed     = errors.New("escrow failed")
	ErrTransferFailed   = errors.New("transfer failed")
	ErrBidTooLow        = errors.New("bid too low")
	ErrAuctionClosed    = errors.New("auction closed")
	ErrAuctionStillOpen = errors.New("auction still open")
	ErrAlreadyEnded     = errors.New("auction already ended")
	ErrUnconfiguredFeed = errors.New("unconfigured price feed")
	ErrUnauthorized     = errors.New("unauthorized")
)
