// Package auctionapi defines the JSON operation envelopes the auction server
// speaks: one request/response pair per public operation, discriminated by a
// "type" field.
package auctionapi

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/cloudx-io/nftauction/core"
)

// Request type discriminators.
const (
	TypePing          = "ping"
	TypeCreateAuction = "create_auction"
	TypePlaceBid      = "place_bid"
	TypePlaceBidToken = "place_bid_token"
	TypeEndAuction    = "end_auction"
	TypeSetFeed       = "set_feed"
	TypeGetAuction    = "get_auction"
	TypeMintAsset     = "mint_asset"
	TypeApproveAsset  = "approve_asset"
	TypeMintToken     = "mint_token"
	TypeApproveToken  = "approve_token"
	TypeFundCoin      = "fund_coin"
)

// BaseRequest carries the fields every request shares; servers sniff Type
// before decoding the full request.
type BaseRequest struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
}

// NewRequestID returns a fresh request identifier.
func NewRequestID() string {
	return uuid.NewString()
}

// CreateAuctionRequest opens a listing. StartPrice is a base-unit decimal
// string; Currency is "native" or "token" (with TokenAddress set).
type CreateAuctionRequest struct {
	BaseRequest
	Seller          string `json:"seller"`
	AssetContract   string `json:"asset_contract"`
	AssetID         string `json:"asset_id"`
	StartPrice      string `json:"start_price"`
	Currency        string `json:"currency"`
	TokenAddress    string `json:"token_address,omitempty"`
	DurationSeconds int64  `json:"duration_seconds"`
}

// PlaceBidRequest places a native-coin bid; Value is the attached coin in
// base units.
type PlaceBidRequest struct {
	BaseRequest
	AuctionID uint64 `json:"auction_id"`
	Bidder    string `json:"bidder"`
	Value     string `json:"value"`
}

// PlaceBidTokenRequest places a fungible-token bid.
type PlaceBidTokenRequest struct {
	BaseRequest
	AuctionID    uint64 `json:"auction_id"`
	Bidder       string `json:"bidder"`
	Amount       string `json:"amount"`
	TokenAddress string `json:"token_address"`
}

// EndAuctionRequest settles an auction past its deadline.
type EndAuctionRequest struct {
	BaseRequest
	AuctionID uint64 `json:"auction_id"`
}

// SetFeedRequest binds a price feed for a currency. The feed is described by
// value: a human-readable USD price at 8 decimals.
type SetFeedRequest struct {
	BaseRequest
	Caller       string `json:"caller"`
	Currency     string `json:"currency"`
	TokenAddress string `json:"token_address,omitempty"`
	UsdPrice     string `json:"usd_price"`
}

// GetAuctionRequest reads an auction record.
type GetAuctionRequest struct {
	BaseRequest
	AuctionID uint64 `json:"auction_id"`
}

// MintAssetRequest mints an asset on the in-process registry.
type MintAssetRequest struct {
	BaseRequest
	Caller        string `json:"caller"`
	AssetContract string `json:"asset_contract"`
	To            string `json:"to"`
}

// ApproveAssetRequest approves the house to escrow an asset.
type ApproveAssetRequest struct {
	BaseRequest
	Caller        string `json:"caller"`
	AssetContract string `json:"asset_contract"`
	AssetID       string `json:"asset_id"`
}

// MintTokenRequest credits fungible tokens on the in-process ledger.
type MintTokenRequest struct {
	BaseRequest
	TokenAddress string `json:"token_address"`
	To           string `json:"to"`
	Amount       string `json:"amount"`
}

// ApproveTokenRequest grants the house a token allowance.
type ApproveTokenRequest struct {
	BaseRequest
	Caller       string `json:"caller"`
	TokenAddress string `json:"token_address"`
	Amount       string `json:"amount"`
}

// FundCoinRequest credits native coin on the in-process book.
type FundCoinRequest struct {
	BaseRequest
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// AuctionView is the JSON projection of a core.Auction. Amounts are base-unit
// decimal strings; HighestBidUsd is additionally rendered human-readable.
type AuctionView struct {
	ID                 uint64 `json:"id"`
	Seller             string `json:"seller"`
	AssetContract      string `json:"asset_contract"`
	AssetID            string `json:"asset_id"`
	StartPrice         string `json:"start_price"`
	StartCurrency      string `json:"start_currency"`
	EndTimestamp       int64  `json:"end_timestamp"`
	HighestBidder      string `json:"highest_bidder,omitempty"`
	HighestBid         string `json:"highest_bid"`
	HighestBidCurrency string `json:"highest_bid_currency"`
	HighestBidUsd      string `json:"highest_bid_usd"`
	Ended              bool   `json:"ended"`
}

// ViewOf projects an auction record for the wire.
func ViewOf(a *core.Auction) *AuctionView {
	v := &AuctionView{
		ID:                 a.ID,
		Seller:             a.Seller.Hex(),
		AssetContract:      a.AssetContract.Hex(),
		AssetID:            a.AssetID.String(),
		StartPrice:         a.StartPrice.String(),
		StartCurrency:      a.StartCurrency.String(),
		EndTimestamp:       a.EndTimestamp,
		HighestBid:         a.HighestBid.String(),
		HighestBidCurrency: a.HighestBidCurrency.String(),
		HighestBidUsd:      core.UsdString(a.HighestBidInUsd),
		Ended:              a.Ended,
	}
	if a.HasBid() {
		v.HighestBidder = a.HighestBidder.Hex()
	}
	return v
}

// Response is the uniform reply envelope.
type Response struct {
	Type           string       `json:"type"`
	RequestID      string       `json:"request_id,omitempty"`
	Success        bool         `json:"success"`
	Message        string       `json:"message,omitempty"`
	AuctionID      uint64       `json:"auction_id,omitempty"`
	Auction        *AuctionView `json:"auction,omitempty"`
	AssetID        string       `json:"asset_id,omitempty"`
	ReceiptHash    string       `json:"receipt_hash,omitempty"`
	ProcessingTime int64        `json:"processing_time_ms"`
}

// ParseAddress decodes a required 0x-prefixed hex address field.
func ParseAddress(field, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid %s: %q is not a hex address", field, value)
	}
	return common.HexToAddress(value), nil
}

// ParseAmount decodes a required positive base-unit decimal string.
func ParseAmount(field, value string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s: %q is not a base-10 integer", field, value)
	}
	if n.Sign() <= 0 {
		return nil, fmt.Errorf("invalid %s: must be positive, got %s", field, n)
	}
	return n, nil
}

// ParseID decodes a non-negative base-unit decimal string (asset ids may be
// zero).
func ParseID(field, value string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(value, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("invalid %s: %q is not a non-negative integer", field, value)
	}
	return n, nil
}

// ParseCurrency decodes the currency + token address pair.
func ParseCurrency(currency, tokenAddress string) (core.Currency, error) {
	switch currency {
	case "native":
		return core.NativeCurrency(), nil
	case "token":
		addr, err := ParseAddress("token_address", tokenAddress)
		if err != nil {
			return core.Currency{}, err
		}
		return core.TokenCurrency(addr), nil
	default:
		return core.Currency{}, fmt.Errorf("invalid currency %q: want \"native\" or \"token\"", currency)
	}
}

// Validate checks the request's fields before the core is invoked.
func (r *CreateAuctionRequest) Validate() error {
	if _, err := ParseAddress("seller", r.Seller); err != nil {
		return err
	}
	if _, err := ParseAddress("asset_contract", r.AssetContract); err != nil {
		return err
	}
	if _, err := ParseID("asset_id", r.AssetID); err != nil {
		return err
	}
	if _, err := ParseAmount("start_price", r.StartPrice); err != nil {
		return err
	}
	if _, err := ParseCurrency(r.Currency, r.TokenAddress); err != nil {
		return err
	}
	if r.DurationSeconds <= 0 {
		return fmt.Errorf("invalid duration_seconds: must be positive, got %d", r.DurationSeconds)
	}
	return nil
}

// Validate checks the request's fields before the core is invoked.
func (r *PlaceBidRequest) Validate() error {
	if _, err := ParseAddress("bidder", r.Bidder); err != nil {
		return err
	}
	_, err := ParseAmount("value", r.Value)
	return err
}

// Validate checks the request's fields before the core is invoked.
func (r *PlaceBidTokenRequest) Validate() error {
	if _, err := ParseAddress("bidder", r.Bidder); err != nil {
		return err
	}
	if _, err := ParseAddress("token_address", r.TokenAddress); err != nil {
		return err
	}
	_, err := ParseAmount("amount", r.Amount)
	return err
}

// Validate checks the request's fields before the core is invoked.
func (r *SetFeedRequest) Validate() error {
	if _, err := ParseAddress("caller", r.Caller); err != nil {
		return err
	}
	if _, err := ParseCurrency(r.Currency, r.TokenAddress); err != nil {
		return err
	}
	if r.UsdPrice == "" {
		return fmt.Errorf("invalid usd_price: empty")
	}
	return nil
}
