package main

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cloudx-io/nftauction/auctionapi"
	"github.com/cloudx-io/nftauction/core"
	"github.com/cloudx-io/nftauction/ledger"
)

// logSink writes every committed auction event to the process log, including
// the receipt hash for events that carry one.
type logSink struct{}

func (logSink) AuctionCreated(e core.AuctionCreatedEvent) {
	log.Printf("INFO: AuctionCreated id=%d seller=%s asset=%s/%s start_price=%s ends=%d",
		e.AuctionID, e.Seller.Hex(), e.AssetContract.Hex(), e.AssetID, e.StartPrice, e.EndTimestamp)
}

func (logSink) BidPlaced(e core.BidPlacedEvent) {
	log.Printf("INFO: BidPlaced id=%d bidder=%s amount=%s receipt=%s",
		e.AuctionID, e.Bidder.Hex(), e.Amount, e.ReceiptHash())
}

func (logSink) AuctionEnded(e core.AuctionEndedEvent) {
	log.Printf("INFO: AuctionEnded id=%d winner=%s amount=%s receipt=%s",
		e.AuctionID, e.Winner.Hex(), e.Amount, e.ReceiptHash())
}

// dispatch routes a sniffed request type to its handler. Handlers take the
// transaction slot themselves; ping and unknown types bypass it.
func (s *AuctionServer) dispatch(reqType string, payload []byte) any {
	start := time.Now()

	switch reqType {
	case auctionapi.TypePing:
		log.Printf("INFO: Responding to ping with pong")
		return map[string]any{
			"type":      "pong",
			"message":   "auction server is healthy",
			"timestamp": time.Now().Unix(),
		}
	case auctionapi.TypeCreateAuction:
		return s.handleCreateAuction(payload, start)
	case auctionapi.TypePlaceBid:
		return s.handlePlaceBid(payload, start)
	case auctionapi.TypePlaceBidToken:
		return s.handlePlaceBidToken(payload, start)
	case auctionapi.TypeEndAuction:
		return s.handleEndAuction(payload, start)
	case auctionapi.TypeSetFeed:
		return s.handleSetFeed(payload, start)
	case auctionapi.TypeGetAuction:
		return s.handleGetAuction(payload, start)
	case auctionapi.TypeMintAsset:
		return s.handleMintAsset(payload, start)
	case auctionapi.TypeApproveAsset:
		return s.handleApproveAsset(payload, start)
	case auctionapi.TypeMintToken:
		return s.handleMintToken(payload, start)
	case auctionapi.TypeApproveToken:
		return s.handleApproveToken(payload, start)
	case auctionapi.TypeFundCoin:
		return s.handleFundCoin(payload, start)
	default:
		return map[string]any{
			"type":    "error",
			"message": fmt.Sprintf("Unknown request type: %s", reqType),
		}
	}
}

func failure(reqType, reqID string, start time.Time, err error) *auctionapi.Response {
	log.Printf("ERROR: %s failed: %v", reqType, err)
	return &auctionapi.Response{
		Type:           reqType + "_response",
		RequestID:      reqID,
		Success:        false,
		Message:        err.Error(),
		ProcessingTime: time.Since(start).Milliseconds(),
	}
}

func success(reqType, reqID, message string, start time.Time) *auctionapi.Response {
	return &auctionapi.Response{
		Type:           reqType + "_response",
		RequestID:      reqID,
		Success:        true,
		Message:        message,
		ProcessingTime: time.Since(start).Milliseconds(),
	}
}

func decodeFailure(reqType string, start time.Time, err error) *auctionapi.Response {
	return failure(reqType, "", start, fmt.Errorf("failed to decode request: %w", err))
}

func (s *AuctionServer) handleCreateAuction(payload []byte, start time.Time) *auctionapi.Response {
	var req auctionapi.CreateAuctionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return decodeFailure(auctionapi.TypeCreateAuction, start, err)
	}
	if err := req.Validate(); err != nil {
		return failure(auctionapi.TypeCreateAuction, req.RequestID, start, err)
	}
	// Validate vetted every field; the parses below cannot fail.
	seller, _ := auctionapi.ParseAddress("seller", req.Seller)
	contract, _ := auctionapi.ParseAddress("asset_contract", req.AssetContract)
	assetID, _ := auctionapi.ParseID("asset_id", req.AssetID)
	startPrice, _ := auctionapi.ParseAmount("start_price", req.StartPrice)
	cur, _ := auctionapi.ParseCurrency(req.Currency, req.TokenAddress)

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.house.CreateAuction(seller, contract, assetID, startPrice, cur, time.Duration(req.DurationSeconds)*time.Second)
	if err != nil {
		return failure(auctionapi.TypeCreateAuction, req.RequestID, start, err)
	}
	a, err := s.house.Auction(id)
	if err != nil {
		return failure(auctionapi.TypeCreateAuction, req.RequestID, start, err)
	}

	resp := success(auctionapi.TypeCreateAuction, req.RequestID, fmt.Sprintf("auction %d open until %d", id, a.EndTimestamp), start)
	resp.AuctionID = id
	resp.Auction = auctionapi.ViewOf(a)
	return resp
}

func (s *AuctionServer) handlePlaceBid(payload []byte, start time.Time) *auctionapi.Response {
	var req auctionapi.PlaceBidRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return decodeFailure(auctionapi.TypePlaceBid, start, err)
	}
	if err := req.Validate(); err != nil {
		return failure(auctionapi.TypePlaceBid, req.RequestID, start, err)
	}
	bidder, _ := auctionapi.ParseAddress("bidder", req.Bidder)
	value, _ := auctionapi.ParseAmount("value", req.Value)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.house.PlaceBid(bidder, req.AuctionID, value); err != nil {
		return failure(auctionapi.TypePlaceBid, req.RequestID, start, err)
	}
	a, err := s.house.Auction(req.AuctionID)
	if err != nil {
		return failure(auctionapi.TypePlaceBid, req.RequestID, start, err)
	}

	resp := success(auctionapi.TypePlaceBid, req.RequestID, "bid accepted", start)
	resp.AuctionID = req.AuctionID
	resp.Auction = auctionapi.ViewOf(a)
	resp.ReceiptHash = core.BidPlacedEvent{AuctionID: req.AuctionID, Bidder: bidder, Amount: value}.ReceiptHash()
	return resp
}

func (s *AuctionServer) handlePlaceBidToken(payload []byte, start time.Time) *auctionapi.Response {
	var req auctionapi.PlaceBidTokenRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return decodeFailure(auctionapi.TypePlaceBidToken, start, err)
	}
	if err := req.Validate(); err != nil {
		return failure(auctionapi.TypePlaceBidToken, req.RequestID, start, err)
	}
	bidder, _ := auctionapi.ParseAddress("bidder", req.Bidder)
	token, _ := auctionapi.ParseAddress("token_address", req.TokenAddress)
	amount, _ := auctionapi.ParseAmount("amount", req.Amount)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.house.PlaceBidToken(bidder, req.AuctionID, amount, token); err != nil {
		return failure(auctionapi.TypePlaceBidToken, req.RequestID, start, err)
	}
	a, err := s.house.Auction(req.AuctionID)
	if err != nil {
		return failure(auctionapi.TypePlaceBidToken, req.RequestID, start, err)
	}

	resp := success(auctionapi.TypePlaceBidToken, req.RequestID, "bid accepted", start)
	resp.AuctionID = req.AuctionID
	resp.Auction = auctionapi.ViewOf(a)
	resp.ReceiptHash = core.BidPlacedEvent{AuctionID: req.AuctionID, Bidder: bidder, Amount: amount}.ReceiptHash()
	return resp
}

func (s *AuctionServer) handleEndAuction(payload []byte, start time.Time) *auctionapi.Response {
	var req auctionapi.EndAuctionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return decodeFailure(auctionapi.TypeEndAuction, start, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.house.EndAuction(req.AuctionID); err != nil {
		return failure(auctionapi.TypeEndAuction, req.RequestID, start, err)
	}
	a, err := s.house.Auction(req.AuctionID)
	if err != nil {
		return failure(auctionapi.TypeEndAuction, req.RequestID, start, err)
	}

	ev := core.AuctionEndedEvent{AuctionID: a.ID, Winner: common.Address{}, Amount: a.StartPrice}
	if a.HasBid() {
		ev.Winner = a.HighestBidder
		ev.Amount = a.HighestBid
	}

	resp := success(auctionapi.TypeEndAuction, req.RequestID, "auction settled", start)
	resp.AuctionID = req.AuctionID
	resp.Auction = auctionapi.ViewOf(a)
	resp.ReceiptHash = ev.ReceiptHash()
	return resp
}

func (s *AuctionServer) handleSetFeed(payload []byte, start time.Time) *auctionapi.Response {
	var req auctionapi.SetFeedRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return decodeFailure(auctionapi.TypeSetFeed, start, err)
	}
	if err := req.Validate(); err != nil {
		return failure(auctionapi.TypeSetFeed, req.RequestID, start, err)
	}
	caller, _ := auctionapi.ParseAddress("caller", req.Caller)
	cur, _ := auctionapi.ParseCurrency(req.Currency, req.TokenAddress)

	feed, err := ledger.NewUsdFeed(req.UsdPrice)
	if err != nil {
		return failure(auctionapi.TypeSetFeed, req.RequestID, start, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.feeds.SetFeed(caller, cur, feed); err != nil {
		return failure(auctionapi.TypeSetFeed, req.RequestID, start, err)
	}
	return success(auctionapi.TypeSetFeed, req.RequestID, fmt.Sprintf("feed bound for %s at %s USD", cur, req.UsdPrice), start)
}

func (s *AuctionServer) handleGetAuction(payload []byte, start time.Time) *auctionapi.Response {
	var req auctionapi.GetAuctionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return decodeFailure(auctionapi.TypeGetAuction, start, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.house.Auction(req.AuctionID)
	if err != nil {
		return failure(auctionapi.TypeGetAuction, req.RequestID, start, err)
	}

	resp := success(auctionapi.TypeGetAuction, req.RequestID, "", start)
	resp.AuctionID = req.AuctionID
	resp.Auction = auctionapi.ViewOf(a)
	return resp
}

func (s *AuctionServer) handleMintAsset(payload []byte, start time.Time) *auctionapi.Response {
	var req auctionapi.MintAssetRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return decodeFailure(auctionapi.TypeMintAsset, start, err)
	}
	caller, err := auctionapi.ParseAddress("caller", req.Caller)
	if err != nil {
		return failure(auctionapi.TypeMintAsset, req.RequestID, start, err)
	}
	contract, err := auctionapi.ParseAddress("asset_contract", req.AssetContract)
	if err != nil {
		return failure(auctionapi.TypeMintAsset, req.RequestID, start, err)
	}
	to, err := auctionapi.ParseAddress("to", req.To)
	if err != nil {
		return failure(auctionapi.TypeMintAsset, req.RequestID, start, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.assets.Mint(caller, contract, to)
	if err != nil {
		return failure(auctionapi.TypeMintAsset, req.RequestID, start, err)
	}

	resp := success(auctionapi.TypeMintAsset, req.RequestID, fmt.Sprintf("minted asset %s/%s to %s", contract.Hex(), id, to.Hex()), start)
	resp.AssetID = id.String()
	return resp
}

func (s *AuctionServer) handleApproveAsset(payload []byte, start time.Time) *auctionapi.Response {
	var req auctionapi.ApproveAssetRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return decodeFailure(auctionapi.TypeApproveAsset, start, err)
	}
	caller, err := auctionapi.ParseAddress("caller", req.Caller)
	if err != nil {
		return failure(auctionapi.TypeApproveAsset, req.RequestID, start, err)
	}
	contract, err := auctionapi.ParseAddress("asset_contract", req.AssetContract)
	if err != nil {
		return failure(auctionapi.TypeApproveAsset, req.RequestID, start, err)
	}
	assetID, err := auctionapi.ParseID("asset_id", req.AssetID)
	if err != nil {
		return failure(auctionapi.TypeApproveAsset, req.RequestID, start, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.assets.Approve(caller, s.houseAddr, contract, assetID); err != nil {
		return failure(auctionapi.TypeApproveAsset, req.RequestID, start, err)
	}
	return success(auctionapi.TypeApproveAsset, req.RequestID, "escrow approved", start)
}

func (s *AuctionServer) handleMintToken(payload []byte, start time.Time) *auctionapi.Response {
	var req auctionapi.MintTokenRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return decodeFailure(auctionapi.TypeMintToken, start, err)
	}
	token, err := auctionapi.ParseAddress("token_address", req.TokenAddress)
	if err != nil {
		return failure(auctionapi.TypeMintToken, req.RequestID, start, err)
	}
	to, err := auctionapi.ParseAddress("to", req.To)
	if err != nil {
		return failure(auctionapi.TypeMintToken, req.RequestID, start, err)
	}
	amount, err := auctionapi.ParseAmount("amount", req.Amount)
	if err != nil {
		return failure(auctionapi.TypeMintToken, req.RequestID, start, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens.Mint(token, to, amount)
	return success(auctionapi.TypeMintToken, req.RequestID, fmt.Sprintf("minted %s of %s to %s", amount, token.Hex(), to.Hex()), start)
}

func (s *AuctionServer) handleApproveToken(payload []byte, start time.Time) *auctionapi.Response {
	var req auctionapi.ApproveTokenRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return decodeFailure(auctionapi.TypeApproveToken, start, err)
	}
	caller, err := auctionapi.ParseAddress("caller", req.Caller)
	if err != nil {
		return failure(auctionapi.TypeApproveToken, req.RequestID, start, err)
	}
	token, err := auctionapi.ParseAddress("token_address", req.TokenAddress)
	if err != nil {
		return failure(auctionapi.TypeApproveToken, req.RequestID, start, err)
	}
	amount, err := auctionapi.ParseAmount("amount", req.Amount)
	if err != nil {
		return failure(auctionapi.TypeApproveToken, req.RequestID, start, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens.Approve(caller, token, s.houseAddr, amount)
	return success(auctionapi.TypeApproveToken, req.RequestID, "allowance granted", start)
}

func (s *AuctionServer) handleFundCoin(payload []byte, start time.Time) *auctionapi.Response {
	var req auctionapi.FundCoinRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return decodeFailure(auctionapi.TypeFundCoin, start, err)
	}
	to, err := auctionapi.ParseAddress("to", req.To)
	if err != nil {
		return failure(auctionapi.TypeFundCoin, req.RequestID, start, err)
	}
	amount, err := auctionapi.ParseAmount("amount", req.Amount)
	if err != nil {
		return failure(auctionapi.TypeFundCoin, req.RequestID, start, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.coins.Credit(to, amount)
	return success(auctionapi.TypeFundCoin, req.RequestID, fmt.Sprintf("credited %s to %s", amount, to.Hex()), start)
}
