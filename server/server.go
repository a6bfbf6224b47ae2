package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/big"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cloudx-io/nftauction/auctionapi"
	"github.com/cloudx-io/nftauction/auctionstore"
	"github.com/cloudx-io/nftauction/core"
	"github.com/cloudx-io/nftauction/ledger"
)

const defaultListenAddr = ":5000"

// defaultHouseAddr is the escrow account the ledgers credit when no
// AUCTION_HOUSE_ADDR override is given.
const defaultHouseAddr = "0x0000000000000000000000000000000000000a0c"

// AuctionServer owns the auction house and its ledgers and serves the JSON
// operation envelopes over TCP. All state-changing operations are serialized
// through a single mutex, so the core never sees concurrent transitions.
type AuctionServer struct {
	listenAddr string
	houseAddr  common.Address

	mu     sync.Mutex // platform transaction slot
	house  *core.AuctionHouse
	feeds  *core.FeedRegistry
	assets *ledger.AssetBook
	tokens *ledger.TokenBook
	coins  *ledger.CoinBook
	store  *auctionstore.Store // nil when running without durable storage
}

func NewAuctionServer(listenAddr string) *AuctionServer {
	return &AuctionServer{listenAddr: listenAddr}
}

// initState reads the environment and wires the ledgers, feed registry and
// auction house together, replaying durable state when AUCTION_DATA_DIR is
// set.
func (s *AuctionServer) initState() error {
	configurator, err := getRequiredEnvAddress("AUCTION_CONFIGURATOR")
	if err != nil {
		return fmt.Errorf("failed to get configurator config: %w", err)
	}

	houseHex := os.Getenv("AUCTION_HOUSE_ADDR")
	if houseHex == "" {
		houseHex = defaultHouseAddr
	}
	if !common.IsHexAddress(houseHex) {
		return fmt.Errorf("invalid AUCTION_HOUSE_ADDR: %q is not a hex address", houseHex)
	}

	return s.setupState(configurator, common.HexToAddress(houseHex), os.Getenv("AUCTION_DATA_DIR"))
}

func (s *AuctionServer) setupState(configurator, houseAddr common.Address, dataDir string) error {
	s.houseAddr = houseAddr
	s.assets = ledger.NewAssetBook(houseAddr)
	s.tokens = ledger.NewTokenBook(houseAddr)
	s.coins = ledger.NewCoinBook(houseAddr)
	s.feeds = core.NewFeedRegistry(configurator)
	arena := core.NewAuctionStore()

	if dataDir != "" {
		store, err := auctionstore.Open(dataDir)
		if err != nil {
			return fmt.Errorf("failed to open auction store: %w", err)
		}
		if err := store.LoadAuctions(arena); err != nil {
			_ = store.Close()
			return fmt.Errorf("failed to replay auctions: %w", err)
		}
		err = store.LoadFeeds(func(cur core.Currency, answer *big.Int, decimals uint8) {
			s.feeds.RestoreFeed(cur, ledger.NewStaticFeed(answer, decimals))
		})
		if err != nil {
			_ = store.Close()
			return fmt.Errorf("failed to replay feed bindings: %w", err)
		}
		arena.SetSnapshotter(store)
		s.feeds.SetNotifier(store)
		s.store = store
		log.Printf("INFO: Restored %d auctions (last id %d) from %s", arena.Len(), arena.LastID(), dataDir)
	} else {
		log.Printf("INFO: AUCTION_DATA_DIR not set, running without durable storage")
	}

	s.house = core.NewAuctionHouse(arena, s.feeds, s.assets, s.tokens, s.coins, logSink{})
	log.Printf("INFO: Auction house initialized (escrow account %s)", houseAddr.Hex())
	return nil
}

func (s *AuctionServer) Start() error {
	if err := s.initState(); err != nil {
		return fmt.Errorf("failed to initialize auction state: %w", err)
	}
	if s.store != nil {
		defer func() {
			if err := s.store.Close(); err != nil {
				log.Printf("ERROR: Failed to close auction store: %v", err)
			}
		}()
	}

	listener, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Printf("ERROR: Failed to close listener: %v", err)
		}
	}()

	log.Printf("INFO: Auction server listening on %s", listener.Addr())

	maxWorkers, err := getRequiredEnvInt("AUCTION_MAX_WORKERS")
	if err != nil {
		return fmt.Errorf("failed to get max workers config: %w", err)
	}
	semaphore := make(chan struct{}, maxWorkers)

	log.Printf("INFO: Worker pool initialized with %d max concurrent workers", maxWorkers)

	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Printf("ERROR: Failed to accept connection: %v", err)
			continue
		}

		// Acquire worker slot - immediate rejection if pool full
		select {
		case semaphore <- struct{}{}:
			go func(c net.Conn) {
				defer func() { <-semaphore }() // Release worker slot
				s.handleConnection(c)
			}(conn)
		default:
			log.Printf("INFO: No workers available, rejecting connection (pool full)")
			if err := conn.Close(); err != nil {
				log.Printf("ERROR: Failed to close rejected connection: %v", err)
			}
		}
	}
}

func (s *AuctionServer) handleConnection(conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: Panic recovered in handleConnection: %v", r)
		}
		if err := conn.Close(); err != nil {
			log.Printf("ERROR: Failed to close connection: %v", err)
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))

	var buf bytes.Buffer
	_, err := io.Copy(&buf, conn)
	if err != nil {
		log.Printf("ERROR: Failed to read request: %v", err)
		return
	}

	var baseReq auctionapi.BaseRequest
	if err := json.Unmarshal(buf.Bytes(), &baseReq); err != nil {
		log.Printf("ERROR: Failed to decode base request: %v", err)
		return
	}

	log.Printf("INFO: Received request type: %s", baseReq.Type)

	response := s.dispatch(baseReq.Type, buf.Bytes())

	encoder := json.NewEncoder(conn)
	if err := encoder.Encode(response); err != nil {
		log.Printf("ERROR: Failed to encode response: %v", err)
	} else {
		log.Printf("INFO: Successfully sent response for %s", baseReq.Type)
	}
}

// Helper function for required environment variable parsing
func getRequiredEnvInt(key string) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return 0, fmt.Errorf("required environment variable %s is not set", key)
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %s (must be a valid integer)", key, value)
	}

	log.Printf("INFO: Using %s=%d from environment", key, intValue)
	return intValue, nil
}

func getRequiredEnvAddress(key string) (common.Address, error) {
	value := os.Getenv(key)
	if value == "" {
		return common.Address{}, fmt.Errorf("required environment variable %s is not set", key)
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid value for %s: %s (must be a hex address)", key, value)
	}

	log.Printf("INFO: Using %s=%s from environment", key, value)
	return common.HexToAddress(value), nil
}

func main() {
	listenAddr := os.Getenv("AUCTION_LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = defaultListenAddr
	}
	server := NewAuctionServer(listenAddr)
	log.Fatal(server.Start())
}
