// Package auctionstore persists committed auction records and price-feed
// bindings in an embedded badger database, encoded as CBOR. The core's
// in-memory arena writes through here and is rebuilt from here at startup.
package auctionstore

import (
	"encoding/binary"
	"fmt"
	"log"
	"math/big"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fxamacker/cbor/v2"

	"github.com/cloudx-io/nftauction/core"
)

var (
	auctionPrefix = []byte("a/")
	feedPrefix    = []byte("f/")
)

// Store is a durable snapshot store. It implements core.Snapshotter and
// core.FeedNotifier.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the database at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening auction store at %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// auctionRecord is the CBOR shape of a core.Auction. Addresses and big
// integers are stored as their canonical byte forms.
type auctionRecord struct {
	ID              uint64 `cbor:"id"`
	Seller          []byte `cbor:"seller"`
	AssetContract   []byte `cbor:"asset_contract"`
	AssetID         []byte `cbor:"asset_id"`
	StartPrice      []byte `cbor:"start_price"`
	StartKind       uint8  `cbor:"start_kind"`
	StartToken      []byte `cbor:"start_token,omitempty"`
	EndTimestamp    int64  `cbor:"end_timestamp"`
	HighestBidder   []byte `cbor:"highest_bidder,omitempty"`
	HighestBid      []byte `cbor:"highest_bid"`
	BidKind         uint8  `cbor:"bid_kind"`
	BidToken        []byte `cbor:"bid_token,omitempty"`
	HighestBidInUsd []byte `cbor:"highest_bid_usd"`
	Ended           bool   `cbor:"ended"`
}

// feedRecord is the CBOR shape of a feed binding, captured by sampling the
// feed at binding time so local deployments can rebind static feeds on
// restart.
type feedRecord struct {
	Kind     uint8  `cbor:"kind"`
	Token    []byte `cbor:"token,omitempty"`
	Answer   []byte `cbor:"answer"`
	Decimals uint8  `cbor:"decimals"`
}

func auctionKey(id uint64) []byte {
	key := make([]byte, len(auctionPrefix)+8)
	copy(key, auctionPrefix)
	binary.BigEndian.PutUint64(key[len(auctionPrefix):], id)
	return key
}

func feedKey(cur core.Currency) []byte {
	return append(append([]byte{}, feedPrefix...), cur.String()...)
}

func encodeCurrency(cur core.Currency) (uint8, []byte) {
	if cur.IsNative() {
		return uint8(core.CurrencyNative), nil
	}
	return uint8(core.CurrencyToken), cur.Token.Bytes()
}

func decodeCurrency(kind uint8, token []byte) core.Currency {
	if core.CurrencyKind(kind) == core.CurrencyNative {
		return core.NativeCurrency()
	}
	return core.TokenCurrency(common.BytesToAddress(token))
}

func toRecord(a *core.Auction) auctionRecord {
	startKind, startToken := encodeCurrency(a.StartCurrency)
	bidKind, bidToken := encodeCurrency(a.HighestBidCurrency)
	return auctionRecord{
		ID:              a.ID,
		Seller:          a.Seller.Bytes(),
		AssetContract:   a.AssetContract.Bytes(),
		AssetID:         a.AssetID.Bytes(),
		StartPrice:      a.StartPrice.Bytes(),
		StartKind:       startKind,
		StartToken:      startToken,
		EndTimestamp:    a.EndTimestamp,
		HighestBidder:   a.HighestBidder.Bytes(),
		HighestBid:      a.HighestBid.Bytes(),
		BidKind:         bidKind,
		BidToken:        bidToken,
		HighestBidInUsd: a.HighestBidInUsd.Bytes(),
		Ended:           a.Ended,
	}
}

func fromRecord(r auctionRecord) *core.Auction {
	return &core.Auction{
		ID:                 r.ID,
		Seller:             common.BytesToAddress(r.Seller),
		AssetContract:      common.BytesToAddress(r.AssetContract),
		AssetID:            new(big.Int).SetBytes(r.AssetID),
		StartPrice:         new(big.Int).SetBytes(r.StartPrice),
		StartCurrency:      decodeCurrency(r.StartKind, r.StartToken),
		EndTimestamp:       r.EndTimestamp,
		HighestBidder:      common.BytesToAddress(r.HighestBidder),
		HighestBid:         new(big.Int).SetBytes(r.HighestBid),
		HighestBidCurrency: decodeCurrency(r.BidKind, r.BidToken),
		HighestBidInUsd:    new(big.Int).SetBytes(r.HighestBidInUsd),
		Ended:              r.Ended,
	}
}

// SnapshotAuction implements core.Snapshotter: it durably writes the record
// before the in-memory commit becomes visible.
func (s *Store) SnapshotAuction(a *core.Auction) error {
	data, err := cbor.Marshal(toRecord(a))
	if err != nil {
		return fmt.Errorf("encoding auction %d: %w", a.ID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(auctionKey(a.ID), data)
	})
	if err != nil {
		return fmt.Errorf("writing auction %d: %w", a.ID, err)
	}
	return nil
}

// FeedBound implements core.FeedNotifier. The binding is persisted by value
// (sampled answer and precision); a feed that cannot be read is logged and
// skipped rather than failing the configurator's operation.
func (s *Store) FeedBound(cur core.Currency, feed core.PriceFeed) {
	answer, err := feed.LatestAnswer()
	if err != nil {
		log.Printf("ERROR: Sampling feed for %s: %v", cur, err)
		return
	}
	kind, token := encodeCurrency(cur)
	data, err := cbor.Marshal(feedRecord{
		Kind:     kind,
		Token:    token,
		Answer:   answer.Bytes(),
		Decimals: feed.Decimals(),
	})
	if err != nil {
		log.Printf("ERROR: Encoding feed binding for %s: %v", cur, err)
		return
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(feedKey(cur), data)
	})
	if err != nil {
		log.Printf("ERROR: Writing feed binding for %s: %v", cur, err)
	}
}

// LoadAuctions replays every persisted auction into the arena, in id order,
// and advances its id sequence.
func (s *Store) LoadAuctions(arena *core.AuctionStore) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(auctionPrefix); it.ValidForPrefix(auctionPrefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var r auctionRecord
				if err := cbor.Unmarshal(val, &r); err != nil {
					return fmt.Errorf("decoding auction record: %w", err)
				}
				arena.Restore(fromRecord(r))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadFeeds hands every persisted feed binding to fn as its sampled answer
// and precision, for the caller to rebind.
func (s *Store) LoadFeeds(fn func(cur core.Currency, answer *big.Int, decimals uint8)) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(feedPrefix); it.ValidForPrefix(feedPrefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var r feedRecord
				if err := cbor.Unmarshal(val, &r); err != nil {
					return fmt.Errorf("decoding feed record: %w", err)
				}
				fn(decodeCurrency(r.Kind, r.Token), new(big.Int).SetBytes(r.Answer), r.Decimals)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

var _ core.Snapshotter = (*Store)(nil)
var _ core.FeedNotifier = (*Store)(nil)
