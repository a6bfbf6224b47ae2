package core

import "fmt"

// Snapshotter receives every committed auction record for durable storage.
// A snapshot error aborts the committing operation before the in-memory
// state changes.
type Snapshotter interface {
	SnapshotAuction(a *Auction) error
}

// AuctionStore owns the full set of auction records, keyed by a strictly
// increasing id starting at 1. Ids are never reused and the sequence has no
// gaps. The store is an arena: every reference to an auction is by id.
type AuctionStore struct {
	auctions map[uint64]*Auction
	lastID   uint64
	snap     Snapshotter // optional
}

// NewAuctionStore creates an empty store.
func NewAuctionStore() *AuctionStore {
	return &AuctionStore{auctions: make(map[uint64]*Auction)}
}

// SetSnapshotter installs a write-through hook for committed records.
func (s *AuctionStore) SetSnapshotter(snap Snapshotter) {
	s.snap = snap
}

// Append allocates the next id for a, stores it and returns the id. The
// record is snapshotted before it becomes visible; a snapshot failure leaves
// the store unchanged.
func (s *AuctionStore) Append(a *Auction) (uint64, error) {
	a.ID = s.lastID + 1
	if s.snap != nil {
		if err := s.snap.SnapshotAuction(a); err != nil {
			return 0, fmt.Errorf("snapshotting auction %d: %w", a.ID, err)
		}
	}
	s.lastID = a.ID
	s.auctions[a.ID] = a
	return a.ID, nil
}

// Replace commits an updated copy of an existing record, snapshotting it
// first. On failure the previously stored record stays in place.
func (s *AuctionStore) Replace(a *Auction) error {
	if _, ok := s.auctions[a.ID]; !ok {
		return fmt.Errorf("%w: id %d", ErrNotFound, a.ID)
	}
	if s.snap != nil {
		if err := s.snap.SnapshotAuction(a); err != nil {
			return fmt.Errorf("snapshotting auction %d: %w", a.ID, err)
		}
	}
	s.auctions[a.ID] = a
	return nil
}

// Get resolves an auction by id, failing with ErrNotFound when the id was
// never allocated.
func (s *AuctionStore) Get(id uint64) (*Auction, error) {
	a, ok := s.auctions[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return a, nil
}

// Restore loads a record from durable storage without snapshotting it again,
// advancing the id sequence past it. Used only while rebuilding the arena.
func (s *AuctionStore) Restore(a *Auction) {
	s.auctions[a.ID] = a
	if a.ID > s.lastID {
		s.lastID = a.ID
	}
}

// Len returns the number of stored auctions.
func (s *AuctionStore) Len() int {
	return len(s.auctions)
}

// LastID returns the most recently allocated id (0 when empty).
func (s *AuctionStore) LastID() uint64 {
	return s.lastID
}
