package core

import (
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Deterministic stand-ins for the external collaborators, so the state
// machine is tested without any live feed, token contract or custody
// contract.

var (
	admin     = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	seller    = common.HexToAddress("0x00000000000000000000000000000000000005e1")
	bidder1   = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	bidder2   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	nftRef    = common.HexToAddress("0x00000000000000000000000000000000000000fe")
	tokenA    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	tokenB    = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	houseAddr = common.HexToAddress("0x0000000000000000000000000000000000000a0c")
)

// amt parses a human amount ("1.1") into 18-decimal base units.
func amt(s string) *big.Int {
	return decimal.RequireFromString(s).Shift(18).BigInt()
}

// usd parses a human USD value into the normalized 18-decimal form.
func usd(t *testing.T, s string) *big.Int {
	t.Helper()
	v, err := ParseUsd(s)
	if err != nil {
		t.Fatalf("parsing usd %q: %v", s, err)
	}
	return v
}

// fixedFeed answers a constant price with Chainlink-style 8 decimals.
type fixedFeed struct {
	answer *big.Int
	err    error
}

// usdFeed builds a feed answering price USD per unit at 8 decimals.
func usdFeed(price string) *fixedFeed {
	return &fixedFeed{answer: decimal.RequireFromString(price).Shift(8).BigInt()}
}

func (f *fixedFeed) LatestAnswer() (*big.Int, error) {
	if f.err != nil {
		return nil, f.err
	}
	return new(big.Int).Set(f.answer), nil
}

func (f *fixedFeed) Decimals() uint8 { return 8 }

// testClock is a settable time source.
type testClock struct {
	t time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Unix(1_700_000_000, 0)}
}

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// testCustody tracks asset ownership and house approvals.
type testCustody struct {
	owners      map[string]common.Address
	approved    map[string]bool // owner approved the house for this asset
	failEscrow  error
	failRelease error
}

func newTestCustody() *testCustody {
	return &testCustody{
		owners:   make(map[string]common.Address),
		approved: make(map[string]bool),
	}
}

func assetKey(contract common.Address, id *big.Int) string {
	return contract.Hex() + "/" + id.String()
}

func (c *testCustody) seed(owner, contract common.Address, id *big.Int) {
	c.owners[assetKey(contract, id)] = owner
	c.approved[assetKey(contract, id)] = true
}

func (c *testCustody) ownerOf(contract common.Address, id *big.Int) common.Address {
	return c.owners[assetKey(contract, id)]
}

func (c *testCustody) EscrowAsset(owner, contract common.Address, id *big.Int) error {
	if c.failEscrow != nil {
		return c.failEscrow
	}
	k := assetKey(contract, id)
	if c.owners[k] != owner {
		return fmt.Errorf("%s does not own asset %s", owner.Hex(), k)
	}
	if !c.approved[k] {
		return errors.New("house not approved for asset")
	}
	c.owners[k] = houseAddr
	c.approved[k] = false
	return nil
}

func (c *testCustody) ReleaseAsset(recipient, contract common.Address, id *big.Int) error {
	if c.failRelease != nil {
		return c.failRelease
	}
	k := assetKey(contract, id)
	if c.owners[k] != houseAddr {
		return errors.New("asset not in house custody")
	}
	c.owners[k] = recipient
	return nil
}

// testBank is a combined coin and token ledger with house escrow.
type testBank struct {
	coins      map[common.Address]*big.Int
	tokens     map[string]*big.Int // token/holder
	failPull   error
	failPayout error
}

func newTestBank() *testBank {
	return &testBank{
		coins:  make(map[common.Address]*big.Int),
		tokens: make(map[string]*big.Int),
	}
}

func holdKey(token, holder common.Address) string {
	return token.Hex() + "/" + holder.Hex()
}

func (b *testBank) fundCoin(who common.Address, amount *big.Int) {
	b.coins[who] = new(big.Int).Set(amount)
}

func (b *testBank) fundToken(token, who common.Address, amount *big.Int) {
	b.tokens[holdKey(token, who)] = new(big.Int).Set(amount)
}

func (b *testBank) coinBalance(who common.Address) *big.Int {
	if v, ok := b.coins[who]; ok {
		return v
	}
	return big.NewInt(0)
}

func (b *testBank) tokenBalance(token, who common.Address) *big.Int {
	if v, ok := b.tokens[holdKey(token, who)]; ok {
		return v
	}
	return big.NewInt(0)
}

func move(balances map[string]*big.Int, from, to string, amount *big.Int) error {
	have, ok := balances[from]
	if !ok || have.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient balance: have %v, need %s", have, amount)
	}
	balances[from] = new(big.Int).Sub(have, amount)
	cur, ok := balances[to]
	if !ok {
		cur = big.NewInt(0)
	}
	balances[to] = new(big.Int).Add(cur, amount)
	return nil
}

func (b *testBank) DepositCoin(payer common.Address, amount *big.Int) error {
	if b.failPull != nil {
		return b.failPull
	}
	return b.moveCoin(payer, houseAddr, amount)
}

func (b *testBank) PayCoin(recipient common.Address, amount *big.Int) error {
	if b.failPayout != nil {
		return b.failPayout
	}
	return b.moveCoin(houseAddr, recipient, amount)
}

func (b *testBank) moveCoin(from, to common.Address, amount *big.Int) error {
	have := b.coinBalance(from)
	if have.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient coin: have %s, need %s", have, amount)
	}
	b.coins[from] = new(big.Int).Sub(have, amount)
	b.coins[to] = new(big.Int).Add(b.coinBalance(to), amount)
	return nil
}

func (b *testBank) PullTokens(token, payer common.Address, amount *big.Int) error {
	if b.failPull != nil {
		return b.failPull
	}
	return move(b.tokens, holdKey(token, payer), holdKey(token, houseAddr), amount)
}

func (b *testBank) PushTokens(token, recipient common.Address, amount *big.Int) error {
	if b.failPayout != nil {
		return b.failPayout
	}
	return move(b.tokens, holdKey(token, houseAddr), holdKey(token, recipient), amount)
}

// fixture wires a house against the stand-ins with the price feeds from the
// reference scenario: native coin at 2000 USD, tokenA and tokenB at 1 USD.
type fixture struct {
	house   *AuctionHouse
	store   *AuctionStore
	feeds   *FeedRegistry
	custody *testCustody
	bank    *testBank
	events  *EventRecorder
	clock   *testClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   NewAuctionStore(),
		feeds:   NewFeedRegistry(admin),
		custody: newTestCustody(),
		bank:    newTestBank(),
		events:  &EventRecorder{},
		clock:   newTestClock(),
	}
	if err := f.feeds.SetFeed(admin, NativeCurrency(), usdFeed("2000")); err != nil {
		t.Fatalf("setting native feed: %v", err)
	}
	if err := f.feeds.SetFeed(admin, TokenCurrency(tokenA), usdFeed("1")); err != nil {
		t.Fatalf("setting tokenA feed: %v", err)
	}
	if err := f.feeds.SetFeed(admin, TokenCurrency(tokenB), usdFeed("1")); err != nil {
		t.Fatalf("setting tokenB feed: %v", err)
	}
	f.house = NewAuctionHouse(f.store, f.feeds, f.custody, f.bank, f.bank, f.events)
	f.house.SetClock(f.clock.now)
	return f
}

// createDefault opens a one-hour native-coin auction for asset 0 at a start
// price of 1 coin, seeded and approved for seller.
func (f *fixture) createDefault(t *testing.T) uint64 {
	t.Helper()
	assetID := big.NewInt(0)
	f.custody.seed(seller, nftRef, assetID)
	id, err := f.house.CreateAuction(seller, nftRef, assetID, amt("1"), NativeCurrency(), time.Hour)
	if err != nil {
		t.Fatalf("creating auction: %v", err)
	}
	return id
}
