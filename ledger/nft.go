// Package ledger provides in-process implementations of the auction core's
// external collaborators: an ERC-721-style asset registry, an ERC-20-style
// token book, a native-coin book and fixed-answer price feeds. The server
// binary runs against them for local deployments, and tests use them as
// deterministic stand-ins for the real contracts.
package ledger

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type assetKey struct {
	contract common.Address
	id       string
}

func keyFor(contract common.Address, id *big.Int) assetKey {
	return assetKey{contract: contract, id: id.String()}
}

// AssetBook is an in-process non-fungible asset registry covering any number
// of asset contracts, with ERC-721 ownership and approval guards. It
// implements core.AssetCustody with house as the escrow account.
type AssetBook struct {
	house    common.Address
	minters  map[common.Address]common.Address // contract -> authorized minter
	owners   map[assetKey]common.Address
	approved map[assetKey]common.Address
	balances map[common.Address]map[common.Address]int // contract -> holder -> count
	nextID   map[common.Address]uint64
}

// NewAssetBook creates an empty registry escrowing assets under house.
func NewAssetBook(house common.Address) *AssetBook {
	return &AssetBook{
		house:    house,
		minters:  make(map[common.Address]common.Address),
		owners:   make(map[assetKey]common.Address),
		approved: make(map[assetKey]common.Address),
		balances: make(map[common.Address]map[common.Address]int),
		nextID:   make(map[common.Address]uint64),
	}
}

// SetMinter restricts minting for contract to minter. Without a minter set,
// anyone may mint on that contract.
func (b *AssetBook) SetMinter(contract, minter common.Address) {
	b.minters[contract] = minter
}

// Mint creates the next asset on contract owned by to, returning its id.
func (b *AssetBook) Mint(caller, contract, to common.Address) (*big.Int, error) {
	if minter, ok := b.minters[contract]; ok && caller != minter {
		return nil, fmt.Errorf("%s may not mint on %s", caller.Hex(), contract.Hex())
	}
	id := new(big.Int).SetUint64(b.nextID[contract])
	b.nextID[contract]++
	b.owners[keyFor(contract, id)] = to
	b.credit(contract, to, 1)
	return id, nil
}

// OwnerOf returns the holder of (contract, id).
func (b *AssetBook) OwnerOf(contract common.Address, id *big.Int) (common.Address, error) {
	owner, ok := b.owners[keyFor(contract, id)]
	if !ok {
		return common.Address{}, fmt.Errorf("asset %s/%s does not exist", contract.Hex(), id)
	}
	return owner, nil
}

// BalanceOf returns how many assets of contract holder owns.
func (b *AssetBook) BalanceOf(contract, holder common.Address) int {
	return b.balances[contract][holder]
}

// Approve lets spender move (contract, id). Only the owner may approve.
func (b *AssetBook) Approve(caller, spender, contract common.Address, id *big.Int) error {
	k := keyFor(contract, id)
	owner, ok := b.owners[k]
	if !ok {
		return fmt.Errorf("asset %s/%s does not exist", contract.Hex(), id)
	}
	if caller != owner {
		return fmt.Errorf("%s is not the owner of %s/%s", caller.Hex(), contract.Hex(), id)
	}
	b.approved[k] = spender
	return nil
}

// TransferFrom moves (contract, id) from -> to on caller's authority: caller
// must be the owner or the approved spender.
func (b *AssetBook) TransferFrom(caller, from, to, contract common.Address, id *big.Int) error {
	k := keyFor(contract, id)
	owner, ok := b.owners[k]
	if !ok {
		return fmt.Errorf("asset %s/%s does not exist", contract.Hex(), id)
	}
	if owner != from {
		return fmt.Errorf("%s does not own %s/%s", from.Hex(), contract.Hex(), id)
	}
	if caller != owner && b.approved[k] != caller {
		return errors.New("caller neither owner nor approved")
	}
	delete(b.approved, k) // transfer consumes the approval
	b.owners[k] = to
	b.credit(contract, from, -1)
	b.credit(contract, to, 1)
	return nil
}

// EscrowAsset implements core.AssetCustody: the house pulls the asset from
// owner, requiring the owner's prior approval.
func (b *AssetBook) EscrowAsset(owner, contract common.Address, id *big.Int) error {
	return b.TransferFrom(b.house, owner, b.house, contract, id)
}

// ReleaseAsset implements core.AssetCustody: the house hands an escrowed
// asset to recipient.
func (b *AssetBook) ReleaseAsset(recipient, contract common.Address, id *big.Int) error {
	return b.TransferFrom(b.house, b.house, recipient, contract, id)
}

func (b *AssetBook) credit(contract, holder common.Address, delta int) {
	m, ok := b.balances[contract]
	if !ok {
		m = make(map[common.Address]int)
		b.balances[contract] = m
	}
	m[holder] += delta
}
