package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type holdKey struct {
	token  common.Address
	holder common.Address
}

type allowKey struct {
	token   common.Address
	owner   common.Address
	spender common.Address
}

// TokenBook is an in-process fungible-token ledger covering any number of
// token contracts, with ERC-20 balance and allowance semantics. It
// implements core.TokenVault with house as the escrow account.
type TokenBook struct {
	house      common.Address
	balances   map[holdKey]*big.Int
	allowances map[allowKey]*big.Int
}

// NewTokenBook creates an empty ledger escrowing funds under house.
func NewTokenBook(house common.Address) *TokenBook {
	return &TokenBook{
		house:      house,
		balances:   make(map[holdKey]*big.Int),
		allowances: make(map[allowKey]*big.Int),
	}
}

// Mint credits amount of token to to.
func (b *TokenBook) Mint(token, to common.Address, amount *big.Int) {
	k := holdKey{token, to}
	b.balances[k] = new(big.Int).Add(b.balanceOf(k), amount)
}

// BalanceOf returns holder's balance of token.
func (b *TokenBook) BalanceOf(token, holder common.Address) *big.Int {
	return new(big.Int).Set(b.balanceOf(holdKey{token, holder}))
}

// Approve grants spender the right to move up to amount of caller's token.
func (b *TokenBook) Approve(caller, token, spender common.Address, amount *big.Int) {
	b.allowances[allowKey{token, caller, spender}] = new(big.Int).Set(amount)
}

// Allowance returns how much of owner's token spender may still move.
func (b *TokenBook) Allowance(token, owner, spender common.Address) *big.Int {
	if a, ok := b.allowances[allowKey{token, owner, spender}]; ok {
		return new(big.Int).Set(a)
	}
	return big.NewInt(0)
}

// Transfer moves amount of caller's token to to.
func (b *TokenBook) Transfer(caller, token, to common.Address, amount *big.Int) error {
	return b.move(token, caller, to, amount)
}

// TransferFrom moves amount of token from -> to on caller's allowance.
func (b *TokenBook) TransferFrom(caller, token, from, to common.Address, amount *big.Int) error {
	ak := allowKey{token, from, caller}
	allowed, ok := b.allowances[ak]
	if !ok || allowed.Cmp(amount) < 0 {
		return fmt.Errorf("allowance %s below transfer of %s", b.Allowance(token, from, caller), amount)
	}
	if err := b.move(token, from, to, amount); err != nil {
		return err
	}
	b.allowances[ak] = new(big.Int).Sub(allowed, amount)
	return nil
}

// PullTokens implements core.TokenVault: the house draws payer's funds into
// escrow against payer's allowance.
func (b *TokenBook) PullTokens(token, payer common.Address, amount *big.Int) error {
	return b.TransferFrom(b.house, token, payer, b.house, amount)
}

// PushTokens implements core.TokenVault: the house pays out of escrow.
func (b *TokenBook) PushTokens(token, recipient common.Address, amount *big.Int) error {
	return b.move(token, b.house, recipient, amount)
}

func (b *TokenBook) balanceOf(k holdKey) *big.Int {
	if v, ok := b.balances[k]; ok {
		return v
	}
	return big.NewInt(0)
}

func (b *TokenBook) move(token, from, to common.Address, amount *big.Int) error {
	fk := holdKey{token, from}
	have := b.balanceOf(fk)
	if have.Cmp(amount) < 0 {
		return fmt.Errorf("balance %s below transfer of %s", have, amount)
	}
	b.balances[fk] = new(big.Int).Sub(have, amount)
	tk := holdKey{token, to}
	b.balances[tk] = new(big.Int).Add(b.balanceOf(tk), amount)
	return nil
}
