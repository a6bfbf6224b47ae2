package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// CoinBook is an in-process native-coin balance book. It implements
// core.CoinVault with house as the escrow account.
type CoinBook struct {
	house    common.Address
	balances map[common.Address]*big.Int
}

// NewCoinBook creates an empty book escrowing coin under house.
func NewCoinBook(house common.Address) *CoinBook {
	return &CoinBook{
		house:    house,
		balances: make(map[common.Address]*big.Int),
	}
}

// Credit adds amount to who's balance (the faucet for local deployments).
func (b *CoinBook) Credit(who common.Address, amount *big.Int) {
	b.balances[who] = new(big.Int).Add(b.BalanceOf(who), amount)
}

// BalanceOf returns who's balance.
func (b *CoinBook) BalanceOf(who common.Address) *big.Int {
	if v, ok := b.balances[who]; ok {
		return new(big.Int).Set(v)
	}
	return big.NewInt(0)
}

// Transfer moves amount from -> to, failing on insufficient funds.
func (b *CoinBook) Transfer(from, to common.Address, amount *big.Int) error {
	have := b.BalanceOf(from)
	if have.Cmp(amount) < 0 {
		return fmt.Errorf("balance %s below transfer of %s", have, amount)
	}
	b.balances[from] = new(big.Int).Sub(have, amount)
	b.balances[to] = new(big.Int).Add(b.BalanceOf(to), amount)
	return nil
}

// DepositCoin implements core.CoinVault: coin attached to an operation moves
// from payer into escrow.
func (b *CoinBook) DepositCoin(payer common.Address, amount *big.Int) error {
	return b.Transfer(payer, b.house, amount)
}

// PayCoin implements core.CoinVault: the house pays out of escrow.
func (b *CoinBook) PayCoin(recipient common.Address, amount *big.Int) error {
	return b.Transfer(b.house, recipient, amount)
}
