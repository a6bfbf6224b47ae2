package core

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// The core never holds assets or funds itself; it directs the external
// custody and transfer collaborators below. Implementations hold custody on
// the core's behalf ("house custody"). Any failure they return aborts the
// calling operation, mapped to ErrEscrowFailed or ErrTransferFailed.

// AssetCustody mediates ownership of non-fungible assets.
type AssetCustody interface {
	// EscrowAsset moves the asset from owner into house custody. Fails if
	// owner does not hold the asset or has not approved the house to move it.
	EscrowAsset(owner common.Address, assetContract common.Address, assetID *big.Int) error

	// ReleaseAsset moves an escrowed asset from house custody to recipient.
	ReleaseAsset(recipient common.Address, assetContract common.Address, assetID *big.Int) error
}

// TokenVault mediates fungible-token balance moves.
type TokenVault interface {
	// PullTokens transfers amount of token from payer into house custody,
	// consuming the payer's prior allowance. Fails if the allowance or the
	// payer's balance is below amount.
	PullTokens(token, payer common.Address, amount *big.Int) error

	// PushTokens transfers amount of token from house custody to recipient.
	PushTokens(token, recipient common.Address, amount *big.Int) error
}

// CoinVault mediates native-coin moves.
type CoinVault interface {
	// DepositCoin moves the coin a caller attached to an operation from payer
	// into house custody. Fails if payer's balance is below amount.
	DepositCoin(payer common.Address, amount *big.Int) error

	// PayCoin moves native coin from house custody to recipient.
	PayCoin(recipient common.Address, amount *big.Int) error
}
