package token

import (
	"errors"
	"math/big"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrUnknownAsset         = errors.New("token: unknown asset")
	ErrAssetExists          = errors.New("token: asset already registered")
	ErrInsufficientBalance  = errors.New("token: insufficient balance")
	ErrMintAuthorityNotHeld = errors.New("token: mint authority not held")
	ErrInvalidAmount        = errors.New("token: amount must be non-negative")
)

// Ledger is the capability the settlement, redemption and accrual engines use
// to move value. Implementations must apply each call atomically.
type Ledger interface {
	Transfer(asset string, from, to [20]byte, amount *big.Int) error
	Mint(asset string, to [20]byte, amount *big.Int) error
	Burn(asset string, from [20]byte, amount *big.Int) error
	// HeldMintAuthority reports whether the program may mint and burn the
	// asset directly. It is queried at settlement time: authority can change
	// between offer creation and a take.
	HeldMintAuthority(asset string) bool
	Decimals(asset string) (uint8, error)
	TotalSupply(asset string) (*big.Int, error)
	BalanceOf(asset string, addr [20]byte) (*big.Int, error)
}

// Asset describes one registered token.
type Asset struct {
	Symbol        string
	Decimals      uint8
	MintAuthority bool
	TotalSupply   *big.Int
}

// Clone returns a deep copy of the asset record.
func (a *Asset) Clone() *Asset {
	if a == nil {
		return nil
	}
	clone := *a
	if a.TotalSupply != nil {
		clone.TotalSupply = new(big.Int).Set(a.TotalSupply)
	} else {
		clone.TotalSupply = big.NewInt(0)
	}
	return &clone
}

// NormalizeAsset canonicalises an asset symbol to trimmed upper case.
func NormalizeAsset(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

var (
	vaultSeed   = []byte("bondvault/vault/")
	reserveSeed = []byte("bondvault/reserve/")
)

// VaultAddress derives the deterministic escrow vault address for an asset.
func VaultAddress(asset string) [20]byte {
	return deriveAddress(vaultSeed, asset)
}

// ReserveAddress derives the deterministic reserve vault address used by the
// yield accrual engine for an asset.
func ReserveAddress(asset string) [20]byte {
	return deriveAddress(reserveSeed, asset)
}

func deriveAddress(seed []byte, asset string) [20]byte {
	hash := ethcrypto.Keccak256(seed, []byte(NormalizeAsset(asset)))
	var addr [20]byte
	copy(addr[:], hash[12:])
	return addr
}
