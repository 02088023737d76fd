package token

import "math/big"

// bookState abstracts the subset of state manager functionality the balance
// book needs.
type bookState interface {
	AssetGet(symbol string) (*Asset, bool, error)
	AssetPut(asset *Asset) error
	BalanceGet(symbol string, addr [20]byte) (*big.Int, error)
	BalancePut(symbol string, addr [20]byte, amount *big.Int) error
}

// Book is the persisted implementation of the Ledger capability. Balances and
// asset records are written through to the backing state manager on every
// call.
type Book struct {
	state bookState
}

// NewBook constructs a balance book bound to the provided state backend.
func NewBook(state bookState) *Book {
	return &Book{state: state}
}

// Register creates a new asset record. Symbols are canonicalised; duplicate
// registrations fail.
func (b *Book) Register(symbol string, decimals uint8, mintAuthority bool) error {
	if b == nil || b.state == nil {
		return ErrUnknownAsset
	}
	normalized := NormalizeAsset(symbol)
	if normalized == "" {
		return ErrUnknownAsset
	}
	if _, ok, err := b.state.AssetGet(normalized); err != nil {
		return err
	} else if ok {
		return ErrAssetExists
	}
	return b.state.AssetPut(&Asset{
		Symbol:        normalized,
		Decimals:      decimals,
		MintAuthority: mintAuthority,
		TotalSupply:   big.NewInt(0),
	})
}

// SetMintAuthority flips the mint-authority flag for an asset. The settlement
// branch re-reads this flag on every take.
func (b *Book) SetMintAuthority(symbol string, held bool) error {
	asset, err := b.asset(symbol)
	if err != nil {
		return err
	}
	asset.MintAuthority = held
	return b.state.AssetPut(asset)
}

func (b *Book) asset(symbol string) (*Asset, error) {
	if b == nil || b.state == nil {
		return nil, ErrUnknownAsset
	}
	asset, ok, err := b.state.AssetGet(NormalizeAsset(symbol))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownAsset
	}
	return asset, nil
}

// Transfer moves amount between two holders.
func (b *Book) Transfer(symbol string, from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if _, err := b.asset(symbol); err != nil {
		return err
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	normalized := NormalizeAsset(symbol)
	fromBal, err := b.state.BalanceGet(normalized, from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	toBal, err := b.state.BalanceGet(normalized, to)
	if err != nil {
		return err
	}
	if err := b.state.BalancePut(normalized, from, new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	return b.state.BalancePut(normalized, to, new(big.Int).Add(toBal, amount))
}

// Mint creates amount for the recipient, growing total supply. Fails when the
// program does not hold mint authority over the asset.
func (b *Book) Mint(symbol string, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	asset, err := b.asset(symbol)
	if err != nil {
		return err
	}
	if !asset.MintAuthority {
		return ErrMintAuthorityNotHeld
	}
	if amount.Sign() == 0 {
		return nil
	}
	balance, err := b.state.BalanceGet(asset.Symbol, to)
	if err != nil {
		return err
	}
	if err := b.state.BalancePut(asset.Symbol, to, new(big.Int).Add(balance, amount)); err != nil {
		return err
	}
	asset.TotalSupply = new(big.Int).Add(asset.TotalSupply, amount)
	return b.state.AssetPut(asset)
}

// Burn destroys amount held by from, shrinking total supply. Fails when the
// program does not hold mint authority over the asset.
func (b *Book) Burn(symbol string, from [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	asset, err := b.asset(symbol)
	if err != nil {
		return err
	}
	if !asset.MintAuthority {
		return ErrMintAuthorityNotHeld
	}
	if amount.Sign() == 0 {
		return nil
	}
	balance, err := b.state.BalanceGet(asset.Symbol, from)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if err := b.state.BalancePut(asset.Symbol, from, new(big.Int).Sub(balance, amount)); err != nil {
		return err
	}
	asset.TotalSupply = new(big.Int).Sub(asset.TotalSupply, amount)
	return b.state.AssetPut(asset)
}

// HeldMintAuthority reports whether the program may mint and burn the asset.
func (b *Book) HeldMintAuthority(symbol string) bool {
	asset, err := b.asset(symbol)
	return err == nil && asset.MintAuthority
}

// Decimals returns the asset's native decimal count.
func (b *Book) Decimals(symbol string) (uint8, error) {
	asset, err := b.asset(symbol)
	if err != nil {
		return 0, err
	}
	return asset.Decimals, nil
}

// TotalSupply returns the asset's current total supply.
func (b *Book) TotalSupply(symbol string) (*big.Int, error) {
	asset, err := b.asset(symbol)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(asset.TotalSupply), nil
}

// BalanceOf returns the holder's balance.
func (b *Book) BalanceOf(symbol string, addr [20]byte) (*big.Int, error) {
	if _, err := b.asset(symbol); err != nil {
		return nil, err
	}
	return b.state.BalanceGet(NormalizeAsset(symbol), addr)
}
