package settle

import (
	"errors"
	"math/big"

	"bondvault/native/token"
)

var (
	errNilLedger = errors.New("settle: token ledger not configured")

	// ErrInsufficientBalance covers both the taker's input balance and an
	// underfunded escrow vault.
	ErrInsufficientBalance = errors.New("settle: insufficient balance")
)

// Settler executes one settlement leg. The mint-versus-escrow branch is
// chosen per asset at call time by querying the ledger's mint authority, so
// authority changes between offer creation and a take are honoured.
type Settler struct {
	ledger   token.Ledger
	operator [20]byte
}

// NewSettler binds the settler to a token ledger and the operator address
// that receives fees and escrowed input.
func NewSettler(ledger token.Ledger, operator [20]byte) *Settler {
	return &Settler{ledger: ledger, operator: operator}
}

// Ledger exposes the underlying token ledger.
func (s *Settler) Ledger() token.Ledger {
	if s == nil {
		return nil
	}
	return s.ledger
}

// Operator returns the configured operator address.
func (s *Settler) Operator() [20]byte {
	if s == nil {
		return [20]byte{}
	}
	return s.operator
}

// EnsurePayOut verifies the output leg can settle without mutating state:
// under escrow settlement the pre-funded vault must cover the amount.
func (s *Settler) EnsurePayOut(asset string, amount *big.Int) error {
	if s == nil || s.ledger == nil {
		return errNilLedger
	}
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if s.ledger.HeldMintAuthority(asset) {
		return nil
	}
	balance, err := s.ledger.BalanceOf(asset, token.VaultAddress(asset))
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	return nil
}

// EnsureCollect verifies the paying party covers the full input amount.
func (s *Settler) EnsureCollect(asset string, from [20]byte, amount *big.Int) error {
	if s == nil || s.ledger == nil {
		return errNilLedger
	}
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	balance, err := s.ledger.BalanceOf(asset, from)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	return nil
}

// PayOut settles the output leg: mint directly to the recipient when the
// program holds mint authority, otherwise move escrowed balance out of the
// asset's vault. The recipient receives an identical amount either way.
func (s *Settler) PayOut(asset string, to [20]byte, amount *big.Int) error {
	if s == nil || s.ledger == nil {
		return errNilLedger
	}
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if s.ledger.HeldMintAuthority(asset) {
		return s.ledger.Mint(asset, to, amount)
	}
	return s.ledger.Transfer(asset, token.VaultAddress(asset), to, amount)
}

// CollectIn settles the input leg. Under mint authority the fee portion goes
// to the operator and the remainder is burned; without authority the full
// amount, fee included, moves to the operator and nothing is burned. The
// payer parts with an identical amount either way.
func (s *Settler) CollectIn(asset string, from [20]byte, amount, fee *big.Int) error {
	if s == nil || s.ledger == nil {
		return errNilLedger
	}
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if fee == nil {
		fee = big.NewInt(0)
	}
	if s.ledger.HeldMintAuthority(asset) {
		if fee.Sign() > 0 {
			if err := s.ledger.Transfer(asset, from, s.operator, fee); err != nil {
				return err
			}
		}
		remainder := new(big.Int).Sub(amount, fee)
		return s.ledger.Burn(asset, from, remainder)
	}
	return s.ledger.Transfer(asset, from, s.operator, amount)
}
