package cache

import "math/big"

// State is the per-asset accrual bookkeeping singleton. LowestSupply is the
// anti-manipulation floor: it only ever decreases after bootstrap, so
// inflating supply ahead of an accrual call can never grow the minting base.
type State struct {
	Asset           string
	Admin           [20]byte
	GrossYieldPPM   uint64
	CurrentYieldPPM uint64
	LowestSupply    *big.Int
	LastAccrualTime int64
}

// Clone returns a deep copy of the accrual state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	clone := *s
	if s.LowestSupply != nil {
		clone.LowestSupply = new(big.Int).Set(s.LowestSupply)
	}
	return &clone
}

// Bootstrapped reports whether the first accrual call has anchored the
// supply floor and the accrual clock.
func (s *State) Bootstrapped() bool {
	return s != nil && s.LastAccrualTime > 0
}
