package events

import (
	"math/big"
	"strconv"

	"bondvault/core/types"
)

const (
	// TypeYieldAccrued is emitted when the accrual engine mints the yield
	// spread into the reserve vault.
	TypeYieldAccrued = "cache.accrued"
	// TypeReserveBurned is emitted when the operator converts a NAV increase
	// into a supply reduction.
	TypeReserveBurned = "cache.reserve_burned"
)

type YieldAccrued struct {
	Asset        string
	Minted       *big.Int
	LowestSupply *big.Int
	AccruedAt    int64
}

func (YieldAccrued) EventType() string { return TypeYieldAccrued }

func (e YieldAccrued) Event() *types.Event {
	return &types.Event{
		Type: TypeYieldAccrued,
		Attributes: map[string]string{
			"asset":        normalizeAsset(e.Asset),
			"minted":       amountString(e.Minted),
			"lowestSupply": amountString(e.LowestSupply),
			"accruedAt":    strconv.FormatInt(e.AccruedAt, 10),
		},
	}
}

type ReserveBurned struct {
	Asset     string
	Burned    *big.Int
	TargetNav *big.Int
}

func (ReserveBurned) EventType() string { return TypeReserveBurned }

func (e ReserveBurned) Event() *types.Event {
	return &types.Event{
		Type: TypeReserveBurned,
		Attributes: map[string]string{
			"asset":     normalizeAsset(e.Asset),
			"burned":    amountString(e.Burned),
			"targetNav": amountString(e.TargetNav),
		},
	}
}
