package events

import (
	"math/big"
	"strconv"

	"bondvault/core/types"
)

const (
	// TypeRedemptionRequested is emitted when a deferred redemption request
	// locks funds into escrow.
	TypeRedemptionRequested = "redemption.requested"
	// TypeRedemptionCancelled is emitted when a pending request returns its
	// escrow to the redeemer.
	TypeRedemptionCancelled = "redemption.cancelled"
	// TypeRedemptionFulfilled is emitted when a pending request settles at
	// the live price.
	TypeRedemptionFulfilled = "redemption.fulfilled"
)

type RedemptionRequested struct {
	Input    string
	Output   string
	Redeemer [20]byte
	Nonce    uint64
	Amount   *big.Int
}

func (RedemptionRequested) EventType() string { return TypeRedemptionRequested }

func (e RedemptionRequested) Event() *types.Event {
	return &types.Event{
		Type:       TypeRedemptionRequested,
		Attributes: e.attributes(),
	}
}

func (e RedemptionRequested) attributes() map[string]string {
	return map[string]string{
		"input":    normalizeAsset(e.Input),
		"output":   normalizeAsset(e.Output),
		"redeemer": addressString(e.Redeemer),
		"nonce":    strconv.FormatUint(e.Nonce, 10),
		"amount":   amountString(e.Amount),
	}
}

type RedemptionCancelled struct {
	Input    string
	Output   string
	Redeemer [20]byte
	Nonce    uint64
	Amount   *big.Int
}

func (RedemptionCancelled) EventType() string { return TypeRedemptionCancelled }

func (e RedemptionCancelled) Event() *types.Event {
	return &types.Event{
		Type: TypeRedemptionCancelled,
		Attributes: map[string]string{
			"input":    normalizeAsset(e.Input),
			"output":   normalizeAsset(e.Output),
			"redeemer": addressString(e.Redeemer),
			"nonce":    strconv.FormatUint(e.Nonce, 10),
			"amount":   amountString(e.Amount),
		},
	}
}

type RedemptionFulfilled struct {
	Input     string
	Output    string
	Redeemer  [20]byte
	Nonce     uint64
	Amount    *big.Int
	AmountOut *big.Int
}

func (RedemptionFulfilled) EventType() string { return TypeRedemptionFulfilled }

func (e RedemptionFulfilled) Event() *types.Event {
	return &types.Event{
		Type: TypeRedemptionFulfilled,
		Attributes: map[string]string{
			"input":     normalizeAsset(e.Input),
			"output":    normalizeAsset(e.Output),
			"redeemer":  addressString(e.Redeemer),
			"nonce":     strconv.FormatUint(e.Nonce, 10),
			"amount":    amountString(e.Amount),
			"amountOut": amountString(e.AmountOut),
		},
	}
}
