package events

import (
	"math/big"

	"bondvault/core/types"
)

const (
	// TypeTakeSettled is emitted whenever a single-output take completes.
	TypeTakeSettled = "settle.take"
	// TypeDualTakeSettled is emitted whenever a dual-output redemption take
	// completes.
	TypeDualTakeSettled = "settle.dual_take"
)

type TakeSettled struct {
	Input     string
	Output    string
	Taker     [20]byte
	AmountIn  *big.Int
	Fee       *big.Int
	AmountOut *big.Int
}

func (TakeSettled) EventType() string { return TypeTakeSettled }

func (e TakeSettled) Event() *types.Event {
	return &types.Event{
		Type: TypeTakeSettled,
		Attributes: map[string]string{
			"input":     normalizeAsset(e.Input),
			"output":    normalizeAsset(e.Output),
			"taker":     addressString(e.Taker),
			"amountIn":  amountString(e.AmountIn),
			"fee":       amountString(e.Fee),
			"amountOut": amountString(e.AmountOut),
		},
	}
}

type DualTakeSettled struct {
	Input      string
	Output1    string
	Output2    string
	Taker      [20]byte
	AmountIn   *big.Int
	AmountOut1 *big.Int
	AmountOut2 *big.Int
}

func (DualTakeSettled) EventType() string { return TypeDualTakeSettled }

func (e DualTakeSettled) Event() *types.Event {
	return &types.Event{
		Type: TypeDualTakeSettled,
		Attributes: map[string]string{
			"input":      normalizeAsset(e.Input),
			"output1":    normalizeAsset(e.Output1),
			"output2":    normalizeAsset(e.Output2),
			"taker":      addressString(e.Taker),
			"amountIn":   amountString(e.AmountIn),
			"amountOut1": amountString(e.AmountOut1),
			"amountOut2": amountString(e.AmountOut2),
		},
	}
}
