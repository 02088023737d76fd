package settle

import (
	"errors"
	"math/big"
	"time"

	"bondvault/core/events"
	"bondvault/core/types"
	"bondvault/native/common"
	"bondvault/native/offers"
)

const bpsDenominator = 10_000

var (
	errNilState = errors.New("settle: state not configured")

	ErrInvalidAmount   = errors.New("settle: amount must be positive")
	ErrWindowClosed    = errors.New("settle: redemption window not open")
	ErrTakerNotAllowed = errors.New("settle: taker not allowed on gated offer")
)

type engineState interface {
	OfferGet(input, output string) (*offers.Offer, bool, error)
	DualOfferGet(input, output1, output2 string) (*offers.DualRedemptionOffer, bool, error)
	SingleOfferGet(input, output string) (*offers.SingleRedemptionOffer, bool, error)
}

type settleEvent struct {
	evt *types.Event
}

func (e settleEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e settleEvent) Event() *types.Event { return e.evt }

// TakeResult reports the taker-visible accounting of a settled take.
type TakeResult struct {
	Fee       *big.Int
	AmountOut *big.Int
}

// DualTakeResult reports both legs of a dual redemption take.
type DualTakeResult struct {
	Fee        *big.Int
	AmountIn1  *big.Int
	AmountIn2  *big.Int
	AmountOut1 *big.Int
	AmountOut2 *big.Int
}

// Engine executes exchanges against the currently active price. All entry
// points check the kill switch before any other validation and commit no
// state change until every precondition has passed.
type Engine struct {
	state   engineState
	settler *Settler
	auth    common.AuthView
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine constructs a settlement engine around the supplied settler.
func NewEngine(settler *Settler) *Engine {
	return &Engine{
		settler: settler,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the offer lookup backend.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAuth wires the authorization oracle used for the kill switch and gated
// offer checks.
func (e *Engine) SetAuth(auth common.AuthView) { e.auth = auth }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source for deterministic tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() int64 { return e.nowFn() }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(settleEvent{evt: evt})
}

// Take executes a single-output exchange: fee off the top, the remainder
// converted at the offer's active price.
func (e *Engine) Take(taker [20]byte, input, output string, amountIn *big.Int, approval *Approval) (*TakeResult, error) {
	if e == nil || e.state == nil || e.settler == nil {
		return nil, errNilState
	}
	if err := common.Guard(e.auth); err != nil {
		return nil, err
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	offer, ok, err := e.state.OfferGet(input, output)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, offers.ErrOfferNotFound
	}
	if offer.Closed {
		return nil, offers.ErrOfferClosed
	}
	now := e.now()
	if err := e.gate(offer, taker, amountIn, approval, now); err != nil {
		return nil, err
	}

	fee := feeOf(amountIn, offer.FeeBps)
	netIn := new(big.Int).Sub(amountIn, fee)
	price, err := offer.Curve.Price(now)
	if err != nil {
		return nil, err
	}
	outDecimals, err := e.settler.Ledger().Decimals(offer.Output)
	if err != nil {
		return nil, err
	}
	amountOut := convertToOutput(netIn, price, outDecimals)

	if err := e.settler.EnsureCollect(offer.Input, taker, amountIn); err != nil {
		return nil, err
	}
	if err := e.settler.EnsurePayOut(offer.Output, amountOut); err != nil {
		return nil, err
	}
	if err := e.settler.CollectIn(offer.Input, taker, amountIn, fee); err != nil {
		return nil, err
	}
	if err := e.settler.PayOut(offer.Output, taker, amountOut); err != nil {
		return nil, err
	}
	e.emit(events.TakeSettled{
		Input:     offer.Input,
		Output:    offer.Output,
		Taker:     taker,
		AmountIn:  amountIn,
		Fee:       fee,
		AmountOut: amountOut,
	}.Event())
	return &TakeResult{Fee: fee, AmountOut: amountOut}, nil
}

// TakeDual executes a two-output redemption take. The net input is split by
// the offer's basis-point ratio; the second leg receives the exact remainder
// so the legs always sum to the net input.
func (e *Engine) TakeDual(taker [20]byte, input, output1, output2 string, amountIn *big.Int) (*DualTakeResult, error) {
	if e == nil || e.state == nil || e.settler == nil {
		return nil, errNilState
	}
	if err := common.Guard(e.auth); err != nil {
		return nil, err
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	offer, ok, err := e.state.DualOfferGet(input, output1, output2)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, offers.ErrOfferNotFound
	}
	if offer.Closed {
		return nil, offers.ErrOfferClosed
	}
	now := e.now()
	if now < offer.StartTime || now > offer.EndTime {
		return nil, ErrWindowClosed
	}

	fee := feeOf(amountIn, offer.FeeBps)
	netIn := new(big.Int).Sub(amountIn, fee)
	in1 := new(big.Int).Mul(netIn, big.NewInt(int64(offer.SplitRatioBps)))
	in1.Quo(in1, big.NewInt(bpsDenominator))
	in2 := new(big.Int).Sub(netIn, in1)

	ledger := e.settler.Ledger()
	dec1, err := ledger.Decimals(offer.Output1)
	if err != nil {
		return nil, err
	}
	dec2, err := ledger.Decimals(offer.Output2)
	if err != nil {
		return nil, err
	}
	out1 := convertToOutput(in1, offer.Price1, dec1)
	out2 := convertToOutput(in2, offer.Price2, dec2)

	if err := e.settler.EnsureCollect(offer.Input, taker, amountIn); err != nil {
		return nil, err
	}
	if err := e.settler.EnsurePayOut(offer.Output1, out1); err != nil {
		return nil, err
	}
	if err := e.settler.EnsurePayOut(offer.Output2, out2); err != nil {
		return nil, err
	}
	if err := e.settler.CollectIn(offer.Input, taker, amountIn, fee); err != nil {
		return nil, err
	}
	if err := e.settler.PayOut(offer.Output1, taker, out1); err != nil {
		return nil, err
	}
	if err := e.settler.PayOut(offer.Output2, taker, out2); err != nil {
		return nil, err
	}
	e.emit(events.DualTakeSettled{
		Input:      offer.Input,
		Output1:    offer.Output1,
		Output2:    offer.Output2,
		Taker:      taker,
		AmountIn:   amountIn,
		AmountOut1: out1,
		AmountOut2: out2,
	}.Event())
	return &DualTakeResult{Fee: fee, AmountIn1: in1, AmountIn2: in2, AmountOut1: out1, AmountOut2: out2}, nil
}

// TakeSingleRedemption redeems the input asset at the base offer's live
// price inside the redemption window.
func (e *Engine) TakeSingleRedemption(taker [20]byte, input, output string, amountIn *big.Int) (*TakeResult, error) {
	if e == nil || e.state == nil || e.settler == nil {
		return nil, errNilState
	}
	if err := common.Guard(e.auth); err != nil {
		return nil, err
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	redemption, ok, err := e.state.SingleOfferGet(input, output)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, offers.ErrOfferNotFound
	}
	if redemption.Closed {
		return nil, offers.ErrOfferClosed
	}
	now := e.now()
	if now < redemption.StartTime || now > redemption.EndTime {
		return nil, ErrWindowClosed
	}
	base, ok, err := e.state.OfferGet(input, output)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, offers.ErrOfferNotFound
	}

	fee := feeOf(amountIn, redemption.FeeBps)
	netIn := new(big.Int).Sub(amountIn, fee)
	price, err := base.Curve.Price(now)
	if err != nil {
		return nil, err
	}
	ledger := e.settler.Ledger()
	inDecimals, err := ledger.Decimals(redemption.Input)
	if err != nil {
		return nil, err
	}
	amountOut := ConvertToRedemption(netIn, price, inDecimals)

	if err := e.settler.EnsureCollect(redemption.Input, taker, amountIn); err != nil {
		return nil, err
	}
	if err := e.settler.EnsurePayOut(redemption.Output, amountOut); err != nil {
		return nil, err
	}
	if err := e.settler.CollectIn(redemption.Input, taker, amountIn, fee); err != nil {
		return nil, err
	}
	if err := e.settler.PayOut(redemption.Output, taker, amountOut); err != nil {
		return nil, err
	}
	e.emit(events.TakeSettled{
		Input:     redemption.Input,
		Output:    redemption.Output,
		Taker:     taker,
		AmountIn:  amountIn,
		Fee:       fee,
		AmountOut: amountOut,
	}.Event())
	return &TakeResult{Fee: fee, AmountOut: amountOut}, nil
}

// gate enforces the offer's access rules: approval-gated offers require a
// pre-verified approval bound to this take; non-permissionless offers without
// an approval gate are restricted to administrators.
func (e *Engine) gate(offer *offers.Offer, taker [20]byte, amountIn *big.Int, approval *Approval, now int64) error {
	if offer.RequiresApproval {
		return checkApproval(approval, taker, amountIn, now)
	}
	if !offer.Permissionless {
		if e.auth == nil || !e.auth.IsAdmin(taker) {
			return ErrTakerNotAllowed
		}
	}
	return nil
}

func feeOf(amount *big.Int, feeBps uint32) *big.Int {
	fee := new(big.Int).Mul(amount, big.NewInt(int64(feeBps)))
	return fee.Quo(fee, big.NewInt(bpsDenominator))
}

func convertToOutput(netIn, price *big.Int, outDecimals uint8) *big.Int {
	if netIn == nil || netIn.Sign() <= 0 || price == nil || price.Sign() <= 0 {
		return big.NewInt(0)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(outDecimals)), nil)
	out := new(big.Int).Mul(netIn, scale)
	return out.Quo(out, price)
}

// ConvertToRedemption converts an input amount back through a 1e9-scale
// price, truncating to whole output units:
//
//	out = floor(amount * price / 10^inDecimals)
func ConvertToRedemption(amount, price *big.Int, inDecimals uint8) *big.Int {
	if amount == nil || amount.Sign() <= 0 || price == nil || price.Sign() <= 0 {
		return big.NewInt(0)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(inDecimals)), nil)
	out := new(big.Int).Mul(amount, price)
	return out.Quo(out, scale)
}
