package offers

import (
	"errors"
	"math/big"
	"time"

	"bondvault/core/events"
	"bondvault/core/types"
	"bondvault/native/common"
	"bondvault/native/pricing"
	"bondvault/native/token"
)

const maxFeeBps = 10_000

var (
	errNilState = errors.New("offer book: state not configured")

	ErrNotAuthorized   = errors.New("offer book: signer not authorized")
	ErrOfferExists     = errors.New("offer book: offer already exists")
	ErrOfferNotFound   = errors.New("offer book: offer not found")
	ErrOfferClosed     = errors.New("offer book: offer closed")
	ErrFeeOutOfRange   = errors.New("offer book: fee bps out of range")
	ErrSplitOutOfRange = errors.New("offer book: split ratio out of range")
	ErrInvalidWindow   = errors.New("offer book: end time must be after start time")
	ErrInvalidPrice    = errors.New("offer book: price must be positive")
	ErrInvalidAsset    = errors.New("offer book: asset symbol required")
)

type engineState interface {
	OfferGet(input, output string) (*Offer, bool, error)
	OfferPut(*Offer) error
	DualOfferGet(input, output1, output2 string) (*DualRedemptionOffer, bool, error)
	DualOfferPut(*DualRedemptionOffer) error
	SingleOfferGet(input, output string) (*SingleRedemptionOffer, bool, error)
	SingleOfferPut(*SingleRedemptionOffer) error
}

type bookEvent struct {
	evt *types.Event
}

func (e bookEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e bookEvent) Event() *types.Event { return e.evt }

// Book creates and closes offers and maintains their price curves. Every
// mutation is gated on the externally managed authorization oracle.
type Book struct {
	state   engineState
	auth    common.AuthView
	emitter events.Emitter
	nowFn   func() int64
}

// NewBook constructs an offer book with a no-op emitter.
func NewBook() *Book {
	return &Book{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the book.
func (b *Book) SetState(state engineState) { b.state = state }

// SetAuth wires the authorization oracle.
func (b *Book) SetAuth(auth common.AuthView) { b.auth = auth }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (b *Book) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		b.emitter = events.NoopEmitter{}
		return
	}
	b.emitter = emitter
}

// SetNowFunc overrides the time source, primarily for deterministic tests.
func (b *Book) SetNowFunc(now func() int64) {
	if now == nil {
		b.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	b.nowFn = now
}

func (b *Book) now() int64 { return b.nowFn() }

func (b *Book) emit(evt *types.Event) {
	if b == nil || b.emitter == nil || evt == nil {
		return
	}
	b.emitter.Emit(bookEvent{evt: evt})
}

func (b *Book) requireBoss(signer [20]byte) error {
	if b.auth == nil || !b.auth.IsBoss(signer) {
		return ErrNotAuthorized
	}
	return nil
}

// CreateOffer registers a new exchange pair owned by the boss.
func (b *Book) CreateOffer(signer [20]byte, input, output string, feeBps uint32, requiresApproval, permissionless bool) (*Offer, error) {
	if b == nil || b.state == nil {
		return nil, errNilState
	}
	if err := b.requireBoss(signer); err != nil {
		return nil, err
	}
	input = token.NormalizeAsset(input)
	output = token.NormalizeAsset(output)
	if input == "" || output == "" {
		return nil, ErrInvalidAsset
	}
	if feeBps > maxFeeBps {
		return nil, ErrFeeOutOfRange
	}
	if _, ok, err := b.state.OfferGet(input, output); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrOfferExists
	}
	offer := &Offer{
		Input:            input,
		Output:           output,
		FeeBps:           feeBps,
		RequiresApproval: requiresApproval,
		Permissionless:   permissionless,
		Curve:            &pricing.Curve{},
	}
	if err := b.state.OfferPut(offer); err != nil {
		return nil, err
	}
	b.emit(events.OfferCreated{Input: input, Output: output, FeeBps: feeBps}.Event())
	return offer.Clone(), nil
}

// CloseOffer marks the offer closed; closed offers reject new takes.
func (b *Book) CloseOffer(signer [20]byte, input, output string) error {
	if b == nil || b.state == nil {
		return errNilState
	}
	if err := b.requireBoss(signer); err != nil {
		return err
	}
	offer, ok, err := b.state.OfferGet(input, output)
	if err != nil {
		return err
	}
	if !ok {
		return ErrOfferNotFound
	}
	if offer.Closed {
		return ErrOfferClosed
	}
	offer.Closed = true
	if err := b.state.OfferPut(offer); err != nil {
		return err
	}
	b.emit(events.OfferClosed{Input: offer.Input, Output: offer.Output}.Event())
	return nil
}

// AppendVector adds a pricing segment to an offer's curve. Administrators may
// roll prices forward; curve validation and the cleanup pass live in the
// pricing package.
func (b *Book) AppendVector(signer [20]byte, input, output string, v pricing.Vector) error {
	if b == nil || b.state == nil {
		return errNilState
	}
	if b.auth == nil || !b.auth.IsAdmin(signer) {
		return ErrNotAuthorized
	}
	offer, ok, err := b.state.OfferGet(input, output)
	if err != nil {
		return err
	}
	if !ok {
		return ErrOfferNotFound
	}
	if offer.Closed {
		return ErrOfferClosed
	}
	if offer.Curve == nil {
		offer.Curve = &pricing.Curve{}
	}
	if err := offer.Curve.Append(b.now(), v); err != nil {
		return err
	}
	if err := b.state.OfferPut(offer); err != nil {
		return err
	}
	b.emit(events.VectorAppended{Input: offer.Input, Output: offer.Output, AnchorTime: v.AnchorTime}.Event())
	return nil
}

// ActivePrice returns the offer's spot price at the supplied instant.
func (b *Book) ActivePrice(input, output string, now int64) (*big.Int, error) {
	offer, err := b.loadOffer(input, output)
	if err != nil {
		return nil, err
	}
	return offer.Curve.Price(now)
}

// APY returns the compounding annual yield of the offer's active vector.
func (b *Book) APY(input, output string, now int64) (uint64, error) {
	offer, err := b.loadOffer(input, output)
	if err != nil {
		return 0, err
	}
	return offer.Curve.APY(now)
}

func (b *Book) loadOffer(input, output string) (*Offer, error) {
	if b == nil || b.state == nil {
		return nil, errNilState
	}
	offer, ok, err := b.state.OfferGet(input, output)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrOfferNotFound
	}
	return offer, nil
}

// CreateDualRedemptionOffer registers a two-output redemption with fixed leg
// prices and a basis-point split.
func (b *Book) CreateDualRedemptionOffer(signer [20]byte, def *DualRedemptionOffer) (*DualRedemptionOffer, error) {
	if b == nil || b.state == nil {
		return nil, errNilState
	}
	if err := b.requireBoss(signer); err != nil {
		return nil, err
	}
	if def == nil {
		return nil, ErrInvalidAsset
	}
	offer := def.Clone()
	offer.Input = token.NormalizeAsset(offer.Input)
	offer.Output1 = token.NormalizeAsset(offer.Output1)
	offer.Output2 = token.NormalizeAsset(offer.Output2)
	if offer.Input == "" || offer.Output1 == "" || offer.Output2 == "" {
		return nil, ErrInvalidAsset
	}
	if offer.SplitRatioBps > maxFeeBps {
		return nil, ErrSplitOutOfRange
	}
	if offer.FeeBps > maxFeeBps {
		return nil, ErrFeeOutOfRange
	}
	if offer.EndTime <= offer.StartTime {
		return nil, ErrInvalidWindow
	}
	if offer.Price1 == nil || offer.Price1.Sign() <= 0 || offer.Price2 == nil || offer.Price2.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	if _, ok, err := b.state.DualOfferGet(offer.Input, offer.Output1, offer.Output2); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrOfferExists
	}
	if err := b.state.DualOfferPut(offer); err != nil {
		return nil, err
	}
	return offer.Clone(), nil
}

// CloseDualRedemptionOffer marks the dual redemption offer closed.
func (b *Book) CloseDualRedemptionOffer(signer [20]byte, input, output1, output2 string) error {
	if b == nil || b.state == nil {
		return errNilState
	}
	if err := b.requireBoss(signer); err != nil {
		return err
	}
	offer, ok, err := b.state.DualOfferGet(input, output1, output2)
	if err != nil {
		return err
	}
	if !ok {
		return ErrOfferNotFound
	}
	if offer.Closed {
		return ErrOfferClosed
	}
	offer.Closed = true
	return b.state.DualOfferPut(offer)
}

// CreateSingleRedemptionOffer registers a one-output redemption tied to the
// base offer of the same pair.
func (b *Book) CreateSingleRedemptionOffer(signer [20]byte, input, output string, feeBps uint32, start, end int64) (*SingleRedemptionOffer, error) {
	if b == nil || b.state == nil {
		return nil, errNilState
	}
	if err := b.requireBoss(signer); err != nil {
		return nil, err
	}
	input = token.NormalizeAsset(input)
	output = token.NormalizeAsset(output)
	if input == "" || output == "" {
		return nil, ErrInvalidAsset
	}
	if feeBps > maxFeeBps {
		return nil, ErrFeeOutOfRange
	}
	if end <= start {
		return nil, ErrInvalidWindow
	}
	if _, ok, err := b.state.OfferGet(input, output); err != nil {
		return nil, err
	} else if !ok {
		// Fulfilment prices off the base offer's curve, so the pair must
		// already exist.
		return nil, ErrOfferNotFound
	}
	if _, ok, err := b.state.SingleOfferGet(input, output); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrOfferExists
	}
	offer := &SingleRedemptionOffer{
		Input:     input,
		Output:    output,
		FeeBps:    feeBps,
		StartTime: start,
		EndTime:   end,
		Requested: big.NewInt(0),
		Executed:  big.NewInt(0),
	}
	if err := b.state.SingleOfferPut(offer); err != nil {
		return nil, err
	}
	return offer.Clone(), nil
}

// CloseSingleRedemptionOffer marks the single redemption offer closed.
func (b *Book) CloseSingleRedemptionOffer(signer [20]byte, input, output string) error {
	if b == nil || b.state == nil {
		return errNilState
	}
	if err := b.requireBoss(signer); err != nil {
		return err
	}
	offer, ok, err := b.state.SingleOfferGet(input, output)
	if err != nil {
		return err
	}
	if !ok {
		return ErrOfferNotFound
	}
	if offer.Closed {
		return ErrOfferClosed
	}
	offer.Closed = true
	return b.state.SingleOfferPut(offer)
}
