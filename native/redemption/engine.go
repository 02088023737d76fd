package redemption

import (
	"errors"
	"math/big"
	"time"

	"bondvault/core/events"
	"bondvault/core/types"
	"bondvault/native/common"
	"bondvault/native/offers"
	"bondvault/native/settle"
	"bondvault/native/token"
)

var (
	errNilState   = errors.New("redemption: state not configured")
	errNilSettler = errors.New("redemption: settler not configured")

	ErrNotAuthorized        = errors.New("redemption: signer not authorized")
	ErrInvalidAmount        = errors.New("redemption: amount must be positive")
	ErrNonceMismatch        = errors.New("redemption: nonce does not match the redeemer's counter")
	ErrRequestNotFound      = errors.New("redemption: request not found")
	ErrRequestExpired       = errors.New("redemption: request expired")
	ErrInvalidRequestStatus = errors.New("redemption: request is not pending")
)

type engineState interface {
	OfferGet(input, output string) (*offers.Offer, bool, error)
	SingleOfferGet(input, output string) (*offers.SingleRedemptionOffer, bool, error)
	SingleOfferPut(*offers.SingleRedemptionOffer) error
	RequestGet(input, output string, redeemer [20]byte, nonce uint64) (*Request, bool, error)
	RequestPut(*Request) error
	RequestDelete(input, output string, redeemer [20]byte, nonce uint64) error
	NonceGet(redeemer [20]byte) (uint64, error)
	NoncePut(redeemer [20]byte, next uint64) error
}

type ledgerEvent struct {
	evt *types.Event
}

func (e ledgerEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e ledgerEvent) Event() *types.Event { return e.evt }

// Engine manages the deferred redemption lifecycle: replay-proof request
// creation with an escrow lock, cancellation with escrow return, and
// fulfilment at the live curve price.
type Engine struct {
	state   engineState
	settler *settle.Settler
	auth    common.AuthView
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine constructs a redemption engine around the supplied settler.
func NewEngine(settler *settle.Settler) *Engine {
	return &Engine{
		settler: settler,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAuth wires the authorization oracle.
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
	e.emitter.Emit(ledgerEvent{evt: evt})
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.settler == nil {
		return errNilSettler
	}
	return nil
}

// NextNonce returns the redeemer's current counter value, i.e. the nonce the
// next request must carry.
func (e *Engine) NextNonce(redeemer [20]byte) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.NonceGet(redeemer)
}

// CreateRequest escrows the redeemer's input and records a pending request.
// The signer must hold the redemption-admin role (the redeemer's intent is
// countersigned off-band); the nonce must equal the redeemer's counter, which
// then increments.
func (e *Engine) CreateRequest(signer, redeemer [20]byte, input, output string, amount *big.Int, nonce uint64, expiresAt int64) (*Request, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := common.Guard(e.auth); err != nil {
		return nil, err
	}
	if e.auth == nil || !e.auth.IsRedemptionAdmin(signer) {
		return nil, ErrNotAuthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	offer, ok, err := e.state.SingleOfferGet(input, output)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, offers.ErrOfferNotFound
	}
	if offer.Closed {
		return nil, offers.ErrOfferClosed
	}
	counter, err := e.state.NonceGet(redeemer)
	if err != nil {
		return nil, err
	}
	if nonce != counter {
		return nil, ErrNonceMismatch
	}
	if err := e.settler.EnsureCollect(offer.Input, redeemer, amount); err != nil {
		return nil, err
	}

	vault := token.VaultAddress(offer.Input)
	if err := e.settler.Ledger().Transfer(offer.Input, redeemer, vault, amount); err != nil {
		return nil, err
	}
	request := &Request{
		Input:     offer.Input,
		Output:    offer.Output,
		Redeemer:  redeemer,
		Nonce:     nonce,
		Amount:    new(big.Int).Set(amount),
		ExpiresAt: expiresAt,
		CreatedAt: e.now(),
		Status:    StatusPending,
	}
	if err := e.state.RequestPut(request); err != nil {
		return nil, err
	}
	if err := e.state.NoncePut(redeemer, counter+1); err != nil {
		return nil, err
	}
	offer.Requested = new(big.Int).Add(offer.Requested, amount)
	if err := e.state.SingleOfferPut(offer); err != nil {
		return nil, err
	}
	e.emit(events.RedemptionRequested{
		Input:    offer.Input,
		Output:   offer.Output,
		Redeemer: redeemer,
		Nonce:    nonce,
		Amount:   amount,
	}.Event())
	return request.Clone(), nil
}

// CancelRequest returns the escrowed amount to the redeemer and closes the
// request record. The original redeemer, the redemption admin and the boss
// may cancel. A cancelled request is deleted, so cancelling it a second
// time reports ErrRequestNotFound; fulfilled requests stay on record and
// report ErrInvalidRequestStatus instead.
func (e *Engine) CancelRequest(signer [20]byte, input, output string, redeemer [20]byte, nonce uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := common.Guard(e.auth); err != nil {
		return err
	}
	if signer != redeemer {
		if e.auth == nil || (!e.auth.IsRedemptionAdmin(signer) && !e.auth.IsBoss(signer)) {
			return ErrNotAuthorized
		}
	}
	request, ok, err := e.state.RequestGet(input, output, redeemer, nonce)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRequestNotFound
	}
	if request.Status != StatusPending {
		return ErrInvalidRequestStatus
	}
	offer, ok, err := e.state.SingleOfferGet(request.Input, request.Output)
	if err != nil {
		return err
	}
	if !ok {
		return offers.ErrOfferNotFound
	}

	vault := token.VaultAddress(request.Input)
	if err := e.settler.Ledger().Transfer(request.Input, vault, request.Redeemer, request.Amount); err != nil {
		return err
	}
	offer.Requested = new(big.Int).Sub(offer.Requested, request.Amount)
	if err := e.state.SingleOfferPut(offer); err != nil {
		return err
	}
	if err := e.state.RequestDelete(request.Input, request.Output, request.Redeemer, request.Nonce); err != nil {
		return err
	}
	e.emit(events.RedemptionCancelled{
		Input:    request.Input,
		Output:   request.Output,
		Redeemer: request.Redeemer,
		Nonce:    request.Nonce,
		Amount:   request.Amount,
	}.Event())
	return nil
}

// FulfillRequest settles a pending request at the base offer's current curve
// price. No price is captured at creation time: redeemers bear curve movement
// until fulfilment.
func (e *Engine) FulfillRequest(signer [20]byte, input, output string, redeemer [20]byte, nonce uint64) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := common.Guard(e.auth); err != nil {
		return nil, err
	}
	if e.auth == nil || !e.auth.IsRedemptionAdmin(signer) {
		return nil, ErrNotAuthorized
	}
	request, ok, err := e.state.RequestGet(input, output, redeemer, nonce)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRequestNotFound
	}
	if request.Status != StatusPending {
		return nil, ErrInvalidRequestStatus
	}
	now := e.now()
	if now > request.ExpiresAt {
		return nil, ErrRequestExpired
	}
	offer, ok, err := e.state.SingleOfferGet(request.Input, request.Output)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, offers.ErrOfferNotFound
	}
	base, ok, err := e.state.OfferGet(request.Input, request.Output)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, offers.ErrOfferNotFound
	}
	price, err := base.Curve.Price(now)
	if err != nil {
		return nil, err
	}
	ledger := e.settler.Ledger()
	inDecimals, err := ledger.Decimals(request.Input)
	if err != nil {
		return nil, err
	}
	amountOut := settle.ConvertToRedemption(request.Amount, price, inDecimals)
	if err := e.settler.EnsurePayOut(request.Output, amountOut); err != nil {
		return nil, err
	}

	// Both legs use the same mint/escrow branch as a direct take. The input
	// was locked into the vault at creation, so the vault is the paying
	// party; there is no fee on fulfilment.
	vault := token.VaultAddress(request.Input)
	if err := e.settler.CollectIn(request.Input, vault, request.Amount, nil); err != nil {
		return nil, err
	}
	if err := e.settler.PayOut(request.Output, request.Redeemer, amountOut); err != nil {
		return nil, err
	}
	request.Status = StatusExecuted
	if err := e.state.RequestPut(request); err != nil {
		return nil, err
	}
	offer.Requested = new(big.Int).Sub(offer.Requested, request.Amount)
	offer.Executed = new(big.Int).Add(offer.Executed, request.Amount)
	if err := e.state.SingleOfferPut(offer); err != nil {
		return nil, err
	}
	e.emit(events.RedemptionFulfilled{
		Input:     request.Input,
		Output:    request.Output,
		Redeemer:  request.Redeemer,
		Nonce:     request.Nonce,
		Amount:    request.Amount,
		AmountOut: amountOut,
	}.Event())
	return amountOut, nil
}
