package cache

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

var (
	errNilState  = errors.New("cache: state not configured")
	errNilLedger = errors.New("cache: token ledger not configured")

	ErrNotAuthorized            = errors.New("cache: signer not authorized")
	ErrAlreadyInitialized       = errors.New("cache: asset already initialized")
	ErrNotInitialized           = errors.New("cache: asset not initialized")
	ErrNoChange                 = errors.New("cache: yield update changes nothing")
	ErrNavMismatch              = errors.New("cache: target nav does not match the computed price")
	ErrAdjustmentExceedsReserve = errors.New("cache: adjustment exceeds reserve balance")
	ErrInvalidAmount            = errors.New("cache: amount must be positive")
	ErrNoNavSource              = errors.New("cache: nav source not configured")
)

type engineState interface {
	CacheGet(asset string) (*State, bool, error)
	CachePut(*State) error
}

// NavSource reports the currently computed price of the underlying asset,
// used to guard the burn-for-NAV operation against stale operator state.
type NavSource interface {
	Nav(asset string, now int64) (*big.Int, error)
}

type cacheEvent struct {
	evt *types.Event
}

func (e cacheEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e cacheEvent) Event() *types.Event { return e.evt }

// Engine periodically mints the yield spread into the reserve vault and
// supports the operator's burn-for-NAV-increase adjustment.
//
// Accrual is deliberately independent of the trading kill switch: pausing
// exchanges must not silently stretch the accrual period.
type Engine struct {
	state   engineState
	ledger  token.Ledger
	auth    common.AuthView
	nav     NavSource
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine constructs an accrual engine bound to the token ledger.
func NewEngine(ledger token.Ledger) *Engine {
	return &Engine{
		ledger:  ledger,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAuth wires the authorization oracle.
func (e *Engine) SetAuth(auth common.AuthView) { e.auth = auth }

// SetNavSource wires the price feed consulted by BurnForNavIncrease.
func (e *Engine) SetNavSource(nav NavSource) { e.nav = nav }

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
	e.emitter.Emit(cacheEvent{evt: evt})
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.ledger == nil {
		return errNilLedger
	}
	return nil
}

// Initialize transitions an asset from Uninitialized to Active, naming its
// accrual administrator. Boss only.
func (e *Engine) Initialize(signer [20]byte, asset string, admin [20]byte) (*State, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.auth == nil || !e.auth.IsBoss(signer) {
		return nil, ErrNotAuthorized
	}
	normalized := token.NormalizeAsset(asset)
	if _, ok, err := e.state.CacheGet(normalized); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrAlreadyInitialized
	}
	state := &State{Asset: normalized, Admin: admin}
	if err := e.state.CachePut(state); err != nil {
		return nil, err
	}
	return state.Clone(), nil
}

// SetYields updates the gross and current yield rates. At least one of the
// two must strictly change, so a no-op transaction cannot be used as a
// timing oracle.
func (e *Engine) SetYields(signer [20]byte, asset string, grossPPM, currentPPM uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.auth == nil || !e.auth.IsBoss(signer) {
		return ErrNotAuthorized
	}
	state, err := e.load(asset)
	if err != nil {
		return err
	}
	if state.GrossYieldPPM == grossPPM && state.CurrentYieldPPM == currentPPM {
		return ErrNoChange
	}
	state.GrossYieldPPM = grossPPM
	state.CurrentYieldPPM = currentPPM
	return e.state.CachePut(state)
}

// Accrue mints the yield spread earned since the previous call into the
// reserve vault. The admin named at initialization and any cache admin
// registered with the oracle may accrue. The first call after
// initialization mints nothing: it anchors the supply floor and the
// accrual clock instead of paying out against an arbitrary initial supply.
// A negative spread mints nothing but still advances the time anchor.
func (e *Engine) Accrue(signer [20]byte, asset string) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	state, err := e.load(asset)
	if err != nil {
		return nil, err
	}
	if signer != state.Admin && (e.auth == nil || !e.auth.IsCacheAdmin(signer, state.Asset)) {
		return nil, ErrNotAuthorized
	}
	now := e.now()
	supply, err := e.ledger.TotalSupply(state.Asset)
	if err != nil {
		return nil, err
	}
	if !state.Bootstrapped() {
		state.LowestSupply = supply
		state.LastAccrualTime = now
		if err := e.state.CachePut(state); err != nil {
			return nil, err
		}
		return big.NewInt(0), nil
	}

	elapsed := now - state.LastAccrualTime
	if elapsed < 0 {
		elapsed = 0
	}
	var spread uint64
	if state.GrossYieldPPM > state.CurrentYieldPPM {
		spread = state.GrossYieldPPM - state.CurrentYieldPPM
	}
	minted := new(big.Int).Set(state.LowestSupply)
	minted.Mul(minted, new(big.Int).SetUint64(spread))
	minted.Mul(minted, big.NewInt(elapsed))
	minted.Quo(minted, big.NewInt(pricing.SecondsPerYear*1_000_000))

	if minted.Sign() > 0 {
		if err := e.ledger.Mint(state.Asset, token.ReserveAddress(state.Asset), minted); err != nil {
			return nil, err
		}
	}
	state.LastAccrualTime = now
	supply, err = e.ledger.TotalSupply(state.Asset)
	if err != nil {
		return nil, err
	}
	if supply.Cmp(state.LowestSupply) < 0 {
		state.LowestSupply = supply
	}
	if err := e.state.CachePut(state); err != nil {
		return nil, err
	}
	e.emit(events.YieldAccrued{
		Asset:        state.Asset,
		Minted:       minted,
		LowestSupply: state.LowestSupply,
		AccruedAt:    now,
	}.Event())
	return minted, nil
}

// BurnForNavIncrease converts a manager-attested increase in backing assets
// into a supply reduction. The supplied target NAV must match the currently
// computed price, guarding against acting on stale state.
func (e *Engine) BurnForNavIncrease(signer [20]byte, asset string, adjustment, targetNav *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.auth == nil || !e.auth.IsBoss(signer) {
		return ErrNotAuthorized
	}
	if adjustment == nil || adjustment.Sign() <= 0 {
		return ErrInvalidAmount
	}
	state, err := e.load(asset)
	if err != nil {
		return err
	}
	if e.nav == nil {
		return ErrNoNavSource
	}
	nav, err := e.nav.Nav(state.Asset, e.now())
	if err != nil {
		return err
	}
	if targetNav == nil || nav.Cmp(targetNav) != 0 {
		return ErrNavMismatch
	}
	reserve := token.ReserveAddress(state.Asset)
	balance, err := e.ledger.BalanceOf(state.Asset, reserve)
	if err != nil {
		return err
	}
	if balance.Cmp(adjustment) < 0 {
		return ErrAdjustmentExceedsReserve
	}
	if err := e.ledger.Burn(state.Asset, reserve, adjustment); err != nil {
		return err
	}
	e.emit(events.ReserveBurned{Asset: state.Asset, Burned: adjustment, TargetNav: targetNav}.Event())
	return nil
}

func (e *Engine) load(asset string) (*State, error) {
	state, ok, err := e.state.CacheGet(token.NormalizeAsset(asset))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	return state, nil
}
