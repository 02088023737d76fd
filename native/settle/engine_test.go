package settle

import (
	"errors"
	"math/big"
	"testing"

	"bondvault/native/common"
	"bondvault/native/offers"
	"bondvault/native/pricing"
	"bondvault/native/token"
)

type testLedger struct {
	decimals  map[string]uint8
	authority map[string]bool
	balances  map[string]*big.Int
	supply    map[string]*big.Int
}

func newTestLedger() *testLedger {
	return &testLedger{
		decimals:  make(map[string]uint8),
		authority: make(map[string]bool),
		balances:  make(map[string]*big.Int),
		supply:    make(map[string]*big.Int),
	}
}

func (l *testLedger) register(asset string, decimals uint8, authority bool) {
	l.decimals[asset] = decimals
	l.authority[asset] = authority
	l.supply[asset] = big.NewInt(0)
}

func (l *testLedger) key(asset string, addr [20]byte) string {
	return asset + "/" + string(addr[:])
}

func (l *testLedger) credit(asset string, addr [20]byte, amount int64) {
	balance := l.balance(asset, addr)
	l.balances[l.key(asset, addr)] = new(big.Int).Add(balance, big.NewInt(amount))
	l.supply[asset] = new(big.Int).Add(l.supply[asset], big.NewInt(amount))
}

func (l *testLedger) balance(asset string, addr [20]byte) *big.Int {
	balance, ok := l.balances[l.key(asset, addr)]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(balance)
}

func (l *testLedger) Transfer(asset string, from, to [20]byte, amount *big.Int) error {
	fromBal := l.balance(asset, from)
	if fromBal.Cmp(amount) < 0 {
		return token.ErrInsufficientBalance
	}
	l.balances[l.key(asset, from)] = new(big.Int).Sub(fromBal, amount)
	l.balances[l.key(asset, to)] = new(big.Int).Add(l.balance(asset, to), amount)
	return nil
}

func (l *testLedger) Mint(asset string, to [20]byte, amount *big.Int) error {
	if !l.authority[asset] {
		return token.ErrMintAuthorityNotHeld
	}
	l.balances[l.key(asset, to)] = new(big.Int).Add(l.balance(asset, to), amount)
	l.supply[asset] = new(big.Int).Add(l.supply[asset], amount)
	return nil
}

func (l *testLedger) Burn(asset string, from [20]byte, amount *big.Int) error {
	if !l.authority[asset] {
		return token.ErrMintAuthorityNotHeld
	}
	balance := l.balance(asset, from)
	if balance.Cmp(amount) < 0 {
		return token.ErrInsufficientBalance
	}
	l.balances[l.key(asset, from)] = new(big.Int).Sub(balance, amount)
	l.supply[asset] = new(big.Int).Sub(l.supply[asset], amount)
	return nil
}

func (l *testLedger) HeldMintAuthority(asset string) bool { return l.authority[asset] }

func (l *testLedger) Decimals(asset string) (uint8, error) {
	decimals, ok := l.decimals[asset]
	if !ok {
		return 0, token.ErrUnknownAsset
	}
	return decimals, nil
}

func (l *testLedger) TotalSupply(asset string) (*big.Int, error) {
	supply, ok := l.supply[asset]
	if !ok {
		return nil, token.ErrUnknownAsset
	}
	return new(big.Int).Set(supply), nil
}

func (l *testLedger) BalanceOf(asset string, addr [20]byte) (*big.Int, error) {
	return l.balance(asset, addr), nil
}

type mockState struct {
	offers  map[string]*offers.Offer
	duals   map[string]*offers.DualRedemptionOffer
	singles map[string]*offers.SingleRedemptionOffer
}

func newMockState() *mockState {
	return &mockState{
		offers:  make(map[string]*offers.Offer),
		duals:   make(map[string]*offers.DualRedemptionOffer),
		singles: make(map[string]*offers.SingleRedemptionOffer),
	}
}

func (m *mockState) OfferGet(input, output string) (*offers.Offer, bool, error) {
	offer, ok := m.offers[offers.PairKey(input, output)]
	if !ok {
		return nil, false, nil
	}
	return offer.Clone(), true, nil
}

func (m *mockState) DualOfferGet(input, output1, output2 string) (*offers.DualRedemptionOffer, bool, error) {
	offer, ok := m.duals[(&offers.DualRedemptionOffer{Input: input, Output1: output1, Output2: output2}).Key()]
	if !ok {
		return nil, false, nil
	}
	return offer.Clone(), true, nil
}

func (m *mockState) SingleOfferGet(input, output string) (*offers.SingleRedemptionOffer, bool, error) {
	offer, ok := m.singles[offers.PairKey(input, output)]
	if !ok {
		return nil, false, nil
	}
	return offer.Clone(), true, nil
}

const testNow int64 = 10_000

var (
	boss     = [20]byte{0x01}
	admin    = [20]byte{0x02}
	taker    = [20]byte{0x03}
	operator = [20]byte{0x04}
)

func flatCurve(price int64) *pricing.Curve {
	return &pricing.Curve{Vectors: []pricing.Vector{{
		AnchorTime:      1_000,
		BasePrice:       big.NewInt(price),
		AnnualRatePPM:   0,
		IntervalSeconds: 86_400,
	}}}
}

func newTestEngine(t *testing.T) (*Engine, *mockState, *testLedger, *common.Authority) {
	t.Helper()
	ledger := newTestLedger()
	ledger.register("BOND", 9, false)
	ledger.register("USD", 6, true)

	auth := common.NewAuthority(boss)
	if err := auth.AddAdmin(admin); err != nil {
		t.Fatalf("add admin: %v", err)
	}

	state := newMockState()
	engine := NewEngine(NewSettler(ledger, operator))
	engine.SetState(state)
	engine.SetAuth(auth)
	engine.SetNowFunc(func() int64 { return testNow })
	return engine, state, ledger, auth
}

func baseOffer(feeBps uint32) *offers.Offer {
	return &offers.Offer{
		Input:          "BOND",
		Output:         "USD",
		FeeBps:         feeBps,
		Permissionless: true,
		Curve:          flatCurve(1_000_000_000),
	}
}

func TestTakeEscrowBranchAccounting(t *testing.T) {
	engine, state, ledger, _ := newTestEngine(t)
	state.offers[offers.PairKey("BOND", "USD")] = baseOffer(100)
	ledger.credit("BOND", taker, 1_000_000_000)

	result, err := engine.Take(taker, "BOND", "USD", big.NewInt(1_000_000_000), nil)
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if result.Fee.Cmp(big.NewInt(10_000_000)) != 0 {
		t.Fatalf("expected fee 10000000, got %s", result.Fee)
	}
	if result.AmountOut.Cmp(big.NewInt(990_000)) != 0 {
		t.Fatalf("expected out 990000, got %s", result.AmountOut)
	}
	// Escrow input branch: the operator receives the full input, fee included.
	if got := ledger.balance("BOND", operator); got.Cmp(big.NewInt(1_000_000_000)) != 0 {
		t.Fatalf("operator input balance %s", got)
	}
	if got := ledger.balance("USD", taker); got.Cmp(big.NewInt(990_000)) != 0 {
		t.Fatalf("taker output balance %s", got)
	}
}

func TestTakeMintBranchBurnsNetInput(t *testing.T) {
	engine, state, ledger, _ := newTestEngine(t)
	ledger.authority["BOND"] = true
	state.offers[offers.PairKey("BOND", "USD")] = baseOffer(100)
	ledger.credit("BOND", taker, 1_000_000_000)

	result, err := engine.Take(taker, "BOND", "USD", big.NewInt(1_000_000_000), nil)
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	// Same taker-visible outcome as the escrow branch.
	if result.AmountOut.Cmp(big.NewInt(990_000)) != 0 {
		t.Fatalf("expected out 990000, got %s", result.AmountOut)
	}
	// Mint input branch: the operator keeps only the fee, the rest is burned.
	if got := ledger.balance("BOND", operator); got.Cmp(big.NewInt(10_000_000)) != 0 {
		t.Fatalf("operator fee balance %s", got)
	}
	if got := ledger.supply["BOND"]; got.Cmp(big.NewInt(10_000_000)) != 0 {
		t.Fatalf("expected supply reduced to the fee remainder, got %s", got)
	}
}

func TestTakeRequiresActiveOffer(t *testing.T) {
	engine, state, _, _ := newTestEngine(t)
	if _, err := engine.Take(taker, "BOND", "USD", big.NewInt(1), nil); !errors.Is(err, offers.ErrOfferNotFound) {
		t.Fatalf("expected ErrOfferNotFound, got %v", err)
	}
	offer := baseOffer(0)
	offer.Closed = true
	state.offers[offers.PairKey("BOND", "USD")] = offer
	if _, err := engine.Take(taker, "BOND", "USD", big.NewInt(1), nil); !errors.Is(err, offers.ErrOfferClosed) {
		t.Fatalf("expected ErrOfferClosed, got %v", err)
	}
}

func TestTakeKillSwitch(t *testing.T) {
	engine, state, ledger, auth := newTestEngine(t)
	state.offers[offers.PairKey("BOND", "USD")] = baseOffer(0)
	ledger.credit("BOND", taker, 1_000)
	auth.SetKilled(true)
	if _, err := engine.Take(taker, "BOND", "USD", big.NewInt(1_000), nil); !errors.Is(err, common.ErrKillSwitchActivated) {
		t.Fatalf("expected ErrKillSwitchActivated, got %v", err)
	}
}

func TestTakeApprovalGating(t *testing.T) {
	engine, state, ledger, _ := newTestEngine(t)
	offer := baseOffer(0)
	offer.RequiresApproval = true
	state.offers[offers.PairKey("BOND", "USD")] = offer
	ledger.credit("BOND", taker, 2_000_000_000)
	amount := big.NewInt(1_000_000_000)

	if _, err := engine.Take(taker, "BOND", "USD", amount, nil); !errors.Is(err, ErrMissingApproverSignature) {
		t.Fatalf("expected ErrMissingApproverSignature, got %v", err)
	}
	wrongTaker := &Approval{Taker: admin, Amount: amount, Expiry: testNow + 100}
	if _, err := engine.Take(taker, "BOND", "USD", amount, wrongTaker); !errors.Is(err, ErrInvalidApproverSignature) {
		t.Fatalf("expected ErrInvalidApproverSignature, got %v", err)
	}
	wrongAmount := &Approval{Taker: taker, Amount: big.NewInt(1), Expiry: testNow + 100}
	if _, err := engine.Take(taker, "BOND", "USD", amount, wrongAmount); !errors.Is(err, ErrInvalidApproverSignature) {
		t.Fatalf("expected ErrInvalidApproverSignature, got %v", err)
	}
	expired := &Approval{Taker: taker, Amount: amount, Expiry: testNow - 1}
	if _, err := engine.Take(taker, "BOND", "USD", amount, expired); !errors.Is(err, ErrApprovalExpired) {
		t.Fatalf("expected ErrApprovalExpired, got %v", err)
	}
	valid := &Approval{Taker: taker, Amount: amount, Expiry: testNow}
	if _, err := engine.Take(taker, "BOND", "USD", amount, valid); err != nil {
		t.Fatalf("take with valid approval: %v", err)
	}
}

func TestTakeGatedOfferAdminsOnly(t *testing.T) {
	engine, state, ledger, _ := newTestEngine(t)
	offer := baseOffer(0)
	offer.Permissionless = false
	state.offers[offers.PairKey("BOND", "USD")] = offer
	ledger.credit("BOND", taker, 1_000_000_000)
	ledger.credit("BOND", admin, 1_000_000_000)

	if _, err := engine.Take(taker, "BOND", "USD", big.NewInt(1_000), nil); !errors.Is(err, ErrTakerNotAllowed) {
		t.Fatalf("expected ErrTakerNotAllowed, got %v", err)
	}
	if _, err := engine.Take(admin, "BOND", "USD", big.NewInt(1_000), nil); err != nil {
		t.Fatalf("admin take: %v", err)
	}
}

func TestTakeNoPartialEffectsOnUnderfundedVault(t *testing.T) {
	engine, state, ledger, _ := newTestEngine(t)
	// Output without mint authority and an empty vault cannot settle.
	ledger.authority["USD"] = false
	state.offers[offers.PairKey("BOND", "USD")] = baseOffer(0)
	ledger.credit("BOND", taker, 1_000_000_000)

	_, err := engine.Take(taker, "BOND", "USD", big.NewInt(1_000_000_000), nil)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if got := ledger.balance("BOND", taker); got.Cmp(big.NewInt(1_000_000_000)) != 0 {
		t.Fatalf("taker balance must be untouched on failure, got %s", got)
	}
	if got := ledger.balance("BOND", operator); got.Sign() != 0 {
		t.Fatalf("operator must receive nothing on failure, got %s", got)
	}
}

func dualOffer(splitBps uint32) *offers.DualRedemptionOffer {
	return &offers.DualRedemptionOffer{
		Input:         "BOND",
		Output1:       "USD",
		Output2:       "EUR",
		Price1:        big.NewInt(1_000_000_000),
		Price2:        big.NewInt(1_000_000_000),
		SplitRatioBps: splitBps,
		FeeBps:        0,
		StartTime:     1_000,
		EndTime:       100_000,
	}
}

func TestTakeDualLegsSumToNetInput(t *testing.T) {
	for _, split := range []uint32{0, 1, 3_333, 5_000, 9_999, 10_000} {
		engine, state, ledger, _ := newTestEngine(t)
		ledger.register("EUR", 9, true)
		ledger.decimals["USD"] = 9
		state.duals[dualOffer(split).Key()] = dualOffer(split)
		amountIn := big.NewInt(1_000_000_007)
		ledger.credit("BOND", taker, amountIn.Int64())

		result, err := engine.TakeDual(taker, "BOND", "USD", "EUR", amountIn)
		if err != nil {
			t.Fatalf("split %d: %v", split, err)
		}
		sum := new(big.Int).Add(result.AmountIn1, result.AmountIn2)
		if sum.Cmp(amountIn) != 0 {
			t.Fatalf("split %d: legs %s + %s != %s", split, result.AmountIn1, result.AmountIn2, amountIn)
		}
	}
}

func TestTakeDualWindow(t *testing.T) {
	engine, state, ledger, _ := newTestEngine(t)
	ledger.register("EUR", 9, true)
	offer := dualOffer(5_000)
	offer.EndTime = testNow - 1
	state.duals[offer.Key()] = offer
	ledger.credit("BOND", taker, 1_000)

	if _, err := engine.TakeDual(taker, "BOND", "USD", "EUR", big.NewInt(1_000)); !errors.Is(err, ErrWindowClosed) {
		t.Fatalf("expected ErrWindowClosed, got %v", err)
	}
}

func TestTakeSingleRedemptionUsesLivePrice(t *testing.T) {
	engine, state, ledger, _ := newTestEngine(t)
	base := baseOffer(0)
	base.Curve = flatCurve(2_000_000_000)
	state.offers[offers.PairKey("BOND", "USD")] = base
	state.singles[offers.PairKey("BOND", "USD")] = &offers.SingleRedemptionOffer{
		Input:     "BOND",
		Output:    "USD",
		FeeBps:    0,
		StartTime: 1_000,
		EndTime:   100_000,
		Requested: big.NewInt(0),
		Executed:  big.NewInt(0),
	}
	ledger.credit("BOND", taker, 1_000_000_000)

	result, err := engine.TakeSingleRedemption(taker, "BOND", "USD", big.NewInt(1_000_000_000))
	if err != nil {
		t.Fatalf("take redemption: %v", err)
	}
	// out = floor(amount * price / 10^inDecimals) = 1e9 * 2e9 / 1e9.
	if result.AmountOut.Cmp(big.NewInt(2_000_000_000)) != 0 {
		t.Fatalf("expected 2000000000, got %s", result.AmountOut)
	}
}

func TestTakeSingleRedemptionWindow(t *testing.T) {
	engine, state, ledger, _ := newTestEngine(t)
	state.offers[offers.PairKey("BOND", "USD")] = baseOffer(0)
	state.singles[offers.PairKey("BOND", "USD")] = &offers.SingleRedemptionOffer{
		Input:     "BOND",
		Output:    "USD",
		StartTime: testNow + 1,
		EndTime:   testNow + 100,
		Requested: big.NewInt(0),
		Executed:  big.NewInt(0),
	}
	ledger.credit("BOND", taker, 1_000)

	if _, err := engine.TakeSingleRedemption(taker, "BOND", "USD", big.NewInt(1_000)); !errors.Is(err, ErrWindowClosed) {
		t.Fatalf("expected ErrWindowClosed, got %v", err)
	}
}

func TestConvertToRedemptionTruncates(t *testing.T) {
	out := ConvertToRedemption(big.NewInt(3), big.NewInt(333_333_333), 9)
	if out.Sign() != 0 {
		t.Fatalf("expected truncation to zero, got %s", out)
	}
	out = ConvertToRedemption(big.NewInt(1_000_000_000), big.NewInt(1_500_000_000), 9)
	if out.Cmp(big.NewInt(1_500_000_000)) != 0 {
		t.Fatalf("expected 1500000000, got %s", out)
	}
}
