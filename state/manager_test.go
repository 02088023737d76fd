package state

import (
	"math/big"
	"testing"

	"bondvault/native/cache"
	"bondvault/native/offers"
	"bondvault/native/pricing"
	"bondvault/native/redemption"
	"bondvault/native/token"
	"bondvault/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(storage.NewMemDB())
}

func TestOfferRoundTrip(t *testing.T) {
	m := newTestManager(t)
	if _, ok, err := m.OfferGet("BOND", "USD"); err != nil || ok {
		t.Fatalf("expected missing offer, got ok=%v err=%v", ok, err)
	}
	offer := &offers.Offer{
		Input:            "BOND",
		Output:           "USD",
		FeeBps:           25,
		RequiresApproval: true,
		Curve: &pricing.Curve{Vectors: []pricing.Vector{{
			AnchorTime:      1000,
			BasePrice:       big.NewInt(1_000_000_000),
			AnnualRatePPM:   36500,
			IntervalSeconds: 86400,
		}}},
	}
	if err := m.OfferPut(offer); err != nil {
		t.Fatalf("put offer: %v", err)
	}
	loaded, ok, err := m.OfferGet("bond", "usd")
	if err != nil || !ok {
		t.Fatalf("get offer: ok=%v err=%v", ok, err)
	}
	if loaded.FeeBps != 25 || !loaded.RequiresApproval || loaded.Permissionless {
		t.Fatalf("offer terms mangled: %+v", loaded)
	}
	if len(loaded.Curve.Vectors) != 1 {
		t.Fatalf("expected 1 vector, got %d", len(loaded.Curve.Vectors))
	}
	v := loaded.Curve.Vectors[0]
	if v.AnchorTime != 1000 || v.IntervalSeconds != 86400 || v.AnnualRatePPM != 36500 {
		t.Fatalf("vector mangled: %+v", v)
	}
	if v.BasePrice.Cmp(big.NewInt(1_000_000_000)) != 0 {
		t.Fatalf("base price mangled: %s", v.BasePrice)
	}
}

func TestDualOfferRoundTrip(t *testing.T) {
	m := newTestManager(t)
	offer := &offers.DualRedemptionOffer{
		Input:         "BOND",
		Output1:       "USD",
		Output2:       "EUR",
		Price1:        big.NewInt(1_000_000_000),
		Price2:        big.NewInt(900_000_000),
		SplitRatioBps: 7000,
		FeeBps:        10,
		StartTime:     100,
		EndTime:       200,
	}
	if err := m.DualOfferPut(offer); err != nil {
		t.Fatalf("put dual offer: %v", err)
	}
	loaded, ok, err := m.DualOfferGet("BOND", "USD", "EUR")
	if err != nil || !ok {
		t.Fatalf("get dual offer: ok=%v err=%v", ok, err)
	}
	if loaded.SplitRatioBps != 7000 || loaded.StartTime != 100 || loaded.EndTime != 200 {
		t.Fatalf("dual offer mangled: %+v", loaded)
	}
	if loaded.Price2.Cmp(big.NewInt(900_000_000)) != 0 {
		t.Fatalf("price mangled: %s", loaded.Price2)
	}
}

func TestRequestLifecycle(t *testing.T) {
	m := newTestManager(t)
	redeemer := [20]byte{0xAA}

	next, err := m.NonceGet(redeemer)
	if err != nil || next != 0 {
		t.Fatalf("fresh nonce: got %d err=%v", next, err)
	}
	request := &redemption.Request{
		Input:     "BOND",
		Output:    "USD",
		Redeemer:  redeemer,
		Nonce:     0,
		Amount:    big.NewInt(5_000),
		ExpiresAt: 9_000,
		CreatedAt: 1_000,
		Status:    redemption.StatusPending,
	}
	if err := m.RequestPut(request); err != nil {
		t.Fatalf("put request: %v", err)
	}
	if err := m.NoncePut(redeemer, 1); err != nil {
		t.Fatalf("put nonce: %v", err)
	}

	loaded, ok, err := m.RequestGet("BOND", "USD", redeemer, 0)
	if err != nil || !ok {
		t.Fatalf("get request: ok=%v err=%v", ok, err)
	}
	if loaded.Status != redemption.StatusPending || loaded.Amount.Cmp(big.NewInt(5_000)) != 0 {
		t.Fatalf("request mangled: %+v", loaded)
	}
	next, err = m.NonceGet(redeemer)
	if err != nil || next != 1 {
		t.Fatalf("incremented nonce: got %d err=%v", next, err)
	}

	if err := m.RequestDelete("BOND", "USD", redeemer, 0); err != nil {
		t.Fatalf("delete request: %v", err)
	}
	if _, ok, err := m.RequestGet("BOND", "USD", redeemer, 0); err != nil || ok {
		t.Fatalf("expected deleted request, got ok=%v err=%v", ok, err)
	}
}

func TestCacheStateRoundTrip(t *testing.T) {
	m := newTestManager(t)
	if _, ok, err := m.CacheGet("BOND"); err != nil || ok {
		t.Fatalf("expected missing state, got ok=%v err=%v", ok, err)
	}
	state := &cache.State{
		Asset:           "BOND",
		Admin:           [20]byte{0x01},
		GrossYieldPPM:   120_000,
		CurrentYieldPPM: 20_000,
		LowestSupply:    big.NewInt(1_000_000),
		LastAccrualTime: 5_000,
	}
	if err := m.CachePut(state); err != nil {
		t.Fatalf("put cache state: %v", err)
	}
	loaded, ok, err := m.CacheGet("bond")
	if err != nil || !ok {
		t.Fatalf("get cache state: ok=%v err=%v", ok, err)
	}
	if loaded.GrossYieldPPM != 120_000 || loaded.LastAccrualTime != 5_000 {
		t.Fatalf("cache state mangled: %+v", loaded)
	}
	if loaded.LowestSupply.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("lowest supply mangled: %s", loaded.LowestSupply)
	}
}

func TestAssetAndBalances(t *testing.T) {
	m := newTestManager(t)
	asset := &token.Asset{
		Symbol:        "BOND",
		Decimals:      9,
		MintAuthority: true,
		TotalSupply:   big.NewInt(42),
	}
	if err := m.AssetPut(asset); err != nil {
		t.Fatalf("put asset: %v", err)
	}
	loaded, ok, err := m.AssetGet("bond")
	if err != nil || !ok {
		t.Fatalf("get asset: ok=%v err=%v", ok, err)
	}
	if loaded.Decimals != 9 || !loaded.MintAuthority {
		t.Fatalf("asset mangled: %+v", loaded)
	}

	holder := [20]byte{0x02}
	balance, err := m.BalanceGet("BOND", holder)
	if err != nil {
		t.Fatalf("fresh balance: %v", err)
	}
	if balance.Sign() != 0 {
		t.Fatalf("fresh balance should be zero, got %s", balance)
	}
	if err := m.BalancePut("BOND", holder, big.NewInt(777)); err != nil {
		t.Fatalf("put balance: %v", err)
	}
	balance, err = m.BalanceGet("bond", holder)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance.Cmp(big.NewInt(777)) != 0 {
		t.Fatalf("balance mangled: %s", balance)
	}
}
