package pricing

import (
	"math/big"
	"testing"
)

func vec(anchor int64, base int64, rate uint64, interval int64) Vector {
	return Vector{
		AnchorTime:      anchor,
		BasePrice:       big.NewInt(base),
		AnnualRatePPM:   rate,
		IntervalSeconds: interval,
	}
}

func TestAppendRejectsInvalidVectors(t *testing.T) {
	curve := &Curve{}
	cases := []struct {
		name string
		v    Vector
	}{
		{"zero anchor", vec(0, PriceScale, 36500, 86400)},
		{"zero interval", vec(100, PriceScale, 36500, 0)},
		{"nil base", Vector{AnchorTime: 100, AnnualRatePPM: 36500, IntervalSeconds: 86400}},
		{"zero base", vec(100, 0, 36500, 86400)},
	}
	for _, tc := range cases {
		if err := curve.Append(50, tc.v); err != ErrInvalidVector {
			t.Fatalf("%s: expected ErrInvalidVector, got %v", tc.name, err)
		}
	}
}

func TestAppendEnforcesOrdering(t *testing.T) {
	curve := &Curve{}
	if err := curve.Append(0, vec(1000, PriceScale, 36500, 86400)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := curve.Append(0, vec(1000, PriceScale, 36500, 86400)); err != ErrVectorOrdering {
		t.Fatalf("duplicate anchor: expected ErrVectorOrdering, got %v", err)
	}
	if err := curve.Append(0, vec(999, PriceScale, 36500, 86400)); err != ErrVectorOrdering {
		t.Fatalf("earlier anchor: expected ErrVectorOrdering, got %v", err)
	}
	if err := curve.Append(0, vec(1001, PriceScale, 36500, 86400)); err != nil {
		t.Fatalf("later anchor: %v", err)
	}
}

func TestAppendEnforcesVectorLimit(t *testing.T) {
	curve := &Curve{}
	for i := int64(0); i < MaxVectors; i++ {
		if err := curve.Append(0, vec(1000+i, PriceScale, 36500, 86400)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if err := curve.Append(0, vec(5000, PriceScale, 36500, 86400)); err != ErrMaxVectors {
		t.Fatalf("expected ErrMaxVectors, got %v", err)
	}
}

func TestAppendPrunesElapsedVectors(t *testing.T) {
	curve := &Curve{}
	for i := int64(1); i <= 6; i++ {
		if err := curve.Append(0, vec(i*1000, PriceScale, 36500, 86400)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	// Time has advanced past the 4th anchor; the next insert prunes the two
	// oldest elapsed vectors.
	now := int64(4500)
	if err := curve.Append(now, vec(7000, PriceScale, 36500, 86400)); err != nil {
		t.Fatalf("append: %v", err)
	}
	want := []int64{3000, 4000, 5000, 6000, 7000}
	if len(curve.Vectors) != len(want) {
		t.Fatalf("unexpected vector count: got %d want %d", len(curve.Vectors), len(want))
	}
	for i, anchor := range want {
		if curve.Vectors[i].AnchorTime != anchor {
			t.Fatalf("vector %d: got anchor %d want %d", i, curve.Vectors[i].AnchorTime, anchor)
		}
	}
}

func TestActiveSelectsLatestElapsedVector(t *testing.T) {
	curve := &Curve{}
	if _, err := curve.Active(100); err != ErrNoActiveVector {
		t.Fatalf("empty curve: expected ErrNoActiveVector, got %v", err)
	}
	if err := curve.Append(0, vec(1000, PriceScale, 36500, 86400)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := curve.Append(0, vec(2000, 2*PriceScale, 36500, 86400)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := curve.Active(500); err != ErrNoActiveVector {
		t.Fatalf("all vectors in the future: expected ErrNoActiveVector, got %v", err)
	}
	active, err := curve.Active(1500)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active.AnchorTime != 1000 {
		t.Fatalf("unexpected active anchor: %d", active.AnchorTime)
	}
	active, err = curve.Active(2000)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active.AnchorTime != 2000 {
		t.Fatalf("unexpected active anchor: %d", active.AnchorTime)
	}
}

func TestPriceSimpleAccrualPerInterval(t *testing.T) {
	curve := &Curve{}
	if err := curve.Append(0, vec(1000, PriceScale, 36500, 86400)); err != nil {
		t.Fatalf("append: %v", err)
	}
	// First interval: 1e9 * 36500 * 1 * 86400 / (31_536_000 * 1e6) = 100_000.
	price, err := curve.Price(1000)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if price.Cmp(big.NewInt(1_000_100_000)) != 0 {
		t.Fatalf("first interval price: got %s want 1000100000", price)
	}
	// Second interval begins exactly one interval after the anchor.
	price, err = curve.Price(1000 + 86400)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if price.Cmp(big.NewInt(1_000_200_000)) != 0 {
		t.Fatalf("second interval price: got %s want 1000200000", price)
	}
}

func TestPriceMonotoneWithinVector(t *testing.T) {
	curve := &Curve{}
	if err := curve.Append(0, vec(1000, PriceScale, 250000, 3600)); err != nil {
		t.Fatalf("append: %v", err)
	}
	prev, err := curve.Price(1000)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	for now := int64(1001); now < 1000+10*3600; now += 600 {
		price, err := curve.Price(now)
		if err != nil {
			t.Fatalf("price at %d: %v", now, err)
		}
		if price.Cmp(prev) < 0 {
			t.Fatalf("price decreased at %d: %s < %s", now, price, prev)
		}
		sameInterval := (now-1000)/3600 == (now-600-1000)/3600
		if sameInterval && price.Cmp(prev) != 0 {
			t.Fatalf("price moved inside an interval at %d: %s != %s", now, price, prev)
		}
		prev = price
	}
	// Crossing an interval boundary strictly increases the price.
	before, _ := curve.Price(1000 + 3599)
	after, _ := curve.Price(1000 + 3600)
	if after.Cmp(before) <= 0 {
		t.Fatalf("expected strict increase across boundary: %s vs %s", before, after)
	}
}

func TestAPYZeroRate(t *testing.T) {
	for _, interval := range []int64{1, 60, 3600, 86400, 604800} {
		curve := &Curve{}
		if err := curve.Append(0, vec(1000, PriceScale, 0, interval)); err != nil {
			t.Fatalf("append: %v", err)
		}
		apy, err := curve.APY(2000)
		if err != nil {
			t.Fatalf("apy: %v", err)
		}
		if apy != 0 {
			t.Fatalf("interval %d: expected zero apy, got %d", interval, apy)
		}
	}
}

func TestAPYCompoundingRegression(t *testing.T) {
	cases := []struct {
		rate uint64
		want uint64
	}{
		{36500, 37172},
		{100000, 105156},
		{250000, 283916},
	}
	for _, tc := range cases {
		curve := &Curve{}
		if err := curve.Append(0, vec(1000, PriceScale, tc.rate, 86400)); err != nil {
			t.Fatalf("append: %v", err)
		}
		apy, err := curve.APY(2000)
		if err != nil {
			t.Fatalf("apy: %v", err)
		}
		if apy != tc.want {
			t.Fatalf("rate %d: got apy %d want %d", tc.rate, apy, tc.want)
		}
		again, err := curve.APY(2000)
		if err != nil || again != apy {
			t.Fatalf("apy not stable: %d vs %d (%v)", apy, again, err)
		}
	}
}

func TestAPYRequiresActiveVector(t *testing.T) {
	curve := &Curve{}
	if _, err := curve.APY(100); err != ErrNoActiveVector {
		t.Fatalf("expected ErrNoActiveVector, got %v", err)
	}
	if err := curve.Append(0, vec(1000, PriceScale, 36500, 86400)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := curve.APY(500); err != ErrNoActiveVector {
		t.Fatalf("future-only curve: expected ErrNoActiveVector, got %v", err)
	}
}
