package pricing

import (
	"errors"
	"math"
	"math/big"
)

const (
	// SecondsPerYear is the fixed accrual year used by every rate
	// computation in the module (365 days).
	SecondsPerYear = 31_536_000
	// PriceScale is the fixed-point scale carried by every price,
	// independent of either asset's native decimals.
	PriceScale = 1_000_000_000
	// MaxVectors bounds the number of pricing segments an offer may hold.
	MaxVectors = 10

	partsPerMillion = 1_000_000
)

var (
	ErrNoActiveVector = errors.New("pricing: no active vector")
	ErrVectorOrdering = errors.New("pricing: anchor time must strictly increase")
	ErrMaxVectors     = errors.New("pricing: vector limit reached")
	ErrInvalidVector  = errors.New("pricing: anchor, base price and interval must be positive")
)

// Vector is a single piecewise pricing segment. From its anchor time onward
// the price steps up once per whole elapsed interval by a simple
// (non-compounding) annual rate expressed in parts per million.
type Vector struct {
	AnchorTime      int64
	BasePrice       *big.Int
	AnnualRatePPM   uint64
	IntervalSeconds int64
}

// Clone returns a deep copy of the vector.
func (v Vector) Clone() Vector {
	clone := v
	if v.BasePrice != nil {
		clone.BasePrice = new(big.Int).Set(v.BasePrice)
	}
	return clone
}

// Curve holds an offer's pricing segments ordered by strictly increasing
// anchor time.
type Curve struct {
	Vectors []Vector
}

// Clone returns a deep copy of the curve.
func (c *Curve) Clone() *Curve {
	if c == nil {
		return nil
	}
	clone := &Curve{}
	if len(c.Vectors) > 0 {
		clone.Vectors = make([]Vector, len(c.Vectors))
		for i, v := range c.Vectors {
			clone.Vectors[i] = v.Clone()
		}
	}
	return clone
}

// Append validates and appends a vector, then prunes segments that can no
// longer become active. Among vectors whose anchor time has already passed
// only the two most recent are retained: the active segment and the one
// immediately preceding it. Future-dated vectors are never pruned.
func (c *Curve) Append(now int64, v Vector) error {
	if c == nil {
		return ErrInvalidVector
	}
	if v.AnchorTime <= 0 || v.IntervalSeconds <= 0 {
		return ErrInvalidVector
	}
	if v.BasePrice == nil || v.BasePrice.Sign() <= 0 {
		return ErrInvalidVector
	}
	if len(c.Vectors) >= MaxVectors {
		return ErrMaxVectors
	}
	if n := len(c.Vectors); n > 0 && v.AnchorTime <= c.Vectors[n-1].AnchorTime {
		return ErrVectorOrdering
	}
	c.Vectors = append(c.Vectors, v.Clone())
	c.prune(now)
	return nil
}

// prune drops every elapsed vector except the two with the largest anchor
// time. Ordering is an invariant of Append, so elapsed vectors always form a
// prefix of the slice.
func (c *Curve) prune(now int64) {
	elapsed := 0
	for _, v := range c.Vectors {
		if v.AnchorTime > now {
			break
		}
		elapsed++
	}
	if elapsed <= 2 {
		return
	}
	c.Vectors = append(c.Vectors[:0], c.Vectors[elapsed-2:]...)
}

// Active returns the vector with the greatest anchor time that is not after
// now.
func (c *Curve) Active(now int64) (Vector, error) {
	if c == nil {
		return Vector{}, ErrNoActiveVector
	}
	for i := len(c.Vectors) - 1; i >= 0; i-- {
		if c.Vectors[i].AnchorTime <= now {
			return c.Vectors[i], nil
		}
	}
	return Vector{}, ErrNoActiveVector
}

// Price computes the spot price at the supplied instant. Accrual is applied
// once per whole elapsed interval using integer floor division at every step;
// the first interval counts from the anchor itself.
//
//	price = base + floor(base * rate * intervals * interval / (SecondsPerYear * 1e6))
func (c *Curve) Price(now int64) (*big.Int, error) {
	active, err := c.Active(now)
	if err != nil {
		return nil, err
	}
	intervals := (now-active.AnchorTime)/active.IntervalSeconds + 1
	accrued := new(big.Int).Set(active.BasePrice)
	accrued.Mul(accrued, new(big.Int).SetUint64(active.AnnualRatePPM))
	accrued.Mul(accrued, big.NewInt(intervals))
	accrued.Mul(accrued, big.NewInt(active.IntervalSeconds))
	accrued.Quo(accrued, big.NewInt(SecondsPerYear*partsPerMillion))
	return accrued.Add(accrued, active.BasePrice), nil
}

// APY converts the active vector's simple annual rate into the compounding
// annual yield in parts per million, assuming one compounding period per
// interval. The computation is pure: repeated calls with unchanged state
// return identical values.
func (c *Curve) APY(now int64) (uint64, error) {
	active, err := c.Active(now)
	if err != nil {
		return 0, err
	}
	return compoundYield(active.AnnualRatePPM, active.IntervalSeconds), nil
}

func compoundYield(ratePPM uint64, intervalSeconds int64) uint64 {
	if ratePPM == 0 || intervalSeconds <= 0 {
		return 0
	}
	periods := float64(SecondsPerYear) / float64(intervalSeconds)
	perPeriod := float64(ratePPM) / partsPerMillion / periods
	yield := math.Pow(1+perPeriod, periods) - 1
	return uint64(math.Round(yield * partsPerMillion))
}
