package offers

import (
	"math/big"

	"bondvault/native/pricing"
	"bondvault/native/token"
)

// Offer is one exchange pair and its terms. Pricing lives on the attached
// curve; fees are expressed in basis points of the input amount.
type Offer struct {
	Input            string
	Output           string
	FeeBps           uint32
	RequiresApproval bool
	Permissionless   bool
	Curve            *pricing.Curve
	Closed           bool
}

// Clone returns a deep copy of the offer.
func (o *Offer) Clone() *Offer {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Curve = o.Curve.Clone()
	return &clone
}

// PairKey returns the canonical (input, output) lookup key for the offer.
func (o *Offer) PairKey() string {
	return PairKey(o.Input, o.Output)
}

// PairKey builds the canonical lookup key for an asset pair.
func PairKey(input, output string) string {
	return token.NormalizeAsset(input) + "/" + token.NormalizeAsset(output)
}

// DualRedemptionOffer redeems one input asset into exactly two output assets
// at fixed prices, split by a basis-point ratio.
type DualRedemptionOffer struct {
	Input         string
	Output1       string
	Output2       string
	Price1        *big.Int
	Price2        *big.Int
	SplitRatioBps uint32
	FeeBps        uint32
	StartTime     int64
	EndTime       int64
	Closed        bool
}

// Clone returns a deep copy of the dual redemption offer.
func (o *DualRedemptionOffer) Clone() *DualRedemptionOffer {
	if o == nil {
		return nil
	}
	clone := *o
	if o.Price1 != nil {
		clone.Price1 = new(big.Int).Set(o.Price1)
	}
	if o.Price2 != nil {
		clone.Price2 = new(big.Int).Set(o.Price2)
	}
	return &clone
}

// Key returns the canonical lookup key for the dual redemption offer.
func (o *DualRedemptionOffer) Key() string {
	return PairKey(o.Input, o.Output1) + "/" + token.NormalizeAsset(o.Output2)
}

// SingleRedemptionOffer redeems one input asset into a single output at the
// live price of the base offer for the same pair. Requested and Executed
// track the deferred-redemption pipeline.
type SingleRedemptionOffer struct {
	Input     string
	Output    string
	FeeBps    uint32
	StartTime int64
	EndTime   int64
	Requested *big.Int
	Executed  *big.Int
	Closed    bool
}

// Clone returns a deep copy of the single redemption offer.
func (o *SingleRedemptionOffer) Clone() *SingleRedemptionOffer {
	if o == nil {
		return nil
	}
	clone := *o
	if o.Requested != nil {
		clone.Requested = new(big.Int).Set(o.Requested)
	} else {
		clone.Requested = big.NewInt(0)
	}
	if o.Executed != nil {
		clone.Executed = new(big.Int).Set(o.Executed)
	} else {
		clone.Executed = big.NewInt(0)
	}
	return &clone
}

// Key returns the canonical lookup key for the single redemption offer.
func (o *SingleRedemptionOffer) Key() string {
	return PairKey(o.Input, o.Output)
}
