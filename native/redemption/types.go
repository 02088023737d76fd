package redemption

import "math/big"

// RequestStatus tracks the lifecycle of a deferred redemption request. The
// only legal transitions are Pending to Executed and Pending to Cancelled.
type RequestStatus uint8

const (
	StatusPending RequestStatus = iota + 1
	StatusExecuted
	StatusCancelled
)

// Valid reports whether the status value is within the supported range.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusExecuted, StatusCancelled:
		return true
	default:
		return false
	}
}

// Request is a deferred redemption keyed by (offer, redeemer, nonce). The
// escrowed amount settles at the live price at fulfilment time, not the price
// at creation.
type Request struct {
	Input     string
	Output    string
	Redeemer  [20]byte
	Nonce     uint64
	Amount    *big.Int
	ExpiresAt int64
	CreatedAt int64
	Status    RequestStatus
}

// Clone returns a deep copy of the request.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	clone := *r
	if r.Amount != nil {
		clone.Amount = new(big.Int).Set(r.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}
