package settle

import (
	"errors"
	"math/big"
)

var (
	ErrMissingApproverSignature = errors.New("settle: approver signature missing")
	ErrInvalidApproverSignature = errors.New("settle: approver signature does not bind this take")
	ErrApprovalExpired          = errors.New("settle: approval expired")
)

// Approval is a capability token produced by the out-of-band signature
// verification step. The engine never verifies signatures itself; it only
// checks that an already-verified approval is present and bound to the
// (taker, amount, expiry) tuple of the take.
type Approval struct {
	Taker  [20]byte
	Amount *big.Int
	Expiry int64
}

func checkApproval(approval *Approval, taker [20]byte, amount *big.Int, now int64) error {
	if approval == nil {
		return ErrMissingApproverSignature
	}
	if approval.Taker != taker {
		return ErrInvalidApproverSignature
	}
	if approval.Amount == nil || amount == nil || approval.Amount.Cmp(amount) != 0 {
		return ErrInvalidApproverSignature
	}
	if approval.Expiry < now {
		return ErrApprovalExpired
	}
	return nil
}
