// Package sale defines the sale engine's domain records: rounds and
// completed purchases.
package sale

import (
	"time"

	"github.com/xraph/tokensale/id"
	"github.com/xraph/tokensale/types"
)

// Status is the lifecycle state of a sale round.
type Status string

const (
	// StatusPending means the round exists but its start time is in the future.
	StatusPending Status = "pending"
	// StatusActive means the round is open for purchases.
	StatusActive Status = "active"
	// StatusFinalized means the round is closed; finalization is one-way.
	StatusFinalized Status = "finalized"
)

// Round is one configured sale window. Round IDs start at 1 and grow by
// exactly one per started round; ID 0 means "no round". Rounds are never
// deleted; historical rounds stay queryable forever.
type Round struct {
	types.Entity
	ID              uint64       `json:"id"`
	StartTime       time.Time    `json:"start_time"`
	MinPurchase     types.Amount `json:"min_purchase"`     // ledger smallest units
	Rate            types.Amount `json:"rate"`             // payment units per whole token
	Cap             types.Amount `json:"cap"`              // payment-asset units
	TotalInvestment types.Amount `json:"total_investment"` // payment-asset units
	Finalized       bool         `json:"finalized"`
}

// Status reports the round's state at the given instant.
func (r *Round) Status(now time.Time) Status {
	switch {
	case r.Finalized:
		return StatusFinalized
	case now.Before(r.StartTime):
		return StatusPending
	default:
		return StatusActive
	}
}

// Remaining returns the round's unspent capacity in payment-asset units.
func (r *Round) Remaining() types.Amount {
	if r.TotalInvestment.GreaterThan(r.Cap) {
		return types.Amount{}
	}
	return r.Cap.Sub(r.TotalInvestment)
}

// Purchase is the durable record of one completed buy.
type Purchase struct {
	types.Entity
	ID            id.PurchaseID `json:"id"`
	RoundID       uint64        `json:"round_id"`
	Buyer         id.AccountID  `json:"buyer"`
	TokenAmount   types.Amount  `json:"token_amount"`   // ledger smallest units issued
	PaymentAmount types.Amount  `json:"payment_amount"` // payment units collected
}

// ListOpts controls pagination for round and purchase listings.
type ListOpts struct {
	Limit  int
	Offset int
}
