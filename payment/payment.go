// Package payment abstracts the external payment asset a sale collects.
// The sale engine depends only on the Asset interface: a "debit payer,
// credit payee" primitive with its own decimal precision, independent of
// the ledger's.
package payment

import (
	"context"
	"errors"

	"github.com/xraph/tokensale/id"
	"github.com/xraph/tokensale/types"
)

// ErrInsufficientFunds is returned by an Asset when the payer's balance
// cannot cover the transfer.
var ErrInsufficientFunds = errors.New("payment: insufficient funds")

// Asset is the payment collaborator's transfer primitive.
type Asset interface {
	// Transfer debits amount from the payer and credits the payee
	// atomically. A failed transfer must leave both balances unchanged.
	Transfer(ctx context.Context, from, to id.AccountID, amount types.Amount) error

	// Decimals reports the asset's decimal precision.
	Decimals() uint8
}
