package tokensale

import (
	"github.com/xraph/tokensale/id"
	"github.com/xraph/tokensale/sale"
	"github.com/xraph/tokensale/token"
	"github.com/xraph/tokensale/types"
)

// Re-export common types for convenience so users don't have to import subpackages.

// Amount is re-exported from types package.
type Amount = types.Amount

// Entity is re-exported from types package.
type Entity = types.Entity

// AccountID is re-exported from id package.
type AccountID = id.AccountID

// PurchaseID is re-exported from id package.
type PurchaseID = id.PurchaseID

// Credit is re-exported from token package.
type Credit = token.Credit

// Balance is re-exported from token package.
type Balance = token.Balance

// Round is re-exported from sale package.
type Round = sale.Round

// Purchase is re-exported from sale package.
type Purchase = sale.Purchase

// ListOpts is re-exported from sale package.
type ListOpts = sale.ListOpts

// Re-export Amount constructors
var (
	NewAmount   = types.NewAmount
	ParseAmount = types.ParseAmount
	MustAmount  = types.MustAmount
	Units       = types.Units
	Pow10       = types.Pow10
	Sum         = types.Sum
)

// Re-export id constructors
var (
	NewAccountID   = id.NewAccountID
	ParseAccountID = id.ParseAccountID
	NewPurchaseID  = id.NewPurchaseID
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
