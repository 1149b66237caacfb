// Package token defines the restricted ledger's domain records: account
// balances, issuance credits, and whitelist membership.
package token

import (
	"github.com/xraph/tokensale/id"
	"github.com/xraph/tokensale/types"
)

// MaxBatchSize is the largest number of entries a single batch issuance
// will accept.
const MaxBatchSize = 100

// Balance is an account's holding in the ledger's smallest units.
type Balance struct {
	types.Entity
	Account id.AccountID `json:"account"`
	Amount  types.Amount `json:"amount"`
}

// Credit is one entry of a batch issuance: a recipient and the amount
// of new supply to mint for it.
type Credit struct {
	Recipient id.AccountID `json:"recipient"`
	Amount    types.Amount `json:"amount"`
}

// Total sums the amounts of a credit list.
func Total(credits []Credit) types.Amount {
	total := types.Amount{}
	for _, c := range credits {
		total = total.Add(c.Amount)
	}
	return total
}

// WhitelistEntry records an account's admission to the transfer whitelist.
type WhitelistEntry struct {
	types.Entity
	Account id.AccountID `json:"account"`
}
