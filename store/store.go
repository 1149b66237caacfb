// Package store defines the unified storage interface for the token sale
// engine. Drivers live in the subpackages memory, sqlite, postgres and
// mongo.
package store

import (
	"context"

	"github.com/xraph/tokensale/id"
	"github.com/xraph/tokensale/sale"
	"github.com/xraph/tokensale/token"
	"github.com/xraph/tokensale/types"
)

// Store is the unified storage interface for all token sale entities.
//
// The engines serialize mutating operations and validate every invariant
// before the single mutating store call of that operation, so each method
// here is a committed fact, not a request to validate. Mutating methods
// must apply their whole effect atomically: CreditBatch either applies
// every credit or none, Move either moves the full amount or nothing.
type Store interface {
	// Balance methods. Accounts with no recorded balance read as zero.
	GetBalance(ctx context.Context, account id.AccountID) (types.Amount, error)
	TotalSupply(ctx context.Context) (types.Amount, error)
	// Credit records issuance: recipient balance += amount, supply = newSupply.
	Credit(ctx context.Context, recipient id.AccountID, amount, newSupply types.Amount) error
	// CreditBatch records a batch issuance atomically.
	CreditBatch(ctx context.Context, credits []token.Credit, newSupply types.Amount) error
	// Debit records retirement: account balance -= amount, supply = newSupply.
	Debit(ctx context.Context, account id.AccountID, amount, newSupply types.Amount) error
	// Move records an ordinary transfer between two accounts.
	Move(ctx context.Context, from, to id.AccountID, amount types.Amount) error

	// Whitelist methods. Membership changes that are no-ops fail with the
	// corresponding sentinel so operator mistakes surface immediately.
	AddToWhitelist(ctx context.Context, account id.AccountID) error
	RemoveFromWhitelist(ctx context.Context, account id.AccountID) error
	IsWhitelisted(ctx context.Context, account id.AccountID) (bool, error)
	ListWhitelist(ctx context.Context) ([]id.AccountID, error)

	// Sale round methods. The registry is append-only; rounds are never
	// deleted and CurrentRoundID returns 0 until the first round exists.
	CreateRound(ctx context.Context, r *sale.Round) error
	GetRound(ctx context.Context, roundID uint64) (*sale.Round, error)
	CurrentRoundID(ctx context.Context) (uint64, error)
	// RecordInvestment commits a purchase's accounting: the round's new
	// running total and, on exact cap exhaustion, its finalized flag.
	RecordInvestment(ctx context.Context, roundID uint64, total types.Amount, finalized bool) error
	FinalizeRound(ctx context.Context, roundID uint64) error
	ListRounds(ctx context.Context, opts sale.ListOpts) ([]*sale.Round, error)

	// Purchase log methods.
	AppendPurchase(ctx context.Context, p *sale.Purchase) error
	ListPurchases(ctx context.Context, roundID uint64, opts sale.ListOpts) ([]*sale.Purchase, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
