// Package plugin provides an extensible plugin system for the token sale
// engine. Plugins hook into ledger and sale lifecycle events; these hooks
// are the engine's event surface.
package plugin

import (
	"context"

	"github.com/xraph/tokensale/id"
	"github.com/xraph/tokensale/sale"
	"github.com/xraph/tokensale/token"
	"github.com/xraph/tokensale/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts. The engine argument is the
// *tokensale.Ledger or *tokensale.Sale the registry belongs to.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnIssued is called after new supply is minted to a recipient.
type OnIssued interface {
	Plugin
	OnIssued(ctx context.Context, recipient id.AccountID, amount, newSupply types.Amount) error
}

// OnBatchIssued is called after a batch issuance commits. Individual
// OnIssued hooks do not fire for batch entries.
type OnBatchIssued interface {
	Plugin
	OnBatchIssued(ctx context.Context, credits []token.Credit, newSupply types.Amount) error
}

// OnTransferred is called after an ordinary account-to-account transfer.
type OnTransferred interface {
	Plugin
	OnTransferred(ctx context.Context, from, to id.AccountID, amount types.Amount) error
}

// OnRetired is called after supply is burned from an account.
type OnRetired interface {
	Plugin
	OnRetired(ctx context.Context, account id.AccountID, amount, newSupply types.Amount) error
}

// OnWhitelistAdded is called when an account joins the transfer whitelist.
type OnWhitelistAdded interface {
	Plugin
	OnWhitelistAdded(ctx context.Context, account id.AccountID) error
}

// OnWhitelistRemoved is called when an account leaves the transfer whitelist.
type OnWhitelistRemoved interface {
	Plugin
	OnWhitelistRemoved(ctx context.Context, account id.AccountID) error
}

// ──────────────────────────────────────────────────
// Sale hooks
// ──────────────────────────────────────────────────

// OnRoundStarted is called when a new sale round is configured.
type OnRoundStarted interface {
	Plugin
	OnRoundStarted(ctx context.Context, round *sale.Round) error
}

// OnRoundFinalized is called when a round closes, whether by exact cap
// exhaustion inside a purchase or by an administrative stop.
type OnRoundFinalized interface {
	Plugin
	OnRoundFinalized(ctx context.Context, round *sale.Round) error
}

// OnPurchase is called after a purchase fully completes: accounting
// committed, payment collected, tokens issued.
type OnPurchase interface {
	Plugin
	OnPurchase(ctx context.Context, purchase *sale.Purchase) error
}
