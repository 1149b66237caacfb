// Package tokensale provides a composable capped-asset ledger and sale engine for Go applications.
//
// Tokensale is designed as a library, not a service. Import it directly into
// your Go application for maximum performance and flexibility. It provides:
//
//   - A capped fungible ledger with role-gated issuance
//   - Destination whitelisting enforced on every movement
//   - Batch issuance with all-or-nothing cap accounting
//   - A multi-round sale engine with fixed-rate pricing and per-round caps
//   - Re-entrancy defense around every mutating sale operation
//   - Pluggable stores (memory, SQLite, Postgres, MongoDB)
//   - Typed plugin hooks for every state transition
//
// # Quick Start
//
// Create a ledger and a sale with your preferred store:
//
//	import (
//	    "github.com/xraph/tokensale"
//	    "github.com/xraph/tokensale/capability"
//	    "github.com/xraph/tokensale/payment"
//	    "github.com/xraph/tokensale/store/memory"
//	)
//
//	store := memory.New()
//	roles := capability.NewRegistry()
//
//	// 100,000 whole units at 18 decimals.
//	cap := tokensale.Units(100_000, 18)
//	ledger := tokensale.NewLedger(store, roles, cap)
//
//	if err := ledger.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer ledger.Stop()
//
//	asset := payment.NewMemoryAsset(6)
//	treasury := tokensale.NewAccountID()
//	sale := tokensale.NewSale(store, ledger, asset, treasury, roles)
//
//	// The sale mints on behalf of buyers, so it needs the issuer role.
//	roles.Grant(ctx, sale.Account(), capability.RoleIssuer)
//
// # Core Concepts
//
// The ledger enforces a hard supply cap fixed at construction. Issuance is
// restricted to accounts holding the issuer role, and every movement of
// units, including issuance and transfers, requires the destination to be
// whitelisted. Retirement destroys units permanently and reduces supply,
// freeing room under the cap:
//
//	roles.Grant(ctx, issuer, capability.RoleIssuer)
//	ledger.AddToWhitelist(ctx, admin, investor)
//	ledger.Issue(ctx, issuer, investor, tokensale.Units(500, 18))
//
// The sale engine runs sequential rounds. Each round carries a start time, a
// minimum purchase, a fixed rate and a hard cap on collected payment. Buyers
// pay rate-proportional payment units into a treasury wallet and receive
// freshly issued ledger units in the same operation. A round that collects
// exactly its cap finalizes itself; an administrator can finalize early with
// StopSale:
//
//	sale.StartSale(ctx, admin, time.Now(), minPurchase, rate, roundCap)
//	purchase, err := sale.Buy(ctx, investor, tokensale.Units(10, 18))
//
// Pricing uses floor division, so payment = ⌊amount × rate / 10^decimals⌋.
// Sub-unit remainders always favor the buyer by at most one payment unit.
//
// # Plugins
//
// Plugins observe state transitions through typed hook interfaces. A plugin
// implements only the hooks it cares about:
//
//	type supplyWatcher struct{}
//
//	func (supplyWatcher) Name() string { return "supply-watcher" }
//
//	func (supplyWatcher) OnIssued(ctx context.Context, recipient tokensale.AccountID, amount, newSupply tokensale.Amount) error {
//	    log.Printf("supply now %s", newSupply)
//	    return nil
//	}
//
//	ledger := tokensale.NewLedger(store, roles, cap,
//	    tokensale.WithLedgerPlugin(supplyWatcher{}))
//
// # Stores
//
// All state lives behind the store.Store interface. The memory store suits
// tests and single-process embedding; the SQLite, Postgres and MongoDB
// drivers persist across restarts and share state between processes.
package tokensale
