package extension

import (
	"github.com/xraph/tokensale"
	"github.com/xraph/tokensale/capability"
	"github.com/xraph/tokensale/id"
	"github.com/xraph/tokensale/payment"
	"github.com/xraph/tokensale/plugin"
	"github.com/xraph/tokensale/store"
	"github.com/xraph/tokensale/types"
)

// Option configures the tokensale Forge extension.
type Option func(*Extension)

// WithStore sets the store for both engines.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithRoles sets the capability oracle. Defaults to an in-memory registry.
func WithRoles(roles capability.Oracle) Option {
	return func(e *Extension) {
		e.roles = roles
	}
}

// WithCap sets the hard supply cap, overriding the YAML "cap" field.
func WithCap(supplyCap types.Amount) Option {
	return func(e *Extension) {
		e.supplyCap = supplyCap
		e.capSet = true
	}
}

// WithPaymentAsset sets the payment collaborator. The sale engine is only
// constructed when an asset is configured.
func WithPaymentAsset(asset payment.Asset) Option {
	return func(e *Extension) {
		e.asset = asset
	}
}

// WithWallet sets the treasury account credited by sale purchases,
// overriding the YAML "wallet" field.
func WithWallet(wallet id.AccountID) Option {
	return func(e *Extension) {
		e.wallet = wallet
	}
}

// WithLedgerOption passes a tokensale.LedgerOption through to the ledger.
func WithLedgerOption(opt tokensale.LedgerOption) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, opt)
	}
}

// WithSaleOption passes a tokensale.SaleOption through to the sale engine.
func WithSaleOption(opt tokensale.SaleOption) Option {
	return func(e *Extension) {
		e.saleOpts = append(e.saleOpts, opt)
	}
}

// WithPlugin registers a plugin on both engines.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, tokensale.WithLedgerPlugin(p))
		e.saleOpts = append(e.saleOpts, tokensale.WithSalePlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithDustFinalization finalizes a round early once its remaining
// capacity cannot cover one minimum purchase.
func WithDustFinalization() Option {
	return func(e *Extension) { e.config.DustFinalization = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithGroveDatabase sets the name of the grove.DB the host wires the store
// from. The host constructs the matching store driver (postgres/sqlite/mongo)
// over that database and passes it via WithStore; this option records the
// binding in config for operability.
func WithGroveDatabase(name string) Option {
	return func(e *Extension) {
		e.config.GroveDatabase = name
		e.useGrove = true
	}
}
