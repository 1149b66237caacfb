// Package extension provides the Forge extension adapter for tokensale.
//
// It implements the forge.Extension interface to integrate the ledger and
// sale engines into a Forge application with automatic dependency
// discovery, DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.tokensale" or
// "tokensale" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/tokensale"
	"github.com/xraph/tokensale/capability"
	"github.com/xraph/tokensale/id"
	"github.com/xraph/tokensale/payment"
	"github.com/xraph/tokensale/store"
	"github.com/xraph/tokensale/store/memory"
	"github.com/xraph/tokensale/types"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "tokensale"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Capped-asset ledger and multi-round sale engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the tokensale engines as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	ledger     *tokensale.Ledger
	sale       *tokensale.Sale
	store      store.Store
	roles      capability.Oracle
	asset      payment.Asset
	supplyCap  types.Amount
	capSet     bool
	wallet     id.AccountID
	ledgerOpts []tokensale.LedgerOption
	saleOpts   []tokensale.SaleOption
	useGrove   bool
}

// New creates a new tokensale Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ledger returns the underlying ledger engine.
// This is nil until Register is called.
func (e *Extension) Ledger() *tokensale.Ledger { return e.ledger }

// Sale returns the underlying sale engine, nil when no payment asset was
// configured or Register has not run yet.
func (e *Extension) Sale() *tokensale.Sale { return e.sale }

// Register implements [forge.Extension]. It loads configuration,
// initializes the engines, and registers them in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}
	if e.roles == nil {
		e.roles = capability.NewRegistry()
	}

	supplyCap, err := e.resolveCap()
	if err != nil {
		return err
	}

	ledgerOpts := make([]tokensale.LedgerOption, 0, len(e.ledgerOpts)+1)
	if e.config.Decimals > 0 {
		ledgerOpts = append(ledgerOpts, tokensale.WithDecimals(e.config.Decimals))
	}
	ledgerOpts = append(ledgerOpts, e.ledgerOpts...)

	e.ledger = tokensale.NewLedger(e.store, e.roles, supplyCap, ledgerOpts...)

	if err := vessel.Provide(fapp.Container(), func() (*tokensale.Ledger, error) {
		return e.ledger, nil
	}); err != nil {
		return err
	}

	// The sale engine only exists when a payment asset is configured.
	if e.asset == nil {
		return nil
	}

	wallet, err := e.resolveWallet()
	if err != nil {
		return err
	}

	saleOpts := make([]tokensale.SaleOption, 0, len(e.saleOpts)+1)
	if e.config.DustFinalization {
		saleOpts = append(saleOpts, tokensale.WithDustFinalization())
	}
	saleOpts = append(saleOpts, e.saleOpts...)

	e.sale = tokensale.NewSale(e.store, e.ledger, e.asset, wallet, e.roles, saleOpts...)

	return vessel.Provide(fapp.Container(), func() (*tokensale.Sale, error) {
		return e.sale, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.ledger == nil {
		return errors.New("tokensale: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.ledger.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.ledger != nil {
		if err := e.ledger.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("tokensale: store not initialized")
	}
	return e.store.Ping(ctx)
}

// resolveCap returns the supply cap from programmatic options or YAML.
func (e *Extension) resolveCap() (types.Amount, error) {
	if e.capSet {
		return e.supplyCap, nil
	}
	if e.config.Cap == "" {
		return types.Amount{}, errors.New("tokensale: supply cap is required; " +
			"set 'cap' in config or use extension.WithCap")
	}
	supplyCap, err := types.ParseAmount(e.config.Cap)
	if err != nil {
		return types.Amount{}, fmt.Errorf("tokensale: invalid cap %q: %w", e.config.Cap, err)
	}
	return supplyCap, nil
}

// resolveWallet returns the treasury wallet from programmatic options or YAML.
func (e *Extension) resolveWallet() (id.AccountID, error) {
	if !e.wallet.IsNil() {
		return e.wallet, nil
	}
	if e.config.Wallet == "" {
		return id.Nil, errors.New("tokensale: treasury wallet is required when a payment asset is set; " +
			"set 'wallet' in config or use extension.WithWallet")
	}
	wallet, err := id.ParseAccountID(e.config.Wallet)
	if err != nil {
		return id.Nil, fmt.Errorf("tokensale: invalid wallet %q: %w", e.config.Wallet, err)
	}
	return wallet, nil
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("tokensale: configuration is required but not found in config files; " +
				"ensure 'extensions.tokensale' or 'tokensale' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("tokensale: configuration loaded",
		forge.F("cap", e.config.Cap),
		forge.F("decimals", e.config.Decimals),
		forge.F("wallet", e.config.Wallet),
		forge.F("dust_finalization", e.config.DustFinalization),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("grove_database", e.config.GroveDatabase),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.tokensale" first (namespaced pattern).
	if cm.IsSet("extensions.tokensale") {
		if err := cm.Bind("extensions.tokensale", &cfg); err == nil {
			e.Logger().Debug("tokensale: loaded config from file",
				forge.F("key", "extensions.tokensale"),
			)
			return cfg, true
		}
		e.Logger().Warn("tokensale: failed to bind extensions.tokensale config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "tokensale" key.
	if cm.IsSet("tokensale") {
		if err := cm.Bind("tokensale", &cfg); err == nil {
			e.Logger().Debug("tokensale: loaded config from file",
				forge.F("key", "tokensale"),
			)
			return cfg, true
		}
		e.Logger().Warn("tokensale: failed to bind tokensale config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Decimals == 0 {
		cfg.Decimals = defaults.Decimals
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.DustFinalization {
		yamlConfig.DustFinalization = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.Cap == "" && programmaticConfig.Cap != "" {
		yamlConfig.Cap = programmaticConfig.Cap
	}
	if yamlConfig.Wallet == "" && programmaticConfig.Wallet != "" {
		yamlConfig.Wallet = programmaticConfig.Wallet
	}
	if yamlConfig.GroveDatabase == "" && programmaticConfig.GroveDatabase != "" {
		yamlConfig.GroveDatabase = programmaticConfig.GroveDatabase
	}

	if yamlConfig.Decimals == 0 && programmaticConfig.Decimals != 0 {
		yamlConfig.Decimals = programmaticConfig.Decimals
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
