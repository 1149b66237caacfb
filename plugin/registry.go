package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/tokensale/id"
	"github.com/xraph/tokensale/sale"
	"github.com/xraph/tokensale/token"
	"github.com/xraph/tokensale/types"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit             []OnInit
	onShutdown         []OnShutdown
	onIssued           []OnIssued
	onBatchIssued      []OnBatchIssued
	onTransferred      []OnTransferred
	onRetired          []OnRetired
	onWhitelistAdded   []OnWhitelistAdded
	onWhitelistRemoved []OnWhitelistRemoved
	onRoundStarted     []OnRoundStarted
	onRoundFinalized   []OnRoundFinalized
	onPurchase         []OnPurchase
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnIssued); ok {
		r.onIssued = append(r.onIssued, v)
	}
	if v, ok := p.(OnBatchIssued); ok {
		r.onBatchIssued = append(r.onBatchIssued, v)
	}
	if v, ok := p.(OnTransferred); ok {
		r.onTransferred = append(r.onTransferred, v)
	}
	if v, ok := p.(OnRetired); ok {
		r.onRetired = append(r.onRetired, v)
	}
	if v, ok := p.(OnWhitelistAdded); ok {
		r.onWhitelistAdded = append(r.onWhitelistAdded, v)
	}
	if v, ok := p.(OnWhitelistRemoved); ok {
		r.onWhitelistRemoved = append(r.onWhitelistRemoved, v)
	}
	if v, ok := p.(OnRoundStarted); ok {
		r.onRoundStarted = append(r.onRoundStarted, v)
	}
	if v, ok := p.(OnRoundFinalized); ok {
		r.onRoundFinalized = append(r.onRoundFinalized, v)
	}
	if v, ok := p.(OnPurchase); ok {
		r.onPurchase = append(r.onPurchase, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnIssued)(nil)).Elem(), "OnIssued")
	checkInterface(reflect.TypeOf((*OnBatchIssued)(nil)).Elem(), "OnBatchIssued")
	checkInterface(reflect.TypeOf((*OnTransferred)(nil)).Elem(), "OnTransferred")
	checkInterface(reflect.TypeOf((*OnRetired)(nil)).Elem(), "OnRetired")
	checkInterface(reflect.TypeOf((*OnWhitelistAdded)(nil)).Elem(), "OnWhitelistAdded")
	checkInterface(reflect.TypeOf((*OnWhitelistRemoved)(nil)).Elem(), "OnWhitelistRemoved")
	checkInterface(reflect.TypeOf((*OnRoundStarted)(nil)).Elem(), "OnRoundStarted")
	checkInterface(reflect.TypeOf((*OnRoundFinalized)(nil)).Elem(), "OnRoundFinalized")
	checkInterface(reflect.TypeOf((*OnPurchase)(nil)).Elem(), "OnPurchase")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitIssued calls OnIssued for all plugins that implement it.
func (r *Registry) EmitIssued(ctx context.Context, recipient id.AccountID, amount, newSupply types.Amount) {
	r.mu.RLock()
	plugins := r.onIssued
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnIssued(ctx, recipient, amount, newSupply)
		}); err != nil {
			r.logger.Warn("plugin OnIssued failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitBatchIssued calls OnBatchIssued for all plugins that implement it.
func (r *Registry) EmitBatchIssued(ctx context.Context, credits []token.Credit, newSupply types.Amount) {
	r.mu.RLock()
	plugins := r.onBatchIssued
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnBatchIssued(ctx, credits, newSupply)
		}); err != nil {
			r.logger.Warn("plugin OnBatchIssued failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitTransferred calls OnTransferred for all plugins that implement it.
func (r *Registry) EmitTransferred(ctx context.Context, from, to id.AccountID, amount types.Amount) {
	r.mu.RLock()
	plugins := r.onTransferred
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnTransferred(ctx, from, to, amount)
		}); err != nil {
			r.logger.Warn("plugin OnTransferred failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitRetired calls OnRetired for all plugins that implement it.
func (r *Registry) EmitRetired(ctx context.Context, account id.AccountID, amount, newSupply types.Amount) {
	r.mu.RLock()
	plugins := r.onRetired
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRetired(ctx, account, amount, newSupply)
		}); err != nil {
			r.logger.Warn("plugin OnRetired failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitWhitelistAdded calls OnWhitelistAdded for all plugins that implement it.
func (r *Registry) EmitWhitelistAdded(ctx context.Context, account id.AccountID) {
	r.mu.RLock()
	plugins := r.onWhitelistAdded
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnWhitelistAdded(ctx, account)
		}); err != nil {
			r.logger.Warn("plugin OnWhitelistAdded failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitWhitelistRemoved calls OnWhitelistRemoved for all plugins that implement it.
func (r *Registry) EmitWhitelistRemoved(ctx context.Context, account id.AccountID) {
	r.mu.RLock()
	plugins := r.onWhitelistRemoved
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnWhitelistRemoved(ctx, account)
		}); err != nil {
			r.logger.Warn("plugin OnWhitelistRemoved failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitRoundStarted calls OnRoundStarted for all plugins that implement it.
func (r *Registry) EmitRoundStarted(ctx context.Context, round *sale.Round) {
	r.mu.RLock()
	plugins := r.onRoundStarted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRoundStarted(ctx, round)
		}); err != nil {
			r.logger.Warn("plugin OnRoundStarted failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitRoundFinalized calls OnRoundFinalized for all plugins that implement it.
func (r *Registry) EmitRoundFinalized(ctx context.Context, round *sale.Round) {
	r.mu.RLock()
	plugins := r.onRoundFinalized
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRoundFinalized(ctx, round)
		}); err != nil {
			r.logger.Warn("plugin OnRoundFinalized failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitPurchase calls OnPurchase for all plugins that implement it.
func (r *Registry) EmitPurchase(ctx context.Context, purchase *sale.Purchase) {
	r.mu.RLock()
	plugins := r.onPurchase
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPurchase(ctx, purchase)
		}); err != nil {
			r.logger.Warn("plugin OnPurchase failed", "plugin", p.Name(), "error", err)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins must never block the purchase pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
