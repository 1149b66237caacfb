// Package observability provides a metrics extension that records ledger
// and sale lifecycle event counts via a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/tokensale/id"
	"github.com/xraph/tokensale/plugin"
	"github.com/xraph/tokensale/sale"
	"github.com/xraph/tokensale/token"
	"github.com/xraph/tokensale/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin             = (*MetricsExtension)(nil)
	_ plugin.OnInit             = (*MetricsExtension)(nil)
	_ plugin.OnIssued           = (*MetricsExtension)(nil)
	_ plugin.OnBatchIssued      = (*MetricsExtension)(nil)
	_ plugin.OnTransferred      = (*MetricsExtension)(nil)
	_ plugin.OnRetired          = (*MetricsExtension)(nil)
	_ plugin.OnWhitelistAdded   = (*MetricsExtension)(nil)
	_ plugin.OnWhitelistRemoved = (*MetricsExtension)(nil)
	_ plugin.OnRoundStarted     = (*MetricsExtension)(nil)
	_ plugin.OnRoundFinalized   = (*MetricsExtension)(nil)
	_ plugin.OnPurchase         = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a plugin on both the Ledger and the Sale to track the
// full event surface.
type MetricsExtension struct {
	factory MetricFactory

	// Issuance metrics
	Issued          Counter
	BatchIssued     Counter
	BatchSize       Histogram
	SupplyRemaining Histogram

	// Movement metrics
	Transfers   Counter
	Retirements Counter

	// Whitelist metrics
	WhitelistAdded   Counter
	WhitelistRemoved Counter

	// Sale metrics
	RoundsStarted   Counter
	RoundsFinalized Counter
	Purchases       Counter
	PurchaseTokens  Histogram
	PurchasePayment Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Issuance metrics
		Issued:          factory.Counter("tokensale.issued"),
		BatchIssued:     factory.Counter("tokensale.batch.issued"),
		BatchSize:       factory.Histogram("tokensale.batch.size"),
		SupplyRemaining: factory.Histogram("tokensale.supply.total"),

		// Movement metrics
		Transfers:   factory.Counter("tokensale.transfers"),
		Retirements: factory.Counter("tokensale.retirements"),

		// Whitelist metrics
		WhitelistAdded:   factory.Counter("tokensale.whitelist.added"),
		WhitelistRemoved: factory.Counter("tokensale.whitelist.removed"),

		// Sale metrics
		RoundsStarted:   factory.Counter("tokensale.rounds.started"),
		RoundsFinalized: factory.Counter("tokensale.rounds.finalized"),
		Purchases:       factory.Counter("tokensale.purchases"),
		PurchaseTokens:  factory.Histogram("tokensale.purchase.tokens"),
		PurchasePayment: factory.Histogram("tokensale.purchase.payment"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Ledger lifecycle hooks
// ──────────────────────────────────────────────────

// OnIssued implements plugin.OnIssued.
func (m *MetricsExtension) OnIssued(_ context.Context, _ id.AccountID, _, newSupply types.Amount) error {
	m.Issued.Inc()
	m.SupplyRemaining.Observe(newSupply.Float64())
	return nil
}

// OnBatchIssued implements plugin.OnBatchIssued.
func (m *MetricsExtension) OnBatchIssued(_ context.Context, credits []token.Credit, newSupply types.Amount) error {
	m.BatchIssued.Inc()
	m.BatchSize.Observe(float64(len(credits)))
	m.SupplyRemaining.Observe(newSupply.Float64())
	return nil
}

// OnTransferred implements plugin.OnTransferred.
func (m *MetricsExtension) OnTransferred(_ context.Context, _, _ id.AccountID, _ types.Amount) error {
	m.Transfers.Inc()
	return nil
}

// OnRetired implements plugin.OnRetired.
func (m *MetricsExtension) OnRetired(_ context.Context, _ id.AccountID, _, newSupply types.Amount) error {
	m.Retirements.Inc()
	m.SupplyRemaining.Observe(newSupply.Float64())
	return nil
}

// OnWhitelistAdded implements plugin.OnWhitelistAdded.
func (m *MetricsExtension) OnWhitelistAdded(_ context.Context, _ id.AccountID) error {
	m.WhitelistAdded.Inc()
	return nil
}

// OnWhitelistRemoved implements plugin.OnWhitelistRemoved.
func (m *MetricsExtension) OnWhitelistRemoved(_ context.Context, _ id.AccountID) error {
	m.WhitelistRemoved.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Sale lifecycle hooks
// ──────────────────────────────────────────────────

// OnRoundStarted implements plugin.OnRoundStarted.
func (m *MetricsExtension) OnRoundStarted(_ context.Context, _ *sale.Round) error {
	m.RoundsStarted.Inc()
	return nil
}

// OnRoundFinalized implements plugin.OnRoundFinalized.
func (m *MetricsExtension) OnRoundFinalized(_ context.Context, _ *sale.Round) error {
	m.RoundsFinalized.Inc()
	return nil
}

// OnPurchase implements plugin.OnPurchase.
func (m *MetricsExtension) OnPurchase(_ context.Context, purchase *sale.Purchase) error {
	m.Purchases.Inc()
	m.PurchaseTokens.Observe(purchase.TokenAmount.Float64())
	m.PurchasePayment.Observe(purchase.PaymentAmount.Float64())
	return nil
}
