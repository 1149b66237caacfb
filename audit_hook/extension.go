// Package audithook bridges tokensale lifecycle events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/xraph/tokensale/id"
	"github.com/xraph/tokensale/plugin"
	"github.com/xraph/tokensale/sale"
	"github.com/xraph/tokensale/token"
	"github.com/xraph/tokensale/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin             = (*Extension)(nil)
	_ plugin.OnIssued           = (*Extension)(nil)
	_ plugin.OnBatchIssued      = (*Extension)(nil)
	_ plugin.OnTransferred      = (*Extension)(nil)
	_ plugin.OnRetired          = (*Extension)(nil)
	_ plugin.OnWhitelistAdded   = (*Extension)(nil)
	_ plugin.OnWhitelistRemoved = (*Extension)(nil)
	_ plugin.OnRoundStarted     = (*Extension)(nil)
	_ plugin.OnRoundFinalized   = (*Extension)(nil)
	_ plugin.OnPurchase         = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// This matches chronicle.Emitter but is defined locally so that the
// audit_hook package does not import Chronicle directly; callers inject
// the concrete *chronicle.Chronicle at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges tokensale lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Ledger lifecycle hooks
// ──────────────────────────────────────────────────

// OnIssued implements plugin.OnIssued.
func (e *Extension) OnIssued(ctx context.Context, recipient id.AccountID, amount, newSupply types.Amount) error {
	return e.record(ctx, ActionIssued, SeverityInfo, OutcomeSuccess,
		ResourceSupply, recipient.String(), CategoryIssuance, nil,
		"recipient", recipient.String(),
		"amount", amount.String(),
		"new_supply", newSupply.String(),
	)
}

// OnBatchIssued implements plugin.OnBatchIssued.
func (e *Extension) OnBatchIssued(ctx context.Context, credits []token.Credit, newSupply types.Amount) error {
	return e.record(ctx, ActionBatchIssued, SeverityInfo, OutcomeSuccess,
		ResourceSupply, "", CategoryIssuance, nil,
		"batch_size", len(credits),
		"batch_total", token.Total(credits).String(),
		"new_supply", newSupply.String(),
	)
}

// OnTransferred implements plugin.OnTransferred.
func (e *Extension) OnTransferred(ctx context.Context, from, to id.AccountID, amount types.Amount) error {
	return e.record(ctx, ActionTransferred, SeverityInfo, OutcomeSuccess,
		ResourceBalance, from.String(), CategoryMovement, nil,
		"from", from.String(),
		"to", to.String(),
		"amount", amount.String(),
	)
}

// OnRetired implements plugin.OnRetired.
func (e *Extension) OnRetired(ctx context.Context, account id.AccountID, amount, newSupply types.Amount) error {
	return e.record(ctx, ActionRetired, SeverityWarning, OutcomeSuccess,
		ResourceSupply, account.String(), CategoryIssuance, nil,
		"account", account.String(),
		"amount", amount.String(),
		"new_supply", newSupply.String(),
	)
}

// OnWhitelistAdded implements plugin.OnWhitelistAdded.
func (e *Extension) OnWhitelistAdded(ctx context.Context, account id.AccountID) error {
	return e.record(ctx, ActionWhitelistAdded, SeverityInfo, OutcomeSuccess,
		ResourceWhitelist, account.String(), CategoryAccess, nil,
		"account", account.String(),
	)
}

// OnWhitelistRemoved implements plugin.OnWhitelistRemoved.
func (e *Extension) OnWhitelistRemoved(ctx context.Context, account id.AccountID) error {
	return e.record(ctx, ActionWhitelistRemoved, SeverityWarning, OutcomeSuccess,
		ResourceWhitelist, account.String(), CategoryAccess, nil,
		"account", account.String(),
	)
}

// ──────────────────────────────────────────────────
// Sale lifecycle hooks
// ──────────────────────────────────────────────────

// OnRoundStarted implements plugin.OnRoundStarted.
func (e *Extension) OnRoundStarted(ctx context.Context, round *sale.Round) error {
	return e.record(ctx, ActionRoundStarted, SeverityInfo, OutcomeSuccess,
		ResourceRound, strconv.FormatUint(round.ID, 10), CategorySale, nil,
		"round", round.ID,
		"start_time", round.StartTime,
		"rate", round.Rate.String(),
		"cap", round.Cap.String(),
		"min_purchase", round.MinPurchase.String(),
	)
}

// OnRoundFinalized implements plugin.OnRoundFinalized.
func (e *Extension) OnRoundFinalized(ctx context.Context, round *sale.Round) error {
	return e.record(ctx, ActionRoundFinalized, SeverityInfo, OutcomeSuccess,
		ResourceRound, strconv.FormatUint(round.ID, 10), CategorySale, nil,
		"round", round.ID,
		"total_investment", round.TotalInvestment.String(),
		"cap", round.Cap.String(),
	)
}

// OnPurchase implements plugin.OnPurchase.
func (e *Extension) OnPurchase(ctx context.Context, purchase *sale.Purchase) error {
	return e.record(ctx, ActionPurchase, SeverityInfo, OutcomeSuccess,
		ResourcePurchase, purchase.ID.String(), CategorySale, nil,
		"round", purchase.RoundID,
		"buyer", purchase.Buyer.String(),
		"tokens", purchase.TokenAmount.String(),
		"payment", purchase.PaymentAmount.String(),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
