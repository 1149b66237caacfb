package tokensale

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/xraph/tokensale/capability"
	"github.com/xraph/tokensale/id"
	"github.com/xraph/tokensale/payment"
	"github.com/xraph/tokensale/plugin"
	"github.com/xraph/tokensale/sale"
	"github.com/xraph/tokensale/store"
	"github.com/xraph/tokensale/types"
)

// Sale is the multi-round sale engine. It exchanges a payment asset for
// ledger units at an administrator-configured rate, enforcing per-round
// caps, minimum purchase sizes and timing windows.
//
// A Sale holds exactly one Ledger, one payment asset and one treasury
// wallet, all fixed at construction. Round accounting commits to the
// store before any external call so a re-entrant collaborator can never
// observe stale round capacity; the non-reentrant guard rejects the
// re-entry itself.
type Sale struct {
	store   store.Store
	ledger  *Ledger
	asset   payment.Asset
	wallet  id.AccountID
	roles   capability.Oracle
	plugins *plugin.Registry
	logger  *slog.Logger

	// account is the engine's own identity. Grant it the issuer role so
	// purchases can mint to buyers.
	account id.AccountID

	// tokenScale is 10^(ledger decimals), captured once at construction.
	tokenScale types.Amount

	// dustClose finalizes a round early once its remaining capacity costs
	// less than one minimum purchase. Off by default: exact cap
	// exhaustion is the canonical finalization trigger.
	dustClose bool

	now func() time.Time

	guard reentrancyGuard
}

// NewSale creates a Sale bound to the given store, ledger, payment asset,
// treasury wallet and capability oracle.
func NewSale(s store.Store, l *Ledger, asset payment.Asset, wallet id.AccountID, roles capability.Oracle, opts ...SaleOption) *Sale {
	e := &Sale{
		store:      s,
		ledger:     l,
		asset:      asset,
		wallet:     wallet,
		roles:      roles,
		plugins:    plugin.NewRegistry(),
		logger:     slog.Default(),
		account:    id.NewAccountID(),
		tokenScale: l.Unit(),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// SaleOption configures a Sale instance.
type SaleOption func(*Sale)

// WithSaleLogger sets the logger.
func WithSaleLogger(logger *slog.Logger) SaleOption {
	return func(e *Sale) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithSalePlugin registers a plugin.
func WithSalePlugin(p plugin.Plugin) SaleOption {
	return func(e *Sale) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithSaleAccount sets the engine's own account identity instead of
// generating one.
func WithSaleAccount(account id.AccountID) SaleOption {
	return func(e *Sale) {
		e.account = account
	}
}

// WithDustFinalization finalizes a round as soon as its remaining
// capacity cannot cover one minimum purchase, instead of waiting for
// exact cap exhaustion or an administrative stop.
func WithDustFinalization() SaleOption {
	return func(e *Sale) {
		e.dustClose = true
	}
}

// WithClock injects the time source. Tests use this to step through
// round timing windows.
func WithClock(now func() time.Time) SaleOption {
	return func(e *Sale) {
		e.now = now
	}
}

// reentrancyGuard is a per-engine mutual-exclusion flag set on entry to
// every mutating operation and cleared on exit, including failure exits.
// A collaborator calling back into the engine mid-operation trips the
// flag and is rejected instead of observing half-committed state.
type reentrancyGuard struct {
	busy atomic.Bool
}

func (g *reentrancyGuard) enter() bool { return g.busy.CompareAndSwap(false, true) }
func (g *reentrancyGuard) exit()       { g.busy.Store(false) }

// ──────────────────────────────────────────────────
// Round control
// ──────────────────────────────────────────────────

// StartSale configures and opens a new sale round. Requires the admin
// capability. Only permitted when no round exists or the latest round is
// finalized. Round IDs grow by exactly one and are never reused.
func (e *Sale) StartSale(ctx context.Context, actor id.AccountID, startTime time.Time, minPurchase, rate, roundCap types.Amount) (*sale.Round, error) {
	if err := e.requireAdmin(ctx, actor); err != nil {
		return nil, err
	}

	if !e.guard.enter() {
		return nil, ErrReentrantCall
	}
	defer e.guard.exit()

	currentID, err := e.store.CurrentRoundID(ctx)
	if err != nil {
		return nil, err
	}
	if currentID != 0 {
		current, err := e.store.GetRound(ctx, currentID)
		if err != nil {
			return nil, err
		}
		if !current.Finalized {
			return nil, ErrSaleMustNotBeActive
		}
	}

	if startTime.Before(e.now()) {
		return nil, ErrIncorrectStartTime
	}
	if rate.IsZero() || roundCap.IsZero() {
		return nil, ErrZeroParam
	}
	if unit := e.ledger.Unit(); minPurchase.LessThan(unit) {
		return nil, &BelowMinPurchaseError{Required: unit, Actual: minPurchase}
	}

	round := &sale.Round{
		Entity:      types.NewEntity(),
		ID:          currentID + 1,
		StartTime:   startTime,
		MinPurchase: minPurchase,
		Rate:        rate,
		Cap:         roundCap,
	}

	if err := e.store.CreateRound(ctx, round); err != nil {
		return nil, err
	}

	e.plugins.EmitRoundStarted(ctx, round)
	e.logger.Info("sale round started",
		"round", round.ID,
		"start_time", startTime,
		"rate", rate.String(),
		"cap", roundCap.String(),
	)
	return round, nil
}

// StopSale finalizes the current round. Requires the admin capability.
// Finalization is one-way: no further Buy or StopSale succeeds on the
// round afterwards.
func (e *Sale) StopSale(ctx context.Context, actor id.AccountID) error {
	if err := e.requireAdmin(ctx, actor); err != nil {
		return err
	}

	if !e.guard.enter() {
		return ErrReentrantCall
	}
	defer e.guard.exit()

	currentID, err := e.store.CurrentRoundID(ctx)
	if err != nil {
		return err
	}
	if currentID == 0 {
		return ErrSaleNotInitialized
	}

	round, err := e.store.GetRound(ctx, currentID)
	if err != nil {
		return err
	}
	if round.Finalized {
		return ErrSaleIsFinalized
	}

	if err := e.store.FinalizeRound(ctx, currentID); err != nil {
		return err
	}
	round.Finalized = true

	e.plugins.EmitRoundFinalized(ctx, round)
	e.logger.Info("sale round stopped", "round", round.ID)
	return nil
}

// ──────────────────────────────────────────────────
// Purchase
// ──────────────────────────────────────────────────

// Buy purchases amount ledger units in the current round, paying
// ⌊amount × rate / tokenScale⌋ payment units into the treasury wallet.
// Exact exhaustion of the round cap finalizes the round in the same
// step.
//
// The round accounting is committed before the payment transfer and the
// issuance call, and the whole body runs under the non-reentrant guard;
// a malicious payment asset or ledger store cannot re-enter and spend
// the round's capacity twice.
func (e *Sale) Buy(ctx context.Context, buyer id.AccountID, amount types.Amount) (*sale.Purchase, error) {
	if !e.guard.enter() {
		return nil, ErrReentrantCall
	}
	defer e.guard.exit()

	if buyer.IsNil() {
		return nil, fmt.Errorf("%w: buyer must be a real account", ErrInvalidInput)
	}

	currentID, err := e.store.CurrentRoundID(ctx)
	if err != nil {
		return nil, err
	}
	if currentID == 0 {
		return nil, ErrSaleNotInitialized
	}

	round, err := e.store.GetRound(ctx, currentID)
	if err != nil {
		return nil, err
	}
	if e.now().Before(round.StartTime) {
		return nil, ErrSaleNotStarted
	}
	if round.Finalized {
		return nil, ErrSaleIsFinalized
	}
	if amount.LessThan(round.MinPurchase) {
		return nil, &BelowMinPurchaseError{Required: round.MinPurchase, Actual: amount}
	}

	paymentAmount := amount.MulDiv(round.Rate, e.tokenScale)
	if paymentAmount.IsZero() {
		// Unreachable when minPurchase >= one whole token and rate > 0.
		// A zero here means the round was configured to price every valid
		// purchase at nothing, which is a deployment bug, not user error.
		panic(fmt.Sprintf("tokensale: round %d prices %s at zero payment units", round.ID, amount))
	}

	prevTotal := round.TotalInvestment
	newTotal := prevTotal.Add(paymentAmount)
	if newTotal.GreaterThan(round.Cap) {
		return nil, fmt.Errorf("%w: %s of %s remaining", ErrMaxCapReached,
			round.Remaining(), round.Cap)
	}

	finalized := newTotal.Equal(round.Cap)
	if !finalized && e.dustClose {
		minCost := round.MinPurchase.MulDiv(round.Rate, e.tokenScale)
		finalized = round.Cap.Sub(newTotal).LessThan(minCost)
	}

	// Commit accounting before touching any collaborator.
	if err := e.store.RecordInvestment(ctx, round.ID, newTotal, finalized); err != nil {
		return nil, err
	}
	round.TotalInvestment = newTotal
	round.Finalized = finalized

	if err := e.asset.Transfer(ctx, buyer, e.wallet, paymentAmount); err != nil {
		e.rollbackInvestment(ctx, round.ID, prevTotal)
		return nil, fmt.Errorf("tokensale: collect payment: %w", err)
	}

	if err := e.ledger.Issue(ctx, e.account, buyer, amount); err != nil {
		// Undo the payment as well; the buyer paid for units that never
		// existed.
		if refundErr := e.asset.Transfer(ctx, e.wallet, buyer, paymentAmount); refundErr != nil {
			e.logger.Error("refund after failed issuance also failed",
				"round", round.ID,
				"buyer", buyer.String(),
				"amount", paymentAmount.String(),
				"error", refundErr,
			)
		}
		e.rollbackInvestment(ctx, round.ID, prevTotal)
		return nil, fmt.Errorf("tokensale: issue purchased units: %w", err)
	}

	purchase := &sale.Purchase{
		Entity:        types.NewEntity(),
		ID:            id.NewPurchaseID(),
		RoundID:       round.ID,
		Buyer:         buyer,
		TokenAmount:   amount,
		PaymentAmount: paymentAmount,
	}
	if err := e.store.AppendPurchase(ctx, purchase); err != nil {
		// The purchase itself is complete; the log entry is secondary.
		e.logger.Error("append purchase record failed",
			"round", round.ID,
			"purchase", purchase.ID.String(),
			"error", err,
		)
	}

	if finalized {
		e.plugins.EmitRoundFinalized(ctx, round)
	}
	e.plugins.EmitPurchase(ctx, purchase)
	e.logger.Info("purchase completed",
		"round", round.ID,
		"buyer", buyer.String(),
		"tokens", amount.String(),
		"payment", paymentAmount.String(),
		"finalized", finalized,
	)
	return purchase, nil
}

// rollbackInvestment restores a round's running total after a failed
// external call. It runs under the guard, so nothing can observe the
// intermediate total.
func (e *Sale) rollbackInvestment(ctx context.Context, roundID uint64, total types.Amount) {
	if err := e.store.RecordInvestment(ctx, roundID, total, false); err != nil {
		e.logger.Error("rollback investment failed",
			"round", roundID,
			"total", total.String(),
			"error", err,
		)
	}
}

// ──────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────

// CurrentSaleID returns the current round id, 0 when no round exists.
func (e *Sale) CurrentSaleID(ctx context.Context) (uint64, error) {
	return e.store.CurrentRoundID(ctx)
}

// CurrentSale returns the current round, or a zero record when no round
// exists.
func (e *Sale) CurrentSale(ctx context.Context) (*sale.Round, error) {
	currentID, err := e.store.CurrentRoundID(ctx)
	if err != nil {
		return nil, err
	}
	if currentID == 0 {
		return &sale.Round{}, nil
	}
	return e.GetSale(ctx, currentID)
}

// GetSale returns the round with the given id, or a zero record when the
// round does not exist. Historical rounds stay queryable forever.
func (e *Sale) GetSale(ctx context.Context, roundID uint64) (*sale.Round, error) {
	round, err := e.store.GetRound(ctx, roundID)
	if err != nil {
		if errors.Is(err, ErrRoundNotFound) {
			return &sale.Round{}, nil
		}
		return nil, err
	}
	return round, nil
}

// PaymentAmount computes the payment cost of amount ledger units at the
// current round's rate: ⌊amount × rate / tokenScale⌋. Returns zero when
// no round exists.
func (e *Sale) PaymentAmount(ctx context.Context, amount types.Amount) (types.Amount, error) {
	round, err := e.CurrentSale(ctx)
	if err != nil {
		return types.Amount{}, err
	}
	if round.ID == 0 {
		return types.Amount{}, nil
	}
	return amount.MulDiv(round.Rate, e.tokenScale), nil
}

// Rounds lists configured rounds.
func (e *Sale) Rounds(ctx context.Context, opts sale.ListOpts) ([]*sale.Round, error) {
	return e.store.ListRounds(ctx, opts)
}

// Purchases lists the completed purchases of a round.
func (e *Sale) Purchases(ctx context.Context, roundID uint64, opts sale.ListOpts) ([]*sale.Purchase, error) {
	return e.store.ListPurchases(ctx, roundID, opts)
}

// Wallet returns the treasury wallet credited by purchases.
func (e *Sale) Wallet() id.AccountID { return e.wallet }

// PaymentAsset returns the payment collaborator.
func (e *Sale) PaymentAsset() payment.Asset { return e.asset }

// Ledger returns the ledger this engine issues from.
func (e *Sale) Ledger() *Ledger { return e.ledger }

// Account returns the engine's own identity. Grant it the issuer role so
// purchases can mint.
func (e *Sale) Account() id.AccountID { return e.account }

// TokenScale returns 10^(ledger decimals) as captured at construction.
func (e *Sale) TokenScale() types.Amount { return e.tokenScale }

func (e *Sale) requireAdmin(ctx context.Context, actor id.AccountID) error {
	held, err := e.roles.HasRole(ctx, actor, capability.RoleAdmin)
	if err != nil {
		return err
	}
	if !held {
		return fmt.Errorf("%w: %s requires role %q", ErrUnauthorized, actor, capability.RoleAdmin)
	}
	return nil
}
