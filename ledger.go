package tokensale

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/xraph/tokensale/capability"
	"github.com/xraph/tokensale/id"
	"github.com/xraph/tokensale/plugin"
	"github.com/xraph/tokensale/store"
	"github.com/xraph/tokensale/token"
	"github.com/xraph/tokensale/types"
)

// Ledger is the capped, whitelist-gated token ledger.
//
// Issuance is capability-gated and bounded by an immutable supply cap.
// Ordinary transfers only reach whitelisted destinations; retirement
// requires a whitelisted source; issuance itself bypasses the whitelist.
// The invariant sum(balances) == totalSupply ≤ cap holds after every
// committed operation.
type Ledger struct {
	store   store.Store
	roles   capability.Oracle
	plugins *plugin.Registry
	logger  *slog.Logger

	supplyCap types.Amount
	decimals  uint8

	// mu serializes mutating operations so that every validate-then-commit
	// sequence observes a stable supply and balance set.
	mu sync.Mutex
}

// NewLedger creates a Ledger with the given store, capability oracle and
// supply cap. The cap and decimal precision are fixed for the Ledger's
// lifetime.
func NewLedger(s store.Store, roles capability.Oracle, supplyCap types.Amount, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		store:     s,
		roles:     roles,
		plugins:   plugin.NewRegistry(),
		logger:    slog.Default(),
		supplyCap: supplyCap,
		decimals:  18,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// LedgerOption configures a Ledger instance.
type LedgerOption func(*Ledger)

// WithLedgerLogger sets the logger.
func WithLedgerLogger(logger *slog.Logger) LedgerOption {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithLedgerPlugin registers a plugin.
func WithLedgerPlugin(p plugin.Plugin) LedgerOption {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithDecimals sets the ledger's decimal precision (default 18).
func WithDecimals(decimals uint8) LedgerOption {
	return func(l *Ledger) {
		l.decimals = decimals
	}
}

// Start migrates the store and initializes plugins.
func (l *Ledger) Start(ctx context.Context) error {
	if err := l.store.Migrate(ctx); err != nil {
		return err
	}

	l.plugins.EmitInit(ctx, l)

	l.logger.Info("ledger started",
		"cap", l.supplyCap.String(),
		"decimals", l.decimals,
	)

	return nil
}

// Stop shuts down the Ledger and closes its store.
func (l *Ledger) Stop() error {
	l.plugins.EmitShutdown(context.Background())
	return l.store.Close()
}

// Cap returns the immutable maximum total supply.
func (l *Ledger) Cap() types.Amount { return l.supplyCap }

// Decimals returns the ledger's decimal precision.
func (l *Ledger) Decimals() uint8 { return l.decimals }

// Unit returns one whole token in smallest units (10^decimals).
func (l *Ledger) Unit() types.Amount { return types.Pow10(l.decimals) }

// ──────────────────────────────────────────────────
// Issuance
// ──────────────────────────────────────────────────

// Issue mints amount new units to recipient. Requires the issuer
// capability. The recipient does not need to be whitelisted: the
// whitelist governs transfer and retirement, not receipt of new supply.
func (l *Ledger) Issue(ctx context.Context, actor, recipient id.AccountID, amount types.Amount) error {
	if err := l.requireRole(ctx, actor, capability.RoleIssuer); err != nil {
		return err
	}
	if recipient.IsNil() {
		return fmt.Errorf("%w: issue to the void account", ErrInvalidInput)
	}
	if err := l.checkTransfer(ctx, id.Nil, recipient); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	supply, err := l.store.TotalSupply(ctx)
	if err != nil {
		return err
	}
	newSupply := supply.Add(amount)
	if newSupply.GreaterThan(l.supplyCap) {
		return &ExceededCapError{Cap: l.supplyCap, Supply: supply, Requested: amount}
	}

	if err := l.store.Credit(ctx, recipient, amount, newSupply); err != nil {
		return err
	}

	l.plugins.EmitIssued(ctx, recipient, amount, newSupply)
	l.logger.Debug("issued",
		"recipient", recipient.String(),
		"amount", amount.String(),
		"supply", newSupply.String(),
	)
	return nil
}

// IssueBatch applies Issue semantics to every credit in order, atomically:
// if any entry would breach the cap, no entry is applied. The batch is
// rejected outright when it exceeds token.MaxBatchSize entries.
func (l *Ledger) IssueBatch(ctx context.Context, actor id.AccountID, credits []token.Credit) error {
	if err := l.requireRole(ctx, actor, capability.RoleIssuer); err != nil {
		return err
	}
	if len(credits) > token.MaxBatchSize {
		return &BatchSizeError{Size: len(credits), Max: token.MaxBatchSize}
	}
	for _, c := range credits {
		if c.Recipient.IsNil() {
			return fmt.Errorf("%w: issue to the void account", ErrInvalidInput)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	supply, err := l.store.TotalSupply(ctx)
	if err != nil {
		return err
	}
	total := token.Total(credits)
	newSupply := supply.Add(total)
	if newSupply.GreaterThan(l.supplyCap) {
		return &ExceededCapError{Cap: l.supplyCap, Supply: supply, Requested: total}
	}

	if err := l.store.CreditBatch(ctx, credits, newSupply); err != nil {
		return err
	}

	l.plugins.EmitBatchIssued(ctx, credits, newSupply)
	l.logger.Debug("batch issued",
		"entries", len(credits),
		"total", total.String(),
		"supply", newSupply.String(),
	)
	return nil
}

// ──────────────────────────────────────────────────
// Transfer and retirement
// ──────────────────────────────────────────────────

// Transfer moves amount from one account to another. The destination
// must be whitelisted.
func (l *Ledger) Transfer(ctx context.Context, from, to id.AccountID, amount types.Amount) error {
	if from.IsNil() || to.IsNil() {
		return fmt.Errorf("%w: transfer endpoints must be real accounts", ErrInvalidInput)
	}
	if err := l.checkTransfer(ctx, from, to); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance, err := l.store.GetBalance(ctx, from)
	if err != nil {
		return err
	}
	if balance.LessThan(amount) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, balance, amount)
	}

	if err := l.store.Move(ctx, from, to, amount); err != nil {
		return err
	}

	l.plugins.EmitTransferred(ctx, from, to, amount)
	l.logger.Debug("transferred",
		"from", from.String(),
		"to", to.String(),
		"amount", amount.String(),
	)
	return nil
}

// Retire burns amount from the account and shrinks total supply. The
// account must be whitelisted to retire its own units.
func (l *Ledger) Retire(ctx context.Context, account id.AccountID, amount types.Amount) error {
	if account.IsNil() {
		return fmt.Errorf("%w: retire from the void account", ErrInvalidInput)
	}
	if err := l.checkTransfer(ctx, account, id.Nil); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance, err := l.store.GetBalance(ctx, account)
	if err != nil {
		return err
	}
	if balance.LessThan(amount) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, balance, amount)
	}

	supply, err := l.store.TotalSupply(ctx)
	if err != nil {
		return err
	}

	if err := l.store.Debit(ctx, account, amount, supply.Sub(amount)); err != nil {
		return err
	}

	l.plugins.EmitRetired(ctx, account, amount, supply.Sub(amount))
	l.logger.Debug("retired",
		"account", account.String(),
		"amount", amount.String(),
	)
	return nil
}

// checkTransfer is the whitelist hook applied to every balance move,
// classified by the void identity:
//
//   - from = void: issuance, always permitted.
//   - to = void: retirement, permitted only for a whitelisted source.
//   - both real: ordinary transfer, permitted only to a whitelisted
//     destination.
func (l *Ledger) checkTransfer(ctx context.Context, from, to id.AccountID) error {
	switch {
	case from.IsNil():
		return nil
	case to.IsNil():
		whitelisted, err := l.store.IsWhitelisted(ctx, from)
		if err != nil {
			return err
		}
		if !whitelisted {
			return fmt.Errorf("%w: retirement source %s not whitelisted", ErrTransferProhibited, from)
		}
		return nil
	default:
		whitelisted, err := l.store.IsWhitelisted(ctx, to)
		if err != nil {
			return err
		}
		if !whitelisted {
			return fmt.Errorf("%w: destination %s not whitelisted", ErrTransferProhibited, to)
		}
		return nil
	}
}

// ──────────────────────────────────────────────────
// Whitelist management
// ──────────────────────────────────────────────────

// AddToWhitelist admits an account to the transfer whitelist. Requires
// the admin capability. Adding an account twice is an error, not a
// silent no-op, so operator mistakes surface immediately.
func (l *Ledger) AddToWhitelist(ctx context.Context, actor, account id.AccountID) error {
	if err := l.requireRole(ctx, actor, capability.RoleAdmin); err != nil {
		return err
	}
	if account.IsNil() {
		return fmt.Errorf("%w: whitelist the void account", ErrInvalidInput)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.AddToWhitelist(ctx, account); err != nil {
		return err
	}

	l.plugins.EmitWhitelistAdded(ctx, account)
	l.logger.Info("whitelist added", "account", account.String())
	return nil
}

// RemoveFromWhitelist removes an account from the transfer whitelist.
// Requires the admin capability. Removing an absent account is an error.
func (l *Ledger) RemoveFromWhitelist(ctx context.Context, actor, account id.AccountID) error {
	if err := l.requireRole(ctx, actor, capability.RoleAdmin); err != nil {
		return err
	}
	if account.IsNil() {
		return fmt.Errorf("%w: whitelist the void account", ErrInvalidInput)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.RemoveFromWhitelist(ctx, account); err != nil {
		return err
	}

	l.plugins.EmitWhitelistRemoved(ctx, account)
	l.logger.Info("whitelist removed", "account", account.String())
	return nil
}

// ──────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────

// IsWhitelisted reports whitelist membership. Pure read.
func (l *Ledger) IsWhitelisted(ctx context.Context, account id.AccountID) (bool, error) {
	return l.store.IsWhitelisted(ctx, account)
}

// Whitelist returns all whitelisted accounts.
func (l *Ledger) Whitelist(ctx context.Context) ([]id.AccountID, error) {
	return l.store.ListWhitelist(ctx)
}

// BalanceOf returns an account's balance; unknown accounts hold zero.
func (l *Ledger) BalanceOf(ctx context.Context, account id.AccountID) (types.Amount, error) {
	return l.store.GetBalance(ctx, account)
}

// TotalSupply returns the current issued supply.
func (l *Ledger) TotalSupply(ctx context.Context) (types.Amount, error) {
	return l.store.TotalSupply(ctx)
}

// requireRole asks the capability oracle whether the actor holds role.
func (l *Ledger) requireRole(ctx context.Context, actor id.AccountID, role capability.Role) error {
	held, err := l.roles.HasRole(ctx, actor, role)
	if err != nil {
		return err
	}
	if !held {
		return fmt.Errorf("%w: %s requires role %q", ErrUnauthorized, actor, role)
	}
	return nil
}
