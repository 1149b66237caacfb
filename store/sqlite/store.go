// Package sqlite provides a SQLite-backed store via Grove ORM.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/tokensale"
	"github.com/xraph/tokensale/id"
	"github.com/xraph/tokensale/sale"
	"github.com/xraph/tokensale/token"
	tokenstore "github.com/xraph/tokensale/store"
	"github.com/xraph/tokensale/types"
)

// compile-time interface check
var _ tokenstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB

	// mu serializes multi-statement mutations. SQLite has no row-level
	// locking and the engines already serialize writes, so a coarse mutex
	// keeps concurrent readers of this store consistent.
	mu sync.Mutex
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("tokensale/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("tokensale/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Balance Store ====================

func (s *Store) GetBalance(ctx context.Context, account id.AccountID) (types.Amount, error) {
	return s.readBalance(ctx, account.String())
}

func (s *Store) TotalSupply(ctx context.Context) (types.Amount, error) {
	m := new(supplyModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", 1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return types.Amount{}, nil
		}
		return types.Amount{}, err
	}
	return types.ParseAmount(m.Amount)
}

func (s *Store) Credit(ctx context.Context, recipient id.AccountID, amount, newSupply types.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.addBalance(ctx, recipient.String(), amount); err != nil {
		return err
	}
	return s.setSupply(ctx, newSupply)
}

func (s *Store) CreditBatch(ctx context.Context, credits []token.Credit, newSupply types.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range credits {
		if err := s.addBalance(ctx, c.Recipient.String(), c.Amount); err != nil {
			return err
		}
	}
	return s.setSupply(ctx, newSupply)
}

func (s *Store) Debit(ctx context.Context, account id.AccountID, amount, newSupply types.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.readBalance(ctx, account.String())
	if err != nil {
		return err
	}
	if err := s.writeBalance(ctx, account.String(), current.Sub(amount)); err != nil {
		return err
	}
	return s.setSupply(ctx, newSupply)
}

func (s *Store) Move(ctx context.Context, from, to id.AccountID, amount types.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fromBalance, err := s.readBalance(ctx, from.String())
	if err != nil {
		return err
	}
	if err := s.writeBalance(ctx, from.String(), fromBalance.Sub(amount)); err != nil {
		return err
	}
	return s.addBalance(ctx, to.String(), amount)
}

func (s *Store) readBalance(ctx context.Context, account string) (types.Amount, error) {
	m := new(balanceModel)
	err := s.sdb.NewSelect(m).
		Where("account = ?", account).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return types.Amount{}, nil
		}
		return types.Amount{}, err
	}
	return types.ParseAmount(m.Amount)
}

func (s *Store) addBalance(ctx context.Context, account string, amount types.Amount) error {
	current, err := s.readBalance(ctx, account)
	if err != nil {
		return err
	}
	return s.writeBalance(ctx, account, current.Add(amount))
}

func (s *Store) writeBalance(ctx context.Context, account string, amount types.Amount) error {
	t := now()
	m := &balanceModel{
		Account:   account,
		Amount:    amount.String(),
		CreatedAt: t,
		UpdatedAt: t,
	}
	_, err := s.sdb.NewInsert(m).
		OnConflict("(account) DO UPDATE SET amount = excluded.amount, updated_at = excluded.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) setSupply(ctx context.Context, supply types.Amount) error {
	m := &supplyModel{
		ID:        1,
		Amount:    supply.String(),
		UpdatedAt: now(),
	}
	_, err := s.sdb.NewInsert(m).
		OnConflict("(id) DO UPDATE SET amount = excluded.amount, updated_at = excluded.updated_at").
		Exec(ctx)
	return err
}

// ==================== Whitelist Store ====================

func (s *Store) AddToWhitelist(ctx context.Context, account id.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	listed, err := s.IsWhitelisted(ctx, account)
	if err != nil {
		return err
	}
	if listed {
		return tokensale.ErrAlreadyWhitelisted
	}

	m := &whitelistModel{
		Account:   account.String(),
		CreatedAt: now(),
	}
	_, err = s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) RemoveFromWhitelist(ctx context.Context, account id.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.sdb.NewDelete((*whitelistModel)(nil)).
		Where("account = ?", account.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return tokensale.ErrNotWhitelisted
	}
	return nil
}

func (s *Store) IsWhitelisted(ctx context.Context, account id.AccountID) (bool, error) {
	m := new(whitelistModel)
	err := s.sdb.NewSelect(m).
		Where("account = ?", account.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Store) ListWhitelist(ctx context.Context) ([]id.AccountID, error) {
	var models []whitelistModel
	err := s.sdb.NewSelect(&models).
		OrderExpr("account ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]id.AccountID, len(models))
	for i := range models {
		account, err := id.ParseAccountID(models[i].Account)
		if err != nil {
			return nil, err
		}
		result[i] = account
	}
	return result, nil
}

// ==================== Round Store ====================

func (s *Store) CreateRound(ctx context.Context, r *sale.Round) error {
	m := toRoundModel(r)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetRound(ctx context.Context, roundID uint64) (*sale.Round, error) {
	m := new(roundModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", roundID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, tokensale.ErrRoundNotFound
		}
		return nil, err
	}
	return fromRoundModel(m)
}

func (s *Store) CurrentRoundID(ctx context.Context) (uint64, error) {
	var current uint64
	err := s.sdb.NewRaw(`
		SELECT COALESCE(MAX(id), 0) FROM tokensale_rounds
	`).Scan(ctx, &current)
	if err != nil {
		return 0, err
	}
	return current, nil
}

func (s *Store) RecordInvestment(ctx context.Context, roundID uint64, total types.Amount, finalized bool) error {
	res, err := s.sdb.NewUpdate((*roundModel)(nil)).
		Set("total_investment = ?", total.String()).
		Set("finalized = ?", finalized).
		Set("updated_at = ?", now()).
		Where("id = ?", roundID).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return tokensale.ErrRoundNotFound
	}
	return nil
}

func (s *Store) FinalizeRound(ctx context.Context, roundID uint64) error {
	res, err := s.sdb.NewUpdate((*roundModel)(nil)).
		Set("finalized = ?", true).
		Set("updated_at = ?", now()).
		Where("id = ?", roundID).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return tokensale.ErrRoundNotFound
	}
	return nil
}

func (s *Store) ListRounds(ctx context.Context, opts sale.ListOpts) ([]*sale.Round, error) {
	var models []roundModel
	q := s.sdb.NewSelect(&models).OrderExpr("id ASC")

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*sale.Round, len(models))
	for i := range models {
		r, err := fromRoundModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

// ==================== Purchase Store ====================

func (s *Store) AppendPurchase(ctx context.Context, p *sale.Purchase) error {
	m := toPurchaseModel(p)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) ListPurchases(ctx context.Context, roundID uint64, opts sale.ListOpts) ([]*sale.Purchase, error) {
	var models []purchaseModel
	q := s.sdb.NewSelect(&models).
		Where("round_id = ?", roundID).
		OrderExpr("created_at ASC")

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*sale.Purchase, len(models))
	for i := range models {
		p, err := fromPurchaseModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
