// Package postgres provides a PostgreSQL-backed store via Grove ORM.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
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

// Store implements store.Store using PostgreSQL via Grove ORM.
//
// Balance arithmetic runs inside the database on NUMERIC(78,0) columns,
// so each upsert is atomic on its own and no driver-side locking is
// needed.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("tokensale/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("tokensale/postgres: migration failed: %w", err)
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
	m := new(balanceModel)
	err := s.pg.NewSelect(m).
		Where("account = ?", account.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return types.Amount{}, nil
		}
		return types.Amount{}, err
	}
	return types.ParseAmount(m.Amount)
}

func (s *Store) TotalSupply(ctx context.Context) (types.Amount, error) {
	m := new(supplyModel)
	err := s.pg.NewSelect(m).
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
	if err := s.addBalance(ctx, recipient.String(), amount); err != nil {
		return err
	}
	return s.setSupply(ctx, newSupply)
}

func (s *Store) CreditBatch(ctx context.Context, credits []token.Credit, newSupply types.Amount) error {
	for _, c := range credits {
		if err := s.addBalance(ctx, c.Recipient.String(), c.Amount); err != nil {
			return err
		}
	}
	return s.setSupply(ctx, newSupply)
}

func (s *Store) Debit(ctx context.Context, account id.AccountID, amount, newSupply types.Amount) error {
	if err := s.subBalance(ctx, account.String(), amount); err != nil {
		return err
	}
	return s.setSupply(ctx, newSupply)
}

func (s *Store) Move(ctx context.Context, from, to id.AccountID, amount types.Amount) error {
	if err := s.subBalance(ctx, from.String(), amount); err != nil {
		return err
	}
	return s.addBalance(ctx, to.String(), amount)
}

func (s *Store) addBalance(ctx context.Context, account string, amount types.Amount) error {
	_, err := s.pg.NewRaw(`
		INSERT INTO tokensale_balances (account, amount, created_at, updated_at)
		VALUES (?, ?::numeric, NOW(), NOW())
		ON CONFLICT (account) DO UPDATE
		SET amount = tokensale_balances.amount + EXCLUDED.amount, updated_at = NOW()
	`, account, amount.String()).Exec(ctx)
	return err
}

func (s *Store) subBalance(ctx context.Context, account string, amount types.Amount) error {
	res, err := s.pg.NewRaw(`
		UPDATE tokensale_balances
		SET amount = amount - ?::numeric, updated_at = NOW()
		WHERE account = ?
	`, amount.String(), account).Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("tokensale/postgres: debit unknown account %s", account)
	}
	return nil
}

func (s *Store) setSupply(ctx context.Context, supply types.Amount) error {
	_, err := s.pg.NewRaw(`
		INSERT INTO tokensale_supply (id, amount, updated_at)
		VALUES (1, ?::numeric, NOW())
		ON CONFLICT (id) DO UPDATE
		SET amount = EXCLUDED.amount, updated_at = NOW()
	`, supply.String()).Exec(ctx)
	return err
}

// ==================== Whitelist Store ====================

func (s *Store) AddToWhitelist(ctx context.Context, account id.AccountID) error {
	m := &whitelistModel{
		Account:   account.String(),
		CreatedAt: now(),
	}
	res, err := s.pg.NewInsert(m).
		OnConflict("(account) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return tokensale.ErrAlreadyWhitelisted
	}
	return nil
}

func (s *Store) RemoveFromWhitelist(ctx context.Context, account id.AccountID) error {
	res, err := s.pg.NewDelete((*whitelistModel)(nil)).
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
	err := s.pg.NewSelect(m).
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
	err := s.pg.NewSelect(&models).
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
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetRound(ctx context.Context, roundID uint64) (*sale.Round, error) {
	m := new(roundModel)
	err := s.pg.NewSelect(m).
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
	err := s.pg.NewRaw(`
		SELECT COALESCE(MAX(id), 0) FROM tokensale_rounds
	`).Scan(ctx, &current)
	if err != nil {
		return 0, err
	}
	return current, nil
}

func (s *Store) RecordInvestment(ctx context.Context, roundID uint64, total types.Amount, finalized bool) error {
	res, err := s.pg.NewUpdate((*roundModel)(nil)).
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
	res, err := s.pg.NewUpdate((*roundModel)(nil)).
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
	q := s.pg.NewSelect(&models).OrderExpr("id ASC")

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
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) ListPurchases(ctx context.Context, roundID uint64, opts sale.ListOpts) ([]*sale.Purchase, error) {
	var models []purchaseModel
	q := s.pg.NewSelect(&models).
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

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
