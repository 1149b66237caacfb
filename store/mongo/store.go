// Package mongo provides a MongoDB-backed store via Grove ORM.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/tokensale"
	"github.com/xraph/tokensale/id"
	"github.com/xraph/tokensale/sale"
	"github.com/xraph/tokensale/token"
	tokenstore "github.com/xraph/tokensale/store"
	"github.com/xraph/tokensale/types"
)

// Collection name constants.
const (
	colBalances  = "tokensale_balances"
	colSupply    = "tokensale_supply"
	colWhitelist = "tokensale_whitelist"
	colRounds    = "tokensale_rounds"
	colPurchases = "tokensale_purchases"
)

// compile-time interface check
var _ tokenstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB

	// mu serializes multi-document mutations. Amounts are stored as
	// strings, so balance arithmetic happens driver-side.
	mu sync.Mutex
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all tokensale collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("tokensale/mongo: migrate %s indexes: %w", col, err)
		}
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
	var m supplyModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": 1}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return types.Amount{}, nil
		}
		return types.Amount{}, fmt.Errorf("tokensale/mongo: total supply: %w", err)
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
	var m balanceModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": account}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return types.Amount{}, nil
		}
		return types.Amount{}, fmt.Errorf("tokensale/mongo: get balance: %w", err)
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
	_, err := s.mdb.NewUpdate((*balanceModel)(nil)).
		Filter(bson.M{"_id": account}).
		SetUpdate(bson.M{
			"$set":         bson.M{"amount": amount.String(), "updated_at": t},
			"$setOnInsert": bson.M{"created_at": t},
		}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tokensale/mongo: write balance: %w", err)
	}
	return nil
}

func (s *Store) setSupply(ctx context.Context, supply types.Amount) error {
	_, err := s.mdb.NewUpdate((*supplyModel)(nil)).
		Filter(bson.M{"_id": 1}).
		SetUpdate(bson.M{
			"$set": bson.M{"amount": supply.String(), "updated_at": now()},
		}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tokensale/mongo: set supply: %w", err)
	}
	return nil
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
	_, err = s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("tokensale/mongo: add to whitelist: %w", err)
	}
	return nil
}

func (s *Store) RemoveFromWhitelist(ctx context.Context, account id.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.mdb.NewDelete((*whitelistModel)(nil)).
		Filter(bson.M{"_id": account.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tokensale/mongo: remove from whitelist: %w", err)
	}
	if res.DeletedCount() == 0 {
		return tokensale.ErrNotWhitelisted
	}
	return nil
}

func (s *Store) IsWhitelisted(ctx context.Context, account id.AccountID) (bool, error) {
	var m whitelistModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": account.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return false, nil
		}
		return false, fmt.Errorf("tokensale/mongo: is whitelisted: %w", err)
	}
	return true, nil
}

func (s *Store) ListWhitelist(ctx context.Context) ([]id.AccountID, error) {
	var models []whitelistModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("tokensale/mongo: list whitelist: %w", err)
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
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("tokensale/mongo: create round: %w", err)
	}
	return nil
}

func (s *Store) GetRound(ctx context.Context, roundID uint64) (*sale.Round, error) {
	var m roundModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": roundID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, tokensale.ErrRoundNotFound
		}
		return nil, fmt.Errorf("tokensale/mongo: get round: %w", err)
	}
	return fromRoundModel(&m)
}

func (s *Store) CurrentRoundID(ctx context.Context) (uint64, error) {
	var m roundModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "_id", Value: -1}}).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("tokensale/mongo: current round id: %w", err)
	}
	return m.ID, nil
}

func (s *Store) RecordInvestment(ctx context.Context, roundID uint64, total types.Amount, finalized bool) error {
	res, err := s.mdb.NewUpdate((*roundModel)(nil)).
		Filter(bson.M{"_id": roundID}).
		Set("total_investment", total.String()).
		Set("finalized", finalized).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tokensale/mongo: record investment: %w", err)
	}
	if res.MatchedCount() == 0 {
		return tokensale.ErrRoundNotFound
	}
	return nil
}

func (s *Store) FinalizeRound(ctx context.Context, roundID uint64) error {
	res, err := s.mdb.NewUpdate((*roundModel)(nil)).
		Filter(bson.M{"_id": roundID}).
		Set("finalized", true).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tokensale/mongo: finalize round: %w", err)
	}
	if res.MatchedCount() == 0 {
		return tokensale.ErrRoundNotFound
	}
	return nil
}

func (s *Store) ListRounds(ctx context.Context, opts sale.ListOpts) ([]*sale.Round, error) {
	var models []roundModel
	q := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("tokensale/mongo: list rounds: %w", err)
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
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("tokensale/mongo: append purchase: %w", err)
	}
	return nil
}

func (s *Store) ListPurchases(ctx context.Context, roundID uint64, opts sale.ListOpts) ([]*sale.Purchase, error) {
	var models []purchaseModel
	q := s.mdb.NewFind(&models).
		Filter(bson.M{"round_id": roundID}).
		Sort(bson.D{{Key: "created_at", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("tokensale/mongo: list purchases: %w", err)
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

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all tokensale collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colBalances:  {},
		colSupply:    {},
		colWhitelist: {},
		colRounds: {
			{Keys: bson.D{{Key: "finalized", Value: 1}}},
		},
		colPurchases: {
			{Keys: bson.D{{Key: "round_id", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "buyer", Value: 1}}},
			{
				Keys:    bson.D{{Key: "round_id", Value: 1}, {Key: "_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}
}
