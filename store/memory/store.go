// Package memory provides an in-memory store for testing and
// single-process embedding.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xraph/tokensale"
	"github.com/xraph/tokensale/id"
	"github.com/xraph/tokensale/sale"
	"github.com/xraph/tokensale/token"
	"github.com/xraph/tokensale/types"
)

type Store struct {
	mu sync.RWMutex

	// Balance storage
	balances map[string]types.Amount
	supply   types.Amount

	// Whitelist storage
	whitelist map[string]struct{}

	// Round storage, keyed by round id
	rounds         map[uint64]*sale.Round
	currentRoundID uint64

	// Purchase log
	purchases []*sale.Purchase
}

func New() *Store {
	return &Store{
		balances:  make(map[string]types.Amount),
		whitelist: make(map[string]struct{}),
		rounds:    make(map[uint64]*sale.Round),
		purchases: make([]*sale.Purchase, 0),
	}
}

// Balance Store implementation

func (s *Store) GetBalance(_ context.Context, account id.AccountID) (types.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.balances[account.String()], nil
}

func (s *Store) TotalSupply(_ context.Context) (types.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.supply, nil
}

func (s *Store) Credit(_ context.Context, recipient id.AccountID, amount, newSupply types.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recipient.String()
	s.balances[key] = s.balances[key].Add(amount)
	s.supply = newSupply
	return nil
}

func (s *Store) CreditBatch(_ context.Context, credits []token.Credit, newSupply types.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range credits {
		key := c.Recipient.String()
		s.balances[key] = s.balances[key].Add(c.Amount)
	}
	s.supply = newSupply
	return nil
}

func (s *Store) Debit(_ context.Context, account id.AccountID, amount, newSupply types.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := account.String()
	s.balances[key] = s.balances[key].Sub(amount)
	s.supply = newSupply
	return nil
}

func (s *Store) Move(_ context.Context, from, to id.AccountID, amount types.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fromKey, toKey := from.String(), to.String()
	s.balances[fromKey] = s.balances[fromKey].Sub(amount)
	s.balances[toKey] = s.balances[toKey].Add(amount)
	return nil
}

// Whitelist Store implementation

func (s *Store) AddToWhitelist(_ context.Context, account id.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := account.String()
	if _, exists := s.whitelist[key]; exists {
		return tokensale.ErrAlreadyWhitelisted
	}
	s.whitelist[key] = struct{}{}
	return nil
}

func (s *Store) RemoveFromWhitelist(_ context.Context, account id.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := account.String()
	if _, exists := s.whitelist[key]; !exists {
		return tokensale.ErrNotWhitelisted
	}
	delete(s.whitelist, key)
	return nil
}

func (s *Store) IsWhitelisted(_ context.Context, account id.AccountID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.whitelist[account.String()]
	return ok, nil
}

func (s *Store) ListWhitelist(_ context.Context) ([]id.AccountID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.whitelist))
	for key := range s.whitelist {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]id.AccountID, 0, len(keys))
	for _, key := range keys {
		account, err := id.ParseAccountID(key)
		if err != nil {
			return nil, err
		}
		result = append(result, account)
	}
	return result, nil
}

// Round Store implementation

func (s *Store) CreateRound(_ context.Context, r *sale.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *r
	s.rounds[r.ID] = &clone
	if r.ID > s.currentRoundID {
		s.currentRoundID = r.ID
	}
	return nil
}

func (s *Store) GetRound(_ context.Context, roundID uint64) (*sale.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rounds[roundID]
	if !ok {
		return nil, tokensale.ErrRoundNotFound
	}
	clone := *r
	return &clone, nil
}

func (s *Store) CurrentRoundID(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.currentRoundID, nil
}

func (s *Store) RecordInvestment(_ context.Context, roundID uint64, total types.Amount, finalized bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rounds[roundID]
	if !ok {
		return tokensale.ErrRoundNotFound
	}
	r.TotalInvestment = total
	r.Finalized = finalized
	r.Touch()
	return nil
}

func (s *Store) FinalizeRound(_ context.Context, roundID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rounds[roundID]
	if !ok {
		return tokensale.ErrRoundNotFound
	}
	r.Finalized = true
	r.Touch()
	return nil
}

func (s *Store) ListRounds(_ context.Context, opts sale.ListOpts) ([]*sale.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*sale.Round, 0, len(s.rounds))
	for roundID := uint64(1); roundID <= s.currentRoundID; roundID++ {
		if r, ok := s.rounds[roundID]; ok {
			clone := *r
			result = append(result, &clone)
		}
	}
	return paginate(result, opts), nil
}

// Purchase Store implementation

func (s *Store) AppendPurchase(_ context.Context, p *sale.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *p
	s.purchases = append(s.purchases, &clone)
	return nil
}

func (s *Store) ListPurchases(_ context.Context, roundID uint64, opts sale.ListOpts) ([]*sale.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*sale.Purchase, 0)
	for _, p := range s.purchases {
		if p.RoundID == roundID {
			clone := *p
			result = append(result, &clone)
		}
	}
	return paginate(result, opts), nil
}

// Store management

func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	return nil // Always available
}

func (s *Store) Close() error {
	return nil // Nothing to close
}

func paginate[T any](items []T, opts sale.ListOpts) []T {
	start := opts.Offset
	if start > len(items) {
		start = len(items)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
