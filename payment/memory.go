package payment

import (
	"context"
	"sync"

	"github.com/xraph/tokensale/id"
	"github.com/xraph/tokensale/types"
)

// MemoryAsset is an in-memory Asset for tests and single-process wiring.
type MemoryAsset struct {
	mu       sync.Mutex
	balances map[string]types.Amount
	decimals uint8
}

var _ Asset = (*MemoryAsset)(nil)

// NewMemoryAsset creates an empty in-memory payment asset with the given
// decimal precision.
func NewMemoryAsset(decimals uint8) *MemoryAsset {
	return &MemoryAsset{
		balances: make(map[string]types.Amount),
		decimals: decimals,
	}
}

// Mint credits an account out of thin air. Test setup only.
func (a *MemoryAsset) Mint(account id.AccountID, amount types.Amount) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.balances[account.String()] = a.balances[account.String()].Add(amount)
}

// BalanceOf returns an account's balance.
func (a *MemoryAsset) BalanceOf(account id.AccountID) types.Amount {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balances[account.String()]
}

// Transfer implements Asset.
func (a *MemoryAsset) Transfer(_ context.Context, from, to id.AccountID, amount types.Amount) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	src := a.balances[from.String()]
	if src.LessThan(amount) {
		return ErrInsufficientFunds
	}
	a.balances[from.String()] = src.Sub(amount)
	a.balances[to.String()] = a.balances[to.String()].Add(amount)
	return nil
}

// Decimals implements Asset.
func (a *MemoryAsset) Decimals() uint8 { return a.decimals }
