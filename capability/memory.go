package capability

import (
	"context"
	"sync"

	"github.com/xraph/tokensale/id"
)

// Registry is an in-memory Oracle. Suitable for tests and single-process
// deployments; production hosts typically bridge to their own
// access-control system instead.
type Registry struct {
	mu     sync.RWMutex
	grants map[Role]map[string]struct{}
}

var _ Oracle = (*Registry)(nil)

// NewRegistry creates an empty in-memory role registry.
func NewRegistry() *Registry {
	return &Registry{
		grants: make(map[Role]map[string]struct{}),
	}
}

// HasRole implements Oracle.
func (r *Registry) HasRole(_ context.Context, account id.AccountID, role Role) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	holders, ok := r.grants[role]
	if !ok {
		return false, nil
	}
	_, held := holders[account.String()]
	return held, nil
}

// Grant implements Oracle.
func (r *Registry) Grant(_ context.Context, account id.AccountID, role Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	holders, ok := r.grants[role]
	if !ok {
		holders = make(map[string]struct{})
		r.grants[role] = holders
	}
	holders[account.String()] = struct{}{}
	return nil
}

// Revoke implements Oracle.
func (r *Registry) Revoke(_ context.Context, account id.AccountID, role Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if holders, ok := r.grants[role]; ok {
		delete(holders, account.String())
	}
	return nil
}
