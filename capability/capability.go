// Package capability abstracts the role registry that gates privileged
// ledger and sale operations. The engines depend only on the Oracle
// interface; hosts plug in their own access-control backend or use the
// in-memory Registry.
package capability

import (
	"context"

	"github.com/xraph/tokensale/id"
)

// Role names a capability an account may hold.
type Role string

const (
	// RoleIssuer permits minting new ledger supply.
	RoleIssuer Role = "issuer"
	// RoleAdmin permits whitelist changes and sale round control.
	RoleAdmin Role = "admin"
)

// Oracle answers "does this account hold this role?" and lets holders of
// the registry mutate grants. Implementations must treat grants as a set:
// granting twice is a no-op, revoking an absent grant is a no-op.
type Oracle interface {
	HasRole(ctx context.Context, account id.AccountID, role Role) (bool, error)
	Grant(ctx context.Context, account id.AccountID, role Role) error
	Revoke(ctx context.Context, account id.AccountID, role Role) error
}
