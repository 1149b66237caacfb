package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the tokensale store.
var Migrations = migrate.NewGroup("tokensale")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_tokensale_balances",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tokensale_balances (
    account    TEXT PRIMARY KEY,
    amount     NUMERIC(78,0) NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS tokensale_supply (
    id         INT PRIMARY KEY CHECK (id = 1),
    amount     NUMERIC(78,0) NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS tokensale_balances;
DROP TABLE IF EXISTS tokensale_supply;
`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tokensale_whitelist",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tokensale_whitelist (
    account    TEXT PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tokensale_whitelist`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tokensale_rounds",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tokensale_rounds (
    id               BIGINT PRIMARY KEY,
    start_time       TIMESTAMPTZ NOT NULL,
    min_purchase     NUMERIC(78,0) NOT NULL DEFAULT 0,
    rate             NUMERIC(78,0) NOT NULL DEFAULT 0,
    cap              NUMERIC(78,0) NOT NULL DEFAULT 0,
    total_investment NUMERIC(78,0) NOT NULL DEFAULT 0,
    finalized        BOOLEAN NOT NULL DEFAULT FALSE,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tokensale_rounds`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tokensale_purchases",
			Version: "20240101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tokensale_purchases (
    id             TEXT PRIMARY KEY,
    round_id       BIGINT NOT NULL,
    buyer          TEXT NOT NULL,
    token_amount   NUMERIC(78,0) NOT NULL DEFAULT 0,
    payment_amount NUMERIC(78,0) NOT NULL DEFAULT 0,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_tokensale_purchases_round ON tokensale_purchases (round_id);
CREATE INDEX IF NOT EXISTS idx_tokensale_purchases_buyer ON tokensale_purchases (buyer);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tokensale_purchases`)
				return err
			},
		},
	)
}
