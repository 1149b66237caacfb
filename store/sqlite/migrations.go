package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the tokensale store (SQLite).
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
    amount     TEXT NOT NULL DEFAULT '0',
    created_at TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS tokensale_supply (
    id         INTEGER PRIMARY KEY CHECK (id = 1),
    amount     TEXT NOT NULL DEFAULT '0',
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
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
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
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
    id               INTEGER PRIMARY KEY,
    start_time       TEXT NOT NULL,
    min_purchase     TEXT NOT NULL DEFAULT '0',
    rate             TEXT NOT NULL DEFAULT '0',
    cap              TEXT NOT NULL DEFAULT '0',
    total_investment TEXT NOT NULL DEFAULT '0',
    finalized        INTEGER NOT NULL DEFAULT 0,
    created_at       TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at       TEXT NOT NULL DEFAULT (datetime('now'))
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
    round_id       INTEGER NOT NULL,
    buyer          TEXT NOT NULL,
    token_amount   TEXT NOT NULL DEFAULT '0',
    payment_amount TEXT NOT NULL DEFAULT '0',
    created_at     TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at     TEXT NOT NULL DEFAULT (datetime('now'))
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
