package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the escrow store.
var Migrations = migrate.NewGroup("escrow")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_escrow_journal",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS escrow_journal (
    seq        BIGINT PRIMARY KEY,
    id         TEXT NOT NULL,
    op         TEXT NOT NULL,
    actor      TEXT NOT NULL DEFAULT '',
    prev_hash  TEXT NOT NULL,
    hash       TEXT NOT NULL,
    payload    JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_escrow_journal_id ON escrow_journal (id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_escrow_journal_hash ON escrow_journal (hash);
CREATE INDEX IF NOT EXISTS idx_escrow_journal_op ON escrow_journal (op, seq);
CREATE INDEX IF NOT EXISTS idx_escrow_journal_actor ON escrow_journal (actor, seq);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS escrow_journal`)
				return err
			},
		},
	)
}
