// Package store defines the persistence contract of the escrow engine.
// Backends live in subpackages: memory, postgres, sqlite, mongo.
package store

import (
	"context"

	"github.com/xraph/escrow/journal"
)

// Store is the unified storage interface. The engine only ever appends
// journal entries; all balances and vouchers are derived by replay.
type Store interface {
	journal.Store

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
