// Package journaltest holds a conformance suite shared by journal.Store
// implementations.
package journaltest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/journal"
	"github.com/xraph/escrow/types"
)

// Run exercises s, which must start empty.
func Run(t *testing.T, s journal.Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.LastEntry(ctx)
	require.ErrorIs(t, err, journal.ErrNotFound)

	n, err := s.CountEntries(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	var prev *journal.Entry
	ops := []journal.Operation{journal.OpGenesis, journal.OpDeposit, journal.OpAddVouchers, journal.OpDeposit}
	for i, op := range ops {
		e := &journal.Entry{
			ID:        id.NewEntryID(),
			Op:        op,
			Actor:     "alice",
			Postings:  []journal.Posting{{Account: "alice", Delta: types.Amount(i + 1), Reason: journal.ReasonDeposit}},
			Timestamp: time.Unix(int64(1700000000+i), 123456789),
		}
		require.NoError(t, e.Seal(prev))
		require.NoError(t, s.AppendEntry(ctx, e))
		prev = e
	}

	t.Run("sequence conflict", func(t *testing.T) {
		dup := &journal.Entry{ID: id.NewEntryID(), Op: journal.OpDeposit, Timestamp: time.Now()}
		require.NoError(t, dup.Seal(&journal.Entry{Seq: prev.Seq - 1, Hash: prev.PrevHash}))
		assert.ErrorIs(t, s.AppendEntry(ctx, dup), journal.ErrSeqConflict)
	})

	t.Run("last and get", func(t *testing.T) {
		last, err := s.LastEntry(ctx)
		require.NoError(t, err)
		assert.Equal(t, prev.Hash, last.Hash)

		got, err := s.GetEntry(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, journal.OpDeposit, got.Op)

		_, err = s.GetEntry(ctx, 99)
		assert.ErrorIs(t, err, journal.ErrNotFound)
	})

	t.Run("list verifies", func(t *testing.T) {
		all, err := s.ListEntries(ctx, journal.ListOpts{})
		require.NoError(t, err)
		require.Len(t, all, len(ops))
		require.NoError(t, journal.Verify(all))
	})

	t.Run("list filters", func(t *testing.T) {
		page, err := s.ListEntries(ctx, journal.ListOpts{AfterSeq: 1, Limit: 2})
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, uint64(2), page[0].Seq)
		assert.Equal(t, uint64(3), page[1].Seq)

		deposits, err := s.ListEntries(ctx, journal.ListOpts{Op: journal.OpDeposit})
		require.NoError(t, err)
		require.Len(t, deposits, 2)
		assert.Equal(t, uint64(4), deposits[1].Seq)
	})

	n, err = s.CountEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(ops)), n)
}
