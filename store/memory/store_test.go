package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/escrow"
	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/journal"
	"github.com/xraph/escrow/journal/journaltest"
	"github.com/xraph/escrow/store/memory"
)

func TestConformance(t *testing.T) {
	journaltest.Run(t, memory.New())
}

func TestReturnedEntriesAreCopies(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	e := &journal.Entry{ID: id.NewEntryID(), Op: journal.OpGenesis, Timestamp: time.Now()}
	require.NoError(t, e.Seal(nil))
	require.NoError(t, s.AppendEntry(ctx, e))

	e.Actor = "mallory"
	got, err := s.GetEntry(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, got.Actor)

	got.Actor = "mallory"
	all, err := s.ListEntries(ctx, journal.ListOpts{})
	require.NoError(t, err)
	require.NoError(t, journal.Verify(all))
}

func TestClosedStoreRejectsWrites(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.Close())

	e := &journal.Entry{ID: id.NewEntryID(), Op: journal.OpGenesis, Timestamp: time.Now()}
	require.NoError(t, e.Seal(nil))
	assert.ErrorIs(t, s.AppendEntry(ctx, e), escrow.ErrStoreClosed)
	assert.ErrorIs(t, s.Ping(ctx), escrow.ErrStoreClosed)

	s.Reopen()
	assert.NoError(t, s.AppendEntry(ctx, e))
}
