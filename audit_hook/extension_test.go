package audithook_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/escrow/access"
	audithook "github.com/xraph/escrow/audit_hook"
	"github.com/xraph/escrow/journal"
	"github.com/xraph/escrow/plugin"
	"github.com/xraph/escrow/voucher"
)

type memRecorder struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
}

func (m *memRecorder) Record(_ context.Context, ev *audithook.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func TestExtensionRecordsEvents(t *testing.T) {
	rec := &memRecorder{}
	ext := audithook.New(rec)
	ctx := context.Background()

	require.NoError(t, ext.OnDeposit(ctx, &plugin.DepositEvent{
		Commit:  plugin.Commit{Seq: 2, Actor: "p"},
		Account: "p", Gross: 10000, Fee: 250, Credited: 9750,
	}))
	require.NoError(t, ext.OnVouchersMinted(ctx, &plugin.VouchersMintedEvent{
		Commit:   plugin.Commit{Seq: 3, Actor: "p"},
		Vouchers: []*voucher.Voucher{{Code: "c1"}, {Code: "c2"}},
		Total:    8000,
	}))
	require.NoError(t, ext.OnOperationRejected(ctx, journal.OpWithdraw, "x", errors.New("escrow: insufficient funds")))

	require.Len(t, rec.events, 3)

	dep := rec.events[0]
	assert.Equal(t, audithook.ActionDeposit, dep.Action)
	assert.Equal(t, "p", dep.ResourceID)
	assert.Equal(t, int64(250), dep.Metadata["fee"])

	minted := rec.events[1]
	assert.Equal(t, []string{"c1", "c2"}, minted.Metadata["codes"])

	rej := rec.events[2]
	assert.Equal(t, audithook.OutcomeFailure, rej.Outcome)
	assert.Equal(t, "x", rej.Actor)
	assert.Equal(t, "escrow: insufficient funds", rej.Reason)
}

func TestEnabledAndDisabledActions(t *testing.T) {
	ctx := context.Background()
	grant := access.Transition{Address: "p", Role: access.RolePledger, Granted: true}

	rec := &memRecorder{}
	only := audithook.New(rec, audithook.WithEnabledActions(audithook.ActionRoleRevoked))
	require.NoError(t, only.OnRoleGranted(ctx, grant))
	require.NoError(t, only.OnRoleRevoked(ctx, grant))
	require.Len(t, rec.events, 1)
	assert.Equal(t, audithook.ActionRoleRevoked, rec.events[0].Action)

	rec2 := &memRecorder{}
	most := audithook.New(rec2, audithook.WithDisabledActions(audithook.ActionRoleGranted))
	require.NoError(t, most.OnRoleGranted(ctx, grant))
	require.NoError(t, most.OnWithdrawal(ctx, &plugin.WithdrawalEvent{Account: "p", Amount: 1}))
	require.Len(t, rec2.events, 1)
	assert.Equal(t, audithook.ActionWithdrawal, rec2.events[0].Action)
}

func TestRecorderFailureIsSwallowed(t *testing.T) {
	ext := audithook.New(audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("backend down")
	}))
	assert.NoError(t, ext.OnFeeChanged(context.Background(), &plugin.FeeChangedEvent{OldBps: 0, NewBps: 100}))
}
