package plugin_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/journal"
	"github.com/xraph/escrow/plugin"
)

type recorder struct {
	name     string
	deposits atomic.Int32
	granted  atomic.Int32
	revoked  atomic.Int32
	rejected atomic.Int32
	fail     bool
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) OnDeposit(context.Context, *plugin.DepositEvent) error {
	r.deposits.Add(1)
	if r.fail {
		return errors.New("boom")
	}
	return nil
}

func (r *recorder) OnRoleGranted(context.Context, access.Transition) error {
	r.granted.Add(1)
	return nil
}

func (r *recorder) OnRoleRevoked(context.Context, access.Transition) error {
	r.revoked.Add(1)
	return nil
}

func (r *recorder) OnOperationRejected(context.Context, journal.Operation, access.Address, error) error {
	r.rejected.Add(1)
	return nil
}

type slow struct{}

func (slow) Name() string { return "slow" }

func (slow) OnWithdrawal(ctx context.Context, _ *plugin.WithdrawalEvent) error {
	time.Sleep(200 * time.Millisecond)
	return nil
}

type panicky struct{}

func (panicky) Name() string { return "panicky" }

func (panicky) OnFeeChanged(context.Context, *plugin.FeeChangedEvent) error {
	panic("bad plugin")
}

func newRegistry(buf *bytes.Buffer) *plugin.Registry {
	return plugin.NewRegistry().WithLogger(slog.New(slog.NewTextHandler(buf, nil)))
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	var buf bytes.Buffer
	r := newRegistry(&buf)

	require.NoError(t, r.Register(&recorder{name: "a"}))
	assert.Error(t, r.Register(&recorder{name: "a"}))
	assert.Equal(t, 1, r.Count())
	assert.NotNil(t, r.Get("a"))
	assert.Nil(t, r.Get("b"))
	assert.Contains(t, buf.String(), "OnDeposit")
}

func TestEmitDispatchesToImplementers(t *testing.T) {
	var buf bytes.Buffer
	r := newRegistry(&buf)
	a, b := &recorder{name: "a"}, &recorder{name: "b", fail: true}
	require.NoError(t, r.Register(a))
	require.NoError(t, r.Register(b))
	require.NoError(t, r.Register(slow{}))

	ctx := context.Background()
	r.EmitDeposit(ctx, &plugin.DepositEvent{Account: "p", Gross: 10})
	r.EmitRoleTransitions(ctx, []access.Transition{
		{Address: "p", Role: access.RolePledger, Granted: true},
		{Address: "q", Role: access.RolePledger, Granted: false},
	})
	r.EmitOperationRejected(ctx, journal.OpDeposit, "p", errors.New("nope"))

	assert.Equal(t, int32(1), a.deposits.Load())
	assert.Equal(t, int32(1), b.deposits.Load())
	assert.Equal(t, int32(1), a.granted.Load())
	assert.Equal(t, int32(1), a.revoked.Load())
	assert.Equal(t, int32(1), a.rejected.Load())
	assert.Contains(t, buf.String(), "plugin OnDeposit failed")
}

func TestEmitTimesOutSlowHooks(t *testing.T) {
	var buf bytes.Buffer
	r := newRegistry(&buf).WithTimeout(20 * time.Millisecond)
	require.NoError(t, r.Register(slow{}))

	start := time.Now()
	r.EmitWithdrawal(context.Background(), &plugin.WithdrawalEvent{})
	assert.Less(t, time.Since(start), 150*time.Millisecond)
	assert.Contains(t, buf.String(), "plugin timeout: slow")
}

func TestEmitRecoversPanics(t *testing.T) {
	var buf bytes.Buffer
	r := newRegistry(&buf)
	require.NoError(t, r.Register(panicky{}))

	assert.NotPanics(t, func() {
		r.EmitFeeChanged(context.Background(), &plugin.FeeChangedEvent{OldBps: 1, NewBps: 2})
	})
	assert.Contains(t, buf.String(), "plugin panic: panicky")
}
