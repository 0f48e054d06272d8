package escrow_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xraph/escrow"
	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/journal"
	"github.com/xraph/escrow/plugin"
	"github.com/xraph/escrow/store"
	"github.com/xraph/escrow/store/memory"
	"github.com/xraph/escrow/voucher"
)

const (
	owner   access.Address = "owner"
	relayer access.Address = "relayer"
	alice   access.Address = "alice"
	bob     access.Address = "bob"
	carol   access.Address = "carol"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newEscrow starts an engine over a fresh memory store and stops it when the
// test ends.
func newEscrow(t *testing.T, opts ...escrow.Option) *escrow.Escrow {
	t.Helper()
	return newEscrowOver(t, memory.New(), opts...)
}

func newEscrowOver(t *testing.T, s store.Store, opts ...escrow.Option) *escrow.Escrow {
	t.Helper()
	base := []escrow.Option{
		escrow.WithLogger(quietLogger()),
		escrow.WithOwner(owner),
		escrow.WithRelayer(relayer),
	}
	e := escrow.New(s, append(base, opts...)...)
	require.NoError(t, e.Start(context.Background()))
	t.Cleanup(func() { _ = e.Stop() })
	return e
}

// sequence yields codes in order, cycling when exhausted.
func sequence(codes ...voucher.Code) voucher.CodeGenerator {
	var (
		mu sync.Mutex
		i  int
	)
	return voucher.GeneratorFunc(func() (voucher.Code, error) {
		mu.Lock()
		defer mu.Unlock()
		c := codes[i%len(codes)]
		i++
		return c, nil
	})
}

// flakyStore fails appends while fail is set.
type flakyStore struct {
	*memory.Store
	fail atomic.Bool
}

func (f *flakyStore) AppendEntry(ctx context.Context, e *journal.Entry) error {
	if f.fail.Load() {
		return errors.New("disk full")
	}
	return f.Store.AppendEntry(ctx, e)
}

func codesOf(minted []voucher.Minted) []voucher.Code {
	out := make([]voucher.Code, len(minted))
	for i, m := range minted {
		out[i] = m.Code
	}
	return out
}

func balance(t *testing.T, e *escrow.Escrow, addr access.Address) escrow.Amount {
	t.Helper()
	b, err := e.Balance(addr)
	require.NoError(t, err)
	return b
}

func status(t *testing.T, e *escrow.Escrow, code voucher.Code) voucher.Status {
	t.Helper()
	v, err := e.Voucher(code)
	require.NoError(t, err)
	return v.Status
}

// requirePledgerInvariant checks that each address holds the Pledger role
// exactly when it has a positive balance or a live voucher.
func requirePledgerInvariant(t *testing.T, e *escrow.Escrow, addrs ...access.Address) {
	t.Helper()
	for _, a := range addrs {
		vs, err := e.VouchersByPledger(a, voucher.ListOpts{})
		require.NoError(t, err)
		live := 0
		for _, v := range vs {
			if v.Status.Live() {
				live++
			}
		}
		want := balance(t, e, a) > 0 || live > 0
		got, err := e.HasRole(a, access.RolePledger)
		require.NoError(t, err)
		require.Equal(t, want, got, "pledger role of %s", a)
	}
}

// eventLog records hook calls in order.
type eventLog struct {
	mu          sync.Mutex
	hooks       []string
	transitions []access.Transition
	rejected    []error
	settled     []*plugin.VouchersSettledEvent
}

func (l *eventLog) Name() string { return "event-log" }

func (l *eventLog) add(hook string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, hook)
}

func (l *eventLog) OnDeposit(context.Context, *plugin.DepositEvent) error {
	l.add("deposit")
	return nil
}

func (l *eventLog) OnWithdrawal(context.Context, *plugin.WithdrawalEvent) error {
	l.add("withdrawal")
	return nil
}

func (l *eventLog) OnFeeChanged(context.Context, *plugin.FeeChangedEvent) error {
	l.add("fee_changed")
	return nil
}

func (l *eventLog) OnRelayerChanged(context.Context, *plugin.RelayerChangedEvent) error {
	l.add("relayer_changed")
	return nil
}

func (l *eventLog) OnVouchersMinted(context.Context, *plugin.VouchersMintedEvent) error {
	l.add("minted")
	return nil
}

func (l *eventLog) OnClaimantsApproved(context.Context, *plugin.ClaimantsApprovedEvent) error {
	l.add("approved")
	return nil
}

func (l *eventLog) OnVouchersSettled(_ context.Context, ev *plugin.VouchersSettledEvent) error {
	l.mu.Lock()
	l.settled = append(l.settled, ev)
	l.mu.Unlock()
	l.add("settled")
	return nil
}

func (l *eventLog) OnVoucherClaimed(context.Context, *plugin.VoucherClaimedEvent) error {
	l.add("claimed")
	return nil
}

func (l *eventLog) OnVouchersReclaimed(context.Context, *plugin.VouchersReclaimedEvent) error {
	l.add("reclaimed")
	return nil
}

func (l *eventLog) OnRoleGranted(_ context.Context, tr access.Transition) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transitions = append(l.transitions, tr)
	return nil
}

func (l *eventLog) OnRoleRevoked(_ context.Context, tr access.Transition) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transitions = append(l.transitions, tr)
	return nil
}

func (l *eventLog) OnOperationRejected(_ context.Context, _ journal.Operation, _ access.Address, err error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rejected = append(l.rejected, err)
	return nil
}

func (l *eventLog) snapshot() ([]string, []access.Transition, []error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.hooks...),
		append([]access.Transition(nil), l.transitions...),
		append([]error(nil), l.rejected...)
}
