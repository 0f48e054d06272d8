package escrow_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/escrow"
	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/journal"
	"github.com/xraph/escrow/store/memory"
	"github.com/xraph/escrow/voucher"
)

func TestVoucherLifecycleScenario(t *testing.T) {
	ctx := context.Background()
	e := newEscrow(t, escrow.WithFeeBps(250))

	dep, err := e.Deposit(ctx, alice, 10000)
	require.NoError(t, err)
	assert.Equal(t, escrow.Amount(250), dep.Fee)
	assert.Equal(t, escrow.Amount(9750), dep.Credited)
	assert.Equal(t, escrow.Amount(9750), balance(t, e, alice))
	requirePledgerInvariant(t, e, alice, bob)

	minted, err := e.AddVouchers(ctx, alice, []escrow.Amount{4000, 4000})
	require.NoError(t, err)
	require.Len(t, minted, 2)
	assert.Equal(t, escrow.Amount(4000), minted[0].Amount)
	assert.NotEqual(t, minted[0].Code, minted[1].Code)
	assert.Equal(t, escrow.Amount(1750), balance(t, e, alice))

	first, second := minted[0].Code, minted[1].Code
	require.NoError(t, e.ApproveClaimants(ctx, relayer, []voucher.Code{first}, []access.Address{bob}))
	assert.Equal(t, voucher.StatusApproved, status(t, e, first))

	res, err := e.SendVouchers(ctx, relayer, []access.Address{bob}, []voucher.Code{first})
	require.NoError(t, err)
	require.Len(t, res.Settlements, 1)
	assert.Equal(t, escrow.Amount(4000), res.Settlements[0].Payout)
	assert.Equal(t, escrow.DefaultSettlementFee, res.Reimbursement)
	assert.Equal(t, escrow.Amount(4000), balance(t, e, bob))
	assert.Equal(t, escrow.DefaultSettlementFee, balance(t, e, relayer))
	assert.Equal(t, 1750-escrow.DefaultSettlementFee, balance(t, e, alice))
	assert.Equal(t, voucher.StatusSettled, status(t, e, first))

	reclaimed, err := e.ReclaimVouchers(ctx, alice, []voucher.Code{second})
	require.NoError(t, err)
	assert.Equal(t, escrow.Amount(4000), reclaimed)
	assert.Equal(t, 5750-escrow.DefaultSettlementFee, balance(t, e, alice))
	assert.Equal(t, voucher.StatusReclaimed, status(t, e, second))
	requirePledgerInvariant(t, e, alice, bob, relayer)

	stats, err := e.Stats()
	require.NoError(t, err)
	assert.Equal(t, escrow.Amount(9750), stats.TotalCustody)
	assert.Equal(t, escrow.Amount(250), stats.FeesCollected)
	assert.Equal(t, stats.TotalDeposited-stats.TotalWithdrawn-stats.FeesCollected, stats.TotalCustody)
	assert.Equal(t, 1, stats.Vouchers[voucher.StatusSettled])
	assert.Equal(t, 1, stats.Vouchers[voucher.StatusReclaimed])

	require.NoError(t, e.VerifyJournal(ctx))
}

func TestStartRequiresOwner(t *testing.T) {
	e := escrow.New(memory.New(), escrow.WithLogger(quietLogger()))
	err := e.Start(context.Background())
	assert.ErrorIs(t, err, escrow.ErrInvalidArgument)
}

func TestStartValidatesGenesisConfig(t *testing.T) {
	tests := []struct {
		name string
		opt  escrow.Option
	}{
		{"fee above range", escrow.WithFeeBps(10001)},
		{"negative settlement fee", escrow.WithSettlementFee(-1)},
		{"unknown policy", escrow.WithClaimPolicy("first_come")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := escrow.New(memory.New(), escrow.WithLogger(quietLogger()), escrow.WithOwner(owner), tt.opt)
			assert.ErrorIs(t, e.Start(context.Background()), escrow.ErrInvalidArgument)
		})
	}
}

func TestOperationsBeforeStart(t *testing.T) {
	e := escrow.New(memory.New(), escrow.WithOwner(owner))

	_, err := e.Deposit(context.Background(), alice, 10)
	assert.ErrorIs(t, err, escrow.ErrNotStarted)

	_, err = e.Balance(alice)
	assert.ErrorIs(t, err, escrow.ErrNotStarted)
}

func TestStartTwice(t *testing.T) {
	e := newEscrow(t)
	assert.ErrorIs(t, e.Start(context.Background()), escrow.ErrAlreadyStarted)
}

func TestRestartReplaysJournal(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	e1 := newEscrowOver(t, s, escrow.WithFeeBps(100), escrow.WithCodeGenerator(sequence("c1", "c2", "c3")))
	_, err := e1.Deposit(ctx, alice, 1000)
	require.NoError(t, err)
	minted, err := e1.AddVouchers(ctx, alice, []escrow.Amount{100, 200})
	require.NoError(t, err)
	_, err = e1.SendVouchers(ctx, relayer, []access.Address{bob}, []voucher.Code{minted[0].Code})
	require.NoError(t, err)
	require.NoError(t, e1.SetFee(ctx, owner, 500))
	before, err := e1.Stats()
	require.NoError(t, err)
	require.NoError(t, e1.Stop())

	s.Reopen()
	// Configured options disagree with the journal; the journal wins.
	e2 := newEscrowOver(t, s, escrow.WithFeeBps(0), escrow.WithCodeGenerator(sequence("c1", "c2", "c4")))

	after, err := e2.Stats()
	require.NoError(t, err)
	assert.Equal(t, before, after)

	bps, err := e2.FeeBps()
	require.NoError(t, err)
	assert.Equal(t, 500, bps)
	assert.Equal(t, voucher.StatusSettled, status(t, e2, "c1"))
	assert.Equal(t, escrow.Amount(100), balance(t, e2, bob))

	// c1 and c2 were issued before the restart and are never handed out again.
	again, err := e2.AddVouchers(ctx, alice, []escrow.Amount{50})
	require.NoError(t, err)
	assert.Equal(t, voucher.Code("c4"), again[0].Code)
	require.NoError(t, e2.VerifyJournal(ctx))
}

func TestStoreFailureLeavesNoChange(t *testing.T) {
	ctx := context.Background()
	s := &flakyStore{Store: memory.New()}
	e := newEscrowOver(t, s)

	_, err := e.Deposit(ctx, alice, 500)
	require.NoError(t, err)

	s.fail.Store(true)
	_, err = e.AddVouchers(ctx, alice, []escrow.Amount{100})
	require.ErrorIs(t, err, escrow.ErrStoreFailed)
	assert.False(t, escrow.IsRejection(err))

	assert.Equal(t, escrow.Amount(500), balance(t, e, alice))
	vs, err := e.VouchersByPledger(alice, voucher.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, vs)

	s.fail.Store(false)
	_, err = e.AddVouchers(ctx, alice, []escrow.Amount{100})
	require.NoError(t, err)
	assert.Equal(t, escrow.Amount(400), balance(t, e, alice))
	require.NoError(t, e.VerifyJournal(ctx))
}

func TestConcurrentMintsDoNotDoubleDebit(t *testing.T) {
	ctx := context.Background()
	e := newEscrow(t)

	_, err := e.Deposit(ctx, alice, 1000)
	require.NoError(t, err)

	const workers = 2
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.AddVouchers(ctx, alice, []escrow.Amount{600})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, escrow.ErrInsufficientFunds)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, escrow.Amount(400), balance(t, e, alice))

	vs, err := e.VouchersByPledger(alice, voucher.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, vs, 1)
}

func TestConcurrentOperationsSerialize(t *testing.T) {
	ctx := context.Background()
	e := newEscrow(t)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Deposit(ctx, alice, 10)
			assert.NoError(t, err)
		}()
	}
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Deposit(ctx, bob, 5)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, escrow.Amount(500), balance(t, e, alice))
	assert.Equal(t, escrow.Amount(100), balance(t, e, bob))

	entries, err := e.Journal(ctx, journal.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, entries, 71)
	require.NoError(t, journal.Verify(entries))
}

func TestJournalRecordsEachOperation(t *testing.T) {
	ctx := context.Background()
	e := newEscrow(t)

	_, err := e.Deposit(ctx, alice, 100)
	require.NoError(t, err)
	_, err = e.Deposit(ctx, alice, 0)
	require.Error(t, err)
	_, err = e.WithdrawBalance(ctx, alice)
	require.NoError(t, err)

	entries, err := e.Journal(ctx, journal.ListOpts{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, journal.OpGenesis, entries[0].Op)
	assert.Equal(t, journal.OpDeposit, entries[1].Op)
	assert.Equal(t, journal.OpWithdraw, entries[2].Op)
	assert.Equal(t, escrow.Amount(100), entries[2].Withdrawn)

	deposits, err := e.Journal(ctx, journal.ListOpts{Op: journal.OpDeposit})
	require.NoError(t, err)
	assert.Len(t, deposits, 1)
}

func TestPluginsObserveCommittedOperations(t *testing.T) {
	ctx := context.Background()
	log := &eventLog{}
	e := newEscrow(t, escrow.WithPlugin(log), escrow.WithSettlementFee(0))

	_, err := e.Deposit(ctx, alice, 100)
	require.NoError(t, err)
	minted, err := e.AddVouchers(ctx, alice, []escrow.Amount{100})
	require.NoError(t, err)
	_, err = e.SendVouchers(ctx, relayer, []access.Address{bob}, codesOf(minted))
	require.NoError(t, err)
	_, err = e.ReclaimVouchers(ctx, alice, codesOf(minted))
	require.ErrorIs(t, err, escrow.ErrInvalidState)

	hooks, transitions, rejected := log.snapshot()
	assert.Equal(t, []string{"deposit", "minted", "settled"}, hooks)
	require.Len(t, rejected, 1)
	assert.ErrorIs(t, rejected[0], escrow.ErrInvalidState)

	assert.Equal(t, []access.Transition{
		{Address: alice, Role: access.RolePledger, Granted: true},
		{Address: alice, Role: access.RolePledger, Granted: false},
		{Address: bob, Role: access.RolePledger, Granted: true},
	}, transitions)
}
