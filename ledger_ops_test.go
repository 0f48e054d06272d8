package escrow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/escrow"
	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/types"
)

func TestDepositCreditsNetOfFee(t *testing.T) {
	tests := []struct {
		bps      int
		amount   escrow.Amount
		fee      escrow.Amount
		credited escrow.Amount
	}{
		{0, 100, 0, 100},
		{250, 10000, 250, 9750},
		{250, 39, 0, 39},
		{250, 41, 1, 40},
		{10000, 77, 77, 0},
		{1, 9999, 0, 9999},
	}

	for _, tt := range tests {
		e := newEscrow(t, escrow.WithFeeBps(tt.bps))
		res, err := e.Deposit(context.Background(), alice, tt.amount)
		require.NoError(t, err)
		assert.Equal(t, tt.fee, res.Fee, "bps=%d amount=%d", tt.bps, tt.amount)
		assert.Equal(t, tt.credited, res.Credited)
		assert.Equal(t, tt.amount-types.Fee(tt.amount, tt.bps), balance(t, e, alice))
		requirePledgerInvariant(t, e, alice)
	}
}

func TestDepositWithFullFeeGrantsNothing(t *testing.T) {
	ctx := context.Background()
	e := newEscrow(t, escrow.WithFeeBps(types.MaxBps))

	res, err := e.Deposit(ctx, alice, 50)
	require.NoError(t, err)
	assert.Zero(t, res.Credited)

	ok, err := e.HasRole(alice, access.RolePledger)
	require.NoError(t, err)
	assert.False(t, ok)

	stats, err := e.Stats()
	require.NoError(t, err)
	assert.Equal(t, escrow.Amount(50), stats.FeesCollected)
	assert.Zero(t, stats.TotalCustody)
}

func TestDepositRejections(t *testing.T) {
	ctx := context.Background()
	e := newEscrow(t)

	_, err := e.Deposit(ctx, alice, 0)
	assert.ErrorIs(t, err, escrow.ErrInvalidArgument)
	_, err = e.Deposit(ctx, alice, -5)
	assert.ErrorIs(t, err, escrow.ErrInvalidArgument)
	_, err = e.Deposit(ctx, "", 5)
	assert.ErrorIs(t, err, escrow.ErrUnauthorized)

	_, err = e.Deposit(ctx, alice, types.MaxAmount)
	require.NoError(t, err)
	_, err = e.Deposit(ctx, alice, 1)
	assert.ErrorIs(t, err, escrow.ErrInvalidArgument)
	assert.Equal(t, types.MaxAmount, balance(t, e, alice))
}

func TestWithdrawBalance(t *testing.T) {
	ctx := context.Background()
	e := newEscrow(t)

	_, err := e.WithdrawBalance(ctx, alice)
	assert.ErrorIs(t, err, escrow.ErrInsufficientFunds)

	_, err = e.Deposit(ctx, alice, 300)
	require.NoError(t, err)
	_, err = e.AddVouchers(ctx, alice, []escrow.Amount{100})
	require.NoError(t, err)

	got, err := e.WithdrawBalance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, escrow.Amount(200), got)
	assert.Zero(t, balance(t, e, alice))

	// A live voucher keeps the role after the balance is gone.
	requirePledgerInvariant(t, e, alice)
	ok, err := e.HasRole(alice, access.RolePledger)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = e.WithdrawBalance(ctx, alice)
	assert.ErrorIs(t, err, escrow.ErrInsufficientFunds)

	stats, err := e.Stats()
	require.NoError(t, err)
	assert.Equal(t, escrow.Amount(200), stats.TotalWithdrawn)
	assert.Equal(t, escrow.Amount(100), stats.TotalCustody)
}

func TestWithdrawRevokesPledger(t *testing.T) {
	ctx := context.Background()
	log := &eventLog{}
	e := newEscrow(t, escrow.WithPlugin(log))

	_, err := e.Deposit(ctx, alice, 10)
	require.NoError(t, err)
	_, err = e.WithdrawBalance(ctx, alice)
	require.NoError(t, err)

	requirePledgerInvariant(t, e, alice)
	_, transitions, _ := log.snapshot()
	assert.Equal(t, []access.Transition{
		{Address: alice, Role: access.RolePledger, Granted: true},
		{Address: alice, Role: access.RolePledger, Granted: false},
	}, transitions)
}

func TestSetFeeIsNotRetroactive(t *testing.T) {
	ctx := context.Background()
	e := newEscrow(t)

	_, err := e.Deposit(ctx, alice, 1000)
	require.NoError(t, err)
	require.NoError(t, e.SetFee(ctx, owner, 1000))

	res, err := e.Deposit(ctx, alice, 1000)
	require.NoError(t, err)
	assert.Equal(t, escrow.Amount(100), res.Fee)
	assert.Equal(t, escrow.Amount(1900), balance(t, e, alice))

	bps, err := e.FeeBps()
	require.NoError(t, err)
	assert.Equal(t, 1000, bps)
}

func TestSetFeeRejections(t *testing.T) {
	ctx := context.Background()
	e := newEscrow(t)

	assert.ErrorIs(t, e.SetFee(ctx, alice, 10), escrow.ErrUnauthorized)
	assert.ErrorIs(t, e.SetFee(ctx, relayer, 10), escrow.ErrUnauthorized)
	assert.ErrorIs(t, e.SetFee(ctx, owner, -1), escrow.ErrInvalidArgument)
	assert.ErrorIs(t, e.SetFee(ctx, owner, types.MaxBps+1), escrow.ErrInvalidArgument)
	require.NoError(t, e.SetFee(ctx, owner, types.MaxBps))
	require.NoError(t, e.SetFee(ctx, owner, 0))
}

func TestSetRelayerMovesRole(t *testing.T) {
	ctx := context.Background()
	log := &eventLog{}
	e := newEscrow(t, escrow.WithPlugin(log))

	assert.ErrorIs(t, e.SetRelayer(ctx, alice, carol), escrow.ErrUnauthorized)
	assert.ErrorIs(t, e.SetRelayer(ctx, owner, ""), escrow.ErrInvalidArgument)
	require.NoError(t, e.SetRelayer(ctx, owner, carol))

	current, err := e.Relayer()
	require.NoError(t, err)
	assert.Equal(t, carol, current)

	was, err := e.HasRole(relayer, access.RoleRelayer)
	require.NoError(t, err)
	assert.False(t, was)
	is, err := e.HasRole(carol, access.RoleRelayer)
	require.NoError(t, err)
	assert.True(t, is)

	hooks, transitions, rejected := log.snapshot()
	assert.Equal(t, []string{"relayer_changed"}, hooks)
	assert.Len(t, rejected, 2)
	assert.Equal(t, []access.Transition{
		{Address: relayer, Role: access.RoleRelayer, Granted: false},
		{Address: carol, Role: access.RoleRelayer, Granted: true},
	}, transitions)

	_, err = e.Deposit(ctx, alice, 10)
	require.NoError(t, err)
	minted, err := e.AddVouchers(ctx, alice, []escrow.Amount{10})
	require.NoError(t, err)
	_, err = e.SendVouchers(ctx, relayer, []access.Address{bob}, codesOf(minted))
	assert.ErrorIs(t, err, escrow.ErrUnauthorized)
	_, err = e.SendVouchers(ctx, carol, []access.Address{bob}, codesOf(minted))
	assert.NoError(t, err)
}

func TestOwnerQueries(t *testing.T) {
	e := newEscrow(t, escrow.WithSettlementFee(7), escrow.WithClaimPolicy(access.PolicySelfClaim))

	o, err := e.Owner()
	require.NoError(t, err)
	assert.Equal(t, owner, o)

	fee, err := e.SettlementFee()
	require.NoError(t, err)
	assert.Equal(t, escrow.Amount(7), fee)

	p, err := e.Policy()
	require.NoError(t, err)
	assert.Equal(t, access.PolicySelfClaim, p)

	acct, err := e.Account(owner)
	require.NoError(t, err)
	assert.True(t, acct.HasRole(access.RoleOwner))
	assert.True(t, acct.Empty())
}
