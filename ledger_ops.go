package escrow

import (
	"context"
	"fmt"

	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/journal"
	"github.com/xraph/escrow/plugin"
	"github.com/xraph/escrow/state"
	"github.com/xraph/escrow/types"
)

// DepositResult describes a committed deposit.
type DepositResult struct {
	EntryID  id.EntryID   `json:"entry_id"`
	Seq      uint64       `json:"seq"`
	Gross    types.Amount `json:"gross"`
	Fee      types.Amount `json:"fee"`
	Credited types.Amount `json:"credited"`
	Balance  types.Amount `json:"balance"`
}

// Deposit credits amount less the current fee to caller's balance. The fee
// leaves custody. A positive credit grants the Pledger role.
func (e *Escrow) Deposit(ctx context.Context, caller access.Address, amount types.Amount) (*DepositResult, error) {
	var res DepositResult
	out, err := e.transact(ctx, func(st *state.State) (*journal.Entry, error) {
		if err := requireCaller(caller); err != nil {
			return nil, err
		}
		if amount <= 0 {
			return nil, fmt.Errorf("%w: deposit amount must be positive, got %d", ErrInvalidArgument, amount)
		}

		fee, net := types.SplitFee(amount, st.FeeBps())
		balance, err := st.Balance(caller).Add(net)
		if err != nil {
			return nil, fmt.Errorf("%w: balance overflow", ErrInvalidArgument)
		}

		res = DepositResult{Gross: amount, Fee: fee, Credited: net, Balance: balance}
		entry := &journal.Entry{Op: journal.OpDeposit, Actor: caller, FeeCollected: fee}
		if net > 0 {
			entry.Postings = []journal.Posting{{Account: caller, Delta: net, Reason: journal.ReasonDeposit}}
		}
		return entry, nil
	})
	if err != nil {
		return nil, e.reject(ctx, journal.OpDeposit, caller, err)
	}

	res.EntryID, res.Seq = out.entry.ID, out.entry.Seq
	e.plugins.EmitDeposit(ctx, &plugin.DepositEvent{
		Commit:   commitOf(out.entry),
		Account:  caller,
		Gross:    res.Gross,
		Fee:      res.Fee,
		Credited: res.Credited,
		Balance:  res.Balance,
	})
	e.plugins.EmitRoleTransitions(ctx, out.transitions)
	return &res, nil
}

// WithdrawBalance pays out caller's entire balance and zeroes it.
func (e *Escrow) WithdrawBalance(ctx context.Context, caller access.Address) (types.Amount, error) {
	var amount types.Amount
	out, err := e.transact(ctx, func(st *state.State) (*journal.Entry, error) {
		if err := requireCaller(caller); err != nil {
			return nil, err
		}
		amount = st.Balance(caller)
		if amount <= 0 {
			return nil, fmt.Errorf("%w: %s has no balance to withdraw", ErrInsufficientFunds, caller)
		}
		return &journal.Entry{
			Op:        journal.OpWithdraw,
			Actor:     caller,
			Postings:  []journal.Posting{{Account: caller, Delta: -amount, Reason: journal.ReasonWithdrawal}},
			Withdrawn: amount,
		}, nil
	})
	if err != nil {
		return 0, e.reject(ctx, journal.OpWithdraw, caller, err)
	}

	e.plugins.EmitWithdrawal(ctx, &plugin.WithdrawalEvent{
		Commit:  commitOf(out.entry),
		Account: caller,
		Amount:  amount,
	})
	e.plugins.EmitRoleTransitions(ctx, out.transitions)
	return amount, nil
}

// SetFee changes the deposit fee for subsequent deposits. Owner only.
func (e *Escrow) SetFee(ctx context.Context, caller access.Address, bps int) error {
	var old int
	out, err := e.transact(ctx, func(st *state.State) (*journal.Entry, error) {
		if err := requireCaller(caller); err != nil {
			return nil, err
		}
		if !types.ValidBps(bps) {
			return nil, fmt.Errorf("%w: fee %d bps outside [0, %d]", ErrInvalidArgument, bps, types.MaxBps)
		}
		if caller != st.Owner() {
			return nil, fmt.Errorf("%w: only the owner may set the fee", ErrUnauthorized)
		}
		old = st.FeeBps()
		return &journal.Entry{
			Op:     journal.OpSetFee,
			Actor:  caller,
			Config: &journal.ConfigChange{FeeBps: &bps},
		}, nil
	})
	if err != nil {
		return e.reject(ctx, journal.OpSetFee, caller, err)
	}

	e.plugins.EmitFeeChanged(ctx, &plugin.FeeChangedEvent{
		Commit: commitOf(out.entry),
		OldBps: old,
		NewBps: bps,
	})
	return nil
}

// SetRelayer replaces the Relayer. The previous holder loses the role. Owner only.
func (e *Escrow) SetRelayer(ctx context.Context, caller, relayer access.Address) error {
	var old access.Address
	out, err := e.transact(ctx, func(st *state.State) (*journal.Entry, error) {
		if err := requireCaller(caller); err != nil {
			return nil, err
		}
		if !relayer.Valid() {
			return nil, fmt.Errorf("%w: relayer address is required", ErrInvalidArgument)
		}
		if caller != st.Owner() {
			return nil, fmt.Errorf("%w: only the owner may set the relayer", ErrUnauthorized)
		}
		old = st.Relayer()
		return &journal.Entry{
			Op:     journal.OpSetRelayer,
			Actor:  caller,
			Config: &journal.ConfigChange{Relayer: relayer},
		}, nil
	})
	if err != nil {
		return e.reject(ctx, journal.OpSetRelayer, caller, err)
	}

	e.plugins.EmitRelayerChanged(ctx, &plugin.RelayerChangedEvent{
		Commit: commitOf(out.entry),
		Old:    old,
		New:    relayer,
	})
	if old != relayer {
		var ts []access.Transition
		if old != "" {
			ts = append(ts, access.Transition{Address: old, Role: access.RoleRelayer, Granted: false})
		}
		ts = append(ts, access.Transition{Address: relayer, Role: access.RoleRelayer, Granted: true})
		e.plugins.EmitRoleTransitions(ctx, ts)
	}
	return nil
}
