package escrow

import (
	"context"
	"fmt"

	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/account"
	"github.com/xraph/escrow/journal"
	"github.com/xraph/escrow/state"
	"github.com/xraph/escrow/types"
	"github.com/xraph/escrow/voucher"
)

// read runs fn against the projection under the read lock.
func (e *Escrow) read(fn func(st *state.State)) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.started {
		return ErrNotStarted
	}
	fn(e.st)
	return nil
}

// Balance returns addr's custodial balance.
func (e *Escrow) Balance(addr access.Address) (types.Amount, error) {
	var b types.Amount
	err := e.read(func(st *state.State) { b = st.Balance(addr) })
	return b, err
}

// Account returns a snapshot of addr. Unknown addresses yield an empty account.
func (e *Escrow) Account(addr access.Address) (*account.Account, error) {
	var a *account.Account
	err := e.read(func(st *state.State) {
		h := st.Holdings(addr)
		a = &account.Account{
			Address:      addr,
			Balance:      h.Balance,
			LiveVouchers: h.LiveVouchers,
			Roles:        st.Roles(addr),
		}
	})
	return a, err
}

// Voucher returns a copy of the voucher with code.
func (e *Escrow) Voucher(code voucher.Code) (*voucher.Voucher, error) {
	var (
		v  *voucher.Voucher
		ok bool
	)
	if err := e.read(func(st *state.State) { v, ok = st.Voucher(code) }); err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVoucher, code)
	}
	return v, nil
}

// VouchersByPledger lists the vouchers pledger minted, oldest first.
func (e *Escrow) VouchersByPledger(pledger access.Address, opts voucher.ListOpts) ([]*voucher.Voucher, error) {
	var out []*voucher.Voucher
	err := e.read(func(st *state.State) { out = st.VouchersByPledger(pledger, opts) })
	return out, err
}

// HasRole reports whether addr currently holds role.
func (e *Escrow) HasRole(addr access.Address, role access.Role) (bool, error) {
	var ok bool
	err := e.read(func(st *state.State) { ok = st.HasRole(addr, role) })
	return ok, err
}

func (e *Escrow) Owner() (access.Address, error) {
	var a access.Address
	err := e.read(func(st *state.State) { a = st.Owner() })
	return a, err
}

func (e *Escrow) Relayer() (access.Address, error) {
	var a access.Address
	err := e.read(func(st *state.State) { a = st.Relayer() })
	return a, err
}

func (e *Escrow) FeeBps() (int, error) {
	var bps int
	err := e.read(func(st *state.State) { bps = st.FeeBps() })
	return bps, err
}

func (e *Escrow) SettlementFee() (types.Amount, error) {
	var fee types.Amount
	err := e.read(func(st *state.State) { fee = st.SettlementFee() })
	return fee, err
}

func (e *Escrow) Policy() (access.ClaimPolicy, error) {
	var p access.ClaimPolicy
	err := e.read(func(st *state.State) { p = st.Policy() })
	return p, err
}

// Stats returns aggregate custody totals and voucher counts.
func (e *Escrow) Stats() (Stats, error) {
	var s Stats
	err := e.read(func(st *state.State) { s = st.Stats() })
	return s, err
}

// Journal lists committed entries from the store in sequence order.
func (e *Escrow) Journal(ctx context.Context, opts journal.ListOpts) ([]*journal.Entry, error) {
	entries, err := e.store.ListEntries(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreFailed, err)
	}
	return entries, nil
}

// VerifyJournal re-reads the stored journal, checks its hash chain and
// confirms its head matches the projection.
func (e *Escrow) VerifyJournal(ctx context.Context) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.started {
		return ErrNotStarted
	}

	entries, err := e.store.ListEntries(ctx, journal.ListOpts{})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreFailed, err)
	}
	if err := journal.Verify(entries); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptJournal, err)
	}

	var head uint64
	hash := journal.GenesisPrevHash
	if n := len(entries); n > 0 {
		head, hash = entries[n-1].Seq, entries[n-1].Hash
	}
	if head != e.st.Seq() || hash != e.st.Hash() {
		return fmt.Errorf("%w: journal head %d/%s, projection %d/%s",
			ErrCorruptJournal, head, hash, e.st.Seq(), e.st.Hash())
	}
	return nil
}
