// Package state is the in-memory projection of the escrow journal: balances,
// vouchers, role assignments and configuration. It is not safe for concurrent
// use; the engine serializes every access.
package state

import (
	"errors"
	"fmt"

	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/journal"
	"github.com/xraph/escrow/types"
	"github.com/xraph/escrow/voucher"
)

var (
	ErrInsufficientFunds = errors.New("state: insufficient funds")
	ErrInvalidAmount     = errors.New("state: invalid amount")
	ErrUnknownVoucher    = errors.New("state: unknown voucher")
	ErrCodeReused        = errors.New("state: voucher code already issued")
	ErrIllegalTransition = errors.New("state: illegal voucher transition")
	ErrOutOfOrder        = errors.New("state: entry out of order")
)

// Stats summarizes the projection.
type Stats struct {
	Seq            uint64                 `json:"seq"`
	Accounts       int                    `json:"accounts"`
	Pledgers       int                    `json:"pledgers"`
	TotalBalances  types.Amount           `json:"total_balances"`
	TotalReserved  types.Amount           `json:"total_reserved"`
	TotalCustody   types.Amount           `json:"total_custody"`
	TotalDeposited types.Amount           `json:"total_deposited"`
	TotalWithdrawn types.Amount           `json:"total_withdrawn"`
	FeesCollected  types.Amount           `json:"fees_collected"`
	Reimbursed     types.Amount           `json:"relayer_reimbursed"`
	Vouchers       map[voucher.Status]int `json:"vouchers"`
}

// State is the projection. The zero value is not usable; call New.
type State struct {
	owner         access.Address
	relayer       access.Address
	feeBps        int
	settlementFee types.Amount
	policy        access.ClaimPolicy

	balances  map[access.Address]types.Amount
	vouchers  map[voucher.Code]*voucher.Voucher
	byPledger map[access.Address][]voucher.Code
	live      map[access.Address]int
	reserved  types.Amount
	counts    map[voucher.Status]int

	deposited  types.Amount
	withdrawn  types.Amount
	fees       types.Amount
	reimbursed types.Amount

	seq  uint64
	hash string
}

// New returns an empty projection awaiting its genesis entry.
func New() *State {
	return &State{
		policy:    access.DefaultPolicy,
		balances:  make(map[access.Address]types.Amount),
		vouchers:  make(map[voucher.Code]*voucher.Voucher),
		byPledger: make(map[access.Address][]voucher.Code),
		live:      make(map[access.Address]int),
		counts:    make(map[voucher.Status]int),
		hash:      journal.GenesisPrevHash,
	}
}

func (s *State) Owner() access.Address { return s.owner }
func (s *State) Relayer() access.Address { return s.relayer }
func (s *State) FeeBps() int { return s.feeBps }
func (s *State) SettlementFee() types.Amount { return s.settlementFee }
func (s *State) Policy() access.ClaimPolicy { return s.policy }

// Seq is the sequence number of the last applied entry.
func (s *State) Seq() uint64 { return s.seq }

// Hash is the hash of the last applied entry.
func (s *State) Hash() string { return s.hash }

// Balance returns the custodial balance of addr.
func (s *State) Balance(addr access.Address) types.Amount { return s.balances[addr] }

// Holdings returns the inputs of the Pledger derivation for addr.
func (s *State) Holdings(addr access.Address) access.Holdings {
	return access.Holdings{Balance: s.balances[addr], LiveVouchers: s.live[addr]}
}

// Roles returns every role addr holds right now.
func (s *State) Roles(addr access.Address) []access.Role {
	return access.RolesOf(addr, access.Assignments{Owner: s.owner, Relayer: s.relayer}, s.Holdings(addr))
}

// HasRole reports whether addr holds role.
func (s *State) HasRole(addr access.Address, role access.Role) bool {
	return access.Has(s.Roles(addr), role)
}

// Voucher returns a copy of the voucher with code.
func (s *State) Voucher(code voucher.Code) (*voucher.Voucher, bool) {
	v, ok := s.vouchers[code]
	if !ok {
		return nil, false
	}
	return v.Clone(), true
}

// Issued reports whether code was ever minted. Codes are never reused.
func (s *State) Issued(code voucher.Code) bool {
	_, ok := s.vouchers[code]
	return ok
}

// VouchersByPledger returns copies of the pledger's vouchers in mint order.
func (s *State) VouchersByPledger(addr access.Address, opts voucher.ListOpts) []*voucher.Voucher {
	codes := s.byPledger[addr]
	out := make([]*voucher.Voucher, 0, len(codes))
	for _, c := range codes {
		v := s.vouchers[c]
		if opts.Status != "" && v.Status != opts.Status {
			continue
		}
		out = append(out, v.Clone())
	}
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []*voucher.Voucher{}
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

// LiveCount returns the number of Minted or Approved vouchers owned by addr.
func (s *State) LiveCount(addr access.Address) int { return s.live[addr] }

// Stats returns aggregate totals.
func (s *State) Stats() Stats {
	st := Stats{
		Seq:            s.seq,
		TotalReserved:  s.reserved,
		TotalDeposited: s.deposited,
		TotalWithdrawn: s.withdrawn,
		FeesCollected:  s.fees,
		Reimbursed:     s.reimbursed,
		Vouchers:       make(map[voucher.Status]int, len(s.counts)),
	}
	seen := make(map[access.Address]struct{}, len(s.balances)+len(s.live))
	for a, b := range s.balances {
		st.TotalBalances += b
		seen[a] = struct{}{}
	}
	for a := range s.live {
		seen[a] = struct{}{}
	}
	for a := range seen {
		st.Accounts++
		if access.IsPledger(s.Holdings(a)) {
			st.Pledgers++
		}
	}
	for k, v := range s.counts {
		st.Vouchers[k] = v
	}
	st.TotalCustody = st.TotalBalances + st.TotalReserved
	return st
}

// Credit adds amount to addr. Together with Debit it is the only way a balance changes.
func (s *State) Credit(addr access.Address, amount types.Amount) error {
	if amount < 0 {
		return fmt.Errorf("%w: credit %d", ErrInvalidAmount, amount)
	}
	next, err := s.balances[addr].Add(amount)
	if err != nil {
		return fmt.Errorf("%w: credit %s: %w", ErrInvalidAmount, addr, err)
	}
	s.setBalance(addr, next)
	return nil
}

// Debit removes amount from addr, failing with ErrInsufficientFunds when the
// balance is smaller.
func (s *State) Debit(addr access.Address, amount types.Amount) error {
	if amount < 0 {
		return fmt.Errorf("%w: debit %d", ErrInvalidAmount, amount)
	}
	cur := s.balances[addr]
	if cur < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, addr, cur, amount)
	}
	s.setBalance(addr, cur-amount)
	return nil
}

func (s *State) setBalance(addr access.Address, v types.Amount) {
	if v == 0 {
		delete(s.balances, addr)
		return
	}
	s.balances[addr] = v
}
