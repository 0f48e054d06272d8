package state

import (
	"fmt"

	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/journal"
	"github.com/xraph/escrow/types"
	"github.com/xraph/escrow/voucher"
)

// Check reports whether e can be applied to the current projection without
// changing anything. An entry that passes Check is guaranteed to Apply.
func (s *State) Check(e *journal.Entry) error {
	_, err := s.plan(e)
	return err
}

// Apply validates e and folds it into the projection. On error nothing changes.
func (s *State) Apply(e *journal.Entry) error {
	p, err := s.plan(e)
	if err != nil {
		return err
	}

	for _, post := range e.Postings {
		if post.Delta < 0 {
			err = s.Debit(post.Account, -post.Delta)
		} else {
			err = s.Credit(post.Account, post.Delta)
		}
		if err != nil {
			return fmt.Errorf("state: apply entry %d: %w", e.Seq, err)
		}
		switch post.Reason {
		case journal.ReasonDeposit:
			s.deposited += post.Delta
		case journal.ReasonReimbursement:
			s.reimbursed += post.Delta
		}
	}

	for _, vc := range e.Vouchers {
		if err := s.applyVoucher(e, vc); err != nil {
			return fmt.Errorf("state: apply entry %d: %w", e.Seq, err)
		}
	}

	if c := e.Config; c != nil {
		if c.Owner != "" {
			s.owner = c.Owner
		}
		if c.Relayer != "" {
			s.relayer = c.Relayer
		}
		if c.FeeBps != nil {
			s.feeBps = *c.FeeBps
		}
		if c.SettlementFee != nil {
			s.settlementFee = *c.SettlementFee
		}
		if c.Policy != "" {
			s.policy = c.Policy
		}
	}

	s.fees += e.FeeCollected
	s.deposited += e.FeeCollected
	s.withdrawn += e.Withdrawn
	s.reserved = p.reserved
	s.seq = e.Seq
	s.hash = e.Hash
	return nil
}

type plan struct {
	reserved types.Amount
}

func (s *State) plan(e *journal.Entry) (plan, error) {
	if e.Seq != s.seq+1 || e.PrevHash != s.hash {
		return plan{}, fmt.Errorf("%w: entry %d after %d", ErrOutOfOrder, e.Seq, s.seq)
	}
	if e.Seq == 1 && e.Op != journal.OpGenesis {
		return plan{}, fmt.Errorf("%w: first entry is %s", ErrOutOfOrder, e.Op)
	}
	if e.FeeCollected < 0 || e.Withdrawn < 0 {
		return plan{}, fmt.Errorf("%w: negative totals in entry %d", ErrInvalidAmount, e.Seq)
	}

	next := make(map[access.Address]types.Amount)
	for _, post := range e.Postings {
		cur, ok := next[post.Account]
		if !ok {
			cur = s.balances[post.Account]
		}
		v, err := cur.Add(post.Delta)
		if err != nil {
			return plan{}, fmt.Errorf("%w: posting to %s: %w", ErrInvalidAmount, post.Account, err)
		}
		if v < 0 {
			return plan{}, fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, post.Account, cur, -post.Delta)
		}
		next[post.Account] = v
	}

	reserved := s.reserved
	touched := make(map[voucher.Code]voucher.Status, len(e.Vouchers))
	for _, vc := range e.Vouchers {
		status, seen := touched[vc.Code]
		if !seen {
			if v, ok := s.vouchers[vc.Code]; ok {
				status, seen = v.Status, true
			}
		}

		if vc.From == "" {
			if vc.To != voucher.StatusMinted {
				return plan{}, fmt.Errorf("%w: %s enters %s without a prior status", ErrIllegalTransition, vc.Code, vc.To)
			}
			if seen {
				return plan{}, fmt.Errorf("%w: %s", ErrCodeReused, vc.Code)
			}
			if vc.Amount <= 0 || vc.Code == "" || vc.Pledger == "" {
				return plan{}, fmt.Errorf("%w: mint %q", ErrInvalidAmount, vc.Code)
			}
			r, err := reserved.Add(vc.Amount)
			if err != nil {
				return plan{}, fmt.Errorf("%w: %w", ErrInvalidAmount, err)
			}
			reserved = r
		} else {
			if !seen {
				return plan{}, fmt.Errorf("%w: %s", ErrUnknownVoucher, vc.Code)
			}
			if status != vc.From || !voucher.CanTransition(vc.From, vc.To) {
				return plan{}, fmt.Errorf("%w: %s is %s, entry moves %s -> %s", ErrIllegalTransition, vc.Code, status, vc.From, vc.To)
			}
			if !vc.To.Live() {
				reserved -= s.amountOf(vc)
			}
		}
		touched[vc.Code] = vc.To
	}

	return plan{reserved: reserved}, nil
}

func (s *State) amountOf(vc journal.VoucherChange) types.Amount {
	if v, ok := s.vouchers[vc.Code]; ok {
		return v.Amount
	}
	return vc.Amount
}

func (s *State) applyVoucher(e *journal.Entry, vc journal.VoucherChange) error {
	if vc.From == "" {
		v := &voucher.Voucher{
			Entity:  types.NewEntity(e.Timestamp),
			ID:      vc.VoucherID,
			Code:    vc.Code,
			Amount:  vc.Amount,
			Pledger: vc.Pledger,
			Status:  voucher.StatusMinted,
		}
		s.vouchers[vc.Code] = v
		s.byPledger[vc.Pledger] = append(s.byPledger[vc.Pledger], vc.Code)
		s.live[vc.Pledger]++
		s.counts[voucher.StatusMinted]++
		return nil
	}

	v := s.vouchers[vc.Code]
	from := v.Status
	if err := v.Transition(vc.To); err != nil {
		return fmt.Errorf("%w: %w", ErrIllegalTransition, err)
	}
	s.counts[from]--
	s.counts[v.Status]++
	if vc.Claimant != "" {
		v.Claimant = vc.Claimant
	}
	if vc.Recipient != "" {
		v.Recipient = vc.Recipient
	}
	v.Touch(e.Timestamp)
	if !v.Status.Live() {
		s.live[v.Pledger]--
		if s.live[v.Pledger] == 0 {
			delete(s.live, v.Pledger)
		}
	}
	return nil
}

// Replay builds a projection from a verified journal.
func Replay(entries []*journal.Entry) (*State, error) {
	s := New()
	for _, e := range entries {
		if err := s.Apply(e); err != nil {
			return nil, err
		}
	}
	return s, nil
}
