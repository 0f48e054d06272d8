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
	"github.com/xraph/escrow/voucher"
)

// Settlement is the payout of one voucher in a SendVouchers batch.
type Settlement struct {
	Code      voucher.Code   `json:"code"`
	Recipient access.Address `json:"recipient"`
	Amount    types.Amount   `json:"amount"`
	Payout    types.Amount   `json:"payout"`
	Fee       types.Amount   `json:"fee"`
}

// SettlementResult describes a committed SendVouchers batch.
type SettlementResult struct {
	EntryID       id.EntryID   `json:"entry_id"`
	Seq           uint64       `json:"seq"`
	Settlements   []Settlement `json:"settlements"`
	Reimbursement types.Amount `json:"reimbursement"`
}

// AddVouchers mints one voucher per amount against caller's balance, in input
// order. Either every voucher is minted or none is.
func (e *Escrow) AddVouchers(ctx context.Context, caller access.Address, amounts []types.Amount) ([]voucher.Minted, error) {
	var minted []voucher.Minted
	out, err := e.transact(ctx, func(st *state.State) (*journal.Entry, error) {
		if err := requireCaller(caller); err != nil {
			return nil, err
		}
		if len(amounts) == 0 {
			return nil, fmt.Errorf("%w: no amounts", ErrInvalidArgument)
		}
		for i, a := range amounts {
			if a <= 0 {
				return nil, atIndex(i, fmt.Errorf("%w: voucher amount must be positive, got %d", ErrInvalidArgument, a))
			}
		}
		total, err := types.Sum(amounts...)
		if err != nil {
			return nil, fmt.Errorf("%w: amounts overflow", ErrInvalidArgument)
		}
		if !st.HasRole(caller, access.RolePledger) {
			return nil, fmt.Errorf("%w: %s is not a pledger", ErrUnauthorized, caller)
		}
		if bal := st.Balance(caller); bal < total {
			return nil, fmt.Errorf("%w: balance %d, vouchers total %d", ErrInsufficientFunds, bal, total)
		}

		fresh := make(map[voucher.Code]struct{}, len(amounts))
		changes := make([]journal.VoucherChange, 0, len(amounts))
		minted = make([]voucher.Minted, 0, len(amounts))
		for _, a := range amounts {
			code, err := e.freshCode(st, fresh)
			if err != nil {
				return nil, err
			}
			changes = append(changes, journal.VoucherChange{
				VoucherID: id.NewVoucherID(),
				Code:      code,
				Amount:    a,
				Pledger:   caller,
				To:        voucher.StatusMinted,
			})
			minted = append(minted, voucher.Minted{Code: code, Amount: a})
		}

		return &journal.Entry{
			Op:       journal.OpAddVouchers,
			Actor:    caller,
			Postings: []journal.Posting{{Account: caller, Delta: -total, Reason: journal.ReasonReserve}},
			Vouchers: changes,
		}, nil
	})
	if err != nil {
		return nil, e.reject(ctx, journal.OpAddVouchers, caller, err)
	}

	var total types.Amount
	for _, m := range minted {
		total += m.Amount
	}
	e.plugins.EmitVouchersMinted(ctx, &plugin.VouchersMintedEvent{
		Commit:   commitOf(out.entry),
		Pledger:  caller,
		Vouchers: out.vouchers,
		Total:    total,
	})
	e.plugins.EmitRoleTransitions(ctx, out.transitions)
	return minted, nil
}

// freshCode draws codes until one has never been issued and is not already
// part of the batch being built.
func (e *Escrow) freshCode(st *state.State, batch map[voucher.Code]struct{}) (voucher.Code, error) {
	for attempt := 0; attempt < e.maxCodeAttempts; attempt++ {
		code, err := e.codes.Generate()
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrCodeExhausted, err)
		}
		if code == "" || st.Issued(code) {
			e.logger.Debug("escrow: voucher code collision, regenerating", "attempt", attempt+1)
			continue
		}
		if _, dup := batch[code]; dup {
			continue
		}
		batch[code] = struct{}{}
		return code, nil
	}
	return "", fmt.Errorf("%w after %d attempts", ErrCodeExhausted, e.maxCodeAttempts)
}

// ApproveClaimants names the claimant of each Minted voucher.
//
// Under PolicyRelayerBatched only the relayer may approve; under
// PolicySelfClaim only the voucher's pledger may.
func (e *Escrow) ApproveClaimants(ctx context.Context, caller access.Address, codes []voucher.Code, claimants []access.Address) error {
	out, err := e.transact(ctx, func(st *state.State) (*journal.Entry, error) {
		if err := requireCaller(caller); err != nil {
			return nil, err
		}
		if err := checkPairs(len(codes), len(claimants), codes); err != nil {
			return nil, err
		}
		for i, c := range claimants {
			if !c.Valid() {
				return nil, atIndex(i, fmt.Errorf("%w: claimant address is required", ErrInvalidArgument))
			}
		}
		relayerApproves := st.Policy().RelayerApproves()
		if relayerApproves && caller != st.Relayer() {
			return nil, fmt.Errorf("%w: only the relayer may approve claimants", ErrUnauthorized)
		}

		changes := make([]journal.VoucherChange, 0, len(codes))
		for i, code := range codes {
			v, ok := st.Voucher(code)
			if !ok {
				return nil, atIndex(i, fmt.Errorf("%w: %s", ErrUnknownVoucher, code))
			}
			if !relayerApproves && v.Pledger != caller {
				return nil, atIndex(i, fmt.Errorf("%w: %s does not own %s", ErrUnauthorized, caller, code))
			}
			if v.Status != voucher.StatusMinted {
				return nil, atIndex(i, fmt.Errorf("%w: %s is %s", ErrInvalidState, code, v.Status))
			}
			changes = append(changes, journal.VoucherChange{
				VoucherID: v.ID,
				Code:      code,
				Amount:    v.Amount,
				Pledger:   v.Pledger,
				Claimant:  claimants[i],
				From:      voucher.StatusMinted,
				To:        voucher.StatusApproved,
			})
		}

		return &journal.Entry{Op: journal.OpApproveClaimants, Actor: caller, Vouchers: changes}, nil
	})
	if err != nil {
		return e.reject(ctx, journal.OpApproveClaimants, caller, err)
	}

	e.plugins.EmitClaimantsApproved(ctx, &plugin.ClaimantsApprovedEvent{
		Commit:   commitOf(out.entry),
		Vouchers: out.vouchers,
	})
	return nil
}

// ClaimVoucher settles an Approved voucher to its claimant, crediting the full
// amount. Only available under PolicySelfClaim.
func (e *Escrow) ClaimVoucher(ctx context.Context, caller access.Address, code voucher.Code) (*voucher.Voucher, error) {
	out, err := e.transact(ctx, func(st *state.State) (*journal.Entry, error) {
		if err := requireCaller(caller); err != nil {
			return nil, err
		}
		if code == "" {
			return nil, fmt.Errorf("%w: voucher code is required", ErrInvalidArgument)
		}
		if !st.Policy().AllowsSelfClaim() {
			return nil, fmt.Errorf("%w: self-claim is disabled under %s", ErrUnauthorized, st.Policy())
		}
		v, ok := st.Voucher(code)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownVoucher, code)
		}
		if v.Claimant != caller {
			return nil, fmt.Errorf("%w: %s is not the approved claimant of %s", ErrUnauthorized, caller, code)
		}
		if v.Status != voucher.StatusApproved {
			return nil, fmt.Errorf("%w: %s is %s", ErrInvalidState, code, v.Status)
		}

		return &journal.Entry{
			Op:       journal.OpClaimVoucher,
			Actor:    caller,
			Postings: []journal.Posting{{Account: caller, Delta: v.Amount, Reason: journal.ReasonPayout, Code: code}},
			Vouchers: []journal.VoucherChange{{
				VoucherID: v.ID,
				Code:      code,
				Amount:    v.Amount,
				Pledger:   v.Pledger,
				Recipient: caller,
				From:      voucher.StatusApproved,
				To:        voucher.StatusSettled,
				Payout:    v.Amount,
			}},
		}, nil
	})
	if err != nil {
		return nil, e.reject(ctx, journal.OpClaimVoucher, caller, err)
	}

	claimed := out.vouchers[0]
	e.plugins.EmitVoucherClaimed(ctx, &plugin.VoucherClaimedEvent{
		Commit:     commitOf(out.entry),
		Settlement: plugin.Settlement{Voucher: claimed, Payout: claimed.Amount},
	})
	e.plugins.EmitRoleTransitions(ctx, out.transitions)
	return claimed, nil
}

// SendVouchers settles a batch of vouchers, paying each recipient and
// reimbursing the relayer SettlementFee per voucher. The fee is drawn from the
// pledger's residual balance first and any shortfall from the payout. A Minted
// voucher is approved for its recipient implicitly; an Approved voucher must
// go to its approved claimant. Relayer only, under PolicyRelayerBatched.
func (e *Escrow) SendVouchers(ctx context.Context, caller access.Address, recipients []access.Address, codes []voucher.Code) (*SettlementResult, error) {
	var res SettlementResult
	out, err := e.transact(ctx, func(st *state.State) (*journal.Entry, error) {
		if err := requireCaller(caller); err != nil {
			return nil, err
		}
		if err := checkPairs(len(codes), len(recipients), codes); err != nil {
			return nil, err
		}
		for i, r := range recipients {
			if !r.Valid() {
				return nil, atIndex(i, fmt.Errorf("%w: recipient address is required", ErrInvalidArgument))
			}
		}
		if !st.Policy().AllowsSend() {
			return nil, fmt.Errorf("%w: batched settlement is disabled under %s", ErrUnauthorized, st.Policy())
		}
		if caller != st.Relayer() {
			return nil, fmt.Errorf("%w: only the relayer may send vouchers", ErrUnauthorized)
		}

		fee := st.SettlementFee()
		residual := make(map[access.Address]types.Amount)
		var (
			postings []journal.Posting
			changes  []journal.VoucherChange
			total    types.Amount
		)
		res.Settlements = make([]Settlement, 0, len(codes))
		for i, code := range codes {
			v, ok := st.Voucher(code)
			if !ok {
				return nil, atIndex(i, fmt.Errorf("%w: %s", ErrUnknownVoucher, code))
			}
			if !v.Status.Live() {
				return nil, atIndex(i, fmt.Errorf("%w: %s is %s", ErrInvalidState, code, v.Status))
			}
			if v.Status == voucher.StatusApproved && v.Claimant != recipients[i] {
				return nil, atIndex(i, fmt.Errorf("%w: %s is approved for %s, not %s", ErrInvalidArgument, code, v.Claimant, recipients[i]))
			}

			left, seen := residual[v.Pledger]
			if !seen {
				left = st.Balance(v.Pledger)
			}
			fromResidual := fee.Min(left)
			fromPayout := (fee - fromResidual).Min(v.Amount)
			residual[v.Pledger] = left - fromResidual
			charged := fromResidual + fromPayout
			payout := v.Amount - fromPayout
			next, err := total.Add(charged)
			if err != nil {
				return nil, atIndex(i, fmt.Errorf("%w: reimbursement overflow", ErrInvalidArgument))
			}
			total = next

			if fromResidual > 0 {
				postings = append(postings, journal.Posting{Account: v.Pledger, Delta: -fromResidual, Reason: journal.ReasonSettlementFee, Code: code})
			}
			if payout > 0 {
				postings = append(postings, journal.Posting{Account: recipients[i], Delta: payout, Reason: journal.ReasonPayout, Code: code})
			}
			changes = append(changes, journal.VoucherChange{
				VoucherID: v.ID,
				Code:      code,
				Amount:    v.Amount,
				Pledger:   v.Pledger,
				Claimant:  recipients[i],
				Recipient: recipients[i],
				From:      v.Status,
				To:        voucher.StatusSettled,
				Payout:    payout,
				Fee:       charged,
			})
			res.Settlements = append(res.Settlements, Settlement{
				Code: code, Recipient: recipients[i], Amount: v.Amount, Payout: payout, Fee: charged,
			})
		}
		if total > 0 {
			postings = append(postings, journal.Posting{Account: caller, Delta: total, Reason: journal.ReasonReimbursement})
		}
		res.Reimbursement = total

		return &journal.Entry{Op: journal.OpSendVouchers, Actor: caller, Postings: postings, Vouchers: changes}, nil
	})
	if err != nil {
		return nil, e.reject(ctx, journal.OpSendVouchers, caller, err)
	}

	res.EntryID, res.Seq = out.entry.ID, out.entry.Seq
	settled := make([]plugin.Settlement, 0, len(out.vouchers))
	for i, v := range out.vouchers {
		settled = append(settled, plugin.Settlement{Voucher: v, Payout: res.Settlements[i].Payout, Fee: res.Settlements[i].Fee})
	}
	e.plugins.EmitVouchersSettled(ctx, &plugin.VouchersSettledEvent{
		Commit:        commitOf(out.entry),
		Settlements:   settled,
		Reimbursement: res.Reimbursement,
	})
	e.plugins.EmitRoleTransitions(ctx, out.transitions)
	return &res, nil
}

// ReclaimVouchers returns unsettled vouchers to caller's balance. Caller must
// own every voucher in the batch.
func (e *Escrow) ReclaimVouchers(ctx context.Context, caller access.Address, codes []voucher.Code) (types.Amount, error) {
	var total types.Amount
	out, err := e.transact(ctx, func(st *state.State) (*journal.Entry, error) {
		if err := requireCaller(caller); err != nil {
			return nil, err
		}
		if err := checkCodes(codes); err != nil {
			return nil, err
		}

		total = 0
		changes := make([]journal.VoucherChange, 0, len(codes))
		postings := make([]journal.Posting, 0, len(codes))
		for i, code := range codes {
			v, ok := st.Voucher(code)
			if !ok {
				return nil, atIndex(i, fmt.Errorf("%w: %s", ErrUnknownVoucher, code))
			}
			if v.Pledger != caller {
				return nil, atIndex(i, fmt.Errorf("%w: %s does not own %s", ErrUnauthorized, caller, code))
			}
			if !v.Status.Live() {
				return nil, atIndex(i, fmt.Errorf("%w: %s is %s", ErrInvalidState, code, v.Status))
			}
			next, err := total.Add(v.Amount)
			if err != nil {
				return nil, atIndex(i, fmt.Errorf("%w: reclaimed amount overflow", ErrInvalidArgument))
			}
			total = next
			postings = append(postings, journal.Posting{Account: caller, Delta: v.Amount, Reason: journal.ReasonRelease, Code: code})
			changes = append(changes, journal.VoucherChange{
				VoucherID: v.ID,
				Code:      code,
				Amount:    v.Amount,
				Pledger:   v.Pledger,
				From:      v.Status,
				To:        voucher.StatusReclaimed,
			})
		}

		return &journal.Entry{Op: journal.OpReclaimVouchers, Actor: caller, Postings: postings, Vouchers: changes}, nil
	})
	if err != nil {
		return 0, e.reject(ctx, journal.OpReclaimVouchers, caller, err)
	}

	e.plugins.EmitVouchersReclaimed(ctx, &plugin.VouchersReclaimedEvent{
		Commit:   commitOf(out.entry),
		Vouchers: out.vouchers,
		Amount:   total,
	})
	e.plugins.EmitRoleTransitions(ctx, out.transitions)
	return total, nil
}

func checkPairs(nCodes, nAddrs int, codes []voucher.Code) error {
	if nCodes != nAddrs {
		return fmt.Errorf("%w: %d codes but %d addresses", ErrInvalidArgument, nCodes, nAddrs)
	}
	return checkCodes(codes)
}

func checkCodes(codes []voucher.Code) error {
	if len(codes) == 0 {
		return fmt.Errorf("%w: no voucher codes", ErrInvalidArgument)
	}
	seen := make(map[voucher.Code]struct{}, len(codes))
	for i, c := range codes {
		if c == "" {
			return atIndex(i, fmt.Errorf("%w: empty voucher code", ErrInvalidArgument))
		}
		if _, dup := seen[c]; dup {
			return atIndex(i, fmt.Errorf("%w: duplicate voucher code %s", ErrInvalidArgument, c))
		}
		seen[c] = struct{}{}
	}
	return nil
}
