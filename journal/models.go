// Package journal is the append-only, hash-chained record of every committed
// escrow operation. The in-memory projection is rebuilt by replaying it.
package journal

import (
	"time"

	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/types"
	"github.com/xraph/escrow/voucher"
)

type Operation string

const (
	OpGenesis          Operation = "genesis"
	OpDeposit          Operation = "deposit"
	OpWithdraw         Operation = "withdraw"
	OpSetFee           Operation = "set_fee"
	OpSetRelayer       Operation = "set_relayer"
	OpAddVouchers      Operation = "add_vouchers"
	OpApproveClaimants Operation = "approve_claimants"
	OpClaimVoucher     Operation = "claim_voucher"
	OpSendVouchers     Operation = "send_vouchers"
	OpReclaimVouchers  Operation = "reclaim_vouchers"
)

// Reason explains why a posting moved a balance.
type Reason string

const (
	ReasonDeposit       Reason = "deposit"
	ReasonWithdrawal    Reason = "withdrawal"
	ReasonReserve       Reason = "voucher_reserve"
	ReasonRelease       Reason = "voucher_release"
	ReasonPayout        Reason = "settlement_payout"
	ReasonSettlementFee Reason = "settlement_fee"
	ReasonReimbursement Reason = "relayer_reimbursement"
)

// Posting is a signed change to one account balance.
type Posting struct {
	Account access.Address `json:"account"`
	Delta   types.Amount   `json:"delta"`
	Reason  Reason         `json:"reason"`
	Code    voucher.Code   `json:"code,omitempty"`
}

// VoucherChange records a voucher entering a status. From is empty for mints.
type VoucherChange struct {
	VoucherID id.VoucherID   `json:"voucher_id"`
	Code      voucher.Code   `json:"code"`
	Amount    types.Amount   `json:"amount"`
	Pledger   access.Address `json:"pledger"`
	Claimant  access.Address `json:"claimant,omitempty"`
	Recipient access.Address `json:"recipient,omitempty"`
	From      voucher.Status `json:"from,omitempty"`
	To        voucher.Status `json:"to"`
	Payout    types.Amount   `json:"payout,omitempty"`
	Fee       types.Amount   `json:"fee,omitempty"`
}

// ConfigChange carries configuration set by genesis, setFee or setRelayer.
// Nil fields are unchanged.
type ConfigChange struct {
	Owner         access.Address     `json:"owner,omitempty"`
	Relayer       access.Address     `json:"relayer,omitempty"`
	FeeBps        *int               `json:"fee_bps,omitempty"`
	SettlementFee *types.Amount      `json:"settlement_fee,omitempty"`
	Policy        access.ClaimPolicy `json:"policy,omitempty"`
}

// Entry is one committed operation.
type Entry struct {
	ID           id.EntryID      `json:"id"`
	Seq          uint64          `json:"seq"`
	Op           Operation       `json:"op"`
	Actor        access.Address  `json:"actor,omitempty"`
	Postings     []Posting       `json:"postings,omitempty"`
	Vouchers     []VoucherChange `json:"vouchers,omitempty"`
	Config       *ConfigChange   `json:"config,omitempty"`
	FeeCollected types.Amount    `json:"fee_collected,omitempty"`
	Withdrawn    types.Amount    `json:"withdrawn,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
	PrevHash     string          `json:"prev_hash"`
	Hash         string          `json:"hash"`
}

// ListOpts pages through the journal in sequence order.
type ListOpts struct {
	AfterSeq uint64
	Limit    int
	Op       Operation
}
