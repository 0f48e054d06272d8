package plugin

import (
	"time"

	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/types"
	"github.com/xraph/escrow/voucher"
)

// Commit identifies the journal entry an event was produced by.
type Commit struct {
	Seq     uint64         `json:"seq"`
	EntryID id.EntryID     `json:"entry_id"`
	Actor   access.Address `json:"actor"`
	At      time.Time      `json:"at"`
}

type DepositEvent struct {
	Commit
	Account  access.Address `json:"account"`
	Gross    types.Amount   `json:"gross"`
	Fee      types.Amount   `json:"fee"`
	Credited types.Amount   `json:"credited"`
	Balance  types.Amount   `json:"balance"`
}

type WithdrawalEvent struct {
	Commit
	Account access.Address `json:"account"`
	Amount  types.Amount   `json:"amount"`
}

type FeeChangedEvent struct {
	Commit
	OldBps int `json:"old_bps"`
	NewBps int `json:"new_bps"`
}

type RelayerChangedEvent struct {
	Commit
	Old access.Address `json:"old"`
	New access.Address `json:"new"`
}

type VouchersMintedEvent struct {
	Commit
	Pledger  access.Address     `json:"pledger"`
	Vouchers []*voucher.Voucher `json:"vouchers"`
	Total    types.Amount       `json:"total"`
}

type ClaimantsApprovedEvent struct {
	Commit
	Vouchers []*voucher.Voucher `json:"vouchers"`
}

// Settlement is one voucher paid out by a batch or a claim.
type Settlement struct {
	Voucher *voucher.Voucher `json:"voucher"`
	Payout  types.Amount     `json:"payout"`
	Fee     types.Amount     `json:"fee"`
}

type VouchersSettledEvent struct {
	Commit
	Settlements   []Settlement `json:"settlements"`
	Reimbursement types.Amount `json:"reimbursement"`
}

type VoucherClaimedEvent struct {
	Commit
	Settlement
}

type VouchersReclaimedEvent struct {
	Commit
	Vouchers []*voucher.Voucher `json:"vouchers"`
	Amount   types.Amount       `json:"amount"`
}
