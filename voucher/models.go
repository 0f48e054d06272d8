// Package voucher models coded, pre-funded claims against a pledger's escrowed
// balance and the status machine they move through.
package voucher

import (
	"fmt"

	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/types"
)

// Code is the opaque identifier handed to a claimant. It is unique across the
// lifetime of an engine and never reused.
type Code string

// String implements fmt.Stringer.
func (c Code) String() string { return string(c) }

type Status string

const (
	StatusMinted    Status = "minted"
	StatusApproved  Status = "approved"
	StatusSettled   Status = "settled"
	StatusReclaimed Status = "reclaimed"
)

// Live reports whether the voucher still reserves funds.
func (s Status) Live() bool { return s == StatusMinted || s == StatusApproved }

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool { return s == StatusSettled || s == StatusReclaimed }

// CanTransition reports whether from -> to is a legal move.
//
//	Minted   -> Approved | Settled | Reclaimed
//	Approved -> Settled  | Reclaimed
//
// Minted -> Settled is the implicit approval performed by a relayer batch.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusMinted:
		return to == StatusApproved || to == StatusSettled || to == StatusReclaimed
	case StatusApproved:
		return to == StatusSettled || to == StatusReclaimed
	default:
		return false
	}
}

type Voucher struct {
	types.Entity
	ID        id.VoucherID   `json:"id"`
	Code      Code           `json:"code"`
	Amount    types.Amount   `json:"amount"`
	Pledger   access.Address `json:"pledger"`
	Claimant  access.Address `json:"claimant,omitempty"`
	Recipient access.Address `json:"recipient,omitempty"`
	Status    Status         `json:"status"`
}

// Transition moves v to status or returns an error naming the illegal move.
func (v *Voucher) Transition(to Status) error {
	if !CanTransition(v.Status, to) {
		return fmt.Errorf("voucher %s: %s -> %s", v.Code, v.Status, to)
	}
	v.Status = to
	return nil
}

// Clone returns an independent copy.
func (v *Voucher) Clone() *Voucher {
	c := *v
	return &c
}

// Minted is the (code, amount) pair reported back to a pledger by addVouchers.
type Minted struct {
	Code   Code         `json:"code"`
	Amount types.Amount `json:"amount"`
}

// ListOpts filters voucher listings.
type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}
