// Package account defines the read-side view of one escrow participant.
package account

import (
	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/types"
)

// Account is a snapshot of an address's custodial position.
type Account struct {
	Address      access.Address `json:"address"`
	Balance      types.Amount   `json:"balance"`
	LiveVouchers int            `json:"live_vouchers"`
	Roles        []access.Role  `json:"roles"`
}

// HasRole reports whether the snapshot includes role.
func (a *Account) HasRole(role access.Role) bool { return access.Has(a.Roles, role) }

// IsPledger reports whether the account held the Pledger role when taken.
func (a *Account) IsPledger() bool { return a.HasRole(access.RolePledger) }

// Empty reports whether the account has no balance and no live vouchers.
func (a *Account) Empty() bool { return a.Balance == 0 && a.LiveVouchers == 0 }
