package access

import (
	"sort"

	"github.com/xraph/escrow/types"
)

// Holdings is the slice of state that determines derived roles for one account.
type Holdings struct {
	Balance      types.Amount
	LiveVouchers int
}

// IsPledger is the Pledger derivation rule.
func IsPledger(h Holdings) bool {
	return h.Balance > 0 || h.LiveVouchers > 0
}

// Assignments names the holders of the singular roles.
type Assignments struct {
	Owner   Address
	Relayer Address
}

// RolesOf returns every role held by addr in a stable order.
func RolesOf(addr Address, a Assignments, h Holdings) []Role {
	var roles []Role
	if addr == a.Owner && addr != "" {
		roles = append(roles, RoleOwner)
	}
	if addr == a.Relayer && addr != "" {
		roles = append(roles, RoleRelayer)
	}
	if IsPledger(h) {
		roles = append(roles, RolePledger)
	}
	return roles
}

// Has reports whether role is present in roles.
func Has(roles []Role, role Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// Transition is one derived-role change produced by a mutation.
type Transition struct {
	Address Address `json:"address"`
	Role    Role    `json:"role"`
	Granted bool    `json:"granted"`
}

// DiffPledgers compares Pledger membership before and after a mutation over the
// touched addresses and returns the grants and revocations, sorted by address.
func DiffPledgers(before, after map[Address]Holdings) []Transition {
	seen := make(map[Address]struct{}, len(before)+len(after))
	for a := range before {
		seen[a] = struct{}{}
	}
	for a := range after {
		seen[a] = struct{}{}
	}

	addrs := make([]Address, 0, len(seen))
	for a := range seen {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	var out []Transition
	for _, a := range addrs {
		was, is := IsPledger(before[a]), IsPledger(after[a])
		if was != is {
			out = append(out, Transition{Address: a, Role: RolePledger, Granted: is})
		}
	}
	return out
}
