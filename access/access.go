// Package access defines the escrow roles, the claim policy, and the pure
// derivation of the Pledger role from ledger and registry state.
package access

import (
	"fmt"
	"strings"
)

// Address identifies an account. It is opaque to the engine; the caller
// identity is proven outside the core.
type Address string

// Valid reports whether the address is non-empty.
func (a Address) Valid() bool { return strings.TrimSpace(string(a)) != "" }

// String implements fmt.Stringer.
func (a Address) String() string { return string(a) }

// Role is a named permission held by an account.
type Role string

const (
	// RoleOwner is held by exactly one account, fixed at initialization.
	RoleOwner Role = "owner"
	// RoleRelayer is held by at most one account and reassigned by the owner.
	RoleRelayer Role = "relayer"
	// RolePledger is derived, never granted: an account holds it while it has
	// a positive balance or at least one live voucher.
	RolePledger Role = "pledger"
)

// Roles lists every role kind in a stable order.
func Roles() []Role { return []Role{RoleOwner, RoleRelayer, RolePledger} }

// ParseRole parses a role name, case-insensitively.
func ParseRole(s string) (Role, error) {
	want := Role(strings.ToLower(strings.TrimSpace(s)))
	for _, r := range Roles() {
		if r == want {
			return r, nil
		}
	}
	return "", fmt.Errorf("access: unknown role %q", s)
}

// ClaimPolicy selects who drives voucher approval and settlement.
type ClaimPolicy string

const (
	// PolicyRelayerBatched: the relayer approves claimants and settles batches
	// with sendVouchers, paying gas on behalf of claimants. claimVoucher is disabled.
	PolicyRelayerBatched ClaimPolicy = "relayer_batched"
	// PolicySelfClaim: the owning pledger approves claimants and each claimant
	// settles its own voucher with claimVoucher. sendVouchers is disabled.
	PolicySelfClaim ClaimPolicy = "self_claim"
)

// DefaultPolicy is used when none is configured.
const DefaultPolicy = PolicyRelayerBatched

// ParsePolicy parses a policy name. The empty string yields DefaultPolicy.
func ParsePolicy(s string) (ClaimPolicy, error) {
	switch p := ClaimPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return DefaultPolicy, nil
	case PolicyRelayerBatched, PolicySelfClaim:
		return p, nil
	default:
		return "", fmt.Errorf("access: unknown claim policy %q", s)
	}
}

// Valid reports whether p is a known policy.
func (p ClaimPolicy) Valid() bool {
	return p == PolicyRelayerBatched || p == PolicySelfClaim
}

// RelayerApproves reports whether approveClaimants is reserved for the relayer.
func (p ClaimPolicy) RelayerApproves() bool { return p == PolicyRelayerBatched }

// AllowsSend reports whether sendVouchers is enabled.
func (p ClaimPolicy) AllowsSend() bool { return p == PolicyRelayerBatched }

// AllowsSelfClaim reports whether claimVoucher is enabled.
func (p ClaimPolicy) AllowsSelfClaim() bool { return p == PolicySelfClaim }
