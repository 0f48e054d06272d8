// Package plugin lets extensions observe the escrow engine. Hooks run after an
// operation has committed and the engine lock is released; a failing or slow
// hook is logged and never affects the operation.
package plugin

import (
	"context"

	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/journal"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called once the engine has replayed its journal. e is the
// *escrow.Escrow instance.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, e any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

type OnDeposit interface {
	Plugin
	OnDeposit(ctx context.Context, ev *DepositEvent) error
}

type OnWithdrawal interface {
	Plugin
	OnWithdrawal(ctx context.Context, ev *WithdrawalEvent) error
}

type OnFeeChanged interface {
	Plugin
	OnFeeChanged(ctx context.Context, ev *FeeChangedEvent) error
}

// ──────────────────────────────────────────────────
// Voucher hooks
// ──────────────────────────────────────────────────

type OnVouchersMinted interface {
	Plugin
	OnVouchersMinted(ctx context.Context, ev *VouchersMintedEvent) error
}

type OnClaimantsApproved interface {
	Plugin
	OnClaimantsApproved(ctx context.Context, ev *ClaimantsApprovedEvent) error
}

// OnVouchersSettled fires for a relayer batch.
type OnVouchersSettled interface {
	Plugin
	OnVouchersSettled(ctx context.Context, ev *VouchersSettledEvent) error
}

// OnVoucherClaimed fires for a single self-claim.
type OnVoucherClaimed interface {
	Plugin
	OnVoucherClaimed(ctx context.Context, ev *VoucherClaimedEvent) error
}

type OnVouchersReclaimed interface {
	Plugin
	OnVouchersReclaimed(ctx context.Context, ev *VouchersReclaimedEvent) error
}

// ──────────────────────────────────────────────────
// Access hooks
// ──────────────────────────────────────────────────

type OnRelayerChanged interface {
	Plugin
	OnRelayerChanged(ctx context.Context, ev *RelayerChangedEvent) error
}

// OnRoleGranted fires when an account gains a role, including derived Pledger grants.
type OnRoleGranted interface {
	Plugin
	OnRoleGranted(ctx context.Context, t access.Transition) error
}

// OnRoleRevoked fires when an account loses a role.
type OnRoleRevoked interface {
	Plugin
	OnRoleRevoked(ctx context.Context, t access.Transition) error
}

// OnOperationRejected fires when a public operation fails without effect.
type OnOperationRejected interface {
	Plugin
	OnOperationRejected(ctx context.Context, op journal.Operation, actor access.Address, err error) error
}
