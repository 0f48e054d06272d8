// Package audithook bridges escrow lifecycle events to an audit trail backend.
//
// The Recorder interface is local so that any backend can be wired in with a
// RecorderFunc adapter.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/journal"
	"github.com/xraph/escrow/plugin"
	"github.com/xraph/escrow/voucher"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin              = (*Extension)(nil)
	_ plugin.OnDeposit           = (*Extension)(nil)
	_ plugin.OnWithdrawal        = (*Extension)(nil)
	_ plugin.OnFeeChanged        = (*Extension)(nil)
	_ plugin.OnRelayerChanged    = (*Extension)(nil)
	_ plugin.OnVouchersMinted    = (*Extension)(nil)
	_ plugin.OnClaimantsApproved = (*Extension)(nil)
	_ plugin.OnVouchersSettled   = (*Extension)(nil)
	_ plugin.OnVoucherClaimed    = (*Extension)(nil)
	_ plugin.OnVouchersReclaimed = (*Extension)(nil)
	_ plugin.OnRoleGranted       = (*Extension)(nil)
	_ plugin.OnRoleRevoked       = (*Extension)(nil)
	_ plugin.OnOperationRejected = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one audited fact.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Actor      string         `json:"actor,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension records one audit event per escrow lifecycle event.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through r.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnDeposit implements plugin.OnDeposit.
func (e *Extension) OnDeposit(ctx context.Context, ev *plugin.DepositEvent) error {
	return e.record(ctx, ActionDeposit, SeverityInfo, OutcomeSuccess,
		ResourceAccount, string(ev.Account), ev.Actor, CategoryFunds, nil,
		"seq", ev.Seq,
		"gross", int64(ev.Gross),
		"fee", int64(ev.Fee),
		"credited", int64(ev.Credited),
	)
}

// OnWithdrawal implements plugin.OnWithdrawal.
func (e *Extension) OnWithdrawal(ctx context.Context, ev *plugin.WithdrawalEvent) error {
	return e.record(ctx, ActionWithdrawal, SeverityInfo, OutcomeSuccess,
		ResourceAccount, string(ev.Account), ev.Actor, CategoryFunds, nil,
		"seq", ev.Seq,
		"amount", int64(ev.Amount),
	)
}

// OnFeeChanged implements plugin.OnFeeChanged.
func (e *Extension) OnFeeChanged(ctx context.Context, ev *plugin.FeeChangedEvent) error {
	return e.record(ctx, ActionFeeChanged, SeverityWarning, OutcomeSuccess,
		ResourceConfig, "fee_bps", ev.Actor, CategoryGovernance, nil,
		"seq", ev.Seq,
		"old_bps", ev.OldBps,
		"new_bps", ev.NewBps,
	)
}

// ──────────────────────────────────────────────────
// Voucher hooks
// ──────────────────────────────────────────────────

// OnVouchersMinted implements plugin.OnVouchersMinted.
func (e *Extension) OnVouchersMinted(ctx context.Context, ev *plugin.VouchersMintedEvent) error {
	return e.record(ctx, ActionVouchersMinted, SeverityInfo, OutcomeSuccess,
		ResourceVoucher, "", ev.Actor, CategoryVoucher, nil,
		"seq", ev.Seq,
		"codes", codes(ev.Vouchers),
		"total", int64(ev.Total),
	)
}

// OnClaimantsApproved implements plugin.OnClaimantsApproved.
func (e *Extension) OnClaimantsApproved(ctx context.Context, ev *plugin.ClaimantsApprovedEvent) error {
	claimants := make([]string, 0, len(ev.Vouchers))
	for _, v := range ev.Vouchers {
		claimants = append(claimants, string(v.Claimant))
	}
	return e.record(ctx, ActionClaimantsApproved, SeverityInfo, OutcomeSuccess,
		ResourceVoucher, "", ev.Actor, CategoryVoucher, nil,
		"seq", ev.Seq,
		"codes", codes(ev.Vouchers),
		"claimants", claimants,
	)
}

// OnVouchersSettled implements plugin.OnVouchersSettled.
func (e *Extension) OnVouchersSettled(ctx context.Context, ev *plugin.VouchersSettledEvent) error {
	settled := make([]string, 0, len(ev.Settlements))
	for _, s := range ev.Settlements {
		settled = append(settled, string(s.Voucher.Code))
	}
	return e.record(ctx, ActionVouchersSettled, SeverityInfo, OutcomeSuccess,
		ResourceVoucher, "", ev.Actor, CategoryVoucher, nil,
		"seq", ev.Seq,
		"codes", settled,
		"reimbursement", int64(ev.Reimbursement),
	)
}

// OnVoucherClaimed implements plugin.OnVoucherClaimed.
func (e *Extension) OnVoucherClaimed(ctx context.Context, ev *plugin.VoucherClaimedEvent) error {
	return e.record(ctx, ActionVoucherClaimed, SeverityInfo, OutcomeSuccess,
		ResourceVoucher, string(ev.Voucher.Code), ev.Actor, CategoryVoucher, nil,
		"seq", ev.Seq,
		"payout", int64(ev.Payout),
	)
}

// OnVouchersReclaimed implements plugin.OnVouchersReclaimed.
func (e *Extension) OnVouchersReclaimed(ctx context.Context, ev *plugin.VouchersReclaimedEvent) error {
	return e.record(ctx, ActionVouchersReclaimed, SeverityInfo, OutcomeSuccess,
		ResourceVoucher, "", ev.Actor, CategoryVoucher, nil,
		"seq", ev.Seq,
		"codes", codes(ev.Vouchers),
		"amount", int64(ev.Amount),
	)
}

// ──────────────────────────────────────────────────
// Access hooks
// ──────────────────────────────────────────────────

// OnRelayerChanged implements plugin.OnRelayerChanged.
func (e *Extension) OnRelayerChanged(ctx context.Context, ev *plugin.RelayerChangedEvent) error {
	return e.record(ctx, ActionRelayerChanged, SeverityWarning, OutcomeSuccess,
		ResourceConfig, "relayer", ev.Actor, CategoryGovernance, nil,
		"seq", ev.Seq,
		"old", string(ev.Old),
		"new", string(ev.New),
	)
}

// OnRoleGranted implements plugin.OnRoleGranted.
func (e *Extension) OnRoleGranted(ctx context.Context, t access.Transition) error {
	return e.record(ctx, ActionRoleGranted, SeverityInfo, OutcomeSuccess,
		ResourceRole, string(t.Address), "", CategoryAccess, nil,
		"role", string(t.Role),
	)
}

// OnRoleRevoked implements plugin.OnRoleRevoked.
func (e *Extension) OnRoleRevoked(ctx context.Context, t access.Transition) error {
	return e.record(ctx, ActionRoleRevoked, SeverityInfo, OutcomeSuccess,
		ResourceRole, string(t.Address), "", CategoryAccess, nil,
		"role", string(t.Role),
	)
}

// OnOperationRejected implements plugin.OnOperationRejected.
func (e *Extension) OnOperationRejected(ctx context.Context, op journal.Operation, actor access.Address, err error) error {
	return e.record(ctx, ActionOperationRejected, SeverityWarning, OutcomeFailure,
		ResourceOperation, string(op), actor, CategoryAccess, err,
		"operation", string(op),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

func codes(vs []*voucher.Voucher) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, string(v.Code))
	}
	return out
}

// record builds and sends an audit event if the action is enabled. Recorder
// failures are logged, never returned.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID string,
	actor access.Address,
	category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Actor:      string(actor),
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
