// Package observability provides a metrics plugin for the escrow engine that
// counts lifecycle events through a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/journal"
	"github.com/xraph/escrow/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin              = (*MetricsExtension)(nil)
	_ plugin.OnInit              = (*MetricsExtension)(nil)
	_ plugin.OnDeposit           = (*MetricsExtension)(nil)
	_ plugin.OnWithdrawal        = (*MetricsExtension)(nil)
	_ plugin.OnFeeChanged        = (*MetricsExtension)(nil)
	_ plugin.OnRelayerChanged    = (*MetricsExtension)(nil)
	_ plugin.OnVouchersMinted    = (*MetricsExtension)(nil)
	_ plugin.OnClaimantsApproved = (*MetricsExtension)(nil)
	_ plugin.OnVouchersSettled   = (*MetricsExtension)(nil)
	_ plugin.OnVoucherClaimed    = (*MetricsExtension)(nil)
	_ plugin.OnVouchersReclaimed = (*MetricsExtension)(nil)
	_ plugin.OnRoleGranted       = (*MetricsExtension)(nil)
	_ plugin.OnRoleRevoked       = (*MetricsExtension)(nil)
	_ plugin.OnOperationRejected = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records escrow lifecycle metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Ledger metrics
	Deposits        Counter
	DepositAmount   Histogram
	FeesCollected   Counter
	Withdrawals     Counter
	WithdrawnAmount Counter
	FeeChanges      Counter

	// Voucher metrics
	VouchersMinted    Counter
	VoucherAmount     Histogram
	VouchersApproved  Counter
	VouchersSettled   Counter
	VouchersClaimed   Counter
	VouchersReclaimed Counter
	SettlementBatch   Histogram
	Reimbursed        Counter

	// Access metrics
	RelayerChanges  Counter
	PledgersGranted Counter
	PledgersRevoked Counter

	// Error metrics
	Rejections map[journal.Operation]Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	m := &MetricsExtension{
		factory: factory,

		Deposits:        factory.Counter("escrow.deposits"),
		DepositAmount:   factory.Histogram("escrow.deposit.amount"),
		FeesCollected:   factory.Counter("escrow.fees.collected"),
		Withdrawals:     factory.Counter("escrow.withdrawals"),
		WithdrawnAmount: factory.Counter("escrow.withdrawn.amount"),
		FeeChanges:      factory.Counter("escrow.fee.changes"),

		VouchersMinted:    factory.Counter("escrow.vouchers.minted"),
		VoucherAmount:     factory.Histogram("escrow.voucher.amount"),
		VouchersApproved:  factory.Counter("escrow.vouchers.approved"),
		VouchersSettled:   factory.Counter("escrow.vouchers.settled"),
		VouchersClaimed:   factory.Counter("escrow.vouchers.claimed"),
		VouchersReclaimed: factory.Counter("escrow.vouchers.reclaimed"),
		SettlementBatch:   factory.Histogram("escrow.settlement.batch.size"),
		Reimbursed:        factory.Counter("escrow.relayer.reimbursed"),

		RelayerChanges:  factory.Counter("escrow.relayer.changes"),
		PledgersGranted: factory.Counter("escrow.pledger.granted"),
		PledgersRevoked: factory.Counter("escrow.pledger.revoked"),

		Rejections: make(map[journal.Operation]Counter),
	}
	for _, op := range []journal.Operation{
		journal.OpDeposit, journal.OpWithdraw, journal.OpSetFee, journal.OpSetRelayer,
		journal.OpAddVouchers, journal.OpApproveClaimants, journal.OpClaimVoucher,
		journal.OpSendVouchers, journal.OpReclaimVouchers,
	} {
		m.Rejections[op] = factory.Counter("escrow.rejected." + string(op))
	}
	return m
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnDeposit implements plugin.OnDeposit.
func (m *MetricsExtension) OnDeposit(_ context.Context, ev *plugin.DepositEvent) error {
	m.Deposits.Inc()
	m.DepositAmount.Observe(float64(ev.Gross))
	m.FeesCollected.Add(float64(ev.Fee))
	return nil
}

// OnWithdrawal implements plugin.OnWithdrawal.
func (m *MetricsExtension) OnWithdrawal(_ context.Context, ev *plugin.WithdrawalEvent) error {
	m.Withdrawals.Inc()
	m.WithdrawnAmount.Add(float64(ev.Amount))
	return nil
}

// OnFeeChanged implements plugin.OnFeeChanged.
func (m *MetricsExtension) OnFeeChanged(_ context.Context, _ *plugin.FeeChangedEvent) error {
	m.FeeChanges.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Voucher hooks
// ──────────────────────────────────────────────────

// OnVouchersMinted implements plugin.OnVouchersMinted.
func (m *MetricsExtension) OnVouchersMinted(_ context.Context, ev *plugin.VouchersMintedEvent) error {
	m.VouchersMinted.Add(float64(len(ev.Vouchers)))
	for _, v := range ev.Vouchers {
		m.VoucherAmount.Observe(float64(v.Amount))
	}
	return nil
}

// OnClaimantsApproved implements plugin.OnClaimantsApproved.
func (m *MetricsExtension) OnClaimantsApproved(_ context.Context, ev *plugin.ClaimantsApprovedEvent) error {
	m.VouchersApproved.Add(float64(len(ev.Vouchers)))
	return nil
}

// OnVouchersSettled implements plugin.OnVouchersSettled.
func (m *MetricsExtension) OnVouchersSettled(_ context.Context, ev *plugin.VouchersSettledEvent) error {
	n := float64(len(ev.Settlements))
	m.VouchersSettled.Add(n)
	m.SettlementBatch.Observe(n)
	m.Reimbursed.Add(float64(ev.Reimbursement))
	return nil
}

// OnVoucherClaimed implements plugin.OnVoucherClaimed.
func (m *MetricsExtension) OnVoucherClaimed(_ context.Context, ev *plugin.VoucherClaimedEvent) error {
	m.VouchersClaimed.Inc()
	m.VouchersSettled.Inc()
	m.Reimbursed.Add(float64(ev.Fee))
	return nil
}

// OnVouchersReclaimed implements plugin.OnVouchersReclaimed.
func (m *MetricsExtension) OnVouchersReclaimed(_ context.Context, ev *plugin.VouchersReclaimedEvent) error {
	m.VouchersReclaimed.Add(float64(len(ev.Vouchers)))
	return nil
}

// ──────────────────────────────────────────────────
// Access hooks
// ──────────────────────────────────────────────────

// OnRelayerChanged implements plugin.OnRelayerChanged.
func (m *MetricsExtension) OnRelayerChanged(_ context.Context, _ *plugin.RelayerChangedEvent) error {
	m.RelayerChanges.Inc()
	return nil
}

// OnRoleGranted implements plugin.OnRoleGranted.
func (m *MetricsExtension) OnRoleGranted(_ context.Context, t access.Transition) error {
	if t.Role == access.RolePledger {
		m.PledgersGranted.Inc()
	}
	return nil
}

// OnRoleRevoked implements plugin.OnRoleRevoked.
func (m *MetricsExtension) OnRoleRevoked(_ context.Context, t access.Transition) error {
	if t.Role == access.RolePledger {
		m.PledgersRevoked.Inc()
	}
	return nil
}

// OnOperationRejected implements plugin.OnOperationRejected.
func (m *MetricsExtension) OnOperationRejected(_ context.Context, op journal.Operation, _ access.Address, _ error) error {
	if c, ok := m.Rejections[op]; ok {
		c.Inc()
	}
	return nil
}
