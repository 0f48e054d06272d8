package audithook

// Action constants for audit events.
const (
	// Ledger actions
	ActionDeposit    = "ledger.deposit"
	ActionWithdrawal = "ledger.withdrawal"
	ActionFeeChanged = "ledger.fee_changed"

	// Voucher actions
	ActionVouchersMinted    = "voucher.minted"
	ActionClaimantsApproved = "voucher.approved"
	ActionVouchersSettled   = "voucher.settled"
	ActionVoucherClaimed    = "voucher.claimed"
	ActionVouchersReclaimed = "voucher.reclaimed"

	// Access actions
	ActionRelayerChanged    = "access.relayer_changed"
	ActionRoleGranted       = "access.role_granted"
	ActionRoleRevoked       = "access.role_revoked"
	ActionOperationRejected = "operation.rejected"
)

// Resource constants for audit events.
const (
	ResourceAccount   = "account"
	ResourceVoucher   = "voucher"
	ResourceConfig    = "config"
	ResourceRole      = "role"
	ResourceOperation = "operation"
)

// Category constants for audit events.
const (
	CategoryFunds      = "funds"
	CategoryVoucher    = "voucher"
	CategoryAccess     = "access"
	CategoryGovernance = "governance"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
