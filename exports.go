package escrow

import (
	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/state"
	"github.com/xraph/escrow/types"
	"github.com/xraph/escrow/voucher"
)

// Re-exported so callers of the engine rarely need the leaf packages.

type (
	Amount  = types.Amount
	Address = access.Address
	Code    = voucher.Code
	Stats   = state.Stats
)

// DefaultSettlementFee is the relayer reimbursement per settled voucher, in
// the smallest unit. It is drawn from the pledger's residual balance first and
// any shortfall from the payout. Override with WithSettlementFee; pass zero to
// settle without reimbursement.
const DefaultSettlementFee Amount = 10

// DefaultMaxCodeAttempts bounds regeneration after a code collision.
const DefaultMaxCodeAttempts = 16
