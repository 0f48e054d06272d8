// Package escrow is a custodial voucher distribution engine.
//
// Pledgers deposit funds into per-account balances (less a basis-point fee),
// carve those balances into uniquely coded vouchers, and name a claimant for
// each. A relayer settles vouchers in batches, paying claimants and being
// reimbursed from the same ledger. Vouchers nobody claimed are reclaimed back
// into the pledger's balance.
//
// Every public operation runs as one serialized transaction: it validates
// against the current state, appends one hash-chained journal entry to the
// store, then applies it. A rejected call changes nothing and returns an error
// wrapping one of ErrInsufficientFunds, ErrUnauthorized, ErrInvalidState,
// ErrUnknownVoucher or ErrInvalidArgument.
//
// # Quick Start
//
//	e := escrow.New(memory.New(),
//	    escrow.WithOwner("owner"),
//	    escrow.WithRelayer("relayer"),
//	    escrow.WithFeeBps(250),
//	)
//	if err := e.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Stop()
//
//	_, _ = e.Deposit(ctx, "alice", 10000)              // balance 9750
//	minted, _ := e.AddVouchers(ctx, "alice", []escrow.Amount{4000, 4000})
//	_ = e.ApproveClaimants(ctx, "relayer", []voucher.Code{minted[0].Code}, []access.Address{"bob"})
//	_, _ = e.SendVouchers(ctx, "relayer", []access.Address{"bob"}, []voucher.Code{minted[0].Code})
//	_, _ = e.ReclaimVouchers(ctx, "alice", []voucher.Code{minted[1].Code})
//
// # Claim policies
//
// access.PolicyRelayerBatched (the default) lets only the relayer approve
// claimants and settle batches with SendVouchers. access.PolicySelfClaim lets
// pledgers approve their own vouchers and claimants call ClaimVoucher.
//
// # Persistence
//
// Stores live under store/: memory, postgres, sqlite and mongo. On Start the
// journal is loaded, its hash chain verified and replayed; an empty journal is
// initialized with a genesis entry recording owner, relayer, fee and policy.
package escrow
