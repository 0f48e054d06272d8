package escrow_test

import (
	"context"
	"fmt"
	"log"

	"github.com/xraph/escrow"
	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/store/memory"
	"github.com/xraph/escrow/voucher"
)

// Example walks the package documentation's Quick Start.
func Example() {
	ctx := context.Background()

	e := escrow.New(memory.New(),
		escrow.WithLogger(quietLogger()),
		escrow.WithOwner("owner"),
		escrow.WithRelayer("relayer"),
		escrow.WithFeeBps(250),
	)
	if err := e.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer e.Stop()

	dep, err := e.Deposit(ctx, "alice", 10000)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("credited:", dep.Credited, "fee:", dep.Fee)

	minted, err := e.AddVouchers(ctx, "alice", []escrow.Amount{4000, 4000})
	if err != nil {
		log.Fatal(err)
	}

	first := []voucher.Code{minted[0].Code}
	if err := e.ApproveClaimants(ctx, "relayer", first, []access.Address{"bob"}); err != nil {
		log.Fatal(err)
	}
	if _, err := e.SendVouchers(ctx, "relayer", []access.Address{"bob"}, first); err != nil {
		log.Fatal(err)
	}
	if _, err := e.ReclaimVouchers(ctx, "alice", []voucher.Code{minted[1].Code}); err != nil {
		log.Fatal(err)
	}

	aliceBal, _ := e.Balance("alice")
	bobBal, _ := e.Balance("bob")
	relayerBal, _ := e.Balance("relayer")
	fmt.Println("alice:", aliceBal, "bob:", bobBal, "relayer:", relayerBal)
	// Output:
	// credited: 9750 fee: 250
	// alice: 5740 bob: 4000 relayer: 10
}

func ExampleEscrow_SendVouchers_settlementFee() {
	ctx := context.Background()

	e := escrow.New(memory.New(),
		escrow.WithLogger(quietLogger()),
		escrow.WithOwner("owner"),
		escrow.WithRelayer("relayer"),
		escrow.WithSettlementFee(25),
	)
	if err := e.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer e.Stop()

	_, _ = e.Deposit(ctx, "alice", 1000)
	minted, _ := e.AddVouchers(ctx, "alice", []escrow.Amount{500})

	res, err := e.SendVouchers(ctx, "relayer", []access.Address{"bob"}, []voucher.Code{minted[0].Code})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("payout:", res.Settlements[0].Payout, "reimbursed:", res.Reimbursement)
	// Output:
	// payout: 500 reimbursed: 25
}
