package tokensale_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/tokensale"
	"github.com/xraph/tokensale/capability"
	"github.com/xraph/tokensale/id"
	"github.com/xraph/tokensale/payment"
	"github.com/xraph/tokensale/store/memory"
	"github.com/xraph/tokensale/types"
)

type saleFixture struct {
	sale   *tokensale.Sale
	ledger *tokensale.Ledger
	asset  *payment.MemoryAsset
	roles  *capability.Registry
	admin  id.AccountID
	wallet id.AccountID
	now    time.Time
}

// newSaleFixture builds a sale over an 18-decimal ledger and a 6-decimal
// payment asset, with a controllable clock frozen at f.now.
func newSaleFixture(t *testing.T, supplyCap types.Amount) *saleFixture {
	t.Helper()
	ctx := context.Background()

	f := &saleFixture{
		roles:  capability.NewRegistry(),
		admin:  id.NewAccountID(),
		wallet: id.NewAccountID(),
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := f.roles.Grant(ctx, f.admin, capability.RoleAdmin); err != nil {
		t.Fatalf("grant admin: %v", err)
	}

	s := memory.New()
	f.ledger = tokensale.NewLedger(s, f.roles, supplyCap)
	if err := f.ledger.Start(ctx); err != nil {
		t.Fatalf("start ledger: %v", err)
	}

	f.asset = payment.NewMemoryAsset(6)
	f.sale = tokensale.NewSale(s, f.ledger, f.asset, f.wallet, f.roles,
		tokensale.WithClock(func() time.Time { return f.now }))

	// The sale mints on behalf of buyers.
	if err := f.roles.Grant(ctx, f.sale.Account(), capability.RoleIssuer); err != nil {
		t.Fatalf("grant issuer to sale: %v", err)
	}

	return f
}

// fundedBuyer creates a buyer holding the given payment balance.
func (f *saleFixture) fundedBuyer(balance types.Amount) id.AccountID {
	buyer := id.NewAccountID()
	f.asset.Mint(buyer, balance)
	return buyer
}

func TestStartSale(t *testing.T) {
	ctx := context.Background()
	f := newSaleFixture(t, types.Units(100_000, 18))

	round, err := f.sale.StartSale(ctx, f.admin, f.now,
		types.Units(1, 18),         // min purchase: one whole token
		types.NewAmount(1_000_000), // rate: 1 payment unit per whole token
		types.Units(50_000, 6),     // cap: 50,000 payment units
	)
	if err != nil {
		t.Fatalf("StartSale: %v", err)
	}
	if round.ID != 1 {
		t.Errorf("round id = %d, want 1", round.ID)
	}
	if !round.TotalInvestment.IsZero() || round.Finalized {
		t.Errorf("fresh round = %+v", round)
	}

	current, err := f.sale.CurrentSaleID(ctx)
	if err != nil || current != 1 {
		t.Errorf("CurrentSaleID = %d, %v, want 1", current, err)
	}
}

func TestStartSaleValidation(t *testing.T) {
	ctx := context.Background()
	f := newSaleFixture(t, types.Units(100_000, 18))

	min := types.Units(1, 18)
	rate := types.NewAmount(1_000_000)
	roundCap := types.Units(50_000, 6)

	// Admin capability required.
	if _, err := f.sale.StartSale(ctx, id.NewAccountID(), f.now, min, rate, roundCap); !errors.Is(err, tokensale.ErrUnauthorized) {
		t.Errorf("StartSale by stranger = %v, want ErrUnauthorized", err)
	}

	// Start time in the past.
	past := f.now.Add(-time.Second)
	if _, err := f.sale.StartSale(ctx, f.admin, past, min, rate, roundCap); !errors.Is(err, tokensale.ErrIncorrectStartTime) {
		t.Errorf("past start = %v, want ErrIncorrectStartTime", err)
	}

	// Zero rate and zero cap.
	if _, err := f.sale.StartSale(ctx, f.admin, f.now, min, types.Amount{}, roundCap); !errors.Is(err, tokensale.ErrZeroParam) {
		t.Errorf("zero rate = %v, want ErrZeroParam", err)
	}
	if _, err := f.sale.StartSale(ctx, f.admin, f.now, min, rate, types.Amount{}); !errors.Is(err, tokensale.ErrZeroParam) {
		t.Errorf("zero cap = %v, want ErrZeroParam", err)
	}

	// Minimum purchase below one whole token.
	var minErr *tokensale.BelowMinPurchaseError
	_, err := f.sale.StartSale(ctx, f.admin, f.now, types.NewAmount(1), rate, roundCap)
	if !errors.As(err, &minErr) {
		t.Errorf("tiny min purchase = %v, want BelowMinPurchaseError", err)
	}
}

func TestStartSaleWhileActive(t *testing.T) {
	ctx := context.Background()
	f := newSaleFixture(t, types.Units(100_000, 18))

	min := types.Units(1, 18)
	rate := types.NewAmount(1_000_000)
	roundCap := types.Units(50_000, 6)

	if _, err := f.sale.StartSale(ctx, f.admin, f.now, min, rate, roundCap); err != nil {
		t.Fatalf("StartSale: %v", err)
	}

	// A second round cannot start while round 1 is open.
	if _, err := f.sale.StartSale(ctx, f.admin, f.now, min, rate, roundCap); !errors.Is(err, tokensale.ErrSaleMustNotBeActive) {
		t.Errorf("second StartSale = %v, want ErrSaleMustNotBeActive", err)
	}

	if err := f.sale.StopSale(ctx, f.admin); err != nil {
		t.Fatalf("StopSale: %v", err)
	}

	round, err := f.sale.StartSale(ctx, f.admin, f.now, min, rate, roundCap)
	if err != nil {
		t.Fatalf("StartSale after stop: %v", err)
	}
	if round.ID != 2 {
		t.Errorf("round id = %d, want 2", round.ID)
	}
}

func TestBuyPricing(t *testing.T) {
	ctx := context.Background()
	f := newSaleFixture(t, types.Units(100_000, 18))

	// Rate 1,000,000: one whole 18-decimal token costs one whole
	// 6-decimal payment unit.
	if _, err := f.sale.StartSale(ctx, f.admin, f.now,
		types.Units(1, 18), types.NewAmount(1_000_000), types.Units(50_000, 6)); err != nil {
		t.Fatalf("StartSale: %v", err)
	}

	buyer := f.fundedBuyer(types.Units(100, 6))

	purchase, err := f.sale.Buy(ctx, buyer, types.Units(10, 18))
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if !purchase.PaymentAmount.Equal(types.Units(10, 6)) {
		t.Errorf("payment = %s, want %s", purchase.PaymentAmount, types.Units(10, 6))
	}
	if !purchase.TokenAmount.Equal(types.Units(10, 18)) {
		t.Errorf("tokens = %s", purchase.TokenAmount)
	}

	// Tokens minted to the buyer, payment moved to the treasury.
	tokens, _ := f.ledger.BalanceOf(ctx, buyer)
	if !tokens.Equal(types.Units(10, 18)) {
		t.Errorf("token balance = %s, want %s", tokens, types.Units(10, 18))
	}
	treasury := f.asset.BalanceOf(f.wallet)
	if !treasury.Equal(types.Units(10, 6)) {
		t.Errorf("treasury = %s, want %s", treasury, types.Units(10, 6))
	}

	// Fractional purchase: floor division drops the sub-unit remainder in
	// the buyer's favor. 1.5 tokens at this rate costs exactly 1.5 payment
	// units; 1.0000000000000000015 tokens still costs 1 payment unit.
	odd := types.Units(1, 18).Add(types.NewAmount(15)) // 1 token + 15 wei
	cost, err := f.sale.PaymentAmount(ctx, odd)
	if err != nil {
		t.Fatalf("PaymentAmount: %v", err)
	}
	if !cost.Equal(types.NewAmount(1_000_000)) {
		t.Errorf("floored cost = %s, want 1000000", cost)
	}
}

func TestBuyValidation(t *testing.T) {
	ctx := context.Background()
	f := newSaleFixture(t, types.Units(100_000, 18))
	buyer := f.fundedBuyer(types.Units(100, 6))

	// No round configured yet.
	if _, err := f.sale.Buy(ctx, buyer, types.Units(1, 18)); !errors.Is(err, tokensale.ErrSaleNotInitialized) {
		t.Errorf("Buy before init = %v, want ErrSaleNotInitialized", err)
	}

	// Round starts one hour from now.
	start := f.now.Add(time.Hour)
	if _, err := f.sale.StartSale(ctx, f.admin, start,
		types.Units(1, 18), types.NewAmount(1_000_000), types.Units(50_000, 6)); err != nil {
		t.Fatalf("StartSale: %v", err)
	}

	if _, err := f.sale.Buy(ctx, buyer, types.Units(1, 18)); !errors.Is(err, tokensale.ErrSaleNotStarted) {
		t.Errorf("Buy before start = %v, want ErrSaleNotStarted", err)
	}

	// Advance past the start time.
	f.now = start.Add(time.Minute)

	var minErr *tokensale.BelowMinPurchaseError
	if _, err := f.sale.Buy(ctx, buyer, types.NewAmount(1)); !errors.As(err, &minErr) {
		t.Errorf("Buy below min = %v, want BelowMinPurchaseError", err)
	}

	if err := f.sale.StopSale(ctx, f.admin); err != nil {
		t.Fatalf("StopSale: %v", err)
	}
	if _, err := f.sale.Buy(ctx, buyer, types.Units(1, 18)); !errors.Is(err, tokensale.ErrSaleIsFinalized) {
		t.Errorf("Buy after stop = %v, want ErrSaleIsFinalized", err)
	}
}

func TestBuyCapExhaustionFinalizes(t *testing.T) {
	ctx := context.Background()
	f := newSaleFixture(t, types.Units(100_000, 18))

	// Cap of exactly 10 payment units: ten whole tokens fill it.
	if _, err := f.sale.StartSale(ctx, f.admin, f.now,
		types.Units(1, 18), types.NewAmount(1_000_000), types.Units(10, 6)); err != nil {
		t.Fatalf("StartSale: %v", err)
	}

	buyer := f.fundedBuyer(types.Units(100, 6))

	// Over the cap: rejected, nothing moves.
	if _, err := f.sale.Buy(ctx, buyer, types.Units(11, 18)); !errors.Is(err, tokensale.ErrMaxCapReached) {
		t.Fatalf("Buy over cap = %v, want ErrMaxCapReached", err)
	}
	if !f.asset.BalanceOf(f.wallet).IsZero() {
		t.Error("treasury credited by failed purchase")
	}

	// Exact cap: succeeds and finalizes the round in the same step.
	if _, err := f.sale.Buy(ctx, buyer, types.Units(10, 18)); err != nil {
		t.Fatalf("Buy at cap: %v", err)
	}

	round, err := f.sale.CurrentSale(ctx)
	if err != nil {
		t.Fatalf("CurrentSale: %v", err)
	}
	if !round.Finalized {
		t.Error("round not finalized at exact cap")
	}
	if !round.TotalInvestment.Equal(round.Cap) {
		t.Errorf("total = %s, cap = %s", round.TotalInvestment, round.Cap)
	}

	// The finalized round admits no further purchases.
	if _, err := f.sale.Buy(ctx, buyer, types.Units(1, 18)); !errors.Is(err, tokensale.ErrSaleIsFinalized) {
		t.Errorf("Buy after finalization = %v, want ErrSaleIsFinalized", err)
	}
}

func TestBuyInsufficientPaymentRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newSaleFixture(t, types.Units(100_000, 18))

	if _, err := f.sale.StartSale(ctx, f.admin, f.now,
		types.Units(1, 18), types.NewAmount(1_000_000), types.Units(50_000, 6)); err != nil {
		t.Fatalf("StartSale: %v", err)
	}

	// Buyer holds 5 payment units but tries to buy 10 tokens.
	buyer := f.fundedBuyer(types.Units(5, 6))

	_, err := f.sale.Buy(ctx, buyer, types.Units(10, 18))
	if !errors.Is(err, payment.ErrInsufficientFunds) {
		t.Fatalf("Buy without funds = %v, want payment.ErrInsufficientFunds", err)
	}

	// The committed accounting was rolled back.
	round, _ := f.sale.CurrentSale(ctx)
	if !round.TotalInvestment.IsZero() || round.Finalized {
		t.Errorf("round after failed buy = %+v", round)
	}
	tokens, _ := f.ledger.BalanceOf(ctx, buyer)
	if !tokens.IsZero() {
		t.Error("tokens issued for failed payment")
	}
}

func TestBuyIssuanceFailureRefunds(t *testing.T) {
	ctx := context.Background()

	// Ledger cap of 5 tokens, sale cap far larger: issuing 10 tokens
	// fails after payment has been collected.
	f := newSaleFixture(t, types.Units(5, 18))

	if _, err := f.sale.StartSale(ctx, f.admin, f.now,
		types.Units(1, 18), types.NewAmount(1_000_000), types.Units(50_000, 6)); err != nil {
		t.Fatalf("StartSale: %v", err)
	}

	buyer := f.fundedBuyer(types.Units(100, 6))

	_, err := f.sale.Buy(ctx, buyer, types.Units(10, 18))
	if !tokensale.IsCapError(err) {
		t.Fatalf("Buy past ledger cap = %v, want cap error", err)
	}

	// Payment refunded, accounting rolled back.
	if !f.asset.BalanceOf(buyer).Equal(types.Units(100, 6)) {
		t.Errorf("buyer payment balance = %s, want full refund", f.asset.BalanceOf(buyer))
	}
	if !f.asset.BalanceOf(f.wallet).IsZero() {
		t.Error("treasury kept payment for failed issuance")
	}
	round, _ := f.sale.CurrentSale(ctx)
	if !round.TotalInvestment.IsZero() {
		t.Errorf("round total = %s, want 0", round.TotalInvestment)
	}
}

// reentrantAsset calls back into the sale from inside Transfer, imitating
// a malicious payment collaborator.
type reentrantAsset struct {
	*payment.MemoryAsset
	sale     *tokensale.Sale
	attacker id.AccountID
	attempt  error
	tried    bool
}

func (a *reentrantAsset) Transfer(ctx context.Context, from, to id.AccountID, amount types.Amount) error {
	if !a.tried {
		a.tried = true
		_, a.attempt = a.sale.Buy(ctx, a.attacker, types.Units(1, 18))
	}
	return a.MemoryAsset.Transfer(ctx, from, to, amount)
}

func TestBuyReentrancyGuard(t *testing.T) {
	ctx := context.Background()

	roles := capability.NewRegistry()
	admin := id.NewAccountID()
	wallet := id.NewAccountID()
	_ = roles.Grant(ctx, admin, capability.RoleAdmin)

	s := memory.New()
	ledger := tokensale.NewLedger(s, roles, types.Units(100_000, 18))
	if err := ledger.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	asset := &reentrantAsset{MemoryAsset: payment.NewMemoryAsset(6)}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sl := tokensale.NewSale(s, ledger, asset, wallet, roles,
		tokensale.WithClock(func() time.Time { return now }))
	_ = roles.Grant(ctx, sl.Account(), capability.RoleIssuer)

	asset.sale = sl
	asset.attacker = id.NewAccountID()
	asset.Mint(asset.attacker, types.Units(100, 6))

	if _, err := sl.StartSale(ctx, admin, now,
		types.Units(1, 18), types.NewAmount(1_000_000), types.Units(50_000, 6)); err != nil {
		t.Fatalf("StartSale: %v", err)
	}

	buyer := id.NewAccountID()
	asset.Mint(buyer, types.Units(100, 6))

	// The outer purchase completes; the nested one is rejected.
	if _, err := sl.Buy(ctx, buyer, types.Units(10, 18)); err != nil {
		t.Fatalf("outer Buy: %v", err)
	}
	if !asset.tried {
		t.Fatal("reentrant callback never ran")
	}
	if !errors.Is(asset.attempt, tokensale.ErrReentrantCall) {
		t.Errorf("nested Buy = %v, want ErrReentrantCall", asset.attempt)
	}

	// Only the outer purchase spent round capacity.
	round, _ := sl.CurrentSale(ctx)
	if !round.TotalInvestment.Equal(types.Units(10, 6)) {
		t.Errorf("round total = %s, want %s", round.TotalInvestment, types.Units(10, 6))
	}
}

func TestStopSale(t *testing.T) {
	ctx := context.Background()
	f := newSaleFixture(t, types.Units(100_000, 18))

	if err := f.sale.StopSale(ctx, f.admin); !errors.Is(err, tokensale.ErrSaleNotInitialized) {
		t.Errorf("StopSale before init = %v, want ErrSaleNotInitialized", err)
	}

	if _, err := f.sale.StartSale(ctx, f.admin, f.now,
		types.Units(1, 18), types.NewAmount(1_000_000), types.Units(50_000, 6)); err != nil {
		t.Fatalf("StartSale: %v", err)
	}

	if err := f.sale.StopSale(ctx, id.NewAccountID()); !errors.Is(err, tokensale.ErrUnauthorized) {
		t.Errorf("StopSale by stranger = %v, want ErrUnauthorized", err)
	}

	if err := f.sale.StopSale(ctx, f.admin); err != nil {
		t.Fatalf("StopSale: %v", err)
	}
	if err := f.sale.StopSale(ctx, f.admin); !errors.Is(err, tokensale.ErrSaleIsFinalized) {
		t.Errorf("double StopSale = %v, want ErrSaleIsFinalized", err)
	}
}

func TestDustFinalization(t *testing.T) {
	ctx := context.Background()

	roles := capability.NewRegistry()
	admin := id.NewAccountID()
	wallet := id.NewAccountID()
	_ = roles.Grant(ctx, admin, capability.RoleAdmin)

	s := memory.New()
	ledger := tokensale.NewLedger(s, roles, types.Units(100_000, 18))
	if err := ledger.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	asset := payment.NewMemoryAsset(6)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sl := tokensale.NewSale(s, ledger, asset, wallet, roles,
		tokensale.WithClock(func() time.Time { return now }),
		tokensale.WithDustFinalization())
	_ = roles.Grant(ctx, sl.Account(), capability.RoleIssuer)

	// Cap 10.5 payment units, min purchase one token costing 1 unit.
	roundCap := types.Units(10, 6).Add(types.NewAmount(500_000))
	if _, err := sl.StartSale(ctx, admin, now,
		types.Units(1, 18), types.NewAmount(1_000_000), roundCap); err != nil {
		t.Fatalf("StartSale: %v", err)
	}

	buyer := id.NewAccountID()
	asset.Mint(buyer, types.Units(100, 6))

	// After this purchase 0.5 payment units remain, less than the cost of
	// one minimum purchase, so the round closes as dust.
	if _, err := sl.Buy(ctx, buyer, types.Units(10, 18)); err != nil {
		t.Fatalf("Buy: %v", err)
	}

	round, _ := sl.CurrentSale(ctx)
	if !round.Finalized {
		t.Error("round with dust remainder not finalized")
	}
}

func TestPurchaseLog(t *testing.T) {
	ctx := context.Background()
	f := newSaleFixture(t, types.Units(100_000, 18))

	if _, err := f.sale.StartSale(ctx, f.admin, f.now,
		types.Units(1, 18), types.NewAmount(1_000_000), types.Units(50_000, 6)); err != nil {
		t.Fatalf("StartSale: %v", err)
	}

	buyer := f.fundedBuyer(types.Units(100, 6))
	for i := 0; i < 3; i++ {
		if _, err := f.sale.Buy(ctx, buyer, types.Units(2, 18)); err != nil {
			t.Fatalf("Buy %d: %v", i, err)
		}
	}

	purchases, err := f.sale.Purchases(ctx, 1, tokensale.ListOpts{})
	if err != nil {
		t.Fatalf("Purchases: %v", err)
	}
	if len(purchases) != 3 {
		t.Fatalf("purchases = %d, want 3", len(purchases))
	}
	for _, p := range purchases {
		if p.RoundID != 1 || p.Buyer.String() != buyer.String() {
			t.Errorf("purchase record = %+v", p)
		}
		if !p.TokenAmount.Equal(types.Units(2, 18)) || !p.PaymentAmount.Equal(types.Units(2, 6)) {
			t.Errorf("purchase amounts = %s, %s", p.TokenAmount, p.PaymentAmount)
		}
	}
}

func TestGetSaleUnknownRound(t *testing.T) {
	ctx := context.Background()
	f := newSaleFixture(t, types.Units(100_000, 18))

	round, err := f.sale.GetSale(ctx, 42)
	if err != nil {
		t.Fatalf("GetSale: %v", err)
	}
	if round.ID != 0 {
		t.Errorf("unknown round = %+v, want zero record", round)
	}
}
