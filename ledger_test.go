package tokensale_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/xraph/tokensale"
	"github.com/xraph/tokensale/capability"
	"github.com/xraph/tokensale/id"
	"github.com/xraph/tokensale/store/memory"
	"github.com/xraph/tokensale/token"
	"github.com/xraph/tokensale/types"
)

type ledgerFixture struct {
	ledger *tokensale.Ledger
	roles  *capability.Registry
	issuer id.AccountID
	admin  id.AccountID
}

func newLedgerFixture(t *testing.T, supplyCap types.Amount) *ledgerFixture {
	t.Helper()
	ctx := context.Background()

	roles := capability.NewRegistry()
	issuer := id.NewAccountID()
	admin := id.NewAccountID()
	if err := roles.Grant(ctx, issuer, capability.RoleIssuer); err != nil {
		t.Fatalf("grant issuer: %v", err)
	}
	if err := roles.Grant(ctx, admin, capability.RoleAdmin); err != nil {
		t.Fatalf("grant admin: %v", err)
	}

	l := tokensale.NewLedger(memory.New(), roles, supplyCap)
	if err := l.Start(ctx); err != nil {
		t.Fatalf("start ledger: %v", err)
	}

	return &ledgerFixture{ledger: l, roles: roles, issuer: issuer, admin: admin}
}

func TestIssue(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, types.NewAmount(1000))
	recipient := id.NewAccountID()

	if err := f.ledger.Issue(ctx, f.issuer, recipient, types.NewAmount(400)); err != nil {
		t.Fatalf("Issue: %v", err)
	}

	bal, err := f.ledger.BalanceOf(ctx, recipient)
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if !bal.Equal(types.NewAmount(400)) {
		t.Errorf("balance = %s, want 400", bal)
	}
	supply, _ := f.ledger.TotalSupply(ctx)
	if !supply.Equal(types.NewAmount(400)) {
		t.Errorf("supply = %s, want 400", supply)
	}
}

func TestIssueRequiresIssuerRole(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, types.NewAmount(1000))

	stranger := id.NewAccountID()
	err := f.ledger.Issue(ctx, stranger, id.NewAccountID(), types.NewAmount(1))
	if !errors.Is(err, tokensale.ErrUnauthorized) {
		t.Errorf("Issue by stranger = %v, want ErrUnauthorized", err)
	}

	// The admin role does not imply the issuer role.
	err = f.ledger.Issue(ctx, f.admin, id.NewAccountID(), types.NewAmount(1))
	if !errors.Is(err, tokensale.ErrUnauthorized) {
		t.Errorf("Issue by admin = %v, want ErrUnauthorized", err)
	}
}

func TestIssueToVoidAccount(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, types.NewAmount(1000))

	err := f.ledger.Issue(ctx, f.issuer, id.Nil, types.NewAmount(1))
	if !errors.Is(err, tokensale.ErrInvalidInput) {
		t.Errorf("Issue to void = %v, want ErrInvalidInput", err)
	}
}

func TestIssueCapEnforcement(t *testing.T) {
	ctx := context.Background()
	supplyCap := types.Units(100_000, 18)
	f := newLedgerFixture(t, supplyCap)
	recipient := id.NewAccountID()

	// Fill the cap exactly.
	if err := f.ledger.Issue(ctx, f.issuer, recipient, supplyCap); err != nil {
		t.Fatalf("Issue to cap: %v", err)
	}

	// One more base unit must fail.
	err := f.ledger.Issue(ctx, f.issuer, recipient, types.NewAmount(1))
	var capErr *tokensale.ExceededCapError
	if !errors.As(err, &capErr) {
		t.Fatalf("Issue beyond cap = %v, want ExceededCapError", err)
	}
	if !capErr.Cap.Equal(supplyCap) || !capErr.Requested.Equal(types.NewAmount(1)) {
		t.Errorf("cap error detail = %+v", capErr)
	}
	if !tokensale.IsCapError(err) {
		t.Error("IsCapError = false, want true")
	}

	// Supply unchanged by the failed issuance.
	supply, _ := f.ledger.TotalSupply(ctx)
	if !supply.Equal(supplyCap) {
		t.Errorf("supply = %s, want %s", supply, supplyCap)
	}
}

func TestRetireFreesCapRoom(t *testing.T) {
	ctx := context.Background()
	supplyCap := types.NewAmount(1000)
	f := newLedgerFixture(t, supplyCap)
	holder := id.NewAccountID()

	if err := f.ledger.AddToWhitelist(ctx, f.admin, holder); err != nil {
		t.Fatalf("whitelist: %v", err)
	}
	if err := f.ledger.Issue(ctx, f.issuer, holder, supplyCap); err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if err := f.ledger.Retire(ctx, holder, types.NewAmount(300)); err != nil {
		t.Fatalf("Retire: %v", err)
	}

	supply, _ := f.ledger.TotalSupply(ctx)
	if !supply.Equal(types.NewAmount(700)) {
		t.Errorf("supply after retire = %s, want 700", supply)
	}

	// Retirement freed room under the cap.
	if err := f.ledger.Issue(ctx, f.issuer, holder, types.NewAmount(300)); err != nil {
		t.Errorf("reissue after retire: %v", err)
	}
}

func TestRetireRequiresWhitelistedSource(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, types.NewAmount(1000))
	holder := id.NewAccountID()

	if err := f.ledger.Issue(ctx, f.issuer, holder, types.NewAmount(100)); err != nil {
		t.Fatalf("Issue: %v", err)
	}

	err := f.ledger.Retire(ctx, holder, types.NewAmount(10))
	if !errors.Is(err, tokensale.ErrTransferProhibited) {
		t.Errorf("Retire unwhitelisted = %v, want ErrTransferProhibited", err)
	}
	if !tokensale.IsWhitelistError(err) {
		t.Error("IsWhitelistError = false, want true")
	}
}

func TestIsWhitelistError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"already whitelisted", tokensale.ErrAlreadyWhitelisted, true},
		{"not whitelisted", tokensale.ErrNotWhitelisted, true},
		{"transfer prohibited", tokensale.ErrTransferProhibited, true},
		{"wrapped prohibition", fmt.Errorf("context: %w", tokensale.ErrTransferProhibited), true},
		{"unrelated", tokensale.ErrInsufficientFunds, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tokensale.IsWhitelistError(tt.err); got != tt.want {
				t.Errorf("IsWhitelistError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetireInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, types.NewAmount(1000))
	holder := id.NewAccountID()

	if err := f.ledger.AddToWhitelist(ctx, f.admin, holder); err != nil {
		t.Fatalf("whitelist: %v", err)
	}
	if err := f.ledger.Issue(ctx, f.issuer, holder, types.NewAmount(50)); err != nil {
		t.Fatalf("Issue: %v", err)
	}

	err := f.ledger.Retire(ctx, holder, types.NewAmount(51))
	if !errors.Is(err, tokensale.ErrInsufficientFunds) {
		t.Errorf("Retire beyond balance = %v, want ErrInsufficientFunds", err)
	}
}

func TestTransferWhitelistGate(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, types.NewAmount(1000))
	sender := id.NewAccountID()
	listed := id.NewAccountID()
	unlisted := id.NewAccountID()

	if err := f.ledger.Issue(ctx, f.issuer, sender, types.NewAmount(100)); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := f.ledger.AddToWhitelist(ctx, f.admin, listed); err != nil {
		t.Fatalf("whitelist: %v", err)
	}

	// Destination not whitelisted: rejected even though the sender holds
	// enough units, and regardless of the sender's own membership.
	err := f.ledger.Transfer(ctx, sender, unlisted, types.NewAmount(10))
	if !errors.Is(err, tokensale.ErrTransferProhibited) {
		t.Errorf("Transfer to unlisted = %v, want ErrTransferProhibited", err)
	}
	if !tokensale.IsWhitelistError(err) {
		t.Error("IsWhitelistError = false, want true")
	}

	// Whitelisted destination: allowed. The sender needs no membership.
	if err := f.ledger.Transfer(ctx, sender, listed, types.NewAmount(10)); err != nil {
		t.Fatalf("Transfer to listed: %v", err)
	}

	senderBal, _ := f.ledger.BalanceOf(ctx, sender)
	listedBal, _ := f.ledger.BalanceOf(ctx, listed)
	if !senderBal.Equal(types.NewAmount(90)) || !listedBal.Equal(types.NewAmount(10)) {
		t.Errorf("balances = %s, %s, want 90, 10", senderBal, listedBal)
	}
}

func TestTransferInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, types.NewAmount(1000))
	sender := id.NewAccountID()
	dest := id.NewAccountID()

	if err := f.ledger.AddToWhitelist(ctx, f.admin, dest); err != nil {
		t.Fatalf("whitelist: %v", err)
	}

	err := f.ledger.Transfer(ctx, sender, dest, types.NewAmount(1))
	if !errors.Is(err, tokensale.ErrInsufficientFunds) {
		t.Errorf("Transfer without funds = %v, want ErrInsufficientFunds", err)
	}
}

func TestIssueBatch(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, types.NewAmount(1000))

	a := id.NewAccountID()
	b := id.NewAccountID()
	credits := []token.Credit{
		{Recipient: a, Amount: types.NewAmount(100)},
		{Recipient: b, Amount: types.NewAmount(200)},
		{Recipient: a, Amount: types.NewAmount(50)},
	}
	if err := f.ledger.IssueBatch(ctx, f.issuer, credits); err != nil {
		t.Fatalf("IssueBatch: %v", err)
	}

	balA, _ := f.ledger.BalanceOf(ctx, a)
	balB, _ := f.ledger.BalanceOf(ctx, b)
	supply, _ := f.ledger.TotalSupply(ctx)
	if !balA.Equal(types.NewAmount(150)) || !balB.Equal(types.NewAmount(200)) {
		t.Errorf("balances = %s, %s, want 150, 200", balA, balB)
	}
	if !supply.Equal(types.NewAmount(350)) {
		t.Errorf("supply = %s, want 350", supply)
	}
}

func TestIssueBatchSizeLimit(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, types.Units(1_000_000, 18))

	credits := make([]token.Credit, token.MaxBatchSize+1)
	for i := range credits {
		credits[i] = token.Credit{Recipient: id.NewAccountID(), Amount: types.NewAmount(1)}
	}

	err := f.ledger.IssueBatch(ctx, f.issuer, credits)
	var sizeErr *tokensale.BatchSizeError
	if !errors.As(err, &sizeErr) {
		t.Fatalf("IssueBatch oversized = %v, want BatchSizeError", err)
	}
	if sizeErr.Size != token.MaxBatchSize+1 || sizeErr.Max != token.MaxBatchSize {
		t.Errorf("size error detail = %+v", sizeErr)
	}
	if !errors.Is(err, tokensale.ErrBatchSizeExceeded) {
		t.Error("expected wrap of ErrBatchSizeExceeded")
	}

	// A batch of exactly MaxBatchSize passes.
	if err := f.ledger.IssueBatch(ctx, f.issuer, credits[:token.MaxBatchSize]); err != nil {
		t.Errorf("IssueBatch at limit: %v", err)
	}
}

func TestIssueBatchCapAtomicity(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, types.NewAmount(100))

	a := id.NewAccountID()
	b := id.NewAccountID()

	// 60 + 60 sums past the cap even though each entry alone fits.
	credits := []token.Credit{
		{Recipient: a, Amount: types.NewAmount(60)},
		{Recipient: b, Amount: types.NewAmount(60)},
	}
	err := f.ledger.IssueBatch(ctx, f.issuer, credits)
	if !tokensale.IsCapError(err) {
		t.Fatalf("IssueBatch over cap = %v, want cap error", err)
	}

	// Nothing was applied: not even the first entry.
	balA, _ := f.ledger.BalanceOf(ctx, a)
	supply, _ := f.ledger.TotalSupply(ctx)
	if !balA.IsZero() || !supply.IsZero() {
		t.Errorf("partial batch applied: balance %s, supply %s", balA, supply)
	}
}

func TestWhitelistManagement(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, types.NewAmount(1000))
	account := id.NewAccountID()

	// Admin capability gates membership changes.
	if err := f.ledger.AddToWhitelist(ctx, f.issuer, account); !errors.Is(err, tokensale.ErrUnauthorized) {
		t.Errorf("AddToWhitelist by issuer = %v, want ErrUnauthorized", err)
	}

	if err := f.ledger.AddToWhitelist(ctx, f.admin, account); err != nil {
		t.Fatalf("AddToWhitelist: %v", err)
	}
	if err := f.ledger.AddToWhitelist(ctx, f.admin, account); !errors.Is(err, tokensale.ErrAlreadyWhitelisted) {
		t.Errorf("duplicate add = %v, want ErrAlreadyWhitelisted", err)
	}

	listed, err := f.ledger.IsWhitelisted(ctx, account)
	if err != nil || !listed {
		t.Fatalf("IsWhitelisted = %v, %v", listed, err)
	}

	if err := f.ledger.RemoveFromWhitelist(ctx, f.admin, account); err != nil {
		t.Fatalf("RemoveFromWhitelist: %v", err)
	}
	if err := f.ledger.RemoveFromWhitelist(ctx, f.admin, account); !errors.Is(err, tokensale.ErrNotWhitelisted) {
		t.Errorf("remove absent = %v, want ErrNotWhitelisted", err)
	}
}

// eventRecorder counts the ledger events it observes.
type eventRecorder struct {
	issued      int
	batchIssued int
	transferred int
	retired     int
}

func (r *eventRecorder) Name() string { return "event-recorder" }

func (r *eventRecorder) OnIssued(_ context.Context, _ id.AccountID, _, _ types.Amount) error {
	r.issued++
	return nil
}

func (r *eventRecorder) OnBatchIssued(_ context.Context, _ []token.Credit, _ types.Amount) error {
	r.batchIssued++
	return nil
}

func (r *eventRecorder) OnTransferred(_ context.Context, _, _ id.AccountID, _ types.Amount) error {
	r.transferred++
	return nil
}

func (r *eventRecorder) OnRetired(_ context.Context, _ id.AccountID, _, _ types.Amount) error {
	r.retired++
	return nil
}

func TestLedgerEvents(t *testing.T) {
	ctx := context.Background()

	roles := capability.NewRegistry()
	issuer := id.NewAccountID()
	admin := id.NewAccountID()
	_ = roles.Grant(ctx, issuer, capability.RoleIssuer)
	_ = roles.Grant(ctx, admin, capability.RoleAdmin)

	rec := &eventRecorder{}
	l := tokensale.NewLedger(memory.New(), roles, types.NewAmount(1000),
		tokensale.WithLedgerPlugin(rec))
	if err := l.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	holder := id.NewAccountID()
	dest := id.NewAccountID()
	if err := l.AddToWhitelist(ctx, admin, holder); err != nil {
		t.Fatalf("whitelist: %v", err)
	}
	if err := l.AddToWhitelist(ctx, admin, dest); err != nil {
		t.Fatalf("whitelist: %v", err)
	}

	if err := l.Issue(ctx, issuer, holder, types.NewAmount(100)); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := l.IssueBatch(ctx, issuer, []token.Credit{
		{Recipient: holder, Amount: types.NewAmount(10)},
	}); err != nil {
		t.Fatalf("IssueBatch: %v", err)
	}
	if err := l.Transfer(ctx, holder, dest, types.NewAmount(5)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if err := l.Retire(ctx, holder, types.NewAmount(5)); err != nil {
		t.Fatalf("Retire: %v", err)
	}

	// A failed issuance must not emit.
	if err := l.Issue(ctx, issuer, holder, types.NewAmount(100_000)); err == nil {
		t.Fatal("expected cap error")
	}

	if rec.issued != 1 || rec.batchIssued != 1 || rec.transferred != 1 || rec.retired != 1 {
		t.Errorf("events = %+v, want one of each", rec)
	}
}
