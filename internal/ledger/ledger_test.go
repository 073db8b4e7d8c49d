package ledger_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/knostra/knostrad/internal/assets"
	"github.com/knostra/knostrad/internal/crypto"
	"github.com/knostra/knostrad/internal/domain"
	"github.com/knostra/knostrad/internal/ledger"
	"github.com/knostra/knostrad/internal/store/memory"
)

const (
	alice   = domain.Address("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	bob     = domain.Address("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	carol   = domain.Address("0xcccccccccccccccccccccccccccccccccccccccc")
	creator = domain.Address("0xdddddddddddddddddddddddddddddddddddddddd")

	namespace = "ledger-test"
	stake     = uint64(1000)
)

func newService(t *testing.T, oracle domain.AssetOracle) (*ledger.Service, domain.Store) {
	t.Helper()
	store := memory.NewStore()
	svc := ledger.New(ledger.Config{
		Store:     store,
		Oracle:    oracle,
		Namespace: namespace,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return svc, store
}

func defaultParams(id uint64, maxPlayers uint64) domain.CreateMarketParams {
	return domain.CreateMarketParams{
		MarketID:          id,
		Name:              "btc above target",
		Description:       "resolves yes when the reported price reaches the target",
		Token:             "BTC",
		MarketStart:       1_700_000_000,
		MarketEnd:         1_700_100_000,
		RelationalOp:      domain.OpGTE,
		TargetValue:       50_000,
		RequiredBetAmount: stake,
		MaxPlayerCount:    maxPlayers,
	}
}

func mustCreateMarket(t *testing.T, svc *ledger.Service, id uint64, maxPlayers uint64) domain.MarketRef {
	t.Helper()
	m, err := svc.CreateMarket(context.Background(), creator, defaultParams(id, maxPlayers))
	if err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}
	return m.Ref()
}

func fund(t *testing.T, store domain.Store, addr domain.Address, amount uint64) {
	t.Helper()
	if err := store.Accounts().Credit(context.Background(), addr, amount); err != nil {
		t.Fatalf("Credit(%s): %v", addr, err)
	}
}

func balance(t *testing.T, store domain.Store, addr domain.Address) uint64 {
	t.Helper()
	b, err := store.Accounts().Balance(context.Background(), addr)
	if err != nil {
		t.Fatalf("Balance(%s): %v", addr, err)
	}
	return b
}

func TestCreateMarketValidation(t *testing.T) {
	svc, _ := newService(t, assets.NewStaticOracle(nil))
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(*domain.CreateMarketParams)
		wantErr error
	}{
		{
			name:    "name too long",
			mutate:  func(p *domain.CreateMarketParams) { p.Name = string(make([]byte, domain.MaxNameLen+1)) },
			wantErr: domain.ErrFieldTooLong,
		},
		{
			name:    "description too long",
			mutate:  func(p *domain.CreateMarketParams) { p.Description = string(make([]byte, domain.MaxDescriptionLen+1)) },
			wantErr: domain.ErrFieldTooLong,
		},
		{
			name:    "token too long",
			mutate:  func(p *domain.CreateMarketParams) { p.Token = "TOOLONGTOKEN" },
			wantErr: domain.ErrFieldTooLong,
		},
		{
			name:    "unknown relational op",
			mutate:  func(p *domain.CreateMarketParams) { p.RelationalOp = "!=" },
			wantErr: domain.ErrInvalidRelationalOp,
		},
		{
			name:    "zero bet amount",
			mutate:  func(p *domain.CreateMarketParams) { p.RequiredBetAmount = 0 },
			wantErr: domain.ErrInvalidBetAmount,
		},
		{
			name:    "zero max players",
			mutate:  func(p *domain.CreateMarketParams) { p.MaxPlayerCount = 0 },
			wantErr: domain.ErrMaxPlayersReached,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := defaultParams(1, 1)
			tt.mutate(&params)
			_, err := svc.CreateMarket(ctx, creator, params)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CreateMarket: got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateMarketDuplicate(t *testing.T) {
	svc, _ := newService(t, assets.NewStaticOracle(nil))
	mustCreateMarket(t, svc, 1, 1)
	_, err := svc.CreateMarket(context.Background(), creator, defaultParams(1, 1))
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("duplicate CreateMarket: got %v, want ErrAlreadyExists", err)
	}
}

func TestPlaceBetEscrowsAndAutoStarts(t *testing.T) {
	svc, store := newService(t, assets.NewStaticOracle(nil))
	ctx := context.Background()
	ref := mustCreateMarket(t, svc, 1, 1)
	vault := crypto.VaultAddress(ref)
	fund(t, store, alice, 5*stake)
	fund(t, store, bob, 5*stake)

	bet, err := svc.PlaceBet(ctx, alice, ref, stake, true)
	if err != nil {
		t.Fatalf("PlaceBet(alice): %v", err)
	}
	if bet.Side() != "yes" || bet.BetAmount != stake {
		t.Errorf("unexpected bet record %+v", bet)
	}
	if got := balance(t, store, alice); got != 4*stake {
		t.Errorf("alice balance = %d, want %d", got, 4*stake)
	}
	if got := balance(t, store, vault); got != stake {
		t.Errorf("vault balance = %d, want %d", got, stake)
	}

	market, err := svc.GetMarket(ctx, ref)
	if err != nil {
		t.Fatalf("GetMarket: %v", err)
	}
	if market.Status != domain.StatusNotStarted {
		t.Errorf("market auto-started with one side empty: %s", market.Status)
	}

	// Opposite side fills: both sides at max, the market starts.
	if _, err := svc.PlaceBet(ctx, bob, ref, stake, false); err != nil {
		t.Fatalf("PlaceBet(bob): %v", err)
	}
	market, _ = svc.GetMarket(ctx, ref)
	if market.Status != domain.StatusOngoing {
		t.Errorf("market status = %s, want ongoing", market.Status)
	}
	treasury, err := svc.GetTreasury(ctx, ref)
	if err != nil {
		t.Fatalf("GetTreasury: %v", err)
	}
	if treasury.TotalAmount != 2*stake || treasury.YesCount != 1 || treasury.NoCount != 1 {
		t.Errorf("unexpected treasury %+v", treasury)
	}
	if treasury.Status != domain.StatusOngoing {
		t.Errorf("treasury status = %s, want ongoing", treasury.Status)
	}
	if err := svc.AuditTreasury(ctx, ref); err != nil {
		t.Errorf("AuditTreasury: %v", err)
	}
}

func TestPlaceBetRejections(t *testing.T) {
	svc, store := newService(t, assets.NewStaticOracle(nil))
	ctx := context.Background()
	ref := mustCreateMarket(t, svc, 1, 1)
	fund(t, store, alice, 5*stake)
	fund(t, store, carol, 5*stake)

	if _, err := svc.PlaceBet(ctx, alice, ref, stake+1, true); !errors.Is(err, domain.ErrInvalidBetAmount) {
		t.Errorf("wrong amount: got %v, want ErrInvalidBetAmount", err)
	}
	if _, err := svc.PlaceBet(ctx, bob, ref, stake, true); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Errorf("unfunded user: got %v, want ErrInsufficientFunds", err)
	}
	// The failed escrow move must not have left partial state behind.
	treasury, _ := svc.GetTreasury(ctx, ref)
	if treasury.TotalAmount != 0 || treasury.YesCount != 0 {
		t.Errorf("failed bet mutated treasury: %+v", treasury)
	}

	if _, err := svc.PlaceBet(ctx, alice, ref, stake, true); err != nil {
		t.Fatalf("PlaceBet(alice): %v", err)
	}
	if _, err := svc.PlaceBet(ctx, alice, ref, stake, false); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("second bet by same user: got %v, want ErrAlreadyExists", err)
	}
	if _, err := svc.PlaceBet(ctx, carol, ref, stake, true); !errors.Is(err, domain.ErrMaxPlayersReached) {
		t.Errorf("full side: got %v, want ErrMaxPlayersReached", err)
	}

	// Fill the no side, then verify bets are rejected once started.
	fund(t, store, bob, 5*stake)
	if _, err := svc.PlaceBet(ctx, bob, ref, stake, false); err != nil {
		t.Fatalf("PlaceBet(bob): %v", err)
	}
	if _, err := svc.PlaceBet(ctx, carol, ref, stake, false); !errors.Is(err, domain.ErrInvalidMarketStatus) {
		t.Errorf("bet on started market: got %v, want ErrInvalidMarketStatus", err)
	}
}

func TestResolveAuthorityAndStatus(t *testing.T) {
	svc, store := newService(t, assets.NewStaticOracle(nil))
	ctx := context.Background()
	ref := mustCreateMarket(t, svc, 1, 1)

	if _, err := svc.Resolve(ctx, alice, ref, 60_000); !errors.Is(err, domain.ErrUnauthorizedResolver) {
		t.Errorf("non-resolver: got %v, want ErrUnauthorizedResolver", err)
	}
	resolver := svc.ResolverAuthority()
	if _, err := svc.Resolve(ctx, resolver, ref, 60_000); !errors.Is(err, domain.ErrInvalidMarketStatus) {
		t.Errorf("resolve before start: got %v, want ErrInvalidMarketStatus", err)
	}

	fund(t, store, alice, stake)
	fund(t, store, bob, stake)
	if _, err := svc.PlaceBet(ctx, alice, ref, stake, true); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.PlaceBet(ctx, bob, ref, stake, false); err != nil {
		t.Fatal(err)
	}

	// Target is 50_000 with >=, so 49_999 resolves no.
	market, err := svc.Resolve(ctx, resolver, ref, 49_999)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if market.Status != domain.StatusResolvedNo {
		t.Errorf("market status = %s, want resolved_no", market.Status)
	}
	if market.ResolveValue != 49_999 {
		t.Errorf("resolve value = %d, want 49999", market.ResolveValue)
	}
	treasury, _ := svc.GetTreasury(ctx, ref)
	if treasury.Status != domain.StatusResolvedNo {
		t.Errorf("treasury status = %s, want resolved_no", treasury.Status)
	}

	// A terminal market cannot be resolved again.
	if _, err := svc.Resolve(ctx, resolver, ref, 60_000); !errors.Is(err, domain.ErrInvalidMarketStatus) {
		t.Errorf("second resolve: got %v, want ErrInvalidMarketStatus", err)
	}
}

func TestClaimWinnerPayout(t *testing.T) {
	svc, store := newService(t, assets.NewStaticOracle(nil))
	ctx := context.Background()
	ref := mustCreateMarket(t, svc, 1, 1)
	vault := crypto.VaultAddress(ref)
	fund(t, store, alice, stake)
	fund(t, store, bob, stake)
	if _, err := svc.PlaceBet(ctx, alice, ref, stake, true); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.PlaceBet(ctx, bob, ref, stake, false); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Resolve(ctx, svc.ResolverAuthority(), ref, 60_000); err != nil {
		t.Fatal(err)
	}

	res, err := svc.Claim(ctx, alice, ref)
	if err != nil {
		t.Fatalf("Claim(alice): %v", err)
	}
	want := ledger.ClaimResult{Amount: 1960, Fee: 40, CreatorFee: 20}
	if res != want {
		t.Errorf("ClaimResult = %+v, want %+v", res, want)
	}
	if got := balance(t, store, alice); got != 1960 {
		t.Errorf("alice balance = %d, want 1960", got)
	}
	// The vault retains the withheld fee until fee claims drain it.
	if got := balance(t, store, vault); got != 40 {
		t.Errorf("vault balance = %d, want 40", got)
	}
	treasury, _ := svc.GetTreasury(ctx, ref)
	if treasury.TotalAmount != 0 {
		t.Errorf("treasury total = %d, want 0 after gross debit", treasury.TotalAmount)
	}
	if treasury.FeeAmount != 20 || treasury.CreatorFeeAmount != 20 {
		t.Errorf("fee accruals = %d/%d, want 20/20", treasury.FeeAmount, treasury.CreatorFeeAmount)
	}

	if _, err := svc.Claim(ctx, alice, ref); !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Errorf("double claim: got %v, want ErrAlreadyClaimed", err)
	}
	if _, err := svc.Claim(ctx, bob, ref); !errors.Is(err, domain.ErrNotAWinner) {
		t.Errorf("loser claim: got %v, want ErrNotAWinner", err)
	}
	if _, err := svc.Claim(ctx, carol, ref); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("claim without bet: got %v, want ErrNotFound", err)
	}
}

func TestClaimBeforeTerminalRejected(t *testing.T) {
	svc, store := newService(t, assets.NewStaticOracle(nil))
	ctx := context.Background()
	ref := mustCreateMarket(t, svc, 1, 1)
	fund(t, store, alice, stake)
	if _, err := svc.PlaceBet(ctx, alice, ref, stake, true); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Claim(ctx, alice, ref); !errors.Is(err, domain.ErrInvalidMarketStatus) {
		t.Errorf("claim on live market: got %v, want ErrInvalidMarketStatus", err)
	}
}

func TestCancelRefundsFullStake(t *testing.T) {
	svc, store := newService(t, assets.NewStaticOracle(nil))
	ctx := context.Background()
	ref := mustCreateMarket(t, svc, 1, 2)
	fund(t, store, alice, stake)
	fund(t, store, bob, stake)
	if _, err := svc.PlaceBet(ctx, alice, ref, stake, true); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.PlaceBet(ctx, bob, ref, stake, false); err != nil {
		t.Fatal(err)
	}

	// With MaxPlayerCount 2 and one bet per side the market has not started
	// and can still be cancelled.
	market, err := svc.Cancel(ctx, ref)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if market.Status != domain.StatusCancelled {
		t.Errorf("market status = %s, want cancelled", market.Status)
	}
	if err := svc.AuditTreasury(ctx, ref); err != nil {
		t.Errorf("AuditTreasury after cancel: %v", err)
	}

	for _, user := range []domain.Address{alice, bob} {
		res, err := svc.Claim(ctx, user, ref)
		if err != nil {
			t.Fatalf("Claim(%s): %v", user, err)
		}
		if !res.Refund || res.Amount != stake || res.Fee != 0 {
			t.Errorf("refund for %s = %+v, want full fee-free stake", user, res)
		}
		if got := balance(t, store, user); got != stake {
			t.Errorf("%s balance = %d, want %d restored", user, got, stake)
		}
	}
	treasury, _ := svc.GetTreasury(ctx, ref)
	if treasury.TotalAmount != 0 {
		t.Errorf("treasury total = %d after all refunds, want 0", treasury.TotalAmount)
	}
	if err := svc.AuditTreasury(ctx, ref); err != nil {
		t.Errorf("AuditTreasury after refunds: %v", err)
	}
}

func TestCancelStartedMarketRejected(t *testing.T) {
	svc, store := newService(t, assets.NewStaticOracle(nil))
	ctx := context.Background()
	ref := mustCreateMarket(t, svc, 1, 1)
	fund(t, store, alice, stake)
	fund(t, store, bob, stake)
	if _, err := svc.PlaceBet(ctx, alice, ref, stake, true); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.PlaceBet(ctx, bob, ref, stake, false); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Cancel(ctx, ref); !errors.Is(err, domain.ErrInvalidMarketStatus) {
		t.Errorf("cancel ongoing market: got %v, want ErrInvalidMarketStatus", err)
	}
}

func TestClaimFees(t *testing.T) {
	svc, store := newService(t, assets.NewStaticOracle(nil))
	ctx := context.Background()
	ref := mustCreateMarket(t, svc, 1, 1)
	fund(t, store, alice, stake)
	fund(t, store, bob, stake)
	if _, err := svc.PlaceBet(ctx, alice, ref, stake, true); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.PlaceBet(ctx, bob, ref, stake, false); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.ClaimFees(ctx, creator, ref); !errors.Is(err, domain.ErrInvalidMarketStatus) {
		t.Errorf("fee claim before resolution: got %v, want ErrInvalidMarketStatus", err)
	}
	if _, err := svc.Resolve(ctx, svc.ResolverAuthority(), ref, 60_000); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ClaimFees(ctx, alice, ref); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("fee claim by non-creator: got %v, want ErrUnauthorized", err)
	}
	if _, err := svc.ClaimFees(ctx, creator, ref); !errors.Is(err, domain.ErrNoFeesToClaim) {
		t.Errorf("fee claim before any winner claim: got %v, want ErrNoFeesToClaim", err)
	}

	if _, err := svc.Claim(ctx, alice, ref); err != nil {
		t.Fatal(err)
	}
	paid, err := svc.ClaimFees(ctx, creator, ref)
	if err != nil {
		t.Fatalf("ClaimFees: %v", err)
	}
	if paid != 20 {
		t.Errorf("creator fee paid = %d, want 20", paid)
	}
	if got := balance(t, store, creator); got != 20 {
		t.Errorf("creator balance = %d, want 20", got)
	}
	if _, err := svc.ClaimFees(ctx, creator, ref); !errors.Is(err, domain.ErrNoFeesToClaim) {
		t.Errorf("second fee claim: got %v, want ErrNoFeesToClaim", err)
	}
}

func TestFundsConservation(t *testing.T) {
	svc, store := newService(t, assets.NewStaticOracle(nil))
	ctx := context.Background()
	ref := mustCreateMarket(t, svc, 1, 1)
	vault := crypto.VaultAddress(ref)
	fund(t, store, alice, stake)
	fund(t, store, bob, stake)

	total := func() uint64 {
		var sum uint64
		for _, addr := range []domain.Address{alice, bob, creator, vault} {
			sum += balance(t, store, addr)
		}
		return sum
	}
	start := total()

	if _, err := svc.PlaceBet(ctx, alice, ref, stake, true); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.PlaceBet(ctx, bob, ref, stake, false); err != nil {
		t.Fatal(err)
	}
	if got := total(); got != start {
		t.Errorf("total after bets = %d, want %d", got, start)
	}

	if _, err := svc.Resolve(ctx, svc.ResolverAuthority(), ref, 60_000); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Claim(ctx, alice, ref); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ClaimFees(ctx, creator, ref); err != nil {
		t.Fatal(err)
	}
	if got := total(); got != start {
		t.Errorf("total after settlement = %d, want %d", got, start)
	}
}

func TestCreateDeck(t *testing.T) {
	oracle := assets.NewStaticOracle(map[string]domain.Address{
		"sword-1":  alice,
		"shield-2": alice,
		"crown-3":  bob,
	})
	svc, _ := newService(t, oracle)
	ctx := context.Background()

	deck, err := svc.CreateDeck(ctx, alice, 7, []string{"sword-1", "shield-2"})
	if err != nil {
		t.Fatalf("CreateDeck: %v", err)
	}
	got, err := svc.GetDeck(ctx, deck.Ref())
	if err != nil {
		t.Fatalf("GetDeck: %v", err)
	}
	if len(got.Assets) != 2 || got.Assets[0] != "sword-1" {
		t.Errorf("unexpected deck %+v", got)
	}

	if _, err := svc.CreateDeck(ctx, alice, 8, []string{"crown-3"}); !errors.Is(err, domain.ErrNotAssetOwner) {
		t.Errorf("foreign asset: got %v, want ErrNotAssetOwner", err)
	}
	// Unknown assets fail closed rather than defaulting to ownership.
	if _, err := svc.CreateDeck(ctx, alice, 9, []string{"ghost-0"}); err == nil {
		t.Error("unknown asset accepted")
	}

	oversized := make([]string, domain.MaxDeckSize+1)
	for i := range oversized {
		oversized[i] = "sword-1"
	}
	if _, err := svc.CreateDeck(ctx, alice, 10, oversized); !errors.Is(err, domain.ErrDeckFull) {
		t.Errorf("oversized deck: got %v, want ErrDeckFull", err)
	}
}
