package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/knostra/knostrad/internal/domain"
)

const owner = domain.Address("0x1111111111111111111111111111111111111111")

func seedMarket(t *testing.T, s *Store, id uint64, created time.Time) {
	t.Helper()
	err := s.Markets().Create(context.Background(), domain.Market{
		Owner:     owner,
		MarketID:  id,
		Status:    domain.StatusOngoing,
		CreatedAt: created,
		UpdatedAt: created,
	})
	if err != nil {
		t.Fatalf("seed market %d: %v", id, err)
	}
}

func TestAtomicCommitsOnSuccess(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	err := s.Atomic(ctx, func(tx domain.Tx) error {
		if err := tx.Accounts().Credit(ctx, owner, 500); err != nil {
			return err
		}
		return tx.Markets().Create(ctx, domain.Market{Owner: owner, MarketID: 1})
	})
	if err != nil {
		t.Fatalf("Atomic: %v", err)
	}

	bal, err := s.Accounts().Balance(ctx, owner)
	if err != nil || bal != 500 {
		t.Errorf("balance = %d, %v; want 500", bal, err)
	}
	if _, err := s.Markets().Get(ctx, domain.MarketRef{Owner: owner, MarketID: 1}); err != nil {
		t.Errorf("committed market not visible: %v", err)
	}
}

func TestAtomicRollsBackOnError(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	if err := s.Accounts().Credit(ctx, owner, 100); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err := s.Atomic(ctx, func(tx domain.Tx) error {
		if err := tx.Accounts().Credit(ctx, owner, 900); err != nil {
			return err
		}
		if err := tx.Markets().Create(ctx, domain.Market{Owner: owner, MarketID: 1}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Atomic error = %v, want boom", err)
	}

	bal, _ := s.Accounts().Balance(ctx, owner)
	if bal != 100 {
		t.Errorf("balance after rollback = %d, want 100", bal)
	}
	if _, err := s.Markets().Get(ctx, domain.MarketRef{Owner: owner, MarketID: 1}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("rolled-back market visible: %v", err)
	}
}

func TestAtomicSeesOwnWrites(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	err := s.Atomic(ctx, func(tx domain.Tx) error {
		if err := tx.Games().Create(ctx, domain.Game{GameID: 1}); err != nil {
			return err
		}
		g, err := tx.Games().GetForUpdate(ctx, 1)
		if err != nil {
			return err
		}
		g.YesState = domain.SideReserved
		return tx.Games().Update(ctx, g)
	})
	if err != nil {
		t.Fatalf("Atomic: %v", err)
	}
	g, err := s.Games().Get(ctx, 1)
	if err != nil || g.YesState != domain.SideReserved {
		t.Errorf("game = %+v, %v", g, err)
	}
}

func TestCreateDuplicates(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	now := time.Now()
	seedMarket(t, s, 1, now)

	err := s.Markets().Create(ctx, domain.Market{Owner: owner, MarketID: 1})
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("duplicate market: %v", err)
	}
	if err := s.Jobs().Create(ctx, domain.ComputeJob{JobID: 5}); err != nil {
		t.Fatal(err)
	}
	if err := s.Jobs().Create(ctx, domain.ComputeJob{JobID: 5}); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("duplicate job: %v", err)
	}
}

func TestUpdateMissingRow(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	if err := s.Markets().Update(ctx, domain.Market{Owner: owner, MarketID: 9}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("update of absent market: %v", err)
	}
	if err := s.Games().Update(ctx, domain.Game{GameID: 9}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("update of absent game: %v", err)
	}
}

func TestMarketListOrderAndPagination(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	base := time.Now()
	for i := uint64(1); i <= 5; i++ {
		seedMarket(t, s, i, base.Add(time.Duration(i)*time.Minute))
	}

	// Newest first.
	page, err := s.Markets().List(ctx, domain.ListOpts{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].MarketID != 5 || page[1].MarketID != 4 {
		t.Fatalf("first page = %v", ids(page))
	}

	page, err = s.Markets().List(ctx, domain.ListOpts{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 || page[0].MarketID != 1 {
		t.Fatalf("last page = %v", ids(page))
	}

	if page, _ = s.Markets().List(ctx, domain.ListOpts{Offset: 100}); page != nil {
		t.Errorf("past-the-end offset returned %v", ids(page))
	}

	n, err := s.Markets().Count(ctx)
	if err != nil || n != 5 {
		t.Errorf("count = %d, %v", n, err)
	}
}

func ids(markets []domain.Market) []uint64 {
	out := make([]uint64, len(markets))
	for i, m := range markets {
		out[i] = m.MarketID
	}
	return out
}

func TestListTerminalCutoff(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	now := time.Now()

	old := domain.Market{Owner: owner, MarketID: 1, Status: domain.StatusResolvedYes, UpdatedAt: now.Add(-2 * time.Hour)}
	fresh := domain.Market{Owner: owner, MarketID: 2, Status: domain.StatusResolvedNo, UpdatedAt: now}
	open := domain.Market{Owner: owner, MarketID: 3, Status: domain.StatusOngoing, UpdatedAt: now.Add(-2 * time.Hour)}
	for _, m := range []domain.Market{old, fresh, open} {
		if err := s.Markets().Create(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Markets().ListTerminal(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].MarketID != 1 {
		t.Errorf("terminal markets = %v", ids(got))
	}
}

func TestSumUnclaimed(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	ref := domain.MarketRef{Owner: owner, MarketID: 1}
	users := []struct {
		addr    domain.Address
		amount  uint64
		claimed bool
	}{
		{"0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", 100, false},
		{"0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", 200, true},
		{"0xcccccccccccccccccccccccccccccccccccccccc", 300, false},
	}
	for _, u := range users {
		err := s.Bets().Create(ctx, domain.Bet{
			Owner: ref.Owner, MarketID: ref.MarketID,
			User: u.addr, BetAmount: u.amount, Claimed: u.claimed,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	sum, err := s.Bets().SumUnclaimed(ctx, ref)
	if err != nil || sum != 400 {
		t.Errorf("unclaimed sum = %d, %v; want 400", sum, err)
	}
}

func TestAccountMove(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	from := domain.Address("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	to := domain.Address("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	if err := s.Accounts().Move(ctx, from, to, 1); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("move from empty account: %v", err)
	}
	if err := s.Accounts().Credit(ctx, from, 100); err != nil {
		t.Fatal(err)
	}
	if err := s.Accounts().Move(ctx, from, to, 60); err != nil {
		t.Fatal(err)
	}
	fb, _ := s.Accounts().Balance(ctx, from)
	tb, _ := s.Accounts().Balance(ctx, to)
	if fb != 40 || tb != 60 {
		t.Errorf("balances = %d/%d, want 40/60", fb, tb)
	}
}

func TestJobListPending(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	now := time.Now()
	jobs := []domain.ComputeJob{
		{JobID: 1, Status: domain.JobPending, SubmittedAt: now.Add(-time.Hour)},
		{JobID: 2, Status: domain.JobPending, SubmittedAt: now},
		{JobID: 3, Status: domain.JobCompleted, SubmittedAt: now.Add(-time.Hour)},
	}
	for _, j := range jobs {
		if err := s.Jobs().Create(ctx, j); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Jobs().ListPending(ctx, now.Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].JobID != 1 {
		t.Errorf("pending = %v", jobIDs(got))
	}
}

func jobIDs(jobs []domain.ComputeJob) string {
	out := ""
	for _, j := range jobs {
		out += fmt.Sprintf("%d ", j.JobID)
	}
	return out
}
