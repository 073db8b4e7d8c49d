// Package memory implements the domain store interfaces in process memory.
// It backs unit tests and the dev mode. Atomic takes a deep copy of the
// whole state, applies fn to the copy, and swaps it in only on success, so
// a failed operation leaves no partial mutation behind, matching the
// transactional behavior of the PostgreSQL store.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/knostra/knostrad/internal/domain"
)

type state struct {
	Accounts   map[domain.Address]uint64    `json:"accounts"`
	Markets    map[string]domain.Market     `json:"markets"`
	Treasuries map[string]domain.Treasury   `json:"treasuries"`
	Bets       map[string]domain.Bet        `json:"bets"`
	Decks      map[string]domain.Deck       `json:"decks"`
	Games      map[uint64]domain.Game       `json:"games"`
	Jobs       map[uint64]domain.ComputeJob `json:"jobs"`
}

func newState() *state {
	return &state{
		Accounts:   make(map[domain.Address]uint64),
		Markets:    make(map[string]domain.Market),
		Treasuries: make(map[string]domain.Treasury),
		Bets:       make(map[string]domain.Bet),
		Decks:      make(map[string]domain.Deck),
		Games:      make(map[uint64]domain.Game),
		Jobs:       make(map[uint64]domain.ComputeJob),
	}
}

// clone deep-copies the state through a JSON round trip.
func (st *state) clone() (*state, error) {
	raw, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("memory: clone state: %w", err)
	}
	out := newState()
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("memory: clone state: %w", err)
	}
	return out, nil
}

func marketKey(ref domain.MarketRef) string {
	return fmt.Sprintf("%s/%d", ref.Owner, ref.MarketID)
}

func betKey(ref domain.MarketRef, user domain.Address) string {
	return fmt.Sprintf("%s/%d/%s", ref.Owner, ref.MarketID, user)
}

func deckKey(ref domain.DeckRef) string {
	return fmt.Sprintf("%s/%d", ref.Owner, ref.Seed)
}

// Store is the in-memory persistence root. A single mutex serializes all
// access; Atomic holds it for the whole unit of work.
type Store struct {
	mu sync.Mutex
	st *state
}

var _ domain.Store = (*Store)(nil)

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{st: newState()}
}

// acquire implements stateRef for direct (non-transactional) access.
func (s *Store) acquire() (*state, func()) {
	s.mu.Lock()
	return s.st, s.mu.Unlock
}

// Atomic applies fn to a deep copy and commits it by pointer swap on
// success.
func (s *Store) Atomic(ctx context.Context, fn func(tx domain.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone, err := s.st.clone()
	if err != nil {
		return err
	}
	if err := fn(txView{st: clone}); err != nil {
		return err
	}
	s.st = clone
	return nil
}

func (s *Store) Markets() domain.MarketStore      { return &marketStore{ref: s} }
func (s *Store) Treasuries() domain.TreasuryStore { return &treasuryStore{ref: s} }
func (s *Store) Bets() domain.BetStore            { return &betStore{ref: s} }
func (s *Store) Decks() domain.DeckStore          { return &deckStore{ref: s} }
func (s *Store) Games() domain.GameStore          { return &gameStore{ref: s} }
func (s *Store) Jobs() domain.JobStore            { return &jobStore{ref: s} }
func (s *Store) Accounts() domain.AccountStore    { return &accountStore{ref: s} }

// stateRef hands a store method the state to operate on plus a release
// function. The live Store locks its mutex; a transaction view returns its
// private clone with a no-op release.
type stateRef interface {
	acquire() (*state, func())
}

// txView is the domain.Tx handed to Atomic callbacks.
type txView struct {
	st *state
}

func (v txView) acquire() (*state, func()) { return v.st, func() {} }

func (v txView) Markets() domain.MarketStore      { return &marketStore{ref: v} }
func (v txView) Treasuries() domain.TreasuryStore { return &treasuryStore{ref: v} }
func (v txView) Bets() domain.BetStore            { return &betStore{ref: v} }
func (v txView) Decks() domain.DeckStore          { return &deckStore{ref: v} }
func (v txView) Games() domain.GameStore          { return &gameStore{ref: v} }
func (v txView) Jobs() domain.JobStore            { return &jobStore{ref: v} }
func (v txView) Accounts() domain.AccountStore    { return &accountStore{ref: v} }

type marketStore struct{ ref stateRef }

func (s *marketStore) Create(_ context.Context, m domain.Market) error {
	st, release := s.ref.acquire()
	defer release()
	key := marketKey(m.Ref())
	if _, ok := st.Markets[key]; ok {
		return fmt.Errorf("memory: market %s: %w", key, domain.ErrAlreadyExists)
	}
	st.Markets[key] = m
	return nil
}

func (s *marketStore) Get(_ context.Context, ref domain.MarketRef) (domain.Market, error) {
	st, release := s.ref.acquire()
	defer release()
	m, ok := st.Markets[marketKey(ref)]
	if !ok {
		return domain.Market{}, fmt.Errorf("memory: market %s: %w", marketKey(ref), domain.ErrNotFound)
	}
	return m, nil
}

func (s *marketStore) GetForUpdate(ctx context.Context, ref domain.MarketRef) (domain.Market, error) {
	return s.Get(ctx, ref)
}

func (s *marketStore) Update(_ context.Context, m domain.Market) error {
	st, release := s.ref.acquire()
	defer release()
	key := marketKey(m.Ref())
	if _, ok := st.Markets[key]; !ok {
		return fmt.Errorf("memory: market %s: %w", key, domain.ErrNotFound)
	}
	st.Markets[key] = m
	return nil
}

func (s *marketStore) List(_ context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	st, release := s.ref.acquire()
	defer release()

	markets := make([]domain.Market, 0, len(st.Markets))
	for _, m := range st.Markets {
		markets = append(markets, m)
	}
	sortMarkets(markets)
	return paginate(markets, opts), nil
}

func (s *marketStore) Count(_ context.Context) (int64, error) {
	st, release := s.ref.acquire()
	defer release()
	return int64(len(st.Markets)), nil
}

func (s *marketStore) ListTerminal(_ context.Context, before time.Time) ([]domain.Market, error) {
	st, release := s.ref.acquire()
	defer release()

	var markets []domain.Market
	for _, m := range st.Markets {
		if m.Status.Terminal() && m.UpdatedAt.Before(before) {
			markets = append(markets, m)
		}
	}
	sortMarkets(markets)
	return markets, nil
}

type treasuryStore struct{ ref stateRef }

func (s *treasuryStore) Create(_ context.Context, t domain.Treasury) error {
	st, release := s.ref.acquire()
	defer release()
	key := marketKey(t.Ref())
	if _, ok := st.Treasuries[key]; ok {
		return fmt.Errorf("memory: treasury %s: %w", key, domain.ErrAlreadyExists)
	}
	st.Treasuries[key] = t
	return nil
}

func (s *treasuryStore) Get(_ context.Context, ref domain.MarketRef) (domain.Treasury, error) {
	st, release := s.ref.acquire()
	defer release()
	t, ok := st.Treasuries[marketKey(ref)]
	if !ok {
		return domain.Treasury{}, fmt.Errorf("memory: treasury %s: %w", marketKey(ref), domain.ErrNotFound)
	}
	return t, nil
}

func (s *treasuryStore) GetForUpdate(ctx context.Context, ref domain.MarketRef) (domain.Treasury, error) {
	return s.Get(ctx, ref)
}

func (s *treasuryStore) Update(_ context.Context, t domain.Treasury) error {
	st, release := s.ref.acquire()
	defer release()
	key := marketKey(t.Ref())
	if _, ok := st.Treasuries[key]; !ok {
		return fmt.Errorf("memory: treasury %s: %w", key, domain.ErrNotFound)
	}
	st.Treasuries[key] = t
	return nil
}

type betStore struct{ ref stateRef }

func (s *betStore) Create(_ context.Context, b domain.Bet) error {
	st, release := s.ref.acquire()
	defer release()
	key := betKey(domain.MarketRef{Owner: b.Owner, MarketID: b.MarketID}, b.User)
	if _, ok := st.Bets[key]; ok {
		return fmt.Errorf("memory: bet %s: %w", key, domain.ErrAlreadyExists)
	}
	st.Bets[key] = b
	return nil
}

func (s *betStore) Get(_ context.Context, ref domain.MarketRef, user domain.Address) (domain.Bet, error) {
	st, release := s.ref.acquire()
	defer release()
	b, ok := st.Bets[betKey(ref, user)]
	if !ok {
		return domain.Bet{}, fmt.Errorf("memory: bet %s: %w", betKey(ref, user), domain.ErrNotFound)
	}
	return b, nil
}

func (s *betStore) GetForUpdate(ctx context.Context, ref domain.MarketRef, user domain.Address) (domain.Bet, error) {
	return s.Get(ctx, ref, user)
}

func (s *betStore) Update(_ context.Context, b domain.Bet) error {
	st, release := s.ref.acquire()
	defer release()
	key := betKey(domain.MarketRef{Owner: b.Owner, MarketID: b.MarketID}, b.User)
	if _, ok := st.Bets[key]; !ok {
		return fmt.Errorf("memory: bet %s: %w", key, domain.ErrNotFound)
	}
	st.Bets[key] = b
	return nil
}

func (s *betStore) ListByMarket(_ context.Context, ref domain.MarketRef, opts domain.ListOpts) ([]domain.Bet, error) {
	st, release := s.ref.acquire()
	defer release()

	var bets []domain.Bet
	for _, b := range st.Bets {
		if b.Owner == ref.Owner && b.MarketID == ref.MarketID {
			bets = append(bets, b)
		}
	}
	sortBets(bets)
	return paginate(bets, opts), nil
}

func (s *betStore) SumUnclaimed(_ context.Context, ref domain.MarketRef) (uint64, error) {
	st, release := s.ref.acquire()
	defer release()

	var sum uint64
	for _, b := range st.Bets {
		if b.Owner == ref.Owner && b.MarketID == ref.MarketID && !b.Claimed {
			var err error
			sum, err = domain.CheckedAdd(sum, b.BetAmount)
			if err != nil {
				return 0, err
			}
		}
	}
	return sum, nil
}

type deckStore struct{ ref stateRef }

func (s *deckStore) Create(_ context.Context, d domain.Deck) error {
	st, release := s.ref.acquire()
	defer release()
	key := deckKey(d.Ref())
	if _, ok := st.Decks[key]; ok {
		return fmt.Errorf("memory: deck %s: %w", key, domain.ErrAlreadyExists)
	}
	st.Decks[key] = d
	return nil
}

func (s *deckStore) Get(_ context.Context, ref domain.DeckRef) (domain.Deck, error) {
	st, release := s.ref.acquire()
	defer release()
	d, ok := st.Decks[deckKey(ref)]
	if !ok {
		return domain.Deck{}, fmt.Errorf("memory: deck %s: %w", deckKey(ref), domain.ErrNotFound)
	}
	return d, nil
}

type gameStore struct{ ref stateRef }

func (s *gameStore) Create(_ context.Context, g domain.Game) error {
	st, release := s.ref.acquire()
	defer release()
	if _, ok := st.Games[g.GameID]; ok {
		return fmt.Errorf("memory: game %d: %w", g.GameID, domain.ErrAlreadyExists)
	}
	st.Games[g.GameID] = g
	return nil
}

func (s *gameStore) Get(_ context.Context, gameID uint64) (domain.Game, error) {
	st, release := s.ref.acquire()
	defer release()
	g, ok := st.Games[gameID]
	if !ok {
		return domain.Game{}, fmt.Errorf("memory: game %d: %w", gameID, domain.ErrNotFound)
	}
	return g, nil
}

func (s *gameStore) GetForUpdate(ctx context.Context, gameID uint64) (domain.Game, error) {
	return s.Get(ctx, gameID)
}

func (s *gameStore) Update(_ context.Context, g domain.Game) error {
	st, release := s.ref.acquire()
	defer release()
	if _, ok := st.Games[g.GameID]; !ok {
		return fmt.Errorf("memory: game %d: %w", g.GameID, domain.ErrNotFound)
	}
	st.Games[g.GameID] = g
	return nil
}

type jobStore struct{ ref stateRef }

func (s *jobStore) Create(_ context.Context, j domain.ComputeJob) error {
	st, release := s.ref.acquire()
	defer release()
	if _, ok := st.Jobs[j.JobID]; ok {
		return fmt.Errorf("memory: job %d: %w", j.JobID, domain.ErrAlreadyExists)
	}
	st.Jobs[j.JobID] = j
	return nil
}

func (s *jobStore) Get(_ context.Context, jobID uint64) (domain.ComputeJob, error) {
	st, release := s.ref.acquire()
	defer release()
	j, ok := st.Jobs[jobID]
	if !ok {
		return domain.ComputeJob{}, fmt.Errorf("memory: job %d: %w", jobID, domain.ErrNotFound)
	}
	return j, nil
}

func (s *jobStore) GetForUpdate(ctx context.Context, jobID uint64) (domain.ComputeJob, error) {
	return s.Get(ctx, jobID)
}

func (s *jobStore) Update(_ context.Context, j domain.ComputeJob) error {
	st, release := s.ref.acquire()
	defer release()
	if _, ok := st.Jobs[j.JobID]; !ok {
		return fmt.Errorf("memory: job %d: %w", j.JobID, domain.ErrNotFound)
	}
	st.Jobs[j.JobID] = j
	return nil
}

func (s *jobStore) ListPending(_ context.Context, olderThan time.Time) ([]domain.ComputeJob, error) {
	st, release := s.ref.acquire()
	defer release()

	var jobs []domain.ComputeJob
	for _, j := range st.Jobs {
		if j.Status == domain.JobPending && j.SubmittedAt.Before(olderThan) {
			jobs = append(jobs, j)
		}
	}
	sortJobs(jobs)
	return jobs, nil
}

type accountStore struct{ ref stateRef }

func (s *accountStore) Balance(_ context.Context, addr domain.Address) (uint64, error) {
	st, release := s.ref.acquire()
	defer release()
	return st.Accounts[addr], nil
}

func (s *accountStore) Credit(_ context.Context, addr domain.Address, amount uint64) error {
	st, release := s.ref.acquire()
	defer release()
	next, err := domain.CheckedAdd(st.Accounts[addr], amount)
	if err != nil {
		return fmt.Errorf("memory: credit %s: %w", addr, err)
	}
	st.Accounts[addr] = next
	return nil
}

func (s *accountStore) Move(_ context.Context, from, to domain.Address, amount uint64) error {
	st, release := s.ref.acquire()
	defer release()

	if st.Accounts[from] < amount {
		return fmt.Errorf("memory: debit %s amount %d: %w", from, amount, domain.ErrInsufficientFunds)
	}
	next, err := domain.CheckedAdd(st.Accounts[to], amount)
	if err != nil {
		return fmt.Errorf("memory: credit %s: %w", to, err)
	}
	st.Accounts[from] -= amount
	st.Accounts[to] = next
	return nil
}
