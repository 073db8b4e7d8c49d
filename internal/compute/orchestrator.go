package compute

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/knostra/knostrad/internal/crypto"
	"github.com/knostra/knostrad/internal/domain"
)

// callbackLockTTL bounds how long a callback application may hold the
// per-job advisory lock.
const callbackLockTTL = 30 * time.Second

// Orchestrator drives the two game computations. The persistent job record
// is the idempotency anchor: a job is inserted pending before submission and
// flipped to completed exactly once by the callback, inside the same
// transaction as the game mutation it authorizes.
type Orchestrator struct {
	store  domain.Store
	client Client
	signer *crypto.CallbackSigner
	locks  domain.LockManager // optional
	bus    domain.SignalBus   // optional
	clock  domain.Clock
	logger *slog.Logger

	callbackURL string
}

// OrchestratorConfig carries the Orchestrator dependencies.
type OrchestratorConfig struct {
	Store       domain.Store
	Client      Client
	Signer      *crypto.CallbackSigner
	Locks       domain.LockManager
	Bus         domain.SignalBus
	Clock       domain.Clock
	Logger      *slog.Logger
	CallbackURL string
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	clock := cfg.Clock
	if clock == nil {
		clock = domain.SystemClock
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:       cfg.Store,
		client:      cfg.Client,
		signer:      cfg.Signer,
		locks:       cfg.Locks,
		bus:         cfg.Bus,
		clock:       clock,
		logger:      logger.With(slog.String("component", "compute")),
		callbackURL: cfg.CallbackURL,
	}
}

// GetGame returns a game by id.
func (o *Orchestrator) GetGame(ctx context.Context, gameID uint64) (domain.Game, error) {
	return o.store.Games().Get(ctx, gameID)
}

// GetJob returns a job record by id.
func (o *Orchestrator) GetJob(ctx context.Context, jobID uint64) (domain.ComputeJob, error) {
	return o.store.Jobs().Get(ctx, jobID)
}

// InitGame creates a fresh game paired with the given market and submits the
// slot-initialization computation. A duplicate game id or job id rejects
// the request before anything is sent to the service.
func (o *Orchestrator) InitGame(ctx context.Context, gameID uint64, ref domain.MarketRef, nonce [16]byte, jobID uint64) (domain.Game, error) {
	ref.Owner = domain.NormalizeAddress(ref.Owner)

	now := o.clock()
	game := domain.Game{
		GameID:    gameID,
		Owner:     ref.Owner,
		MarketID:  ref.MarketID,
		PlayerYes: domain.ZeroAddress,
		YesState:  domain.SideEmpty,
		PlayerNo:  domain.ZeroAddress,
		NoState:   domain.SideEmpty,
		Nonce:     nonce,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := o.store.Atomic(ctx, func(tx domain.Tx) error {
		if _, err := tx.Markets().Get(ctx, ref); err != nil {
			return fmt.Errorf("market: %w", err)
		}
		if err := tx.Games().Create(ctx, game); err != nil {
			return fmt.Errorf("game: %w", err)
		}
		return tx.Jobs().Create(ctx, domain.ComputeJob{
			JobID:       jobID,
			Kind:        domain.JobInitGame,
			GameID:      gameID,
			Status:      domain.JobPending,
			SubmittedAt: now,
		})
	})
	if err != nil {
		return domain.Game{}, fmt.Errorf("compute: init game %d: %w", gameID, err)
	}

	sub := Submission{
		JobID:  jobID,
		Kind:   domain.JobInitGame,
		GameID: gameID,
		Args: []Argument{
			PublicU128(nonce),
			GameSlotsRef(gameID),
		},
		CallbackURL: o.callbackURL,
	}
	if err := o.client.Submit(ctx, sub); err != nil {
		// The pending job row stays visible for an operator sweep.
		return domain.Game{}, fmt.Errorf("compute: init game %d: %w", gameID, err)
	}

	o.logger.InfoContext(ctx, "init-game job submitted",
		slog.Uint64("game_id", gameID),
		slog.Uint64("job_id", jobID),
		slog.Uint64("market_id", ref.MarketID),
	)
	return game, nil
}

// JoinGame reserves one side of a game for the caller and submits the
// card-assignment computation. Every gate runs before submission: the caller
// must hold a bet on the game's paired market, the supplied market must
// match the game's pairing, and the caller's side must still be empty.
func (o *Orchestrator) JoinGame(ctx context.Context, caller domain.Address, gameID uint64, ref domain.MarketRef, deckRef domain.DeckRef, cards [3]domain.Ciphertext, nonce [16]byte, jobID uint64) (domain.Game, error) {
	caller = domain.NormalizeAddress(caller)
	ref.Owner = domain.NormalizeAddress(ref.Owner)
	deckRef.Owner = domain.NormalizeAddress(deckRef.Owner)

	var (
		game      domain.Game
		gameNonce [16]byte
		side      bool
	)
	err := o.store.Atomic(ctx, func(tx domain.Tx) error {
		var err error
		game, err = tx.Games().GetForUpdate(ctx, gameID)
		if err != nil {
			return fmt.Errorf("game: %w", err)
		}
		if game.MarketRef() != ref {
			return domain.ErrGameMarketMismatch
		}

		bet, err := tx.Bets().Get(ctx, ref, caller)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrInvalidPlayer
		} else if err != nil {
			return fmt.Errorf("bet: %w", err)
		}

		deck, err := tx.Decks().Get(ctx, deckRef)
		if err != nil {
			return fmt.Errorf("deck: %w", err)
		}
		if domain.NormalizeAddress(deck.Owner) != caller {
			return fmt.Errorf("deck owner: %w", domain.ErrUnauthorized)
		}

		side = bet.Choice
		if game.SideTaken(side) {
			return domain.ErrPlayerAlreadyJoined
		}

		if side {
			game.PlayerYes = caller
			game.PlayerYesDeck = deckRef
			game.YesState = domain.SideReserved
		} else {
			game.PlayerNo = caller
			game.PlayerNoDeck = deckRef
			game.NoState = domain.SideReserved
		}
		game.UpdatedAt = o.clock()
		gameNonce = game.Nonce
		if err := tx.Games().Update(ctx, game); err != nil {
			return err
		}
		return tx.Jobs().Create(ctx, domain.ComputeJob{
			JobID:       jobID,
			Kind:        domain.JobJoinGame,
			GameID:      gameID,
			Status:      domain.JobPending,
			SubmittedAt: o.clock(),
		})
	})
	if err != nil {
		return domain.Game{}, fmt.Errorf("compute: join game %d: %w", gameID, err)
	}

	// Wire convention: 0 selects the yes side, 1 the no side.
	sideArg := uint8(1)
	if side {
		sideArg = 0
	}
	args := []Argument{
		PublicKey(caller),
		PublicU128(nonce),
		PublicU8(sideArg),
	}
	for _, ct := range cards {
		args = append(args, EncryptedCard(ct))
	}
	args = append(args, PublicU128(gameNonce), GameSlotsRef(gameID))

	sub := Submission{
		JobID:       jobID,
		Kind:        domain.JobJoinGame,
		GameID:      gameID,
		Args:        args,
		CallbackURL: o.callbackURL,
	}
	if err := o.client.Submit(ctx, sub); err != nil {
		return domain.Game{}, fmt.Errorf("compute: join game %d: %w", gameID, err)
	}

	o.logger.InfoContext(ctx, "join-game job submitted",
		slog.Uint64("game_id", gameID),
		slog.Uint64("job_id", jobID),
		slog.String("player", string(caller)),
		slog.String("side", sideName(side)),
	)
	return game, nil
}

// HandleCallback verifies and applies one completion callback. The job flip
// from pending to completed runs in the same transaction as the game
// mutation, so a duplicate delivery finds the job already completed and
// changes nothing. An aborted outcome records itself on the job and leaves
// the game untouched; a side reserved by the failed join stays reserved for
// a retried join with a fresh job id.
func (o *Orchestrator) HandleCallback(ctx context.Context, body []byte, sig string) (domain.ComputeJob, error) {
	if !o.signer.Verify(body, sig) {
		return domain.ComputeJob{}, fmt.Errorf("compute: callback signature: %w", domain.ErrUnauthorized)
	}

	var payload CallbackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.ComputeJob{}, fmt.Errorf("compute: decode callback: %w", err)
	}

	if o.locks != nil {
		unlock, err := o.locks.Acquire(ctx, fmt.Sprintf("cb:job:%d", payload.JobID), callbackLockTTL)
		if err != nil {
			return domain.ComputeJob{}, fmt.Errorf("compute: callback job %d: %w", payload.JobID, err)
		}
		defer unlock()
	}

	var job domain.ComputeJob
	err := o.store.Atomic(ctx, func(tx domain.Tx) error {
		var err error
		job, err = tx.Jobs().GetForUpdate(ctx, payload.JobID)
		if err != nil {
			return err
		}
		if job.Status == domain.JobCompleted {
			return fmt.Errorf("job completed: %w", domain.ErrAlreadyExists)
		}

		now := o.clock()
		job.Status = domain.JobCompleted
		job.Outcome = payload.Outcome
		job.CompletedAt = &now
		if err := tx.Jobs().Update(ctx, job); err != nil {
			return err
		}

		if payload.Outcome != domain.JobSuccess {
			return nil
		}

		cards, err := payload.DecodeCards()
		if err != nil {
			return err
		}
		nonce, err := payload.DecodeNonce()
		if err != nil {
			return err
		}

		game, err := tx.Games().GetForUpdate(ctx, job.GameID)
		if err != nil {
			return err
		}
		game.Cards = cards
		game.Nonce = nonce
		if game.YesState == domain.SideReserved {
			game.YesState = domain.SidePopulated
		}
		if game.NoState == domain.SideReserved {
			game.NoState = domain.SidePopulated
		}
		game.UpdatedAt = now
		return tx.Games().Update(ctx, game)
	})
	if err != nil {
		return domain.ComputeJob{}, fmt.Errorf("compute: callback job %d: %w", payload.JobID, err)
	}

	if payload.Outcome == domain.JobSuccess {
		o.logger.InfoContext(ctx, "computation completed",
			slog.Uint64("job_id", job.JobID),
			slog.Uint64("game_id", job.GameID),
			slog.String("kind", string(job.Kind)),
		)
		eventType := domain.EventGameInitialized
		if job.Kind == domain.JobJoinGame {
			eventType = domain.EventGameJoined
		}
		o.publish(ctx, domain.Event{Type: eventType, GameID: job.GameID})
	} else {
		o.logger.ErrorContext(ctx, "computation aborted",
			slog.Uint64("job_id", job.JobID),
			slog.Uint64("game_id", job.GameID),
			slog.String("kind", string(job.Kind)),
			slog.String("reason", payload.Reason),
		)
		o.publish(ctx, domain.Event{
			Type:   domain.EventGameAborted,
			GameID: job.GameID,
			Detail: map[string]any{"job_id": job.JobID, "reason": payload.Reason},
		})
	}
	return job, nil
}

// SweepPending returns jobs still pending past the given age, for operator
// visibility into lost submissions or dropped callbacks.
func (o *Orchestrator) SweepPending(ctx context.Context, age time.Duration) ([]domain.ComputeJob, error) {
	return o.store.Jobs().ListPending(ctx, o.clock().Add(-age))
}

func (o *Orchestrator) publish(ctx context.Context, ev domain.Event) {
	if o.bus == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := o.bus.Publish(ctx, domain.ChannelGames, payload); err != nil {
		o.logger.WarnContext(ctx, "event publish failed",
			slog.String("type", ev.Type),
			slog.String("error", err.Error()),
		)
	}
}

func sideName(yes bool) string {
	if yes {
		return "yes"
	}
	return "no"
}
