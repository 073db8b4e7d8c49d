package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/knostra/knostrad/internal/crypto"
	"github.com/knostra/knostrad/internal/domain"
)

// PlaceBet escrows a stake on one side of a NotStarted market. The stake
// must equal the market's required bet amount, the user must not already
// hold a bet, and the chosen side must have capacity. When both sides reach
// the max player count the market auto-starts.
func (s *Service) PlaceBet(ctx context.Context, user domain.Address, ref domain.MarketRef, amount uint64, choice bool) (domain.Bet, error) {
	user = domain.NormalizeAddress(user)
	ref = normalizeRef(ref)
	vault := crypto.VaultAddress(ref)

	var (
		bet     domain.Bet
		started bool
	)
	err := s.store.Atomic(ctx, func(tx domain.Tx) error {
		market, err := tx.Markets().GetForUpdate(ctx, ref)
		if err != nil {
			return err
		}
		if market.Status != domain.StatusNotStarted {
			return fmt.Errorf("status %s: %w", market.Status, domain.ErrInvalidMarketStatus)
		}
		if amount != market.RequiredBetAmount {
			return fmt.Errorf("amount %d, required %d: %w", amount, market.RequiredBetAmount, domain.ErrInvalidBetAmount)
		}
		if _, err := tx.Bets().Get(ctx, ref, user); err == nil {
			return fmt.Errorf("bet for %s: %w", user, domain.ErrAlreadyExists)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		treasury, err := tx.Treasuries().GetForUpdate(ctx, ref)
		if err != nil {
			return err
		}
		sideCount := treasury.NoCount
		if choice {
			sideCount = treasury.YesCount
		}
		if sideCount >= market.MaxPlayerCount {
			return fmt.Errorf("side %s full: %w", sideName(choice), domain.ErrMaxPlayersReached)
		}

		if err := tx.Accounts().Move(ctx, user, vault, amount); err != nil {
			return err
		}

		bet = domain.Bet{
			Owner:     ref.Owner,
			MarketID:  ref.MarketID,
			User:      user,
			BetAmount: amount,
			Choice:    choice,
			CreatedAt: s.clock(),
		}
		if err := tx.Bets().Create(ctx, bet); err != nil {
			return err
		}

		if choice {
			treasury.YesCount++
		} else {
			treasury.NoCount++
		}
		treasury.TotalAmount, err = domain.CheckedAdd(treasury.TotalAmount, amount)
		if err != nil {
			return err
		}

		if treasury.YesCount == market.MaxPlayerCount && treasury.NoCount == market.MaxPlayerCount {
			started = true
			market.Status = domain.StatusOngoing
			market.UpdatedAt = s.clock()
			if err := tx.Markets().Update(ctx, market); err != nil {
				return err
			}
			treasury.Status = domain.StatusOngoing
		}
		return tx.Treasuries().Update(ctx, treasury)
	})
	if err != nil {
		return domain.Bet{}, fmt.Errorf("ledger: place bet on market %d: %w", ref.MarketID, err)
	}

	s.logger.InfoContext(ctx, "bet placed",
		slog.String("user", string(user)),
		slog.Uint64("market_id", ref.MarketID),
		slog.Uint64("amount", amount),
		slog.String("side", bet.Side()),
		slog.Bool("market_started", started),
	)
	s.publish(ctx, domain.ChannelBets, domain.Event{
		Type:   domain.EventBetPlaced,
		Market: &ref,
		User:   user,
		Detail: map[string]any{"amount": amount, "side": bet.Side()},
	})
	if started {
		s.publish(ctx, domain.ChannelMarkets, domain.Event{
			Type:   domain.EventMarketStarted,
			Market: &ref,
		})
	}
	return bet, nil
}

func sideName(choice bool) string {
	if choice {
		return "yes"
	}
	return "no"
}
