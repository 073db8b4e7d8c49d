package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/knostra/knostrad/internal/domain"
)

// CreateMarket validates the params and writes a NotStarted market together
// with its zeroed treasury in one transaction.
func (s *Service) CreateMarket(ctx context.Context, owner domain.Address, params domain.CreateMarketParams) (domain.Market, error) {
	owner = domain.NormalizeAddress(owner)
	if err := validateCreateParams(params); err != nil {
		return domain.Market{}, fmt.Errorf("ledger: create market: %w", err)
	}

	now := s.clock()
	market := domain.Market{
		Owner:             owner,
		MarketID:          params.MarketID,
		Name:              params.Name,
		Description:       params.Description,
		Token:             params.Token,
		MarketStart:       params.MarketStart,
		MarketEnd:         params.MarketEnd,
		RelationalOp:      params.RelationalOp,
		TargetValue:       params.TargetValue,
		Status:            domain.StatusNotStarted,
		RequiredBetAmount: params.RequiredBetAmount,
		MaxPlayerCount:    params.MaxPlayerCount,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	treasury := domain.Treasury{
		Owner:    owner,
		MarketID: params.MarketID,
		Creator:  owner,
		Status:   domain.StatusNotStarted,
	}

	err := s.store.Atomic(ctx, func(tx domain.Tx) error {
		if err := tx.Markets().Create(ctx, market); err != nil {
			return err
		}
		return tx.Treasuries().Create(ctx, treasury)
	})
	if err != nil {
		return domain.Market{}, fmt.Errorf("ledger: create market: %w", err)
	}

	s.logger.InfoContext(ctx, "market created",
		slog.String("owner", string(owner)),
		slog.Uint64("market_id", params.MarketID),
		slog.String("relational_op", params.RelationalOp),
		slog.Uint64("target_value", params.TargetValue),
	)
	ref := market.Ref()
	s.publish(ctx, domain.ChannelMarkets, domain.Event{
		Type:   domain.EventMarketCreated,
		Market: &ref,
	})
	return market, nil
}

// Resolve settles an Ongoing market against a reported value. Only the
// derived resolver authority may resolve; an unknown relational operator is a
// hard error with no mutation.
func (s *Service) Resolve(ctx context.Context, authority domain.Address, ref domain.MarketRef, value uint64) (domain.Market, error) {
	ref = normalizeRef(ref)
	if domain.NormalizeAddress(authority) != s.resolver {
		return domain.Market{}, fmt.Errorf("ledger: resolve market %d: %w", ref.MarketID, domain.ErrUnauthorizedResolver)
	}

	var market domain.Market
	err := s.store.Atomic(ctx, func(tx domain.Tx) error {
		var err error
		market, err = tx.Markets().GetForUpdate(ctx, ref)
		if err != nil {
			return err
		}
		if market.Status != domain.StatusOngoing {
			return fmt.Errorf("status %s: %w", market.Status, domain.ErrInvalidMarketStatus)
		}
		yes, err := domain.EvaluateOutcome(market.RelationalOp, value, market.TargetValue)
		if err != nil {
			return err
		}

		if yes {
			market.Status = domain.StatusResolvedYes
		} else {
			market.Status = domain.StatusResolvedNo
		}
		market.ResolveValue = value
		market.UpdatedAt = s.clock()
		if err := tx.Markets().Update(ctx, market); err != nil {
			return err
		}

		treasury, err := tx.Treasuries().GetForUpdate(ctx, ref)
		if err != nil {
			return err
		}
		treasury.Status = market.Status
		return tx.Treasuries().Update(ctx, treasury)
	})
	if err != nil {
		return domain.Market{}, fmt.Errorf("ledger: resolve market %d: %w", ref.MarketID, err)
	}

	s.logger.InfoContext(ctx, "market resolved",
		slog.String("owner", string(ref.Owner)),
		slog.Uint64("market_id", ref.MarketID),
		slog.String("status", string(market.Status)),
		slog.Uint64("resolve_value", value),
	)
	s.publish(ctx, domain.ChannelMarkets, domain.Event{
		Type:   domain.EventMarketResolved,
		Market: &ref,
		Detail: map[string]any{
			"status":        market.Status,
			"resolve_value": value,
		},
	})
	return market, nil
}

// Cancel moves a NotStarted market to Cancelled, unlocking every escrowed
// stake for refund claims. Any caller may cancel a market that has not
// started.
func (s *Service) Cancel(ctx context.Context, ref domain.MarketRef) (domain.Market, error) {
	ref = normalizeRef(ref)

	var market domain.Market
	err := s.store.Atomic(ctx, func(tx domain.Tx) error {
		var err error
		market, err = tx.Markets().GetForUpdate(ctx, ref)
		if err != nil {
			return err
		}
		if market.Status != domain.StatusNotStarted {
			return fmt.Errorf("status %s: %w", market.Status, domain.ErrInvalidMarketStatus)
		}

		market.Status = domain.StatusCancelled
		market.UpdatedAt = s.clock()
		if err := tx.Markets().Update(ctx, market); err != nil {
			return err
		}

		treasury, err := tx.Treasuries().GetForUpdate(ctx, ref)
		if err != nil {
			return err
		}
		treasury.Status = domain.StatusCancelled
		return tx.Treasuries().Update(ctx, treasury)
	})
	if err != nil {
		return domain.Market{}, fmt.Errorf("ledger: cancel market %d: %w", ref.MarketID, err)
	}

	s.logger.InfoContext(ctx, "market cancelled",
		slog.String("owner", string(ref.Owner)),
		slog.Uint64("market_id", ref.MarketID),
	)
	s.publish(ctx, domain.ChannelMarkets, domain.Event{
		Type:   domain.EventMarketCancelled,
		Market: &ref,
	})
	return market, nil
}

func validateCreateParams(p domain.CreateMarketParams) error {
	if len(p.Name) > domain.MaxNameLen {
		return fmt.Errorf("name: %w", domain.ErrFieldTooLong)
	}
	if len(p.Description) > domain.MaxDescriptionLen {
		return fmt.Errorf("description: %w", domain.ErrFieldTooLong)
	}
	if len(p.Token) > domain.MaxTokenLen {
		return fmt.Errorf("token: %w", domain.ErrFieldTooLong)
	}
	if len(p.RelationalOp) > domain.MaxRelationalLen {
		return fmt.Errorf("relational_op: %w", domain.ErrFieldTooLong)
	}
	if _, err := domain.EvaluateOutcome(p.RelationalOp, 0, 0); err != nil {
		return err
	}
	if p.RequiredBetAmount == 0 {
		return fmt.Errorf("required bet amount is zero: %w", domain.ErrInvalidBetAmount)
	}
	if p.MaxPlayerCount == 0 {
		return fmt.Errorf("max player count is zero: %w", domain.ErrMaxPlayersReached)
	}
	return nil
}
