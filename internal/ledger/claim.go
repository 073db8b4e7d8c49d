package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/knostra/knostrad/internal/crypto"
	"github.com/knostra/knostrad/internal/domain"
	"github.com/knostra/knostrad/internal/settlement"
)

// ClaimResult reports what one claim paid out.
type ClaimResult struct {
	Amount     uint64 `json:"amount"`
	Refund     bool   `json:"refund"`
	Fee        uint64 `json:"fee"` // total fee withheld (winner claims)
	CreatorFee uint64 `json:"creator_fee"`
}

// Claim settles one bet on a terminal market. On a cancelled market the
// stake is refunded in full; on a resolved market a winning bet pays out
// double the stake minus fees and a losing bet is rejected untouched. A bet
// claims at most once.
func (s *Service) Claim(ctx context.Context, user domain.Address, ref domain.MarketRef) (ClaimResult, error) {
	user = domain.NormalizeAddress(user)
	ref = normalizeRef(ref)
	vault := crypto.VaultAddress(ref)

	var res ClaimResult
	err := s.store.Atomic(ctx, func(tx domain.Tx) error {
		market, err := tx.Markets().GetForUpdate(ctx, ref)
		if err != nil {
			return err
		}
		if !market.Status.Terminal() {
			return fmt.Errorf("status %s: %w", market.Status, domain.ErrInvalidMarketStatus)
		}

		bet, err := tx.Bets().GetForUpdate(ctx, ref, user)
		if err != nil {
			return err
		}
		if bet.Claimed {
			return domain.ErrAlreadyClaimed
		}

		treasury, err := tx.Treasuries().GetForUpdate(ctx, ref)
		if err != nil {
			return err
		}

		switch {
		case market.Status == domain.StatusCancelled:
			refund := settlement.Refund(bet.BetAmount)
			if treasury.TotalAmount < refund {
				return fmt.Errorf("escrow %d, refund %d: %w", treasury.TotalAmount, refund, domain.ErrInsufficientTreasury)
			}
			if err := tx.Accounts().Move(ctx, vault, user, refund); err != nil {
				return err
			}
			treasury.TotalAmount, err = domain.CheckedSub(treasury.TotalAmount, refund)
			if err != nil {
				return err
			}
			res = ClaimResult{Amount: refund, Refund: true}

		default: // resolved yes/no
			if !settlement.IsWinner(market.Status, bet.Choice) {
				return domain.ErrNotAWinner
			}
			payout, err := settlement.WinnerPayout(bet.BetAmount)
			if err != nil {
				return err
			}
			if treasury.TotalAmount < payout.Gross {
				return fmt.Errorf("escrow %d, payout %d: %w", treasury.TotalAmount, payout.Gross, domain.ErrInsufficientTreasury)
			}
			if err := tx.Accounts().Move(ctx, vault, user, payout.Net); err != nil {
				return err
			}
			treasury.TotalAmount, err = domain.CheckedSub(treasury.TotalAmount, payout.Gross)
			if err != nil {
				return err
			}
			treasury.FeeAmount, err = domain.CheckedAdd(treasury.FeeAmount, payout.ProtocolFee)
			if err != nil {
				return err
			}
			treasury.CreatorFeeAmount, err = domain.CheckedAdd(treasury.CreatorFeeAmount, payout.CreatorFee)
			if err != nil {
				return err
			}
			res = ClaimResult{Amount: payout.Net, Fee: payout.TotalFee, CreatorFee: payout.CreatorFee}
		}

		bet.Claimed = true
		if err := tx.Bets().Update(ctx, bet); err != nil {
			return err
		}
		return tx.Treasuries().Update(ctx, treasury)
	})
	if err != nil {
		return ClaimResult{}, fmt.Errorf("ledger: claim on market %d: %w", ref.MarketID, err)
	}

	s.logger.InfoContext(ctx, "claim paid",
		slog.String("user", string(user)),
		slog.Uint64("market_id", ref.MarketID),
		slog.Uint64("amount", res.Amount),
		slog.Bool("refund", res.Refund),
	)
	s.publish(ctx, domain.ChannelBets, domain.Event{
		Type:   domain.EventClaimPaid,
		Market: &ref,
		User:   user,
		Detail: map[string]any{"amount": res.Amount, "refund": res.Refund},
	})
	return res, nil
}

// ClaimFees pays the market creator the full accrued creator fee. Only the
// creator recorded on the treasury may claim, and only once the market has
// resolved. The protocol fee accumulator is retained; its withdrawal path is
// a separate concern.
func (s *Service) ClaimFees(ctx context.Context, caller domain.Address, ref domain.MarketRef) (uint64, error) {
	caller = domain.NormalizeAddress(caller)
	ref = normalizeRef(ref)
	vault := crypto.VaultAddress(ref)

	var paid uint64
	err := s.store.Atomic(ctx, func(tx domain.Tx) error {
		treasury, err := tx.Treasuries().GetForUpdate(ctx, ref)
		if err != nil {
			return err
		}
		if caller != domain.NormalizeAddress(treasury.Creator) {
			return domain.ErrUnauthorized
		}
		if !treasury.Status.Resolved() {
			return fmt.Errorf("status %s: %w", treasury.Status, domain.ErrInvalidMarketStatus)
		}
		if treasury.CreatorFeeAmount == 0 {
			return domain.ErrNoFeesToClaim
		}

		paid = treasury.CreatorFeeAmount
		if err := tx.Accounts().Move(ctx, vault, caller, paid); err != nil {
			return err
		}
		treasury.CreatorFeeAmount = 0
		return tx.Treasuries().Update(ctx, treasury)
	})
	if err != nil {
		return 0, fmt.Errorf("ledger: claim fees on market %d: %w", ref.MarketID, err)
	}

	s.logger.InfoContext(ctx, "creator fees claimed",
		slog.String("creator", string(caller)),
		slog.Uint64("market_id", ref.MarketID),
		slog.Uint64("amount", paid),
	)
	s.publish(ctx, domain.ChannelBets, domain.Event{
		Type:   domain.EventFeesClaimed,
		Market: &ref,
		User:   caller,
		Detail: map[string]any{"amount": paid},
	})
	return paid, nil
}
