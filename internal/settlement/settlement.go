// Package settlement implements the payout, fee, and refund arithmetic for
// market claims. All computation is checked; overflow is a hard error.
package settlement

import (
	"fmt"

	"github.com/knostra/knostrad/internal/domain"
)

// Fee schedule in basis points of the gross payout.
const (
	TotalFeeBps    = 200 // 2%
	CreatorFeeBps  = 100 // 1%
	BpsDenominator = 10_000
)

// Payout is the settlement breakdown for one winning claim.
type Payout struct {
	Gross       uint64 // bet_amount * 2, debited from escrow in full
	TotalFee    uint64 // Gross * TotalFeeBps / 10_000
	CreatorFee  uint64 // Gross * CreatorFeeBps / 10_000
	ProtocolFee uint64 // TotalFee - CreatorFee
	Net         uint64 // Gross - TotalFee, paid to the winner
}

// WinnerPayout computes the settlement breakdown for a winning bet of the
// given stake.
func WinnerPayout(betAmount uint64) (Payout, error) {
	gross, err := domain.CheckedMul(betAmount, 2)
	if err != nil {
		return Payout{}, fmt.Errorf("settlement: gross payout: %w", err)
	}

	totalFee, err := feeOf(gross, TotalFeeBps)
	if err != nil {
		return Payout{}, fmt.Errorf("settlement: total fee: %w", err)
	}
	creatorFee, err := feeOf(gross, CreatorFeeBps)
	if err != nil {
		return Payout{}, fmt.Errorf("settlement: creator fee: %w", err)
	}
	protocolFee, err := domain.CheckedSub(totalFee, creatorFee)
	if err != nil {
		return Payout{}, fmt.Errorf("settlement: protocol fee: %w", err)
	}
	net, err := domain.CheckedSub(gross, totalFee)
	if err != nil {
		return Payout{}, fmt.Errorf("settlement: net payout: %w", err)
	}

	return Payout{
		Gross:       gross,
		TotalFee:    totalFee,
		CreatorFee:  creatorFee,
		ProtocolFee: protocolFee,
		Net:         net,
	}, nil
}

// Refund returns the amount repaid for a bet on a cancelled market: the
// exact stake, no fee.
func Refund(betAmount uint64) uint64 {
	return betAmount
}

// IsWinner reports whether a bet choice matches the resolved market status.
func IsWinner(status domain.Status, choice bool) bool {
	return (status == domain.StatusResolvedYes && choice) ||
		(status == domain.StatusResolvedNo && !choice)
}

func feeOf(gross uint64, bps uint64) (uint64, error) {
	n, err := domain.CheckedMul(gross, bps)
	if err != nil {
		return 0, err
	}
	return n / BpsDenominator, nil
}
