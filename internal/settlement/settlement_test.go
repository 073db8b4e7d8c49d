package settlement

import (
	"errors"
	"math"
	"testing"

	"github.com/knostra/knostrad/internal/domain"
)

func TestWinnerPayout(t *testing.T) {
	tests := []struct {
		name string
		bet  uint64
		want Payout
	}{
		{
			name: "standard stake",
			bet:  1000,
			want: Payout{Gross: 2000, TotalFee: 40, CreatorFee: 20, ProtocolFee: 20, Net: 1960},
		},
		{
			name: "single unit",
			bet:  1,
			want: Payout{Gross: 2, TotalFee: 0, CreatorFee: 0, ProtocolFee: 0, Net: 2},
		},
		{
			name: "fee rounding truncates",
			bet:  33,
			// gross 66, total fee 66*200/10000 = 1, creator 66*100/10000 = 0
			want: Payout{Gross: 66, TotalFee: 1, CreatorFee: 0, ProtocolFee: 1, Net: 65},
		},
		{
			name: "large stake",
			bet:  5_000_000,
			want: Payout{Gross: 10_000_000, TotalFee: 200_000, CreatorFee: 100_000, ProtocolFee: 100_000, Net: 9_800_000},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := WinnerPayout(tt.bet)
			if err != nil {
				t.Fatalf("WinnerPayout(%d): %v", tt.bet, err)
			}
			if got != tt.want {
				t.Errorf("WinnerPayout(%d) = %+v, want %+v", tt.bet, got, tt.want)
			}
			if got.CreatorFee+got.ProtocolFee != got.TotalFee {
				t.Errorf("fee split does not sum: creator %d + protocol %d != total %d",
					got.CreatorFee, got.ProtocolFee, got.TotalFee)
			}
			if got.Net+got.TotalFee != got.Gross {
				t.Errorf("payout does not conserve gross: net %d + fee %d != gross %d",
					got.Net, got.TotalFee, got.Gross)
			}
		})
	}
}

func TestWinnerPayoutOverflow(t *testing.T) {
	_, err := WinnerPayout(math.MaxUint64/2 + 1)
	if !errors.Is(err, domain.ErrMathOverflow) {
		t.Fatalf("expected ErrMathOverflow, got %v", err)
	}
}

func TestRefund(t *testing.T) {
	if got := Refund(1234); got != 1234 {
		t.Errorf("Refund(1234) = %d, want the exact stake back", got)
	}
	if got := Refund(0); got != 0 {
		t.Errorf("Refund(0) = %d, want 0", got)
	}
}

func TestIsWinner(t *testing.T) {
	tests := []struct {
		status domain.Status
		choice bool
		want   bool
	}{
		{domain.StatusResolvedYes, true, true},
		{domain.StatusResolvedYes, false, false},
		{domain.StatusResolvedNo, false, true},
		{domain.StatusResolvedNo, true, false},
		{domain.StatusOngoing, true, false},
		{domain.StatusCancelled, false, false},
	}
	for _, tt := range tests {
		if got := IsWinner(tt.status, tt.choice); got != tt.want {
			t.Errorf("IsWinner(%s, %v) = %v, want %v", tt.status, tt.choice, got, tt.want)
		}
	}
}
