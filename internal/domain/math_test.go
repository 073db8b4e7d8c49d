package domain

import (
	"errors"
	"math"
	"testing"
)

func TestCheckedAdd(t *testing.T) {
	tests := []struct {
		a, b    uint64
		want    uint64
		wantErr bool
	}{
		{0, 0, 0, false},
		{1, 2, 3, false},
		{math.MaxUint64, 0, math.MaxUint64, false},
		{math.MaxUint64 - 1, 1, math.MaxUint64, false},
		{math.MaxUint64, 1, 0, true},
		{math.MaxUint64 / 2, math.MaxUint64/2 + 2, 0, true},
	}
	for _, tt := range tests {
		got, err := CheckedAdd(tt.a, tt.b)
		if tt.wantErr {
			if !errors.Is(err, ErrMathOverflow) {
				t.Errorf("CheckedAdd(%d, %d): expected overflow, got %v", tt.a, tt.b, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("CheckedAdd(%d, %d): %v", tt.a, tt.b, err)
			continue
		}
		if got != tt.want {
			t.Errorf("CheckedAdd(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCheckedSub(t *testing.T) {
	tests := []struct {
		a, b    uint64
		want    uint64
		wantErr bool
	}{
		{0, 0, 0, false},
		{5, 3, 2, false},
		{math.MaxUint64, math.MaxUint64, 0, false},
		{0, 1, 0, true},
		{100, 101, 0, true},
	}
	for _, tt := range tests {
		got, err := CheckedSub(tt.a, tt.b)
		if tt.wantErr {
			if !errors.Is(err, ErrMathOverflow) {
				t.Errorf("CheckedSub(%d, %d): expected underflow, got %v", tt.a, tt.b, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("CheckedSub(%d, %d): %v", tt.a, tt.b, err)
			continue
		}
		if got != tt.want {
			t.Errorf("CheckedSub(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCheckedMul(t *testing.T) {
	tests := []struct {
		a, b    uint64
		want    uint64
		wantErr bool
	}{
		{0, 0, 0, false},
		{0, math.MaxUint64, 0, false},
		{math.MaxUint64, 0, 0, false},
		{3, 4, 12, false},
		{math.MaxUint64, 1, math.MaxUint64, false},
		{math.MaxUint64 / 2, 2, math.MaxUint64 - 1, false},
		{math.MaxUint64/2 + 1, 2, 0, true},
		{math.MaxUint64, 2, 0, true},
	}
	for _, tt := range tests {
		got, err := CheckedMul(tt.a, tt.b)
		if tt.wantErr {
			if !errors.Is(err, ErrMathOverflow) {
				t.Errorf("CheckedMul(%d, %d): expected overflow, got %v", tt.a, tt.b, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("CheckedMul(%d, %d): %v", tt.a, tt.b, err)
			continue
		}
		if got != tt.want {
			t.Errorf("CheckedMul(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestEvaluateOutcome(t *testing.T) {
	tests := []struct {
		op       string
		reported uint64
		target   uint64
		want     bool
	}{
		{OpGTE, 10, 10, true},
		{OpGTE, 9, 10, false},
		{OpLTE, 10, 10, true},
		{OpLTE, 11, 10, false},
		{OpGT, 11, 10, true},
		{OpGT, 10, 10, false},
		{OpLT, 9, 10, true},
		{OpLT, 10, 10, false},
		{OpEQ, 10, 10, true},
		{OpEQ, 11, 10, false},
	}
	for _, tt := range tests {
		got, err := EvaluateOutcome(tt.op, tt.reported, tt.target)
		if err != nil {
			t.Errorf("EvaluateOutcome(%q, %d, %d): %v", tt.op, tt.reported, tt.target, err)
			continue
		}
		if got != tt.want {
			t.Errorf("EvaluateOutcome(%q, %d, %d) = %v, want %v", tt.op, tt.reported, tt.target, got, tt.want)
		}
	}
}

func TestEvaluateOutcomeUnknownOp(t *testing.T) {
	for _, op := range []string{"", "!=", ">>", "gte"} {
		if _, err := EvaluateOutcome(op, 1, 1); !errors.Is(err, ErrInvalidRelationalOp) {
			t.Errorf("EvaluateOutcome(%q): expected ErrInvalidRelationalOp, got %v", op, err)
		}
	}
}
