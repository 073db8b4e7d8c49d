package domain

import "fmt"

// Checked uint64 arithmetic. Every balance, count, and fee mutation in the
// ledger goes through these; overflow or underflow is a hard error, never a
// silent wrap.

// CheckedAdd returns a+b or ErrMathOverflow.
func CheckedAdd(a, b uint64) (uint64, error) {
	if a > ^uint64(0)-b {
		return 0, fmt.Errorf("add %d+%d: %w", a, b, ErrMathOverflow)
	}
	return a + b, nil
}

// CheckedSub returns a-b or ErrMathOverflow when b > a.
func CheckedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, fmt.Errorf("sub %d-%d: %w", a, b, ErrMathOverflow)
	}
	return a - b, nil
}

// CheckedMul returns a*b or ErrMathOverflow.
func CheckedMul(a, b uint64) (uint64, error) {
	if a != 0 && b > ^uint64(0)/a {
		return 0, fmt.Errorf("mul %d*%d: %w", a, b, ErrMathOverflow)
	}
	return a * b, nil
}
