// Package types provides the value types shared across escrow packages.
package types

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxBps is the basis-point denominator. A fee of MaxBps takes the whole deposit.
const MaxBps = 10000

// ErrOverflow is returned when checked arithmetic would leave the int64 range.
var ErrOverflow = errors.New("types: amount overflow")

// Amount is a quantity of the custodied asset in its smallest indivisible unit.
// All arithmetic is integer-only.
type Amount int64

// MaxAmount is the largest representable Amount.
const MaxAmount Amount = math.MaxInt64

// IsZero reports whether a is zero.
func (a Amount) IsZero() bool { return a == 0 }

// IsPositive reports whether a is greater than zero.
func (a Amount) IsPositive() bool { return a > 0 }

// IsNegative reports whether a is less than zero.
func (a Amount) IsNegative() bool { return a < 0 }

// Add returns a+b, or ErrOverflow.
func (a Amount) Add(b Amount) (Amount, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// Sub returns a-b, or ErrOverflow.
func (a Amount) Sub(b Amount) (Amount, error) {
	if b == math.MinInt64 {
		return 0, ErrOverflow
	}
	return a.Add(-b)
}

// Min returns the smaller of a and b.
func (a Amount) Min(b Amount) Amount {
	if a < b {
		return a
	}
	return b
}

// Sum adds values with overflow checking.
func Sum(values ...Amount) (Amount, error) {
	var total Amount
	for _, v := range values {
		next, err := total.Add(v)
		if err != nil {
			return 0, err
		}
		total = next
	}
	return total, nil
}

// ValidBps reports whether bps is a valid fee rate.
func ValidBps(bps int) bool { return bps >= 0 && bps <= MaxBps }

// Fee returns floor(a*bps/MaxBps) for a non-negative amount.
// The product is split to stay inside int64 for any amount.
func Fee(a Amount, bps int) Amount {
	if a <= 0 || bps <= 0 {
		return 0
	}
	if bps >= MaxBps {
		return a
	}
	q, r := a/MaxBps, a%MaxBps
	return q*Amount(bps) + r*Amount(bps)/MaxBps
}

// SplitFee returns the fee and the net remainder of a deposit.
func SplitFee(a Amount, bps int) (fee, net Amount) {
	fee = Fee(a, bps)
	return fee, a - fee
}

// Format renders a with the given number of decimal places, e.g.
// Amount(4900).Format(2) == "49.00".
func (a Amount) Format(decimals int) string {
	if decimals <= 0 {
		return strconv.FormatInt(int64(a), 10)
	}
	neg := a < 0
	u := uint64(a)
	if neg {
		u = uint64(-(a + 1)) + 1
	}

	s := strconv.FormatUint(u, 10)
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	out := s[:len(s)-decimals] + "." + s[len(s)-decimals:]
	if neg {
		return "-" + out
	}
	return out
}

// String returns the raw integer amount.
func (a Amount) String() string { return strconv.FormatInt(int64(a), 10) }

// ParseAmount parses a base-10 integer amount.
func ParseAmount(s string) (Amount, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("types: parse amount %q: %w", s, err)
	}
	return Amount(v), nil
}
