package types_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/escrow/types"
)

func TestFee(t *testing.T) {
	tests := []struct {
		name   string
		amount types.Amount
		bps    int
		fee    types.Amount
	}{
		{"no fee", 10000, 0, 0},
		{"2.5 percent", 10000, 250, 250},
		{"floors fractional unit", 399, 250, 9},
		{"whole amount", 777, types.MaxBps, 777},
		{"tiny amount rounds to zero", 3, 1, 0},
		{"max int64 does not overflow", math.MaxInt64, 9999, types.Amount(math.MaxInt64/10000*9999 + (math.MaxInt64%10000)*9999/10000)},
		{"zero amount", 0, 500, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fee, types.Fee(tt.amount, tt.bps))
			fee, net := types.SplitFee(tt.amount, tt.bps)
			assert.Equal(t, tt.amount, fee+net)
		})
	}
}

func TestValidBps(t *testing.T) {
	assert.True(t, types.ValidBps(0))
	assert.True(t, types.ValidBps(types.MaxBps))
	assert.False(t, types.ValidBps(-1))
	assert.False(t, types.ValidBps(types.MaxBps+1))
}

func TestCheckedArithmetic(t *testing.T) {
	sum, err := types.Amount(40).Add(2)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(42), sum)

	_, err = types.Amount(math.MaxInt64).Add(1)
	assert.ErrorIs(t, err, types.ErrOverflow)

	_, err = types.Amount(math.MinInt64).Sub(1)
	assert.ErrorIs(t, err, types.ErrOverflow)

	diff, err := types.Amount(5).Sub(7)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(-2), diff)

	total, err := types.Sum(4000, 4000, 1750)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(9750), total)

	_, err = types.Sum(math.MaxInt64, 1)
	assert.ErrorIs(t, err, types.ErrOverflow)
}

func TestFormat(t *testing.T) {
	tests := []struct {
		amount   types.Amount
		decimals int
		want     string
	}{
		{4900, 2, "49.00"},
		{1, 2, "0.01"},
		{0, 2, "0.00"},
		{-4900, 2, "-49.00"},
		{-1, 2, "-0.01"},
		{12345, 0, "12345"},
		{1, 18, "0.000000000000000001"},
		{math.MinInt64, 0, "-9223372036854775808"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.amount.Format(tt.decimals))
		})
	}
}

func TestParseAmount(t *testing.T) {
	a, err := types.ParseAmount(" 9750 ")
	require.NoError(t, err)
	assert.Equal(t, types.Amount(9750), a)

	_, err = types.ParseAmount("12.5")
	assert.Error(t, err)
}
