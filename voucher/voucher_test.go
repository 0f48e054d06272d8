package voucher_test

import (
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/escrow/voucher"
)

func TestCanTransition(t *testing.T) {
	all := []voucher.Status{
		voucher.StatusMinted, voucher.StatusApproved,
		voucher.StatusSettled, voucher.StatusReclaimed,
	}
	allowed := map[[2]voucher.Status]bool{
		{voucher.StatusMinted, voucher.StatusApproved}:    true,
		{voucher.StatusMinted, voucher.StatusSettled}:     true,
		{voucher.StatusMinted, voucher.StatusReclaimed}:   true,
		{voucher.StatusApproved, voucher.StatusSettled}:   true,
		{voucher.StatusApproved, voucher.StatusReclaimed}: true,
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]voucher.Status{from, to}], voucher.CanTransition(from, to),
				"%s -> %s", from, to)
		}
	}
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, voucher.StatusMinted.Live())
	assert.True(t, voucher.StatusApproved.Live())
	assert.False(t, voucher.StatusSettled.Live())
	assert.True(t, voucher.StatusSettled.Terminal())
	assert.True(t, voucher.StatusReclaimed.Terminal())
	assert.False(t, voucher.StatusApproved.Terminal())
}

func TestVoucherTransition(t *testing.T) {
	v := &voucher.Voucher{Code: "abc", Status: voucher.StatusMinted}
	require.NoError(t, v.Transition(voucher.StatusApproved))
	require.NoError(t, v.Transition(voucher.StatusSettled))
	assert.Error(t, v.Transition(voucher.StatusReclaimed))
	assert.Equal(t, voucher.StatusSettled, v.Status)
}

func TestRandomGenerator(t *testing.T) {
	g := voucher.NewRandomGenerator()
	seen := make(map[voucher.Code]struct{})
	for range 500 {
		c, err := g.Generate()
		require.NoError(t, err)
		raw, err := base58.Decode(c.String())
		require.NoError(t, err)
		assert.Len(t, raw, voucher.DefaultCodeBytes)
		_, dup := seen[c]
		require.False(t, dup)
		seen[c] = struct{}{}
	}
}
