package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrozenAmountIsZoneCeiling(t *testing.T) {
	t.Parallel()

	for _, z := range []Zone{
		{Name: "500元区"},
		{Name: "1K区"},
		{Name: "anything", CeilingPrice: decimal.NewFromInt(3000)},
	} {
		frozen, err := FrozenAmount(z)
		require.NoError(t, err)
		ceiling, err := z.Ceiling()
		require.NoError(t, err)
		assert.True(t, frozen.Equal(ceiling))
	}
}

func TestRefundDiff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		frozen int64
		actual int64
		want   int64
	}{
		{name: "partial refund", frozen: 1000, actual: 750, want: 250},
		{name: "exact price", frozen: 500, actual: 500, want: 0},
		{name: "never negative", frozen: 500, actual: 650, want: 0},
		{name: "free item", frozen: 500, actual: 0, want: 500},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := RefundDiff(decimal.NewFromInt(tt.frozen), decimal.NewFromInt(tt.actual))
			assert.True(t, got.Equal(decimal.NewFromInt(tt.want)), "got %s", got)
		})
	}
}

func TestValidateBidFunds(t *testing.T) {
	t.Parallel()

	base := BidFunds{
		AvailableHashrate: 10,
		ExtraHashrate:     5,
		AccountBalance:    decimal.NewFromInt(1000),
		FrozenAmount:      decimal.NewFromInt(1000),
	}

	require.NoError(t, ValidateBidFunds(base))

	neg := base
	neg.ExtraHashrate = -1
	assert.ErrorIs(t, ValidateBidFunds(neg), ErrInvalidExtraHashrate)

	tooMuch := base
	tooMuch.ExtraHashrate = 6
	assert.ErrorIs(t, ValidateBidFunds(tooMuch), ErrInsufficientHashrate)

	noBase := base
	noBase.AvailableHashrate = 4
	noBase.ExtraHashrate = 0
	assert.ErrorIs(t, ValidateBidFunds(noBase), ErrInsufficientHashrate)

	poor := base
	poor.AccountBalance = decimal.NewFromFloat(999.99)
	assert.ErrorIs(t, ValidateBidFunds(poor), ErrInsufficientBalance)
}

func TestMaxExtraHashrate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, MaxExtraHashrate(3))
	assert.Equal(t, 0, MaxExtraHashrate(5))
	assert.Equal(t, 7, MaxExtraHashrate(12))
}

func TestReservationStatus(t *testing.T) {
	t.Parallel()

	assert.False(t, ReservationStatusPending.Terminal())
	assert.True(t, ReservationStatusApproved.Terminal())
	assert.True(t, ReservationStatusRejected.Terminal())
	assert.False(t, ReservationStatus("refunded").Valid())
}
