package yield

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func Test_BaseCredits(t *testing.T) {
	t.Parallel()

	p := DefaultParams()

	tests := []struct {
		name      string
		principal int64
		want      int64
	}{
		{name: "one whole unit", principal: 1_000_000, want: 40},
		{name: "hundred units", principal: 100_000_000, want: 4000},
		{name: "fractional unit floors down", principal: 1_500_000, want: 60},
		{name: "below one credit", principal: 10_000, want: 0},
		{name: "zero principal", principal: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, p.BaseCredits(tt.principal))
		})
	}
}

func Test_BaseCredits_RecomputedNotAccumulated(t *testing.T) {
	t.Parallel()

	p := DefaultParams()

	// Two top-ups of 0.7 units each: recomputing from the total yields 56,
	// while summing per-deposit grants would lose a credit to rounding.
	perDeposit := p.BaseCredits(700_000)
	fromTotal := p.BaseCredits(1_400_000)

	require.Equal(t, int64(28), perDeposit)
	require.Equal(t, int64(56), fromTotal)
	require.Equal(t, fromTotal, p.BaseCredits(1_400_000), "same principal must always grant the same base credits")
}

func Test_YieldCredits(t *testing.T) {
	t.Parallel()

	p := DefaultParams()

	tests := []struct {
		name        string
		yieldEarned int64
		want        int64
	}{
		{name: "one whole unit converts at full rate", yieldEarned: 1_000_000, want: 50},
		{name: "two and a half units", yieldEarned: 2_500_000, want: 125},
		{name: "tiny yield floors to zero", yieldEarned: 10_000, want: 0},
		{name: "zero yield", yieldEarned: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, p.YieldCredits(tt.yieldEarned))
		})
	}
}

func Test_SharesForDeposit(t *testing.T) {
	t.Parallel()

	t.Run("rate of one buys shares one to one", func(t *testing.T) {
		shares := SharesForDeposit(100_000_000, decimal.NewFromInt(1))

		require.True(t, shares.Equal(decimal.NewFromInt(100_000_000)))
	})

	t.Run("higher rate buys fewer shares", func(t *testing.T) {
		shares := SharesForDeposit(100_000_000, decimal.RequireFromString("1.25"))

		require.True(t, shares.Equal(decimal.NewFromInt(80_000_000)))
	})
}

func Test_Compute(t *testing.T) {
	t.Parallel()

	t.Run("value grows with the rate", func(t *testing.T) {
		shares := SharesForDeposit(100_000_000, decimal.NewFromInt(1))

		currentValue, yieldEarned := Compute(shares, 100_000_000, decimal.RequireFromString("1.05"))

		require.Equal(t, int64(105_000_000), currentValue)
		require.Equal(t, int64(5_000_000), yieldEarned)
	})

	t.Run("no yield right after deposit", func(t *testing.T) {
		rate := decimal.RequireFromString("1.17")
		shares := SharesForDeposit(100_000_000, rate)

		currentValue, yieldEarned := Compute(shares, 100_000_000, rate)

		require.LessOrEqual(t, currentValue, int64(100_000_000))
		require.Equal(t, int64(0), yieldEarned, "rounding must not show as a loss or a gain")
	})

	t.Run("yield clamped at zero when rate drops", func(t *testing.T) {
		shares := SharesForDeposit(100_000_000, decimal.NewFromInt(1))

		currentValue, yieldEarned := Compute(shares, 100_000_000, decimal.RequireFromString("0.9"))

		require.Equal(t, int64(90_000_000), currentValue)
		require.Equal(t, int64(0), yieldEarned)
	})

	t.Run("deposits at different rates accrue together", func(t *testing.T) {
		shares := SharesForDeposit(100_000_000, decimal.NewFromInt(1))
		shares = shares.Add(SharesForDeposit(100_000_000, decimal.RequireFromString("1.25")))

		currentValue, yieldEarned := Compute(shares, 200_000_000, decimal.RequireFromString("1.25"))

		require.Equal(t, int64(225_000_000), currentValue)
		require.Equal(t, int64(25_000_000), yieldEarned)
	})
}
