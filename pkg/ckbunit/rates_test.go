package ckbunit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFeeForSize checks that fees are computed from shannons/KB and that the
// round up variant never undercharges.
func TestFeeForSize(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		rate      FeeRate
		size      ByteSize
		floor     Capacity
		roundedUp Capacity
	}{
		{
			name:      "exact kilobyte",
			rate:      NewFeeRate(1000),
			size:      NewKiloByte(1),
			floor:     1000,
			roundedUp: 1000,
		},
		{
			name:      "typical transfer",
			rate:      NewFeeRate(1000),
			size:      NewByteSize(464),
			floor:     464,
			roundedUp: 464,
		},
		{
			name:      "fractional fee",
			rate:      NewFeeRate(1500),
			size:      NewByteSize(333),
			floor:     499,
			roundedUp: 500,
		},
		{
			name:      "zero rate",
			rate:      ZeroFeeRate,
			size:      NewByteSize(1000),
			floor:     0,
			roundedUp: 0,
		},
		{
			name:      "zero value rate",
			rate:      FeeRate{},
			size:      NewByteSize(1000),
			floor:     0,
			roundedUp: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.floor, tc.rate.FeeForSize(tc.size))
			require.Equal(
				t, tc.roundedUp, tc.rate.FeeForSizeRoundUp(tc.size),
			)
		})
	}
}

// TestCalcFeeRate checks that a rate derived from a fee and a size round
// trips.
func TestCalcFeeRate(t *testing.T) {
	t.Parallel()

	rate := CalcFeeRate(464, NewByteSize(464))
	require.True(t, rate.Equal(DefaultFeeRate))
	require.Equal(t, uint64(1000), rate.ShannonsPerKB())
	require.Equal(t, "1000.000 shannons/KB", rate.String())

	require.True(t, NewFeeRate(2000).GreaterThan(rate))
	require.True(t, NewFeeRate(999).LessThan(rate))
	require.True(t, CalcFeeRate(100, 0).IsZero())
}
