package ckbunit

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestCapacityArithmetic checks the checked add, sub and mul helpers.
func TestCapacityArithmetic(t *testing.T) {
	t.Parallel()

	sum, err := AddCapacity(61*ShannonPerCKB, 39*ShannonPerCKB)
	require.NoError(t, err)
	require.Equal(t, 100*ShannonPerCKB, sum)

	_, err = AddCapacity(MaxCapacity, 1)
	require.ErrorIs(t, err, ErrCapacityOverflow)

	diff, err := SubCapacity(100*ShannonPerCKB, 1)
	require.NoError(t, err)
	require.Equal(t, Capacity(9_999_999_999), diff)

	_, err = SubCapacity(1, 2)
	require.ErrorIs(t, err, ErrCapacityUnderflow)

	_, err = MulCapacity(ShannonPerCKB, 1<<40)
	require.ErrorIs(t, err, ErrCapacityOverflow)

	c, err := NewCapacityFromCKB(142)
	require.NoError(t, err)
	require.Equal(t, Capacity(14_200_000_000), c)

	total, err := SumCapacity(1, 2, 3)
	require.NoError(t, err)
	require.Equal(t, Capacity(6), total)

	_, err = SumCapacity(MaxCapacity, 1)
	require.ErrorIs(t, err, ErrCapacityOverflow)
}

// TestCapacityString checks the CKB formatting.
func TestCapacityString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "61.00000000 CKB", (61 * ShannonPerCKB).String())
	require.Equal(t, "0.00000464 CKB", Capacity(464).String())
}

// TestUDTAmount checks token amount arithmetic and its data encoding.
func TestUDTAmount(t *testing.T) {
	t.Parallel()

	a := NewUDTAmount(1<<64 - 1)
	b := NewUDTAmount(1)

	sum, err := a.Add(b)
	require.NoError(t, err)
	require.Equal(t, "18446744073709551616", sum.String())
	require.Equal(t, 1, sum.Cmp(a))
	require.Equal(t, -1, a.Cmp(sum))
	require.Equal(t, 0, sum.Cmp(sum))

	back, err := sum.Sub(b)
	require.NoError(t, err)
	require.Equal(t, a, back)

	_, err = b.Sub(a)
	require.ErrorIs(t, err, ErrUDTAmountUnderflow)

	largest, err := UDTAmountFromBig(
		new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128),
			big.NewInt(1)),
	)
	require.NoError(t, err)
	_, err = largest.Add(b)
	require.ErrorIs(t, err, ErrUDTAmountOverflow)

	_, err = UDTAmountFromBig(new(big.Int).Lsh(big.NewInt(1), 128))
	require.ErrorIs(t, err, ErrUDTAmountOverflow)

	// The amount sits in the first 16 bytes of data, little endian, and
	// anything after it is ignored.
	data := append(NewUDTAmount(1000).Bytes(), 0xff, 0xff)
	require.Equal(t, byte(0xe8), data[0])
	require.Equal(t, byte(0x03), data[1])

	parsed, err := ParseUDTAmount(data)
	require.NoError(t, err)
	require.Equal(t, NewUDTAmount(1000), parsed)

	_, err = ParseUDTAmount(make([]byte, 15))
	require.ErrorIs(t, err, ErrShortUDTData)

	require.True(t, UDTAmount{}.IsZero())
}

// TestParseCapacity checks decimal CKB amounts parse to exact shannons.
func TestParseCapacity(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		input string
		want  Capacity
		err   error
	}{{
		name:  "whole",
		input: "61",
		want:  61 * ShannonPerCKB,
	}, {
		name:  "fraction",
		input: "0.5",
		want:  ShannonPerCKB / 2,
	}, {
		name:  "leading dot",
		input: ".00000001",
		want:  1,
	}, {
		name:  "formatted",
		input: (100*ShannonPerCKB + 1).String(),
		want:  100*ShannonPerCKB + 1,
	}, {
		name:  "too precise",
		input: "1.000000001",
		err:   ErrInvalidCapacity,
	}, {
		name:  "negative",
		input: "-1",
		err:   ErrInvalidCapacity,
	}, {
		name:  "empty",
		input: ".",
		err:   ErrInvalidCapacity,
	}, {
		name:  "garbage",
		input: "ten",
		err:   ErrInvalidCapacity,
	}, {
		name:  "overflow",
		input: "184467440738",
		err:   ErrCapacityOverflow,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseCapacity(tc.input)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}
