// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ckbunit

import (
	"math/big"
)

// floatStringPrecision is the number of decimal places to use when
// converting a fee rate to a string.
const floatStringPrecision = 3

var (
	// ZeroFeeRate is a fee rate of 0 shannons/KB.
	ZeroFeeRate = NewFeeRate(0)

	// DefaultFeeRate is the minimum fee rate relayed by default nodes.
	DefaultFeeRate = NewFeeRate(1000)
)

// FeeRate is a fee rate expressed in shannons per kilobyte of serialized
// transaction. The rate is kept as a rational number so that rates derived
// from an absolute fee and a size do not lose precision.
type FeeRate struct {
	// shannonsPerKB is the canonical representation of the rate.
	shannonsPerKB *big.Rat
}

// NewFeeRate creates a new fee rate in shannons/KB.
func NewFeeRate(shannonsPerKB uint64) FeeRate {
	return CalcFeeRate(Capacity(shannonsPerKB), NewKiloByte(1))
}

// CalcFeeRate calculates the fee rate paid by a transaction of the given size
// carrying the given fee.
func CalcFeeRate(fee Capacity, size ByteSize) FeeRate {
	if size == 0 {
		return FeeRate{shannonsPerKB: big.NewRat(0, 1)}
	}

	// (fee * 1000) / size, kept as a fraction.
	num := new(big.Int).SetUint64(uint64(fee))
	num.Mul(num, big.NewInt(kilo))
	den := new(big.Int).SetUint64(uint64(size))

	return FeeRate{shannonsPerKB: new(big.Rat).SetFrac(num, den)}
}

func (f FeeRate) rat() *big.Rat {
	if f.shannonsPerKB == nil {
		return big.NewRat(0, 1)
	}

	return f.shannonsPerKB
}

// IsZero reports whether the rate is zero.
func (f FeeRate) IsZero() bool {
	return f.rat().Sign() == 0
}

// feeForSize multiplies the rate by the size in kilobytes and returns the
// resulting fraction's numerator and denominator.
func (f FeeRate) feeForSize(size ByteSize) (*big.Int, *big.Int) {
	fee := new(big.Rat).Mul(
		f.rat(), new(big.Rat).SetFrac(
			new(big.Int).SetUint64(uint64(size)), big.NewInt(kilo),
		),
	)

	return fee.Num(), fee.Denom()
}

// FeeForSize calculates the fee resulting from this fee rate and the given
// size, rounding down.
func (f FeeRate) FeeForSize(size ByteSize) Capacity {
	num, den := f.feeForSize(size)

	return clampCapacity(new(big.Int).Div(num, den))
}

// FeeForSizeRoundUp calculates the fee resulting from this fee rate and the
// given size, rounding up to the nearest shannon.
func (f FeeRate) FeeForSizeRoundUp(size ByteSize) Capacity {
	num, den := f.feeForSize(size)

	// (numerator + denominator - 1) / denominator.
	result := new(big.Int).Add(num, den)
	result.Sub(result, big.NewInt(1))
	result.Div(result, den)

	return clampCapacity(result)
}

// ShannonsPerKB returns the rate truncated to whole shannons/KB.
func (f FeeRate) ShannonsPerKB() uint64 {
	r := f.rat()

	return uint64(clampCapacity(new(big.Int).Div(r.Num(), r.Denom())))
}

// String returns a human-readable string of the fee rate.
func (f FeeRate) String() string {
	return f.rat().FloatString(floatStringPrecision) + " shannons/KB"
}

// Equal returns true if the fee rate is equal to the other fee rate.
func (f FeeRate) Equal(other FeeRate) bool {
	return f.rat().Cmp(other.rat()) == 0
}

// GreaterThan returns true if the fee rate is greater than the other fee rate.
func (f FeeRate) GreaterThan(other FeeRate) bool {
	return f.rat().Cmp(other.rat()) > 0
}

// LessThan returns true if the fee rate is less than the other fee rate.
func (f FeeRate) LessThan(other FeeRate) bool {
	return f.rat().Cmp(other.rat()) < 0
}

// clampCapacity converts a non-negative big integer to a Capacity, capping it
// at MaxCapacity. A capped fee can never be covered by real cells so callers
// surface it as an insufficient balance.
func clampCapacity(v *big.Int) Capacity {
	if !v.IsUint64() {
		return MaxCapacity
	}

	return Capacity(v.Uint64())
}
