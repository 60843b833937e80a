// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package dao implements the arithmetic of nervos DAO deposits: epoch
// fractions, since values, lock periods and the maximum withdrawable
// capacity of a deposit.
package dao

import (
	"fmt"
	"math/big"
)

const (
	epochNumberBits = 24
	epochIndexBits  = 16
	epochLengthBits = 16

	epochNumberMask = 1<<epochNumberBits - 1
	epochIndexMask  = 1<<epochIndexBits - 1
	epochLengthMask = 1<<epochLengthBits - 1
)

// Epoch is a point in time expressed as an epoch number plus the fraction
// index/length of that epoch that has elapsed.
type Epoch struct {
	Number uint64
	Index  uint64
	Length uint64
}

// ParseEpoch unpacks the epoch field of a header or since value. The number
// sits in bits 0-23, the index in bits 24-39 and the length in bits 40-55.
func ParseEpoch(v uint64) Epoch {
	return Epoch{
		Number: v & epochNumberMask,
		Index:  (v >> epochNumberBits) & epochIndexMask,
		Length: (v >> (epochNumberBits + epochIndexBits)) &
			epochLengthMask,
	}
}

// Pack returns the packed form of the epoch.
func (e Epoch) Pack() uint64 {
	return (e.Length&epochLengthMask)<<(epochNumberBits+epochIndexBits) |
		(e.Index&epochIndexMask)<<epochNumberBits |
		e.Number&epochNumberMask
}

// Less reports whether e is strictly before o. Fractions are compared by
// cross multiplying so epochs of different lengths compare correctly.
func (e Epoch) Less(o Epoch) bool {
	if e.Number != o.Number {
		return e.Number < o.Number
	}

	e, o = e.normalized(), o.normalized()

	return e.Index*o.Length < o.Index*e.Length
}

// normalized returns e with a zero length read as the start of the epoch.
func (e Epoch) normalized() Epoch {
	if e.Length == 0 {
		return Epoch{Number: e.Number, Length: 1}
	}

	return e
}

// rat returns the epoch as a rational number of epochs.
func (e Epoch) rat() *big.Rat {
	n := e.normalized()
	r := new(big.Rat).SetFrac64(int64(n.Index), int64(n.Length))

	return r.Add(r, new(big.Rat).SetInt64(int64(n.Number)))
}

// String returns the epoch as number+index/length.
func (e Epoch) String() string {
	return fmt.Sprintf("%d+%d/%d", e.Number, e.Index, e.Length)
}
