// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package ckbunit provides a set of types for dealing with CKB units: native
// capacity, user defined token amounts, serialized sizes and fee rates.
package ckbunit

import (
	"errors"
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

const (
	// ShannonPerCKB is the number of shannons in a single CKB.
	ShannonPerCKB Capacity = 100_000_000

	// MaxCapacity is the largest representable capacity.
	MaxCapacity Capacity = 1<<64 - 1
)

var (
	// ErrCapacityOverflow is returned when adding or multiplying capacities
	// would exceed the range of a Capacity.
	ErrCapacityOverflow = errors.New("capacity overflow")

	// ErrCapacityUnderflow is returned when subtracting a larger capacity
	// from a smaller one.
	ErrCapacityUnderflow = errors.New("capacity underflow")

	// ErrInvalidCapacity is returned when a capacity string can't be
	// parsed.
	ErrInvalidCapacity = errors.New("invalid capacity")
)

// shannonDigits is the number of decimal places of a CKB amount.
const shannonDigits = 8

// Capacity is an amount of native CKB expressed in shannons. A cell occupying
// N bytes needs at least N CKB of capacity.
type Capacity uint64

// NewCapacityFromCKB returns the capacity for a whole number of CKB.
func NewCapacityFromCKB(ckb uint64) (Capacity, error) {
	return MulCapacity(ShannonPerCKB, ckb)
}

// BytesToCapacity returns the capacity needed to occupy n bytes on chain.
func BytesToCapacity(n uint64) (Capacity, error) {
	return MulCapacity(ShannonPerCKB, n)
}

// AddCapacity returns a+b, failing on overflow.
func AddCapacity(a, b Capacity) (Capacity, error) {
	sum, carry := bits.Add64(uint64(a), uint64(b), 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: %d + %d", ErrCapacityOverflow, a, b)
	}

	return Capacity(sum), nil
}

// SubCapacity returns a-b, failing when b is larger than a.
func SubCapacity(a, b Capacity) (Capacity, error) {
	diff, borrow := bits.Sub64(uint64(a), uint64(b), 0)
	if borrow != 0 {
		return 0, fmt.Errorf("%w: %d - %d", ErrCapacityUnderflow, a, b)
	}

	return Capacity(diff), nil
}

// MulCapacity returns c*n, failing on overflow.
func MulCapacity(c Capacity, n uint64) (Capacity, error) {
	hi, lo := bits.Mul64(uint64(c), n)
	if hi != 0 {
		return 0, fmt.Errorf("%w: %d * %d", ErrCapacityOverflow, c, n)
	}

	return Capacity(lo), nil
}

// SumCapacity adds up all the given capacities.
func SumCapacity(cs ...Capacity) (Capacity, error) {
	var (
		total Capacity
		err   error
	)
	for _, c := range cs {
		total, err = AddCapacity(total, c)
		if err != nil {
			return 0, err
		}
	}

	return total, nil
}

// ToCKB returns the capacity as a floating point number of CKB. It is meant
// for display only.
func (c Capacity) ToCKB() float64 {
	return float64(c) / float64(ShannonPerCKB)
}

// String returns the capacity formatted in CKB with full shannon precision.
func (c Capacity) String() string {
	return fmt.Sprintf("%d.%08d CKB", c/ShannonPerCKB, c%ShannonPerCKB)
}

// ParseCapacity parses a decimal amount of CKB such as "61", "0.5" or
// "100.00000001 CKB". At most eight fractional digits are accepted.
func ParseCapacity(s string) (Capacity, error) {
	value := strings.TrimSpace(strings.TrimSuffix(s, " CKB"))

	whole, frac, _ := strings.Cut(value, ".")
	if whole == "" && frac == "" || len(frac) > shannonDigits ||
		strings.ContainsAny(whole+frac, "+-") {

		return 0, fmt.Errorf("%w: %q", ErrInvalidCapacity, s)
	}

	var ckb uint64
	if whole != "" {
		var err error
		ckb, err = strconv.ParseUint(whole, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidCapacity, s)
		}
	}

	var shannons uint64
	if frac != "" {
		padded := frac + strings.Repeat("0", shannonDigits-len(frac))

		var err error
		shannons, err = strconv.ParseUint(padded, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidCapacity, s)
		}
	}

	c, err := NewCapacityFromCKB(ckb)
	if err != nil {
		return 0, err
	}

	return AddCapacity(c, Capacity(shannons))
}
