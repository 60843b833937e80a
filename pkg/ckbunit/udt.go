// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ckbunit

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"math/bits"
)

// UDTAmountSize is the number of bytes a token amount takes at the start of
// a token cell's data.
const UDTAmountSize = 16

var (
	// ErrUDTAmountOverflow is returned when a token amount exceeds 128
	// bits.
	ErrUDTAmountOverflow = errors.New("udt amount overflow")

	// ErrUDTAmountUnderflow is returned when subtracting a larger token
	// amount from a smaller one.
	ErrUDTAmountUnderflow = errors.New("udt amount underflow")

	// ErrShortUDTData is returned when a cell's data is too short to hold
	// a token amount.
	ErrShortUDTData = errors.New("cell data too short for udt amount")
)

// UDTAmount is an unsigned 128-bit user defined token amount.
type UDTAmount struct {
	hi uint64
	lo uint64
}

// NewUDTAmount creates a token amount from a uint64.
func NewUDTAmount(v uint64) UDTAmount {
	return UDTAmount{lo: v}
}

// UDTAmountFromBig creates a token amount from a big integer.
func UDTAmountFromBig(v *big.Int) (UDTAmount, error) {
	if v.Sign() < 0 || v.BitLen() > 128 {
		return UDTAmount{}, fmt.Errorf("%w: %s", ErrUDTAmountOverflow, v)
	}

	var buf [UDTAmountSize]byte
	v.FillBytes(buf[:])

	return UDTAmount{
		hi: binary.BigEndian.Uint64(buf[:8]),
		lo: binary.BigEndian.Uint64(buf[8:]),
	}, nil
}

// ParseUDTAmount reads the little endian token amount from the start of a
// cell's data.
func ParseUDTAmount(data []byte) (UDTAmount, error) {
	if len(data) < UDTAmountSize {
		return UDTAmount{}, fmt.Errorf("%w: got %d bytes",
			ErrShortUDTData, len(data))
	}

	return UDTAmount{
		lo: binary.LittleEndian.Uint64(data[:8]),
		hi: binary.LittleEndian.Uint64(data[8:16]),
	}, nil
}

// Bytes returns the 16 byte little endian encoding used in cell data.
func (u UDTAmount) Bytes() []byte {
	buf := make([]byte, UDTAmountSize)
	binary.LittleEndian.PutUint64(buf[:8], u.lo)
	binary.LittleEndian.PutUint64(buf[8:], u.hi)

	return buf
}

// Add returns u+v.
func (u UDTAmount) Add(v UDTAmount) (UDTAmount, error) {
	lo, carry := bits.Add64(u.lo, v.lo, 0)
	hi, carry := bits.Add64(u.hi, v.hi, carry)
	if carry != 0 {
		return UDTAmount{}, ErrUDTAmountOverflow
	}

	return UDTAmount{hi: hi, lo: lo}, nil
}

// Sub returns u-v.
func (u UDTAmount) Sub(v UDTAmount) (UDTAmount, error) {
	lo, borrow := bits.Sub64(u.lo, v.lo, 0)
	hi, borrow := bits.Sub64(u.hi, v.hi, borrow)
	if borrow != 0 {
		return UDTAmount{}, ErrUDTAmountUnderflow
	}

	return UDTAmount{hi: hi, lo: lo}, nil
}

// Cmp compares u and v and returns -1, 0 or +1.
func (u UDTAmount) Cmp(v UDTAmount) int {
	switch {
	case u.hi < v.hi:
		return -1
	case u.hi > v.hi:
		return 1
	case u.lo < v.lo:
		return -1
	case u.lo > v.lo:
		return 1
	}

	return 0
}

// IsZero reports whether the amount is zero.
func (u UDTAmount) IsZero() bool {
	return u.hi == 0 && u.lo == 0
}

// BigInt returns the amount as a big integer.
func (u UDTAmount) BigInt() *big.Int {
	v := new(big.Int).SetUint64(u.hi)
	v.Lsh(v, 64)

	return v.Or(v, new(big.Int).SetUint64(u.lo))
}

// String returns the decimal representation of the amount.
func (u UDTAmount) String() string {
	return u.BigInt().String()
}
