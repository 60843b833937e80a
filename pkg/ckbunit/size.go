package ckbunit

import "fmt"

// kilo is a generic multiplier for kilo units.
const kilo = 1000

// ByteSize is the serialized size of a transaction as counted for fees.
type ByteSize uint64

// NewByteSize creates a new ByteSize from a uint64 value.
func NewByteSize(val uint64) ByteSize {
	return ByteSize(val)
}

// NewKiloByte creates a ByteSize holding the given number of kilobytes.
func NewKiloByte(val uint64) ByteSize {
	return ByteSize(val * kilo)
}

// String returns the string representation of the size.
func (b ByteSize) String() string {
	return fmt.Sprintf("%d bytes", uint64(b))
}
