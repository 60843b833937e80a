// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package dao

import (
	"errors"
	"fmt"
)

// ErrInvalidSince is returned for a since value using the reserved metric.
var ErrInvalidSince = errors.New("invalid since")

const (
	// sinceRelativeFlag marks a since value relative to the input cell's
	// commitment.
	sinceRelativeFlag uint64 = 1 << 63

	// sinceEpochFlag selects the epoch metric.
	sinceEpochFlag uint64 = 0x2000000000000000

	// sinceTimestampFlag selects the median time metric.
	sinceTimestampFlag uint64 = 0x4000000000000000

	sinceMetricMask uint64 = 0x6000000000000000
	sinceValueMask  uint64 = 0x00ffffffffffffff
)

// AbsoluteEpochSince returns a since value only satisfied once the chain has
// reached epoch e.
func AbsoluteEpochSince(e Epoch) uint64 {
	return sinceEpochFlag | e.Pack()
}

// RelativeEpochSince returns a since value satisfied once the given number
// of whole epochs have passed since the input was committed. Whole epochs
// are encoded with a zero index and length.
func RelativeEpochSince(epochs uint64) uint64 {
	return sinceRelativeFlag | sinceEpochFlag | Epoch{Number: epochs}.Pack()
}

// SinceEpoch extracts the epoch of an absolute epoch since value. The second
// return is false for any other kind of since.
func SinceEpoch(since uint64) (Epoch, bool) {
	if since&sinceRelativeFlag != 0 ||
		since&sinceMetricMask != sinceEpochFlag {

		return Epoch{}, false
	}

	return ParseEpoch(since & sinceValueMask), true
}

// IsRelative reports whether a since value is relative.
func IsRelative(since uint64) bool {
	return since&sinceRelativeFlag != 0
}

// SinceMetric is the clock a since value is measured with.
type SinceMetric uint8

const (
	// MetricBlockNumber counts blocks.
	MetricBlockNumber SinceMetric = iota

	// MetricEpoch counts epochs, with fractions.
	MetricEpoch

	// MetricTimestamp counts seconds of median block time.
	MetricTimestamp
)

// Since is a decoded since value.
type Since struct {
	Relative bool
	Metric   SinceMetric
	Value    uint64
}

// ParseSince decodes a since value.
func ParseSince(v uint64) (Since, error) {
	s := Since{
		Relative: v&sinceRelativeFlag != 0,
		Value:    v & sinceValueMask,
	}

	switch v & sinceMetricMask {
	case 0:
		s.Metric = MetricBlockNumber

	case sinceEpochFlag:
		s.Metric = MetricEpoch

	case sinceTimestampFlag:
		s.Metric = MetricTimestamp

	default:
		return Since{}, fmt.Errorf("%w: %#x", ErrInvalidSince, v)
	}

	return s, nil
}

// Clock is a point of chain time. Timestamp is in milliseconds, as in block
// headers.
type Clock struct {
	Number    uint64
	Epoch     Epoch
	Timestamp uint64
}

// Reached reports whether the since is satisfied at tip. Relative values are
// measured from committed, the clock of the block holding the input cell.
// The tip's own timestamp stands in for the median time.
func (s Since) Reached(tip, committed Clock) bool {
	switch s.Metric {
	case MetricBlockNumber:
		if !s.Relative {
			return tip.Number >= s.Value
		}

		return tip.Number >= committed.Number &&
			tip.Number-committed.Number >= s.Value

	case MetricEpoch:
		target := ParseEpoch(s.Value).rat()
		if s.Relative {
			target.Add(target, committed.Epoch.rat())
		}

		return tip.Epoch.rat().Cmp(target) >= 0

	case MetricTimestamp:
		now := tip.Timestamp / 1000
		if !s.Relative {
			return now >= s.Value
		}

		start := committed.Timestamp / 1000

		return now >= start && now-start >= s.Value
	}

	return false
}
