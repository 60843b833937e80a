// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"errors"
	"fmt"

	"github.com/ckbwallet/cellwallet/cell"
	"github.com/ckbwallet/cellwallet/pkg/ckbunit"
	"github.com/ckbwallet/cellwallet/script"
)

var (
	// ErrFeeRateTooLarge is returned when a fee rate is above the
	// wallet's maximum.
	ErrFeeRateTooLarge = errors.New("fee rate too large")

	// DefaultMaxFeeRate is the highest fee rate accepted unless the
	// config says otherwise, a thousand times the usual minimum.
	DefaultMaxFeeRate = ckbunit.NewFeeRate(1_000_000)
)

// FeePolicy decides the fee of a transaction. It is a sealed interface, the
// only implementations are FeeRatePolicy and ExactFeePolicy.
type FeePolicy interface {
	// isFeePolicy is a marker method to restrict implementations to
	// this package.
	isFeePolicy()

	// feeFor returns the fee tx must pay. tx must carry witnesses as
	// large as the ones it will be signed with.
	feeFor(tx *cell.Transaction) ckbunit.Capacity

	// validate checks the policy against the wallet's fee rate cap.
	validate(maxFeeRate ckbunit.FeeRate) error
}

// FeeRatePolicy pays a fee proportional to the transaction size.
type FeeRatePolicy struct {
	Rate ckbunit.FeeRate
}

// ExactFeePolicy pays a fixed fee whatever the transaction size.
type ExactFeePolicy struct {
	Fee ckbunit.Capacity
}

// A compile-time assertion to ensure FeeRatePolicy implements FeePolicy.
var _ FeePolicy = (*FeeRatePolicy)(nil)

// A compile-time assertion to ensure ExactFeePolicy implements FeePolicy.
var _ FeePolicy = (*ExactFeePolicy)(nil)

// isFeePolicy implements the sealed FeePolicy interface.
func (*FeeRatePolicy) isFeePolicy() {}

// isFeePolicy implements the sealed FeePolicy interface.
func (*ExactFeePolicy) isFeePolicy() {}

func (p *FeeRatePolicy) feeFor(tx *cell.Transaction) ckbunit.Capacity {
	return EstimateFee(tx.SerializedSize(), p.Rate)
}

func (p *ExactFeePolicy) feeFor(*cell.Transaction) ckbunit.Capacity {
	return p.Fee
}

func (p *FeeRatePolicy) validate(maxFeeRate ckbunit.FeeRate) error {
	if p.Rate.GreaterThan(maxFeeRate) {
		return fmt.Errorf("%w: %v, max %v", ErrFeeRateTooLarge, p.Rate,
			maxFeeRate)
	}

	return nil
}

func (*ExactFeePolicy) validate(ckbunit.FeeRate) error {
	return nil
}

// NewFeePolicy picks the policy for a caller that may set an explicit fee,
// a fee rate, or neither. A non-zero rate wins over an explicit fee, and
// with neither the default rate is used.
func NewFeePolicy(fee ckbunit.Capacity, rate ckbunit.FeeRate) FeePolicy {
	switch {
	case !rate.IsZero():
		return &FeeRatePolicy{Rate: rate}

	case fee != 0:
		return &ExactFeePolicy{Fee: fee}

	default:
		return &FeeRatePolicy{Rate: ckbunit.DefaultFeeRate}
	}
}

// EstimateFee returns the fee for a transaction of the given size, rounded
// up so it never falls short of the rate.
func EstimateFee(size ckbunit.ByteSize, rate ckbunit.FeeRate) ckbunit.Capacity {
	return rate.FeeForSizeRoundUp(size)
}

// EstimateSize returns the size tx will have once pendingWitnessCount more
// single signature witnesses are appended to it.
func EstimateSize(tx *cell.Transaction,
	pendingWitnessCount int) ckbunit.ByteSize {

	if pendingWitnessCount <= 0 {
		return tx.SerializedSize()
	}

	witness := (&cell.WitnessArgs{
		Lock: make([]byte, script.SignatureSize),
	}).Serialize()

	sized := tx.Clone()
	for range pendingWitnessCount {
		sized.Witnesses = append(sized.Witnesses, witness)
	}

	return sized.SerializedSize()
}

// feePolicyOrDefault returns p, or the default fee rate when p is nil.
func (w *Wallet) feePolicyOrDefault(p FeePolicy) (FeePolicy, error) {
	if p == nil {
		p = &FeeRatePolicy{Rate: ckbunit.DefaultFeeRate}
	}

	if err := p.validate(w.cfg.MaxFeeRate); err != nil {
		return nil, err
	}

	return p, nil
}
