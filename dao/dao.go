// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package dao

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/ckbwallet/cellwallet/cell"
	"github.com/ckbwallet/cellwallet/pkg/ckbunit"
)

const (
	// LockPeriodEpochs is the length of one deposit period. A withdrawal
	// can only finish at a whole number of periods after the deposit.
	LockPeriodEpochs = 180

	// DataSize is the size of a DAO cell's data.
	DataSize = 8

	// HeaderDaoSize is the size of the dao field of a block header.
	HeaderDaoSize = 32

	// arOffset is where the accumulated rate sits in the header dao field.
	arOffset = 8
)

var (
	// ErrInvalidDaoField is returned for a header dao field that isn't 32
	// bytes or holds a zero accumulated rate.
	ErrInvalidDaoField = errors.New("invalid header dao field")

	// ErrInvalidDaoData is returned for DAO cell data that isn't 8 bytes.
	ErrInvalidDaoData = errors.New("invalid dao cell data")

	// ErrNotWithdrawing is returned when a deposit cell is used where a
	// withdrawing cell is expected.
	ErrNotWithdrawing = errors.New("dao cell is not withdrawing")
)

// DepositData is the data of a freshly deposited DAO cell.
func DepositData() []byte {
	return make([]byte, DataSize)
}

// WithdrawingData is the data of a withdrawing cell: the block number its
// deposit was committed in.
func WithdrawingData(depositBlockNumber uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, depositBlockNumber)
}

// IsDeposit reports whether DAO cell data marks a deposit that hasn't
// started withdrawing.
func IsDeposit(data []byte) bool {
	if len(data) != DataSize {
		return false
	}

	return binary.LittleEndian.Uint64(data) == 0
}

// DepositBlockNumber returns the deposit block number recorded in a
// withdrawing cell.
func DepositBlockNumber(data []byte) (uint64, error) {
	if len(data) != DataSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrInvalidDaoData,
			len(data))
	}

	n := binary.LittleEndian.Uint64(data)
	if n == 0 {
		return 0, ErrNotWithdrawing
	}

	return n, nil
}

// ExtractAR returns the accumulated rate from a header dao field.
func ExtractAR(daoField []byte) (uint64, error) {
	if len(daoField) != HeaderDaoSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrInvalidDaoField,
			len(daoField))
	}

	ar := binary.LittleEndian.Uint64(daoField[arOffset:])
	if ar == 0 {
		return 0, fmt.Errorf("%w: zero accumulated rate",
			ErrInvalidDaoField)
	}

	return ar, nil
}

// MaximumWithdraw returns the capacity a deposit can be withdrawn with. Only
// the part of the cell's capacity not needed to store the cell itself earns
// interest:
//
//	(capacity - occupied) * AR_withdraw / AR_deposit + occupied
func MaximumWithdraw(output *cell.CellOutput, data []byte,
	depositDao, withdrawDao []byte) (ckbunit.Capacity, error) {

	depositAR, err := ExtractAR(depositDao)
	if err != nil {
		return 0, err
	}
	withdrawAR, err := ExtractAR(withdrawDao)
	if err != nil {
		return 0, err
	}

	occupied := output.OccupiedCapacity(data)
	counted, err := ckbunit.SubCapacity(output.Capacity, occupied)
	if err != nil {
		return 0, err
	}

	v := new(big.Int).SetUint64(uint64(counted))
	v.Mul(v, new(big.Int).SetUint64(withdrawAR))
	v.Div(v, new(big.Int).SetUint64(depositAR))
	if !v.IsUint64() {
		return 0, ckbunit.ErrCapacityOverflow
	}

	return ckbunit.AddCapacity(ckbunit.Capacity(v.Uint64()), occupied)
}

// MinimalWithdrawEpoch returns the earliest epoch a withdrawal can finish,
// given the epochs of the deposit and of the withdraw start. The time
// deposited is rounded up to a whole number of lock periods counted from the
// deposit.
func MinimalWithdrawEpoch(deposit, withdrawStart Epoch) Epoch {
	depositedEpochs := withdrawStart.Number - deposit.Number
	if withdrawStart.Index*deposit.Length >
		deposit.Index*withdrawStart.Length {

		depositedEpochs++
	}

	lockEpochs := (depositedEpochs + LockPeriodEpochs - 1) /
		LockPeriodEpochs * LockPeriodEpochs

	return Epoch{
		Number: deposit.Number + lockEpochs,
		Index:  deposit.Index,
		Length: deposit.Length,
	}
}

// MinimalWithdrawSince returns the since value the withdrawing input must
// carry to finish a withdrawal.
func MinimalWithdrawSince(deposit, withdrawStart Epoch) uint64 {
	return AbsoluteEpochSince(MinimalWithdrawEpoch(deposit, withdrawStart))
}
