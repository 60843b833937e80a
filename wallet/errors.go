// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"errors"
	"fmt"

	"github.com/ckbwallet/cellwallet/pkg/ckbunit"
)

var (
	// ErrNilIntent is returned when a nil intent is passed to one of the
	// Create methods.
	ErrNilIntent = errors.New("nil intent")

	// ErrInvalidIntent is returned when an intent is missing a required
	// field or carries contradictory ones.
	ErrInvalidIntent = errors.New("invalid intent")

	// ErrNoTxOutputs is returned when a transfer has no outputs.
	ErrNoTxOutputs = errors.New("transaction has no outputs")

	// ErrDuplicatedOutPoint is returned when the same cell is referenced
	// twice by an intent.
	ErrDuplicatedOutPoint = errors.New("duplicated out point")

	// ErrCapacityTooSmall is returned when an output carries less
	// capacity than it occupies.
	ErrCapacityTooSmall = errors.New("output capacity below occupied " +
		"capacity")

	// ErrCapacityNotEnough is returned when the candidate cells run out
	// before the outputs and the fee are covered.
	ErrCapacityNotEnough = errors.New("capacity not enough")

	// ErrCapacityNotEnoughForChange is returned when the outputs and fee
	// are covered but what is left can't fill a change cell. Sending the
	// whole balance instead avoids it.
	ErrCapacityNotEnoughForChange = errors.New("capacity not enough for " +
		"change")

	// ErrUDTAmountNotEnough is returned when the token cells of an
	// account hold less than the amount being sent.
	ErrUDTAmountNotEnough = errors.New("token amount not enough")

	// ErrTargetOutputNotFound is returned when an anyone-can-pay transfer
	// finds no live cell of the receiving account to top up.
	ErrTargetOutputNotFound = errors.New("target anyone-can-pay cell " +
		"not found")

	// ErrAcpSendSameAccount is returned when an anyone-can-pay transfer
	// would send from an account to itself.
	ErrAcpSendSameAccount = errors.New("sender and receiver are the " +
		"same asset account")

	// ErrNoAvailableAddress is returned when every receiving address is
	// already bound to an account for the token.
	ErrNoAvailableAddress = errors.New("no receiving address available " +
		"for a new asset account")

	// ErrChequeConsumed is returned when the cheque cell is no longer
	// live.
	ErrChequeConsumed = errors.New("cheque already consumed")

	// ErrChequeNotLive is returned when the cheque cell hasn't been
	// committed in a block yet.
	ErrChequeNotLive = errors.New("cheque not committed yet")

	// ErrNotChequeReceiver is returned when none of the wallet's
	// addresses may claim the cheque.
	ErrNotChequeReceiver = errors.New("wallet is not the cheque receiver")

	// ErrNotChequeSender is returned when none of the wallet's addresses
	// issued the cheque.
	ErrNotChequeSender = errors.New("wallet is not the cheque sender")

	// ErrChequeNotYetWithdrawable is returned when the sender tries to
	// take back a cheque before its claim period ran out.
	ErrChequeNotYetWithdrawable = errors.New("cheque can't be withdrawn " +
		"yet")

	// ErrNotMultisigTimelock is returned when the cell to unlock isn't
	// a time locked multisig cell owned by the wallet.
	ErrNotMultisigTimelock = errors.New("not a multisig time locked cell")

	// ErrTimelockNotReached is returned when a time locked cell is spent
	// before its since is satisfied.
	ErrTimelockNotReached = errors.New("time lock not reached")

	// ErrNotDaoDeposit is returned when the cell to withdraw isn't a DAO
	// deposit.
	ErrNotDaoDeposit = errors.New("not a DAO deposit cell")

	// ErrNotDaoWithdrawing is returned when the cell to unlock isn't a
	// DAO cell in its withdrawing phase.
	ErrNotDaoWithdrawing = errors.New("not a withdrawing DAO cell")

	// ErrUnbalancedTx is returned when the input capacity doesn't match
	// the outputs plus the fee. It indicates a bug.
	ErrUnbalancedTx = errors.New("inputs don't match outputs plus fee")

	// ErrPrivateKeyNotFound is returned when no derived key can sign for
	// one of the transaction's locks.
	ErrPrivateKeyNotFound = errors.New("private key not found")

	// ErrInvalidSignature is returned when a witness doesn't carry a
	// valid signature for its lock.
	ErrInvalidSignature = errors.New("invalid signature")
)

// CapacityNotEnoughError reports how far the candidate cells fell short.
// It matches ErrCapacityNotEnough, or ErrCapacityNotEnoughForChange when the
// outputs were covered but the change wasn't.
type CapacityNotEnoughError struct {
	// Required is the capacity the selection needed.
	Required ckbunit.Capacity

	// Available is the capacity the candidates added up to.
	Available ckbunit.Capacity

	// ForChange is set when only the change was short.
	ForChange bool
}

// Error implements the error interface.
func (e *CapacityNotEnoughError) Error() string {
	if e.ForChange {
		return fmt.Sprintf("%v: need %v, have %v",
			ErrCapacityNotEnoughForChange, e.Required, e.Available)
	}

	return fmt.Sprintf("%v: need %v, have %v", ErrCapacityNotEnough,
		e.Required, e.Available)
}

// Is lets errors.Is match the error against its sentinel.
func (e *CapacityNotEnoughError) Is(target error) bool {
	if e.ForChange {
		return target == ErrCapacityNotEnoughForChange
	}

	return target == ErrCapacityNotEnough
}
