// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package script

import (
	"fmt"

	"github.com/ckbwallet/cellwallet/cell"
	"github.com/ckbwallet/cellwallet/netparams"
	"github.com/ckbwallet/cellwallet/pkg/ckbhash"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// AcpArgs are the decoded args of an anyone-can-pay lock. The optional
// minimums are exponents: a payment must add at least 10^n shannons or
// token units.
type AcpArgs struct {
	Blake160       [ckbhash.Blake160Size]byte
	MinCKBExponent fn.Option[uint8]
	MinUDTExponent fn.Option[uint8]
}

// ParseAcpArgs decodes anyone-can-pay lock args.
func ParseAcpArgs(args []byte) (AcpArgs, error) {
	var a AcpArgs
	if len(args) < ckbhash.Blake160Size ||
		len(args) > ckbhash.Blake160Size+2 {

		return a, fmt.Errorf("%w: anyone-can-pay args of %d bytes",
			ErrInvalidArgs, len(args))
	}

	copy(a.Blake160[:], args)
	if len(args) > ckbhash.Blake160Size {
		a.MinCKBExponent = fn.Some(args[ckbhash.Blake160Size])
	}
	if len(args) > ckbhash.Blake160Size+1 {
		a.MinUDTExponent = fn.Some(args[ckbhash.Blake160Size+1])
	}

	return a, nil
}

// AnyoneCanPayLock returns the anyone-can-pay lock owned by a key hash, with
// no payment minimums.
func AnyoneCanPayLock(blake160 [ckbhash.Blake160Size]byte,
	params *netparams.Params) cell.Script {

	return params.AnyoneCanPay.Script(append([]byte{}, blake160[:]...))
}
