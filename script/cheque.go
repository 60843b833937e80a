// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package script

import (
	"fmt"

	"github.com/ckbwallet/cellwallet/cell"
	"github.com/ckbwallet/cellwallet/netparams"
	"github.com/ckbwallet/cellwallet/pkg/ckbhash"
)

// ChequeArgs hold the lock hash prefixes of both parties of a cheque.
type ChequeArgs struct {
	ReceiverLockHashPrefix [ckbhash.Blake160Size]byte
	SenderLockHashPrefix   [ckbhash.Blake160Size]byte
}

// ParseChequeArgs decodes cheque lock args.
func ParseChequeArgs(args []byte) (ChequeArgs, error) {
	var c ChequeArgs
	if len(args) != 2*ckbhash.Blake160Size {
		return c, fmt.Errorf("%w: cheque args of %d bytes",
			ErrInvalidArgs, len(args))
	}

	copy(c.ReceiverLockHashPrefix[:], args[:ckbhash.Blake160Size])
	copy(c.SenderLockHashPrefix[:], args[ckbhash.Blake160Size:])

	return c, nil
}

// LockHashPrefix returns the part of a lock hash a cheque commits to.
func LockHashPrefix(lockHash cell.Hash) [ckbhash.Blake160Size]byte {
	var p [ckbhash.Blake160Size]byte
	copy(p[:], lockHash[:ckbhash.Blake160Size])

	return p
}

// ChequeLock returns the cheque lock between a receiver and a sender, both
// identified by the hash of their lock script.
func ChequeLock(receiverLockHash, senderLockHash cell.Hash,
	params *netparams.Params) cell.Script {

	args := make([]byte, 0, 2*ckbhash.Blake160Size)
	args = append(args, receiverLockHash[:ckbhash.Blake160Size]...)
	args = append(args, senderLockHash[:ckbhash.Blake160Size]...)

	return params.Cheque.Script(args)
}
