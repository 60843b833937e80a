// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package script builds and recognizes the lock and type scripts the wallet
// works with, and knows the shape of their arguments and witnesses.
package script

import (
	"errors"

	"github.com/ckbwallet/cellwallet/cell"
	"github.com/ckbwallet/cellwallet/netparams"
	"github.com/ckbwallet/cellwallet/pkg/ckbhash"
)

// SignatureSize is the size of a recoverable secp256k1 signature in r||s||v
// form.
const SignatureSize = 65

var (
	// ErrInvalidArgs is returned when script args don't have the layout
	// their script expects.
	ErrInvalidArgs = errors.New("invalid script args")

	// ErrUnsupportedLock is returned when the wallet can't produce a
	// witness for a lock.
	ErrUnsupportedLock = errors.New("unsupported lock script")
)

// Kind names a script the wallet understands.
type Kind uint8

const (
	// KindUnknown is any script the wallet doesn't recognize.
	KindUnknown Kind = iota

	// KindDefault is the single key secp256k1 blake160 lock.
	KindDefault

	// KindMultisig is the secp256k1 multisig lock, optionally with a
	// since time lock in its args.
	KindMultisig

	// KindAnyoneCanPay is the anyone-can-pay lock backing asset accounts.
	KindAnyoneCanPay

	// KindCheque is the cheque lock holding tokens until claimed.
	KindCheque

	// KindSUDT is the simple user defined token type script.
	KindSUDT

	// KindDAO is the nervos DAO type script.
	KindDAO
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindDefault:
		return "secp256k1_blake160"
	case KindMultisig:
		return "secp256k1_multisig"
	case KindAnyoneCanPay:
		return "anyone_can_pay"
	case KindCheque:
		return "cheque"
	case KindSUDT:
		return "sudt"
	case KindDAO:
		return "dao"
	default:
		return "unknown"
	}
}

// Classify tells which known script s runs. Scripts whose code matches but
// whose args have the wrong shape are reported as unknown.
func Classify(s *cell.Script, params *netparams.Params) Kind {
	if s == nil {
		return KindUnknown
	}

	switch {
	case params.Secp256k1.Matches(s):
		if len(s.Args) == ckbhash.Blake160Size {
			return KindDefault
		}

	case params.Multisig.Matches(s):
		if _, _, err := ParseMultisigArgs(s.Args); err == nil {
			return KindMultisig
		}

	case params.AnyoneCanPay.Matches(s):
		if _, err := ParseAcpArgs(s.Args); err == nil {
			return KindAnyoneCanPay
		}

	case params.Cheque.Matches(s):
		if _, err := ParseChequeArgs(s.Args); err == nil {
			return KindCheque
		}

	case params.SUDT.Matches(s):
		if len(s.Args) == ckbhash.Size {
			return KindSUDT
		}

	case params.DAO.Matches(s):
		return KindDAO
	}

	return KindUnknown
}

// DefaultLock returns the single key lock for a blake160 key hash.
func DefaultLock(blake160 [ckbhash.Blake160Size]byte,
	params *netparams.Params) cell.Script {

	return params.Secp256k1.Script(append([]byte{}, blake160[:]...))
}

// SUDTType returns the token type script issued by the owner lock hash.
func SUDTType(ownerLockHash cell.Hash, params *netparams.Params) cell.Script {
	return params.SUDT.Script(append([]byte{}, ownerLockHash[:]...))
}

// DAOType returns the DAO type script.
func DAOType(params *netparams.Params) cell.Script {
	return params.DAO.Script([]byte{})
}

// CellDepFor returns the cell dep needed to run a lock or type of the given
// kind.
func CellDepFor(kind Kind, params *netparams.Params) (cell.CellDep, bool) {
	switch kind {
	case KindDefault:
		return params.Secp256k1.CellDep, true
	case KindMultisig:
		return params.Multisig.CellDep, true
	case KindAnyoneCanPay:
		return params.AnyoneCanPay.CellDep, true
	case KindCheque:
		return params.Cheque.CellDep, true
	case KindSUDT:
		return params.SUDT.CellDep, true
	case KindDAO:
		return params.DAO.CellDep, true
	default:
		return cell.CellDep{}, false
	}
}

// WitnessPlaceholder returns the zeroed witness lock field a signature for
// a lock of the given kind will later replace. Multisig placeholders carry
// the serialized config in front of M empty signatures, so cfg must be set
// for them.
func WitnessPlaceholder(kind Kind, cfg *MultisigConfig) ([]byte, error) {
	switch kind {
	case KindDefault, KindAnyoneCanPay, KindCheque:
		return make([]byte, SignatureSize), nil

	case KindMultisig:
		if cfg == nil {
			return nil, ErrUnsupportedLock
		}
		serialized := cfg.Serialize()
		out := make([]byte, len(serialized)+
			SignatureSize*int(cfg.Threshold))
		copy(out, serialized)

		return out, nil

	default:
		return nil, ErrUnsupportedLock
	}
}
