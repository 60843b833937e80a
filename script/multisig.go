// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package script

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ckbwallet/cellwallet/cell"
	"github.com/ckbwallet/cellwallet/netparams"
	"github.com/ckbwallet/cellwallet/pkg/ckbhash"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// sinceSize is the length of the optional since suffix of multisig args.
const sinceSize = 8

// ErrInvalidMultisigConfig is returned for an impossible M-of-N setup.
var ErrInvalidMultisigConfig = errors.New("invalid multisig config")

// MultisigConfig describes an M-of-N multisig: which keys take part, how many
// signatures are needed, and how many of the first keys must always sign.
type MultisigConfig struct {
	RequireFirstN uint8
	Threshold     uint8
	PubKeyHashes  [][ckbhash.Blake160Size]byte
}

// NewSingleKeyConfig returns the 1-of-1 config used for time locked cells
// owned by a single key.
func NewSingleKeyConfig(blake160 [ckbhash.Blake160Size]byte) MultisigConfig {
	return MultisigConfig{
		Threshold:    1,
		PubKeyHashes: [][ckbhash.Blake160Size]byte{blake160},
	}
}

// Validate checks the config is satisfiable.
func (c *MultisigConfig) Validate() error {
	n := len(c.PubKeyHashes)
	switch {
	case n == 0 || n > 255:
		return fmt.Errorf("%w: %d keys", ErrInvalidMultisigConfig, n)
	case c.Threshold == 0 || int(c.Threshold) > n:
		return fmt.Errorf("%w: threshold %d of %d",
			ErrInvalidMultisigConfig, c.Threshold, n)
	case c.RequireFirstN > c.Threshold:
		return fmt.Errorf("%w: require first %d over threshold %d",
			ErrInvalidMultisigConfig, c.RequireFirstN, c.Threshold)
	}

	return nil
}

// Serialize returns S | R | M | N | blake160s, with the reserved S byte set
// to zero.
func (c *MultisigConfig) Serialize() []byte {
	out := make([]byte, 0, 4+len(c.PubKeyHashes)*ckbhash.Blake160Size)
	out = append(out, 0, c.RequireFirstN, c.Threshold,
		byte(len(c.PubKeyHashes)))
	for _, h := range c.PubKeyHashes {
		out = append(out, h[:]...)
	}

	return out
}

// Hash returns the blake160 of the serialized config, which is what the lock
// args commit to.
func (c *MultisigConfig) Hash() [ckbhash.Blake160Size]byte {
	return ckbhash.Blake160(c.Serialize())
}

// MultisigLock returns the multisig lock for a config, time locked until
// since when it is set.
func MultisigLock(cfg *MultisigConfig, since fn.Option[uint64],
	params *netparams.Params) cell.Script {

	hash := cfg.Hash()
	args := append([]byte{}, hash[:]...)
	since.WhenSome(func(s uint64) {
		args = binary.LittleEndian.AppendUint64(args, s)
	})

	return params.Multisig.Script(args)
}

// ParseMultisigArgs splits multisig args into the config hash and the
// optional since.
func ParseMultisigArgs(args []byte) ([ckbhash.Blake160Size]byte,
	fn.Option[uint64], error) {

	var hash [ckbhash.Blake160Size]byte

	switch len(args) {
	case ckbhash.Blake160Size:
		copy(hash[:], args)

		return hash, fn.None[uint64](), nil

	case ckbhash.Blake160Size + sinceSize:
		copy(hash[:], args)
		since := binary.LittleEndian.Uint64(args[ckbhash.Blake160Size:])

		return hash, fn.Some(since), nil

	default:
		return hash, fn.None[uint64](), fmt.Errorf(
			"%w: multisig args of %d bytes", ErrInvalidArgs,
			len(args))
	}
}
