// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package ckbhash implements the personalized blake2b hashing used for
// transaction hashes, script hashes, signing messages and blake160 key
// identifiers.
package ckbhash

import (
	"hash"

	"github.com/dchest/blake2b"
)

const (
	// Size is the length of a full hash in bytes.
	Size = 32

	// Blake160Size is the length of a truncated key or script identifier.
	Blake160Size = 20

	// personalization is mixed into every hash so that digests can't be
	// confused with plain blake2b output.
	personalization = "ckb-default-hash"
)

// New returns a streaming hasher producing 32 byte digests.
func New() hash.Hash {
	h, err := blake2b.New(&blake2b.Config{
		Size:   Size,
		Person: []byte(personalization),
	})
	if err != nil {
		// The config is static, so this can only fail on a programming
		// error.
		panic(err)
	}

	return h
}

// Blake2b256 returns the 32 byte digest of the concatenation of all the
// given byte slices.
func Blake2b256(data ...[]byte) [Size]byte {
	h := New()
	for _, d := range data {
		h.Write(d)
	}

	var out [Size]byte
	copy(out[:], h.Sum(nil))

	return out
}

// Blake160 returns the first 20 bytes of the digest of data. It identifies
// public keys inside lock script args.
func Blake160(data []byte) [Blake160Size]byte {
	full := Blake2b256(data)

	var out [Blake160Size]byte
	copy(out[:], full[:Blake160Size])

	return out
}
