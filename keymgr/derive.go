// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package keymgr manages a wallet's hierarchical deterministic keys: the
// passphrase protected root key, derivation of addresses along the
// receiving and change branches, and derivation of the private keys needed
// for signing.
package keymgr

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/ckbwallet/cellwallet/pkg/ckbhash"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// AddressInfo describes a derived address.
type AddressInfo struct {
	// Path is where the key sits below the wallet's account.
	Path Path

	// PublicKey is the compressed public key.
	PublicKey *btcec.PublicKey

	// Blake160 identifies the key inside lock args.
	Blake160 [ckbhash.Blake160Size]byte

	// Used is set once a transaction has touched the address.
	Used bool
}

// PathKey pairs a private key with the path it was derived from.
type PathKey struct {
	Path Path
	Key  *btcec.PrivateKey
}

// AccountKey is the extended key at m/44'/309'/0'. It may be public, in
// which case it can only derive addresses.
type AccountKey struct {
	key *hdkeychain.ExtendedKey
}

// NewAccountKey derives the account key from a root key.
func NewAccountKey(root *hdkeychain.ExtendedKey) (*AccountKey, error) {
	key := root
	for _, i := range []uint32{Purpose, CoinType, Account} {
		var err error
		key, err = key.Derive(hdkeychain.HardenedKeyStart + i)
		if err != nil {
			return nil, fmt.Errorf("derive account: %w", err)
		}
	}

	return &AccountKey{key: key}, nil
}

func (a *AccountKey) child(p Path) (*hdkeychain.ExtendedKey, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	branch, err := a.key.Derive(uint32(p.Branch))
	if err != nil {
		return nil, err
	}

	return branch.Derive(p.Index)
}

// DeriveAddress derives the address at p. It returns
// hdkeychain.ErrInvalidChild for the rare index that yields no valid key.
func (a *AccountKey) DeriveAddress(p Path) (AddressInfo, error) {
	child, err := a.child(p)
	if err != nil {
		return AddressInfo{}, err
	}

	pub, err := child.ECPubKey()
	if err != nil {
		return AddressInfo{}, err
	}

	return AddressInfo{
		Path:      p,
		PublicKey: pub,
		Blake160:  ckbhash.Blake160(pub.SerializeCompressed()),
	}, nil
}

// DerivePrivateKey derives the private key at p. The account key must be
// private.
func (a *AccountKey) DerivePrivateKey(p Path) (*btcec.PrivateKey, error) {
	child, err := a.child(p)
	if err != nil {
		return nil, err
	}

	return child.ECPrivKey()
}

// DerivePrivateKeys derives the private keys for the given paths from a root
// key. Duplicate paths are derived once and keys come back in the order
// their paths first appear.
func DerivePrivateKeys(root *hdkeychain.ExtendedKey,
	paths []Path) ([]PathKey, error) {

	for _, p := range paths {
		if err := p.validate(); err != nil {
			return nil, err
		}
	}

	account, err := NewAccountKey(root)
	if err != nil {
		return nil, err
	}

	seen := fn.NewSet[Path]()
	keys := make([]PathKey, 0, len(paths))
	for _, p := range paths {
		if seen.Contains(p) {
			continue
		}
		seen.Add(p)

		priv, err := account.DerivePrivateKey(p)
		if err != nil {
			return nil, fmt.Errorf("derive %v: %w", p, err)
		}
		keys = append(keys, PathKey{Path: p, Key: priv})
	}

	log.Debugf("Derived %d private keys for %d paths", len(keys),
		len(paths))

	return keys, nil
}
