// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keymgr

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/ckbwallet/cellwallet/netparams"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const (
	keySize   = 32
	nonceSize = 24
	saltSize  = 32

	// keystoreVersion is bumped whenever the serialized layout changes.
	keystoreVersion = 1
)

var (
	// ErrWrongPassphrase is returned when a passphrase doesn't unlock a
	// keystore.
	ErrWrongPassphrase = errors.New("wrong passphrase")

	// ErrKeystoreParams is returned when the creation parameters are
	// invalid.
	ErrKeystoreParams = errors.New("invalid keystore params")

	// ErrMalformedKeystore is returned when a serialized keystore can't
	// be decoded.
	ErrMalformedKeystore = errors.New("malformed keystore")

	// prng is the source of salts and nonces.
	prng io.Reader = rand.Reader
)

// ScryptOptions is used to hold the scrypt parameters needed when deriving
// the key protecting the root extended key.
type ScryptOptions struct {
	N, R, P int
}

var (
	// DefaultScryptOptions is the default options used with scrypt.
	DefaultScryptOptions = ScryptOptions{
		N: 262144, // 2^18
		R: 8,
		P: 1,
	}

	// FastScryptOptions are the scrypt options that should be used for
	// testing purposes only where speed is more important than security.
	FastScryptOptions = ScryptOptions{
		N: 16,
		R: 8,
		P: 1,
	}
)

// CreateMode determines how a new keystore is initialized.
type CreateMode uint8

const (
	// ModeUnknown indicates no specific creation mode.
	ModeUnknown CreateMode = iota

	// ModeGenSeed creates the keystore from a fresh random seed.
	ModeGenSeed

	// ModeImportSeed restores the keystore from CreateParams.Seed.
	ModeImportSeed

	// ModeImportExtKey creates the keystore from the extended private key
	// in CreateParams.RootKey.
	ModeImportExtKey
)

// CreateParams holds the one-time inputs needed to create a keystore.
type CreateParams struct {
	// Mode determines which fields below are required.
	Mode CreateMode

	// Seed is required for ModeImportSeed. Ignored for others.
	Seed []byte

	// RootKey is required for ModeImportExtKey. It must be private.
	RootKey *hdkeychain.ExtendedKey

	// Passphrase protects the root key at rest.
	Passphrase []byte

	// Scrypt overrides DefaultScryptOptions when set.
	Scrypt *ScryptOptions
}

// Keystore holds a wallet's root extended key encrypted under a passphrase,
// along with the account extended public key so that addresses can be
// derived without unlocking.
type Keystore struct {
	net *netparams.Params

	scrypt ScryptOptions
	salt   [saltSize]byte
	digest [sha256.Size]byte

	// sealedRoot is nonce || secretbox(serialized root key).
	sealedRoot []byte

	accountPub *hdkeychain.ExtendedKey
}

// NewKeystore creates a keystore according to the creation mode.
func NewKeystore(p CreateParams, net *netparams.Params) (*Keystore, error) {
	root, err := rootKeyFor(p, net)
	if err != nil {
		return nil, err
	}
	defer root.Zero()

	opts := DefaultScryptOptions
	if p.Scrypt != nil {
		opts = *p.Scrypt
	}

	ks := &Keystore{net: net, scrypt: opts}
	if _, err := io.ReadFull(prng, ks.salt[:]); err != nil {
		return nil, err
	}

	key, err := ks.deriveKey(p.Passphrase)
	if err != nil {
		return nil, err
	}
	defer zero(key[:])

	ks.digest = sha256.Sum256(key[:])

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(prng, nonce[:]); err != nil {
		return nil, err
	}
	serialized := []byte(root.String())
	ks.sealedRoot = secretbox.Seal(nonce[:], serialized, &nonce, key)
	zero(serialized)

	account, err := NewAccountKey(root)
	if err != nil {
		return nil, err
	}
	ks.accountPub, err = account.key.Neuter()
	if err != nil {
		return nil, err
	}

	log.Infof("Created %s keystore (mode=%d)", net.Name, p.Mode)

	return ks, nil
}

func rootKeyFor(p CreateParams,
	net *netparams.Params) (*hdkeychain.ExtendedKey, error) {

	switch p.Mode {
	case ModeGenSeed:
		seed, err := hdkeychain.GenerateSeed(
			hdkeychain.RecommendedSeedLen,
		)
		if err != nil {
			return nil, err
		}
		defer zero(seed)

		return hdkeychain.NewMaster(seed, net.HD)

	case ModeImportSeed:
		if len(p.Seed) == 0 {
			return nil, fmt.Errorf("%w: seed required",
				ErrKeystoreParams)
		}

		return hdkeychain.NewMaster(p.Seed, net.HD)

	case ModeImportExtKey:
		if p.RootKey == nil || !p.RootKey.IsPrivate() {
			return nil, fmt.Errorf("%w: private root key required",
				ErrKeystoreParams)
		}
		if !p.RootKey.IsForNet(net.HD) {
			return nil, fmt.Errorf("%w: root key for another "+
				"network", ErrKeystoreParams)
		}

		// Work on a copy so zeroing ours leaves the caller's intact.
		return hdkeychain.NewKeyFromString(p.RootKey.String())

	default:
		return nil, fmt.Errorf("%w: unknown mode %d", ErrKeystoreParams,
			p.Mode)
	}
}

func (k *Keystore) deriveKey(passphrase []byte) (*[keySize]byte, error) {
	derived, err := scrypt.Key(
		passphrase, k.salt[:], k.scrypt.N, k.scrypt.R, k.scrypt.P,
		keySize,
	)
	if err != nil {
		return nil, err
	}

	var key [keySize]byte
	copy(key[:], derived)
	zero(derived)

	return &key, nil
}

// Unlock decrypts and returns the root extended key. The caller should Zero
// the key once done with it.
func (k *Keystore) Unlock(passphrase []byte) (*hdkeychain.ExtendedKey,
	error) {

	key, err := k.deriveKey(passphrase)
	if err != nil {
		return nil, err
	}
	defer zero(key[:])

	digest := sha256.Sum256(key[:])
	if subtle.ConstantTimeCompare(digest[:], k.digest[:]) != 1 {
		log.Debugf("Keystore unlock rejected")
		return nil, ErrWrongPassphrase
	}

	if len(k.sealedRoot) < nonceSize {
		return nil, ErrMalformedKeystore
	}

	var nonce [nonceSize]byte
	copy(nonce[:], k.sealedRoot[:nonceSize])

	opened, ok := secretbox.Open(nil, k.sealedRoot[nonceSize:], &nonce, key)
	if !ok {
		return nil, fmt.Errorf("%w: unable to decrypt root key",
			ErrMalformedKeystore)
	}
	defer zero(opened)

	return hdkeychain.NewKeyFromString(string(opened))
}

// AccountKey returns the public account key used to derive addresses.
func (k *Keystore) AccountKey() *AccountKey {
	return &AccountKey{key: k.accountPub}
}

// Params returns the network the keystore was created for.
func (k *Keystore) Params() *netparams.Params {
	return k.net
}

type jsonKeystore struct {
	Version    int           `json:"version"`
	Network    string        `json:"network"`
	Scrypt     ScryptOptions `json:"scrypt"`
	Salt       string        `json:"salt"`
	Digest     string        `json:"digest"`
	SealedRoot string        `json:"sealed_root"`
	AccountPub string        `json:"account_xpub"`
}

// Marshal serializes the keystore. Nothing in the output is usable without
// the passphrase except the account public key.
func (k *Keystore) Marshal() ([]byte, error) {
	return json.MarshalIndent(jsonKeystore{
		Version:    keystoreVersion,
		Network:    k.net.Name,
		Scrypt:     k.scrypt,
		Salt:       hex.EncodeToString(k.salt[:]),
		Digest:     hex.EncodeToString(k.digest[:]),
		SealedRoot: hex.EncodeToString(k.sealedRoot),
		AccountPub: k.accountPub.String(),
	}, "", "  ")
}

// UnmarshalKeystore decodes a keystore serialized with Marshal.
func UnmarshalKeystore(b []byte) (*Keystore, error) {
	var j jsonKeystore
	if err := json.Unmarshal(b, &j); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedKeystore, err)
	}
	if j.Version != keystoreVersion {
		return nil, fmt.Errorf("%w: unsupported version %d",
			ErrMalformedKeystore, j.Version)
	}

	net, err := netparams.ForName(j.Network)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedKeystore, err)
	}

	ks := &Keystore{net: net, scrypt: j.Scrypt}
	if err := decodeFixed(ks.salt[:], j.Salt); err != nil {
		return nil, err
	}
	if err := decodeFixed(ks.digest[:], j.Digest); err != nil {
		return nil, err
	}

	ks.sealedRoot, err = hex.DecodeString(j.SealedRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedKeystore, err)
	}

	ks.accountPub, err = hdkeychain.NewKeyFromString(j.AccountPub)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedKeystore, err)
	}
	if ks.accountPub.IsPrivate() {
		return nil, fmt.Errorf("%w: account key must be public",
			ErrMalformedKeystore)
	}

	return ks, nil
}

func decodeFixed(dst []byte, s string) error {
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedKeystore, err)
	}
	if len(b) != len(dst) {
		return fmt.Errorf("%w: want %d bytes, got %d",
			ErrMalformedKeystore, len(dst), len(b))
	}
	copy(dst, b)

	return nil
}

// zero clears a byte slice holding key material.
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
