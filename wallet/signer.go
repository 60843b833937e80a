// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/ckbwallet/cellwallet/cell"
	"github.com/ckbwallet/cellwallet/keymgr"
	"github.com/ckbwallet/cellwallet/netparams"
	"github.com/ckbwallet/cellwallet/pkg/ckbhash"
	"github.com/ckbwallet/cellwallet/script"
)

// compactSigMagicOffset is added to the recovery id in the header byte of
// a compact signature for a compressed key.
const compactSigMagicOffset = 27 + 4

// lockGroup is the set of inputs sharing a lock, in input order.
type lockGroup struct {
	lock    *cell.Script
	indices []int
}

// groupInputs groups inputs by lock hash, in order of first appearance.
func groupInputs(inputs []cell.Cell) []lockGroup {
	var (
		groups []lockGroup
		byHash = make(map[cell.Hash]int)
	)
	for i := range inputs {
		lock := &inputs[i].Output.Lock

		h := lock.Hash()
		g, ok := byHash[h]
		if !ok {
			g = len(groups)
			byHash[h] = g
			groups = append(groups, lockGroup{lock: lock})
		}
		groups[g].indices = append(groups[g].indices, i)
	}

	return groups
}

// firstWitnessArgs decodes the witness opening a group. An empty witness
// decodes to empty args.
func firstWitnessArgs(raw []byte) (*cell.WitnessArgs, error) {
	if len(raw) == 0 {
		return &cell.WitnessArgs{}, nil
	}

	return cell.ParseWitnessArgs(raw)
}

// isAnyoneCanPayMode reports whether a group is unlocked without a
// signature: an anyone-can-pay lock whose witness carries no lock field.
func isAnyoneCanPayMode(kind script.Kind, w *cell.WitnessArgs) bool {
	return kind == script.KindAnyoneCanPay && w.Lock == nil
}

// signingMessage hashes what a group's signature commits to: the
// transaction hash, the group's witnesses with the first one holding the
// placeholder, and the witnesses past the inputs. Each witness is prefixed
// by its length as a little endian u64.
func signingMessage(txHash cell.Hash, tx *cell.Transaction, g lockGroup,
	first []byte) []byte {

	h := ckbhash.New()
	h.Write(txHash[:])

	write := func(w []byte) {
		h.Write(binary.LittleEndian.AppendUint64(nil, uint64(len(w))))
		h.Write(w)
	}

	write(first)
	for _, i := range g.indices[1:] {
		write(tx.Witnesses[i])
	}
	for _, w := range tx.Witnesses[len(tx.Inputs):] {
		write(w)
	}

	return h.Sum(nil)
}

// signRecoverable returns the 65 byte r|s|recid signature of msg.
func signRecoverable(key *btcec.PrivateKey, msg []byte) []byte {
	compact := ecdsa.SignCompact(key, msg, true)

	sig := make([]byte, 0, script.SignatureSize)
	sig = append(sig, compact[1:]...)

	return append(sig, compact[0]-compactSigMagicOffset)
}

// recoverSigner returns the public key that produced a 65 byte r|s|recid
// signature of msg.
func recoverSigner(sig, msg []byte) (*btcec.PublicKey, error) {
	if len(sig) != script.SignatureSize {
		return nil, fmt.Errorf("%w: %d byte signature",
			ErrInvalidSignature, len(sig))
	}

	compact := make([]byte, 0, script.SignatureSize)
	compact = append(compact, sig[64]+compactSigMagicOffset)
	compact = append(compact, sig[:64]...)

	pub, _, err := ecdsa.RecoverCompact(compact, msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	return pub, nil
}

// Sign signs every input group of atx that needs a signature with the key
// derived for its owning address. addresses must cover every such lock and
// keys every owning path; a lock without a key fails the whole transaction
// with ErrPrivateKeyNotFound and nothing is returned. atx is left untouched.
func Sign(atx *AuthoredTx, keys []keymgr.PathKey,
	addresses []keymgr.AddressInfo,
	params *netparams.Params) (*cell.Transaction, error) {

	if len(atx.InputCells) != len(atx.Tx.Inputs) ||
		len(atx.Tx.Witnesses) < len(atx.Tx.Inputs) {

		return nil, fmt.Errorf("%w: %d inputs, %d cells, %d witnesses",
			ErrUnbalancedTx, len(atx.Tx.Inputs), len(atx.InputCells),
			len(atx.Tx.Witnesses))
	}

	locks := newLockIndex(addresses, params)
	byPath := make(map[keymgr.Path]*btcec.PrivateKey, len(keys))
	for _, k := range keys {
		byPath[k.Path] = k.Key
	}

	tx := atx.Tx.Clone()
	txHash := tx.Hash()

	for _, g := range groupInputs(atx.InputCells) {
		first := g.indices[0]

		args, err := firstWitnessArgs(tx.Witnesses[first])
		if err != nil {
			return nil, fmt.Errorf("witness %d: %w", first, err)
		}

		kind := script.Classify(g.lock, params)
		if isAnyoneCanPayMode(kind, args) {
			log.Debugf("Input %d unlocks in anyone-can-pay mode",
				first)

			continue
		}

		owner, err := locks.owner(g.lock)
		if err != nil {
			return nil, err
		}

		key, ok := byPath[owner.address.Path]
		if !ok {
			return nil, fmt.Errorf("%w: path %v for lock %v",
				ErrPrivateKeyNotFound, owner.address.Path,
				g.lock.Hash())
		}

		placeholder, err := script.WitnessPlaceholder(
			owner.kind, owner.multisig,
		)
		if err != nil {
			return nil, err
		}
		args.Lock = placeholder

		msg := signingMessage(txHash, tx, g, args.Serialize())
		sig := signRecoverable(key, msg)

		// Multisig placeholders lead with the config, the signature
		// goes right after it.
		lock := bytes.Clone(placeholder)
		copy(lock[len(lock)-script.SignatureSize:], sig)
		args.Lock = lock

		tx.Witnesses[first] = args.Serialize()

		log.Debugf("Signed %d inputs of %v lock with key %v",
			len(g.indices), owner.kind, owner.address.Path)
	}

	log.Tracef("Signed transaction %v: %v", txHash, spewTx(tx))

	return tx, nil
}

// SignTransaction derives the keys atx needs from the wallet's master key
// and signs it. A wrong passphrase fails with keymgr.ErrWrongPassphrase.
func (w *Wallet) SignTransaction(ctx context.Context, walletID string,
	atx *AuthoredTx, passphrase []byte) (*cell.Transaction, error) {

	if atx == nil {
		return nil, ErrNilIntent
	}

	view, err := w.loadView(ctx, walletID)
	if err != nil {
		return nil, err
	}

	paths, err := signingPaths(atx, view.locks, w.cfg.Params)
	if err != nil {
		return nil, err
	}

	root, err := w.cfg.Addresses.MasterKey(ctx, walletID, passphrase)
	if err != nil {
		return nil, err
	}
	defer root.Zero()

	keys, err := keymgr.DerivePrivateKeys(root, paths)
	if err != nil {
		return nil, err
	}

	return Sign(atx, keys, view.addresses, w.cfg.Params)
}

// signingPaths lists the derivation path of every group that needs a
// signature.
func signingPaths(atx *AuthoredTx, locks *lockIndex,
	params *netparams.Params) ([]keymgr.Path, error) {

	var paths []keymgr.Path
	for _, g := range groupInputs(atx.InputCells) {
		first := g.indices[0]
		if first >= len(atx.Tx.Witnesses) {
			return nil, fmt.Errorf("%w: no witness for input %d",
				ErrUnbalancedTx, first)
		}

		args, err := firstWitnessArgs(atx.Tx.Witnesses[first])
		if err != nil {
			return nil, err
		}

		if isAnyoneCanPayMode(script.Classify(g.lock, params), args) {
			continue
		}

		owner, err := locks.owner(g.lock)
		if err != nil {
			return nil, err
		}
		paths = append(paths, owner.address.Path)
	}

	return paths, nil
}

// VerifyWitnesses checks that every signed group of tx carries a signature
// from a key its lock accepts. inputs are the cells tx spends.
func VerifyWitnesses(tx *cell.Transaction, inputs []cell.Cell,
	params *netparams.Params) error {

	if len(inputs) != len(tx.Inputs) || len(tx.Witnesses) < len(tx.Inputs) {
		return fmt.Errorf("%w: %d inputs, %d cells, %d witnesses",
			ErrInvalidSignature, len(tx.Inputs), len(inputs),
			len(tx.Witnesses))
	}

	txHash := tx.Hash()
	for _, g := range groupInputs(inputs) {
		first := g.indices[0]

		args, err := firstWitnessArgs(tx.Witnesses[first])
		if err != nil {
			return fmt.Errorf("witness %d: %w", first, err)
		}

		kind := script.Classify(g.lock, params)
		if isAnyoneCanPayMode(kind, args) {
			continue
		}

		if len(args.Lock) < script.SignatureSize {
			return fmt.Errorf("%w: input %d has no signature",
				ErrInvalidSignature, first)
		}

		split := len(args.Lock) - script.SignatureSize
		sig := args.Lock[split:]

		signed := *args
		signed.Lock = make([]byte, len(args.Lock))
		copy(signed.Lock, args.Lock[:split])

		msg := signingMessage(txHash, tx, g, signed.Serialize())
		pub, err := recoverSigner(sig, msg)
		if err != nil {
			return fmt.Errorf("input %d: %w", first, err)
		}

		signer := ckbhash.Blake160(pub.SerializeCompressed())
		if !lockAccepts(kind, g.lock, args.Lock[:split], signer, params) {
			return fmt.Errorf("%w: input %d signed by %x",
				ErrInvalidSignature, first, signer)
		}
	}

	return nil
}

// lockAccepts reports whether a signature from the key hash signer unlocks
// lock. config is what precedes the signature in the witness lock.
func lockAccepts(kind script.Kind, lock *cell.Script, config []byte,
	signer [ckbhash.Blake160Size]byte, params *netparams.Params) bool {

	switch kind {
	case script.KindDefault:
		return bytes.Equal(lock.Args, signer[:])

	case script.KindAnyoneCanPay:
		args, err := script.ParseAcpArgs(lock.Args)
		return err == nil && args.Blake160 == signer

	case script.KindCheque:
		args, err := script.ParseChequeArgs(lock.Args)
		if err != nil {
			return false
		}

		defaultLock := script.DefaultLock(signer, params)
		prefix := script.LockHashPrefix(defaultLock.Hash())

		return prefix == args.ReceiverLockHashPrefix ||
			prefix == args.SenderLockHashPrefix

	case script.KindMultisig:
		hash, _, err := script.ParseMultisigArgs(lock.Args)
		if err != nil || ckbhash.Blake160(config) != hash {
			return false
		}

		// The config lists the key hashes after its 4 byte header.
		for i := 4; i+ckbhash.Blake160Size <= len(config); i +=
			ckbhash.Blake160Size {

			if bytes.Equal(config[i:i+ckbhash.Blake160Size],
				signer[:]) {

				return true
			}
		}

		return false

	case script.KindSUDT, script.KindDAO, script.KindUnknown:
		return false
	}

	return false
}
