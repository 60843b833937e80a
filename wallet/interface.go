// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"errors"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/ckbwallet/cellwallet/cell"
	"github.com/ckbwallet/cellwallet/keymgr"
	"github.com/ckbwallet/cellwallet/pkg/ckbhash"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// ErrCellNotFound is returned by a CellRepository when an out point doesn't
// reference a live cell.
var ErrCellNotFound = errors.New("cell not found")

// CellRepository gives the wallet its view of live cells. The wallet never
// marks cells as spent; keeping cells that are already part of a pending
// transaction out of the candidates is the repository's job.
type CellRepository interface {
	// CandidateCells returns the live cells locked by any of the lock
	// hashes, in the order the repository learned about them. With no
	// type hash only cells without a type script are returned, otherwise
	// only cells whose type script hashes to it.
	CandidateCells(ctx context.Context, lockHashes []cell.Hash,
		typeHash fn.Option[cell.Hash]) ([]cell.Cell, error)

	// ResolveCell returns the live cell at an out point, or
	// ErrCellNotFound.
	ResolveCell(ctx context.Context, outPoint cell.OutPoint) (*cell.Cell,
		error)
}

// AddressProvider hands out a wallet's addresses and its master key.
type AddressProvider interface {
	// NextUnusedReceivingAddress returns the first receiving address no
	// transaction has touched yet.
	NextUnusedReceivingAddress(ctx context.Context,
		walletID string) (keymgr.AddressInfo, error)

	// NextUnusedChangeAddress returns the first change address no
	// transaction has touched yet.
	NextUnusedChangeAddress(ctx context.Context,
		walletID string) (keymgr.AddressInfo, error)

	// AllAddresses returns every derived address of the wallet,
	// receiving addresses first.
	AllAddresses(ctx context.Context,
		walletID string) ([]keymgr.AddressInfo, error)

	// MasterKey decrypts the wallet's root key. It returns
	// keymgr.ErrWrongPassphrase when the passphrase doesn't match.
	MasterKey(ctx context.Context, walletID string,
		passphrase []byte) (*hdkeychain.ExtendedKey, error)
}

// AssetAccount binds a token to one of the wallet's addresses. A token of
// None is the plain CKB account.
type AssetAccount struct {
	// Token is the sUDT type args, the lock hash of the issuer.
	Token fn.Option[cell.Hash]

	// Blake160 is the key hash of the account's anyone-can-pay lock.
	Blake160 [ckbhash.Blake160Size]byte
}

// AssetAccountStore lists the asset accounts a wallet already has.
type AssetAccountStore interface {
	// AssetAccounts returns the wallet's asset accounts.
	AssetAccounts(ctx context.Context, walletID string) ([]AssetAccount,
		error)
}
