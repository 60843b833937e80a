// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package db

import (
	"context"
	"database/sql"

	"github.com/ckbwallet/cellwallet/cell"
	"github.com/ckbwallet/cellwallet/pkg/ckbhash"
	"github.com/ckbwallet/cellwallet/wallet"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// A compile-time assertion to ensure SQLiteStore implements
// wallet.AssetAccountStore.
var _ wallet.AssetAccountStore = (*SQLiteStore)(nil)

// AddAssetAccount records an asset account of a wallet. Adding an account
// twice is a no-op.
func (s *SQLiteStore) AddAssetAccount(ctx context.Context, walletID string,
	account wallet.AssetAccount) error {

	token := []byte{}
	account.Token.WhenSome(func(h cell.Hash) {
		token = h[:]
	})

	return execInTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := requireWallet(ctx, tx, walletID); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO asset_accounts (wallet_id, token, blake160)
			VALUES (?, ?, ?)
			ON CONFLICT (wallet_id, token, blake160) DO NOTHING`,
			walletID, token, account.Blake160[:],
		)
		if err != nil {
			return newError(ErrDatabase, "insert asset account", err)
		}

		return nil
	})
}

// AssetAccounts implements wallet.AssetAccountStore.
func (s *SQLiteStore) AssetAccounts(ctx context.Context,
	walletID string) ([]wallet.AssetAccount, error) {

	rows, err := s.db.QueryContext(ctx, `
		SELECT token, blake160 FROM asset_accounts
		WHERE wallet_id = ? ORDER BY id`,
		walletID,
	)
	if err != nil {
		return nil, newError(ErrDatabase, "query asset accounts", err)
	}
	defer rows.Close()

	var accounts []wallet.AssetAccount
	for rows.Next() {
		var token, blake160 []byte
		if err := rows.Scan(&token, &blake160); err != nil {
			return nil, newError(ErrDatabase, "scan asset account",
				err)
		}

		account, err := decodeAssetAccount(token, blake160)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, newError(ErrDatabase, "iterate asset accounts", err)
	}

	return accounts, nil
}

func decodeAssetAccount(token, blake160 []byte) (wallet.AssetAccount,
	error) {

	var account wallet.AssetAccount
	if len(blake160) != ckbhash.Blake160Size {
		return account, newError(ErrCorruptRow,
			"asset account key hash has wrong size", nil)
	}
	copy(account.Blake160[:], blake160)

	switch len(token) {
	case 0:
		account.Token = fn.None[cell.Hash]()

	case len(cell.Hash{}):
		var h cell.Hash
		copy(h[:], token)
		account.Token = fn.Some(h)

	default:
		return account, newError(ErrCorruptRow,
			"asset account token has wrong size", nil)
	}

	return account, nil
}
