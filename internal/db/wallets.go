// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/ckbwallet/cellwallet/cell"
	"github.com/ckbwallet/cellwallet/keymgr"
	"github.com/ckbwallet/cellwallet/pkg/ckbhash"
	"github.com/ckbwallet/cellwallet/wallet"
)

// A compile-time assertion to ensure SQLiteStore implements
// wallet.AddressProvider.
var _ wallet.AddressProvider = (*SQLiteStore)(nil)

// walletBook is a loaded wallet: its keystore and the address book derived
// from it.
type walletBook struct {
	keystore *keymgr.Keystore
	book     *keymgr.AddressBook
}

// CreateWallet stores a new keystore under id. The wallet's address book is
// derived with the given gap limits.
func (s *SQLiteStore) CreateWallet(ctx context.Context, id string,
	ks *keymgr.Keystore, receivingWindow, changeWindow uint32) error {

	raw, err := ks.Marshal()
	if err != nil {
		return fmt.Errorf("encode keystore: %w", err)
	}

	err = execInTx(ctx, s.db, func(tx *sql.Tx) error {
		err := requireWallet(ctx, tx, id)
		switch {
		case err == nil:
			return fmt.Errorf("%w: %s", ErrWalletExists, id)

		case !errors.Is(err, ErrWalletNotFound):
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO wallets (
				id, keystore, receiving_window, change_window,
				created_at
			) VALUES (?, ?, ?, ?, ?)`,
			id, raw, int64(receivingWindow), int64(changeWindow),
			time.Now().Unix(),
		)
		if err != nil {
			return newError(ErrDatabase, "insert wallet", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	log.Infof("Created wallet %s", id)

	return nil
}

// requireWallet returns ErrWalletNotFound unless a wallet is stored under id.
func requireWallet(ctx context.Context, tx *sql.Tx, id string) error {
	var one int
	err := tx.QueryRowContext(ctx,
		"SELECT 1 FROM wallets WHERE id = ?", id,
	).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%w: %s", ErrWalletNotFound, id)

	case err != nil:
		return newError(ErrDatabase, "query wallet", err)
	}

	return nil
}

// WalletIDs returns the ids of all stored wallets, oldest first.
func (s *SQLiteStore) WalletIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM wallets ORDER BY created_at, id",
	)
	if err != nil {
		return nil, newError(ErrDatabase, "query wallets", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, newError(ErrDatabase, "scan wallet", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, newError(ErrDatabase, "iterate wallets", err)
	}

	return ids, nil
}

// Keystore returns the encrypted keystore of a wallet.
func (s *SQLiteStore) Keystore(ctx context.Context,
	id string) (*keymgr.Keystore, error) {

	w, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	return w.keystore, nil
}

// load returns the cached wallet or reads it from the database, replaying
// the used addresses into a fresh address book.
func (s *SQLiteStore) load(ctx context.Context, id string) (*walletBook,
	error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	if w, ok := s.books[id]; ok {
		return w, nil
	}

	var (
		raw                    []byte
		receiving, changeWidth int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT keystore, receiving_window, change_window
		FROM wallets WHERE id = ?`,
		id,
	).Scan(&raw, &receiving, &changeWidth)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("%w: %s", ErrWalletNotFound, id)

	case err != nil:
		return nil, newError(ErrDatabase, "query wallet", err)
	}

	ks, err := keymgr.UnmarshalKeystore(raw)
	if err != nil {
		return nil, newError(ErrCorruptRow, "decode keystore", err)
	}

	receivingWindow, err := int64ToUint32(receiving)
	if err != nil {
		return nil, err
	}
	changeWindow, err := int64ToUint32(changeWidth)
	if err != nil {
		return nil, err
	}

	book, err := keymgr.NewAddressBook(
		ks.AccountKey(), receivingWindow, changeWindow,
	)
	if err != nil {
		return nil, err
	}

	used, err := s.usedAddresses(ctx, id)
	if err != nil {
		return nil, err
	}

	// Replaying in the order the addresses were used keeps each one
	// inside the window it was found in.
	for _, blake160 := range used {
		if _, err := book.MarkUsed(blake160); err != nil {
			return nil, err
		}
	}

	w := &walletBook{keystore: ks, book: book}
	s.books[id] = w

	log.Debugf("Loaded wallet %s with %d used addresses", id, len(used))

	return w, nil
}

func (s *SQLiteStore) usedAddresses(ctx context.Context,
	id string) ([][ckbhash.Blake160Size]byte, error) {

	rows, err := s.db.QueryContext(ctx, `
		SELECT blake160 FROM used_addresses
		WHERE wallet_id = ? ORDER BY rowid`,
		id,
	)
	if err != nil {
		return nil, newError(ErrDatabase, "query used addresses", err)
	}
	defer rows.Close()

	var used [][ckbhash.Blake160Size]byte
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, newError(ErrDatabase, "scan used address",
				err)
		}
		if len(raw) != ckbhash.Blake160Size {
			return nil, newError(ErrCorruptRow,
				"used address has wrong size", nil)
		}

		var blake160 [ckbhash.Blake160Size]byte
		copy(blake160[:], raw)
		used = append(used, blake160)
	}
	if err := rows.Err(); err != nil {
		return nil, newError(ErrDatabase, "iterate used addresses",
			err)
	}

	return used, nil
}

// MarkCellsUsed marks every wallet address whose key hash leads the lock args
// of one of the cells as used. Default and anyone-can-pay locks carry the key
// hash there. It returns the number of addresses newly marked.
func (s *SQLiteStore) MarkCellsUsed(ctx context.Context, id string,
	cells []cell.Cell) (int, error) {

	w, err := s.load(ctx, id)
	if err != nil {
		return 0, err
	}

	var fresh [][ckbhash.Blake160Size]byte
	for i := range cells {
		args := cells[i].Output.Lock.Args
		if len(args) < ckbhash.Blake160Size {
			continue
		}

		var blake160 [ckbhash.Blake160Size]byte
		copy(blake160[:], args)

		info, ok := w.book.Lookup(blake160)
		if !ok || info.Used {
			continue
		}

		if _, err := w.book.MarkUsed(blake160); err != nil {
			s.evict(id)
			return 0, err
		}
		fresh = append(fresh, blake160)
	}

	if len(fresh) == 0 {
		return 0, nil
	}

	err = execInTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, blake160 := range fresh {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO used_addresses (wallet_id, blake160)
				VALUES (?, ?)
				ON CONFLICT (wallet_id, blake160) DO NOTHING`,
				id, blake160[:],
			)
			if err != nil {
				return newError(ErrDatabase,
					"insert used address", err)
			}
		}

		return nil
	})
	if err != nil {
		s.evict(id)
		return 0, err
	}

	return len(fresh), nil
}

// evict drops a wallet from the cache so the next load rebuilds its address
// book from the database.
func (s *SQLiteStore) evict(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.books, id)
}

// NextUnusedReceivingAddress implements wallet.AddressProvider.
func (s *SQLiteStore) NextUnusedReceivingAddress(ctx context.Context,
	walletID string) (keymgr.AddressInfo, error) {

	w, err := s.load(ctx, walletID)
	if err != nil {
		return keymgr.AddressInfo{}, err
	}

	return w.book.NextUnused(keymgr.BranchReceiving)
}

// NextUnusedChangeAddress implements wallet.AddressProvider.
func (s *SQLiteStore) NextUnusedChangeAddress(ctx context.Context,
	walletID string) (keymgr.AddressInfo, error) {

	w, err := s.load(ctx, walletID)
	if err != nil {
		return keymgr.AddressInfo{}, err
	}

	return w.book.NextUnused(keymgr.BranchChange)
}

// AllAddresses implements wallet.AddressProvider.
func (s *SQLiteStore) AllAddresses(ctx context.Context,
	walletID string) ([]keymgr.AddressInfo, error) {

	w, err := s.load(ctx, walletID)
	if err != nil {
		return nil, err
	}

	return w.book.All(), nil
}

// MasterKey implements wallet.AddressProvider.
func (s *SQLiteStore) MasterKey(ctx context.Context, walletID string,
	passphrase []byte) (*hdkeychain.ExtendedKey, error) {

	w, err := s.load(ctx, walletID)
	if err != nil {
		return nil, err
	}

	return w.keystore.Unlock(passphrase)
}
