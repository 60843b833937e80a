// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package db persists what the wallet knows between runs: encrypted
// keystores, used addresses, live cells, block headers and asset accounts.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	// Registers the pure Go "sqlite" driver.
	_ "modernc.org/sqlite"
)

const (
	// busyTimeoutMs is how long SQLite retries to acquire a lock before
	// giving up with SQLITE_BUSY.
	busyTimeoutMs = 5000
)

// SQLiteStore is the SQLite implementation of the wallet's storage. It serves
// as the wallet's cell repository, address provider, asset account store and
// header oracle.
type SQLiteStore struct {
	db *sql.DB

	// mu guards books.
	mu sync.Mutex

	// books caches the address book of every wallet loaded so far.
	books map[string]*walletBook
}

// Open opens or creates the SQLite database at path and brings its schema up
// to date.
func Open(path string) (*SQLiteStore, error) {
	// Foreign keys are needed for the cascading deletes, WAL lets readers
	// run beside a writer, and immediate transactions avoid lock upgrade
	// deadlocks.
	dsn := fmt.Sprintf("%s?_pragma=foreign_keys=on"+
		"&_pragma=journal_mode=WAL&_pragma=busy_timeout=%d"+
		"&_txlock=immediate", path, busyTimeoutMs)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, newError(ErrDatabase, "open sqlite database", err)
	}

	if err := ApplySQLiteMigrations(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	log.Infof("Opened wallet database %s", path)

	return NewSQLiteStore(conn)
}

// NewSQLiteStore creates a store on top of a database whose migrations were
// already applied.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, ErrNilDB
	}

	return &SQLiteStore{
		db:    db,
		books: make(map[string]*walletBook),
	}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// execInTx runs fn inside a database transaction, committing when it returns
// nil and rolling back otherwise.
func execInTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return newError(ErrDatabase, "begin transaction", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Errorf("Unable to roll back transaction: %v", rbErr)
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		return newError(ErrDatabase, "commit transaction", err)
	}

	return nil
}
