// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ckbwallet/cellwallet/cell"
	"github.com/ckbwallet/cellwallet/chain"
)

// A compile-time assertion to ensure SQLiteStore implements chain.Oracle.
var _ chain.Oracle = (*SQLiteStore)(nil)

// PutHeaders stores block headers. A header replaces any stored header with
// the same hash or height, so feeding the headers of a reorg's new branch
// overwrites the stale ones.
func (s *SQLiteStore) PutHeaders(ctx context.Context,
	headers ...*chain.Header) error {

	return execInTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, h := range headers {
			number, err := uint64ToInt64(h.Number)
			if err != nil {
				return err
			}

			raw, err := json.Marshal(h)
			if err != nil {
				return fmt.Errorf("encode header %v: %w", h.Hash,
					err)
			}

			_, err = tx.ExecContext(ctx, `
				DELETE FROM headers
				WHERE hash = ? OR number = ?`,
				h.Hash[:], number,
			)
			if err != nil {
				return newError(ErrDatabase, "replace header",
					err)
			}

			_, err = tx.ExecContext(ctx, `
				INSERT INTO headers (hash, number, header_json)
				VALUES (?, ?, ?)`,
				h.Hash[:], number, string(raw),
			)
			if err != nil {
				return newError(ErrDatabase, "insert header", err)
			}
		}

		return nil
	})
}

// queryHeader runs a query selecting a single header_json column.
func (s *SQLiteStore) queryHeader(ctx context.Context, what string,
	query string, args ...any) (*chain.Header, error) {

	var raw string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("%w: %s", chain.ErrHeaderNotFound, what)

	case err != nil:
		return nil, newError(ErrDatabase, "query header", err)
	}

	var h chain.Header
	if err := json.Unmarshal([]byte(raw), &h); err != nil {
		return nil, newError(ErrCorruptRow, "decode header", err)
	}

	return &h, nil
}

// TipHeader implements chain.Oracle.
func (s *SQLiteStore) TipHeader(ctx context.Context) (*chain.Header, error) {
	return s.queryHeader(ctx, "no tip", `
		SELECT header_json FROM headers
		ORDER BY number DESC LIMIT 1`,
	)
}

// HeaderByHash implements chain.Oracle.
func (s *SQLiteStore) HeaderByHash(ctx context.Context,
	hash cell.Hash) (*chain.Header, error) {

	return s.queryHeader(ctx, hash.String(), `
		SELECT header_json FROM headers WHERE hash = ?`,
		hash[:],
	)
}

// HeaderByNumber implements chain.Oracle.
func (s *SQLiteStore) HeaderByNumber(ctx context.Context,
	number uint64) (*chain.Header, error) {

	n, err := uint64ToInt64(number)
	if err != nil {
		return nil, err
	}

	return s.queryHeader(ctx, fmt.Sprintf("height %d", number), `
		SELECT header_json FROM headers WHERE number = ?`,
		n,
	)
}
