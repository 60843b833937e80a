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
	"strings"

	"github.com/ckbwallet/cellwallet/cell"
	"github.com/ckbwallet/cellwallet/pkg/ckbunit"
	"github.com/ckbwallet/cellwallet/wallet"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// A compile-time assertion to ensure SQLiteStore implements
// wallet.CellRepository.
var _ wallet.CellRepository = (*SQLiteStore)(nil)

// InsertCells records cells as live. Cells that are already known keep their
// place in the candidate order.
func (s *SQLiteStore) InsertCells(ctx context.Context,
	cells ...cell.Cell) error {

	return execInTx(ctx, s.db, func(tx *sql.Tx) error {
		for i := range cells {
			if err := insertCell(ctx, tx, &cells[i]); err != nil {
				return err
			}
		}

		return nil
	})
}

func insertCell(ctx context.Context, tx *sql.Tx, c *cell.Cell) error {
	capacity, err := uint64ToInt64(uint64(c.Output.Capacity))
	if err != nil {
		return err
	}

	number, err := uint64ToInt64(c.BlockNumber)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cell %v: %w", c.OutPoint, err)
	}

	var typeHash []byte
	if c.Output.Type != nil {
		h := c.Output.Type.Hash()
		typeHash = h[:]
	}
	lockHash := c.LockHash()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO live_cells (
			tx_hash, out_index, lock_hash, type_hash, capacity,
			block_number, cell_json
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tx_hash, out_index) DO NOTHING`,
		c.OutPoint.TxHash[:], int64(c.OutPoint.Index), lockHash[:],
		typeHash, capacity, number, string(raw),
	)
	if err != nil {
		return newError(ErrDatabase, "insert cell", err)
	}

	return nil
}

// SpendCells removes the cells at the given out points from the live set.
// Unknown out points are ignored.
func (s *SQLiteStore) SpendCells(ctx context.Context,
	outPoints ...cell.OutPoint) error {

	return execInTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, op := range outPoints {
			_, err := tx.ExecContext(ctx, `
				DELETE FROM live_cells
				WHERE tx_hash = ? AND out_index = ?`,
				op.TxHash[:], int64(op.Index),
			)
			if err != nil {
				return newError(ErrDatabase, "delete cell", err)
			}

			log.Tracef("Spent cell %v", op)
		}

		return nil
	})
}

// lockHashFilter returns the IN clause placeholders and arguments matching
// any of the lock hashes.
func lockHashFilter(lockHashes []cell.Hash) (string, []any) {
	args := make([]any, 0, len(lockHashes))
	for _, h := range lockHashes {
		args = append(args, h[:])
	}

	placeholders := strings.TrimSuffix(
		strings.Repeat("?, ", len(lockHashes)), ", ",
	)

	return "lock_hash IN (" + placeholders + ")", args
}

// CandidateCells implements wallet.CellRepository.
func (s *SQLiteStore) CandidateCells(ctx context.Context,
	lockHashes []cell.Hash,
	typeHash fn.Option[cell.Hash]) ([]cell.Cell, error) {

	if len(lockHashes) == 0 {
		return nil, nil
	}

	where, args := lockHashFilter(lockHashes)
	if typeHash.IsSome() {
		h := typeHash.UnwrapOr(cell.Hash{})
		where += " AND type_hash = ?"
		args = append(args, h[:])
	} else {
		where += " AND type_hash IS NULL"
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT cell_json FROM live_cells WHERE "+where+" ORDER BY id",
		args...,
	)
	if err != nil {
		return nil, newError(ErrDatabase, "query cells", err)
	}
	defer rows.Close()

	var cells []cell.Cell
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, newError(ErrDatabase, "scan cell", err)
		}

		c, err := decodeCell(raw)
		if err != nil {
			return nil, err
		}
		cells = append(cells, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, newError(ErrDatabase, "iterate cells", err)
	}

	return cells, nil
}

// ResolveCell implements wallet.CellRepository.
func (s *SQLiteStore) ResolveCell(ctx context.Context,
	outPoint cell.OutPoint) (*cell.Cell, error) {

	var raw string
	err := s.db.QueryRowContext(ctx, `
		SELECT cell_json FROM live_cells
		WHERE tx_hash = ? AND out_index = ?`,
		outPoint.TxHash[:], int64(outPoint.Index),
	).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("%w: %v", wallet.ErrCellNotFound,
			outPoint)

	case err != nil:
		return nil, newError(ErrDatabase, "query cell", err)
	}

	return decodeCell(raw)
}

// LiveCapacity returns the total capacity of the live cells locked by any of
// the lock hashes, typed or not.
func (s *SQLiteStore) LiveCapacity(ctx context.Context,
	lockHashes []cell.Hash) (ckbunit.Capacity, error) {

	if len(lockHashes) == 0 {
		return 0, nil
	}

	where, args := lockHashFilter(lockHashes)

	var total int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(capacity), 0) FROM live_cells WHERE "+
			where, args...,
	).Scan(&total)
	if err != nil {
		return 0, newError(ErrDatabase, "sum capacity", err)
	}

	capacity, err := int64ToUint64(total)
	if err != nil {
		return 0, err
	}

	return ckbunit.Capacity(capacity), nil
}

func decodeCell(raw string) (*cell.Cell, error) {
	var c cell.Cell
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, newError(ErrCorruptRow, "decode cell", err)
	}

	return &c, nil
}
