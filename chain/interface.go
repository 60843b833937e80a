// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chain defines what the wallet needs to know about the chain: block
// headers, the tip, and the capacity a DAO deposit can be withdrawn with.
package chain

import (
	"context"
	"errors"

	"github.com/ckbwallet/cellwallet/cell"
	"github.com/ckbwallet/cellwallet/dao"
	"github.com/ckbwallet/cellwallet/pkg/ckbunit"
)

// ErrHeaderNotFound is returned when the oracle doesn't know a header.
var ErrHeaderNotFound = errors.New("header not found")

// Header is the part of a block header the wallet uses.
type Header struct {
	Hash      cell.Hash
	Number    uint64
	Epoch     dao.Epoch
	Timestamp uint64

	// Dao is the 32 byte dao field carrying the accumulated rate.
	Dao []byte
}

// Oracle gives read access to block headers.
type Oracle interface {
	// TipHeader returns the header of the current best block.
	TipHeader(ctx context.Context) (*Header, error)

	// HeaderByHash returns a header by block hash.
	HeaderByHash(ctx context.Context, hash cell.Hash) (*Header, error)

	// HeaderByNumber returns the main chain header at a height.
	HeaderByNumber(ctx context.Context, number uint64) (*Header, error)
}

// DaoCalculator computes the capacity a DAO cell can be withdrawn with.
type DaoCalculator interface {
	// MaximumWithdraw returns the capacity the deposit can be withdrawn
	// with if the withdrawal starts in the given block.
	MaximumWithdraw(ctx context.Context, deposit *cell.Cell,
		withdrawBlockHash cell.Hash) (ckbunit.Capacity, error)
}
