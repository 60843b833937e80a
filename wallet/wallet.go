// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wallet builds and signs CKB transactions: it picks the cells to
// spend, sizes the fee, lays out the inputs, outputs and witnesses for each
// kind of spend and signs the result with keys derived from the wallet's
// master key.
//
// The wallet keeps no state of its own. Cells, addresses and headers come
// from the collaborators in Config, and a signed transaction is the only
// thing it produces.
package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/ckbwallet/cellwallet/cell"
	"github.com/ckbwallet/cellwallet/chain"
	"github.com/ckbwallet/cellwallet/keymgr"
	"github.com/ckbwallet/cellwallet/netparams"
	"github.com/ckbwallet/cellwallet/pkg/ckbunit"
	"github.com/ckbwallet/cellwallet/script"
	"github.com/lightningnetwork/lnd/fn/v2"
)

var (
	// ErrWalletConfig is returned when a required collaborator is
	// missing from the config.
	ErrWalletConfig = errors.New("invalid wallet config")
)

// Config holds everything a Wallet talks to.
type Config struct {
	// Params selects the network and its system scripts.
	Params *netparams.Params

	// Cells is the source of live cells.
	Cells CellRepository

	// Addresses hands out addresses and the master key.
	Addresses AddressProvider

	// AssetAccounts lists existing asset accounts. It is only needed to
	// create new ones.
	AssetAccounts AssetAccountStore

	// Chain answers header queries for time locks, cheques and the DAO.
	Chain chain.Oracle

	// Dao computes DAO withdraw amounts. When nil, a
	// chain.LocalDaoCalculator over Chain is used.
	Dao chain.DaoCalculator

	// MaxFeeRate caps the fee rate of any transaction. DefaultMaxFeeRate
	// is used when zero.
	MaxFeeRate ckbunit.FeeRate
}

// Wallet assembles and signs transactions for the wallets served by its
// AddressProvider. It is safe for concurrent use as long as its
// collaborators are.
type Wallet struct {
	cfg Config
}

// New returns a wallet over the given collaborators.
func New(cfg Config) (*Wallet, error) {
	switch {
	case cfg.Params == nil:
		return nil, fmt.Errorf("%w: missing params", ErrWalletConfig)

	case cfg.Cells == nil:
		return nil, fmt.Errorf("%w: missing cell repository",
			ErrWalletConfig)

	case cfg.Addresses == nil:
		return nil, fmt.Errorf("%w: missing address provider",
			ErrWalletConfig)
	}

	if cfg.Dao == nil && cfg.Chain != nil {
		cfg.Dao = &chain.LocalDaoCalculator{Oracle: cfg.Chain}
	}

	if cfg.MaxFeeRate.IsZero() {
		cfg.MaxFeeRate = DefaultMaxFeeRate
	}

	return &Wallet{cfg: cfg}, nil
}

// Params returns the network the wallet builds transactions for.
func (w *Wallet) Params() *netparams.Params {
	return w.cfg.Params
}

func (w *Wallet) oracle() (chain.Oracle, error) {
	if w.cfg.Chain == nil {
		return nil, fmt.Errorf("%w: missing chain oracle",
			ErrWalletConfig)
	}

	return w.cfg.Chain, nil
}

// walletView is the snapshot of a wallet's addresses a single Create call
// works from.
type walletView struct {
	id        string
	addresses []keymgr.AddressInfo
	locks     *lockIndex
}

// loadView fetches the wallet's addresses.
func (w *Wallet) loadView(ctx context.Context,
	walletID string) (*walletView, error) {

	if walletID == "" {
		return nil, fmt.Errorf("%w: missing wallet id", ErrInvalidIntent)
	}

	addrs, err := w.cfg.Addresses.AllAddresses(ctx, walletID)
	if err != nil {
		return nil, fmt.Errorf("load addresses: %w", err)
	}

	return &walletView{
		id:        walletID,
		addresses: addrs,
		locks:     newLockIndex(addrs, w.cfg.Params),
	}, nil
}

// defaultLockHashes returns the default lock hash of every address.
func (v *walletView) defaultLockHashes(params *netparams.Params) []cell.Hash {
	return fn.Map(v.addresses, func(a keymgr.AddressInfo) cell.Hash {
		lock := script.DefaultLock(a.Blake160, params)
		return lock.Hash()
	})
}

// plainCells returns the wallet's spendable default lock cells that carry
// neither a type script nor data.
func (w *Wallet) plainCells(ctx context.Context,
	view *walletView) ([]cell.Cell, error) {

	cells, err := w.cfg.Cells.CandidateCells(
		ctx, view.defaultLockHashes(w.cfg.Params), fn.None[cell.Hash](),
	)
	if err != nil {
		return nil, fmt.Errorf("fetch candidate cells: %w", err)
	}

	plain := fn.Filter(cells, func(c cell.Cell) bool {
		if c.Output.Type != nil || len(c.Data) != 0 {
			log.Warnf("Skipping cell %v with type or data",
				c.OutPoint)

			return false
		}

		return true
	})

	log.Debugf("Wallet %s has %d plain candidate cells", view.id,
		len(plain))

	return plain, nil
}

// resolveLive resolves a cell, mapping a missing cell to notLive.
func (w *Wallet) resolveLive(ctx context.Context, op cell.OutPoint,
	notLive error) (*cell.Cell, error) {

	c, err := w.cfg.Cells.ResolveCell(ctx, op)
	switch {
	case errors.Is(err, ErrCellNotFound):
		return nil, fmt.Errorf("%w: %v", notLive, op)

	case err != nil:
		return nil, fmt.Errorf("resolve %v: %w", op, err)
	}

	return c, nil
}
