// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/ckbwallet/cellwallet/address"
	"github.com/ckbwallet/cellwallet/cell"
	"github.com/ckbwallet/cellwallet/chain"
	"github.com/ckbwallet/cellwallet/dao"
	"github.com/ckbwallet/cellwallet/script"
)

// MultisigTimelockIntent unlocks a time locked payment held under a single
// key multisig lock.
type MultisigTimelockIntent struct {
	// WalletID selects the wallet owning the key.
	WalletID string

	// OutPoint is the time locked cell.
	OutPoint cell.OutPoint

	// Address receives the capacity. The wallet's next unused receiving
	// address is used when empty.
	Address string

	// Fee is the fee policy. The default fee rate is used when nil.
	Fee FeePolicy
}

func clockOf(h *chain.Header) dao.Clock {
	return dao.Clock{
		Number:    h.Number,
		Epoch:     h.Epoch,
		Timestamp: h.Timestamp,
	}
}

// sinceReached checks a since against the tip, fetching the header of the
// block holding c for relative values.
func sinceReached(ctx context.Context, oracle chain.Oracle, since uint64,
	c *cell.Cell) (bool, error) {

	s, err := dao.ParseSince(since)
	if err != nil {
		return false, err
	}

	tip, err := oracle.TipHeader(ctx)
	if err != nil {
		return false, fmt.Errorf("tip header: %w", err)
	}

	var committed dao.Clock
	if s.Relative {
		h, err := oracle.HeaderByHash(ctx, c.BlockHash)
		if err != nil {
			return false, fmt.Errorf("header of %v: %w", c.OutPoint,
				err)
		}
		committed = clockOf(h)
	}

	return s.Reached(clockOf(tip), committed), nil
}

// CreateMultisigTimelockWithdrawTx moves a time locked cell that has become
// spendable to a plain address. The whole capacity minus the fee is sent.
func (w *Wallet) CreateMultisigTimelockWithdrawTx(ctx context.Context,
	intent *MultisigTimelockIntent) (*AuthoredTx, error) {

	if intent == nil {
		return nil, ErrNilIntent
	}

	policy, err := w.feePolicyOrDefault(intent.Fee)
	if err != nil {
		return nil, err
	}

	var target *cell.Script
	if intent.Address != "" {
		target, err = address.Parse(intent.Address, w.cfg.Params)
		if err != nil {
			return nil, err
		}
	}

	oracle, err := w.oracle()
	if err != nil {
		return nil, err
	}

	view, err := w.loadView(ctx, intent.WalletID)
	if err != nil {
		return nil, err
	}

	locked, err := w.resolveLive(ctx, intent.OutPoint, ErrCellNotFound)
	if err != nil {
		return nil, err
	}

	lock := &locked.Output.Lock
	if script.Classify(lock, w.cfg.Params) != script.KindMultisig ||
		locked.Output.Type != nil {

		return nil, fmt.Errorf("%w: %v", ErrNotMultisigTimelock,
			intent.OutPoint)
	}

	_, since, err := script.ParseMultisigArgs(lock.Args)
	if err != nil {
		return nil, err
	}

	if since.IsNone() {
		return nil, fmt.Errorf("%w: %v has no since",
			ErrNotMultisigTimelock, intent.OutPoint)
	}
	sinceValue := since.UnwrapOr(0)

	if _, err := view.locks.owner(lock); err != nil {
		if errors.Is(err, ErrPrivateKeyNotFound) {
			return nil, fmt.Errorf("%w: %v is not owned by the "+
				"wallet", ErrNotMultisigTimelock, intent.OutPoint)
		}

		return nil, err
	}

	reached, err := sinceReached(ctx, oracle, sinceValue, locked)
	if err != nil {
		return nil, err
	}

	if !reached {
		return nil, fmt.Errorf("%w: %v locked until since %#x",
			ErrTimelockNotReached, intent.OutPoint, sinceValue)
	}

	if target == nil {
		addr, err := w.cfg.Addresses.NextUnusedReceivingAddress(
			ctx, intent.WalletID,
		)
		if err != nil {
			return nil, fmt.Errorf("receiving address: %w", err)
		}

		recv := script.DefaultLock(addr.Blake160, w.cfg.Params)
		target = &recv
	}

	base := &cell.Transaction{}
	base.AddCellDep(w.cfg.Params.Multisig.CellDep)
	base.AddOutput(cell.CellOutput{Lock: *target.Clone()}, []byte{})

	log.Debugf("Unlocking time locked cell %v with since %#x",
		intent.OutPoint, sinceValue)

	return SelectCells(nil, policy, &SelectionRules{
		Base: base,
		Fixed: []FixedInput{{
			Cell:  *locked,
			Since: sinceValue,
		}},
		SendAll:     true,
		Placeholder: view.locks.placeholder,
	})
}
