// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"fmt"

	"github.com/ckbwallet/cellwallet/address"
	"github.com/ckbwallet/cellwallet/cell"
	"github.com/ckbwallet/cellwallet/pkg/ckbhash"
	"github.com/ckbwallet/cellwallet/pkg/ckbunit"
	"github.com/ckbwallet/cellwallet/script"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// TargetOutput is a payment to an address.
type TargetOutput struct {
	// Address receives the payment.
	Address string

	// Capacity is the amount paid. It is ignored for the last output of
	// a send-all transfer.
	Capacity ckbunit.Capacity

	// Since, when set, locks the payment until then. The output is
	// placed under a single key multisig lock of the receiver's key, so
	// the address must use the default lock.
	Since fn.Option[uint64]
}

// TransferIntent describes a plain CKB transfer from a wallet.
type TransferIntent struct {
	// WalletID selects the wallet paying.
	WalletID string

	// Outputs are the payments, in output order.
	Outputs []TargetOutput

	// Fee is the fee policy. The default fee rate is used when nil.
	Fee FeePolicy
}

func (i *TransferIntent) validate() error {
	if i.WalletID == "" {
		return fmt.Errorf("%w: missing wallet id", ErrInvalidIntent)
	}

	if len(i.Outputs) == 0 {
		return ErrNoTxOutputs
	}

	return nil
}

// transferBase builds the outputs of a transfer. With sendAll the last
// output's capacity is left for the selection to fill.
func (w *Wallet) transferBase(outputs []TargetOutput,
	sendAll bool) (*cell.Transaction, error) {

	params := w.cfg.Params

	tx := &cell.Transaction{}
	tx.AddCellDep(params.Secp256k1.CellDep)

	for i, out := range outputs {
		lock, err := address.Parse(out.Address, params)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}

		if out.Since.IsSome() {
			if script.Classify(lock, params) != script.KindDefault {
				return nil, fmt.Errorf("%w: output %d: time "+
					"locked payments need a default lock "+
					"address", ErrInvalidIntent, i)
			}

			var key [ckbhash.Blake160Size]byte
			copy(key[:], lock.Args)
			cfg := script.NewSingleKeyConfig(key)
			timeLocked := script.MultisigLock(&cfg, out.Since, params)
			lock = &timeLocked
		}

		output := cell.CellOutput{Capacity: out.Capacity, Lock: *lock}

		isLast := i == len(outputs)-1
		occupied := output.OccupiedCapacity(nil)
		if !(sendAll && isLast) && output.Capacity < occupied {
			return nil, fmt.Errorf("%w: output %d pays %v, occupies "+
				"%v", ErrCapacityTooSmall, i, output.Capacity,
				occupied)
		}

		tx.AddOutput(output, []byte{})
	}

	return tx, nil
}

// CreateTransferTx pays the intent's outputs from the wallet's plain cells
// and returns what is left to a fresh change address. It fails with
// ErrCapacityNotEnoughForChange when the leftover is too small for a change
// cell, in which case CreateSendAllTx can spend it instead.
func (w *Wallet) CreateTransferTx(ctx context.Context,
	intent *TransferIntent) (*AuthoredTx, error) {

	if intent == nil {
		return nil, ErrNilIntent
	}

	if err := intent.validate(); err != nil {
		return nil, err
	}

	policy, err := w.feePolicyOrDefault(intent.Fee)
	if err != nil {
		return nil, err
	}

	base, err := w.transferBase(intent.Outputs, false)
	if err != nil {
		return nil, err
	}

	view, err := w.loadView(ctx, intent.WalletID)
	if err != nil {
		return nil, err
	}

	candidates, err := w.plainCells(ctx, view)
	if err != nil {
		return nil, err
	}

	changeAddr, err := w.cfg.Addresses.NextUnusedChangeAddress(
		ctx, intent.WalletID,
	)
	if err != nil {
		return nil, fmt.Errorf("change address: %w", err)
	}

	change := cell.CellOutput{
		Lock: script.DefaultLock(changeAddr.Blake160, w.cfg.Params),
	}

	log.Debugf("Creating transfer of %d outputs for wallet %s",
		len(intent.Outputs), intent.WalletID)

	return SelectCells(candidates, policy, &SelectionRules{
		Base:        base,
		Change:      &change,
		ChangeData:  []byte{},
		Placeholder: view.locks.placeholder,
	})
}

// CreateSendAllTx spends every plain cell of the wallet. The last output
// receives everything not paid to the other outputs or the fee.
func (w *Wallet) CreateSendAllTx(ctx context.Context,
	intent *TransferIntent) (*AuthoredTx, error) {

	if intent == nil {
		return nil, ErrNilIntent
	}

	if err := intent.validate(); err != nil {
		return nil, err
	}

	policy, err := w.feePolicyOrDefault(intent.Fee)
	if err != nil {
		return nil, err
	}

	base, err := w.transferBase(intent.Outputs, true)
	if err != nil {
		return nil, err
	}

	view, err := w.loadView(ctx, intent.WalletID)
	if err != nil {
		return nil, err
	}

	candidates, err := w.plainCells(ctx, view)
	if err != nil {
		return nil, err
	}

	if len(candidates) == 0 {
		return nil, &CapacityNotEnoughError{}
	}

	log.Debugf("Creating send-all of %d cells for wallet %s",
		len(candidates), intent.WalletID)

	return SelectCells(candidates, policy, &SelectionRules{
		Base:        base,
		SendAll:     true,
		Placeholder: view.locks.placeholder,
	})
}
