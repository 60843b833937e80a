// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/ckbwallet/cellwallet/cell"
	"github.com/ckbwallet/cellwallet/dao"
	"github.com/ckbwallet/cellwallet/pkg/ckbunit"
	"github.com/ckbwallet/cellwallet/script"
)

// DepositIntent locks capacity into the DAO.
type DepositIntent struct {
	// WalletID selects the wallet depositing.
	WalletID string

	// Capacity is the amount deposited. It is ignored with SendAll.
	Capacity ckbunit.Capacity

	// SendAll deposits every plain cell of the wallet, minus the fee.
	SendAll bool

	// Fee is the fee policy. The default fee rate is used when nil.
	Fee FeePolicy
}

// WithdrawIntent names the DAO cell a withdraw phase spends.
type WithdrawIntent struct {
	// WalletID selects the wallet owning the cell.
	WalletID string

	// OutPoint is the deposit cell for the first phase and the
	// withdrawing cell for the second.
	OutPoint cell.OutPoint

	// Fee is the fee policy. The default fee rate is used when nil.
	Fee FeePolicy
}

// isDaoCell reports whether c has the DAO type script.
func (w *Wallet) isDaoCell(c *cell.Cell) bool {
	return script.Classify(c.Output.Type, w.cfg.Params) == script.KindDAO
}

// CreateDepositTx deposits capacity into the DAO under the wallet's next
// unused receiving address.
func (w *Wallet) CreateDepositTx(ctx context.Context,
	intent *DepositIntent) (*AuthoredTx, error) {

	if intent == nil {
		return nil, ErrNilIntent
	}

	policy, err := w.feePolicyOrDefault(intent.Fee)
	if err != nil {
		return nil, err
	}

	view, err := w.loadView(ctx, intent.WalletID)
	if err != nil {
		return nil, err
	}

	params := w.cfg.Params
	daoType := script.DAOType(params)

	recv, err := w.cfg.Addresses.NextUnusedReceivingAddress(
		ctx, intent.WalletID,
	)
	if err != nil {
		return nil, fmt.Errorf("receiving address: %w", err)
	}

	deposit := cell.CellOutput{
		Capacity: intent.Capacity,
		Lock:     script.DefaultLock(recv.Blake160, params),
		Type:     &daoType,
	}
	occupied := deposit.OccupiedCapacity(dao.DepositData())
	if !intent.SendAll && deposit.Capacity < occupied {
		return nil, fmt.Errorf("%w: deposit of %v, occupies %v",
			ErrCapacityTooSmall, deposit.Capacity, occupied)
	}

	base := &cell.Transaction{}
	base.AddCellDep(params.Secp256k1.CellDep)
	base.AddCellDep(params.DAO.CellDep)
	base.AddOutput(deposit, dao.DepositData())

	candidates, err := w.plainCells(ctx, view)
	if err != nil {
		return nil, err
	}

	rules := &SelectionRules{
		Base:        base,
		SendAll:     intent.SendAll,
		Placeholder: view.locks.placeholder,
	}

	if !intent.SendAll {
		changeAddr, err := w.cfg.Addresses.NextUnusedChangeAddress(
			ctx, intent.WalletID,
		)
		if err != nil {
			return nil, fmt.Errorf("change address: %w", err)
		}

		change := cell.CellOutput{
			Lock: script.DefaultLock(changeAddr.Blake160, params),
		}
		rules.Change = &change
		rules.ChangeData = []byte{}
	} else if len(candidates) == 0 {
		return nil, &CapacityNotEnoughError{Required: occupied}
	}

	log.Debugf("Creating DAO deposit of %v for wallet %s (send all=%v)",
		intent.Capacity, intent.WalletID, intent.SendAll)

	return SelectCells(candidates, policy, rules)
}

// CreateStartWithdrawTx starts withdrawing a DAO deposit. The deposit is
// spent into a withdrawing cell of the same capacity that records the
// deposit block number; the fee is paid from the wallet's plain cells.
func (w *Wallet) CreateStartWithdrawTx(ctx context.Context,
	intent *WithdrawIntent) (*AuthoredTx, error) {

	if intent == nil {
		return nil, ErrNilIntent
	}

	policy, err := w.feePolicyOrDefault(intent.Fee)
	if err != nil {
		return nil, err
	}

	view, err := w.loadView(ctx, intent.WalletID)
	if err != nil {
		return nil, err
	}

	deposit, err := w.resolveLive(ctx, intent.OutPoint, ErrCellNotFound)
	if err != nil {
		return nil, err
	}

	if !w.isDaoCell(deposit) || !dao.IsDeposit(deposit.Data) {
		return nil, fmt.Errorf("%w: %v", ErrNotDaoDeposit,
			intent.OutPoint)
	}

	if deposit.BlockHash.IsZero() {
		return nil, fmt.Errorf("%w: deposit %v has no block",
			ErrInvalidIntent, intent.OutPoint)
	}

	// The withdrawal is signed by the deposit's owner.
	if _, err := view.locks.owner(&deposit.Output.Lock); err != nil {
		return nil, err
	}

	params := w.cfg.Params
	base := &cell.Transaction{
		HeaderDeps: []cell.Hash{deposit.BlockHash},
	}
	base.AddCellDep(params.Secp256k1.CellDep)
	base.AddCellDep(params.DAO.CellDep)
	base.AddOutput(
		deposit.Output.Clone(),
		dao.WithdrawingData(deposit.BlockNumber),
	)

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
		Lock: script.DefaultLock(changeAddr.Blake160, params),
	}

	log.Debugf("Starting withdrawal of deposit %v from block %d",
		intent.OutPoint, deposit.BlockNumber)

	return SelectCells(candidates, policy, &SelectionRules{
		Base:        base,
		Fixed:       []FixedInput{{Cell: *deposit}},
		Change:      &change,
		ChangeData:  []byte{},
		Placeholder: view.locks.placeholder,
	})
}

// CreateFinalizeWithdrawTx unlocks a withdrawing DAO cell once its lock
// period is over. The deposit plus its interest, minus the fee, goes to the
// wallet's next unused change address.
func (w *Wallet) CreateFinalizeWithdrawTx(ctx context.Context,
	intent *WithdrawIntent) (*AuthoredTx, error) {

	if intent == nil {
		return nil, ErrNilIntent
	}

	policy, err := w.feePolicyOrDefault(intent.Fee)
	if err != nil {
		return nil, err
	}

	oracle, err := w.oracle()
	if err != nil {
		return nil, err
	}

	view, err := w.loadView(ctx, intent.WalletID)
	if err != nil {
		return nil, err
	}

	withdrawing, err := w.resolveLive(
		ctx, intent.OutPoint, ErrCellNotFound,
	)
	if err != nil {
		return nil, err
	}

	if !w.isDaoCell(withdrawing) {
		return nil, fmt.Errorf("%w: %v", ErrNotDaoWithdrawing,
			intent.OutPoint)
	}

	depositNumber, err := dao.DepositBlockNumber(withdrawing.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotDaoWithdrawing, err)
	}

	if _, err := view.locks.owner(&withdrawing.Output.Lock); err != nil {
		return nil, err
	}

	depositHeader, err := oracle.HeaderByNumber(ctx, depositNumber)
	if err != nil {
		return nil, fmt.Errorf("deposit header: %w", err)
	}

	withdrawHeader, err := oracle.HeaderByHash(ctx, withdrawing.BlockHash)
	if err != nil {
		return nil, fmt.Errorf("withdraw header: %w", err)
	}

	since := dao.MinimalWithdrawSince(
		depositHeader.Epoch, withdrawHeader.Epoch,
	)

	reached, err := sinceReached(ctx, oracle, since, withdrawing)
	if err != nil {
		return nil, err
	}

	if !reached {
		epoch, _ := dao.SinceEpoch(since)

		return nil, fmt.Errorf("%w: %v unlocks at epoch %v",
			ErrTimelockNotReached, intent.OutPoint, epoch)
	}

	// The deposit as it was before the withdrawal started.
	deposit := &cell.Cell{
		OutPoint:    withdrawing.OutPoint,
		Output:      withdrawing.Output.Clone(),
		Data:        dao.DepositData(),
		BlockNumber: depositNumber,
		BlockHash:   depositHeader.Hash,
	}

	maxWithdraw, err := w.cfg.Dao.MaximumWithdraw(
		ctx, deposit, withdrawing.BlockHash,
	)
	if err != nil {
		return nil, fmt.Errorf("maximum withdraw: %w", err)
	}

	changeAddr, err := w.cfg.Addresses.NextUnusedChangeAddress(
		ctx, intent.WalletID,
	)
	if err != nil {
		return nil, fmt.Errorf("change address: %w", err)
	}

	params := w.cfg.Params
	base := &cell.Transaction{
		HeaderDeps: []cell.Hash{depositHeader.Hash, withdrawHeader.Hash},
	}
	base.AddCellDep(params.Secp256k1.CellDep)
	base.AddCellDep(params.DAO.CellDep)
	base.AddOutput(cell.CellOutput{
		Lock: script.DefaultLock(changeAddr.Blake160, params),
	}, []byte{})

	// The input type points the DAO script at the deposit header, the
	// first header dep.
	depositHeaderIndex := binary.LittleEndian.AppendUint64(nil, 0)

	log.Debugf("Finalizing withdrawal of %v: deposit=%v, max "+
		"withdraw=%v, since=%#x", intent.OutPoint,
		withdrawing.Output.Capacity, maxWithdraw, since)

	return SelectCells(nil, policy, &SelectionRules{
		Base: base,
		Fixed: []FixedInput{{
			Cell:      *withdrawing,
			Value:     maxWithdraw,
			Since:     since,
			InputType: depositHeaderIndex,
		}},
		SendAll:     true,
		Placeholder: view.locks.placeholder,
	})
}
