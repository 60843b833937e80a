// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"fmt"

	"github.com/ckbwallet/cellwallet/address"
	"github.com/ckbwallet/cellwallet/cell"
	"github.com/ckbwallet/cellwallet/dao"
	"github.com/ckbwallet/cellwallet/keymgr"
	"github.com/ckbwallet/cellwallet/pkg/ckbunit"
	"github.com/ckbwallet/cellwallet/script"
	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	// ChequeCellCapacity is the capacity locked in a cheque cell, exactly
	// what it occupies. It goes back to the sender on claim.
	ChequeCellCapacity = 162 * ckbunit.ShannonPerCKB

	// ChequeClaimPeriodEpochs is how long the receiver has to claim a
	// cheque before the sender may withdraw it.
	ChequeClaimPeriodEpochs = 6
)

// ChequeIntent sends tokens from an asset account to a default lock address
// as a cheque the receiver has to claim.
type ChequeIntent struct {
	// WalletID selects the wallet owning the account.
	WalletID string

	// Account is the token account paying.
	Account AssetAccount

	// Receiver is the default lock address allowed to claim.
	Receiver string

	// Amount is the token amount sent.
	Amount ckbunit.UDTAmount

	// Fee is the fee policy. The default fee rate is used when nil.
	Fee FeePolicy
}

// ClaimChequeIntent claims a cheque sent to the wallet.
type ClaimChequeIntent struct {
	// WalletID selects the receiving wallet.
	WalletID string

	// OutPoint is the cheque cell.
	OutPoint cell.OutPoint

	// SenderLock is the lock of the issuer, which gets the cheque
	// capacity back. Its hash must match the cheque.
	SenderLock cell.Script

	// Fee is the fee policy. The default fee rate is used when nil.
	Fee FeePolicy
}

// WithdrawChequeIntent takes back an unclaimed cheque.
type WithdrawChequeIntent struct {
	// WalletID selects the sending wallet.
	WalletID string

	// OutPoint is the cheque cell.
	OutPoint cell.OutPoint

	// Fee is the fee policy. The default fee rate is used when nil.
	Fee FeePolicy
}

func (i *ChequeIntent) validate() error {
	switch {
	case i.WalletID == "":
		return fmt.Errorf("%w: missing wallet id", ErrInvalidIntent)

	case i.Account.Token.IsNone():
		return fmt.Errorf("%w: cheques carry tokens only",
			ErrInvalidIntent)

	case i.Amount.IsZero():
		return fmt.Errorf("%w: zero token amount", ErrInvalidIntent)
	}

	return nil
}

// pickTokens takes token cells in order until they hold amount.
func pickTokens(cells []cell.Cell, amount ckbunit.UDTAmount) ([]cell.Cell,
	ckbunit.UDTAmount, error) {

	var (
		picked []cell.Cell
		held   ckbunit.UDTAmount
	)
	for _, c := range cells {
		if held.Cmp(amount) >= 0 {
			break
		}

		a, err := ckbunit.ParseUDTAmount(c.Data)
		if err != nil {
			return nil, held, err
		}

		held, err = held.Add(a)
		if err != nil {
			return nil, held, err
		}
		picked = append(picked, c)
	}

	if held.Cmp(amount) < 0 {
		return nil, held, fmt.Errorf("%w: need %v, have %v",
			ErrUDTAmountNotEnough, amount, held)
	}

	return picked, held, nil
}

// chequeCell resolves a cheque and decodes its args.
func (w *Wallet) chequeCell(ctx context.Context,
	op cell.OutPoint) (*cell.Cell, script.ChequeArgs, cell.Hash, error) {

	c, err := w.resolveLive(ctx, op, ErrChequeConsumed)
	if err != nil {
		return nil, script.ChequeArgs{}, cell.Hash{}, err
	}

	if c.BlockHash.IsZero() {
		return nil, script.ChequeArgs{}, cell.Hash{}, fmt.Errorf(
			"%w: %v has no block", ErrChequeNotLive, op)
	}

	params := w.cfg.Params
	if script.Classify(&c.Output.Lock, params) != script.KindCheque ||
		script.Classify(c.Output.Type, params) != script.KindSUDT {

		return nil, script.ChequeArgs{}, cell.Hash{}, fmt.Errorf(
			"%w: %v is not a cheque", ErrInvalidIntent, op)
	}

	if _, err := ckbunit.ParseUDTAmount(c.Data); err != nil {
		return nil, script.ChequeArgs{}, cell.Hash{}, err
	}

	args, err := script.ParseChequeArgs(c.Output.Lock.Args)
	if err != nil {
		return nil, script.ChequeArgs{}, cell.Hash{}, err
	}

	var token cell.Hash
	copy(token[:], c.Output.Type.Args)

	return c, args, token, nil
}

// CreateChequeTx locks tokens from an asset account into a cheque for the
// receiver. The cheque cell's capacity and the fee come from the wallet's
// plain cells.
func (w *Wallet) CreateChequeTx(ctx context.Context,
	intent *ChequeIntent) (*AuthoredTx, error) {

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

	params := w.cfg.Params
	receiverLock, err := address.Parse(intent.Receiver, params)
	if err != nil {
		return nil, err
	}

	if script.Classify(receiverLock, params) != script.KindDefault {
		return nil, fmt.Errorf("%w: cheque receiver must use the "+
			"default lock", ErrInvalidIntent)
	}

	view, err := w.loadView(ctx, intent.WalletID)
	if err != nil {
		return nil, err
	}

	sourceLock := script.AnyoneCanPayLock(intent.Account.Blake160, params)
	if _, err := view.locks.owner(&sourceLock); err != nil {
		return nil, err
	}

	sources, err := w.accountCells(ctx, &sourceLock, intent.Account.Token)
	if err != nil {
		return nil, err
	}

	picked, held, err := pickTokens(sources, intent.Amount)
	if err != nil {
		return nil, err
	}

	remainder, err := held.Sub(intent.Amount)
	if err != nil {
		return nil, err
	}

	pickedCapacity, err := sumCells(picked)
	if err != nil {
		return nil, err
	}

	senderLock := script.DefaultLock(intent.Account.Blake160, params)
	token := intent.Account.Token.UnwrapOr(cell.Hash{})
	sudt := script.SUDTType(token, params)

	cheque := cell.CellOutput{
		Capacity: ChequeCellCapacity,
		Lock: script.ChequeLock(
			receiverLock.Hash(), senderLock.Hash(), params,
		),
		Type: &sudt,
	}

	merged, _ := acpTemplate(intent.Account, params)
	merged.Capacity = pickedCapacity

	base := &cell.Transaction{}
	base.AddCellDep(params.Secp256k1.CellDep)
	base.AddCellDep(params.AnyoneCanPay.CellDep)
	base.AddCellDep(params.SUDT.CellDep)
	base.AddOutput(cheque, intent.Amount.Bytes())
	base.AddOutput(merged, withAmount(picked[0].Data, remainder))

	fixed := fn.Map(picked, func(c cell.Cell) FixedInput {
		return FixedInput{Cell: c}
	})

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

	log.Debugf("Issuing cheque of %v tokens to %s", intent.Amount,
		intent.Receiver)

	return SelectCells(candidates, policy, &SelectionRules{
		Base:        base,
		Fixed:       fixed,
		Change:      &change,
		ChangeData:  []byte{},
		Placeholder: view.locks.placeholder,
	})
}

// CreateClaimChequeTx claims a cheque sent to one of the wallet's
// addresses. The tokens go to the receiver's anyone-can-pay cell for the
// token, or to a new one funded from the wallet's plain cells when it has
// none, and the cheque capacity returns to the sender.
func (w *Wallet) CreateClaimChequeTx(ctx context.Context,
	intent *ClaimChequeIntent) (*AuthoredTx, error) {

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

	cheque, args, token, err := w.chequeCell(ctx, intent.OutPoint)
	if err != nil {
		return nil, err
	}

	if script.LockHashPrefix(intent.SenderLock.Hash()) !=
		args.SenderLockHashPrefix {

		return nil, fmt.Errorf("%w: sender lock doesn't match the "+
			"cheque", ErrInvalidIntent)
	}

	params := w.cfg.Params
	receiver := findByPrefix(
		view.addresses, args.ReceiverLockHashPrefix, params,
	)
	if receiver.IsNone() {
		return nil, ErrNotChequeReceiver
	}
	receiverAddr := receiver.UnwrapOr(keymgr.AddressInfo{})

	amount, err := ckbunit.ParseUDTAmount(cheque.Data)
	if err != nil {
		return nil, err
	}

	base := &cell.Transaction{}
	base.AddCellDep(params.Secp256k1.CellDep)
	base.AddCellDep(params.Cheque.CellDep)
	base.AddCellDep(params.SUDT.CellDep)

	// The cheque capacity goes back to the sender.
	base.AddOutput(cell.CellOutput{
		Capacity: cheque.Output.Capacity,
		Lock:     *intent.SenderLock.Clone(),
	}, []byte{})

	fixed := []FixedInput{{Cell: *cheque}}

	account := AssetAccount{
		Token:    fn.Some(token),
		Blake160: receiverAddr.Blake160,
	}
	acpLock := script.AnyoneCanPayLock(account.Blake160, params)
	existing, err := w.accountCells(ctx, &acpLock, account.Token)
	if err != nil {
		return nil, err
	}

	placeholder := view.locks.placeholder
	if len(existing) > 0 {
		target := existing[0]

		held, err := ckbunit.ParseUDTAmount(target.Data)
		if err != nil {
			return nil, err
		}

		received, err := held.Add(amount)
		if err != nil {
			return nil, err
		}

		base.AddCellDep(params.AnyoneCanPay.CellDep)
		base.AddOutput(
			target.Output.Clone(), withAmount(target.Data, received),
		)
		fixed = append(fixed, FixedInput{Cell: target})

		// Topping up the account cell needs no signature.
		acpHash := acpLock.Hash()
		placeholder = func(lock *cell.Script) ([]byte, error) {
			if lock.Hash() == acpHash {
				return nil, nil
			}

			return view.locks.placeholder(lock)
		}
	} else {
		output, _ := acpTemplate(account, params)
		base.AddOutput(output, amount.Bytes())
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
		Lock: script.DefaultLock(changeAddr.Blake160, params),
	}

	log.Debugf("Claiming cheque %v of %v tokens (existing account "+
		"cell=%v)", intent.OutPoint, amount, len(existing) > 0)

	return SelectCells(candidates, policy, &SelectionRules{
		Base:        base,
		Fixed:       fixed,
		Change:      &change,
		ChangeData:  []byte{},
		Placeholder: placeholder,
	})
}

// CreateWithdrawChequeTx returns an unclaimed cheque to its sender once the
// claim period has passed. The tokens and the cheque capacity, minus the
// fee, move to a token cell under the sender's default lock.
func (w *Wallet) CreateWithdrawChequeTx(ctx context.Context,
	intent *WithdrawChequeIntent) (*AuthoredTx, error) {

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

	cheque, args, token, err := w.chequeCell(ctx, intent.OutPoint)
	if err != nil {
		return nil, err
	}

	params := w.cfg.Params
	sender := findByPrefix(view.addresses, args.SenderLockHashPrefix, params)
	if sender.IsNone() {
		return nil, ErrNotChequeSender
	}
	senderAddr := sender.UnwrapOr(keymgr.AddressInfo{})

	since := dao.RelativeEpochSince(ChequeClaimPeriodEpochs)
	reached, err := sinceReached(ctx, oracle, since, cheque)
	if err != nil {
		return nil, err
	}

	if !reached {
		return nil, fmt.Errorf("%w: claim period of %d epochs not over",
			ErrChequeNotYetWithdrawable, ChequeClaimPeriodEpochs)
	}

	sudt := script.SUDTType(token, params)

	base := &cell.Transaction{}
	base.AddCellDep(params.Secp256k1.CellDep)
	base.AddCellDep(params.Cheque.CellDep)
	base.AddCellDep(params.SUDT.CellDep)
	base.AddOutput(cell.CellOutput{
		Lock: script.DefaultLock(senderAddr.Blake160, params),
		Type: &sudt,
	}, append([]byte(nil), cheque.Data...))

	log.Debugf("Withdrawing cheque %v to sender %v", intent.OutPoint,
		senderAddr.Path)

	return SelectCells(nil, policy, &SelectionRules{
		Base: base,
		Fixed: []FixedInput{{
			Cell:  *cheque,
			Since: since,
		}},
		SendAll:     true,
		Placeholder: view.locks.placeholder,
	})
}
