// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ckbwallet/cellwallet/address"
	"github.com/ckbwallet/cellwallet/cell"
	"github.com/ckbwallet/cellwallet/keymgr"
	"github.com/ckbwallet/cellwallet/netparams"
	"github.com/ckbwallet/cellwallet/pkg/ckbhash"
	"github.com/ckbwallet/cellwallet/pkg/ckbunit"
	"github.com/ckbwallet/cellwallet/script"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// AssetAccountIntent creates the anyone-can-pay cell backing a new asset
// account.
type AssetAccountIntent struct {
	// WalletID selects the wallet.
	WalletID string

	// Token is the sUDT the account holds, None for a CKB account.
	Token fn.Option[cell.Hash]

	// Fee is the fee policy. The default fee rate is used when nil.
	Fee FeePolicy
}

// AcpTransferIntent moves CKB or tokens from one of the wallet's asset
// accounts into an existing anyone-can-pay cell of another account.
type AcpTransferIntent struct {
	// WalletID selects the wallet owning the source account.
	WalletID string

	// Account is the source account.
	Account AssetAccount

	// Target is the anyone-can-pay address of the receiving account.
	Target string

	// Capacity is the amount sent from a CKB account.
	Capacity ckbunit.Capacity

	// Amount is the amount sent from a token account.
	Amount ckbunit.UDTAmount

	// Fee is the fee policy. The default fee rate is used when nil.
	Fee FeePolicy
}

func (i *AcpTransferIntent) validate() error {
	switch {
	case i.WalletID == "":
		return fmt.Errorf("%w: missing wallet id", ErrInvalidIntent)

	case i.Account.Token.IsNone() && i.Capacity == 0:
		return fmt.Errorf("%w: zero capacity", ErrInvalidIntent)

	case i.Account.Token.IsSome() && i.Amount.IsZero():
		return fmt.Errorf("%w: zero token amount", ErrInvalidIntent)
	}

	return nil
}

// acpTemplate returns an empty anyone-can-pay cell of an account along with
// its data.
func acpTemplate(account AssetAccount,
	params *netparams.Params) (cell.CellOutput, []byte) {

	out := cell.CellOutput{
		Lock: script.AnyoneCanPayLock(account.Blake160, params),
	}

	data := []byte{}
	account.Token.WhenSome(func(token cell.Hash) {
		sudt := script.SUDTType(token, params)
		out.Type = &sudt
		data = ckbunit.UDTAmount{}.Bytes()
	})

	out.Capacity = out.OccupiedCapacity(data)

	return out, data
}

// typeFilter returns the type hash an account's cells carry.
func typeFilter(token fn.Option[cell.Hash],
	params *netparams.Params) fn.Option[cell.Hash] {

	filter := fn.None[cell.Hash]()
	token.WhenSome(func(t cell.Hash) {
		sudt := script.SUDTType(t, params)
		filter = fn.Some(sudt.Hash())
	})

	return filter
}

// sameToken reports whether two accounts hold the same asset.
func sameToken(a, b fn.Option[cell.Hash]) bool {
	if a.IsSome() != b.IsSome() {
		return false
	}

	return a.UnwrapOr(cell.Hash{}) == b.UnwrapOr(cell.Hash{})
}

// accountCells returns the live anyone-can-pay cells of an account.
func (w *Wallet) accountCells(ctx context.Context, lock *cell.Script,
	token fn.Option[cell.Hash]) ([]cell.Cell, error) {

	params := w.cfg.Params
	filter := typeFilter(token, params)

	cells, err := w.cfg.Cells.CandidateCells(
		ctx, []cell.Hash{lock.Hash()}, filter,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch account cells: %w", err)
	}

	return fn.Filter(cells, func(c cell.Cell) bool {
		if !c.Output.Lock.Equal(lock) {
			return false
		}

		if token.IsNone() {
			return c.Output.Type == nil && len(c.Data) == 0
		}

		if c.Output.Type == nil ||
			c.Output.Type.Hash() != filter.UnwrapOr(cell.Hash{}) {

			return false
		}

		_, err := ckbunit.ParseUDTAmount(c.Data)
		if err != nil {
			log.Warnf("Skipping token cell %v: %v", c.OutPoint, err)
			return false
		}

		return true
	}), nil
}

// AcpBalance returns what an asset account can spend: all CKB of its cells
// except what one cell of the account occupies, and all its tokens.
func (w *Wallet) AcpBalance(ctx context.Context,
	account AssetAccount) (ckbunit.Capacity, ckbunit.UDTAmount, error) {

	params := w.cfg.Params
	lock := script.AnyoneCanPayLock(account.Blake160, params)

	cells, err := w.accountCells(ctx, &lock, account.Token)
	if err != nil {
		return 0, ckbunit.UDTAmount{}, err
	}

	total, err := sumCells(cells)
	if err != nil {
		return 0, ckbunit.UDTAmount{}, err
	}

	tokens, err := sumTokens(cells)
	if err != nil {
		return 0, ckbunit.UDTAmount{}, err
	}

	reserved, _ := acpTemplate(account, params)
	if total <= reserved.Capacity {
		return 0, tokens, nil
	}

	return total - reserved.Capacity, tokens, nil
}

func sumTokens(cells []cell.Cell) (ckbunit.UDTAmount, error) {
	var total ckbunit.UDTAmount
	for _, c := range cells {
		if c.Output.Type == nil {
			continue
		}

		amount, err := ckbunit.ParseUDTAmount(c.Data)
		if err != nil {
			return ckbunit.UDTAmount{}, err
		}

		total, err = total.Add(amount)
		if err != nil {
			return ckbunit.UDTAmount{}, err
		}
	}

	return total, nil
}

// withAmount returns token cell data holding amount, keeping anything
// stored after the amount.
func withAmount(data []byte, amount ckbunit.UDTAmount) []byte {
	out := amount.Bytes()
	if len(data) > ckbunit.UDTAmountSize {
		out = append(out, data[ckbunit.UDTAmountSize:]...)
	}

	return out
}

// CreateAssetAccountTx creates the anyone-can-pay cell of a new asset
// account, funded from the wallet's plain cells. The account takes the first
// unused receiving address not already holding an account for the token.
func (w *Wallet) CreateAssetAccountTx(ctx context.Context,
	intent *AssetAccountIntent) (*AuthoredTx, AssetAccount, error) {

	if intent == nil {
		return nil, AssetAccount{}, ErrNilIntent
	}

	if w.cfg.AssetAccounts == nil {
		return nil, AssetAccount{}, fmt.Errorf("%w: missing asset "+
			"account store", ErrWalletConfig)
	}

	policy, err := w.feePolicyOrDefault(intent.Fee)
	if err != nil {
		return nil, AssetAccount{}, err
	}

	view, err := w.loadView(ctx, intent.WalletID)
	if err != nil {
		return nil, AssetAccount{}, err
	}

	accounts, err := w.cfg.AssetAccounts.AssetAccounts(ctx, intent.WalletID)
	if err != nil {
		return nil, AssetAccount{}, fmt.Errorf("load asset accounts: %w",
			err)
	}

	taken := fn.NewSet[[ckbhash.Blake160Size]byte]()
	for _, a := range accounts {
		if sameToken(a.Token, intent.Token) {
			taken.Add(a.Blake160)
		}
	}

	var (
		account AssetAccount
		found   bool
	)
	for _, a := range view.addresses {
		if a.Path.Branch != keymgr.BranchReceiving || a.Used ||
			taken.Contains(a.Blake160) {

			continue
		}

		account = AssetAccount{Token: intent.Token, Blake160: a.Blake160}
		found = true

		break
	}

	if !found {
		return nil, AssetAccount{}, ErrNoAvailableAddress
	}

	params := w.cfg.Params
	output, data := acpTemplate(account, params)

	base := &cell.Transaction{}
	base.AddCellDep(params.Secp256k1.CellDep)
	if intent.Token.IsSome() {
		base.AddCellDep(params.SUDT.CellDep)
	}
	base.AddOutput(output, data)

	candidates, err := w.plainCells(ctx, view)
	if err != nil {
		return nil, AssetAccount{}, err
	}

	changeAddr, err := w.cfg.Addresses.NextUnusedChangeAddress(
		ctx, intent.WalletID,
	)
	if err != nil {
		return nil, AssetAccount{}, fmt.Errorf("change address: %w", err)
	}

	change := cell.CellOutput{
		Lock: script.DefaultLock(changeAddr.Blake160, params),
	}

	log.Debugf("Creating asset account cell of %v for wallet %s",
		output.Capacity, intent.WalletID)

	atx, err := SelectCells(candidates, policy, &SelectionRules{
		Base:        base,
		Change:      &change,
		ChangeData:  []byte{},
		Placeholder: view.locks.placeholder,
	})
	if err != nil {
		return nil, AssetAccount{}, err
	}

	return atx, account, nil
}

// CreateAcpTransferTx tops up the receiving account's anyone-can-pay cell.
// CKB is taken from the source account's cells, keeping one cell of at
// least its occupied capacity, which also pays the fee. Tokens are taken
// from the source account's token cells in order and merged into one cell
// holding the remainder; the fee then comes from the wallet's plain cells.
func (w *Wallet) CreateAcpTransferTx(ctx context.Context,
	intent *AcpTransferIntent) (*AuthoredTx, error) {

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
	targetLock, err := address.Parse(intent.Target, params)
	if err != nil {
		return nil, err
	}

	if script.Classify(targetLock, params) != script.KindAnyoneCanPay {
		return nil, fmt.Errorf("%w: target is not an anyone-can-pay "+
			"address", ErrInvalidIntent)
	}

	targetArgs, err := script.ParseAcpArgs(targetLock.Args)
	if err != nil {
		return nil, err
	}

	if targetArgs.Blake160 == intent.Account.Blake160 {
		return nil, ErrAcpSendSameAccount
	}

	view, err := w.loadView(ctx, intent.WalletID)
	if err != nil {
		return nil, err
	}

	sourceLock := script.AnyoneCanPayLock(intent.Account.Blake160, params)
	if _, err := view.locks.owner(&sourceLock); err != nil {
		return nil, err
	}

	targets, err := w.accountCells(ctx, targetLock, intent.Account.Token)
	if err != nil {
		return nil, err
	}

	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTargetOutputNotFound,
			intent.Target)
	}
	target := targets[0]

	sources, err := w.accountCells(ctx, &sourceLock, intent.Account.Token)
	if err != nil {
		return nil, err
	}

	// The receiving cell is unlocked in anyone-can-pay mode, which takes
	// an empty witness.
	targetHash := targetLock.Hash()
	placeholder := func(lock *cell.Script) ([]byte, error) {
		if lock.Hash() == targetHash {
			return nil, nil
		}

		return view.locks.placeholder(lock)
	}

	base := &cell.Transaction{}
	base.AddCellDep(params.AnyoneCanPay.CellDep)

	if intent.Account.Token.IsNone() {
		return w.acpCapacityTransfer(
			intent, policy, base, target, sources, placeholder,
		)
	}

	return w.acpTokenTransfer(
		ctx, view, intent, policy, base, target, sources, placeholder,
	)
}

func (w *Wallet) acpCapacityTransfer(intent *AcpTransferIntent,
	policy FeePolicy, base *cell.Transaction, target cell.Cell,
	sources []cell.Cell,
	placeholder func(*cell.Script) ([]byte, error)) (*AuthoredTx, error) {

	topped := target.Output.Clone()
	capacity, err := ckbunit.AddCapacity(topped.Capacity, intent.Capacity)
	if err != nil {
		return nil, err
	}
	topped.Capacity = capacity
	base.AddOutput(topped, bytes.Clone(target.Data))

	change, data := acpTemplate(intent.Account, w.cfg.Params)

	log.Debugf("Sending %v from anyone-can-pay account %x over %d cells",
		intent.Capacity, intent.Account.Blake160, len(sources))

	return SelectCells(sources, policy, &SelectionRules{
		Base:           base,
		Fixed:          []FixedInput{{Cell: target}},
		Change:         &change,
		ChangeData:     data,
		ChangeRequired: true,
		Placeholder:    placeholder,
	})
}

func (w *Wallet) acpTokenTransfer(ctx context.Context, view *walletView,
	intent *AcpTransferIntent, policy FeePolicy, base *cell.Transaction,
	target cell.Cell, sources []cell.Cell,
	placeholder func(*cell.Script) ([]byte, error)) (*AuthoredTx, error) {

	params := w.cfg.Params
	base.AddCellDep(params.Secp256k1.CellDep)
	base.AddCellDep(params.SUDT.CellDep)

	picked, held, err := pickTokens(sources, intent.Amount)
	if err != nil {
		return nil, err
	}

	targetAmount, err := ckbunit.ParseUDTAmount(target.Data)
	if err != nil {
		return nil, err
	}

	received, err := targetAmount.Add(intent.Amount)
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

	base.AddOutput(target.Output.Clone(), withAmount(target.Data, received))

	merged, _ := acpTemplate(intent.Account, params)
	merged.Capacity = pickedCapacity
	base.AddOutput(merged, withAmount(picked[0].Data, remainder))

	fixed := make([]FixedInput, 0, len(picked)+1)
	fixed = append(fixed, FixedInput{Cell: target})
	for _, c := range picked {
		fixed = append(fixed, FixedInput{Cell: c})
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

	log.Debugf("Sending %v tokens from account %x over %d cells",
		intent.Amount, intent.Account.Blake160, len(picked))

	return SelectCells(candidates, policy, &SelectionRules{
		Base:        base,
		Fixed:       fixed,
		Change:      &change,
		ChangeData:  []byte{},
		Placeholder: placeholder,
	})
}
