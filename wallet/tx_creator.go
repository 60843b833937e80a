// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"bytes"
	"fmt"

	"github.com/ckbwallet/cellwallet/cell"
	"github.com/ckbwallet/cellwallet/pkg/ckbunit"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// AuthoredTx is an unsigned transaction together with what the signer and
// the caller need to know about it.
type AuthoredTx struct {
	// Tx is the transaction. Its witnesses hold zeroed placeholders as
	// large as the final signatures.
	Tx *cell.Transaction

	// InputCells are the cells spent by Tx, in input order.
	InputCells []cell.Cell

	// InputValues are the capacities the inputs contribute. They differ
	// from the cell capacity only for DAO withdrawals, which add the
	// interest.
	InputValues []ckbunit.Capacity

	// Fee is the fee paid.
	Fee ckbunit.Capacity

	// ChangeIndex is the position of the change output, or -1.
	ChangeIndex int
}

// FixedInput is an input a transaction must spend whatever the selection
// adds to it.
type FixedInput struct {
	// Cell is the cell being spent.
	Cell cell.Cell

	// Value is what the input contributes. Zero means the cell's
	// capacity.
	Value ckbunit.Capacity

	// Since is the input's since field.
	Since uint64

	// InputType is set on the input's witness when not nil.
	InputType []byte
}

func (f *FixedInput) value() ckbunit.Capacity {
	if f.Value == 0 {
		return f.Cell.Output.Capacity
	}

	return f.Value
}

// SelectionRules describe the transaction a selection funds.
type SelectionRules struct {
	// Base holds the cell deps, header deps and outputs of the
	// transaction. Its inputs and witnesses are ignored.
	Base *cell.Transaction

	// Fixed are the inputs spent ahead of any selected cell.
	Fixed []FixedInput

	// Change is the template of the change output. Its capacity is
	// filled in by the selection. It is ignored in send-all mode.
	Change *cell.CellOutput

	// ChangeData is the data of the change output.
	ChangeData []byte

	// MinChange is the least capacity the change output may carry. The
	// change output's occupied capacity is used when it is lower.
	MinChange ckbunit.Capacity

	// ChangeRequired makes a transaction without change invalid, as
	// when the change cell is an anyone-can-pay cell being drained.
	ChangeRequired bool

	// SendAll spends every candidate and gives what is left after the
	// other outputs and the fee to the last output.
	SendAll bool

	// Placeholder returns the zeroed witness lock for an input lock.
	Placeholder func(lock *cell.Script) ([]byte, error)
}

// inputSource returns candidate cells, in order, until their capacity
// reaches the target or the candidates run out. Each call returns all cells
// picked so far.
type inputSource func(target ckbunit.Capacity) (ckbunit.Capacity,
	[]cell.Cell, error)

// makeInputSource creates an input source over the eligible cells. Cells
// are taken in the order given and never reordered by value.
func makeInputSource(eligible []cell.Cell) inputSource {
	// Current inputs and their total value. These are closed over by the
	// returned input source and reused across multiple calls.
	var (
		currentTotal  ckbunit.Capacity
		currentInputs = make([]cell.Cell, 0, len(eligible))
	)

	return func(target ckbunit.Capacity) (ckbunit.Capacity, []cell.Cell,
		error) {

		for currentTotal < target && len(eligible) != 0 {
			next := eligible[0]
			eligible = eligible[1:]

			total, err := ckbunit.AddCapacity(
				currentTotal, next.Output.Capacity,
			)
			if err != nil {
				return 0, nil, err
			}

			currentTotal = total
			currentInputs = append(currentInputs, next)
		}

		n := len(currentInputs)

		return currentTotal, currentInputs[:n:n], nil
	}
}

// SelectCells funds rules.Base from the candidate cells, scanning them in
// the order given. The fee depends on how many inputs are picked, so the
// selection repeats until the picked cells cover the outputs, the fee for
// that many inputs, and a change cell of at least the minimum capacity. A
// transaction whose inputs exactly cover the outputs and fee needs no
// change.
//
// It fails with ErrCapacityNotEnough when the candidates can't cover the
// outputs and fee, and with ErrCapacityNotEnoughForChange when they can but
// what is left is too small for a change cell.
func SelectCells(candidates []cell.Cell, policy FeePolicy,
	rules *SelectionRules) (*AuthoredTx, error) {

	if rules == nil || rules.Base == nil || rules.Placeholder == nil {
		return nil, fmt.Errorf("%w: incomplete selection rules",
			ErrInvalidIntent)
	}

	if err := checkFixed(rules.Fixed); err != nil {
		return nil, err
	}

	candidates = excludeFixed(candidates, rules.Fixed)

	if rules.SendAll {
		return selectAll(candidates, policy, rules)
	}

	if rules.Change == nil {
		return nil, fmt.Errorf("%w: missing change output",
			ErrInvalidIntent)
	}

	outSum, err := sumOutputs(rules.Base.Outputs)
	if err != nil {
		return nil, err
	}

	fixedSum, err := sumFixed(rules.Fixed)
	if err != nil {
		return nil, err
	}

	minChange := max(
		rules.MinChange, rules.Change.OccupiedCapacity(rules.ChangeData),
	)

	source := makeInputSource(candidates)
	target := outSum
	for {
		var need ckbunit.Capacity
		if target > fixedSum {
			need = target - fixedSum
		}

		selectedSum, selected, err := source(need)
		if err != nil {
			return nil, err
		}

		total, err := ckbunit.AddCapacity(fixedSum, selectedSum)
		if err != nil {
			return nil, err
		}

		noChange, _, err := rules.build(selected, false)
		if err != nil {
			return nil, err
		}

		withChange, changeIdx, err := rules.build(selected, true)
		if err != nil {
			return nil, err
		}

		feeNoChange := policy.feeFor(noChange)
		feeChange := policy.feeFor(withChange)

		needNoChange, err := ckbunit.SumCapacity(outSum, feeNoChange)
		if err != nil {
			return nil, err
		}

		needChange, err := ckbunit.SumCapacity(
			outSum, feeChange, minChange,
		)
		if err != nil {
			return nil, err
		}

		log.Debugf("Selected %d of %d cells: total=%v, outputs=%v, "+
			"fee=%v, fee with change=%v", len(selected),
			len(candidates), total, outSum, feeNoChange, feeChange)

		switch {
		case total >= needChange:
			withChange.Outputs[changeIdx].Capacity = total - outSum -
				feeChange

			return rules.authored(withChange, selected, feeChange,
				changeIdx)

		case !rules.ChangeRequired && total == needNoChange:
			return rules.authored(noChange, selected, feeNoChange, -1)
		}

		if len(selected) == len(candidates) {
			forChange := !rules.ChangeRequired && total > needNoChange
			required := needNoChange
			if forChange || rules.ChangeRequired {
				required = needChange
			}

			return nil, &CapacityNotEnoughError{
				Required:  required,
				Available: total,
				ForChange: forChange,
			}
		}

		// Ask for enough to cover what is missing now. The fee only
		// grows with more inputs, so the next round re-checks it.
		if total < needNoChange {
			target = needNoChange
		} else {
			target = needChange
		}
	}
}

// selectAll spends every candidate and gives the remainder to the last
// output.
func selectAll(candidates []cell.Cell, policy FeePolicy,
	rules *SelectionRules) (*AuthoredTx, error) {

	if len(rules.Base.Outputs) == 0 {
		return nil, ErrNoTxOutputs
	}

	fixedSum, err := sumFixed(rules.Fixed)
	if err != nil {
		return nil, err
	}

	selectedSum, err := sumCells(candidates)
	if err != nil {
		return nil, err
	}

	total, err := ckbunit.AddCapacity(fixedSum, selectedSum)
	if err != nil {
		return nil, err
	}

	tx, _, err := rules.build(candidates, false)
	if err != nil {
		return nil, err
	}

	last := len(tx.Outputs) - 1
	others, err := sumOutputs(tx.Outputs[:last])
	if err != nil {
		return nil, err
	}

	fee := policy.feeFor(tx)
	occupied := tx.Outputs[last].OccupiedCapacity(tx.OutputsData[last])

	required, err := ckbunit.SumCapacity(others, fee, occupied)
	if err != nil {
		return nil, err
	}

	if total < required {
		return nil, &CapacityNotEnoughError{
			Required:  required,
			Available: total,
		}
	}

	tx.Outputs[last].Capacity = total - others - fee

	log.Debugf("Sending all of %d cells: total=%v, fee=%v, last "+
		"output=%v", len(candidates)+len(rules.Fixed), total, fee,
		tx.Outputs[last].Capacity)

	return rules.authored(tx, candidates, fee, -1)
}

// build lays out the transaction spending the fixed inputs and then the
// selected cells, with placeholder witnesses.
func (r *SelectionRules) build(selected []cell.Cell,
	withChange bool) (*cell.Transaction, int, error) {

	tx := r.Base.Clone()
	tx.Inputs = make([]cell.CellInput, 0, len(r.Fixed)+len(selected))
	tx.Witnesses = nil

	locks := make([]*cell.Script, 0, len(r.Fixed)+len(selected))
	args := make([]cell.WitnessArgs, 0, len(r.Fixed)+len(selected))
	for i := range r.Fixed {
		f := &r.Fixed[i]
		tx.Inputs = append(tx.Inputs, cell.CellInput{
			Since:          f.Since,
			PreviousOutput: f.Cell.OutPoint,
		})
		locks = append(locks, &f.Cell.Output.Lock)
		args = append(args, cell.WitnessArgs{
			InputType: bytes.Clone(f.InputType),
		})
	}
	for i := range selected {
		tx.Inputs = append(tx.Inputs, cell.CellInput{
			PreviousOutput: selected[i].OutPoint,
		})
		locks = append(locks, &selected[i].Output.Lock)
		args = append(args, cell.WitnessArgs{})
	}

	changeIdx := -1
	if withChange {
		changeIdx = len(tx.Outputs)
		tx.AddOutput(r.Change.Clone(), bytes.Clone(r.ChangeData))
	}

	witnesses, err := placeWitnesses(locks, args, r.Placeholder)
	if err != nil {
		return nil, 0, err
	}
	tx.Witnesses = witnesses

	return tx, changeIdx, nil
}

// authored wraps a finished transaction and checks it balances.
func (r *SelectionRules) authored(tx *cell.Transaction,
	selected []cell.Cell, fee ckbunit.Capacity,
	changeIdx int) (*AuthoredTx, error) {

	atx := &AuthoredTx{
		Tx:          tx,
		InputCells:  make([]cell.Cell, 0, len(tx.Inputs)),
		InputValues: make([]ckbunit.Capacity, 0, len(tx.Inputs)),
		Fee:         fee,
		ChangeIndex: changeIdx,
	}
	for i := range r.Fixed {
		atx.InputCells = append(atx.InputCells, r.Fixed[i].Cell)
		atx.InputValues = append(atx.InputValues, r.Fixed[i].value())
	}
	for _, c := range selected {
		atx.InputCells = append(atx.InputCells, c)
		atx.InputValues = append(atx.InputValues, c.Output.Capacity)
	}

	if err := checkBalanced(atx); err != nil {
		return nil, err
	}

	log.Tracef("Authored transaction %v: %v", tx.Hash(), spewTx(tx))

	return atx, nil
}

// placeWitnesses returns the witnesses for inputs with the given locks. The
// first input of each lock group gets the placeholder lock, the others keep
// only their type fields and are empty when they have none.
func placeWitnesses(locks []*cell.Script, args []cell.WitnessArgs,
	placeholder func(*cell.Script) ([]byte, error)) ([][]byte, error) {

	seen := fn.NewSet[cell.Hash]()
	witnesses := make([][]byte, len(locks))
	for i, lock := range locks {
		w := args[i]

		lockHash := lock.Hash()
		if !seen.Contains(lockHash) {
			seen.Add(lockHash)

			ph, err := placeholder(lock)
			if err != nil {
				return nil, err
			}
			w.Lock = ph
		}

		if w.IsEmpty() {
			witnesses[i] = []byte{}
			continue
		}
		witnesses[i] = w.Serialize()
	}

	return witnesses, nil
}

// checkBalanced asserts the inputs pay for the outputs and the fee to the
// shannon.
func checkBalanced(atx *AuthoredTx) error {
	tx := atx.Tx
	if len(tx.Outputs) != len(tx.OutputsData) {
		return fmt.Errorf("%w: %d outputs with %d data", ErrUnbalancedTx,
			len(tx.Outputs), len(tx.OutputsData))
	}

	if len(atx.InputValues) != len(tx.Inputs) ||
		len(tx.Witnesses) < len(tx.Inputs) {

		return fmt.Errorf("%w: %d inputs, %d values, %d witnesses",
			ErrUnbalancedTx, len(tx.Inputs), len(atx.InputValues),
			len(tx.Witnesses))
	}

	in, err := ckbunit.SumCapacity(atx.InputValues...)
	if err != nil {
		return err
	}

	out, err := sumOutputs(tx.Outputs)
	if err != nil {
		return err
	}

	spent, err := ckbunit.AddCapacity(out, atx.Fee)
	if err != nil {
		return err
	}

	if in != spent {
		return fmt.Errorf("%w: inputs %v, outputs %v, fee %v",
			ErrUnbalancedTx, in, out, atx.Fee)
	}

	for i := range tx.Outputs {
		o := &tx.Outputs[i]
		if occupied := o.OccupiedCapacity(tx.OutputsData[i]); o.Capacity <
			occupied {

			return fmt.Errorf("%w: output %d has %v, occupies %v",
				ErrCapacityTooSmall, i, o.Capacity, occupied)
		}
	}

	return nil
}

// excludeFixed drops candidates already spent as fixed inputs.
// checkFixed rejects fixed inputs that spend the same cell twice.
func checkFixed(fixed []FixedInput) error {
	seen := fn.NewSet[cell.OutPoint]()
	for _, f := range fixed {
		if seen.Contains(f.Cell.OutPoint) {
			return fmt.Errorf("%w: %v", ErrDuplicatedOutPoint,
				f.Cell.OutPoint)
		}
		seen.Add(f.Cell.OutPoint)
	}

	return nil
}

func excludeFixed(candidates []cell.Cell, fixed []FixedInput) []cell.Cell {
	if len(fixed) == 0 {
		return candidates
	}

	spent := fn.NewSet[cell.OutPoint]()
	for _, f := range fixed {
		spent.Add(f.Cell.OutPoint)
	}

	return fn.Filter(candidates, func(c cell.Cell) bool {
		return !spent.Contains(c.OutPoint)
	})
}

func sumOutputs(outputs []cell.CellOutput) (ckbunit.Capacity, error) {
	return ckbunit.SumCapacity(fn.Map(outputs,
		func(o cell.CellOutput) ckbunit.Capacity {
			return o.Capacity
		})...)
}

func sumCells(cells []cell.Cell) (ckbunit.Capacity, error) {
	return ckbunit.SumCapacity(fn.Map(cells,
		func(c cell.Cell) ckbunit.Capacity {
			return c.Output.Capacity
		})...)
}

func sumFixed(fixed []FixedInput) (ckbunit.Capacity, error) {
	return ckbunit.SumCapacity(fn.Map(fixed,
		func(f FixedInput) ckbunit.Capacity {
			return f.value()
		})...)
}
