package wallet

import (
	"errors"
	"testing"

	"github.com/ckbwallet/cellwallet/cell"
	"github.com/ckbwallet/cellwallet/pkg/ckbunit"
	"github.com/ckbwallet/cellwallet/script"
	"github.com/stretchr/testify/require"
)

// selectionFixture returns rules paying capacity to a foreign default lock,
// with change to the wallet's first change address.
func selectionFixture(t *testing.T, keys *testKeys,
	capacity ckbunit.Capacity) *SelectionRules {

	t.Helper()

	base := &cell.Transaction{}
	base.AddCellDep(testParams.Secp256k1.CellDep)
	base.AddOutput(cell.CellOutput{
		Capacity: capacity,
		Lock:     script.DefaultLock(foreignBlake160(0x11), testParams),
	}, []byte{})

	change := cell.CellOutput{
		Lock: script.DefaultLock(keys.change[0].Blake160, testParams),
	}

	return &SelectionRules{
		Base:        base,
		Change:      &change,
		ChangeData:  []byte{},
		Placeholder: newLockIndex(keys.all(), testParams).placeholder,
	}
}

// TestSelectCells checks the selection picks cells in order until the
// outputs, the fee and the change are covered.
func TestSelectCells(t *testing.T) {
	t.Parallel()

	keys := deriveTestKeys(t)
	recv := keys.receiving[0]
	exact := &ExactFeePolicy{Fee: 1000}

	testCases := []struct {
		name       string
		candidates []cell.Cell
		capacity   ckbunit.Capacity
		policy     FeePolicy
		inputs     int
		change     ckbunit.Capacity
		noChange   bool
		err        error
	}{{
		name: "second cell pays for the change",
		candidates: []cell.Cell{
			plainCell(1, recv, ckb(100)),
			plainCell(2, recv, ckb(65)),
		},
		capacity: ckb(80),
		policy:   exact,
		inputs:   2,
		change:   ckb(85) - 1000,
	}, {
		name: "first cell is enough",
		candidates: []cell.Cell{
			plainCell(1, recv, ckb(200)),
			plainCell(2, recv, ckb(65)),
		},
		capacity: ckb(80),
		policy:   exact,
		inputs:   1,
		change:   ckb(120) - 1000,
	}, {
		name: "exact amount needs no change",
		candidates: []cell.Cell{
			plainCell(1, recv, ckb(100)+1000),
		},
		capacity: ckb(100),
		policy:   exact,
		inputs:   1,
		noChange: true,
	}, {
		name: "not enough capacity",
		candidates: []cell.Cell{
			plainCell(1, recv, ckb(50)),
		},
		capacity: ckb(80),
		policy:   exact,
		err:      ErrCapacityNotEnough,
	}, {
		name: "not enough for change",
		candidates: []cell.Cell{
			plainCell(1, recv, ckb(100)),
		},
		capacity: ckb(80),
		policy:   exact,
		err:      ErrCapacityNotEnoughForChange,
	}, {
		name:     "no candidates",
		capacity: ckb(80),
		policy:   exact,
		err:      ErrCapacityNotEnough,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rules := selectionFixture(t, keys, tc.capacity)

			atx, err := SelectCells(tc.candidates, tc.policy, rules)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)

				var notEnough *CapacityNotEnoughError
				require.True(t, errors.As(err, &notEnough))

				return
			}
			require.NoError(t, err)
			requireBalanced(t, atx)

			require.Len(t, atx.Tx.Inputs, tc.inputs)
			for i := range tc.inputs {
				require.Equal(t, tc.candidates[i].OutPoint,
					atx.Tx.Inputs[i].PreviousOutput)
			}

			if tc.noChange {
				require.Equal(t, -1, atx.ChangeIndex)
				require.Len(t, atx.Tx.Outputs, 1)

				return
			}

			require.Equal(t, 1, atx.ChangeIndex)
			require.Equal(t, tc.change,
				atx.Tx.Outputs[atx.ChangeIndex].Capacity)
		})
	}
}

// TestSelectCellsFeeRate checks a rate based fee matches the size of the
// transaction it was computed for.
func TestSelectCellsFeeRate(t *testing.T) {
	t.Parallel()

	keys := deriveTestKeys(t)
	candidates := []cell.Cell{
		plainCell(1, keys.receiving[0], ckb(100)),
		plainCell(2, keys.receiving[1], ckb(65)),
		plainCell(3, keys.receiving[0], ckb(1000)),
	}

	policy := &FeeRatePolicy{Rate: ckbunit.DefaultFeeRate}
	rules := selectionFixture(t, keys, ckb(80))

	atx, err := SelectCells(candidates, policy, rules)
	require.NoError(t, err)
	requireBalanced(t, atx)

	require.Len(t, atx.Tx.Inputs, 2)
	require.Equal(t, EstimateFee(atx.Tx.SerializedSize(),
		ckbunit.DefaultFeeRate), atx.Fee)
	require.Equal(t, ckb(165)-ckb(80)-atx.Fee,
		atx.Tx.Outputs[atx.ChangeIndex].Capacity)
}

// TestSelectCellsWitnesses checks only the first input of each lock gets a
// placeholder.
func TestSelectCellsWitnesses(t *testing.T) {
	t.Parallel()

	keys := deriveTestKeys(t)
	candidates := []cell.Cell{
		plainCell(1, keys.receiving[0], ckb(40)),
		plainCell(2, keys.receiving[1], ckb(40)),
		plainCell(3, keys.receiving[0], ckb(40)),
		plainCell(4, keys.receiving[1], ckb(400)),
	}

	rules := selectionFixture(t, keys, ckb(150))
	atx, err := SelectCells(candidates, &ExactFeePolicy{Fee: 1000}, rules)
	require.NoError(t, err)
	requireBalanced(t, atx)
	require.Len(t, atx.Tx.Witnesses, 4)

	placeholder := (&cell.WitnessArgs{
		Lock: make([]byte, script.SignatureSize),
	}).Serialize()
	require.Equal(t, placeholder, atx.Tx.Witnesses[0])
	require.Equal(t, placeholder, atx.Tx.Witnesses[1])
	require.Empty(t, atx.Tx.Witnesses[2])
	require.Empty(t, atx.Tx.Witnesses[3])
}

// TestSelectCellsFixed checks fixed inputs lead the transaction, count
// toward the outputs and are never selected twice.
func TestSelectCellsFixed(t *testing.T) {
	t.Parallel()

	keys := deriveTestKeys(t)
	fixed := plainCell(1, keys.receiving[0], ckb(70))
	candidates := []cell.Cell{
		fixed,
		plainCell(2, keys.receiving[1], ckb(100)),
	}

	rules := selectionFixture(t, keys, ckb(100))
	rules.Fixed = []FixedInput{{
		Cell:      fixed,
		Since:     42,
		InputType: []byte{0x01},
	}}

	atx, err := SelectCells(candidates, &ExactFeePolicy{Fee: 1000}, rules)
	require.NoError(t, err)
	requireBalanced(t, atx)

	require.Len(t, atx.Tx.Inputs, 2)
	require.Equal(t, fixed.OutPoint, atx.Tx.Inputs[0].PreviousOutput)
	require.EqualValues(t, 42, atx.Tx.Inputs[0].Since)
	require.Equal(t, candidates[1].OutPoint,
		atx.Tx.Inputs[1].PreviousOutput)

	witness, err := cell.ParseWitnessArgs(atx.Tx.Witnesses[0])
	require.NoError(t, err)
	require.Equal(t, []byte{0x01}, witness.InputType)
	require.Len(t, witness.Lock, script.SignatureSize)

	require.Equal(t, ckb(70)-1000, atx.Tx.Outputs[atx.ChangeIndex].Capacity)
}

// TestSelectCellsDuplicatedFixed checks a cell can't be a fixed input
// twice, with or without send-all.
func TestSelectCellsDuplicatedFixed(t *testing.T) {
	t.Parallel()

	keys := deriveTestKeys(t)
	fixed := plainCell(1, keys.receiving[0], ckb(200))

	testCases := []struct {
		name    string
		sendAll bool
	}{{
		name: "with change",
	}, {
		name:    "send all",
		sendAll: true,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rules := selectionFixture(t, keys, ckb(100))
			rules.SendAll = tc.sendAll
			rules.Fixed = []FixedInput{
				{Cell: fixed}, {Cell: fixed, Since: 1},
			}

			atx, err := SelectCells(
				nil, &ExactFeePolicy{Fee: 1000}, rules,
			)
			require.ErrorIs(t, err, ErrDuplicatedOutPoint)
			require.Nil(t, atx)
		})
	}
}

// TestSelectCellsChangeRequired checks a required change output turns an
// exact match into a shortfall.
func TestSelectCellsChangeRequired(t *testing.T) {
	t.Parallel()

	keys := deriveTestKeys(t)
	candidates := []cell.Cell{
		plainCell(1, keys.receiving[0], ckb(100)+1000),
	}

	rules := selectionFixture(t, keys, ckb(100))
	rules.ChangeRequired = true

	_, err := SelectCells(candidates, &ExactFeePolicy{Fee: 1000}, rules)
	require.ErrorIs(t, err, ErrCapacityNotEnough)
}

// TestSelectCellsSendAll checks every candidate is spent and the last
// output takes the remainder.
func TestSelectCellsSendAll(t *testing.T) {
	t.Parallel()

	keys := deriveTestKeys(t)
	candidates := []cell.Cell{
		plainCell(1, keys.receiving[0], ckb(100)),
		plainCell(2, keys.receiving[1], ckb(65)),
	}

	rules := selectionFixture(t, keys, 0)
	rules.SendAll = true
	rules.Change = nil

	policy := &FeeRatePolicy{Rate: ckbunit.DefaultFeeRate}
	atx, err := SelectCells(candidates, policy, rules)
	require.NoError(t, err)
	requireBalanced(t, atx)

	require.Len(t, atx.Tx.Inputs, 2)
	require.Len(t, atx.Tx.Outputs, 1)
	require.Equal(t, -1, atx.ChangeIndex)
	require.Equal(t, ckb(165)-atx.Fee, atx.Tx.Outputs[0].Capacity)

	// Too little left for the last output's own cell.
	rules = selectionFixture(t, keys, 0)
	rules.SendAll = true
	_, err = SelectCells(
		[]cell.Cell{plainCell(1, keys.receiving[0], ckb(61))}, policy,
		rules,
	)
	require.ErrorIs(t, err, ErrCapacityNotEnough)
}

// TestSelectCellsRules checks incomplete rules are rejected.
func TestSelectCellsRules(t *testing.T) {
	t.Parallel()

	keys := deriveTestKeys(t)
	policy := &ExactFeePolicy{Fee: 1000}

	_, err := SelectCells(nil, policy, nil)
	require.ErrorIs(t, err, ErrInvalidIntent)

	rules := selectionFixture(t, keys, ckb(100))
	rules.Change = nil
	_, err = SelectCells(nil, policy, rules)
	require.ErrorIs(t, err, ErrInvalidIntent)

	rules = selectionFixture(t, keys, ckb(100))
	rules.Base.Outputs = nil
	rules.Base.OutputsData = nil
	rules.SendAll = true
	_, err = SelectCells(nil, policy, rules)
	require.ErrorIs(t, err, ErrNoTxOutputs)
}

// TestSelectCellsForeignLock checks a candidate the wallet can't sign for
// fails the selection.
func TestSelectCellsForeignLock(t *testing.T) {
	t.Parallel()

	keys := deriveTestKeys(t)
	foreign := plainCell(1, keys.receiving[0], ckb(500))
	foreign.Output.Lock = script.DefaultLock(
		foreignBlake160(0x22), testParams,
	)

	rules := selectionFixture(t, keys, ckb(100))
	_, err := SelectCells(
		[]cell.Cell{foreign}, &ExactFeePolicy{Fee: 1000}, rules,
	)
	require.ErrorIs(t, err, ErrPrivateKeyNotFound)
}
