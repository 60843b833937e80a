package wallet

import (
	"testing"

	"github.com/ckbwallet/cellwallet/cell"
	"github.com/ckbwallet/cellwallet/chain"
	"github.com/ckbwallet/cellwallet/dao"
	"github.com/ckbwallet/cellwallet/keymgr"
	"github.com/ckbwallet/cellwallet/script"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// timeLockedCell returns a cell under the single key multisig lock of a,
// committed in the block of header.
func timeLockedCell(n uint32, a keymgr.AddressInfo, since fn.Option[uint64],
	header *chain.Header) *cell.Cell {

	cfg := script.NewSingleKeyConfig(a.Blake160)
	c := plainCell(n, a, ckb(300))
	c.Output.Lock = script.MultisigLock(&cfg, since, testParams)
	c.BlockNumber = header.Number
	c.BlockHash = header.Hash

	return &c
}

// TestCreateMultisigTimelockWithdrawTx checks a reached time lock is spent
// in full to the receiving address.
func TestCreateMultisigTimelockWithdrawTx(t *testing.T) {
	t.Parallel()

	committed := testHeader(100, dao.Epoch{Number: 10, Length: 1000},
		1_000_000)
	tip := testHeader(250, dao.Epoch{Number: 17, Index: 1, Length: 1000},
		9_000_000)

	testCases := []struct {
		name    string
		since   uint64
		reached bool
	}{{
		name:    "absolute block number reached",
		since:   250,
		reached: true,
	}, {
		name:  "absolute block number pending",
		since: 251,
	}, {
		name:    "relative epochs reached",
		since:   dao.RelativeEpochSince(6),
		reached: true,
	}, {
		name:  "relative epochs pending",
		since: dao.RelativeEpochSince(8),
	}, {
		name: "absolute timestamp reached",
		since: 0x4000_0000_0000_0000 |
			uint64(9_000),
		reached: true,
	}, {
		name: "relative timestamp pending",
		since: 0xc000_0000_0000_0000 |
			uint64(8_001),
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newTestHarness(t, committed, tip)
			locked := timeLockedCell(
				1, h.keys.receiving[1], fn.Some(tc.since),
				committed,
			)
			h.expectResolve(locked)

			atx, err := h.wallet.CreateMultisigTimelockWithdrawTx(
				t.Context(), &MultisigTimelockIntent{
					WalletID: testWalletID,
					OutPoint: locked.OutPoint,
				},
			)
			if !tc.reached {
				require.ErrorIs(t, err, ErrTimelockNotReached)
				return
			}
			require.NoError(t, err)
			requireBalanced(t, atx)

			require.Len(t, atx.Tx.Inputs, 1)
			require.Equal(t, tc.since, atx.Tx.Inputs[0].Since)
			require.Equal(t,
				[]cell.CellDep{testParams.Multisig.CellDep},
				atx.Tx.CellDeps)

			recv := script.DefaultLock(
				h.keys.receiving[0].Blake160, testParams,
			)
			require.Len(t, atx.Tx.Outputs, 1)
			require.True(t, recv.Equal(&atx.Tx.Outputs[0].Lock))
			require.Equal(t, ckb(300)-atx.Fee,
				atx.Tx.Outputs[0].Capacity)

			// Config, then one signature.
			witness, err := cell.ParseWitnessArgs(atx.Tx.Witnesses[0])
			require.NoError(t, err)
			require.Len(t, witness.Lock, 4+20+script.SignatureSize)
		})
	}
}

// TestCreateMultisigTimelockWithdrawTxAddress checks an explicit address
// receives the capacity.
func TestCreateMultisigTimelockWithdrawTxAddress(t *testing.T) {
	t.Parallel()

	tip := testHeader(250, dao.Epoch{Number: 17, Length: 1000}, 9_000_000)
	h := newTestHarness(t, tip)

	locked := timeLockedCell(1, h.keys.receiving[1], fn.Some(uint64(10)),
		tip)
	h.expectResolve(locked)

	payee := script.DefaultLock(foreignBlake160(0x11), testParams)
	atx, err := h.wallet.CreateMultisigTimelockWithdrawTx(
		t.Context(), &MultisigTimelockIntent{
			WalletID: testWalletID,
			OutPoint: locked.OutPoint,
			Address:  testAddress(t, payee),
		},
	)
	require.NoError(t, err)
	require.True(t, payee.Equal(&atx.Tx.Outputs[0].Lock))
}

// TestCreateMultisigTimelockWithdrawTxErrors checks cells that aren't
// spendable time locks of the wallet are refused.
func TestCreateMultisigTimelockWithdrawTxErrors(t *testing.T) {
	t.Parallel()

	tip := testHeader(250, dao.Epoch{Number: 17, Length: 1000}, 9_000_000)
	keys := deriveTestKeys(t)

	plain := plainCell(1, keys.receiving[0], ckb(300))
	noSince := timeLockedCell(2, keys.receiving[0], fn.None[uint64](), tip)
	foreign := timeLockedCell(3, keymgr.AddressInfo{
		Blake160: foreignBlake160(0x44),
	}, fn.Some(uint64(10)), tip)
	typed := timeLockedCell(4, keys.receiving[0], fn.Some(uint64(10)), tip)
	daoType := script.DAOType(testParams)
	typed.Output.Type = &daoType
	invalid := timeLockedCell(
		5, keys.receiving[0], fn.Some(uint64(0x6000_0000_0000_0001)),
		tip,
	)

	testCases := []struct {
		name string
		cell *cell.Cell
		err  error
	}{{
		name: "plain lock",
		cell: &plain,
		err:  ErrNotMultisigTimelock,
	}, {
		name: "no since",
		cell: noSince,
		err:  ErrNotMultisigTimelock,
	}, {
		name: "foreign key",
		cell: foreign,
		err:  ErrNotMultisigTimelock,
	}, {
		name: "typed cell",
		cell: typed,
		err:  ErrNotMultisigTimelock,
	}, {
		name: "reserved since metric",
		cell: invalid,
		err:  dao.ErrInvalidSince,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newTestHarness(t, tip)
			h.expectResolve(tc.cell)

			_, err := h.wallet.CreateMultisigTimelockWithdrawTx(
				t.Context(), &MultisigTimelockIntent{
					WalletID: testWalletID,
					OutPoint: tc.cell.OutPoint,
				},
			)
			require.ErrorIs(t, err, tc.err)
		})
	}
}

// TestCreateMultisigTimelockWithdrawTxMissing checks a spent cell is
// reported as not found.
func TestCreateMultisigTimelockWithdrawTxMissing(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, testHeader(1, dao.Epoch{Length: 1}, 0))

	op := testOutPoint(9)
	h.cells.On("ResolveCell", mock.Anything, op).
		Return(nil, ErrCellNotFound).
		Once()

	_, err := h.wallet.CreateMultisigTimelockWithdrawTx(
		t.Context(), &MultisigTimelockIntent{
			WalletID: testWalletID,
			OutPoint: op,
		},
	)
	require.ErrorIs(t, err, ErrCellNotFound)
}
