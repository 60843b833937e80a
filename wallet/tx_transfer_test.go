package wallet

import (
	"testing"

	"github.com/ckbwallet/cellwallet/cell"
	"github.com/ckbwallet/cellwallet/pkg/ckbunit"
	"github.com/ckbwallet/cellwallet/script"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// TestCreateTransferTx checks a transfer pays its outputs and sends the
// change to the next change address.
func TestCreateTransferTx(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)

	payee := script.DefaultLock(foreignBlake160(0x11), testParams)
	typed := plainCell(3, h.keys.receiving[0], ckb(500))
	typed.Output.Type = &payee

	h.expectPlainCells(
		plainCell(1, h.keys.receiving[0], ckb(100)),
		typed,
		plainCell(2, h.keys.receiving[1], ckb(65)),
	)

	atx, err := h.wallet.CreateTransferTx(t.Context(), &TransferIntent{
		WalletID: testWalletID,
		Outputs: []TargetOutput{{
			Address:  testAddress(t, payee),
			Capacity: ckb(80),
		}},
	})
	require.NoError(t, err)
	requireBalanced(t, atx)

	// The typed cell is never spent.
	require.Len(t, atx.Tx.Inputs, 2)
	require.Equal(t, []cell.CellDep{testParams.Secp256k1.CellDep},
		atx.Tx.CellDeps)

	require.True(t, payee.Equal(&atx.Tx.Outputs[0].Lock))
	require.Equal(t, ckb(80), atx.Tx.Outputs[0].Capacity)

	changeLock := script.DefaultLock(h.keys.change[0].Blake160, testParams)
	require.Equal(t, 1, atx.ChangeIndex)
	require.True(t, changeLock.Equal(&atx.Tx.Outputs[1].Lock))
	require.Equal(t, ckb(85)-atx.Fee, atx.Tx.Outputs[1].Capacity)
}

// TestCreateTransferTxTimeLocked checks a payment with a since goes to a
// time locked single key multisig lock of the receiver.
func TestCreateTransferTxTimeLocked(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	h.expectPlainCells(plainCell(1, h.keys.receiving[0], ckb(1000)))

	receiver := foreignBlake160(0x11)
	since := uint64(0x2000_0000_0000_0064)

	atx, err := h.wallet.CreateTransferTx(t.Context(), &TransferIntent{
		WalletID: testWalletID,
		Outputs: []TargetOutput{{
			Address: testAddress(t, script.DefaultLock(
				receiver, testParams,
			)),
			Capacity: ckb(200),
			Since:    fn.Some(since),
		}},
	})
	require.NoError(t, err)
	requireBalanced(t, atx)

	cfg := script.NewSingleKeyConfig(receiver)
	expected := script.MultisigLock(&cfg, fn.Some(since), testParams)
	require.True(t, expected.Equal(&atx.Tx.Outputs[0].Lock))
}

// TestCreateTransferTxErrors checks invalid intents and shortfalls.
func TestCreateTransferTxErrors(t *testing.T) {
	t.Parallel()

	payee := script.DefaultLock(foreignBlake160(0x11), testParams)
	acp := script.AnyoneCanPayLock(foreignBlake160(0x11), testParams)

	testCases := []struct {
		name    string
		intent  *TransferIntent
		cells   []cell.Cell
		noFetch bool
		err     error
	}{{
		name:    "nil intent",
		noFetch: true,
		err:     ErrNilIntent,
	}, {
		name:    "missing wallet id",
		intent:  &TransferIntent{Outputs: []TargetOutput{{}}},
		noFetch: true,
		err:     ErrInvalidIntent,
	}, {
		name:    "no outputs",
		intent:  &TransferIntent{WalletID: testWalletID},
		noFetch: true,
		err:     ErrNoTxOutputs,
	}, {
		name: "output below its occupied capacity",
		intent: &TransferIntent{
			WalletID: testWalletID,
			Outputs: []TargetOutput{{
				Address:  "payee",
				Capacity: ckb(60),
			}},
		},
		noFetch: true,
		err:     ErrCapacityTooSmall,
	}, {
		name: "time lock on a non default lock",
		intent: &TransferIntent{
			WalletID: testWalletID,
			Outputs: []TargetOutput{{
				Address:  "acp",
				Capacity: ckb(100),
				Since:    fn.Some(uint64(1)),
			}},
		},
		noFetch: true,
		err:     ErrInvalidIntent,
	}, {
		name: "not enough capacity",
		intent: &TransferIntent{
			WalletID: testWalletID,
			Outputs: []TargetOutput{{
				Address:  "payee",
				Capacity: ckb(1000),
			}},
		},
		err: ErrCapacityNotEnough,
	}, {
		name: "fee rate too large",
		intent: &TransferIntent{
			WalletID: testWalletID,
			Outputs: []TargetOutput{{
				Address:  "payee",
				Capacity: ckb(100),
			}},
			Fee: &FeeRatePolicy{
				Rate: ckbunit.NewFeeRate(
					DefaultMaxFeeRate.ShannonsPerKB() * 2,
				),
			},
		},
		noFetch: true,
		err:     ErrFeeRateTooLarge,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newTestHarness(t)
			if !tc.noFetch {
				h.expectPlainCells(plainCell(
					1, h.keys.receiving[0], ckb(500),
				))
			}

			intent := tc.intent
			if intent != nil {
				for i, out := range intent.Outputs {
					switch out.Address {
					case "payee":
						intent.Outputs[i].Address =
							testAddress(t, payee)

					case "acp":
						intent.Outputs[i].Address =
							testAddress(t, acp)
					}
				}
			}

			_, err := h.wallet.CreateTransferTx(t.Context(), intent)
			require.ErrorIs(t, err, tc.err)
		})
	}
}

// TestCreateSendAllTx checks every plain cell is spent into the last
// output.
func TestCreateSendAllTx(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	h.expectPlainCells(
		plainCell(1, h.keys.receiving[0], ckb(100)),
		plainCell(2, h.keys.change[1], ckb(65)),
	)

	payee := script.DefaultLock(foreignBlake160(0x11), testParams)
	other := script.DefaultLock(foreignBlake160(0x33), testParams)

	atx, err := h.wallet.CreateSendAllTx(t.Context(), &TransferIntent{
		WalletID: testWalletID,
		Outputs: []TargetOutput{{
			Address:  testAddress(t, other),
			Capacity: ckb(61),
		}, {
			Address: testAddress(t, payee),
		}},
	})
	require.NoError(t, err)
	requireBalanced(t, atx)

	require.Len(t, atx.Tx.Inputs, 2)
	require.Equal(t, -1, atx.ChangeIndex)
	require.Equal(t, ckb(61), atx.Tx.Outputs[0].Capacity)
	require.Equal(t, ckb(104)-atx.Fee, atx.Tx.Outputs[1].Capacity)
}

// TestCreateSendAllTxEmpty checks a wallet without plain cells can't send
// all.
func TestCreateSendAllTxEmpty(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	h.cells.On(
		"CandidateCells", mock.Anything, mock.Anything,
		fn.None[cell.Hash](),
	).Return([]cell.Cell{}, nil).Once()

	payee := script.DefaultLock(foreignBlake160(0x11), testParams)
	_, err := h.wallet.CreateSendAllTx(t.Context(), &TransferIntent{
		WalletID: testWalletID,
		Outputs:  []TargetOutput{{Address: testAddress(t, payee)}},
	})
	require.ErrorIs(t, err, ErrCapacityNotEnough)
}
