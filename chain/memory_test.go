package chain

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/ckbwallet/cellwallet/cell"
	"github.com/ckbwallet/cellwallet/dao"
	"github.com/ckbwallet/cellwallet/pkg/ckbunit"
	"github.com/stretchr/testify/require"
)

func testHeader(number uint64, ar uint64) *Header {
	field := make([]byte, dao.HeaderDaoSize)
	binary.LittleEndian.PutUint64(field[8:], ar)

	return &Header{
		Hash:   cell.Hash{byte(number)},
		Number: number,
		Epoch:  dao.Epoch{Number: number / 10, Index: 1, Length: 10},
		Dao:    field,
	}
}

// TestMemoryOracle checks header lookups and tip tracking.
func TestMemoryOracle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	oracle := NewMemoryOracle(testHeader(5, 1), testHeader(9, 1))
	oracle.AddHeader(testHeader(7, 1))

	tip, err := oracle.TipHeader(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(9), tip.Number)

	h, err := oracle.HeaderByNumber(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, cell.Hash{7}, h.Hash)

	h, err = oracle.HeaderByHash(ctx, cell.Hash{5})
	require.NoError(t, err)
	require.Equal(t, uint64(5), h.Number)

	_, err = oracle.HeaderByNumber(ctx, 6)
	require.ErrorIs(t, err, ErrHeaderNotFound)

	_, err = NewMemoryOracle().TipHeader(ctx)
	require.ErrorIs(t, err, ErrHeaderNotFound)
}

// TestLocalDaoCalculator checks the withdraw amount is derived from both
// headers' accumulated rates.
func TestLocalDaoCalculator(t *testing.T) {
	t.Parallel()

	deposit := &cell.Cell{
		Output: cell.CellOutput{
			Capacity: 1102 * ckbunit.ShannonPerCKB,
			Lock: cell.Script{
				HashType: cell.HashTypeType,
				Args:     make([]byte, 20),
			},
			Type: &cell.Script{HashType: cell.HashTypeType},
		},
		Data:      dao.DepositData(),
		BlockHash: cell.Hash{5},
	}

	calc := &LocalDaoCalculator{Oracle: NewMemoryOracle(
		testHeader(5, 100), testHeader(9, 110),
	)}

	got, err := calc.MaximumWithdraw(
		context.Background(), deposit, cell.Hash{9},
	)
	require.NoError(t, err)

	// 1000 CKB earn 10%, the 102 occupied CKB earn nothing.
	require.Equal(t, 1202*ckbunit.ShannonPerCKB, got)

	_, err = calc.MaximumWithdraw(
		context.Background(), deposit, cell.Hash{8},
	)
	require.ErrorIs(t, err, ErrHeaderNotFound)
}

// TestHeaderJSON checks the packed epoch survives JSON.
func TestHeaderJSON(t *testing.T) {
	t.Parallel()

	h := testHeader(42, 7)
	b, err := json.Marshal(h)
	require.NoError(t, err)

	var decoded Header
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.Equal(t, *h, decoded)
}
