package db

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/ckbwallet/cellwallet/cell"
	"github.com/ckbwallet/cellwallet/chain"
	"github.com/ckbwallet/cellwallet/dao"
	"github.com/ckbwallet/cellwallet/keymgr"
	"github.com/ckbwallet/cellwallet/netparams"
	"github.com/ckbwallet/cellwallet/pkg/ckbhash"
	"github.com/ckbwallet/cellwallet/pkg/ckbunit"
	"github.com/ckbwallet/cellwallet/script"
	"github.com/stretchr/testify/require"
)

var testParams = &netparams.TestNetParams

// newTestStore opens a store on a fresh database file. Each test gets its own
// temporary directory.
func newTestStore(t *testing.T) (*SQLiteStore, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "wallet.db")
	store, err := Open(path)
	require.NoError(t, err, "failed to open store")

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store, path
}

func blake160(b byte) [ckbhash.Blake160Size]byte {
	var h [ckbhash.Blake160Size]byte
	for i := range h {
		h[i] = b
	}

	return h
}

// testCell returns a cell with a default lock for the key hash.
func testCell(n byte, owner [ckbhash.Blake160Size]byte, ckb uint64,
	typeScript *cell.Script) cell.Cell {

	var txHash cell.Hash
	txHash[0] = n

	capacity, _ := ckbunit.NewCapacityFromCKB(ckb)

	return cell.Cell{
		OutPoint: cell.OutPoint{TxHash: txHash, Index: uint32(n)},
		Output: cell.CellOutput{
			Capacity: capacity,
			Lock:     script.DefaultLock(owner, testParams),
			Type:     typeScript,
		},
		Data:        []byte{},
		BlockNumber: uint64(n),
	}
}

func testHeader(number uint64, tag byte) *chain.Header {
	var hash cell.Hash
	hash[0] = byte(number)
	hash[1] = tag

	return &chain.Header{
		Hash:      hash,
		Number:    number,
		Epoch:     dao.Epoch{Number: number, Index: 0, Length: 1000},
		Timestamp: 1_600_000_000_000 + number,
		Dao:       bytes.Repeat([]byte{tag}, dao.HeaderDaoSize),
	}
}

func newTestKeystore(t *testing.T, passphrase []byte) *keymgr.Keystore {
	t.Helper()

	ks, err := keymgr.NewKeystore(keymgr.CreateParams{
		Mode:       keymgr.ModeImportSeed,
		Seed:       bytes.Repeat([]byte{0x2a}, hdkeychain.RecommendedSeedLen),
		Passphrase: passphrase,
		Scrypt:     &keymgr.FastScryptOptions,
	}, testParams)
	require.NoError(t, err)

	return ks
}

// TestNewSQLiteStoreNilDB checks a store can't be built without a
// connection.
func TestNewSQLiteStoreNilDB(t *testing.T) {
	t.Parallel()

	store, err := NewSQLiteStore(nil)
	require.ErrorIs(t, err, ErrNilDB)
	require.Nil(t, store)
}

// TestOpenTwice checks migrations are skipped on an up to date database.
func TestOpenTwice(t *testing.T) {
	t.Parallel()

	store, path := newTestStore(t)
	require.NoError(t, store.InsertCells(
		context.Background(), testCell(1, blake160(1), 100, nil),
	))

	again, err := Open(path)
	require.NoError(t, err)
	defer again.Close()

	got, err := again.ResolveCell(
		context.Background(), testCell(1, blake160(1), 100, nil).OutPoint,
	)
	require.NoError(t, err)
	require.Equal(t, uint64(1), got.BlockNumber)
}

// TestSafeCasting checks the integer conversions at the SQLite boundary.
func TestSafeCasting(t *testing.T) {
	t.Parallel()

	_, err := uint64ToInt64(1 << 63)
	require.ErrorIs(t, err, ErrCastingOverflow)

	v, err := uint64ToInt64(1<<63 - 1)
	require.NoError(t, err)
	require.Equal(t, int64(1<<63-1), v)

	_, err = int64ToUint64(-1)
	require.ErrorIs(t, err, ErrCastingOverflow)

	_, err = int64ToUint32(1 << 32)
	require.ErrorIs(t, err, ErrCastingOverflow)

	u, err := int64ToUint32(1<<32 - 1)
	require.NoError(t, err)
	require.Equal(t, uint32(1<<32-1), u)
}
