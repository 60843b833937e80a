package wallet

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/ckbwallet/cellwallet/address"
	"github.com/ckbwallet/cellwallet/cell"
	"github.com/ckbwallet/cellwallet/chain"
	"github.com/ckbwallet/cellwallet/dao"
	"github.com/ckbwallet/cellwallet/keymgr"
	"github.com/ckbwallet/cellwallet/netparams"
	"github.com/ckbwallet/cellwallet/pkg/ckbhash"
	"github.com/ckbwallet/cellwallet/pkg/ckbunit"
	"github.com/ckbwallet/cellwallet/script"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errMock = errors.New("mock error")

const testWalletID = "test-wallet"

var (
	// testParams are the network parameters used throughout the wallet
	// tests.
	testParams = &netparams.TestNetParams

	testSeed       = bytes.Repeat([]byte{0x2a}, hdkeychain.RecommendedSeedLen)
	testPassphrase = []byte("test passphrase")
)

// mockCellRepository is a mock implementation of CellRepository.
type mockCellRepository struct {
	mock.Mock
}

// A compile-time assertion to ensure mockCellRepository implements
// CellRepository.
var _ CellRepository = (*mockCellRepository)(nil)

func (m *mockCellRepository) CandidateCells(ctx context.Context,
	lockHashes []cell.Hash,
	typeHash fn.Option[cell.Hash]) ([]cell.Cell, error) {

	args := m.Called(ctx, lockHashes, typeHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]cell.Cell), args.Error(1)
}

func (m *mockCellRepository) ResolveCell(ctx context.Context,
	outPoint cell.OutPoint) (*cell.Cell, error) {

	args := m.Called(ctx, outPoint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*cell.Cell), args.Error(1)
}

// mockAddressProvider is a mock implementation of AddressProvider.
type mockAddressProvider struct {
	mock.Mock
}

// A compile-time assertion to ensure mockAddressProvider implements
// AddressProvider.
var _ AddressProvider = (*mockAddressProvider)(nil)

func (m *mockAddressProvider) NextUnusedReceivingAddress(ctx context.Context,
	walletID string) (keymgr.AddressInfo, error) {

	args := m.Called(ctx, walletID)
	return args.Get(0).(keymgr.AddressInfo), args.Error(1)
}

func (m *mockAddressProvider) NextUnusedChangeAddress(ctx context.Context,
	walletID string) (keymgr.AddressInfo, error) {

	args := m.Called(ctx, walletID)
	return args.Get(0).(keymgr.AddressInfo), args.Error(1)
}

func (m *mockAddressProvider) AllAddresses(ctx context.Context,
	walletID string) ([]keymgr.AddressInfo, error) {

	args := m.Called(ctx, walletID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]keymgr.AddressInfo), args.Error(1)
}

func (m *mockAddressProvider) MasterKey(ctx context.Context, walletID string,
	passphrase []byte) (*hdkeychain.ExtendedKey, error) {

	args := m.Called(ctx, walletID, passphrase)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*hdkeychain.ExtendedKey), args.Error(1)
}

// mockAssetAccountStore is a mock implementation of AssetAccountStore.
type mockAssetAccountStore struct {
	mock.Mock
}

// A compile-time assertion to ensure mockAssetAccountStore implements
// AssetAccountStore.
var _ AssetAccountStore = (*mockAssetAccountStore)(nil)

func (m *mockAssetAccountStore) AssetAccounts(ctx context.Context,
	walletID string) ([]AssetAccount, error) {

	args := m.Called(ctx, walletID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]AssetAccount), args.Error(1)
}

// mockDaoCalculator is a mock implementation of chain.DaoCalculator.
type mockDaoCalculator struct {
	mock.Mock
}

// A compile-time assertion to ensure mockDaoCalculator implements
// chain.DaoCalculator.
var _ chain.DaoCalculator = (*mockDaoCalculator)(nil)

func (m *mockDaoCalculator) MaximumWithdraw(ctx context.Context,
	deposit *cell.Cell,
	withdrawBlockHash cell.Hash) (ckbunit.Capacity, error) {

	args := m.Called(ctx, deposit, withdrawBlockHash)
	return args.Get(0).(ckbunit.Capacity), args.Error(1)
}

// testKeys holds the addresses derived from the test seed.
type testKeys struct {
	receiving []keymgr.AddressInfo
	change    []keymgr.AddressInfo
}

// all returns every address, receiving addresses first.
func (k *testKeys) all() []keymgr.AddressInfo {
	all := append([]keymgr.AddressInfo{}, k.receiving...)
	return append(all, k.change...)
}

// newTestRoot returns a fresh copy of the root key of the test seed.
func newTestRoot(t *testing.T) *hdkeychain.ExtendedKey {
	t.Helper()

	root, err := hdkeychain.NewMaster(testSeed, testParams.HD)
	require.NoError(t, err)

	return root
}

// deriveTestKeys derives three receiving and two change addresses.
func deriveTestKeys(t *testing.T) *testKeys {
	t.Helper()

	account, err := keymgr.NewAccountKey(newTestRoot(t))
	require.NoError(t, err)

	derive := func(branch keymgr.Branch, n uint32) []keymgr.AddressInfo {
		addrs := make([]keymgr.AddressInfo, 0, n)
		for i := range n {
			info, err := account.DeriveAddress(keymgr.Path{
				Branch: branch, Index: i,
			})
			require.NoError(t, err)

			addrs = append(addrs, info)
		}

		return addrs
	}

	return &testKeys{
		receiving: derive(keymgr.BranchReceiving, 3),
		change:    derive(keymgr.BranchChange, 2),
	}
}

// signingKeys derives the private keys of every test address.
func signingKeys(t *testing.T, keys *testKeys) []keymgr.PathKey {
	t.Helper()

	paths := fn.Map(keys.all(), func(a keymgr.AddressInfo) keymgr.Path {
		return a.Path
	})

	pathKeys, err := keymgr.DerivePrivateKeys(newTestRoot(t), paths)
	require.NoError(t, err)

	return pathKeys
}

// testHarness holds a wallet wired to mocks and the mocks themselves.
type testHarness struct {
	wallet   *Wallet
	cells    *mockCellRepository
	addrs    *mockAddressProvider
	accounts *mockAssetAccountStore
	dao      *mockDaoCalculator
	oracle   *chain.MemoryOracle
	keys     *testKeys
}

// newTestHarness creates a wallet over mocked collaborators. The address
// provider serves the test keys; receiving[0] and change[0] are the next
// unused addresses.
func newTestHarness(t *testing.T, headers ...*chain.Header) *testHarness {
	t.Helper()

	h := &testHarness{
		cells:    &mockCellRepository{},
		addrs:    &mockAddressProvider{},
		accounts: &mockAssetAccountStore{},
		dao:      &mockDaoCalculator{},
		oracle:   chain.NewMemoryOracle(headers...),
		keys:     deriveTestKeys(t),
	}

	w, err := New(Config{
		Params:        testParams,
		Cells:         h.cells,
		Addresses:     h.addrs,
		AssetAccounts: h.accounts,
		Chain:         h.oracle,
		Dao:           h.dao,
	})
	require.NoError(t, err)
	h.wallet = w

	h.addrs.On("AllAddresses", mock.Anything, testWalletID).
		Return(h.keys.all(), nil).
		Maybe()
	h.addrs.On("NextUnusedReceivingAddress", mock.Anything, testWalletID).
		Return(h.keys.receiving[0], nil).
		Maybe()
	h.addrs.On("NextUnusedChangeAddress", mock.Anything, testWalletID).
		Return(h.keys.change[0], nil).
		Maybe()

	t.Cleanup(func() {
		h.cells.AssertExpectations(t)
		h.addrs.AssertExpectations(t)
		h.accounts.AssertExpectations(t)
		h.dao.AssertExpectations(t)
	})

	return h
}

// expectPlainCells makes the repository return cells for the wallet's
// default locks.
func (h *testHarness) expectPlainCells(cells ...cell.Cell) {
	h.cells.On(
		"CandidateCells", mock.Anything, mock.Anything,
		fn.None[cell.Hash](),
	).Return(cells, nil).Once()
}

// expectResolve makes the repository resolve c by its out point.
func (h *testHarness) expectResolve(c *cell.Cell) {
	h.cells.On("ResolveCell", mock.Anything, c.OutPoint).
		Return(c, nil).
		Once()
}

// expectMasterKey makes the provider hand out a fresh root key once.
func (h *testHarness) expectMasterKey(t *testing.T) {
	t.Helper()

	h.addrs.On("MasterKey", mock.Anything, testWalletID, testPassphrase).
		Return(newTestRoot(t), nil).
		Once()
}

// testOutPoint returns a distinct out point for n.
func testOutPoint(n uint32) cell.OutPoint {
	var h cell.Hash
	binary.BigEndian.PutUint32(h[:], n)
	h[31] = 0x01

	return cell.OutPoint{TxHash: h, Index: n % 4}
}

// ckb converts whole CKB to capacity.
func ckb(n uint64) ckbunit.Capacity {
	return ckbunit.Capacity(n) * ckbunit.ShannonPerCKB
}

// plainCell returns a cell of the given capacity under a's default lock.
func plainCell(n uint32, a keymgr.AddressInfo,
	capacity ckbunit.Capacity) cell.Cell {

	return cell.Cell{
		OutPoint: testOutPoint(n),
		Output: cell.CellOutput{
			Capacity: capacity,
			Lock:     script.DefaultLock(a.Blake160, testParams),
		},
		Data:        []byte{},
		BlockNumber: uint64(n),
	}
}

// testAddress encodes a's default lock address.
func testAddress(t *testing.T, lock cell.Script) string {
	t.Helper()

	addr, err := address.Encode(&lock, testParams)
	require.NoError(t, err)

	return addr
}

// foreignBlake160 returns a key hash the test wallet doesn't own.
func foreignBlake160(b byte) [ckbhash.Blake160Size]byte {
	var h [ckbhash.Blake160Size]byte
	for i := range h {
		h[i] = b
	}

	return h
}

// testHeader returns a header at number with the given epoch and a
// timestamp in milliseconds.
func testHeader(number uint64, epoch dao.Epoch,
	timestamp uint64) *chain.Header {

	var h cell.Hash
	binary.BigEndian.PutUint64(h[:], number)
	h[31] = 0xff

	return &chain.Header{
		Hash:      h,
		Number:    number,
		Epoch:     epoch,
		Timestamp: timestamp,
		Dao:       make([]byte, 32),
	}
}

// requireBalanced checks the authored transaction pays its outputs and fee
// exactly and that every output holds its occupied capacity.
func requireBalanced(t *testing.T, atx *AuthoredTx) {
	t.Helper()

	require.NoError(t, checkBalanced(atx))
	require.Len(t, atx.InputCells, len(atx.Tx.Inputs))
	for i, c := range atx.InputCells {
		require.Equal(t, c.OutPoint, atx.Tx.Inputs[i].PreviousOutput)
	}
}

// requireFeeCovers checks the fee pays for the signed size at rate.
func requireFeeCovers(t *testing.T, atx *AuthoredTx, signed *cell.Transaction,
	rate ckbunit.FeeRate) {

	t.Helper()

	require.Equal(t, atx.Tx.SerializedSize(), signed.SerializedSize())
	require.GreaterOrEqual(t, atx.Fee, EstimateFee(
		signed.SerializedSize(), rate,
	))
}
