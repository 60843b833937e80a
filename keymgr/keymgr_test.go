package keymgr

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/ckbwallet/cellwallet/netparams"
	"github.com/ckbwallet/cellwallet/pkg/ckbhash"
	"github.com/stretchr/testify/require"
)

var (
	testSeed       = bytes.Repeat([]byte{0x01}, hdkeychain.RecommendedSeedLen)
	testPassphrase = []byte("correct horse")
)

// newTestKeystore creates a keystore from the fixed test seed.
func newTestKeystore(t *testing.T) *Keystore {
	t.Helper()

	ks, err := NewKeystore(CreateParams{
		Mode:       ModeImportSeed,
		Seed:       testSeed,
		Passphrase: testPassphrase,
		Scrypt:     &FastScryptOptions,
	}, &netparams.TestNetParams)
	require.NoError(t, err)

	return ks
}

// TestKeystoreUnlock checks that only the right passphrase unlocks the root
// key and that it survives serialization.
func TestKeystoreUnlock(t *testing.T) {
	t.Parallel()

	ks := newTestKeystore(t)

	root, err := ks.Unlock(testPassphrase)
	require.NoError(t, err)

	expected, err := hdkeychain.NewMaster(
		testSeed, netparams.TestNetParams.HD,
	)
	require.NoError(t, err)
	require.Equal(t, expected.String(), root.String())

	_, err = ks.Unlock([]byte("wrong"))
	require.ErrorIs(t, err, ErrWrongPassphrase)

	b, err := ks.Marshal()
	require.NoError(t, err)
	require.NotContains(t, string(b), expected.String())

	restored, err := UnmarshalKeystore(b)
	require.NoError(t, err)
	require.Equal(t, &netparams.TestNetParams, restored.Params())

	root, err = restored.Unlock(testPassphrase)
	require.NoError(t, err)
	require.Equal(t, expected.String(), root.String())

	_, err = restored.Unlock([]byte("wrong"))
	require.ErrorIs(t, err, ErrWrongPassphrase)

	_, err = UnmarshalKeystore([]byte(`{"version":7}`))
	require.ErrorIs(t, err, ErrMalformedKeystore)
}

// TestNewKeystoreModes checks every creation mode.
func TestNewKeystoreModes(t *testing.T) {
	t.Parallel()

	master, err := hdkeychain.NewMaster(
		testSeed, netparams.TestNetParams.HD,
	)
	require.NoError(t, err)
	neutered, err := master.Neuter()
	require.NoError(t, err)

	testCases := []struct {
		name   string
		params CreateParams
		err    error
	}{
		{
			name:   "generate seed",
			params: CreateParams{Mode: ModeGenSeed},
		},
		{
			name: "import ext key",
			params: CreateParams{
				Mode: ModeImportExtKey, RootKey: master,
			},
		},
		{
			name: "import public key",
			params: CreateParams{
				Mode: ModeImportExtKey, RootKey: neutered,
			},
			err: ErrKeystoreParams,
		},
		{
			name:   "missing seed",
			params: CreateParams{Mode: ModeImportSeed},
			err:    ErrKeystoreParams,
		},
		{
			name:   "unknown mode",
			params: CreateParams{Mode: ModeUnknown},
			err:    ErrKeystoreParams,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tc.params.Passphrase = testPassphrase
			tc.params.Scrypt = &FastScryptOptions

			ks, err := NewKeystore(
				tc.params, &netparams.TestNetParams,
			)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}

			require.NoError(t, err)
			_, err = ks.Unlock(testPassphrase)
			require.NoError(t, err)
		})
	}

	// Importing the key must leave the caller's copy usable.
	require.True(t, master.IsPrivate())
	_, err = master.ECPrivKey()
	require.NoError(t, err)
}

// TestDerivation checks that the public account key and the root key agree
// on every derived address, and that duplicate paths are derived once.
func TestDerivation(t *testing.T) {
	t.Parallel()

	ks := newTestKeystore(t)
	root, err := ks.Unlock(testPassphrase)
	require.NoError(t, err)

	paths := []Path{
		{Branch: BranchReceiving, Index: 0},
		{Branch: BranchChange, Index: 3},
		{Branch: BranchReceiving, Index: 0},
	}

	keys, err := DerivePrivateKeys(root, paths)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	require.Equal(t, paths[0], keys[0].Path)
	require.Equal(t, paths[1], keys[1].Path)

	for _, pk := range keys {
		info, err := ks.AccountKey().DeriveAddress(pk.Path)
		require.NoError(t, err)

		pub := pk.Key.PubKey().SerializeCompressed()
		require.Equal(t, pub, info.PublicKey.SerializeCompressed())
		require.Equal(t, ckbhash.Blake160(pub), info.Blake160)
	}

	// A public account key can't produce private keys.
	_, err = ks.AccountKey().DerivePrivateKey(paths[0])
	require.ErrorIs(t, err, hdkeychain.ErrNotPrivExtKey)
}

// TestDerivationInvalidPath checks no key is derived when any path leaves
// the wallet's branches or asks for a hardened child.
func TestDerivationInvalidPath(t *testing.T) {
	t.Parallel()

	ks := newTestKeystore(t)
	root, err := ks.Unlock(testPassphrase)
	require.NoError(t, err)

	valid := Path{Branch: BranchReceiving, Index: 1}

	testCases := []struct {
		name  string
		paths []Path
	}{{
		name:  "unknown branch",
		paths: []Path{valid, {Branch: 7}},
	}, {
		name: "hardened index",
		paths: []Path{
			{Index: hdkeychain.HardenedKeyStart + 1}, valid,
		},
	}, {
		name: "first hardened index",
		paths: []Path{{
			Branch: BranchChange,
			Index:  hdkeychain.HardenedKeyStart,
		}},
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			keys, err := DerivePrivateKeys(root, tc.paths)
			require.ErrorIs(t, err, ErrInvalidPath)
			require.Nil(t, keys)

			bad := tc.paths[len(tc.paths)-1]
			if bad == valid {
				bad = tc.paths[0]
			}
			_, err = ks.AccountKey().DeriveAddress(bad)
			require.ErrorIs(t, err, ErrInvalidPath)
		})
	}
}

// TestParsePath checks the path syntax.
func TestParsePath(t *testing.T) {
	t.Parallel()

	p, err := ParsePath("m/44'/309'/0'/1/42")
	require.NoError(t, err)
	require.Equal(t, Path{Branch: BranchChange, Index: 42}, p)
	require.Equal(t, "m/44'/309'/0'/1/42", p.String())

	for _, bad := range []string{
		"m/44'/0'/0'/0/1",
		"m/44'/309'/0'/2/1",
		"m/44'/309'/0'/0",
		"m/44'/309'/0'/0/1'",
		"m/44'/309'/0'/0/2147483648",
	} {
		_, err := ParsePath(bad)
		require.ErrorIs(t, err, ErrInvalidPath, bad)
	}
}

// TestAddressBookWindow checks that the book keeps a full window of unused
// addresses past the last used one on each branch.
func TestAddressBookWindow(t *testing.T) {
	t.Parallel()

	ks := newTestKeystore(t)
	book, err := NewAddressBook(ks.AccountKey(), 4, 2)
	require.NoError(t, err)
	require.Len(t, book.All(), 6)

	first, err := book.NextUnused(BranchReceiving)
	require.NoError(t, err)
	require.Equal(t, Path{Branch: BranchReceiving}, first.Path)

	// Using the third receiving address extends the window to index 6.
	third, err := ks.AccountKey().DeriveAddress(
		Path{Branch: BranchReceiving, Index: 2},
	)
	require.NoError(t, err)

	found, err := book.MarkUsed(third.Blake160)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, book.All(), 9)

	info, ok := book.Lookup(third.Blake160)
	require.True(t, ok)
	require.True(t, info.Used)

	// Lower unused indexes are still handed out first.
	next, err := book.NextUnused(BranchReceiving)
	require.NoError(t, err)
	require.Equal(t, uint32(0), next.Path.Index)

	change, err := book.NextUnused(BranchChange)
	require.NoError(t, err)
	require.Equal(t, BranchChange, change.Path.Branch)

	found, err = book.MarkUsed([ckbhash.Blake160Size]byte{})
	require.NoError(t, err)
	require.False(t, found)

	_, err = book.NextUnused(Branch(7))
	require.ErrorIs(t, err, ErrUnknownBranch)
}
