package db

import (
	"context"
	"testing"

	"github.com/ckbwallet/cellwallet/chain"
	"github.com/stretchr/testify/require"
)

// TestHeaders checks header lookups and that the highest header is the tip.
func TestHeaders(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := newTestStore(t)

	_, err := store.TipHeader(ctx)
	require.ErrorIs(t, err, chain.ErrHeaderNotFound)

	h1, h2, h3 := testHeader(1, 0xa), testHeader(2, 0xa), testHeader(3, 0xa)
	require.NoError(t, store.PutHeaders(ctx, h3, h1, h2))

	tip, err := store.TipHeader(ctx)
	require.NoError(t, err)
	require.Equal(t, h3, tip)

	got, err := store.HeaderByHash(ctx, h2.Hash)
	require.NoError(t, err)
	require.Equal(t, h2, got)

	got, err = store.HeaderByNumber(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, h1, got)

	_, err = store.HeaderByNumber(ctx, 4)
	require.ErrorIs(t, err, chain.ErrHeaderNotFound)

	_, err = store.HeaderByNumber(ctx, 1<<63)
	require.ErrorIs(t, err, ErrCastingOverflow)

	// A header of another branch at the same height replaces the old one.
	fork := testHeader(3, 0xb)
	require.NoError(t, store.PutHeaders(ctx, fork))

	tip, err = store.TipHeader(ctx)
	require.NoError(t, err)
	require.Equal(t, fork, tip)

	_, err = store.HeaderByHash(ctx, h3.Hash)
	require.ErrorIs(t, err, chain.ErrHeaderNotFound)

	// Storing the same header twice is fine.
	require.NoError(t, store.PutHeaders(ctx, fork))
}

// TestHeadersDaoCalculator checks the store can back the local DAO
// calculator.
func TestHeadersDaoCalculator(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	calc := &chain.LocalDaoCalculator{Oracle: store}
	deposit := testCell(1, blake160(1), 100, nil)

	_, err := calc.MaximumWithdraw(
		context.Background(), &deposit, testHeader(9, 0xc).Hash,
	)
	require.ErrorIs(t, err, chain.ErrHeaderNotFound)
}
