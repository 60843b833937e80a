package ckbhash

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestBlake2b256Empty checks the personalized digest of the empty input.
func TestBlake2b256Empty(t *testing.T) {
	t.Parallel()

	sum := Blake2b256()
	require.Equal(t,
		"44f4c69744d5f8c55d642062949dcae49bc4e7ef43d388c5a12f42b5633d163e",
		hex.EncodeToString(sum[:]),
	)
}

// TestStreamingMatchesOneShot checks that writing in pieces gives the same
// digest as hashing the concatenation.
func TestStreamingMatchesOneShot(t *testing.T) {
	t.Parallel()

	h := New()
	h.Write([]byte("cell"))
	h.Write([]byte("wallet"))

	oneShot := Blake2b256([]byte("cellwallet"))
	require.Equal(t, oneShot[:], h.Sum(nil))

	b160 := Blake160([]byte("cellwallet"))
	require.Equal(t, oneShot[:Blake160Size], b160[:])
}
