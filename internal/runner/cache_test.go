package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for resultMemo:
// - A remembered hash matches only itself
// - forget removes one unit, clear removes all

// Test: Hash matches are exact per unit
func TestResultMemo_SameHash(t *testing.T) {
	t.Parallel()

	memo, err := newResultMemo(64)
	require.NoError(t, err)
	defer memo.close()

	memo.remember("src/lib.rs", "hash-a")

	assert.True(t, memo.sameHash("src/lib.rs", "hash-a"))
	assert.False(t, memo.sameHash("src/lib.rs", "hash-b"))
	assert.False(t, memo.sameHash("src/other.rs", "hash-a"))
}

// Test: forget and clear drop entries
func TestResultMemo_ForgetAndClear(t *testing.T) {
	t.Parallel()

	memo, err := newResultMemo(64)
	require.NoError(t, err)
	defer memo.close()

	memo.remember("a.rs", "h1")
	memo.remember("b.rs", "h2")

	memo.forget("a.rs")
	assert.False(t, memo.sameHash("a.rs", "h1"))
	assert.True(t, memo.sameHash("b.rs", "h2"))

	memo.clear()
	assert.False(t, memo.sameHash("b.rs", "h2"))
}
