package codegen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodeShape(t *testing.T) {
	gen := NewGenerator(1)

	code, err := gen.Code(0)
	require.NoError(t, err)
	require.Len(t, code, CodeLength)
	for _, r := range code {
		require.True(t, strings.ContainsRune(Alphabet, r), "character %q outside alphabet", r)
	}
}

func TestCodeDeterministic(t *testing.T) {
	a, err := NewGenerator(7).Code(42)
	require.NoError(t, err)
	b, err := NewGenerator(7).Code(42)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestCodeUniqueWithinBatch(t *testing.T) {
	gen := NewGenerator(3)

	seen := make(map[string]uint64, 5000)
	for i := uint64(0); i < 5000; i++ {
		code, err := gen.Code(i)
		require.NoError(t, err)
		prev, dup := seen[code]
		require.False(t, dup, "indices %d and %d collide on %s", prev, i, code)
		seen[code] = i
	}
}

func TestCodeVariesAcrossBatches(t *testing.T) {
	a, err := NewGenerator(1).Code(0)
	require.NoError(t, err)
	b, err := NewGenerator(2).Code(0)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestAlphabetExcludesAmbiguousCharacters(t *testing.T) {
	for _, r := range "01OIL" {
		require.False(t, strings.ContainsRune(Alphabet, r), "%q must not appear in codes", r)
	}
}
