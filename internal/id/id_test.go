package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for range 1000 {
		id, err := Generate(PrefixTab)
		require.NoError(t, err)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestGenerate_Format(t *testing.T) {
	for _, prefix := range []string{PrefixCollection, PrefixFolder, PrefixTab, PrefixSnoozedItem, "wsnz"} {
		t.Run(prefix, func(t *testing.T) {
			id, err := Generate(prefix)
			require.NoError(t, err)

			require.True(t, strings.HasPrefix(id, prefix+"-"))

			// prefix, separator, then the 21-character nanoid
			assert.Len(t, id, len(prefix)+1+21)

			random := strings.TrimPrefix(id, prefix+"-")
			for _, c := range random {
				urlSafe := (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') ||
					(c >= '0' && c <= '9') || c == '_' || c == '-'
				assert.True(t, urlSafe, "character %c is not URL-safe", c)
			}
		})
	}
}

func TestMustGenerate(t *testing.T) {
	id := MustGenerate(PrefixCollection)

	assert.True(t, strings.HasPrefix(id, "coll-"))
	assert.Len(t, id, len(PrefixCollection)+1+21)
}

func BenchmarkGenerate(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = Generate(PrefixTab)
	}
}
