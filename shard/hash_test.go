package shard_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quireapp/quire/shard"
)

func TestHash_KnownValues(t *testing.T) {
	// Values must agree bit-for-bit with the front end's 32-bit rolling
	// hash (h*31 + c with wrapping), so they are pinned here.
	tests := []struct {
		key  string
		want int32
	}{
		{"", 0},
		{"a", 97},
		{"ab", 3105},
		{"abc", 96354},
		{"hello", 99162322},
		// Overflows 32 bits and lands exactly on MinInt32.
		{"polygenelubricants", -2147483648},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, shard.Hash(tt.key))
		})
	}
}

func TestIndex_Range(t *testing.T) {
	tests := []struct {
		key  string
		n    int
		want int
	}{
		{"", 10, 0},
		{"a", 10, 7},
		{"abc", 10, 4},
		{"abc", 3, 0},
		// abs(MinInt32) = 2147483648, must not wrap negative.
		{"polygenelubricants", 10, 8},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_%d", tt.key, tt.n), func(t *testing.T) {
			got := shard.Index(tt.key, tt.n)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, 0)
			assert.Less(t, got, tt.n)
		})
	}
}

func TestIndex_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 100; i++ {
		key := randomKey(rng)
		first := shard.Index(key, 10)
		for j := 0; j < 5; j++ {
			assert.Equal(t, first, shard.Index(key, 10), "key %q must always map to the same shard", key)
		}
	}
}

func TestIndex_Coverage(t *testing.T) {
	const (
		n    = 10
		keys = 2000
	)

	rng := rand.New(rand.NewSource(42))
	counts := make([]int, n)
	for i := 0; i < keys; i++ {
		counts[shard.Index(randomKey(rng), n)]++
	}

	// Roughly uniform: every shard gets within an order of magnitude of
	// the expected 10% share.
	expected := keys / n
	for i, c := range counts {
		assert.Greater(t, c, expected/10, "shard %d starved: %d of %d keys", i, c, keys)
		assert.Less(t, c, expected*10, "shard %d overloaded: %d of %d keys", i, c, keys)
	}
}

func randomKey(rng *rand.Rand) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_."
	length := 8 + rng.Intn(24)
	b := make([]byte, length)
	for i := range b {
		b[i] = alphabet[rng.Intn(len(alphabet))]
	}
	return string(b)
}
