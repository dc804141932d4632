package service

import (
	"math/rand"
	"testing"

	"activity_lottery_bot/internal/model"

	"github.com/stretchr/testify/assert"
)

func participantPool(n int) []model.Participant {
	pool := make([]model.Participant, n)
	for i := range pool {
		pool[i] = model.Participant{UserID: int64(i + 1), MessageCount: 10}
	}
	return pool
}

func TestSelectWinners(t *testing.T) {
	tests := []struct {
		name     string
		poolSize int
		k        int
		expected int
	}{
		{name: "zero winners", poolSize: 4, k: 0, expected: 0},
		{name: "half the pool", poolSize: 4, k: 2, expected: 2},
		{name: "whole pool", poolSize: 5, k: 5, expected: 5},
		{name: "k larger than pool is clamped", poolSize: 3, k: 10, expected: 3},
		{name: "empty pool", poolSize: 0, k: 2, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := participantPool(tt.poolSize)
			rng := rand.New(rand.NewSource(42))

			winners := selectWinners(pool, tt.k, rng)

			assert.Len(t, winners, tt.expected)

			seen := map[int64]bool{}
			for _, w := range winners {
				assert.False(t, seen[w.UserID], "winner %d selected twice", w.UserID)
				seen[w.UserID] = true
				assert.True(t, w.UserID >= 1 && w.UserID <= int64(tt.poolSize))
			}
		})
	}
}

func TestSelectWinners_DoesNotModifyPool(t *testing.T) {
	pool := participantPool(6)
	rng := rand.New(rand.NewSource(7))

	selectWinners(pool, 3, rng)

	for i, p := range pool {
		assert.Equal(t, int64(i+1), p.UserID)
	}
}

func TestSelectWinners_FullFractionSelectsEveryone(t *testing.T) {
	pool := participantPool(8)
	rng := rand.New(rand.NewSource(3))

	winners := selectWinners(pool, len(pool), rng)

	assert.Len(t, winners, len(pool))
	seen := map[int64]bool{}
	for _, w := range winners {
		seen[w.UserID] = true
	}
	assert.Len(t, seen, len(pool))
}

func TestSelectWinners_CoversTheWholePool(t *testing.T) {
	// Over many draws every participant should win at least once; a
	// position-biased implementation would starve someone.
	pool := participantPool(5)
	rng := rand.New(rand.NewSource(11))

	counts := map[int64]int{}
	for i := 0; i < 500; i++ {
		for _, w := range selectWinners(pool, 2, rng) {
			counts[w.UserID]++
		}
	}

	for _, p := range pool {
		assert.Greater(t, counts[p.UserID], 0, "participant %d never won", p.UserID)
	}
}
