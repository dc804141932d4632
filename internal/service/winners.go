package service

import (
	"math/rand"

	"activity_lottery_bot/internal/model"
)

// selectWinners draws k participants from the pool uniformly at random,
// without replacement. k is clamped to [0, len(pool)]. The pool itself is
// not modified.
func selectWinners(pool []model.Participant, k int, rng *rand.Rand) []model.Participant {
	if k > len(pool) {
		k = len(pool)
	}
	if k <= 0 {
		return nil
	}

	// Partial Fisher-Yates: the first k slots end up holding the sample.
	shuffled := make([]model.Participant, len(pool))
	copy(shuffled, pool)
	for i := 0; i < k; i++ {
		j := i + rng.Intn(len(shuffled)-i)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}

	return shuffled[:k]
}
