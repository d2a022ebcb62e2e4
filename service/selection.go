package service

import "math/rand/v2"

// SelectWinners draws min(k, |participants|) distinct participants uniformly
// at random using a partial Fisher-Yates shuffle. Duplicate IDs count once.
// intn must return a uniform integer in [0, n); nil uses math/rand/v2.
func SelectWinners(participants []int64, k int, intn func(n int) int) []int64 {
	if intn == nil {
		intn = rand.IntN
	}

	seen := make(map[int64]struct{}, len(participants))
	pool := make([]int64, 0, len(participants))
	for _, id := range participants {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		pool = append(pool, id)
	}

	if k > len(pool) {
		k = len(pool)
	}
	if k <= 0 {
		return []int64{}
	}

	for i := 0; i < k; i++ {
		j := i + intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}

	winners := make([]int64, k)
	copy(winners, pool[:k])
	return winners
}
