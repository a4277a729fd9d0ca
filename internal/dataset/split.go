package dataset

import "math/rand"

// Split partitions items into train and test sets with a shuffle seeded by
// seed. The test set gets max(1, int(n*testSplit)) items, reduced so the
// train set keeps at least one; a single item lands in both sets.
//
// The result depends only on the input order and seed.
func Split[T any](items []T, testSplit float64, seed int64) (train, test []T) {
	n := len(items)
	if n == 0 {
		return nil, nil
	}
	if n == 1 {
		return []T{items[0]}, []T{items[0]}
	}

	shuffled := make([]T, n)
	copy(shuffled, items)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(n, func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	nTest := max(1, int(float64(n)*testSplit))
	if n-nTest < 1 {
		nTest = n - 1
	}
	return shuffled[nTest:], shuffled[:nTest]
}
