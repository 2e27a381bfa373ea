package raffle

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"slices"
)

// Randomizer returns a uniform integer in [0, n).
type Randomizer interface {
	Intn(n int) (int, error)
}

type cryptoRandomizer struct{}

func (cryptoRandomizer) Intn(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("intn: invalid bound %d", n)
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("intn: %w", err)
	}
	return int(v.Int64()), nil
}

// sample draws k distinct members of pool with a partial Fisher–Yates
// shuffle. Every k-permutation is equally likely given a uniform source.
// pool is not modified.
func sample[T any](pool []T, k int, rnd Randomizer) ([]T, error) {
	if k < 0 || k > len(pool) {
		return nil, fmt.Errorf("sample %d of %d", k, len(pool))
	}

	shuffled := slices.Clone(pool)
	for i := 0; i < k; i++ {
		j, err := rnd.Intn(len(shuffled) - i)
		if err != nil {
			return nil, err
		}
		j += i
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled[:k], nil
}
