package predictor

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
)

// Split partitions n row indices into train and test sets. The test set holds
// ceil(n*testRatio) rows, clamped so both sets are non-empty; which rows land
// where is a shuffle seeded by seed, so equal inputs always split the same way.
func Split(n int, testRatio float64, seed uint64) (train, test []int, err error) {
	if n < 2 {
		return nil, nil, fmt.Errorf("%w: cannot split %d rows into train and test", ErrInsufficientData, n)
	}

	// the epsilon keeps 5*0.2 from rounding up to 2
	testN := int(math.Ceil(float64(n)*testRatio - 1e-9))
	testN = max(1, min(testN, n-1))

	perm := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)).Perm(n)
	test = slices.Clone(perm[:testN])
	train = slices.Clone(perm[testN:])
	slices.Sort(test)
	slices.Sort(train)
	return train, test, nil
}
