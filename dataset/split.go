package dataset

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// TrainTestSplit shuffles the rows with a seeded generator and holds out
// ceil(testSize*n) of them. Both sides keep at least one row.
func TrainTestSplit(t *Table, testSize float64, seed uint64) (*Table, *Table, error) {
	n := t.Len()
	if n < 2 {
		return nil, nil, fmt.Errorf("%w: need at least 2 rows to split, have %d", ErrFormat, n)
	}
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("test size must be in (0, 1), got %g", testSize)
	}

	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest < 1 {
		nTest = 1
	}
	if nTest > n-1 {
		nTest = n - 1
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	perm := rng.Perm(n)

	test := t.subset(perm[:nTest])
	train := t.subset(perm[nTest:])
	return train, test, nil
}
