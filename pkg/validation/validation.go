// Package validation holds the two interchangeable validation strategies:
// seeded simple split and expanding-window time-series cross validation.
package validation

import (
	"fmt"
	"math/rand"

	"github.com/modelyard/modelyard/pkg/domain"
)

// SimpleSplit partitions rows uniformly at random (seeded, reproducible)
// into train (1-fraction) and test (fraction) tables.
//
// Both outputs hold full rows (features + target) so downstream stages can
// separate them deterministically.
func SimpleSplit(t *domain.Table, fraction float64, seed int64) (train, test *domain.Table, err error) {
	if fraction <= 0 || 1 <= fraction {
		return nil, nil, fmt.Errorf(
			"%w: test split fraction %v is not in (0, 1)", domain.ErrValidation, fraction,
		)
	}
	n := t.NumRows()
	if n < 2 {
		return nil, nil, fmt.Errorf("%w: %d rows are too few to split", domain.ErrValidation, n)
	}

	testCount := int(float64(n)*fraction + 0.5)
	if testCount == 0 {
		testCount = 1
	}
	if testCount == n {
		testCount = n - 1
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return t.Pick(perm[testCount:]), t.Pick(perm[:testCount]), nil
}

// Fold is one train/test partition of expanding-window cross validation.
//
// Train rows are [0, TrainEnd); test rows are [TestBegin, TestEnd).
// Always TrainEnd == TestBegin: the test window is the contiguous block
// right after the train prefix.
type Fold struct {
	TrainEnd  int
	TestBegin int
	TestEnd   int
}

// ExpandingWindowFolds computes k folds over numRows chronologically ordered
// rows, without shuffling.
//
// The test window size is numRows/(k+1); fold i's train prefix is everything
// before its test window, so train size strictly increases with i and test
// windows are disjoint and chronologically ordered.
func ExpandingWindowFolds(numRows, k int) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("%w: %d folds are too few", domain.ErrValidation, k)
	}
	testSize := numRows / (k + 1)
	if testSize == 0 {
		return nil, fmt.Errorf(
			"%w: %d rows are too few for %d folds", domain.ErrValidation, numRows, k,
		)
	}

	folds := make([]Fold, k)
	for i := 0; i < k; i++ {
		trainEnd := numRows - (k-i)*testSize
		folds[i] = Fold{
			TrainEnd:  trainEnd,
			TestBegin: trainEnd,
			TestEnd:   trainEnd + testSize,
		}
	}
	return folds, nil
}
