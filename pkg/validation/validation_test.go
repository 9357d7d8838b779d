package validation_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/modelyard/modelyard/pkg/domain"
	"github.com/modelyard/modelyard/pkg/utils/try"
	"github.com/modelyard/modelyard/pkg/validation"
)

func tableOf(n int) *domain.Table {
	rows := make([][]string, n)
	for i := range rows {
		rows[i] = []string{fmt.Sprint(i), fmt.Sprint(i * 2)}
	}
	return &domain.Table{ColumnNames: []string{"x", "y"}, Rows: rows}
}

func TestSimpleSplit(t *testing.T) {
	t.Run("it splits 100 rows into 80 train + 20 test for fraction 0.2", func(t *testing.T) {
		table := tableOf(100)
		train, test, err := validation.SimpleSplit(table, 0.2, 42)
		if err != nil {
			t.Fatal(err)
		}

		if train.NumRows() != 80 {
			t.Errorf("train rows: got %d, want 80", train.NumRows())
		}
		if test.NumRows() != 20 {
			t.Errorf("test rows: got %d, want 20", test.NumRows())
		}
	})

	t.Run("it partitions rows: no overlaps, no losses", func(t *testing.T) {
		table := tableOf(100)
		train, test, err := validation.SimpleSplit(table, 0.2, 42)
		if err != nil {
			t.Fatal(err)
		}

		seen := map[string]int{}
		for _, row := range train.Rows {
			seen[row[0]] += 1
		}
		for _, row := range test.Rows {
			seen[row[0]] += 1
		}
		if len(seen) != 100 {
			t.Errorf("rows lost: %d distinct of 100", len(seen))
		}
		for key, count := range seen {
			if count != 1 {
				t.Errorf("row %s appears %d times", key, count)
			}
		}
	})

	t.Run("it is reproducible for the same seed and differs across seeds", func(t *testing.T) {
		table := tableOf(50)
		_, test1, _ := validation.SimpleSplit(table, 0.3, 7)
		_, test2, _ := validation.SimpleSplit(table, 0.3, 7)
		_, test3, _ := validation.SimpleSplit(table, 0.3, 8)

		same := func(a, b *domain.Table) bool {
			if a.NumRows() != b.NumRows() {
				return false
			}
			for i := range a.Rows {
				if a.Rows[i][0] != b.Rows[i][0] {
					return false
				}
			}
			return true
		}
		if !same(test1, test2) {
			t.Error("same seed gave different splits")
		}
		if same(test1, test3) {
			t.Error("different seeds gave identical splits")
		}
	})

	t.Run("it rejects fractions outside (0, 1)", func(t *testing.T) {
		for _, fraction := range []float64{0, -0.2, 1, 1.5} {
			_, _, err := validation.SimpleSplit(tableOf(10), fraction, 1)
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("fraction %v: got %v, want ErrValidation", fraction, err)
			}
		}
	})

	t.Run("it keeps at least one row on each side", func(t *testing.T) {
		train, test, err := validation.SimpleSplit(tableOf(3), 0.01, 1)
		if err != nil {
			t.Fatal(err)
		}
		if test.NumRows() < 1 || train.NumRows() < 1 {
			t.Errorf("degenerate split: train %d / test %d", train.NumRows(), test.NumRows())
		}
	})
}

func TestExpandingWindowFolds(t *testing.T) {
	t.Run("it computes k ordered folds with growing train prefixes", func(t *testing.T) {
		folds := try.To(validation.ExpandingWindowFolds(105, 4)).OrFatal(t)

		if len(folds) != 4 {
			t.Fatalf("folds: got %d, want 4", len(folds))
		}
		// 105 / (4+1) = 21 rows per test window.
		for i, fold := range folds {
			if fold.TestEnd-fold.TestBegin != 21 {
				t.Errorf("fold %d: test size %d, want 21", i, fold.TestEnd-fold.TestBegin)
			}
			if fold.TrainEnd != fold.TestBegin {
				t.Errorf("fold %d: train end %d != test begin %d", i, fold.TrainEnd, fold.TestBegin)
			}
			if 0 < i {
				if fold.TrainEnd <= folds[i-1].TrainEnd {
					t.Errorf("fold %d: train prefix did not grow", i)
				}
				if fold.TestBegin != folds[i-1].TestEnd {
					t.Errorf("fold %d: test windows are not contiguous", i)
				}
			}
		}
		if last := folds[len(folds)-1]; last.TestEnd != 105 {
			t.Errorf("last fold ends at %d, want 105", last.TestEnd)
		}
	})

	t.Run("it rejects too few folds or too few rows", func(t *testing.T) {
		if _, err := validation.ExpandingWindowFolds(100, 1); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("k=1: got %v, want ErrValidation", err)
		}
		if _, err := validation.ExpandingWindowFolds(3, 5); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("3 rows, k=5: got %v, want ErrValidation", err)
		}
	})
}
