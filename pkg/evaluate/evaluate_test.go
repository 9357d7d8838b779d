package evaluate_test

import (
	"log"
	"math"
	"os"
	"testing"

	"github.com/modelyard/modelyard/pkg/domain"
	"github.com/modelyard/modelyard/pkg/evaluate"
	"github.com/modelyard/modelyard/pkg/train"
	"github.com/modelyard/modelyard/pkg/utils/try"
)

func TestMetrics(t *testing.T) {
	t.Run("it computes mse, mae, rmse and r2 from their definitions", func(t *testing.T) {
		actual := []float64{1, 2, 3, 4}
		predicted := []float64{1, 2, 3, 8} // one miss by 4

		m := evaluate.Metrics(actual, predicted)

		if m["mse"] != 4 {
			t.Errorf("mse: got %v, want 4", m["mse"])
		}
		if m["mae"] != 1 {
			t.Errorf("mae: got %v, want 1", m["mae"])
		}
		if m["rmse"] != 2 {
			t.Errorf("rmse: got %v, want 2", m["rmse"])
		}
		// mean(y) = 2.5, ssTot = 5, r2 = 1 - 16/5
		if want := 1 - 16.0/5.0; math.Abs(m["r2"]-want) > 1e-12 {
			t.Errorf("r2: got %v, want %v", m["r2"], want)
		}
	})

	t.Run("a perfect prediction scores r2 = 1 and zero errors", func(t *testing.T) {
		m := evaluate.Metrics([]float64{1, 2, 3}, []float64{1, 2, 3})
		if m["mse"] != 0 || m["mae"] != 0 || m["r2"] != 1 {
			t.Errorf("got %v", m)
		}
	})

	t.Run("empty input yields no metrics", func(t *testing.T) {
		if m := evaluate.Metrics(nil, nil); len(m) != 0 {
			t.Errorf("got %v, want empty", m)
		}
	})
}

func TestSamplePairs(t *testing.T) {
	t.Run("small inputs are taken whole, in order", func(t *testing.T) {
		pairs := evaluate.SamplePairs([]float64{1, 2}, []float64{10, 20}, 42)
		want := []domain.PredictionPair{{Actual: 1, Predicted: 10}, {Actual: 2, Predicted: 20}}
		if len(pairs) != 2 || pairs[0] != want[0] || pairs[1] != want[1] {
			t.Errorf("got %v, want %v", pairs, want)
		}
	})

	t.Run("large inputs are capped at 1000, reproducibly", func(t *testing.T) {
		n := 5000
		actual := make([]float64, n)
		predicted := make([]float64, n)
		for i := range actual {
			actual[i] = float64(i)
			predicted[i] = float64(i) + 0.5
		}

		first := evaluate.SamplePairs(actual, predicted, 42)
		second := evaluate.SamplePairs(actual, predicted, 42)

		if len(first) != 1000 {
			t.Fatalf("sample size: got %d, want 1000", len(first))
		}
		for i := range first {
			if first[i] != second[i] {
				t.Fatal("same seed gave different samples")
			}
			if first[i].Predicted != first[i].Actual+0.5 {
				t.Fatal("pairs lost their row alignment")
			}
		}

		seen := map[float64]struct{}{}
		for _, p := range first {
			if _, ok := seen[p.Actual]; ok {
				t.Fatal("sample drew the same row twice")
			}
			seen[p.Actual] = struct{}{}
		}
	})
}

func TestEvaluate(t *testing.T) {
	logger := log.New(os.Stderr, "", log.LstdFlags)

	data := func(n int) ([][]float64, []float64) {
		X := make([][]float64, n)
		y := make([]float64, n)
		for i := range X {
			a := float64(i%17) + 0.25
			b := float64((i*7)%13) + 0.5
			X[i] = []float64{a, b}
			y[i] = 2*a + 0.1*b
		}
		return X, y
	}

	t.Run("a model with exact importances gets them ranked", func(t *testing.T) {
		X, y := data(150)
		trainer := try.To(train.New(domain.Linear, train.Regression, nil, 1)).OrFatal(t)
		model := try.To(trainer.Fit(X, y, nil)).OrFatal(t)

		ev := evaluate.Evaluate(model, X, y, []string{"a", "b"}, 42, logger)

		if ev.Importances == nil {
			t.Fatal("no importances")
		}
		// y is dominated by feature a.
		if ev.Importances[0].Feature != "a" {
			t.Errorf("top feature: got %s, want a", ev.Importances[0].Feature)
		}
		for i := 1; i < len(ev.Importances); i++ {
			if ev.Importances[i-1].Importance < ev.Importances[i].Importance {
				t.Error("importances are not ranked descending")
			}
		}
	})

	t.Run("a model without exact importances falls back to permutation", func(t *testing.T) {
		X, y := data(150)
		trainer := try.To(train.New(domain.Margin, train.Regression, nil, 1)).OrFatal(t)
		model := try.To(trainer.Fit(X, y, map[string]any{"epochs": 20})).OrFatal(t)

		ev := evaluate.Evaluate(model, X, y, []string{"a", "b"}, 42, logger)

		if ev.Importances == nil {
			t.Fatal("no importances")
		}
		total := 0.0
		for _, imp := range ev.Importances {
			if imp.Importance < 0 {
				t.Errorf("negative importance: %v", imp)
			}
			total += imp.Importance
		}
		if 1.001 < total {
			t.Errorf("importances sum to %v, want <= 1", total)
		}
	})

	t.Run("metrics and sample are always present", func(t *testing.T) {
		X, y := data(60)
		trainer := try.To(train.New(domain.Linear, train.Regression, nil, 1)).OrFatal(t)
		model := try.To(trainer.Fit(X, y, nil)).OrFatal(t)

		ev := evaluate.Evaluate(model, X, y, []string{"a", "b"}, 42, logger)

		for _, name := range []string{"mse", "mae", "r2", "rmse"} {
			if _, ok := ev.Metrics[name]; !ok {
				t.Errorf("metric %s is missing", name)
			}
		}
		if len(ev.PredictionSample) != 60 {
			t.Errorf("sample size: got %d, want 60", len(ev.PredictionSample))
		}
	})
}
