// Package evaluate computes metrics, a prediction sample and an
// interpretability artifact from a fitted model and held-out data.
package evaluate

import (
	"log"
	"math"
	"math/rand"
	"sort"

	"github.com/modelyard/modelyard/pkg/domain"
	"github.com/modelyard/modelyard/pkg/train"
)

const (
	// cap on (actual, predicted) pairs surfaced in results.
	maxPredictionSample = 1000

	// cost-control caps on explanation input.
	maxExplainRows  = 500
	maxFallbackRows = 100
)

type Importance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

type Evaluation struct {
	Metrics          map[string]float64
	PredictionSample []domain.PredictionPair

	// ranked (feature, importance) pairs; nil when the explainer failed.
	Importances []Importance
}

// Evaluate scores the model on held-out data.
//
// Explainer failure is non-fatal: it is logged and the evaluation is
// returned without the importance artifact.
func Evaluate(
	model train.FittedModel,
	X [][]float64, y []float64,
	featureNames []string,
	seed int64,
	logger *log.Logger,
) *Evaluation {
	predicted := model.Predict(X)

	ev := &Evaluation{
		Metrics:          Metrics(y, predicted),
		PredictionSample: SamplePairs(y, predicted, seed),
	}

	importances, err := Explain(model, X, y, featureNames, seed)
	if err != nil {
		logger.Printf("explainer failed (continuing without importance artifact): %s", err)
	} else {
		ev.Importances = importances
	}
	return ev
}

// Metrics computes mse, mae, r2 and rmse directly from their definitions.
func Metrics(actual, predicted []float64) map[string]float64 {
	n := float64(len(actual))
	if n == 0 {
		return map[string]float64{}
	}

	se, ae := 0.0, 0.0
	for i := range actual {
		d := actual[i] - predicted[i]
		se += d * d
		ae += math.Abs(d)
	}
	mse := se / n
	mae := ae / n

	meanY := 0.0
	for _, v := range actual {
		meanY += v
	}
	meanY /= n
	ssTot := 0.0
	for _, v := range actual {
		ssTot += (v - meanY) * (v - meanY)
	}
	r2 := 1.0
	if ssTot != 0 {
		r2 = 1 - se/ssTot
	} else if se != 0 {
		r2 = 0
	}

	return map[string]float64{
		"mse":  mse,
		"mae":  mae,
		"r2":   r2,
		"rmse": math.Sqrt(mse),
	}
}

// SamplePairs takes all pairs up to the cap, or a seeded uniform sample
// without replacement beyond it.
func SamplePairs(actual, predicted []float64, seed int64) []domain.PredictionPair {
	n := len(actual)
	picked := make([]int, n)
	for i := range picked {
		picked[i] = i
	}
	if maxPredictionSample < n {
		picked = rand.New(rand.NewSource(seed)).Perm(n)[:maxPredictionSample]
		sort.Ints(picked)
	}

	pairs := make([]domain.PredictionPair, len(picked))
	for nth, i := range picked {
		pairs[nth] = domain.PredictionPair{Actual: actual[i], Predicted: predicted[i]}
	}
	return pairs
}

// Explain routes to the model-appropriate explainer: exact importances for
// tree ensembles and linear models, seeded permutation importance as the
// universal fallback.
func Explain(
	model train.FittedModel,
	X [][]float64, y []float64,
	featureNames []string,
	seed int64,
) ([]Importance, error) {
	if exact, ok := model.FeatureImportances(); ok {
		return rankImportances(featureNames, exact), nil
	}

	rng := rand.New(rand.NewSource(seed))
	rows := X
	target := y
	if maxExplainRows < len(rows) {
		rows, target = subsample(rows, target, maxExplainRows, rng)
	}
	if maxFallbackRows < len(rows) {
		rows, target = subsample(rows, target, maxFallbackRows, rng)
	}
	return permutationImportances(model, rows, target, featureNames, rng)
}

func subsample(X [][]float64, y []float64, size int, rng *rand.Rand) ([][]float64, []float64) {
	picked := rng.Perm(len(X))[:size]
	sort.Ints(picked)
	sx := make([][]float64, size)
	sy := make([]float64, size)
	for nth, i := range picked {
		sx[nth] = X[i]
		sy[nth] = y[i]
	}
	return sx, sy
}

// permutationImportances measures, per feature, the mse increase after
// shuffling that feature's column.
func permutationImportances(
	model train.FittedModel,
	X [][]float64, y []float64,
	featureNames []string,
	rng *rand.Rand,
) ([]Importance, error) {
	if len(X) == 0 {
		return rankImportances(featureNames, make([]float64, len(featureNames))), nil
	}

	baseline := Metrics(y, model.Predict(X))["mse"]

	raw := make([]float64, len(featureNames))
	for f := range featureNames {
		shuffled := make([][]float64, len(X))
		perm := rng.Perm(len(X))
		for i, row := range X {
			clone := append([]float64{}, row...)
			clone[f] = X[perm[i]][f]
			shuffled[i] = clone
		}
		degraded := Metrics(y, model.Predict(shuffled))["mse"]
		raw[f] = math.Max(0, degraded-baseline)
	}

	total := 0.0
	for _, v := range raw {
		total += v
	}
	if 0 < total {
		for f := range raw {
			raw[f] /= total
		}
	}
	return rankImportances(featureNames, raw), nil
}

func rankImportances(featureNames []string, values []float64) []Importance {
	ret := make([]Importance, len(featureNames))
	for f, name := range featureNames {
		ret[f] = Importance{Feature: name, Importance: values[f]}
	}
	sort.SliceStable(ret, func(i, j int) bool { return ret[j].Importance < ret[i].Importance })
	return ret
}
