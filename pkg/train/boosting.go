package train

import (
	"encoding/json"
	"math"
	"math/rand"

	"github.com/modelyard/modelyard/pkg/domain"
	"github.com/modelyard/modelyard/pkg/xerrors"
)

// boostingTrainer fits shallow CART trees to residuals sequentially
// (tree-ensemble-B). Classification boosts the logistic loss, one booster
// per class (one-vs-rest); prediction is argmax of class scores.
type boostingTrainer struct {
	task   Task
	labels []string
	seed   int64
}

type booster struct {
	Base  float64 `json:"base"`
	Trees []tree  `json:"trees"`
}

type boostingPayload struct {
	LearningRate float64   `json:"learning_rate"`
	Boosters     []booster `json:"boosters"`
	Importances  []float64 `json:"importances"`
}

type boostingModel struct {
	boostingPayload
	task   Task
	labels []string
}

func (t *boostingTrainer) Fit(X [][]float64, y []float64, hp map[string]any) (FittedModel, error) {
	if len(X) == 0 {
		return nil, xerrors.New("empty training set")
	}

	numTrees := intParam(hp, "n_estimators", 100)
	maxDepth := intParam(hp, "max_depth", 3)
	lr := floatParam(hp, "learning_rate", 0.1)

	payload := boostingPayload{
		LearningRate: lr,
		Importances:  make([]float64, len(X[0])),
	}
	rng := rand.New(rand.NewSource(t.seed))

	switch t.task {
	case Classification:
		for class := range t.labels {
			target := make([]float64, len(y))
			for i := range y {
				if int(math.Round(y[i])) == class {
					target[i] = 1
				}
			}
			payload.Boosters = append(
				payload.Boosters,
				t.boostLogistic(X, target, numTrees, maxDepth, lr, rng, payload.Importances),
			)
		}
	default:
		payload.Boosters = []booster{
			t.boostSquares(X, y, numTrees, maxDepth, lr, rng, payload.Importances),
		}
	}
	normalize(payload.Importances)

	return &boostingModel{boostingPayload: payload, task: t.task, labels: t.labels}, nil
}

func (t *boostingTrainer) boostSquares(
	X [][]float64, y []float64,
	numTrees, maxDepth int, lr float64,
	rng *rand.Rand, importances []float64,
) booster {
	base := mean(y)
	score := make([]float64, len(y))
	for i := range score {
		score[i] = base
	}

	b := booster{Base: base}
	for m := 0; m < numTrees; m++ {
		residual := make([]float64, len(y))
		for i := range y {
			residual[i] = y[i] - score[i]
		}
		grown, imp := growTree(X, residual, treeParams{
			task:           Regression,
			maxDepth:       maxDepth,
			minSamplesLeaf: 1,
			rng:            rand.New(rand.NewSource(rng.Int63())),
		})
		b.Trees = append(b.Trees, *grown)
		for f := range imp {
			importances[f] += imp[f]
		}
		for i, row := range X {
			score[i] += lr * grown.predictRow(row)
		}
	}
	return b
}

// boostLogistic boosts log-loss on a {0,1} target: trees fit the gradient
// y - sigmoid(score).
func (t *boostingTrainer) boostLogistic(
	X [][]float64, y []float64,
	numTrees, maxDepth int, lr float64,
	rng *rand.Rand, importances []float64,
) booster {
	p := mean(y)
	p = math.Min(math.Max(p, 1e-6), 1-1e-6)
	base := math.Log(p / (1 - p))

	score := make([]float64, len(y))
	for i := range score {
		score[i] = base
	}

	b := booster{Base: base}
	for m := 0; m < numTrees; m++ {
		gradient := make([]float64, len(y))
		for i := range y {
			gradient[i] = y[i] - sigmoid(score[i])
		}
		grown, imp := growTree(X, gradient, treeParams{
			task:           Regression,
			maxDepth:       maxDepth,
			minSamplesLeaf: 1,
			rng:            rand.New(rand.NewSource(rng.Int63())),
		})
		b.Trees = append(b.Trees, *grown)
		for f := range imp {
			importances[f] += imp[f]
		}
		for i, row := range X {
			score[i] += lr * grown.predictRow(row)
		}
	}
	return b
}

func (b *booster) score(row []float64, lr float64) float64 {
	s := b.Base
	for _, tr := range b.Trees {
		s += lr * tr.predictRow(row)
	}
	return s
}

func (m *boostingModel) Predict(X [][]float64) []float64 {
	ret := make([]float64, len(X))
	for i, row := range X {
		switch m.task {
		case Classification:
			best, bestScore := 0, math.Inf(-1)
			for class := range m.Boosters {
				s := m.Boosters[class].score(row, m.LearningRate)
				if bestScore < s {
					best, bestScore = class, s
				}
			}
			ret[i] = float64(best)
		default:
			ret[i] = m.Boosters[0].score(row, m.LearningRate)
		}
	}
	return ret
}

func (m *boostingModel) Serialize() ([]byte, error) {
	return sealModel(m, m.boostingPayload)
}

func (m *boostingModel) Family() domain.ModelFamily {
	return domain.GradientBoosting
}

func (m *boostingModel) Task() Task {
	return m.task
}

func (m *boostingModel) Labels() []string {
	return m.labels
}

func (m *boostingModel) FeatureImportances() ([]float64, bool) {
	return m.Importances, true
}

func decodeBoosting(payload json.RawMessage, task Task, labels []string) (FittedModel, error) {
	p := boostingPayload{}
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, xerrors.Wrap(err)
	}
	return &boostingModel{boostingPayload: p, task: task, labels: labels}, nil
}

func mean(y []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range y {
		sum += v
	}
	return sum / float64(len(y))
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
