package train

import (
	"encoding/json"
	"math"
	"math/rand"

	"github.com/modelyard/modelyard/pkg/domain"
	"github.com/modelyard/modelyard/pkg/xerrors"
)

// forestTrainer bags CART trees over bootstrap samples with per-split
// feature subsampling (tree-ensemble-A).
type forestTrainer struct {
	task   Task
	labels []string
	seed   int64
}

type forestPayload struct {
	Trees       []tree    `json:"trees"`
	NumClasses  int       `json:"num_classes,omitempty"`
	Importances []float64 `json:"importances"`
}

type forestModel struct {
	forestPayload
	task   Task
	labels []string
}

func (t *forestTrainer) Fit(X [][]float64, y []float64, hp map[string]any) (FittedModel, error) {
	if len(X) == 0 {
		return nil, xerrors.New("empty training set")
	}

	numTrees := intParam(hp, "n_estimators", 100)
	maxDepth := intParam(hp, "max_depth", 10)
	minLeaf := intParam(hp, "min_samples_leaf", 1)

	numFeatures := len(X[0])
	maxFeatures := intParam(hp, "max_features", defaultMaxFeatures(t.task, numFeatures))

	rng := rand.New(rand.NewSource(t.seed))
	n := len(X)

	payload := forestPayload{
		NumClasses:  len(t.labels),
		Importances: make([]float64, numFeatures),
	}
	for m := 0; m < numTrees; m++ {
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.Intn(n)
		}
		bx := make([][]float64, n)
		by := make([]float64, n)
		for i, at := range sample {
			bx[i] = X[at]
			by[i] = y[at]
		}

		grown, imp := growTree(bx, by, treeParams{
			task:           t.task,
			numClasses:     len(t.labels),
			maxDepth:       maxDepth,
			minSamplesLeaf: minLeaf,
			maxFeatures:    maxFeatures,
			rng:            rand.New(rand.NewSource(rng.Int63())),
		})
		payload.Trees = append(payload.Trees, *grown)
		for f := range imp {
			payload.Importances[f] += imp[f]
		}
	}
	normalize(payload.Importances)

	return &forestModel{forestPayload: payload, task: t.task, labels: t.labels}, nil
}

func (m *forestModel) Predict(X [][]float64) []float64 {
	ret := make([]float64, len(X))
	for i, row := range X {
		switch m.task {
		case Classification:
			votes := map[float64]int{}
			for _, tr := range m.Trees {
				votes[tr.predictRow(row)] += 1
			}
			best, bestVotes := 0.0, -1
			for class, v := range votes {
				if bestVotes < v || (bestVotes == v && class < best) {
					best, bestVotes = class, v
				}
			}
			ret[i] = best
		default:
			sum := 0.0
			for _, tr := range m.Trees {
				sum += tr.predictRow(row)
			}
			ret[i] = sum / float64(len(m.Trees))
		}
	}
	return ret
}

func (m *forestModel) Serialize() ([]byte, error) {
	return sealModel(m, m.forestPayload)
}

func (m *forestModel) Family() domain.ModelFamily {
	return domain.RandomForest
}

func (m *forestModel) Task() Task {
	return m.task
}

func (m *forestModel) Labels() []string {
	return m.labels
}

func (m *forestModel) FeatureImportances() ([]float64, bool) {
	return m.Importances, true
}

func defaultMaxFeatures(task Task, numFeatures int) int {
	if task == Classification {
		return int(math.Max(1, math.Sqrt(float64(numFeatures))))
	}
	return int(math.Max(1, float64(numFeatures)/3))
}

func normalize(weights []float64) {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total == 0 {
		return
	}
	for i := range weights {
		weights[i] /= total
	}
}

func decodeForest(payload json.RawMessage, task Task, labels []string) (FittedModel, error) {
	p := forestPayload{}
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, xerrors.Wrap(err)
	}
	return &forestModel{forestPayload: p, task: task, labels: labels}, nil
}
