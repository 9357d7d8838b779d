package train

import (
	"encoding/json"
	"math"
	"math/rand"

	"github.com/modelyard/modelyard/pkg/domain"
	"github.com/modelyard/modelyard/pkg/xerrors"
)

// marginTrainer fits linear margin-based models by stochastic subgradient
// descent: hinge loss (Pegasos) for classification, epsilon-insensitive loss
// for regression.
//
// Hyperparameters: "lambda" (1e-4), "epochs" (5), "epsilon" (0.1, regression).
type marginTrainer struct {
	task   Task
	labels []string
	seed   int64
}

type marginPayload struct {
	Models []binaryLinear `json:"models"`
}

type marginModel struct {
	marginPayload
	task   Task
	labels []string
}

func (t *marginTrainer) Fit(X [][]float64, y []float64, hp map[string]any) (FittedModel, error) {
	if len(X) == 0 {
		return nil, xerrors.New("empty training set")
	}
	lambda := floatParam(hp, "lambda", 1e-4)
	epochs := intParam(hp, "epochs", 5)
	epsilon := floatParam(hp, "epsilon", 0.1)

	rng := rand.New(rand.NewSource(t.seed))
	payload := marginPayload{}

	switch t.task {
	case Classification:
		numClasses := len(t.labels)
		if numClasses < 2 {
			return nil, xerrors.New("margin classifier needs at least 2 classes")
		}
		heads := numClasses
		if numClasses == 2 {
			heads = 1
		}
		for class := 0; class < heads; class++ {
			signs := make([]float64, len(y))
			for i := range y {
				if int(math.Round(y[i])) == class+boolToInt(numClasses == 2) {
					signs[i] = 1
				} else {
					signs[i] = -1
				}
			}
			payload.Models = append(payload.Models, fitPegasos(X, signs, lambda, epochs, rng))
		}
	default:
		payload.Models = []binaryLinear{fitLinearSVR(X, y, lambda, epsilon, epochs, rng)}
	}

	return &marginModel{marginPayload: payload, task: t.task, labels: t.labels}, nil
}

// fitPegasos runs the Pegasos subgradient solver on ±1 targets.
func fitPegasos(X [][]float64, signs []float64, lambda float64, epochs int, rng *rand.Rand) binaryLinear {
	d := len(X[0])
	w := make([]float64, d)
	intercept := 0.0

	step := 0
	for epoch := 0; epoch < epochs; epoch++ {
		for range X {
			step += 1
			i := rng.Intn(len(X))
			eta := 1 / (lambda * float64(step))

			margin := signs[i] * (dot(w, X[i]) + intercept)
			for j := range w {
				w[j] -= eta * lambda * w[j]
			}
			if margin < 1 {
				for j := range w {
					w[j] += eta * signs[i] * X[i][j]
				}
				intercept += eta * signs[i]
			}
		}
	}
	return binaryLinear{Weights: w, Intercept: intercept}
}

// fitLinearSVR minimizes epsilon-insensitive loss with L2 regularization.
func fitLinearSVR(X [][]float64, y []float64, lambda, epsilon float64, epochs int, rng *rand.Rand) binaryLinear {
	d := len(X[0])
	w := make([]float64, d)
	intercept := mean(y)

	step := 0
	for epoch := 0; epoch < epochs; epoch++ {
		for range X {
			step += 1
			i := rng.Intn(len(X))
			eta := 1 / (lambda * float64(step))

			residual := dot(w, X[i]) + intercept - y[i]
			for j := range w {
				w[j] -= eta * lambda * w[j]
			}
			if epsilon < math.Abs(residual) {
				sign := 1.0
				if residual < 0 {
					sign = -1
				}
				for j := range w {
					w[j] -= eta * sign * X[i][j]
				}
				intercept -= eta * sign
			}
		}
	}
	return binaryLinear{Weights: w, Intercept: intercept}
}

func (m *marginModel) Predict(X [][]float64) []float64 {
	ret := make([]float64, len(X))
	for i, row := range X {
		switch m.task {
		case Classification:
			if len(m.Models) == 1 {
				if 0 <= dot(m.Models[0].Weights, row)+m.Models[0].Intercept {
					ret[i] = 1
				}
				continue
			}
			best, bestScore := 0, math.Inf(-1)
			for class, bm := range m.Models {
				s := dot(bm.Weights, row) + bm.Intercept
				if bestScore < s {
					best, bestScore = class, s
				}
			}
			ret[i] = float64(best)
		default:
			ret[i] = dot(m.Models[0].Weights, row) + m.Models[0].Intercept
		}
	}
	return ret
}

func (m *marginModel) Serialize() ([]byte, error) {
	return sealModel(m, m.marginPayload)
}

func (m *marginModel) Family() domain.ModelFamily {
	return domain.Margin
}

func (m *marginModel) Task() Task {
	return m.task
}

func (m *marginModel) Labels() []string {
	return m.labels
}

// margin models expose no exact explainer; the sampling-based fallback
// handles them.
func (m *marginModel) FeatureImportances() ([]float64, bool) {
	return nil, false
}

func decodeMargin(payload json.RawMessage, task Task, labels []string) (FittedModel, error) {
	p := marginPayload{}
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, xerrors.Wrap(err)
	}
	return &marginModel{marginPayload: p, task: task, labels: labels}, nil
}
