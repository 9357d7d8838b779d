package train

import (
	"encoding/json"
	"math"

	"github.com/modelyard/modelyard/pkg/domain"
	"github.com/modelyard/modelyard/pkg/xerrors"
)

// logisticTrainer fits logistic regression by full-batch gradient descent,
// one binary model per class (one-vs-rest) beyond two classes.
//
// Hyperparameters: "learning_rate" (0.1), "epochs" (200), "alpha" L2 (1e-4).
type logisticTrainer struct {
	labels []string
}

type binaryLinear struct {
	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`
}

type logisticPayload struct {
	Models      []binaryLinear `json:"models"`
	Importances []float64      `json:"importances"`
}

type logisticModel struct {
	logisticPayload
	labels []string
}

func (t *logisticTrainer) Fit(X [][]float64, y []float64, hp map[string]any) (FittedModel, error) {
	if len(X) == 0 {
		return nil, xerrors.New("empty training set")
	}
	lr := floatParam(hp, "learning_rate", 0.1)
	epochs := intParam(hp, "epochs", 200)
	alpha := floatParam(hp, "alpha", 1e-4)

	numClasses := len(t.labels)
	if numClasses < 2 {
		return nil, xerrors.New("logistic regression needs at least 2 classes")
	}

	payload := logisticPayload{}

	// two classes need a single separator; more need one per class.
	heads := numClasses
	if numClasses == 2 {
		heads = 1
	}
	for class := 0; class < heads; class++ {
		target := make([]float64, len(y))
		for i := range y {
			if int(math.Round(y[i])) == class+boolToInt(numClasses == 2) {
				target[i] = 1
			}
		}
		payload.Models = append(payload.Models, fitLogisticGD(X, target, lr, epochs, alpha))
	}

	imp := make([]float64, len(X[0]))
	for _, m := range payload.Models {
		for j, w := range coefficientImportances(X, m.Weights) {
			imp[j] += w
		}
	}
	normalize(imp)
	payload.Importances = imp

	return &logisticModel{logisticPayload: payload, labels: t.labels}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func fitLogisticGD(X [][]float64, y []float64, lr float64, epochs int, alpha float64) binaryLinear {
	d := len(X[0])
	w := make([]float64, d)
	intercept := 0.0
	n := float64(len(X))

	for epoch := 0; epoch < epochs; epoch++ {
		gradW := make([]float64, d)
		gradB := 0.0
		for i, row := range X {
			err := sigmoid(dot(w, row)+intercept) - y[i]
			for j := range w {
				gradW[j] += err * row[j]
			}
			gradB += err
		}
		for j := range w {
			w[j] -= lr * (gradW[j]/n + alpha*w[j])
		}
		intercept -= lr * gradB / n
	}
	return binaryLinear{Weights: w, Intercept: intercept}
}

func (m *logisticModel) Predict(X [][]float64) []float64 {
	ret := make([]float64, len(X))
	for i, row := range X {
		if len(m.Models) == 1 {
			// binary: class 1 iff p >= 0.5.
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
	}
	return ret
}

func (m *logisticModel) Serialize() ([]byte, error) {
	return sealModel(m, m.logisticPayload)
}

func (m *logisticModel) Family() domain.ModelFamily {
	return domain.LinearClassification
}

func (m *logisticModel) Task() Task {
	return Classification
}

func (m *logisticModel) Labels() []string {
	return m.labels
}

func (m *logisticModel) FeatureImportances() ([]float64, bool) {
	return m.Importances, true
}

func decodeLogistic(payload json.RawMessage, labels []string) (FittedModel, error) {
	p := logisticPayload{}
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, xerrors.Wrap(err)
	}
	return &logisticModel{logisticPayload: p, labels: labels}, nil
}
