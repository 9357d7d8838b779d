package train

import (
	"encoding/json"
	"math"

	"github.com/modelyard/modelyard/pkg/domain"
	"github.com/modelyard/modelyard/pkg/xerrors"
	"gonum.org/v1/gonum/mat"
)

// linearTrainer solves ridge-regularized least squares.
// Hyperparameter "alpha" (default 0) is the L2 penalty.
type linearTrainer struct{}

type linearPayload struct {
	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`

	// |w_j| * std(x_j), the exact linear explainer input.
	Importances []float64 `json:"importances"`
}

type linearModel struct {
	linearPayload
}

func (t *linearTrainer) Fit(X [][]float64, y []float64, hp map[string]any) (FittedModel, error) {
	if len(X) == 0 {
		return nil, xerrors.New("empty training set")
	}
	alpha := floatParam(hp, "alpha", 0)

	n := len(X)
	d := len(X[0])

	// augment with sqrt(alpha)*I rows so plain QR solves the ridge problem;
	// the intercept column is not penalized.
	rows := n + d
	a := mat.NewDense(rows, d+1, nil)
	b := mat.NewVecDense(rows, nil)
	for i, row := range X {
		for j, v := range row {
			a.Set(i, j, v)
		}
		a.Set(i, d, 1)
		b.SetVec(i, y[i])
	}
	if 0 < alpha {
		s := math.Sqrt(alpha)
		for j := 0; j < d; j++ {
			a.Set(n+j, j, s)
		}
	}

	qr := &mat.QR{}
	qr.Factorize(a)
	solution := mat.NewDense(d+1, 1, nil)
	if err := qr.SolveTo(solution, false, b); err != nil {
		return nil, xerrors.Wrap(err)
	}

	payload := linearPayload{
		Weights:   make([]float64, d),
		Intercept: solution.At(d, 0),
	}
	for j := 0; j < d; j++ {
		payload.Weights[j] = solution.At(j, 0)
	}
	payload.Importances = coefficientImportances(X, payload.Weights)

	return &linearModel{linearPayload: payload}, nil
}

func (m *linearModel) Predict(X [][]float64) []float64 {
	ret := make([]float64, len(X))
	for i, row := range X {
		ret[i] = dot(m.Weights, row) + m.Intercept
	}
	return ret
}

func (m *linearModel) Serialize() ([]byte, error) {
	return sealModel(m, m.linearPayload)
}

func (m *linearModel) Family() domain.ModelFamily {
	return domain.Linear
}

func (m *linearModel) Task() Task {
	return Regression
}

func (m *linearModel) Labels() []string {
	return nil
}

func (m *linearModel) FeatureImportances() ([]float64, bool) {
	return m.Importances, true
}

func decodeLinear(payload json.RawMessage) (FittedModel, error) {
	p := linearPayload{}
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, xerrors.Wrap(err)
	}
	return &linearModel{linearPayload: p}, nil
}

func dot(w, x []float64) float64 {
	s := 0.0
	for j := range w {
		s += w[j] * x[j]
	}
	return s
}

// coefficientImportances weighs each coefficient by its feature's spread,
// normalized to sum 1.
func coefficientImportances(X [][]float64, weights []float64) []float64 {
	d := len(weights)
	imp := make([]float64, d)
	for j := 0; j < d; j++ {
		imp[j] = math.Abs(weights[j]) * stddevOfColumn(X, j)
	}
	normalize(imp)
	return imp
}

func stddevOfColumn(X [][]float64, j int) float64 {
	n := float64(len(X))
	if n == 0 {
		return 0
	}
	sum, sq := 0.0, 0.0
	for _, row := range X {
		sum += row[j]
		sq += row[j] * row[j]
	}
	v := sq/n - (sum/n)*(sum/n)
	if v < 0 {
		v = 0
	}
	return math.Sqrt(v)
}
