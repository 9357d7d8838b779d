// Package train is the uniform fit/predict/serialize abstraction over the
// closed set of model families.
package train

import (
	"fmt"

	"github.com/modelyard/modelyard/pkg/domain"
)

type Task string

const (
	Regression     Task = "regression"
	Classification Task = "classification"
)

// FittedModel is a trained model.
//
// For classifier variants, Predict returns class indexes (see Labels).
type FittedModel interface {
	Predict(X [][]float64) []float64

	// Serialize encodes the model so Deserialize reproduces a model whose
	// predictions are bit-identical.
	Serialize() ([]byte, error)

	Family() domain.ModelFamily
	Task() Task

	// Labels maps class index -> original label. Nil for regression.
	Labels() []string

	// FeatureImportances returns exact per-feature importances when the
	// family has them (tree ensembles, linear models); ok == false means
	// the caller needs a model-agnostic explainer.
	FeatureImportances() ([]float64, bool)
}

// Trainable fits a model of one family.
type Trainable interface {
	Fit(X [][]float64, y []float64, hyperparams map[string]any) (FittedModel, error)
}

// New maps a model family tag and task to a concrete Trainable.
//
// Families supporting one task only ignore the requested task:
// Linear always regresses, LinearClassification always classifies.
// An unknown family is ErrUnsupportedConfiguration.
func New(family domain.ModelFamily, task Task, labels []string, seed int64) (Trainable, error) {
	switch family {
	case domain.RandomForest:
		return &forestTrainer{task: task, labels: labels, seed: seed}, nil
	case domain.GradientBoosting:
		return &boostingTrainer{task: task, labels: labels, seed: seed}, nil
	case domain.Linear:
		return &linearTrainer{}, nil
	case domain.LinearClassification:
		return &logisticTrainer{labels: labels}, nil
	case domain.Margin:
		return &marginTrainer{task: task, labels: labels, seed: seed}, nil
	default:
		return nil, fmt.Errorf(
			"%w: '%s' is not a known model family", domain.ErrUnsupportedConfiguration, family,
		)
	}
}

// hyperparameter accessors. Values arrive as JSON-decoded any; numbers may be
// float64 (JSON), int (search space choices) or int64.

func intParam(hp map[string]any, key string, fallback int) int {
	if hp == nil {
		return fallback
	}
	switch v := hp[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

func floatParam(hp map[string]any, key string, fallback float64) float64 {
	if hp == nil {
		return fallback
	}
	switch v := hp[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return fallback
	}
}
