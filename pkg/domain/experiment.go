package domain

import (
	"fmt"
	"time"

	"github.com/modelyard/modelyard/pkg/utils/cmp"
	"github.com/modelyard/modelyard/pkg/utils/maps"
)

type ExperimentStatus string

const (
	// This Experiment is being configured and has never been queued.
	Draft ExperimentStatus = "draft"

	// This Experiment is waiting for a worker to pick its pipeline up.
	Queued ExperimentStatus = "queued"

	// This Experiment's pipeline is in flight.
	Running ExperimentStatus = "running"

	// This Experiment's pipeline has completed all stages successfully.
	Finished ExperimentStatus = "finished"

	// This Experiment's pipeline stopped with error.
	Errored ExperimentStatus = "error"

	// This Experiment was cancelled. Stages refuse to start; work already
	// in flight is not interrupted.
	Cancelled ExperimentStatus = "cancelled"
)

func (es ExperimentStatus) String() string {
	return string(es)
}

func AsExperimentStatus(status string) (ExperimentStatus, error) {
	switch status {
	case string(Draft):
		return Draft, nil
	case string(Queued):
		return Queued, nil
	case string(Running):
		return Running, nil
	case string(Finished):
		return Finished, nil
	case string(Errored):
		return Errored, nil
	case string(Cancelled):
		return Cancelled, nil
	default:
		return "", fmt.Errorf("'%s' is not ExperimentStatus", status)
	}
}

// Terminal statuses change only via an explicit retry-reset.
func (es ExperimentStatus) IsTerminal() bool {
	switch es {
	case Finished, Errored, Cancelled:
		return true
	default:
		return false
	}
}

// legal transitions of the pipeline state machine.
//
// draft -> queued -> running -> {finished | error},
// {error | cancelled} -> queued (retry-reset),
// any non-terminal -> cancelled.
func (es ExperimentStatus) CanTransitTo(next ExperimentStatus) bool {
	switch es {
	case Draft:
		return next == Queued || next == Cancelled
	case Queued:
		return next == Running || next == Cancelled
	case Running:
		return next == Finished || next == Errored || next == Cancelled
	case Errored, Cancelled:
		return next == Queued
	default:
		return false
	}
}

type ValidationStrategy string

const (
	// seeded uniform random split into train/test.
	SimpleSplit ValidationStrategy = "simple_split"

	// expanding-window cross validation preserving temporal row order.
	TimeSeriesCV ValidationStrategy = "time_series_cv"
)

func AsValidationStrategy(s string) (ValidationStrategy, error) {
	switch s {
	case string(SimpleSplit):
		return SimpleSplit, nil
	case string(TimeSeriesCV):
		return TimeSeriesCV, nil
	default:
		return "", fmt.Errorf("'%s' is not ValidationStrategy", s)
	}
}

type ModelFamily string

const (
	RandomForest         ModelFamily = "random_forest"
	GradientBoosting     ModelFamily = "gradient_boosting"
	Linear               ModelFamily = "linear"
	LinearClassification ModelFamily = "linear_classification"
	Margin               ModelFamily = "svm"
)

func AsModelFamily(s string) (ModelFamily, error) {
	switch s {
	case string(RandomForest):
		return RandomForest, nil
	case string(GradientBoosting):
		return GradientBoosting, nil
	case string(Linear):
		return Linear, nil
	case string(LinearClassification):
		return LinearClassification, nil
	case string(Margin):
		return Margin, nil
	default:
		return "", fmt.Errorf("%w: '%s' is not a known model family", ErrUnsupportedConfiguration, s)
	}
}

// one (actual, predicted) pair surfaced in experiment results.
//
// For classifier variants both values are label-encoded.
type PredictionPair struct {
	Actual    float64 `json:"actual"`
	Predicted float64 `json:"predicted"`
}

type Results struct {
	// metric name -> value. Regression view: mse, mae, r2, rmse.
	Metrics map[string]float64 `json:"metrics"`

	// at most 1000 pairs, seeded uniform sample when the test set is larger.
	PredictionSample []PredictionPair `json:"prediction_sample"`
}

func (r *Results) Equal(o *Results) bool {
	if (r == nil) || (o == nil) {
		return (r == nil) && (o == nil)
	}
	return cmp.MapEq(r.Metrics, o.Metrics) &&
		cmp.SliceEq(r.PredictionSample, o.PredictionSample)
}

// Core part of experiment, without stage products.
type ExperimentBody struct {
	Id        string
	ProjectId string
	Status    ExperimentStatus

	ValidationStrategy ValidationStrategy
	ModelFamily        ModelFamily

	// hyperparameter name -> value, passed to the model family as is.
	Hyperparameters map[string]any

	// ordered feature column names. Empty means "all columns but the target".
	FeatureSet []string

	TargetColumn      string
	TestSplitFraction float64
	RandomSeed        int64

	// name of the dataset materialized by the data provider.
	DatasourceId string

	// index of the next pipeline stage to execute. Persisted so a crashed
	// worker resumes from the last completed stage.
	CurrentStage int

	ErrorMessage string

	// opaque run id at the experiment tracker. Nil until a run is started.
	TrackingRunId *string

	// owning suite, if this experiment was spawned by one.
	SuiteId *string

	// lineage: experiment this one was forked from, if any.
	ForkedFrom *string

	Version   int
	UpdatedAt time.Time
}

type Experiment struct {
	ExperimentBody

	// stage-output-name -> artifact path. Append-only over the pipeline's
	// lifetime; retry-reset does not erase entries.
	ArtifactPaths map[string]string

	Results *Results
}

func (e *Experiment) Equal(o *Experiment) bool {
	if (e == nil) || (o == nil) {
		return (e == nil) && (o == nil)
	}
	return e.Id == o.Id &&
		e.ProjectId == o.ProjectId &&
		e.Status == o.Status &&
		e.ValidationStrategy == o.ValidationStrategy &&
		e.ModelFamily == o.ModelFamily &&
		cmp.SliceEq(e.FeatureSet, o.FeatureSet) &&
		e.TargetColumn == o.TargetColumn &&
		e.CurrentStage == o.CurrentStage &&
		cmp.MapEq(e.ArtifactPaths, o.ArtifactPaths) &&
		e.Results.Equal(o.Results)
}

// Fork clones fixed settings into a fresh draft carrying lineage.
//
// Stage products (artifact paths, results, tracking run) do not carry over.
func (e *Experiment) Fork(newId string) *Experiment {
	body := e.ExperimentBody
	body.Id = newId
	body.Status = Draft
	body.CurrentStage = 0
	body.ErrorMessage = ""
	body.TrackingRunId = nil
	body.SuiteId = nil
	body.ForkedFrom = &e.ExperimentBody.Id
	body.Version = 1
	body.Hyperparameters = maps.Copy(e.Hyperparameters)
	return &Experiment{
		ExperimentBody: body,
		ArtifactPaths:  map[string]string{},
	}
}
