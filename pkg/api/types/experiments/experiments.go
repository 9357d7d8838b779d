package experiments

import (
	"time"

	"github.com/modelyard/modelyard/pkg/domain"
)

// CreationSpec is the request body for registering a new draft experiment.
type CreationSpec struct {
	ProjectId          string         `json:"projectId"`
	ValidationStrategy string         `json:"validationStrategy"`
	ModelFamily        string         `json:"modelFamily"`
	Hyperparameters    map[string]any `json:"hyperparameters,omitempty"`
	FeatureSet         []string       `json:"featureSet,omitempty"`
	TargetColumn       string         `json:"targetColumn"`
	TestSplitFraction  float64        `json:"testSplitFraction,omitempty"`
	RandomSeed         int64          `json:"randomSeed,omitempty"`
	DatasourceId       string         `json:"datasourceId"`
}

type Results struct {
	Metrics          map[string]float64      `json:"metrics"`
	PredictionSample []domain.PredictionPair `json:"predictionSample"`
}

type Detail struct {
	Id                 string         `json:"id"`
	ProjectId          string         `json:"projectId"`
	Status             string         `json:"status"`
	ValidationStrategy string         `json:"validationStrategy"`
	ModelFamily        string         `json:"modelFamily"`
	Hyperparameters    map[string]any `json:"hyperparameters,omitempty"`
	FeatureSet         []string       `json:"featureSet,omitempty"`
	TargetColumn       string         `json:"targetColumn"`
	TestSplitFraction  float64        `json:"testSplitFraction"`
	RandomSeed         int64          `json:"randomSeed"`
	DatasourceId       string         `json:"datasourceId"`

	CurrentStage  int               `json:"currentStage"`
	ErrorMessage  string            `json:"errorMessage,omitempty"`
	TrackingRunId *string           `json:"trackingRunId,omitempty"`
	SuiteId       *string           `json:"suiteId,omitempty"`
	ForkedFrom    *string           `json:"forkedFrom,omitempty"`
	ArtifactPaths map[string]string `json:"artifactPaths,omitempty"`
	Results       *Results          `json:"results,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}

func ComposeDetail(ex domain.Experiment) Detail {
	d := Detail{
		Id:                 ex.Id,
		ProjectId:          ex.ProjectId,
		Status:             string(ex.Status),
		ValidationStrategy: string(ex.ValidationStrategy),
		ModelFamily:        string(ex.ModelFamily),
		Hyperparameters:    ex.Hyperparameters,
		FeatureSet:         ex.FeatureSet,
		TargetColumn:       ex.TargetColumn,
		TestSplitFraction:  ex.TestSplitFraction,
		RandomSeed:         ex.RandomSeed,
		DatasourceId:       ex.DatasourceId,
		CurrentStage:       ex.CurrentStage,
		ErrorMessage:       ex.ErrorMessage,
		TrackingRunId:      ex.TrackingRunId,
		SuiteId:            ex.SuiteId,
		ForkedFrom:         ex.ForkedFrom,
		ArtifactPaths:      ex.ArtifactPaths,
		UpdatedAt:          ex.UpdatedAt,
	}
	if ex.Results != nil {
		d.Results = &Results{
			Metrics:          ex.Results.Metrics,
			PredictionSample: ex.Results.PredictionSample,
		}
	}
	return d
}
