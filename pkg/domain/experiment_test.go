package domain_test

import (
	"testing"

	"github.com/modelyard/modelyard/pkg/domain"
)

func TestExperimentStatus_CanTransitTo(t *testing.T) {
	type When struct {
		from domain.ExperimentStatus
		to   domain.ExperimentStatus
	}

	legal := []When{
		{domain.Draft, domain.Queued},
		{domain.Draft, domain.Cancelled},
		{domain.Queued, domain.Running},
		{domain.Queued, domain.Cancelled},
		{domain.Running, domain.Finished},
		{domain.Running, domain.Errored},
		{domain.Running, domain.Cancelled},
		{domain.Errored, domain.Queued},
		{domain.Cancelled, domain.Queued},
	}
	for _, when := range legal {
		if !when.from.CanTransitTo(when.to) {
			t.Errorf("%s -> %s should be legal", when.from, when.to)
		}
	}

	illegal := []When{
		{domain.Draft, domain.Running},
		{domain.Draft, domain.Finished},
		{domain.Queued, domain.Finished},
		{domain.Queued, domain.Draft},
		{domain.Running, domain.Queued},
		{domain.Finished, domain.Queued},
		{domain.Finished, domain.Running},
		{domain.Errored, domain.Running},
		{domain.Cancelled, domain.Running},
	}
	for _, when := range illegal {
		if when.from.CanTransitTo(when.to) {
			t.Errorf("%s -> %s should be illegal", when.from, when.to)
		}
	}
}

func TestExperiment_Fork(t *testing.T) {
	runId := "run-1"
	suiteId := "suite-1"
	original := &domain.Experiment{
		ExperimentBody: domain.ExperimentBody{
			Id:                 "exp-1",
			ProjectId:          "proj-1",
			Status:             domain.Finished,
			ValidationStrategy: domain.SimpleSplit,
			ModelFamily:        domain.RandomForest,
			Hyperparameters:    map[string]any{"n_estimators": 50},
			TargetColumn:       "y",
			TestSplitFraction:  0.25,
			RandomSeed:         7,
			DatasourceId:       "ds-1",
			CurrentStage:       4,
			TrackingRunId:      &runId,
			SuiteId:            &suiteId,
			Version:            9,
		},
		ArtifactPaths: map[string]string{"model": "/somewhere/model"},
		Results:       &domain.Results{Metrics: map[string]float64{"mse": 1}},
	}

	forked := original.Fork("exp-2")

	if forked.Id != "exp-2" {
		t.Errorf("id: got %s", forked.Id)
	}
	if forked.Status != domain.Draft {
		t.Errorf("status: got %s, want draft", forked.Status)
	}
	if forked.ForkedFrom == nil || *forked.ForkedFrom != "exp-1" {
		t.Errorf("lineage: got %v", forked.ForkedFrom)
	}
	if forked.CurrentStage != 0 || forked.TrackingRunId != nil || forked.SuiteId != nil {
		t.Error("stage products carried over")
	}
	if len(forked.ArtifactPaths) != 0 || forked.Results != nil {
		t.Error("artifacts or results carried over")
	}

	// settings carry over, but the hyperparameter map is independent.
	if forked.ModelFamily != domain.RandomForest || forked.TargetColumn != "y" {
		t.Error("fixed settings lost")
	}
	forked.Hyperparameters["n_estimators"] = 99
	if original.Hyperparameters["n_estimators"] != 50 {
		t.Error("fork shares the original's hyperparameter map")
	}
}

func TestSearchSpace_Validate(t *testing.T) {
	t.Run("a well-formed space passes", func(t *testing.T) {
		space := domain.SearchSpace{
			Order: []string{"depth", "kernel"},
			Domains: map[string]domain.ParamDomain{
				"depth":  {Kind: domain.IntRange, Low: 1, High: 8},
				"kernel": {Kind: domain.Categorical, Choices: []any{"linear", "rbf"}},
			},
		}
		if err := space.Validate(); err != nil {
			t.Error(err)
		}
	})

	t.Run("order naming an unknown domain fails", func(t *testing.T) {
		space := domain.SearchSpace{
			Order:   []string{"depth"},
			Domains: map[string]domain.ParamDomain{},
		}
		if err := space.Validate(); err == nil {
			t.Error("should fail")
		}
	})

	t.Run("an empty range fails", func(t *testing.T) {
		space := domain.SearchSpace{
			Order: []string{"lr"},
			Domains: map[string]domain.ParamDomain{
				"lr": {Kind: domain.FloatRange, Low: 1, High: 0},
			},
		}
		if err := space.Validate(); err == nil {
			t.Error("should fail")
		}
	})

	t.Run("a categorical without choices fails", func(t *testing.T) {
		space := domain.SearchSpace{
			Order: []string{"kernel"},
			Domains: map[string]domain.ParamDomain{
				"kernel": {Kind: domain.Categorical},
			},
		}
		if err := space.Validate(); err == nil {
			t.Error("should fail")
		}
	})
}
