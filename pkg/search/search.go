// Package search runs hyperparameter studies: exhaustive grid enumeration
// and sequential Bayesian-style sweeps, both spawning child experiments
// through the pipeline.
package search

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/modelyard/modelyard/pkg/domain"
	expdb "github.com/modelyard/modelyard/pkg/domain/experiment/db"
	suitedb "github.com/modelyard/modelyard/pkg/domain/suite/db"
	"github.com/modelyard/modelyard/pkg/utils/maps"
	"github.com/modelyard/modelyard/pkg/utils/pointer"
)

// Runner executes one experiment's pipeline to completion.
// Satisfied by pipeline.Orchestrator.
type Runner interface {
	Run(ctx context.Context, experimentId string) error
}

type Controller struct {
	Suites      suitedb.Interface
	Experiments expdb.Interface
	Pipeline    Runner
	Logger      *log.Logger

	// NewId generates child experiment ids. Defaults to random UUIDs.
	NewId func() string
}

func (c *Controller) newId() string {
	if c.NewId != nil {
		return c.NewId()
	}
	return uuid.NewString()
}

// Run executes the suite's study to its terminal status.
//
// The suite transitions Draft -> Running -> {Completed | Failed}. A study
// that cannot even start (malformed or empty search space, missing base
// experiment) fails before spawning any child.
func (c *Controller) Run(ctx context.Context, suiteId string) error {
	suite, err := c.Suites.GetOne(ctx, suiteId)
	if err != nil {
		return err
	}
	if suite.Status.IsTerminal() {
		return fmt.Errorf("%w: suite %s is already %s", domain.ErrInvalidStateChanging, suiteId, suite.Status)
	}
	if suite.Status == domain.SuiteDraft {
		if err := c.Suites.SetStatus(ctx, suiteId, domain.SuiteRunning, ""); err != nil {
			return err
		}
		suite.Status = domain.SuiteRunning
	}

	var studyErr error
	switch suite.StudyType {
	case domain.GridSearch:
		studyErr = c.runGrid(ctx, suite)
	case domain.BayesianSweep:
		studyErr = c.runBayesian(ctx, suite)
	case domain.Grouping:
		// no search strategy attached; the suite only groups experiments.
	default:
		studyErr = fmt.Errorf(
			"%w: '%s' is not a study type", domain.ErrUnsupportedConfiguration, suite.StudyType,
		)
	}

	if studyErr != nil {
		if err := c.Suites.SetStatus(ctx, suiteId, domain.SuiteFailed, studyErr.Error()); err != nil {
			c.Logger.Printf("suite %s: persisting failure failed: %s", suiteId, err)
		}
		return studyErr
	}
	return c.Suites.SetStatus(ctx, suiteId, domain.SuiteCompleted, "")
}

// baseExperiment loads the template experiment children are forked from.
func (c *Controller) baseExperiment(ctx context.Context, suite *domain.Suite) (*domain.Experiment, error) {
	if suite.BaseExperimentId == nil {
		return nil, fmt.Errorf("%w: suite has no base experiment", domain.ErrUnsupportedConfiguration)
	}
	return c.Experiments.GetOne(ctx, *suite.BaseExperimentId)
}

// runTrial forks one child off the base with the suggested params, runs its
// pipeline synchronously and extracts the objective.
//
// A failed trial never escapes: it is recorded with the worst-possible
// sentinel for the study's direction, and the study moves on.
func (c *Controller) runTrial(
	ctx context.Context,
	suite *domain.Suite, base *domain.Experiment,
	index int, params map[string]any,
	dir direction,
) domain.Trial {
	trial := domain.Trial{
		Index:          index,
		Params:         params,
		ObjectiveValue: dir.worst(),
		Failed:         true,
	}

	child := base.Fork(c.newId())
	child.Status = domain.Queued
	child.SuiteId = &suite.Id
	child.Hyperparameters = maps.Merge(child.Hyperparameters, params)
	trial.ChildExperimentId = child.Id

	if err := c.Experiments.Register(ctx, child); err != nil {
		c.Logger.Printf("suite %s: trial %d: registering child failed: %s", suite.Id, index, err)
		return trial
	}
	if err := c.Pipeline.Run(ctx, child.Id); err != nil {
		c.Logger.Printf("suite %s: trial %d: %s: %s", suite.Id, index, domain.ErrTrialExecution, err)
		return trial
	}

	finished, err := c.Experiments.GetOne(ctx, child.Id)
	if err != nil {
		c.Logger.Printf("suite %s: trial %d: reloading child failed: %s", suite.Id, index, err)
		return trial
	}
	objective, err := objectiveOf(finished, suite.OptimizationMetric)
	if err != nil {
		c.Logger.Printf("suite %s: trial %d: %s: %s", suite.Id, index, domain.ErrTrialExecution, err)
		return trial
	}

	trial.ObjectiveValue = objective
	trial.Failed = false
	return trial
}

// objectiveOf extracts the optimization metric from an experiment's results.
func objectiveOf(ex *domain.Experiment, metric string) (float64, error) {
	if ex.Results == nil {
		return 0, fmt.Errorf("%w: experiment %s has no results", domain.ErrTrialExecution, ex.Id)
	}
	v, ok := ex.Results.Metrics[canonicalMetric(metric)]
	if !ok {
		return 0, fmt.Errorf(
			"%w: experiment %s has no metric '%s'", domain.ErrTrialExecution, ex.Id, metric,
		)
	}
	return v, nil
}

// metricAliases maps spelled-out metric names onto the canonical short names
// the evaluator reports.
var metricAliases = map[string]string{
	"mean_squared_error":      "mse",
	"mean_absolute_error":     "mae",
	"root_mean_squared_error": "rmse",
	"r2_score":                "r2",
}

func canonicalMetric(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := metricAliases[lower]; ok {
		return canonical
	}
	return lower
}

type direction int

const (
	minimize direction = iota
	maximize
)

// directionFor infers the optimization direction from the metric name:
// error-like metrics are minimized, everything else is maximized.
func directionFor(metric string) direction {
	lower := strings.ToLower(metric)
	for _, marker := range []string{"mse", "mae", "rmse", "error", "loss"} {
		if strings.Contains(lower, marker) {
			return minimize
		}
	}
	return maximize
}

// worst is the sentinel objective for a failed trial: never preferable to
// any finite value.
func (d direction) worst() float64 {
	if d == minimize {
		return math.Inf(1)
	}
	return math.Inf(-1)
}

func (d direction) better(a, b float64) bool {
	if d == minimize {
		return a < b
	}
	return b < a
}

// bestTrialIndex scans the ledger for the best finite-valued trial.
// Returns nil when every trial failed.
func bestTrialIndex(trials []domain.Trial, dir direction) *int {
	var best *int
	for i := range trials {
		t := trials[i]
		if t.Failed || math.IsInf(t.ObjectiveValue, 0) || math.IsNaN(t.ObjectiveValue) {
			continue
		}
		if best == nil || dir.better(t.ObjectiveValue, trials[*best].ObjectiveValue) {
			best = pointer.Ref(i)
		}
	}
	return best
}
