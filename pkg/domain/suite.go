package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/modelyard/modelyard/pkg/utils/cmp"
)

type StudyType string

const (
	// exhaustive search over the cartesian product of list-valued domains.
	GridSearch StudyType = "grid_search"

	// sequential trial-suggest-and-score optimization with a fixed budget.
	BayesianSweep StudyType = "bayesian_sweep"

	// plain grouping of related experiments; no search strategy attached.
	Grouping StudyType = "grouping"
)

func AsStudyType(s string) (StudyType, error) {
	switch s {
	case string(GridSearch):
		return GridSearch, nil
	case string(BayesianSweep):
		return BayesianSweep, nil
	case string(Grouping):
		return Grouping, nil
	default:
		return "", fmt.Errorf("'%s' is not StudyType", s)
	}
}

type SuiteStatus string

const (
	SuiteDraft     SuiteStatus = "draft"
	SuiteRunning   SuiteStatus = "running"
	SuiteCompleted SuiteStatus = "completed"
	SuiteFailed    SuiteStatus = "failed"
)

func AsSuiteStatus(s string) (SuiteStatus, error) {
	switch s {
	case string(SuiteDraft):
		return SuiteDraft, nil
	case string(SuiteRunning):
		return SuiteRunning, nil
	case string(SuiteCompleted):
		return SuiteCompleted, nil
	case string(SuiteFailed):
		return SuiteFailed, nil
	default:
		return "", fmt.Errorf("'%s' is not SuiteStatus", s)
	}
}

func (ss SuiteStatus) IsTerminal() bool {
	return ss == SuiteCompleted || ss == SuiteFailed
}

type ParamKind string

const (
	IntRange    ParamKind = "int"
	FloatRange  ParamKind = "float"
	Categorical ParamKind = "categorical"
)

// one dimension of a search space.
//
// IntRange and FloatRange use [Low, High] (inclusive); Categorical uses Choices.
type ParamDomain struct {
	Kind ParamKind `json:"kind"`

	Low  float64 `json:"low,omitempty"`
	High float64 `json:"high,omitempty"`

	Choices []any `json:"choices,omitempty"`
}

func (pd ParamDomain) Validate() error {
	switch pd.Kind {
	case IntRange, FloatRange:
		if pd.High < pd.Low || math.IsNaN(pd.Low) || math.IsNaN(pd.High) {
			return fmt.Errorf("%w: range [%v, %v] is empty", ErrUnsupportedConfiguration, pd.Low, pd.High)
		}
		return nil
	case Categorical:
		if len(pd.Choices) == 0 {
			return fmt.Errorf("%w: categorical domain without choices", ErrUnsupportedConfiguration)
		}
		return nil
	default:
		return fmt.Errorf("%w: '%s' is not ParamKind", ErrUnsupportedConfiguration, pd.Kind)
	}
}

// SearchSpace keeps the declared parameter order; grid enumeration and
// trial parameter vectors follow it.
type SearchSpace struct {
	Order   []string               `json:"order"`
	Domains map[string]ParamDomain `json:"domains"`
}

func (ss SearchSpace) Empty() bool {
	return len(ss.Order) == 0
}

func (ss SearchSpace) Validate() error {
	if len(ss.Order) != len(ss.Domains) {
		return fmt.Errorf("%w: search space order and domains disagree", ErrUnsupportedConfiguration)
	}
	for _, name := range ss.Order {
		d, ok := ss.Domains[name]
		if !ok {
			return fmt.Errorf("%w: parameter '%s' has no domain", ErrUnsupportedConfiguration, name)
		}
		if err := d.Validate(); err != nil {
			return fmt.Errorf("parameter '%s': %w", name, err)
		}
	}
	return nil
}

// one suggested-and-scored hyperparameter vector.
type Trial struct {
	Index  int
	Params map[string]any

	// objective extracted from the child's results. For a failed trial this
	// is the worst-possible sentinel for the study's direction (±Inf).
	ObjectiveValue float64

	ChildExperimentId string
	Failed            bool
}

func (t Trial) Equal(o Trial) bool {
	objEq := t.ObjectiveValue == o.ObjectiveValue ||
		(math.IsNaN(t.ObjectiveValue) && math.IsNaN(o.ObjectiveValue))
	return t.Index == o.Index &&
		objEq &&
		t.ChildExperimentId == o.ChildExperimentId &&
		t.Failed == o.Failed &&
		cmp.MapEqWith(t.Params, o.Params, func(a, b any) bool { return a == b })
}

type Suite struct {
	Id        string
	ProjectId string

	StudyType   StudyType
	SearchSpace SearchSpace

	// name of the metric the study optimizes; direction is inferred from it.
	OptimizationMetric string

	// template experiment whose fixed settings seed children.
	// Required for grid search.
	BaseExperimentId *string

	Status       SuiteStatus
	ErrorMessage string

	// maximum number of trials a sweep may run.
	TrialBudget int

	// append-only ledger, one entry per trial. len(Trials) <= TrialBudget.
	Trials []Trial

	// index into Trials of the best finite-valued trial, or nil.
	BestTrialIndex *int

	// post-hoc parameter-sensitivity ranking, written once at completion.
	ParamImportances map[string]float64

	Version   int
	UpdatedAt time.Time
}
