package suites

import (
	"math"
	"time"

	"github.com/modelyard/modelyard/pkg/domain"
	"github.com/modelyard/modelyard/pkg/utils/pointer"
)

type ParamDomain struct {
	Kind    string  `json:"kind"`
	Low     float64 `json:"low,omitempty"`
	High    float64 `json:"high,omitempty"`
	Choices []any   `json:"choices,omitempty"`
}

type SearchSpace struct {
	Order   []string               `json:"order"`
	Domains map[string]ParamDomain `json:"domains"`
}

func (ss SearchSpace) ToDomain() domain.SearchSpace {
	domains := make(map[string]domain.ParamDomain, len(ss.Domains))
	for name, d := range ss.Domains {
		domains[name] = domain.ParamDomain{
			Kind:    domain.ParamKind(d.Kind),
			Low:     d.Low,
			High:    d.High,
			Choices: d.Choices,
		}
	}
	return domain.SearchSpace{Order: ss.Order, Domains: domains}
}

func composeSearchSpace(ss domain.SearchSpace) SearchSpace {
	domains := make(map[string]ParamDomain, len(ss.Domains))
	for name, d := range ss.Domains {
		domains[name] = ParamDomain{
			Kind:    string(d.Kind),
			Low:     d.Low,
			High:    d.High,
			Choices: d.Choices,
		}
	}
	return SearchSpace{Order: ss.Order, Domains: domains}
}

// CreationSpec is the request body for registering a new suite.
type CreationSpec struct {
	ProjectId          string      `json:"projectId"`
	StudyType          string      `json:"studyType"`
	SearchSpace        SearchSpace `json:"searchSpace"`
	OptimizationMetric string      `json:"optimizationMetric,omitempty"`
	BaseExperimentId   *string     `json:"baseExperimentId,omitempty"`
	TrialBudget        int         `json:"trialBudget,omitempty"`
}

type Trial struct {
	Index  int            `json:"index"`
	Params map[string]any `json:"params"`

	// null for a failed trial: the ledger's worst-possible sentinel is not
	// a JSON number.
	ObjectiveValue *float64 `json:"objectiveValue,omitempty"`

	ChildExperimentId string `json:"childExperimentId"`
	Failed            bool   `json:"failed"`
}

type Detail struct {
	Id                 string      `json:"id"`
	ProjectId          string      `json:"projectId"`
	StudyType          string      `json:"studyType"`
	SearchSpace        SearchSpace `json:"searchSpace"`
	OptimizationMetric string      `json:"optimizationMetric,omitempty"`
	BaseExperimentId   *string     `json:"baseExperimentId,omitempty"`

	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage,omitempty"`

	TrialBudget      int                `json:"trialBudget"`
	Trials           []Trial            `json:"trials"`
	BestTrialIndex   *int               `json:"bestTrialIndex,omitempty"`
	ParamImportances map[string]float64 `json:"paramImportances,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}

func ComposeDetail(s domain.Suite) Detail {
	trials := make([]Trial, len(s.Trials))
	for i, t := range s.Trials {
		trials[i] = Trial{
			Index:             t.Index,
			Params:            t.Params,
			ChildExperimentId: t.ChildExperimentId,
			Failed:            t.Failed,
		}
		if !math.IsInf(t.ObjectiveValue, 0) && !math.IsNaN(t.ObjectiveValue) {
			trials[i].ObjectiveValue = pointer.Ref(t.ObjectiveValue)
		}
	}
	return Detail{
		Id:                 s.Id,
		ProjectId:          s.ProjectId,
		StudyType:          string(s.StudyType),
		SearchSpace:        composeSearchSpace(s.SearchSpace),
		OptimizationMetric: s.OptimizationMetric,
		BaseExperimentId:   s.BaseExperimentId,
		Status:             string(s.Status),
		ErrorMessage:       s.ErrorMessage,
		TrialBudget:        s.TrialBudget,
		Trials:             trials,
		BestTrialIndex:     s.BestTrialIndex,
		ParamImportances:   s.ParamImportances,
		UpdatedAt:          s.UpdatedAt,
	}
}
