package domain

import "github.com/modelyard/modelyard/pkg/utils/cmp"

// parameter to query experiments.
//
// When all dimensions match an experiment, the query matches it.
// Nil or empty dimensions mean "match any".
type ExperimentFindQuery struct {
	ProjectId []string
	SuiteId   []string
	Status    []ExperimentStatus
}

func (q ExperimentFindQuery) Equal(other ExperimentFindQuery) bool {
	return cmp.SliceContentEq(q.ProjectId, other.ProjectId) &&
		cmp.SliceContentEq(q.SuiteId, other.SuiteId) &&
		cmp.SliceContentEq(q.Status, other.Status)
}
