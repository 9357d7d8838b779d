package train

import (
	"fmt"
	"sort"

	"github.com/modelyard/modelyard/pkg/domain"
	"github.com/modelyard/modelyard/pkg/utils/slices"
)

// distinct-value threshold below which a numeric target is treated as classes.
const classifierDistinctThreshold = 10

// Dataset is a table resolved into a numeric design matrix and target vector.
type Dataset struct {
	X            [][]float64
	Y            []float64
	FeatureNames []string
	Task         Task

	// class index -> original label. Nil for regression.
	Labels []string
}

// TaskFor applies the regressor-vs-classifier heuristic to the target column:
// non-numeric dtype, or fewer than 10 distinct values, selects the classifier.
func TaskFor(t *domain.Table, target string) (Task, error) {
	if !t.HasColumn(target) {
		return "", fmt.Errorf("%w: no column '%s'", domain.ErrValidation, target)
	}
	if !t.IsNumericColumn(target) {
		return Classification, nil
	}
	distinct, err := t.DistinctCount(target)
	if err != nil {
		return "", err
	}
	if distinct < classifierDistinctThreshold {
		return Classification, nil
	}
	return Regression, nil
}

// BuildDataset resolves features and target of a table.
//
// featureSet empty means "all columns but the target", in table column order.
// For classification, labels fixes the class encoding; pass nil to derive it
// from the data (training), or the fitted model's labels (evaluation) so the
// encoding matches across stages. An unseen label encodes as -1.
func BuildDataset(t *domain.Table, featureSet []string, target string, task Task, labels []string) (*Dataset, error) {
	features := featureSet
	if len(features) == 0 {
		features = slices.Filter(t.ColumnNames, func(name string) bool { return name != target })
	}

	columns, err := slices.MapUntilError(features, func(name string) ([]float64, error) {
		return t.NumericColumn(name)
	})
	if err != nil {
		return nil, err
	}

	n := t.NumRows()
	X := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, len(columns))
		for j, col := range columns {
			row[j] = col[i]
		}
		X[i] = row
	}

	ds := &Dataset{X: X, FeatureNames: features, Task: task}
	switch task {
	case Regression:
		y, err := t.NumericColumn(target)
		if err != nil {
			return nil, err
		}
		ds.Y = y
	case Classification:
		raw, err := t.Column(target)
		if err != nil {
			return nil, err
		}
		if labels == nil {
			labels = distinctSorted(raw)
		}
		index := map[string]int{}
		for nth, label := range labels {
			index[label] = nth
		}
		ds.Labels = labels
		ds.Y = slices.Map(raw, func(cell string) float64 {
			if at, ok := index[cell]; ok {
				return float64(at)
			}
			return -1
		})
	default:
		return nil, fmt.Errorf("%w: '%s' is not a task", domain.ErrUnsupportedConfiguration, task)
	}
	return ds, nil
}

func distinctSorted(cells []string) []string {
	seen := map[string]struct{}{}
	ret := []string{}
	for _, cell := range cells {
		if _, ok := seen[cell]; ok {
			continue
		}
		seen[cell] = struct{}{}
		ret = append(ret, cell)
	}
	sort.Strings(ret)
	return ret
}
