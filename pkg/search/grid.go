package search

import (
	"context"
	"fmt"

	"github.com/modelyard/modelyard/pkg/domain"
	"github.com/modelyard/modelyard/pkg/utils/combination"
)

// runGrid enumerates the full cartesian product of the suite's search space
// and runs one child experiment per combination.
//
// Grid search requires every dimension to be categorical: ranges have no
// finite enumeration. Validation failures happen before any child is spawned.
func (c *Controller) runGrid(ctx context.Context, suite *domain.Suite) error {
	space := suite.SearchSpace
	if space.Empty() {
		return fmt.Errorf("%w: grid search over an empty search space", domain.ErrUnsupportedConfiguration)
	}
	if err := space.Validate(); err != nil {
		return err
	}

	basis := map[string][]any{}
	for name, d := range space.Domains {
		if d.Kind != domain.Categorical {
			return fmt.Errorf(
				"%w: grid search needs categorical domains; parameter '%s' is %s",
				domain.ErrUnsupportedConfiguration, name, d.Kind,
			)
		}
		basis[name] = d.Choices
	}

	combos := combination.Cartesian(space.Order, basis)
	if suite.TrialBudget < len(combos) {
		return fmt.Errorf(
			"%w: grid of %d combinations exceeds trial budget %d",
			domain.ErrUnsupportedConfiguration, len(combos), suite.TrialBudget,
		)
	}

	base, err := c.baseExperiment(ctx, suite)
	if err != nil {
		return err
	}

	dir := directionFor(suite.OptimizationMetric)
	trials := make([]domain.Trial, 0, len(combos))
	for i, combo := range combos {
		trial := c.runTrial(ctx, suite, base, i, combo, dir)
		if err := c.Suites.AppendTrial(ctx, suite.Id, trial); err != nil {
			return err
		}
		trials = append(trials, trial)
	}

	return c.Suites.Finalize(ctx, suite.Id, bestTrialIndex(trials, dir), paramImportances(space, trials))
}
