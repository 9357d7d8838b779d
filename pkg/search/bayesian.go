package search

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/modelyard/modelyard/pkg/domain"
)

const (
	// DefaultTrialBudget applies when a sweep is created without one.
	DefaultTrialBudget = 50

	// trials suggested purely at random before the good/bad model kicks in.
	startupTrials = 10

	// fraction of observed trials treated as "good" by the suggester.
	goodFraction = 0.25
)

// runBayesian runs a fixed-budget sequential sweep: seeded random suggestions
// to start, then a TPE-flavored suggester that samples new candidates around
// the best quarter of the trials observed so far.
//
// Trials run strictly one at a time; each suggestion sees every earlier
// outcome.
func (c *Controller) runBayesian(ctx context.Context, suite *domain.Suite) error {
	space := suite.SearchSpace
	if space.Empty() {
		return fmt.Errorf("%w: sweep over an empty search space", domain.ErrUnsupportedConfiguration)
	}
	if err := space.Validate(); err != nil {
		return err
	}
	if suite.TrialBudget < 1 {
		return fmt.Errorf("%w: sweep needs a positive trial budget", domain.ErrUnsupportedConfiguration)
	}

	base, err := c.baseExperiment(ctx, suite)
	if err != nil {
		return err
	}

	dir := directionFor(suite.OptimizationMetric)
	s := &suggester{space: space, rng: rand.New(rand.NewSource(base.RandomSeed))}

	trials := make([]domain.Trial, 0, suite.TrialBudget)
	for i := 0; i < suite.TrialBudget; i++ {
		params := s.suggest(trials, dir, i)
		trial := c.runTrial(ctx, suite, base, i, params, dir)
		if err := c.Suites.AppendTrial(ctx, suite.Id, trial); err != nil {
			return err
		}
		trials = append(trials, trial)
	}

	return c.Suites.Finalize(ctx, suite.Id, bestTrialIndex(trials, dir), paramImportances(space, trials))
}

type suggester struct {
	space domain.SearchSpace
	rng   *rand.Rand
}

func (s *suggester) suggest(trials []domain.Trial, dir direction, nth int) map[string]any {
	good := goodTrials(trials, dir)
	if nth < startupTrials || len(good) == 0 {
		return s.random()
	}

	params := make(map[string]any, len(s.space.Order))
	for _, name := range s.space.Order {
		params[name] = s.around(name, good)
	}
	return params
}

// random draws one value per dimension uniformly.
func (s *suggester) random() map[string]any {
	params := make(map[string]any, len(s.space.Order))
	for _, name := range s.space.Order {
		d := s.space.Domains[name]
		switch d.Kind {
		case domain.IntRange:
			lo, hi := int(d.Low), int(d.High)
			params[name] = lo + s.rng.Intn(hi-lo+1)
		case domain.FloatRange:
			params[name] = d.Low + s.rng.Float64()*(d.High-d.Low)
		case domain.Categorical:
			params[name] = d.Choices[s.rng.Intn(len(d.Choices))]
		}
	}
	return params
}

// around samples a dimension near the good trials: numeric dimensions perturb
// a random good value with a range-scaled kernel, categorical dimensions draw
// by smoothed good-trial counts.
func (s *suggester) around(name string, good []domain.Trial) any {
	d := s.space.Domains[name]

	switch d.Kind {
	case domain.IntRange, domain.FloatRange:
		values := []float64{}
		for _, t := range good {
			if v, ok := toFloat(t.Params[name]); ok {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			return s.randomOne(d)
		}
		center := values[s.rng.Intn(len(values))]
		sigma := (d.High - d.Low) / 4
		v := center + s.rng.NormFloat64()*sigma
		v = math.Max(d.Low, math.Min(d.High, v))
		if d.Kind == domain.IntRange {
			return int(math.Round(v))
		}
		return v

	case domain.Categorical:
		// +1 smoothing keeps every choice reachable.
		weights := make([]float64, len(d.Choices))
		total := 0.0
		for at, choice := range d.Choices {
			weights[at] = 1
			for _, t := range good {
				if fmt.Sprint(t.Params[name]) == fmt.Sprint(choice) {
					weights[at] += 1
				}
			}
			total += weights[at]
		}
		pick := s.rng.Float64() * total
		for at, w := range weights {
			pick -= w
			if pick < 0 {
				return d.Choices[at]
			}
		}
		return d.Choices[len(d.Choices)-1]
	}
	return nil
}

func (s *suggester) randomOne(d domain.ParamDomain) any {
	switch d.Kind {
	case domain.IntRange:
		lo, hi := int(d.Low), int(d.High)
		return lo + s.rng.Intn(hi-lo+1)
	case domain.FloatRange:
		return d.Low + s.rng.Float64()*(d.High-d.Low)
	default:
		return d.Choices[s.rng.Intn(len(d.Choices))]
	}
}

// goodTrials returns the best quarter (at least one) of the finite-valued
// trials, best first.
func goodTrials(trials []domain.Trial, dir direction) []domain.Trial {
	finite := []domain.Trial{}
	for _, t := range trials {
		if t.Failed || math.IsInf(t.ObjectiveValue, 0) || math.IsNaN(t.ObjectiveValue) {
			continue
		}
		finite = append(finite, t)
	}
	if len(finite) == 0 {
		return nil
	}

	sort.SliceStable(finite, func(i, j int) bool {
		return dir.better(finite[i].ObjectiveValue, finite[j].ObjectiveValue)
	})

	take := int(float64(len(finite)) * goodFraction)
	if take < 1 {
		take = 1
	}
	return finite[:take]
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}
