package search

import (
	"fmt"
	"math"

	"github.com/modelyard/modelyard/pkg/domain"
)

// paramImportances ranks each search dimension by how strongly it moved the
// objective across the finite-valued trials: absolute Pearson correlation for
// numeric dimensions, correlation ratio for categorical ones.
//
// Best-effort: with fewer than two finite trials there is nothing to rank
// and nil is returned.
func paramImportances(space domain.SearchSpace, trials []domain.Trial) map[string]float64 {
	finite := []domain.Trial{}
	for _, t := range trials {
		if t.Failed || math.IsInf(t.ObjectiveValue, 0) || math.IsNaN(t.ObjectiveValue) {
			continue
		}
		finite = append(finite, t)
	}
	if len(finite) < 2 {
		return nil
	}

	objectives := make([]float64, len(finite))
	for i, t := range finite {
		objectives[i] = t.ObjectiveValue
	}

	raw := map[string]float64{}
	total := 0.0
	for _, name := range space.Order {
		var score float64
		switch space.Domains[name].Kind {
		case domain.Categorical:
			groups := map[string][]float64{}
			for i, t := range finite {
				key := fmt.Sprint(t.Params[name])
				groups[key] = append(groups[key], objectives[i])
			}
			score = correlationRatio(groups, objectives)
		default:
			values := make([]float64, len(finite))
			for i, t := range finite {
				if v, ok := toFloat(t.Params[name]); ok {
					values[i] = v
				}
			}
			score = math.Abs(pearson(values, objectives))
		}
		if math.IsNaN(score) {
			score = 0
		}
		raw[name] = score
		total += score
	}

	if 0 < total {
		for name := range raw {
			raw[name] /= total
		}
	}
	return raw
}

func pearson(x, y []float64) float64 {
	n := float64(len(x))
	if n == 0 {
		return 0
	}
	mx, my := 0.0, 0.0
	for i := range x {
		mx += x[i]
		my += y[i]
	}
	mx /= n
	my /= n

	cov, vx, vy := 0.0, 0.0, 0.0
	for i := range x {
		dx, dy := x[i]-mx, y[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0
	}
	return cov / math.Sqrt(vx*vy)
}

// correlationRatio is between-group variance over total variance.
func correlationRatio(groups map[string][]float64, all []float64) float64 {
	n := float64(len(all))
	mean := 0.0
	for _, v := range all {
		mean += v
	}
	mean /= n

	ssTot := 0.0
	for _, v := range all {
		ssTot += (v - mean) * (v - mean)
	}
	if ssTot == 0 {
		return 0
	}

	ssBetween := 0.0
	for _, members := range groups {
		gm := 0.0
		for _, v := range members {
			gm += v
		}
		gm /= float64(len(members))
		ssBetween += float64(len(members)) * (gm - mean) * (gm - mean)
	}
	return ssBetween / ssTot
}
