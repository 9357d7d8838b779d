package train

import (
	"math"
	"math/rand"
	"sort"
)

// treeNode is one node of a CART tree, stored in a flat array.
// Feature < 0 marks a leaf.
type treeNode struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Value     float64 `json:"v"`
}

type tree struct {
	Nodes []treeNode `json:"nodes"`
}

func (t *tree) predictRow(row []float64) float64 {
	at := 0
	for {
		node := t.Nodes[at]
		if node.Feature < 0 {
			return node.Value
		}
		if row[node.Feature] <= node.Threshold {
			at = node.Left
		} else {
			at = node.Right
		}
	}
}

type treeParams struct {
	task           Task
	numClasses     int
	maxDepth       int
	minSamplesLeaf int

	// how many features each split considers; 0 = all.
	maxFeatures int

	rng *rand.Rand
}

type treeBuilder struct {
	treeParams
	X [][]float64
	y []float64

	nodes []treeNode

	// impurity decrease accumulated per feature, for exact explanation.
	importances []float64
}

func growTree(X [][]float64, y []float64, params treeParams) (*tree, []float64) {
	b := &treeBuilder{treeParams: params, X: X, y: y}
	if len(X) > 0 {
		b.importances = make([]float64, len(X[0]))
	}

	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	b.build(idx, 0)
	return &tree{Nodes: b.nodes}, b.importances
}

func (b *treeBuilder) build(idx []int, depth int) int {
	at := len(b.nodes)
	b.nodes = append(b.nodes, treeNode{Feature: -1, Value: b.leafValue(idx)})

	if (0 < b.maxDepth && b.maxDepth <= depth) || len(idx) < 2*b.minSamplesLeaf || b.impurity(idx) == 0 {
		return at
	}

	feature, threshold, gain, ok := b.bestSplit(idx)
	if !ok {
		return at
	}

	left := []int{}
	right := []int{}
	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < b.minSamplesLeaf || len(right) < b.minSamplesLeaf {
		return at
	}

	b.importances[feature] += gain * float64(len(idx))

	b.nodes[at].Feature = feature
	b.nodes[at].Threshold = threshold
	b.nodes[at].Left = b.build(left, depth+1)
	b.nodes[at].Right = b.build(right, depth+1)
	return at
}

func (b *treeBuilder) candidateFeatures() []int {
	total := len(b.X[0])
	if b.maxFeatures <= 0 || total <= b.maxFeatures {
		all := make([]int, total)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return b.rng.Perm(total)[:b.maxFeatures]
}

// bestSplit scans candidate features sorted by value and returns the split
// with the largest impurity decrease.
func (b *treeBuilder) bestSplit(idx []int) (feature int, threshold float64, gain float64, ok bool) {
	parent := b.impurity(idx)
	n := float64(len(idx))

	bestGain := 0.0
	for _, f := range b.candidateFeatures() {
		order := append([]int{}, idx...)
		sort.Slice(order, func(i, j int) bool { return b.X[order[i]][f] < b.X[order[j]][f] })

		switch b.task {
		case Regression:
			sumL, sqL := 0.0, 0.0
			sumT, sqT := 0.0, 0.0
			for _, i := range order {
				sumT += b.y[i]
				sqT += b.y[i] * b.y[i]
			}
			for pos := 0; pos < len(order)-1; pos++ {
				yi := b.y[order[pos]]
				sumL += yi
				sqL += yi * yi
				if b.X[order[pos]][f] == b.X[order[pos+1]][f] {
					continue
				}
				nL := float64(pos + 1)
				nR := n - nL
				varL := sqL/nL - (sumL/nL)*(sumL/nL)
				varR := (sqT-sqL)/nR - ((sumT-sumL)/nR)*((sumT-sumL)/nR)
				g := parent - (nL*varL+nR*varR)/n
				if bestGain < g {
					bestGain = g
					feature = f
					threshold = (b.X[order[pos]][f] + b.X[order[pos+1]][f]) / 2
					ok = true
				}
			}
		case Classification:
			countsL := make([]float64, b.numClasses+1)
			countsT := make([]float64, b.numClasses+1)
			for _, i := range order {
				countsT[classIndex(b.y[i], b.numClasses)] += 1
			}
			for pos := 0; pos < len(order)-1; pos++ {
				countsL[classIndex(b.y[order[pos]], b.numClasses)] += 1
				if b.X[order[pos]][f] == b.X[order[pos+1]][f] {
					continue
				}
				nL := float64(pos + 1)
				nR := n - nL
				g := parent - (nL*giniOf(countsL, nL)+nR*giniRest(countsT, countsL, nR))/n
				if bestGain < g {
					bestGain = g
					feature = f
					threshold = (b.X[order[pos]][f] + b.X[order[pos+1]][f]) / 2
					ok = true
				}
			}
		}
	}
	return feature, threshold, bestGain, ok
}

func (b *treeBuilder) impurity(idx []int) float64 {
	n := float64(len(idx))
	if n == 0 {
		return 0
	}
	switch b.task {
	case Classification:
		counts := make([]float64, b.numClasses+1)
		for _, i := range idx {
			counts[classIndex(b.y[i], b.numClasses)] += 1
		}
		return giniOf(counts, n)
	default:
		sum, sq := 0.0, 0.0
		for _, i := range idx {
			sum += b.y[i]
			sq += b.y[i] * b.y[i]
		}
		return sq/n - (sum/n)*(sum/n)
	}
}

func (b *treeBuilder) leafValue(idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	switch b.task {
	case Classification:
		counts := make([]float64, b.numClasses+1)
		for _, i := range idx {
			counts[classIndex(b.y[i], b.numClasses)] += 1
		}
		best := 0
		for c := range counts {
			if counts[best] < counts[c] {
				best = c
			}
		}
		if best == b.numClasses {
			return -1 // the "unseen label" bucket
		}
		return float64(best)
	default:
		sum := 0.0
		for _, i := range idx {
			sum += b.y[i]
		}
		return sum / float64(len(idx))
	}
}

// classIndex buckets an encoded class value; -1 (unseen label) goes last.
func classIndex(y float64, numClasses int) int {
	c := int(math.Round(y))
	if c < 0 || numClasses <= c {
		return numClasses
	}
	return c
}

func giniOf(counts []float64, n float64) float64 {
	g := 1.0
	for _, c := range counts {
		p := c / n
		g -= p * p
	}
	return g
}

func giniRest(total, left []float64, nR float64) float64 {
	g := 1.0
	for c := range total {
		p := (total[c] - left[c]) / nR
		g -= p * p
	}
	return g
}
