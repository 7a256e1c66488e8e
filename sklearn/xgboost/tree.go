package xgboost

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/casebook/core/parallel"
)

// features are searched inline below this many columns
const parallelFeatureThreshold = 8

type treeNode struct {
	feature   int // -1 for leaves
	threshold float64
	left      int
	right     int
	weight    float64 // leaf value, already scaled by eta
	gain      float64
	cover     float64 // hessian sum
}

type regTree struct {
	nodes []treeNode
}

func (t *regTree) predictRow(row []float64) float64 {
	i := 0
	for t.nodes[i].feature >= 0 {
		n := &t.nodes[i]
		if row[n.feature] < n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
	return t.nodes[i].weight
}

func (t *regTree) depth() int {
	var rec func(i int) int
	rec = func(i int) int {
		n := &t.nodes[i]
		if n.feature < 0 {
			return 0
		}
		return 1 + max(rec(n.left), rec(n.right))
	}
	return rec(0)
}

// thresholdL1 is the soft-thresholding operator T(G, alpha).
func thresholdL1(g, alpha float64) float64 {
	switch {
	case g > alpha:
		return g - alpha
	case g < -alpha:
		return g + alpha
	}
	return 0
}

// leafWeight is w* = -T(G, alpha) / (H + lambda).
func (p *Params) leafWeight(g, h float64) float64 {
	return -thresholdL1(g, p.RegAlpha) / (h + p.RegLambda)
}

// score is T(G, alpha)² / (H + lambda), the structure score of one node.
func (p *Params) score(g, h float64) float64 {
	t := thresholdL1(g, p.RegAlpha)
	return t * t / (h + p.RegLambda)
}

type candidate struct {
	feature   int
	threshold float64
	gain      float64
}

// treeBuilder grows one tree by exact greedy search over the sampled rows and columns.
type treeBuilder struct {
	p       *Params
	cols    [][]float64
	grad    []float64
	hess    []float64
	columns []int
	out     *regTree
	err     error // first failure of the split search; the tree is discarded
}

func (b *treeBuilder) grow(rows []int, depth int) int {
	var g, h float64
	for _, i := range rows {
		g += b.grad[i]
		h += b.hess[i]
	}
	idx := len(b.out.nodes)
	b.out.nodes = append(b.out.nodes, treeNode{
		feature: -1,
		left:    -1,
		right:   -1,
		weight:  b.p.LearningRate * b.p.leafWeight(g, h),
		cover:   h,
	})
	if depth >= b.p.MaxDepth || len(rows) < 2 {
		return idx
	}

	best := b.bestSplit(rows, g, h)
	if best.feature < 0 || best.gain <= 0 {
		return idx
	}

	var leftRows, rightRows []int
	for _, i := range rows {
		if b.cols[best.feature][i] < best.threshold {
			leftRows = append(leftRows, i)
		} else {
			rightRows = append(rightRows, i)
		}
	}
	left := b.grow(leftRows, depth+1)
	right := b.grow(rightRows, depth+1)
	n := &b.out.nodes[idx]
	n.feature = best.feature
	n.threshold = best.threshold
	n.left = left
	n.right = right
	n.gain = best.gain
	return idx
}

// bestSplit evaluates every sampled column, concurrently when there are many, and
// keeps the highest gain. Ties go to the lower column index.
func (b *treeBuilder) bestSplit(rows []int, g, h float64) candidate {
	results := make([]candidate, len(b.columns))
	best := candidate{feature: -1, gain: math.Inf(-1)}
	err := parallel.ParallelizeWithThreshold("split search", len(b.columns), parallelFeatureThreshold, func(start, end int) {
		sorted := make([]int, len(rows))
		for k := start; k < end; k++ {
			results[k] = b.splitFeature(b.columns[k], rows, sorted, g, h)
		}
	})
	if err != nil {
		if b.err == nil {
			b.err = err
		}
		return best
	}
	for _, c := range results {
		if c.feature >= 0 && (c.gain > best.gain || (c.gain == best.gain && c.feature < best.feature)) {
			best = c
		}
	}
	return best
}

func (b *treeBuilder) splitFeature(f int, rows, sorted []int, g, h float64) candidate {
	col := b.cols[f]
	copy(sorted, rows)
	sort.SliceStable(sorted, func(a, c int) bool { return col[sorted[a]] < col[sorted[c]] })

	parent := b.p.score(g, h)
	best := candidate{feature: -1, gain: math.Inf(-1)}
	var gl, hl float64
	for pos := 0; pos < len(sorted)-1; pos++ {
		i := sorted[pos]
		gl += b.grad[i]
		hl += b.hess[i]
		lo, hi := col[i], col[sorted[pos+1]]
		if lo == hi {
			continue
		}
		gr, hr := g-gl, h-hl
		if hl < b.p.MinChildWeight || hr < b.p.MinChildWeight {
			continue
		}
		gain := 0.5*(b.p.score(gl, hl)+b.p.score(gr, hr)-parent) - b.p.Gamma
		if gain > best.gain {
			best = candidate{feature: f, threshold: lo + (hi-lo)/2, gain: gain}
			if best.threshold <= lo {
				best.threshold = hi
			}
		}
	}
	return best
}
