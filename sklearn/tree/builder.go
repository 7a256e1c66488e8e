package tree

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// leafSentinel marks a node without children.
const leafSentinel = -1

// impurity below this is treated as pure
const impurityEpsilon = 1e-12

type node struct {
	feature   int
	threshold float64
	left      int
	right     int
	// class weights for classification, a single mean for regression
	value    []float64
	impurity float64
	weight   float64
	nSamples int
}

func (n *node) isLeaf() bool { return n.feature == leafSentinel }

// structure is a fitted binary tree stored as a flat node array rooted at 0.
type structure struct {
	nodes     []node
	nFeatures int
}

func (s *structure) apply(row []float64) int {
	i := 0
	for !s.nodes[i].isLeaf() {
		n := &s.nodes[i]
		if row[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
	return i
}

func (s *structure) walk(i, depth int, visit func(idx, depth int)) {
	visit(i, depth)
	n := &s.nodes[i]
	if n.isLeaf() {
		return
	}
	s.walk(n.left, depth+1, visit)
	s.walk(n.right, depth+1, visit)
}

func (s *structure) depth() int {
	maxDepth := 0
	s.walk(0, 0, func(_, d int) {
		if d > maxDepth {
			maxDepth = d
		}
	})
	return maxDepth
}

func (s *structure) nLeaves() int {
	leaves := 0
	s.walk(0, 0, func(i, _ int) {
		if s.nodes[i].isLeaf() {
			leaves++
		}
	})
	return leaves
}

// featureImportances returns the normalized total impurity decrease per feature.
func (s *structure) featureImportances() []float64 {
	imp := make([]float64, s.nFeatures)
	s.walk(0, 0, func(i, _ int) {
		n := &s.nodes[i]
		if n.isLeaf() {
			return
		}
		l, r := &s.nodes[n.left], &s.nodes[n.right]
		imp[n.feature] += n.weight*n.impurity - l.weight*l.impurity - r.weight*r.impurity
	})
	total := 0.0
	for _, v := range imp {
		total += v
	}
	if total > 0 {
		for j := range imp {
			imp[j] /= total
		}
	}
	return imp
}

func (s *structure) clone() *structure {
	nodes := make([]node, len(s.nodes))
	copy(nodes, s.nodes)
	return &structure{nodes: nodes, nFeatures: s.nFeatures}
}

// builder grows a tree depth first. Exactly one of labels or target is set.
type builder struct {
	p *params

	cols    [][]float64 // feature-major copy of X
	weights []float64

	labels   []int
	nClasses int
	crit     classCriterion

	target []float64

	rng *rand.Rand
	out *structure
}

func newBuilder(p *params, X mat.Matrix, weights []float64) *builder {
	n, d := X.Dims()
	cols := make([][]float64, d)
	for j := 0; j < d; j++ {
		cols[j] = make([]float64, n)
		mat.Col(cols[j], j, X)
	}
	return &builder{
		p:       p,
		cols:    cols,
		weights: weights,
		rng:     rand.New(rand.NewPCG(p.randomState, p.randomState)),
		out:     &structure{nFeatures: d},
	}
}

func (b *builder) regression() bool { return b.target != nil }

// stats summarizes the targets of a set of rows.
type stats struct {
	w, wy, wyy float64
	counts     []float64
}

func (b *builder) newStats() stats {
	if b.regression() {
		return stats{}
	}
	return stats{counts: make([]float64, b.nClasses)}
}

func (b *builder) add(st *stats, i int, sign float64) {
	w := b.weights[i] * sign
	st.w += w
	if b.regression() {
		y := b.target[i]
		st.wy += w * y
		st.wyy += w * y * y
		return
	}
	st.counts[b.labels[i]] += w
}

func (b *builder) impurity(st *stats) float64 {
	if b.regression() {
		return squaredError(st.w, st.wy, st.wyy)
	}
	return b.crit(st.counts, st.w)
}

func (b *builder) value(st *stats) []float64 {
	if b.regression() {
		if st.w <= 0 {
			return []float64{0}
		}
		return []float64{st.wy / st.w}
	}
	return append([]float64(nil), st.counts...)
}

// grow builds the subtree over rows and returns its node index.
func (b *builder) grow(rows []int, depth int) int {
	st := b.newStats()
	for _, i := range rows {
		b.add(&st, i, 1)
	}
	idx := len(b.out.nodes)
	b.out.nodes = append(b.out.nodes, node{
		feature:  leafSentinel,
		left:     leafSentinel,
		right:    leafSentinel,
		value:    b.value(&st),
		impurity: b.impurity(&st),
		weight:   st.w,
		nSamples: len(rows),
	})

	p := b.p
	if (p.maxDepth > 0 && depth >= p.maxDepth) ||
		len(rows) < p.minSamplesSplit ||
		len(rows) < 2*p.minSamplesLeaf ||
		b.out.nodes[idx].impurity <= impurityEpsilon {
		return idx
	}

	feature, threshold, ok := b.bestSplit(rows, &st, b.out.nodes[idx].impurity)
	if !ok {
		return idx
	}

	var leftRows, rightRows []int
	for _, i := range rows {
		if b.cols[feature][i] <= threshold {
			leftRows = append(leftRows, i)
		} else {
			rightRows = append(rightRows, i)
		}
	}
	left := b.grow(leftRows, depth+1)
	right := b.grow(rightRows, depth+1)

	n := &b.out.nodes[idx]
	n.feature = feature
	n.threshold = threshold
	n.left = left
	n.right = right
	return idx
}

func (b *builder) featureOrder() []int {
	d := len(b.cols)
	if b.p.maxFeatures > 0 && b.p.maxFeatures < d {
		return b.rng.Perm(d)
	}
	order := make([]int, d)
	for j := range order {
		order[j] = j
	}
	return order
}

// bestSplit scans candidate features for the threshold with the largest weighted
// impurity decrease. Constant features do not count towards maxFeatures.
func (b *builder) bestSplit(rows []int, parent *stats, parentImpurity float64) (int, float64, bool) {
	maxFeatures := b.p.maxFeatures
	if maxFeatures <= 0 || maxFeatures > len(b.cols) {
		maxFeatures = len(b.cols)
	}

	bestGain := math.Inf(-1)
	bestFeature := -1
	bestThreshold := 0.0
	visited := 0
	sorted := make([]int, len(rows))

	for _, f := range b.featureOrder() {
		if visited >= maxFeatures {
			break
		}
		col := b.cols[f]
		copy(sorted, rows)
		sort.SliceStable(sorted, func(a, c int) bool { return col[sorted[a]] < col[sorted[c]] })
		if col[sorted[0]] == col[sorted[len(sorted)-1]] {
			continue
		}
		visited++

		left := b.newStats()
		n := len(sorted)
		for pos := 0; pos < n-1; pos++ {
			b.add(&left, sorted[pos], 1)
			lo, hi := col[sorted[pos]], col[sorted[pos+1]]
			if lo == hi {
				continue
			}
			nl := pos + 1
			if nl < b.p.minSamplesLeaf || n-nl < b.p.minSamplesLeaf {
				continue
			}
			right := b.subtract(parent, &left)
			if left.w <= 0 || right.w <= 0 {
				continue
			}
			gain := parentImpurity -
				(left.w/parent.w)*b.impurity(&left) -
				(right.w/parent.w)*b.impurity(&right)
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
				if bestThreshold >= hi {
					bestThreshold = lo
				}
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

func (b *builder) subtract(total, part *stats) stats {
	out := stats{
		w:   total.w - part.w,
		wy:  total.wy - part.wy,
		wyy: total.wyy - part.wyy,
	}
	if !b.regression() {
		out.counts = make([]float64, len(total.counts))
		for k := range out.counts {
			out.counts[k] = total.counts[k] - part.counts[k]
		}
	}
	return out
}

// build grows the tree over every row with positive weight.
func (b *builder) build() *structure {
	rows := make([]int, 0, len(b.weights))
	for i, w := range b.weights {
		if w > 0 {
			rows = append(rows, i)
		}
	}
	b.grow(rows, 0)
	return b.out
}
