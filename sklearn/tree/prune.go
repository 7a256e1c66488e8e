package tree

import "math"

// PruningPath is the sequence of effective alphas produced by minimal
// cost-complexity pruning, with the total leaf impurity of the tree after each step.
// The last entry corresponds to the tree reduced to its root.
type PruningPath struct {
	CCPAlphas  []float64
	Impurities []float64
}

// subtreeCost returns R(T_t), the weighted impurity summed over the leaves below i,
// and the number of those leaves.
func (s *structure) subtreeCost(i int, total float64) (float64, int) {
	n := &s.nodes[i]
	if n.isLeaf() {
		return n.weight / total * n.impurity, 1
	}
	lc, ll := s.subtreeCost(n.left, total)
	rc, rl := s.subtreeCost(n.right, total)
	return lc + rc, ll + rl
}

// weakestLink finds the internal node with the smallest effective alpha
// (R(t) - R(T_t)) / (|leaves(T_t)| - 1).
func (s *structure) weakestLink(total float64) (int, float64) {
	best, bestAlpha := -1, math.Inf(1)
	s.walk(0, 0, func(i, _ int) {
		n := &s.nodes[i]
		if n.isLeaf() {
			return
		}
		cost, leaves := s.subtreeCost(i, total)
		alpha := (n.weight/total*n.impurity - cost) / float64(leaves-1)
		if alpha < bestAlpha {
			best, bestAlpha = i, alpha
		}
	})
	return best, bestAlpha
}

func (s *structure) collapse(i int) {
	n := &s.nodes[i]
	n.feature = leafSentinel
	n.left = leafSentinel
	n.right = leafSentinel
}

// prune collapses weakest links while their effective alpha does not exceed alpha.
func (s *structure) prune(alpha float64) {
	if alpha <= 0 {
		return
	}
	total := s.nodes[0].weight
	for !s.nodes[0].isLeaf() {
		i, a := s.weakestLink(total)
		if a > alpha {
			return
		}
		s.collapse(i)
	}
}

func (s *structure) pruningPath() *PruningPath {
	work := s.clone()
	total := work.nodes[0].weight
	cost, _ := work.subtreeCost(0, total)
	path := &PruningPath{CCPAlphas: []float64{0}, Impurities: []float64{cost}}

	for !work.nodes[0].isLeaf() {
		i, a := work.weakestLink(total)
		work.collapse(i)
		// rounding can make a later link look marginally cheaper
		if prev := path.CCPAlphas[len(path.CCPAlphas)-1]; a < prev {
			a = prev
		}
		cost, _ = work.subtreeCost(0, total)
		path.CCPAlphas = append(path.CCPAlphas, a)
		path.Impurities = append(path.Impurities, cost)
	}
	return path
}
