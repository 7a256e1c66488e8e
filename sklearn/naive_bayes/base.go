// Package naive_bayes implements Gaussian and multinomial naive Bayes classifiers.
package naive_bayes

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/casebook/metrics"
	"github.com/YuminosukeSato/casebook/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

func checkXY(op string, X, y mat.Matrix) (int, int, error) {
	n, d := X.Dims()
	yRows, yCols := y.Dims()
	if n == 0 || d == 0 {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if yRows != n {
		return 0, 0, errors.NewDimensionError(op, n, yRows, 0)
	}
	if yCols != 1 {
		return 0, 0, errors.NewDimensionError(op, 1, yCols, 1)
	}
	return n, d, nil
}

func uniqueLabels(y mat.Matrix) []int {
	n, _ := y.Dims()
	seen := make(map[int]struct{})
	for i := 0; i < n; i++ {
		seen[int(math.Round(y.At(i, 0)))] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}

// normalizeLog turns a joint log-likelihood matrix into log posteriors in place.
func normalizeLog(jll *mat.Dense) {
	n, k := jll.Dims()
	row := make([]float64, k)
	for i := 0; i < n; i++ {
		mat.Row(row, i, jll)
		lse := errors.LogSumExp(row)
		for c := range row {
			row[c] -= lse
		}
		jll.SetRow(i, row)
	}
}

func expMatrix(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, _ int, v float64) float64 { return math.Exp(v) }, m)
	return out
}

func argmaxLabels(jll *mat.Dense, classes []int) *mat.Dense {
	n, k := jll.Dims()
	pred := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		best := 0
		for c := 1; c < k; c++ {
			if jll.At(i, c) > jll.At(i, best) {
				best = c
			}
		}
		pred.Set(i, 0, float64(classes[best]))
	}
	return pred
}

func accuracy(pred, y mat.Matrix) (float64, error) {
	return metrics.AccuracyMatrix(y, pred)
}
