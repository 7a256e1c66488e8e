// Package model_selection splits data for evaluation: hold-out splits, k-fold
// splitters and cross-validated scoring.
package model_selection

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/casebook/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// SplitOption configures TrainTestSplit.
type SplitOption func(*splitConfig)

type splitConfig struct {
	stratify bool
	shuffle  bool
}

// WithStratify keeps the class proportions of y's first column in both halves.
func WithStratify(stratify bool) SplitOption {
	return func(c *splitConfig) {
		c.stratify = stratify
	}
}

// WithShuffle controls whether rows are shuffled before splitting. Default true.
func WithShuffle(shuffle bool) SplitOption {
	return func(c *splitConfig) {
		c.shuffle = shuffle
	}
}

// Split holds the four matrices returned by TrainTestSplit.
type Split struct {
	XTrain, XTest *mat.Dense
	YTrain, YTest *mat.Dense

	TrainIndices []int
	TestIndices  []int
}

// TrainTestSplit holds out ceil(testSize*n) rows for testing. testSize must lie in
// (0, 1) and leave at least one row on each side.
func TrainTestSplit(X, y mat.Matrix, testSize float64, rng *rand.Rand, opts ...SplitOption) (*Split, error) {
	cfg := splitConfig{shuffle: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	n, _ := X.Dims()
	ny, _ := y.Dims()
	if n == 0 {
		return nil, errors.NewModelError("TrainTestSplit", "empty data", errors.ErrEmptyData)
	}
	if ny != n {
		return nil, errors.NewDimensionError("TrainTestSplit", n, ny, 0)
	}
	if testSize <= 0 || testSize >= 1 {
		return nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest >= n {
		return nil, errors.NewValidationError("test_size", "leaves no training samples", testSize)
	}
	if cfg.stratify && !cfg.shuffle {
		return nil, errors.NewValidationError("shuffle", "stratified split requires shuffle", cfg.shuffle)
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(0, 0))
	}

	var trainIdx, testIdx []int
	if cfg.stratify {
		trainIdx, testIdx = stratifiedIndices(y, n, nTest, rng)
	} else {
		indices := make([]int, n)
		for i := range indices {
			indices[i] = i
		}
		if cfg.shuffle {
			rng.Shuffle(n, func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })
		}
		trainIdx, testIdx = indices[:n-nTest], indices[n-nTest:]
	}

	s := &Split{TrainIndices: trainIdx, TestIndices: testIdx}
	s.XTrain = TakeRows(X, trainIdx)
	s.XTest = TakeRows(X, testIdx)
	s.YTrain = TakeRows(y, trainIdx)
	s.YTest = TakeRows(y, testIdx)
	return s, nil
}

// stratifiedIndices allocates test rows per class in proportion to class size, giving
// leftover rows to the classes with the largest fractional remainder.
func stratifiedIndices(y mat.Matrix, n, nTest int, rng *rand.Rand) ([]int, []int) {
	byClass := make(map[float64][]int)
	for i := 0; i < n; i++ {
		label := y.At(i, 0)
		byClass[label] = append(byClass[label], i)
	}
	labels := make([]float64, 0, len(byClass))
	for l := range byClass {
		labels = append(labels, l)
	}
	sort.Float64s(labels)

	alloc := make([]int, len(labels))
	rem := make([]float64, len(labels))
	assigned := 0
	for k, l := range labels {
		exact := float64(nTest) * float64(len(byClass[l])) / float64(n)
		alloc[k] = int(math.Floor(exact))
		rem[k] = exact - float64(alloc[k])
		assigned += alloc[k]
	}
	order := make([]int, len(labels))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return rem[order[a]] > rem[order[b]] })
	for i := 0; assigned < nTest && i < len(order); i++ {
		k := order[i]
		if alloc[k] < len(byClass[labels[k]]) {
			alloc[k]++
			assigned++
		}
	}

	var trainIdx, testIdx []int
	for k, l := range labels {
		idx := byClass[l]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		testIdx = append(testIdx, idx[:alloc[k]]...)
		trainIdx = append(trainIdx, idx[alloc[k]:]...)
	}
	rng.Shuffle(len(trainIdx), func(i, j int) { trainIdx[i], trainIdx[j] = trainIdx[j], trainIdx[i] })
	rng.Shuffle(len(testIdx), func(i, j int) { testIdx[i], testIdx[j] = testIdx[j], testIdx[i] })
	return trainIdx, testIdx
}

// TakeRows copies the given rows of m, in order, into a new matrix.
func TakeRows(m mat.Matrix, rows []int) *mat.Dense {
	_, c := m.Dims()
	if len(rows) == 0 || c == 0 {
		return &mat.Dense{}
	}
	out := mat.NewDense(len(rows), c, nil)
	for i, r := range rows {
		for j := 0; j < c; j++ {
			out.Set(i, j, m.At(r, j))
		}
	}
	return out
}
