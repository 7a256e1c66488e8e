package model_selection

import (
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/casebook/core/model"
	"github.com/YuminosukeSato/casebook/pkg/errors"
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
)

// Splitter produces train/test index folds.
type Splitter interface {
	Split(X, y mat.Matrix) []Fold
	GetNSplits() int
}

// Fold is one train/test partition.
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold splits rows into NSplits contiguous folds, optionally after shuffling.
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed uint64
}

// NewKFold creates a KFold. nSplits below 2 falls back to 5.
func NewKFold(nSplits int, shuffle bool, randomSeed uint64) *KFold {
	if nSplits < 2 {
		nSplits = 5
	}
	return &KFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}
}

// GetNSplits returns the number of folds.
func (kf *KFold) GetNSplits() int {
	return kf.NSplits
}

// Split returns NSplits folds. The first n%NSplits folds get one extra test row.
func (kf *KFold) Split(X, _ mat.Matrix) []Fold {
	nSamples, _ := X.Dims()

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewPCG(kf.RandomSeed, kf.RandomSeed))
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	folds := make([]Fold, kf.NSplits)
	foldSize := nSamples / kf.NSplits
	remainder := nSamples % kf.NSplits

	current := 0
	for i := 0; i < kf.NSplits; i++ {
		testSize := foldSize
		if i < remainder {
			testSize++
		}
		test := append([]int(nil), indices[current:current+testSize]...)
		train := make([]int, 0, nSamples-testSize)
		train = append(train, indices[:current]...)
		train = append(train, indices[current+testSize:]...)

		folds[i] = Fold{TrainIndices: train, TestIndices: test}
		current += testSize
	}
	return folds
}

// StratifiedKFold distributes every class evenly across folds.
type StratifiedKFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed uint64
}

// NewStratifiedKFold creates a StratifiedKFold. nSplits below 2 falls back to 5.
func NewStratifiedKFold(nSplits int, shuffle bool, randomSeed uint64) *StratifiedKFold {
	if nSplits < 2 {
		nSplits = 5
	}
	return &StratifiedKFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}
}

// GetNSplits returns the number of folds.
func (skf *StratifiedKFold) GetNSplits() int {
	return skf.NSplits
}

// Split groups rows by the label in y's first column and deals each class into folds.
func (skf *StratifiedKFold) Split(X, y mat.Matrix) []Fold {
	nSamples, _ := X.Dims()

	classIndices := make(map[float64][]int)
	for i := 0; i < nSamples; i++ {
		label := y.At(i, 0)
		classIndices[label] = append(classIndices[label], i)
	}
	labels := make([]float64, 0, len(classIndices))
	for l := range classIndices {
		labels = append(labels, l)
	}
	sort.Float64s(labels)

	if skf.Shuffle {
		r := rand.New(rand.NewPCG(skf.RandomSeed, skf.RandomSeed))
		for _, l := range labels {
			idx := classIndices[l]
			r.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		}
	}

	folds := make([]Fold, skf.NSplits)
	for _, l := range labels {
		idx := classIndices[l]
		foldSize := len(idx) / skf.NSplits
		remainder := len(idx) % skf.NSplits

		current := 0
		for i := 0; i < skf.NSplits; i++ {
			testSize := foldSize
			if i < remainder {
				testSize++
			}
			folds[i].TestIndices = append(folds[i].TestIndices, idx[current:current+testSize]...)
			current += testSize
		}
	}

	for i := range folds {
		inTest := make(map[int]bool, len(folds[i].TestIndices))
		for _, idx := range folds[i].TestIndices {
			inTest[idx] = true
		}
		for j := 0; j < nSamples; j++ {
			if !inTest[j] {
				folds[i].TrainIndices = append(folds[i].TrainIndices, j)
			}
		}
	}
	return folds
}

// ScoredEstimator is what CrossValScore fits and scores on each fold.
type ScoredEstimator interface {
	model.Fitter
	model.Scorer
}

// CVResult holds the per-fold test scores.
type CVResult struct {
	TestScores []float64
}

// Mean returns the mean test score.
func (cv *CVResult) Mean() float64 {
	m, _ := stats.Mean(cv.TestScores)
	return m
}

// Std returns the sample standard deviation of the test scores.
func (cv *CVResult) Std() float64 {
	if len(cv.TestScores) < 2 {
		return 0
	}
	s, _ := stats.StandardDeviationSample(cv.TestScores)
	return s
}

// CrossValScore fits a fresh estimator from newEstimator on every training fold and
// records its Score on the matching test fold.
func CrossValScore(newEstimator func() ScoredEstimator, X, y mat.Matrix, splitter Splitter) (*CVResult, error) {
	n, _ := X.Dims()
	if n < splitter.GetNSplits() {
		return nil, errors.NewValidationError("n_splits", "cannot exceed the number of samples", splitter.GetNSplits())
	}

	res := &CVResult{}
	for i, fold := range splitter.Split(X, y) {
		est := newEstimator()
		if err := est.Fit(TakeRows(X, fold.TrainIndices), TakeRows(y, fold.TrainIndices)); err != nil {
			return nil, errors.Wrapf(err, "fold %d fit", i)
		}
		score, err := est.Score(TakeRows(X, fold.TestIndices), TakeRows(y, fold.TestIndices))
		if err != nil {
			return nil, errors.Wrapf(err, "fold %d score", i)
		}
		res.TestScores = append(res.TestScores, score)
	}
	return res, nil
}
