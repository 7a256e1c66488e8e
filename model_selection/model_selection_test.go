package model_selection

import (
	"math"
	"math/rand/v2"
	"sort"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func sequential(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(2*i))
		y.Set(i, 0, float64(i%2))
	}
	return X, y
}

func TestTrainTestSplit(t *testing.T) {
	X, y := sequential(10)
	s, err := TrainTestSplit(X, y, 0.25, rand.New(rand.NewPCG(1, 2)))
	if err != nil {
		t.Fatalf("TrainTestSplit() error = %v", err)
	}

	if r, _ := s.XTest.Dims(); r != 3 {
		t.Errorf("test rows = %d, want ceil(0.25*10) = 3", r)
	}
	if r, _ := s.XTrain.Dims(); r != 7 {
		t.Errorf("train rows = %d, want 7", r)
	}

	all := append(append([]int(nil), s.TrainIndices...), s.TestIndices...)
	sort.Ints(all)
	for i, v := range all {
		if v != i {
			t.Fatalf("indices are not a partition: %v", all)
		}
	}
	for i, idx := range s.TestIndices {
		if s.XTest.At(i, 0) != float64(idx) || s.YTest.At(i, 0) != float64(idx%2) {
			t.Errorf("row %d does not match source index %d", i, idx)
		}
	}
}

func TestTrainTestSplitDeterministic(t *testing.T) {
	X, y := sequential(20)
	a, _ := TrainTestSplit(X, y, 0.3, rand.New(rand.NewPCG(7, 7)))
	b, _ := TrainTestSplit(X, y, 0.3, rand.New(rand.NewPCG(7, 7)))
	for i := range a.TestIndices {
		if a.TestIndices[i] != b.TestIndices[i] {
			t.Fatal("same seed produced different splits")
		}
	}
}

func TestTrainTestSplitStratified(t *testing.T) {
	n := 40
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		if i < 10 {
			y.Set(i, 0, 1)
		}
	}
	s, err := TrainTestSplit(X, y, 0.2, rand.New(rand.NewPCG(3, 3)), WithStratify(true))
	if err != nil {
		t.Fatalf("TrainTestSplit() error = %v", err)
	}
	positives := 0
	for i := range s.TestIndices {
		if s.YTest.At(i, 0) == 1 {
			positives++
		}
	}
	if len(s.TestIndices) != 8 || positives != 2 {
		t.Errorf("stratified test set has %d rows with %d positives, want 8 and 2", len(s.TestIndices), positives)
	}
}

func TestTrainTestSplitErrors(t *testing.T) {
	X, y := sequential(4)
	tests := []struct {
		name     string
		X, y     mat.Matrix
		testSize float64
		opts     []SplitOption
	}{
		{"zero test size", X, y, 0, nil},
		{"full test size", X, y, 1, nil},
		{"no training rows", X, y, 0.9, nil},
		{"row mismatch", X, mat.NewDense(3, 1, nil), 0.25, nil},
		{"stratify without shuffle", X, y, 0.5, []SplitOption{WithStratify(true), WithShuffle(false)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := TrainTestSplit(tt.X, tt.y, tt.testSize, nil, tt.opts...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestKFold(t *testing.T) {
	X, _ := sequential(10)
	folds := NewKFold(3, false, 0).Split(X, nil)
	if len(folds) != 3 {
		t.Fatalf("got %d folds", len(folds))
	}
	wantSizes := []int{4, 3, 3}
	seen := make(map[int]int)
	for i, f := range folds {
		if len(f.TestIndices) != wantSizes[i] {
			t.Errorf("fold %d test size = %d, want %d", i, len(f.TestIndices), wantSizes[i])
		}
		if len(f.TrainIndices)+len(f.TestIndices) != 10 {
			t.Errorf("fold %d does not cover all rows", i)
		}
		for _, idx := range f.TestIndices {
			seen[idx]++
		}
	}
	for i := 0; i < 10; i++ {
		if seen[i] != 1 {
			t.Errorf("row %d appears in %d test folds", i, seen[i])
		}
	}
}

func TestStratifiedKFold(t *testing.T) {
	X, y := sequential(12)
	for _, f := range NewStratifiedKFold(3, true, 5).Split(X, y) {
		ones := 0
		for _, idx := range f.TestIndices {
			if y.At(idx, 0) == 1 {
				ones++
			}
		}
		if len(f.TestIndices) != 4 || ones != 2 {
			t.Errorf("fold test set has %d rows and %d positives, want 4 and 2", len(f.TestIndices), ones)
		}
	}
}

type meanRegressor struct {
	mean float64
}

func (m *meanRegressor) Fit(_, y mat.Matrix) error {
	r, _ := y.Dims()
	m.mean = 0
	for i := 0; i < r; i++ {
		m.mean += y.At(i, 0) / float64(r)
	}
	return nil
}

func (m *meanRegressor) Score(_, y mat.Matrix) (float64, error) {
	r, _ := y.Dims()
	var mse float64
	for i := 0; i < r; i++ {
		d := y.At(i, 0) - m.mean
		mse += d * d / float64(r)
	}
	return -mse, nil
}

func TestCrossValScore(t *testing.T) {
	X, y := sequential(12)
	res, err := CrossValScore(func() ScoredEstimator { return &meanRegressor{} }, X, y, NewKFold(3, false, 0))
	if err != nil {
		t.Fatalf("CrossValScore() error = %v", err)
	}
	if len(res.TestScores) != 3 {
		t.Fatalf("got %d scores, want 3", len(res.TestScores))
	}
	// every fold holds 4 alternating labels against a training mean of 0.5
	for _, s := range res.TestScores {
		if math.Abs(s+0.25) > 1e-12 {
			t.Errorf("fold score = %v, want -0.25", s)
		}
	}
	if math.Abs(res.Mean()+0.25) > 1e-12 || res.Std() > 1e-12 {
		t.Errorf("Mean() = %v, Std() = %v", res.Mean(), res.Std())
	}

	if _, err := CrossValScore(func() ScoredEstimator { return &meanRegressor{} }, X, y, NewKFold(20, false, 0)); err == nil {
		t.Error("expected error when folds exceed samples")
	}
}
