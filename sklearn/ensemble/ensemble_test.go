package ensemble

import (
	"math"
	"testing"

	"github.com/YuminosukeSato/casebook/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// twoClusters returns two well separated groups of 20 points in 2D.
func twoClusters() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(40, 2, nil)
	y := mat.NewDense(40, 1, nil)
	for i := 0; i < 40; i++ {
		off := float64(i%5) * 0.1
		if i < 20 {
			X.Set(i, 0, 0+off)
			X.Set(i, 1, 1+float64(i%4)*0.1)
		} else {
			X.Set(i, 0, 5+off)
			X.Set(i, 1, 6+float64(i%4)*0.1)
			y.Set(i, 0, 1)
		}
	}
	return X, y
}

func sineData(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x := 6 * float64(i) / float64(n-1)
		X.Set(i, 0, x)
		y.Set(i, 0, math.Sin(x))
	}
	return X, y
}

func checkProbaRows(t *testing.T, proba mat.Matrix) {
	t.Helper()
	r, c := proba.Dims()
	for i := 0; i < r; i++ {
		sum := 0.0
		for j := 0; j < c; j++ {
			p := proba.At(i, j)
			if p < 0 || p > 1 {
				t.Fatalf("probability out of range at (%d,%d): %v", i, j, p)
			}
			sum += p
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("row %d sums to %v", i, sum)
		}
	}
}

func TestBaggingClassifier(t *testing.T) {
	X, y := twoClusters()
	bc := NewBaggingClassifier(WithNEstimators(8), WithRandomState(7))
	if err := bc.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if len(bc.Estimators()) != 8 {
		t.Errorf("expected 8 members, got %d", len(bc.Estimators()))
	}
	score, err := bc.Score(X, y)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if score != 1.0 {
		t.Errorf("accuracy = %v, want 1.0", score)
	}
	proba, err := bc.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}
	checkProbaRows(t, proba)
}

func TestRandomForestClassifier(t *testing.T) {
	X, y := twoClusters()
	rf := NewRandomForestClassifier(WithNEstimators(20), WithRandomState(1))
	if err := rf.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	score, err := rf.Score(X, y)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if score != 1.0 {
		t.Errorf("accuracy = %v, want 1.0", score)
	}
	imp := rf.FeatureImportances()
	sum := 0.0
	for _, v := range imp {
		sum += v
	}
	if len(imp) != 2 || math.Abs(sum-1) > 1e-9 {
		t.Errorf("importances = %v, want 2 values summing to 1", imp)
	}
	if got := rf.Classes(); len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Errorf("Classes = %v", got)
	}
}

func TestRandomForestRegressor_Deterministic(t *testing.T) {
	X, y := sineData(60)
	fit := func(jobs int) mat.Matrix {
		rf := NewRandomForestRegressor(WithNEstimators(10), WithRandomState(3), WithNJobs(jobs))
		if err := rf.Fit(X, y); err != nil {
			t.Fatalf("Fit failed: %v", err)
		}
		pred, err := rf.Predict(X)
		if err != nil {
			t.Fatalf("Predict failed: %v", err)
		}
		return pred
	}
	a, b := fit(1), fit(4)
	if !mat.Equal(a, b) {
		t.Error("predictions depend on the number of workers")
	}

	rf := NewRandomForestRegressor(WithNEstimators(10), WithRandomState(3))
	if err := rf.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	r2, err := rf.Score(X, y)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if r2 < 0.9 || r2 > 1 {
		t.Errorf("R² = %v, want in [0.9, 1]", r2)
	}
}

func TestBaggingRegressor(t *testing.T) {
	X, y := sineData(40)
	br := NewBaggingRegressor(WithNEstimators(5), WithBootstrap(false), WithMaxSamples(0.8))
	if err := br.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if _, err := br.Predict(mat.NewDense(1, 2, nil)); err == nil {
		t.Error("expected feature count error")
	}
}

func TestAdaBoostClassifier(t *testing.T) {
	X := mat.NewDense(10, 1, nil)
	y := mat.NewDense(10, 1, nil)
	for i := 0; i < 10; i++ {
		X.Set(i, 0, float64(i))
		if i >= 3 && i <= 6 {
			y.Set(i, 0, 1)
		}
	}

	ab := NewAdaBoostClassifier(WithNEstimators(20))
	if err := ab.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	weights := ab.EstimatorWeights()
	if len(weights) == 0 || len(weights) > 20 {
		t.Fatalf("unexpected number of rounds: %d", len(weights))
	}
	for _, w := range weights {
		if w <= 0 {
			t.Errorf("estimator weight %v should be positive", w)
		}
	}

	staged, err := ab.StagedScore(X, y)
	if err != nil {
		t.Fatalf("StagedScore failed: %v", err)
	}
	if len(staged) != len(weights) {
		t.Errorf("staged scores %d != rounds %d", len(staged), len(weights))
	}
	final, err := ab.Score(X, y)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if staged[len(staged)-1] != final {
		t.Errorf("last staged score %v != Score %v", staged[len(staged)-1], final)
	}
	if final < staged[0] {
		t.Errorf("boosting made training accuracy worse: %v -> %v", staged[0], final)
	}

	proba, err := ab.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}
	checkProbaRows(t, proba)
}

func TestAdaBoostClassifier_PerfectStump(t *testing.T) {
	X, y := twoClusters()
	ab := NewAdaBoostClassifier()
	if err := ab.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if w := ab.EstimatorWeights(); len(w) != 1 || w[0] != 1 {
		t.Errorf("a perfect first stump should stop boosting, got weights %v", w)
	}
}

func TestGradientBoostingRegressor(t *testing.T) {
	X, y := sineData(50)
	gb := NewGradientBoostingRegressor(WithNEstimators(50))
	if err := gb.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	losses := gb.TrainScore()
	if len(losses) != 50 {
		t.Fatalf("expected 50 train scores, got %d", len(losses))
	}
	for i := 1; i < len(losses); i++ {
		if losses[i] > losses[i-1]+1e-12 {
			t.Errorf("training loss increased at round %d: %v -> %v", i, losses[i-1], losses[i])
		}
	}

	r2, err := gb.Score(X, y)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if r2 < 0.9 {
		t.Errorf("R² = %v, want >= 0.9", r2)
	}

	stages, err := gb.StagedPredict(X)
	if err != nil {
		t.Fatalf("StagedPredict failed: %v", err)
	}
	final, _ := gb.Predict(X)
	if len(stages) != 50 || !mat.EqualApprox(stages[49], final, 1e-12) {
		t.Error("last staged prediction should equal Predict")
	}
}

func TestGradientBoostingClassifier(t *testing.T) {
	X, y := twoClusters()
	gb := NewGradientBoostingClassifier(WithNEstimators(10), WithSubsample(0.8), WithRandomState(2))
	if err := gb.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	score, err := gb.Score(X, y)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if score != 1.0 {
		t.Errorf("accuracy = %v, want 1.0", score)
	}
	proba, err := gb.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}
	checkProbaRows(t, proba)
	if proba.At(0, 0) <= 0.5 || proba.At(39, 1) <= 0.5 {
		t.Errorf("probabilities point the wrong way: %v %v", proba.At(0, 0), proba.At(39, 1))
	}

	multi := mat.NewDense(3, 1, []float64{0, 1, 2})
	if err := gb.Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), multi); err == nil {
		t.Error("expected error for a multiclass target")
	}
}

func TestConfigValidation(t *testing.T) {
	X, y := twoClusters()
	cases := []struct {
		name string
		fit  func() error
	}{
		{"zero estimators", func() error { return NewBaggingClassifier(WithNEstimators(0)).Fit(X, y) }},
		{"bad max_features", func() error { return NewRandomForestClassifier(WithMaxFeatures("half")).Fit(X, y) }},
		{"bad learning rate", func() error { return NewAdaBoostClassifier(WithLearningRate(0)).Fit(X, y) }},
		{"bad subsample", func() error { return NewGradientBoostingRegressor(WithSubsample(1.5)).Fit(X, y) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.fit(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestFitMembersRecoversPanic(t *testing.T) {
	fitted := make([]bool, 6)
	err := fitMembers("BaggingClassifier", 2, len(fitted), func(i int) error {
		if i == 3 {
			panic("degenerate bootstrap")
		}
		fitted[i] = true
		return nil
	})
	var pe *errors.PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("fitMembers error = %v, want PanicError", err)
	}
	if pe.Operation != "BaggingClassifier member" || pe.PanicValue != "degenerate bootstrap" {
		t.Errorf("PanicError = %v", pe)
	}
	if fitted[3] {
		t.Error("panicking member marked as fitted")
	}
}

func TestBaggingClassifier_MemberErrorFailsFit(t *testing.T) {
	X, y := twoClusters()
	bc := NewBaggingClassifier(WithNEstimators(4), WithNJobs(2), WithCriterion("squared_error"))
	if err := bc.Fit(X, y); err == nil {
		t.Fatal("expected the member trees to reject a regression criterion")
	}
	if _, err := bc.Predict(X); err == nil {
		t.Error("model should not be fitted after a failed member")
	}
}
