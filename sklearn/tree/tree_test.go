package tree

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// alternating returns six points on a line whose labels need three splits to separate:
//
//	x <= 1.5            -> 0
//	x >  1.5, x <= 3.5  -> 1
//	x >  3.5, x <= 4.5  -> 0
//	x >  4.5            -> 1
func alternating() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(6, 1, []float64{0, 1, 2, 3, 4, 5})
	y := mat.NewDense(6, 1, []float64{0, 0, 1, 1, 0, 1})
	return X, y
}

func TestDecisionTreeClassifier_GrowsUntilPure(t *testing.T) {
	X, y := alternating()
	dt := NewDecisionTreeClassifier()
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if dt.GetDepth() != 3 {
		t.Errorf("GetDepth = %d, want 3", dt.GetDepth())
	}
	if dt.GetNLeaves() != 4 {
		t.Errorf("GetNLeaves = %d, want 4", dt.GetNLeaves())
	}
	score, err := dt.Score(X, y)
	if err != nil || score != 1 {
		t.Errorf("Score = %v, %v; want 1", score, err)
	}

	pred, err := dt.Predict(mat.NewDense(4, 1, []float64{0.7, 2.9, 4.2, 9}))
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	want := []float64{0, 1, 0, 1}
	for i, w := range want {
		if pred.At(i, 0) != w {
			t.Errorf("Predict row %d = %v, want %v", i, pred.At(i, 0), w)
		}
	}
}

func TestDecisionTreeClassifier_LeafProbabilities(t *testing.T) {
	X, y := alternating()
	dt := NewDecisionTreeClassifier(WithMaxDepth(1))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	// the stump splits at 1.5; the right leaf holds three 1s and one 0
	proba, err := dt.PredictProba(mat.NewDense(2, 1, []float64{0, 3}))
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}
	want := mat.NewDense(2, 2, []float64{1, 0, 0.25, 0.75})
	if !mat.EqualApprox(proba, want, 1e-12) {
		t.Errorf("PredictProba =\n%v\nwant\n%v", mat.Formatted(proba), mat.Formatted(want))
	}
}

func TestDecisionTreeClassifier_PruningPathValues(t *testing.T) {
	X, y := alternating()
	path, err := NewDecisionTreeClassifier().CostComplexityPruningPath(X, y)
	if err != nil {
		t.Fatalf("CostComplexityPruningPath failed: %v", err)
	}

	// The subtree under x > 1.5 (three leaves, R(t) = 4/6 * 3/8) is the weakest link,
	// then the root with R(t) = 1/2 against R(T) = 1/4.
	wantAlphas := []float64{0, 0.125, 0.25}
	wantImpurities := []float64{0, 0.25, 0.5}
	if len(path.CCPAlphas) != len(wantAlphas) {
		t.Fatalf("CCPAlphas = %v, want %v", path.CCPAlphas, wantAlphas)
	}
	for i := range wantAlphas {
		if math.Abs(path.CCPAlphas[i]-wantAlphas[i]) > 1e-12 {
			t.Errorf("CCPAlphas[%d] = %v, want %v", i, path.CCPAlphas[i], wantAlphas[i])
		}
		if math.Abs(path.Impurities[i]-wantImpurities[i]) > 1e-12 {
			t.Errorf("Impurities[%d] = %v, want %v", i, path.Impurities[i], wantImpurities[i])
		}
	}
}

func TestDecisionTreeClassifier_CCPAlphaPrunes(t *testing.T) {
	X, y := alternating()
	tests := []struct {
		alpha      float64
		wantLeaves int
		wantDepth  int
	}{
		{0, 4, 3},
		{0.1, 4, 3},
		{0.2, 2, 1},
		{0.3, 1, 0},
	}
	for _, tt := range tests {
		dt := NewDecisionTreeClassifier(WithCCPAlpha(tt.alpha))
		if err := dt.Fit(X, y); err != nil {
			t.Fatalf("alpha %v: Fit failed: %v", tt.alpha, err)
		}
		if dt.GetNLeaves() != tt.wantLeaves || dt.GetDepth() != tt.wantDepth {
			t.Errorf("alpha %v: leaves=%d depth=%d, want %d/%d",
				tt.alpha, dt.GetNLeaves(), dt.GetDepth(), tt.wantLeaves, tt.wantDepth)
		}
	}
}

func TestDecisionTreeClassifier_EntropyRootIsOneBit(t *testing.T) {
	X, y := alternating()
	path, err := NewDecisionTreeClassifier(WithCriterion("entropy")).CostComplexityPruningPath(X, y)
	if err != nil {
		t.Fatalf("CostComplexityPruningPath failed: %v", err)
	}
	root := path.Impurities[len(path.Impurities)-1]
	if math.Abs(root-1) > 1e-12 {
		t.Errorf("root entropy = %v, want 1 bit", root)
	}
}

func TestDecisionTreeClassifier_ArbitraryLabels(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{0, 1, 2, 3, 4, 5})
	y := mat.NewDense(6, 1, []float64{2, 2, 5, 5, 9, 9})
	dt := NewDecisionTreeClassifier()
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if got := dt.Classes(); len(got) != 3 || got[0] != 2 || got[1] != 5 || got[2] != 9 {
		t.Fatalf("Classes = %v, want [2 5 9]", got)
	}

	proba, err := dt.PredictProba(mat.NewDense(1, 1, []float64{2.7}))
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}
	if proba.At(0, 0) != 0 || proba.At(0, 1) != 1 || proba.At(0, 2) != 0 {
		t.Errorf("PredictProba(2.7) = %v, want the column of class 5", mat.Formatted(proba))
	}
	pred, _ := dt.Predict(mat.NewDense(1, 1, []float64{2.7}))
	if pred.At(0, 0) != 5 {
		t.Errorf("Predict(2.7) = %v, want 5", pred.At(0, 0))
	}
}

func TestDecisionTreeClassifier_MinSamplesLeaf(t *testing.T) {
	X, y := alternating()
	dt := NewDecisionTreeClassifier(WithMinSamplesLeaf(3))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if dt.GetNLeaves() != 2 || dt.GetDepth() != 1 {
		t.Errorf("leaves=%d depth=%d, want a single split into halves", dt.GetNLeaves(), dt.GetDepth())
	}
}

func TestDecisionTreeClassifier_ConstantFeatureHasNoImportance(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{
		0, 7,
		1, 7,
		2, 7,
		3, 7,
		4, 7,
		5, 7,
	})
	_, y := alternating()
	dt := NewDecisionTreeClassifier()
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	imp := dt.GetFeatureImportances()
	if len(imp) != 2 || math.Abs(imp[0]-1) > 1e-12 || imp[1] != 0 {
		t.Errorf("GetFeatureImportances = %v, want [1 0]", imp)
	}
}

func TestDecisionTreeClassifier_FailedRefitKeepsTree(t *testing.T) {
	X, y := alternating()
	dt := NewDecisionTreeClassifier()
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if err := dt.FitWeighted(X, y, []float64{0, 0, 0, 0, 0, 0}); err == nil {
		t.Fatal("expected error for all-zero weights")
	}
	if dt.GetNLeaves() != 4 {
		t.Errorf("GetNLeaves after rejected refit = %d, want 4", dt.GetNLeaves())
	}
	if _, err := dt.Predict(X); err != nil {
		t.Errorf("Predict after rejected refit: %v", err)
	}
}

func TestDecisionTreeClassifier_SetParams(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	if err := dt.SetParams(map[string]interface{}{"max_depth": 2, "criterion": "entropy", "ccp_alpha": 0.01}); err != nil {
		t.Fatalf("SetParams failed: %v", err)
	}
	params := dt.GetParams()
	if params["max_depth"] != 2 || params["criterion"] != "entropy" || params["ccp_alpha"] != 0.01 {
		t.Errorf("GetParams = %v", params)
	}

	rejected := []map[string]interface{}{
		{"max_depth": 5, "ccp_alpha": 1},
		{"max_depth": 5, "splitter": "random"},
		{"random_state": "seven"},
	}
	for _, values := range rejected {
		if err := dt.SetParams(values); err == nil {
			t.Errorf("SetParams(%v) should fail", values)
		}
		if got := dt.GetParams()["max_depth"]; got != 2 {
			t.Errorf("SetParams(%v) changed max_depth to %v", values, got)
		}
	}
}

func TestDecisionTreeClassifier_Validation(t *testing.T) {
	X, y := alternating()
	tests := []struct {
		name string
		opts []Option
	}{
		{"regression criterion", []Option{WithCriterion("squared_error")}},
		{"negative depth", []Option{WithMaxDepth(-1)}},
		{"min_samples_split 1", []Option{WithMinSamplesSplit(1)}},
		{"min_samples_leaf 0", []Option{WithMinSamplesLeaf(0)}},
		{"negative ccp_alpha", []Option{WithCCPAlpha(-0.1)}},
		{"NaN ccp_alpha", []Option{WithCCPAlpha(math.NaN())}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := NewDecisionTreeClassifier(tt.opts...).Fit(X, y); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestDecisionTreeClassifier_NotFitted(t *testing.T) {
	X, y := alternating()
	dt := NewDecisionTreeClassifier()
	if _, err := dt.Predict(X); err == nil {
		t.Error("expected error predicting before Fit")
	}
	if _, err := dt.PredictProba(X); err == nil {
		t.Error("expected error for PredictProba before Fit")
	}
	if dt.GetDepth() != 0 || dt.GetNLeaves() != 0 || dt.GetFeatureImportances() != nil {
		t.Error("unfitted tree should report no structure")
	}

	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if _, err := dt.Predict(mat.NewDense(1, 2, nil)); err == nil {
		t.Error("expected error for a feature count mismatch")
	}
}
