package tree

import (
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func stepData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(10, 1, nil)
	y := mat.NewDense(10, 1, nil)
	for i := 0; i < 10; i++ {
		X.Set(i, 0, float64(i))
		if i >= 5 {
			y.Set(i, 0, 10)
		}
	}
	return X, y
}

func TestDecisionTreeRegressor_Step(t *testing.T) {
	X, y := stepData()
	dt := NewDecisionTreeRegressor()
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if dt.GetDepth() != 1 || dt.GetNLeaves() != 2 {
		t.Errorf("depth=%d leaves=%d, want 1 and 2", dt.GetDepth(), dt.GetNLeaves())
	}

	pred, err := dt.Predict(mat.NewDense(2, 1, []float64{1.5, 7.2}))
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if pred.At(0, 0) != 0 || pred.At(1, 0) != 10 {
		t.Errorf("predictions = [%v %v], want [0 10]", pred.At(0, 0), pred.At(1, 0))
	}

	score, err := dt.Score(X, y)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if math.Abs(score-1) > 1e-12 {
		t.Errorf("R² = %v, want 1", score)
	}

	imp := dt.GetFeatureImportances()
	if len(imp) != 1 || math.Abs(imp[0]-1) > 1e-12 {
		t.Errorf("importances = %v, want [1]", imp)
	}
}

func TestDecisionTreeRegressor_LeafValues(t *testing.T) {
	X, y := stepData()
	dt := NewDecisionTreeRegressor(WithMaxDepth(1))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	leaves, err := dt.Apply(X)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if err := dt.SetLeafValue(leaves[0], -3); err != nil {
		t.Fatalf("SetLeafValue failed: %v", err)
	}
	pred, _ := dt.Predict(X)
	if pred.At(0, 0) != -3 || pred.At(9, 0) != 10 {
		t.Errorf("after SetLeafValue got [%v ... %v]", pred.At(0, 0), pred.At(9, 0))
	}
	if err := dt.SetLeafValue(0, 1); err == nil {
		t.Error("expected error setting the value of an internal node")
	}
}

func TestDecisionTreeRegressor_Validation(t *testing.T) {
	X, y := stepData()
	if err := NewDecisionTreeRegressor(WithCriterion("gini")).Fit(X, y); err == nil {
		t.Error("expected error for classification criterion")
	}
	if err := NewDecisionTreeRegressor(WithMinSamplesSplit(1)).Fit(X, y); err == nil {
		t.Error("expected error for min_samples_split < 2")
	}
	if _, err := NewDecisionTreeRegressor().Predict(X); err == nil {
		t.Error("expected error predicting before Fit")
	}
}

func TestDecisionTreeClassifier_FitWeighted(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 1, 2, 3})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})

	dt := NewDecisionTreeClassifier()
	if err := dt.FitWeighted(X, y, []float64{1, 1, 0, 0}); err != nil {
		t.Fatalf("FitWeighted failed: %v", err)
	}
	if dt.GetNLeaves() != 1 {
		t.Errorf("zero-weight rows should be ignored, got %d leaves", dt.GetNLeaves())
	}
	pred, _ := dt.Predict(X)
	for i := 0; i < 4; i++ {
		if pred.At(i, 0) != 0 {
			t.Errorf("row %d predicted %v, want 0", i, pred.At(i, 0))
		}
	}

	if err := dt.FitWeighted(X, y, []float64{1, -1, 1, 1}); err == nil {
		t.Error("expected error for negative weight")
	}
	if err := dt.FitWeighted(X, y, []float64{1, 1}); err == nil {
		t.Error("expected error for weight length mismatch")
	}
}

func TestDecisionTreeClassifier_PruningPath(t *testing.T) {
	X := mat.NewDense(16, 2, nil)
	y := mat.NewDense(16, 1, nil)
	for i := 0; i < 16; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i%4))
		y.Set(i, 0, float64(i%2))
	}

	dt := NewDecisionTreeClassifier(WithRandomState(0))
	path, err := dt.CostComplexityPruningPath(X, y)
	if err != nil {
		t.Fatalf("CostComplexityPruningPath failed: %v", err)
	}
	if len(path.CCPAlphas) != len(path.Impurities) || len(path.CCPAlphas) < 2 {
		t.Fatalf("unexpected path lengths %d/%d", len(path.CCPAlphas), len(path.Impurities))
	}
	if path.CCPAlphas[0] != 0 || path.Impurities[0] > 1e-12 {
		t.Errorf("path should start at alpha 0 with a pure tree, got %v/%v", path.CCPAlphas[0], path.Impurities[0])
	}
	for i := 1; i < len(path.CCPAlphas); i++ {
		if path.CCPAlphas[i] < path.CCPAlphas[i-1] {
			t.Errorf("alphas not monotone at %d: %v", i, path.CCPAlphas)
		}
		if path.Impurities[i] < path.Impurities[i-1]-1e-12 {
			t.Errorf("impurities not monotone at %d: %v", i, path.Impurities)
		}
	}
	last := path.Impurities[len(path.Impurities)-1]
	if math.Abs(last-0.5) > 1e-12 {
		t.Errorf("root impurity = %v, want 0.5", last)
	}

	pruned := NewDecisionTreeClassifier(WithCCPAlpha(path.CCPAlphas[len(path.CCPAlphas)-1]))
	if err := pruned.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if pruned.GetNLeaves() != 1 {
		t.Errorf("largest alpha should prune to the root, got %d leaves", pruned.GetNLeaves())
	}

	full := NewDecisionTreeClassifier()
	if err := full.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if full.GetNLeaves() <= pruned.GetNLeaves() {
		t.Errorf("unpruned tree should have more leaves than the pruned one")
	}
}

func TestDecisionTreeClassifier_ExportText(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 1, 2, 3})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})
	dt := NewDecisionTreeClassifier()
	if _, err := dt.ExportText(nil); err == nil {
		t.Error("expected error before Fit")
	}
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	text, err := dt.ExportText([]string{"hours"})
	if err != nil {
		t.Fatalf("ExportText failed: %v", err)
	}
	want := "|--- hours <= 1.50\n|   |--- class: 0\n|--- hours >  1.50\n|   |--- class: 1\n"
	if text != want {
		t.Errorf("ExportText =\n%s\nwant\n%s", text, want)
	}
	if !strings.Contains(text, "class: 1") {
		t.Error("missing leaf label")
	}
}
