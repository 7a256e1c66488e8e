package linear_model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/YuminosukeSato/casebook/core/model"
	"github.com/YuminosukeSato/casebook/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

func linearData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(100, 3, nil)
	y := mat.NewDense(100, 1, nil)
	for i := 0; i < 100; i++ {
		X.Set(i, 0, math.Sin(float64(i)/10.0))
		X.Set(i, 1, math.Cos(float64(i)/10.0))
		X.Set(i, 2, float64(i)/50.0)
		// y = 2*x1 + 3*x2 - x3 + 5
		y.Set(i, 0, 2*X.At(i, 0)+3*X.At(i, 1)-X.At(i, 2)+5)
	}
	return X, y
}

func TestLinearRegression_FitRecoversCoefficients(t *testing.T) {
	X, y := linearData()

	lr := NewLinearRegression()
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	want := []float64{2, 3, -1}
	for j, c := range lr.Coef() {
		if math.Abs(c-want[j]) > 1e-9 {
			t.Errorf("coef[%d] = %v, want %v", j, c, want[j])
		}
	}
	if math.Abs(lr.Intercept()-5) > 1e-9 {
		t.Errorf("Intercept() = %v, want 5", lr.Intercept())
	}

	score, err := lr.Score(X, y)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if math.Abs(score-1) > 1e-12 {
		t.Errorf("Score() = %v, want 1", score)
	}
}

func TestLinearRegression_MultiTarget(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{0, 1, 2, 3, 4, 5})
	y := mat.NewDense(6, 2, nil)
	for i := 0; i < 6; i++ {
		x := X.At(i, 0)
		y.Set(i, 0, 3*x+1)
		y.Set(i, 1, -2*x+4)
	}

	lr := NewLinearRegression()
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	coef := lr.CoefMatrix()
	if r, c := coef.Dims(); r != 2 || c != 1 {
		t.Fatalf("CoefMatrix() dims = (%d,%d), want (2,1)", r, c)
	}
	if math.Abs(coef.At(0, 0)-3) > 1e-9 || math.Abs(coef.At(1, 0)+2) > 1e-9 {
		t.Errorf("coefficients = %v", mat.Formatted(coef))
	}
	icpt := lr.Intercepts()
	if math.Abs(icpt[0]-1) > 1e-9 || math.Abs(icpt[1]-4) > 1e-9 {
		t.Errorf("Intercepts() = %v, want [1 4]", icpt)
	}

	pred, err := lr.Predict(mat.NewDense(1, 1, []float64{10}))
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if math.Abs(pred.At(0, 0)-31) > 1e-9 || math.Abs(pred.At(0, 1)+16) > 1e-9 {
		t.Errorf("Predict(10) = [%v %v], want [31 -16]", pred.At(0, 0), pred.At(0, 1))
	}
}

func TestLinearRegression_NoIntercept(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{2, 4, 6, 8})

	lr := NewLinearRegression(WithLRFitIntercept(false))
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if lr.Intercept() != 0 || math.Abs(lr.Coef()[0]-2) > 1e-12 {
		t.Errorf("got coef=%v intercept=%v", lr.Coef(), lr.Intercept())
	}
}

func TestLinearRegression_Errors(t *testing.T) {
	lr := NewLinearRegression()

	_, err := lr.Predict(mat.NewDense(1, 1, []float64{1}))
	var nf *errors.NotFittedError
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFittedError, got %v", err)
	}

	if err := lr.Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), mat.NewDense(2, 1, []float64{1, 2})); err == nil {
		t.Error("expected dimension error")
	}
	if err := lr.Fit(mat.NewDense(2, 3, nil), mat.NewDense(2, 1, nil)); err == nil {
		t.Error("expected error for fewer samples than parameters")
	}

	X, y := linearData()
	if err := lr.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	var de *errors.DimensionError
	if _, err := lr.Predict(mat.NewDense(1, 2, nil)); !errors.As(err, &de) {
		t.Errorf("expected DimensionError, got %v", err)
	}
}

func TestLinearRegression_WeightRoundTrip(t *testing.T) {
	X, y := linearData()
	lr := NewLinearRegression()
	if err := lr.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	weights, err := lr.ExportWeights()
	if err != nil {
		t.Fatalf("ExportWeights() error = %v", err)
	}
	data, err := json.Marshal(weights)
	if err != nil {
		t.Fatal(err)
	}
	loaded := &model.ModelWeights{}
	if err := json.Unmarshal(data, loaded); err != nil {
		t.Fatal(err)
	}

	restored := NewLinearRegression()
	if err := restored.ImportWeights(loaded); err != nil {
		t.Fatalf("ImportWeights() error = %v", err)
	}

	p1, _ := lr.Predict(X)
	p2, err := restored.Predict(X)
	if err != nil {
		t.Fatalf("Predict() on restored model error = %v", err)
	}
	if !mat.Equal(p1, p2) {
		t.Error("restored model predictions differ bit-for-bit")
	}

	loaded.Coefficients[0][0] += 1e-12
	if err := NewLinearRegression().ImportWeights(loaded); err == nil {
		t.Error("expected checksum mismatch after tampering")
	}

	wrongType := *weights
	wrongType.ModelType = "Ridge"
	if err := NewLinearRegression().ImportWeights(&wrongType); err == nil {
		t.Error("expected model type mismatch")
	}
}

func TestLinearRegression_CloneAndParams(t *testing.T) {
	lr := NewLinearRegression(WithLRFitIntercept(false))
	clone := lr.Clone()
	if clone.GetParams()["fit_intercept"] != false {
		t.Error("Clone() lost fit_intercept")
	}
	if clone.IsFitted() {
		t.Error("Clone() should be unfitted")
	}
	if err := clone.SetParams(map[string]interface{}{"fit_intercept": true}); err != nil {
		t.Fatal(err)
	}
	if clone.GetParams()["fit_intercept"] != true {
		t.Error("SetParams did not apply")
	}
	if err := clone.SetParams(map[string]interface{}{"fit_intercept": "yes"}); err == nil {
		t.Error("expected type error")
	}
}
