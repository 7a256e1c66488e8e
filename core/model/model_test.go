package model

import (
	"testing"

	scierrors "github.com/YuminosukeSato/casebook/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

func TestStateManager(t *testing.T) {
	s := NewStateManager()
	if s.IsFitted() {
		t.Fatal("new StateManager should not be fitted")
	}

	err := s.RequireFitted("LinearRegression", "Predict")
	var nf *scierrors.NotFittedError
	if !scierrors.As(err, &nf) {
		t.Fatalf("expected NotFittedError, got %v", err)
	}
	if nf.Method != "Predict" {
		t.Errorf("Method = %s, want Predict", nf.Method)
	}

	s.SetDimensions(3, 10)
	s.SetFitted()
	if err := s.RequireFitted("LinearRegression", "Predict"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := s.CheckFeatures("Predict", mat.NewDense(2, 3, nil)); err != nil {
		t.Errorf("CheckFeatures with 3 columns: %v", err)
	}
	var de *scierrors.DimensionError
	if err := s.CheckFeatures("Predict", mat.NewDense(2, 2, nil)); !scierrors.As(err, &de) {
		t.Errorf("expected DimensionError, got %v", err)
	}

	s.Reset()
	if f, n := s.GetDimensions(); s.IsFitted() || f != 0 || n != 0 {
		t.Errorf("Reset left fitted=%v dims=(%d,%d)", s.IsFitted(), f, n)
	}
}

func TestModelWeights(t *testing.T) {
	mw := &ModelWeights{
		ModelType:       "LinearRegression",
		Version:         WeightsVersion,
		Coefficients:    [][]float64{{1.5, -2}, {0.25, 4}},
		Intercepts:      []float64{3, -1},
		Targets:         []string{"kp", "ki"},
		Hyperparameters: map[string]interface{}{"fit_intercept": true},
		IsFitted:        true,
	}
	mw.Checksum = mw.ComputeChecksum()
	if err := mw.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	data, err := mw.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	var decoded ModelWeights
	if err := decoded.FromJSON(data); err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if err := decoded.Validate(); err != nil {
		t.Errorf("decoded weights failed validation: %v", err)
	}

	decoded.Coefficients[0][0] = 99
	if err := decoded.Validate(); err == nil {
		t.Error("tampered coefficients should fail checksum validation")
	}
}

func TestModelWeightsValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		mw   ModelWeights
	}{
		{"missing type", ModelWeights{Version: WeightsVersion}},
		{"missing version", ModelWeights{ModelType: "LinearRegression"}},
		{"fitted without coefficients", ModelWeights{ModelType: "LinearRegression", Version: WeightsVersion, IsFitted: true}},
		{"unfitted with coefficients", ModelWeights{ModelType: "LinearRegression", Version: WeightsVersion, Coefficients: [][]float64{{1}}}},
		{"intercept count", ModelWeights{ModelType: "LinearRegression", Version: WeightsVersion, IsFitted: true, Coefficients: [][]float64{{1}}, Intercepts: []float64{}}},
		{"ragged rows", ModelWeights{ModelType: "LinearRegression", Version: WeightsVersion, IsFitted: true, Coefficients: [][]float64{{1, 2}, {1}}, Intercepts: []float64{0, 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.mw.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
