package preprocessing

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/casebook/core/model"
	"github.com/YuminosukeSato/casebook/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var _ model.InverseTransformer = (*StandardScaler)(nil)

// StandardScaler standardizes features to zero mean and unit variance using the
// population standard deviation, as scikit-learn does.
type StandardScaler struct {
	state *model.StateManager

	// Learned statistics, one entry per feature.
	Mean_  []float64
	Scale_ []float64

	withMean bool
	withStd  bool
}

// NewStandardScaler creates a StandardScaler.
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	XScaled, err := scaler.FitTransform(X)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		state:    model.NewStateManager(),
		withMean: withMean,
		withStd:  withStd,
	}
}

// NewStandardScalerDefault centers and scales.
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// Fit computes per-feature mean and standard deviation. Constant features get scale 1.
func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}

	s.Mean_ = make([]float64, c)
	s.Scale_ = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		mean, variance := stat.PopMeanVariance(col, nil)
		if s.withMean {
			s.Mean_[j] = mean
		}
		s.Scale_[j] = 1
		if s.withStd {
			if std := math.Sqrt(variance); std >= 1e-8 {
				s.Scale_[j] = std
			}
		}
	}

	s.state.SetDimensions(c, r)
	s.state.SetFitted()
	return nil
}

// Transform applies (x - mean) / scale.
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.RequireFitted("StandardScaler", "Transform"); err != nil {
		return nil, err
	}
	if err := s.state.CheckFeatures("StandardScaler.Transform", X); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return (v - s.Mean_[j]) / s.Scale_[j]
	}, X)
	return result, nil
}

// FitTransform fits on X and returns the transformed X.
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform maps standardized data back to the original scale.
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.RequireFitted("StandardScaler", "InverseTransform"); err != nil {
		return nil, err
	}
	if err := s.state.CheckFeatures("StandardScaler.InverseTransform", X); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return v*s.Scale_[j] + s.Mean_[j]
	}, X)
	return result, nil
}

// GetParams returns the hyperparameters.
func (s *StandardScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"with_mean": s.withMean,
		"with_std":  s.withStd,
	}
}

func (s *StandardScaler) String() string {
	if !s.state.IsFitted() {
		return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.withMean, s.withStd)
	}
	nFeatures, _ := s.state.GetDimensions()
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, n_features=%d)",
		s.withMean, s.withStd, nFeatures)
}
