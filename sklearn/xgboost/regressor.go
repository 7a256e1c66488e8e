package xgboost

import (
	"math"

	"github.com/YuminosukeSato/casebook/metrics"
	"gonum.org/v1/gonum/mat"
)

type squaredError struct{}

func (squaredError) name() string       { return "reg:squarederror" }
func (squaredError) metricName() string { return "rmse" }

func (squaredError) baseMargin(y []float64, baseScore float64) float64 {
	if !math.IsNaN(baseScore) {
		return baseScore
	}
	mean := 0.0
	for _, v := range y {
		mean += v
	}
	return mean / float64(len(y))
}

func (squaredError) gradHess(y, margin, grad, hess []float64) {
	for i := range y {
		grad[i] = margin[i] - y[i]
		hess[i] = 1
	}
}

func (squaredError) metric(y, margin []float64) float64 {
	sum := 0.0
	for i := range y {
		d := margin[i] - y[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(y)))
}

// XGBRegressor is a gradient boosted tree regressor with the reg:squarederror
// objective.
type XGBRegressor struct {
	booster
}

// NewXGBRegressor creates a regressor with the XGBoost defaults.
func NewXGBRegressor(opts ...Option) *XGBRegressor {
	return &XGBRegressor{newBooster("XGBRegressor", squaredError{}, opts)}
}

// Fit trains the booster. When base_score is unset it starts from the mean target.
func (r *XGBRegressor) Fit(X, y mat.Matrix) error {
	target, err := checkXY("XGBRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	return r.fit(X, target, nil, nil)
}

// FitWithEval trains on (X, y) while tracking RMSE on (XEval, yEval).
func (r *XGBRegressor) FitWithEval(X, y, XEval, yEval mat.Matrix) error {
	target, err := checkXY("XGBRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	evalTarget, err := checkEval("XGBRegressor.FitWithEval", X, XEval, yEval)
	if err != nil {
		return err
	}
	return r.fit(X, target, XEval, evalTarget)
}

// Predict returns the boosted predictions.
func (r *XGBRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	m, err := r.margins("Predict", X)
	if err != nil {
		return nil, err
	}
	return mat.NewDense(len(m), 1, m), nil
}

// Score returns R².
func (r *XGBRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := r.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}
