package linear_model

import (
	"fmt"

	"github.com/YuminosukeSato/casebook/core/model"
	"github.com/YuminosukeSato/casebook/metrics"
	"github.com/YuminosukeSato/casebook/pkg/errors"
	"github.com/YuminosukeSato/casebook/pkg/log"
	"gonum.org/v1/gonum/mat"
)

var (
	_ model.Regressor      = (*LinearRegression)(nil)
	_ model.ParamAccessor  = (*LinearRegression)(nil)
	_ model.WeightExporter = (*LinearRegression)(nil)
)

// LinearRegression is ordinary least squares solved by QR decomposition. y may have
// several columns; each target gets its own coefficient row.
type LinearRegression struct {
	state *model.StateManager

	fitIntercept bool

	// Learned parameters. coef_ is nTargets × nFeatures.
	coef_      *mat.Dense
	intercept_ []float64
	nTargets_  int
}

// LinearRegressionOption configures a LinearRegression.
type LinearRegressionOption func(*LinearRegression)

// WithLRFitIntercept sets whether an intercept is learned. Default true.
func WithLRFitIntercept(fit bool) LinearRegressionOption {
	return func(lr *LinearRegression) {
		lr.fitIntercept = fit
	}
}

// NewLinearRegression creates an unfitted LinearRegression.
func NewLinearRegression(options ...LinearRegressionOption) *LinearRegression {
	lr := &LinearRegression{
		state:        model.NewStateManager(),
		fitIntercept: true,
	}
	for _, opt := range options {
		opt(lr)
	}
	return lr
}

// Fit solves min ||[1 X] B - y||² column by column.
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("LinearRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if rows != yRows {
		return errors.NewDimensionError("LinearRegression.Fit", rows, yRows, 0)
	}
	if yCols == 0 {
		return errors.NewValueError("LinearRegression.Fit", "y has no columns")
	}

	XFit := X
	nParams := cols
	if lr.fitIntercept {
		withOnes := mat.NewDense(rows, cols+1, nil)
		for i := 0; i < rows; i++ {
			withOnes.Set(i, 0, 1)
			for j := 0; j < cols; j++ {
				withOnes.Set(i, j+1, X.At(i, j))
			}
		}
		XFit = withOnes
		nParams++
	}
	if rows < nParams {
		return errors.NewValueError("LinearRegression.Fit",
			fmt.Sprintf("need at least %d samples for %d parameters, got %d", nParams, nParams, rows))
	}

	var qr mat.QR
	qr.Factorize(XFit)

	B := mat.NewDense(nParams, yCols, nil)
	if err := qr.SolveTo(B, false, y); err != nil {
		return errors.NewModelError("LinearRegression.Fit", "least squares solve failed", errors.Wrap(errors.ErrSingularMatrix, err.Error()))
	}

	lr.coef_ = mat.NewDense(yCols, cols, nil)
	lr.intercept_ = make([]float64, yCols)
	offset := 0
	if lr.fitIntercept {
		offset = 1
	}
	for t := 0; t < yCols; t++ {
		if lr.fitIntercept {
			lr.intercept_[t] = B.At(0, t)
		}
		for j := 0; j < cols; j++ {
			lr.coef_.Set(t, j, B.At(j+offset, t))
		}
	}
	if err := errors.CheckNumericalStability("LinearRegression.Fit", lr.coef_.RawMatrix().Data, 0); err != nil {
		return err
	}

	lr.nTargets_ = yCols
	lr.state.SetDimensions(cols, rows)
	lr.state.SetFitted()

	log.GetLogger().Debug("fitted",
		log.ModelNameKey, "LinearRegression",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.TargetsKey, yCols,
	)
	return nil
}

// Predict returns an n × nTargets matrix.
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.RequireFitted("LinearRegression", "Predict"); err != nil {
		return nil, err
	}
	if err := lr.state.CheckFeatures("LinearRegression.Predict", X); err != nil {
		return nil, err
	}

	rows, _ := X.Dims()
	pred := mat.NewDense(rows, lr.nTargets_, nil)
	pred.Mul(X, lr.coef_.T())
	for i := 0; i < rows; i++ {
		for t := 0; t < lr.nTargets_; t++ {
			pred.Set(i, t, pred.At(i, t)+lr.intercept_[t])
		}
	}
	return pred, nil
}

// Score returns R² averaged uniformly over targets.
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	pred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// Coef returns the coefficients of the first target.
func (lr *LinearRegression) Coef() []float64 {
	if lr.coef_ == nil {
		return nil
	}
	return mat.Row(nil, 0, lr.coef_)
}

// CoefMatrix returns a copy of the nTargets × nFeatures coefficient matrix.
func (lr *LinearRegression) CoefMatrix() *mat.Dense {
	if lr.coef_ == nil {
		return nil
	}
	return mat.DenseCopyOf(lr.coef_)
}

// Intercept returns the intercept of the first target.
func (lr *LinearRegression) Intercept() float64 {
	if len(lr.intercept_) == 0 {
		return 0
	}
	return lr.intercept_[0]
}

// Intercepts returns one intercept per target.
func (lr *LinearRegression) Intercepts() []float64 {
	return append([]float64(nil), lr.intercept_...)
}

// GetParams returns the hyperparameters.
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.fitIntercept,
	}
}

// SetParams sets hyperparameters by name.
func (lr *LinearRegression) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		switch k {
		case "fit_intercept":
			b, ok := v.(bool)
			if !ok {
				return errors.NewValidationError(k, "must be a bool", v)
			}
			lr.fitIntercept = b
		default:
			return errors.NewValidationError(k, "unknown parameter", v)
		}
	}
	return nil
}

// ExportWeights returns the learned coefficients with a checksum.
func (lr *LinearRegression) ExportWeights() (*model.ModelWeights, error) {
	if err := lr.state.RequireFitted("LinearRegression", "ExportWeights"); err != nil {
		return nil, err
	}
	nFeatures, nSamples := lr.state.GetDimensions()

	coefs := make([][]float64, lr.nTargets_)
	for t := range coefs {
		coefs[t] = mat.Row(nil, t, lr.coef_)
	}
	w := &model.ModelWeights{
		ModelType:       "LinearRegression",
		Version:         model.WeightsVersion,
		Coefficients:    coefs,
		Intercepts:      lr.Intercepts(),
		IsFitted:        true,
		Hyperparameters: lr.GetParams(),
		Metadata: map[string]interface{}{
			"n_features": nFeatures,
			"n_samples":  nSamples,
		},
	}
	w.Checksum = w.ComputeChecksum()
	return w, nil
}

// ImportWeights restores a fitted model from exported weights.
func (lr *LinearRegression) ImportWeights(w *model.ModelWeights) error {
	if w == nil {
		return errors.NewValueError("LinearRegression.ImportWeights", "weights cannot be nil")
	}
	if w.ModelType != "LinearRegression" {
		return errors.NewValidationError("model_type", "expected LinearRegression", w.ModelType)
	}
	if err := w.Validate(); err != nil {
		return err
	}
	if !w.IsFitted {
		return errors.NewValueError("LinearRegression.ImportWeights", "weights are not fitted")
	}
	if v, ok := w.Hyperparameters["fit_intercept"].(bool); ok {
		lr.fitIntercept = v
	}

	nTargets := len(w.Coefficients)
	nFeatures := len(w.Coefficients[0])
	lr.coef_ = mat.NewDense(nTargets, nFeatures, nil)
	for t, row := range w.Coefficients {
		lr.coef_.SetRow(t, row)
	}
	lr.intercept_ = append([]float64(nil), w.Intercepts...)
	lr.nTargets_ = nTargets

	nSamples := 0
	// JSON round trips turn ints into float64
	switch v := w.Metadata["n_samples"].(type) {
	case int:
		nSamples = v
	case float64:
		nSamples = int(v)
	}
	lr.state.SetDimensions(nFeatures, nSamples)
	lr.state.SetFitted()
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters.
func (lr *LinearRegression) Clone() *LinearRegression {
	return NewLinearRegression(WithLRFitIntercept(lr.fitIntercept))
}

// IsFitted reports whether Fit or ImportWeights has succeeded.
func (lr *LinearRegression) IsFitted() bool {
	return lr.state.IsFitted()
}

func (lr *LinearRegression) String() string {
	if !lr.state.IsFitted() {
		return fmt.Sprintf("LinearRegression(fit_intercept=%t)", lr.fitIntercept)
	}
	nFeatures, _ := lr.state.GetDimensions()
	return fmt.Sprintf("LinearRegression(fit_intercept=%t, n_features=%d, n_targets=%d)",
		lr.fitIntercept, nFeatures, lr.nTargets_)
}
