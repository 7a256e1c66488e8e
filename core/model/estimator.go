// Package model defines the estimator contracts shared by every learner in casebook,
// together with the fitted-state bookkeeping and the JSON weight format.
package model

import "gonum.org/v1/gonum/mat"

// Fitter is a model that learns from (X, y).
type Fitter interface {
	Fit(X, y mat.Matrix) error
}

// Predictor produces one prediction row per input row.
type Predictor interface {
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Scorer returns R² for regressors and accuracy for classifiers.
type Scorer interface {
	Score(X, y mat.Matrix) (float64, error)
}

// Estimator is the minimal supervised learner.
type Estimator interface {
	Fitter
	Predictor
}

// Regressor is an estimator with a continuous target.
type Regressor interface {
	Estimator
	Scorer
}

// Classifier is an estimator with integer class labels.
type Classifier interface {
	Estimator
	Scorer

	// PredictProba returns one column per class, ordered as Classes.
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes returns the sorted labels seen during fitting.
	Classes() []int
}

// WeightedFitter accepts per-sample weights during fitting.
type WeightedFitter interface {
	FitWeighted(X, y mat.Matrix, sampleWeight []float64) error
}

// ParamAccessor exposes hyperparameters as a map keyed by the scikit-learn names.
type ParamAccessor interface {
	GetParams() map[string]interface{}
	SetParams(params map[string]interface{}) error
}

// Transformer learns a column transformation from X alone.
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// InverseTransformer can map transformed data back.
type InverseTransformer interface {
	Transformer
	InverseTransform(X mat.Matrix) (mat.Matrix, error)
}

// WeightExporter is implemented by models whose learned parameters fit in ModelWeights.
type WeightExporter interface {
	ExportWeights() (*ModelWeights, error)
	ImportWeights(weights *ModelWeights) error
}
