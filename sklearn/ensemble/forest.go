package ensemble

import "github.com/YuminosukeSato/casebook/core/model"

var (
	_ model.Classifier = (*RandomForestClassifier)(nil)
	_ model.Regressor  = (*RandomForestRegressor)(nil)
)

// RandomForestClassifier is bagging with per-split feature sampling.
type RandomForestClassifier struct {
	baggedClassifier
}

// NewRandomForestClassifier creates a forest of 100 trees sampling sqrt(d) features
// per split.
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	return &RandomForestClassifier{baggedClassifier{
		name: "RandomForestClassifier",
		cfg: newConfig(config{
			nEstimators:  100,
			learningRate: 1,
			maxSamples:   1,
			bootstrap:    true,
			maxFeatures:  "sqrt",
			subsample:    1,
			criterion:    "gini",
		}, opts),
		state: model.NewStateManager(),
	}}
}

// RandomForestRegressor is bagging of regression trees with optional per-split feature
// sampling. By default every feature is considered, as in scikit-learn.
type RandomForestRegressor struct {
	baggedRegressor
}

// NewRandomForestRegressor creates a forest of 100 regression trees.
func NewRandomForestRegressor(opts ...Option) *RandomForestRegressor {
	return &RandomForestRegressor{baggedRegressor{
		name: "RandomForestRegressor",
		cfg: newConfig(config{
			nEstimators:  100,
			learningRate: 1,
			maxSamples:   1,
			bootstrap:    true,
			maxFeatures:  "all",
			subsample:    1,
		}, opts),
		state: model.NewStateManager(),
	}}
}
