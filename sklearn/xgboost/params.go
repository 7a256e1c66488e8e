// Package xgboost implements second-order gradient boosting with regularized
// leaf weights, following the XGBoost objective for squared error and binary
// logistic loss.
package xgboost

import (
	"math"

	"github.com/YuminosukeSato/casebook/pkg/errors"
)

// Params holds the booster hyperparameters using the XGBoost names.
type Params struct {
	NEstimators     int
	LearningRate    float64 // eta
	MaxDepth        int
	MinChildWeight  float64
	RegLambda       float64
	RegAlpha        float64
	Gamma           float64
	Subsample       float64
	ColsampleByTree float64
	Seed            uint64
	// NaN means estimate from the training target
	BaseScore           float64
	EarlyStoppingRounds int
}

// DefaultParams returns the XGBoost defaults.
func DefaultParams() Params {
	return Params{
		NEstimators:     100,
		LearningRate:    0.3,
		MaxDepth:        6,
		MinChildWeight:  1,
		RegLambda:       1,
		Subsample:       1,
		ColsampleByTree: 1,
		BaseScore:       math.NaN(),
	}
}

// Option configures a booster.
type Option func(*Params)

// WithNEstimators sets the number of boosting rounds.
func WithNEstimators(n int) Option { return func(p *Params) { p.NEstimators = n } }

// WithLearningRate sets eta, the shrinkage applied to every leaf weight.
func WithLearningRate(eta float64) Option { return func(p *Params) { p.LearningRate = eta } }

// WithMaxDepth limits tree depth.
func WithMaxDepth(depth int) Option { return func(p *Params) { p.MaxDepth = depth } }

// WithMinChildWeight sets the minimum hessian sum per child.
func WithMinChildWeight(w float64) Option { return func(p *Params) { p.MinChildWeight = w } }

// WithRegLambda sets the L2 penalty on leaf weights.
func WithRegLambda(lambda float64) Option { return func(p *Params) { p.RegLambda = lambda } }

// WithRegAlpha sets the L1 penalty on leaf weights.
func WithRegAlpha(alpha float64) Option { return func(p *Params) { p.RegAlpha = alpha } }

// WithGamma sets the minimum loss reduction required to split.
func WithGamma(gamma float64) Option { return func(p *Params) { p.Gamma = gamma } }

// WithSubsample sets the row fraction sampled for each tree.
func WithSubsample(fraction float64) Option { return func(p *Params) { p.Subsample = fraction } }

// WithColsampleByTree sets the column fraction sampled for each tree.
func WithColsampleByTree(fraction float64) Option {
	return func(p *Params) { p.ColsampleByTree = fraction }
}

// WithSeed seeds row and column sampling.
func WithSeed(seed uint64) Option { return func(p *Params) { p.Seed = seed } }

// WithBaseScore fixes the initial prediction (a probability for the classifier).
func WithBaseScore(score float64) Option { return func(p *Params) { p.BaseScore = score } }

// WithEarlyStoppingRounds stops training when the validation metric has not improved
// for n rounds. It only applies to FitWithEval.
func WithEarlyStoppingRounds(n int) Option {
	return func(p *Params) { p.EarlyStoppingRounds = n }
}

// Validate checks the parameter domains.
func (p *Params) Validate() error {
	switch {
	case p.NEstimators < 1:
		return errors.NewValidationError("n_estimators", "must be >= 1", p.NEstimators)
	case p.LearningRate <= 0 || p.LearningRate > 1:
		return errors.NewValidationError("learning_rate", "must be in (0, 1]", p.LearningRate)
	case p.MaxDepth < 1:
		return errors.NewValidationError("max_depth", "must be >= 1", p.MaxDepth)
	case p.MinChildWeight < 0:
		return errors.NewValidationError("min_child_weight", "must be non-negative", p.MinChildWeight)
	case p.RegLambda < 0:
		return errors.NewValidationError("reg_lambda", "must be non-negative", p.RegLambda)
	case p.RegAlpha < 0:
		return errors.NewValidationError("reg_alpha", "must be non-negative", p.RegAlpha)
	case p.Gamma < 0:
		return errors.NewValidationError("gamma", "must be non-negative", p.Gamma)
	case p.Subsample <= 0 || p.Subsample > 1:
		return errors.NewValidationError("subsample", "must be in (0, 1]", p.Subsample)
	case p.ColsampleByTree <= 0 || p.ColsampleByTree > 1:
		return errors.NewValidationError("colsample_bytree", "must be in (0, 1]", p.ColsampleByTree)
	case p.EarlyStoppingRounds < 0:
		return errors.NewValidationError("early_stopping_rounds", "must be non-negative", p.EarlyStoppingRounds)
	}
	return nil
}

// Map returns the parameters keyed by their XGBoost names.
func (p *Params) Map() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":          p.NEstimators,
		"learning_rate":         p.LearningRate,
		"max_depth":             p.MaxDepth,
		"min_child_weight":      p.MinChildWeight,
		"reg_lambda":            p.RegLambda,
		"reg_alpha":             p.RegAlpha,
		"gamma":                 p.Gamma,
		"subsample":             p.Subsample,
		"colsample_bytree":      p.ColsampleByTree,
		"seed":                  p.Seed,
		"base_score":            p.BaseScore,
		"early_stopping_rounds": p.EarlyStoppingRounds,
	}
}
