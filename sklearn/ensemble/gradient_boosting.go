package ensemble

import (
	"math"

	"github.com/YuminosukeSato/casebook/core/model"
	"github.com/YuminosukeSato/casebook/metrics"
	"github.com/YuminosukeSato/casebook/pkg/errors"
	"github.com/YuminosukeSato/casebook/pkg/log"
	"github.com/YuminosukeSato/casebook/sklearn/tree"
	"gonum.org/v1/gonum/mat"
)

var (
	_ model.Classifier = (*GradientBoostingClassifier)(nil)
	_ model.Regressor  = (*GradientBoostingRegressor)(nil)
)

// boostedTrees is the additive model F(x) = init + lr * sum_m tree_m(x) shared by both
// gradient boosting estimators.
type boostedTrees struct {
	cfg   config
	state *model.StateManager

	init_       float64
	estimators_ []*tree.DecisionTreeRegressor
	trainScore_ []float64
}

func gbDefaults() config {
	return config{
		nEstimators:  100,
		learningRate: 0.1,
		maxSamples:   1,
		subsample:    1,
		maxDepth:     3,
	}
}

// stagedRaw calls visit with the raw additive score after each round.
func (g *boostedTrees) stagedRaw(name, op string, X mat.Matrix, visit func(stage int, raw []float64) error) error {
	if err := g.state.RequireFitted(name, op); err != nil {
		return err
	}
	if err := g.state.CheckFeatures(name+"."+op, X); err != nil {
		return err
	}
	n, _ := X.Dims()
	raw := make([]float64, n)
	for i := range raw {
		raw[i] = g.init_
	}
	for m, t := range g.estimators_ {
		pred, err := t.Predict(X)
		if err != nil {
			return err
		}
		for i := range raw {
			raw[i] += g.cfg.learningRate * pred.At(i, 0)
		}
		if err := visit(m, raw); err != nil {
			return err
		}
	}
	return nil
}

func (g *boostedTrees) raw(name string, X mat.Matrix) ([]float64, error) {
	var out []float64
	err := g.stagedRaw(name, "Predict", X, func(_ int, raw []float64) error {
		out = raw
		return nil
	})
	if err == nil && out == nil {
		n, _ := X.Dims()
		out = make([]float64, n)
		for i := range out {
			out[i] = g.init_
		}
	}
	return out, err
}

// boost fits nEstimators regression trees to the negative gradient returned by
// residual. update, when set, rewrites the leaf values of each fresh tree.
func (g *boostedTrees) boost(
	name string,
	X mat.Matrix,
	n int,
	residual func(raw []float64) []float64,
	update func(t *tree.DecisionTreeRegressor, raw, resid, w []float64) error,
	loss func(raw, w []float64) float64,
) error {
	_, d := X.Dims()
	raw := make([]float64, n)
	for i := range raw {
		raw[i] = g.init_
	}
	rng := newRNG(g.cfg.randomState)
	g.estimators_ = make([]*tree.DecisionTreeRegressor, 0, g.cfg.nEstimators)
	g.trainScore_ = make([]float64, 0, g.cfg.nEstimators)

	for m := 0; m < g.cfg.nEstimators; m++ {
		w := sampleWeights(rng, n, g.cfg.subsample, false)
		resid := residual(raw)

		t := tree.NewDecisionTreeRegressor(g.cfg.treeOptions(d, rng.Uint64())...)
		if err := t.FitWeighted(X, mat.NewDense(n, 1, resid), w); err != nil {
			return errors.Wrapf(err, "%s round %d", name, m)
		}
		if update != nil {
			if err := update(t, raw, resid, w); err != nil {
				return err
			}
		}
		pred, err := t.Predict(X)
		if err != nil {
			return err
		}
		for i := range raw {
			raw[i] += g.cfg.learningRate * pred.At(i, 0)
		}
		if err := errors.CheckNumericalStability(name+".Fit", raw, m); err != nil {
			return err
		}
		g.estimators_ = append(g.estimators_, t)
		g.trainScore_ = append(g.trainScore_, loss(raw, w))
	}
	return nil
}

// TrainScore returns the in-bag training loss after each round.
func (g *boostedTrees) TrainScore() []float64 {
	return append([]float64(nil), g.trainScore_...)
}

// FeatureImportances averages the importances of the boosting rounds.
func (g *boostedTrees) FeatureImportances() []float64 {
	d, _ := g.state.GetDimensions()
	imps := make([][]float64, 0, len(g.estimators_))
	for _, t := range g.estimators_ {
		imps = append(imps, t.GetFeatureImportances())
	}
	return meanImportances(d, imps)
}

// GetParams returns the hyperparameters.
func (g *boostedTrees) GetParams() map[string]interface{} {
	return g.cfg.params()
}

// GradientBoostingRegressor boosts regression trees on the squared error loss.
type GradientBoostingRegressor struct {
	boostedTrees
}

// NewGradientBoostingRegressor creates a regressor with 100 depth-3 trees and
// learning rate 0.1.
func NewGradientBoostingRegressor(opts ...Option) *GradientBoostingRegressor {
	return &GradientBoostingRegressor{boostedTrees{
		cfg:   newConfig(gbDefaults(), opts),
		state: model.NewStateManager(),
	}}
}

// Fit starts from the mean target and fits each tree to the current residuals.
func (gb *GradientBoostingRegressor) Fit(X, y mat.Matrix) error {
	n, d, err := checkXY("GradientBoostingRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if err := gb.cfg.validate(); err != nil {
		return err
	}
	gb.state.Reset()

	target := make([]float64, n)
	mat.Col(target, 0, y)
	mean := 0.0
	for _, v := range target {
		mean += v
	}
	gb.init_ = mean / float64(n)

	residual := func(raw []float64) []float64 {
		r := make([]float64, n)
		for i := range r {
			r[i] = target[i] - raw[i]
		}
		return r
	}
	loss := func(raw, w []float64) float64 {
		var sum, total float64
		for i := range raw {
			diff := target[i] - raw[i]
			sum += w[i] * diff * diff
			total += w[i]
		}
		return sum / total
	}
	if err := gb.boost("GradientBoostingRegressor", X, n, residual, nil, loss); err != nil {
		return err
	}

	gb.state.SetDimensions(d, n)
	gb.state.SetFitted()
	log.GetLogger().Debug("fitted",
		log.ModelNameKey, "GradientBoostingRegressor",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, d,
		log.EstimatorsKey, len(gb.estimators_),
		log.LossKey, gb.trainScore_[len(gb.trainScore_)-1],
	)
	return nil
}

// Predict returns init + lr * sum of tree predictions.
func (gb *GradientBoostingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	raw, err := gb.raw("GradientBoostingRegressor", X)
	if err != nil {
		return nil, err
	}
	return mat.NewDense(len(raw), 1, raw), nil
}

// StagedPredict returns the prediction after each boosting round.
func (gb *GradientBoostingRegressor) StagedPredict(X mat.Matrix) ([]*mat.Dense, error) {
	var stages []*mat.Dense
	err := gb.stagedRaw("GradientBoostingRegressor", "StagedPredict", X, func(_ int, raw []float64) error {
		stages = append(stages, mat.NewDense(len(raw), 1, append([]float64(nil), raw...)))
		return nil
	})
	return stages, err
}

// Score returns R².
func (gb *GradientBoostingRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := gb.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// GradientBoostingClassifier boosts regression trees on the binary log loss.
type GradientBoostingClassifier struct {
	boostedTrees
	classes_ []int
}

// NewGradientBoostingClassifier creates a binary classifier with 100 depth-3 trees and
// learning rate 0.1.
func NewGradientBoostingClassifier(opts ...Option) *GradientBoostingClassifier {
	return &GradientBoostingClassifier{boostedTrees: boostedTrees{
		cfg:   newConfig(gbDefaults(), opts),
		state: model.NewStateManager(),
	}}
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// Fit starts from the log-odds of the positive class. Each tree is fitted to
// y - p and its leaves are set by one Newton step, sum(r) / sum(p(1-p)).
func (gb *GradientBoostingClassifier) Fit(X, y mat.Matrix) error {
	n, d, err := checkXY("GradientBoostingClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if err := gb.cfg.validate(); err != nil {
		return err
	}
	classes := sortedClasses(y)
	if len(classes) != 2 {
		return errors.NewValueError("GradientBoostingClassifier.Fit", "only binary targets are supported")
	}
	gb.state.Reset()

	target := make([]float64, n)
	pos := 0.0
	for i := 0; i < n; i++ {
		if int(math.Round(y.At(i, 0))) == classes[1] {
			target[i] = 1
			pos++
		}
	}
	p := pos / float64(n)
	gb.init_ = math.Log(p / (1 - p))

	residual := func(raw []float64) []float64 {
		r := make([]float64, n)
		for i := range r {
			r[i] = target[i] - sigmoid(raw[i])
		}
		return r
	}
	update := func(t *tree.DecisionTreeRegressor, _, resid, w []float64) error {
		leaves, err := t.Apply(X)
		if err != nil {
			return err
		}
		num := make(map[int]float64)
		den := make(map[int]float64)
		for i, leaf := range leaves {
			if w[i] == 0 {
				continue
			}
			prob := target[i] - resid[i]
			num[leaf] += w[i] * resid[i]
			den[leaf] += w[i] * prob * (1 - prob)
		}
		for leaf, s := range num {
			v := 0.0
			if math.Abs(den[leaf]) >= 1e-150 {
				v = s / den[leaf]
			}
			if err := t.SetLeafValue(leaf, v); err != nil {
				return err
			}
		}
		return nil
	}
	loss := func(raw, w []float64) float64 {
		var sum, total float64
		for i := range raw {
			// log(1+exp(-z)) for y=1 and log(1+exp(z)) for y=0
			z := raw[i]
			if target[i] == 0 {
				z = -z
			}
			sum += w[i] * log1pExpNeg(z)
			total += w[i]
		}
		return sum / total
	}
	if err := gb.boost("GradientBoostingClassifier", X, n, residual, update, loss); err != nil {
		return err
	}

	gb.classes_ = classes
	gb.state.SetDimensions(d, n)
	gb.state.SetFitted()
	log.GetLogger().Debug("fitted",
		log.ModelNameKey, "GradientBoostingClassifier",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, d,
		log.ClassesKey, 2,
		log.EstimatorsKey, len(gb.estimators_),
		log.LossKey, gb.trainScore_[len(gb.trainScore_)-1],
	)
	return nil
}

// log1pExpNeg returns log(1 + exp(-z)) without overflow.
func log1pExpNeg(z float64) float64 {
	if z > 0 {
		return math.Log1p(math.Exp(-z))
	}
	return -z + math.Log1p(math.Exp(z))
}

func (gb *GradientBoostingClassifier) probaFromRaw(raw []float64) *mat.Dense {
	out := mat.NewDense(len(raw), 2, nil)
	for i, z := range raw {
		p := sigmoid(z)
		out.Set(i, 0, 1-p)
		out.Set(i, 1, p)
	}
	return out
}

// DecisionFunction returns the raw log-odds of the positive class.
func (gb *GradientBoostingClassifier) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	raw, err := gb.raw("GradientBoostingClassifier", X)
	if err != nil {
		return nil, err
	}
	return mat.NewDense(len(raw), 1, raw), nil
}

// PredictProba returns [P(classes[0]), P(classes[1])] per row.
func (gb *GradientBoostingClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	raw, err := gb.raw("GradientBoostingClassifier", X)
	if err != nil {
		return nil, err
	}
	return gb.probaFromRaw(raw), nil
}

// Predict returns the more probable class.
func (gb *GradientBoostingClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := gb.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return argmaxRows(proba, gb.classes_), nil
}

// StagedPredict returns the predicted classes after each boosting round.
func (gb *GradientBoostingClassifier) StagedPredict(X mat.Matrix) ([]*mat.Dense, error) {
	var stages []*mat.Dense
	err := gb.stagedRaw("GradientBoostingClassifier", "StagedPredict", X, func(_ int, raw []float64) error {
		stages = append(stages, argmaxRows(gb.probaFromRaw(raw), gb.classes_))
		return nil
	})
	return stages, err
}

// Score returns the mean accuracy.
func (gb *GradientBoostingClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := gb.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyMatrix(y, pred)
}

// Classes returns the two class labels.
func (gb *GradientBoostingClassifier) Classes() []int {
	return append([]int(nil), gb.classes_...)
}
