package ensemble

import (
	"fmt"
	"math"
	"sort"

	"github.com/YuminosukeSato/casebook/core/model"
	"github.com/YuminosukeSato/casebook/metrics"
	"github.com/YuminosukeSato/casebook/pkg/errors"
	"github.com/YuminosukeSato/casebook/pkg/log"
	"github.com/YuminosukeSato/casebook/sklearn/tree"
	"gonum.org/v1/gonum/mat"
)

var _ model.Classifier = (*AdaBoostClassifier)(nil)

// AdaBoostClassifier is multi-class AdaBoost (SAMME) over shallow decision trees.
type AdaBoostClassifier struct {
	cfg   config
	state *model.StateManager

	estimators_       []*tree.DecisionTreeClassifier
	estimatorWeights_ []float64
	estimatorErrors_  []float64
	classes_          []int
}

// NewAdaBoostClassifier creates an AdaBoostClassifier with 50 decision stumps.
func NewAdaBoostClassifier(opts ...Option) *AdaBoostClassifier {
	return &AdaBoostClassifier{
		cfg: newConfig(config{
			nEstimators:  50,
			learningRate: 1,
			maxSamples:   1,
			subsample:    1,
			maxDepth:     1,
		}, opts),
		state: model.NewStateManager(),
	}
}

// Fit runs the boosting rounds. It stops early when a round fits the weighted sample
// perfectly or when a round is no better than chance.
func (ab *AdaBoostClassifier) Fit(X, y mat.Matrix) error {
	n, d, err := checkXY("AdaBoostClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if err := ab.cfg.validate(); err != nil {
		return err
	}
	ab.state.Reset()

	classes := sortedClasses(y)
	k := float64(len(classes))
	if len(classes) < 2 {
		return errors.NewValueError("AdaBoostClassifier.Fit", "need samples of at least 2 classes")
	}

	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	seeds := memberSeeds(ab.cfg.randomState, ab.cfg.nEstimators)

	ab.estimators_ = nil
	ab.estimatorWeights_ = nil
	ab.estimatorErrors_ = nil

	for m := 0; m < ab.cfg.nEstimators; m++ {
		stump := tree.NewDecisionTreeClassifier(ab.cfg.treeOptions(d, seeds[m])...)
		if err := stump.FitWeighted(X, y, w); err != nil {
			return errors.Wrapf(err, "AdaBoostClassifier round %d", m)
		}
		pred, err := stump.Predict(X)
		if err != nil {
			return err
		}

		incorrect := make([]bool, n)
		var errSum, wSum float64
		for i := 0; i < n; i++ {
			wSum += w[i]
			if pred.At(i, 0) != y.At(i, 0) {
				incorrect[i] = true
				errSum += w[i]
			}
		}
		estErr := errSum / wSum

		if estErr <= 0 {
			ab.estimators_ = append(ab.estimators_, stump)
			ab.estimatorWeights_ = append(ab.estimatorWeights_, 1)
			ab.estimatorErrors_ = append(ab.estimatorErrors_, 0)
			break
		}
		if estErr >= 1-1/k {
			if m == 0 {
				return errors.NewModelError("AdaBoostClassifier.Fit",
					fmt.Sprintf("base estimator is worse than random (error %.4f)", estErr), nil)
			}
			break
		}

		alpha := ab.cfg.learningRate * (math.Log((1-estErr)/estErr) + math.Log(k-1))
		ab.estimators_ = append(ab.estimators_, stump)
		ab.estimatorWeights_ = append(ab.estimatorWeights_, alpha)
		ab.estimatorErrors_ = append(ab.estimatorErrors_, estErr)

		if m == ab.cfg.nEstimators-1 {
			break
		}
		var total float64
		for i := range w {
			if incorrect[i] && w[i] > 0 {
				w[i] *= math.Exp(alpha)
			}
			total += w[i]
		}
		for i := range w {
			w[i] /= total
		}
	}

	ab.classes_ = classes
	ab.state.SetDimensions(d, n)
	ab.state.SetFitted()

	log.GetLogger().Debug("fitted",
		log.ModelNameKey, "AdaBoostClassifier",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, d,
		log.ClassesKey, len(classes),
		log.EstimatorsKey, len(ab.estimators_),
	)
	return nil
}

// stagedDecision calls visit with the weighted vote after each round, normalized by
// the total weight so far.
func (ab *AdaBoostClassifier) stagedDecision(op string, X mat.Matrix, visit func(stage int, decision *mat.Dense) error) error {
	if err := ab.state.RequireFitted("AdaBoostClassifier", op); err != nil {
		return err
	}
	if err := ab.state.CheckFeatures("AdaBoostClassifier."+op, X); err != nil {
		return err
	}
	n, _ := X.Dims()
	votes := mat.NewDense(n, len(ab.classes_), nil)
	norm := 0.0
	for m, stump := range ab.estimators_ {
		pred, err := stump.Predict(X)
		if err != nil {
			return err
		}
		alpha := ab.estimatorWeights_[m]
		for i := 0; i < n; i++ {
			c := sort.SearchInts(ab.classes_, int(pred.At(i, 0)))
			votes.Set(i, c, votes.At(i, c)+alpha)
		}
		norm += alpha
		decision := mat.NewDense(n, len(ab.classes_), nil)
		decision.Scale(1/norm, votes)
		if err := visit(m, decision); err != nil {
			return err
		}
	}
	return nil
}

// DecisionFunction returns the normalized weighted vote for each class.
func (ab *AdaBoostClassifier) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	var last *mat.Dense
	err := ab.stagedDecision("DecisionFunction", X, func(_ int, d *mat.Dense) error {
		last = d
		return nil
	})
	return last, err
}

func softmaxRows(decision *mat.Dense, scale float64) *mat.Dense {
	n, k := decision.Dims()
	out := mat.NewDense(n, k, nil)
	row := make([]float64, k)
	for i := 0; i < n; i++ {
		for c := 0; c < k; c++ {
			row[c] = decision.At(i, c) * scale
		}
		lse := errors.LogSumExp(row)
		for c := 0; c < k; c++ {
			out.Set(i, c, math.Exp(row[c]-lse))
		}
	}
	return out
}

// PredictProba returns softmax(decision / (K-1)).
func (ab *AdaBoostClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	d, err := ab.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	return softmaxRows(d.(*mat.Dense), 1/float64(len(ab.classes_)-1)), nil
}

// Predict returns the class with the largest weighted vote.
func (ab *AdaBoostClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	d, err := ab.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	return argmaxRows(d, ab.classes_), nil
}

// Score returns the mean accuracy.
func (ab *AdaBoostClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := ab.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyMatrix(y, pred)
}

// StagedScore returns the accuracy of the ensemble truncated after each round.
func (ab *AdaBoostClassifier) StagedScore(X, y mat.Matrix) ([]float64, error) {
	scores := make([]float64, 0, len(ab.estimators_))
	err := ab.stagedDecision("StagedScore", X, func(_ int, d *mat.Dense) error {
		acc, err := metrics.AccuracyMatrix(y, argmaxRows(d, ab.classes_))
		if err != nil {
			return err
		}
		scores = append(scores, acc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return scores, nil
}

// Classes returns the sorted class labels.
func (ab *AdaBoostClassifier) Classes() []int {
	return append([]int(nil), ab.classes_...)
}

// EstimatorWeights returns the vote weight of each round.
func (ab *AdaBoostClassifier) EstimatorWeights() []float64 {
	return append([]float64(nil), ab.estimatorWeights_...)
}

// EstimatorErrors returns the weighted training error of each round.
func (ab *AdaBoostClassifier) EstimatorErrors() []float64 {
	return append([]float64(nil), ab.estimatorErrors_...)
}

// FeatureImportances returns the vote-weighted mean of the member importances.
func (ab *AdaBoostClassifier) FeatureImportances() []float64 {
	d, _ := ab.state.GetDimensions()
	out := make([]float64, d)
	total := 0.0
	for m, stump := range ab.estimators_ {
		for j, v := range stump.GetFeatureImportances() {
			out[j] += ab.estimatorWeights_[m] * v
		}
		total += ab.estimatorWeights_[m]
	}
	if total > 0 {
		for j := range out {
			out[j] /= total
		}
	}
	return out
}

// GetParams returns the hyperparameters.
func (ab *AdaBoostClassifier) GetParams() map[string]interface{} {
	return ab.cfg.params()
}
