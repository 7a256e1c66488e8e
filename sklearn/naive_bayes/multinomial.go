package naive_bayes

import (
	"fmt"
	"math"
	"sort"

	"github.com/YuminosukeSato/casebook/core/model"
	"github.com/YuminosukeSato/casebook/pkg/errors"
	"github.com/YuminosukeSato/casebook/pkg/log"
	"gonum.org/v1/gonum/mat"
)

var _ model.Classifier = (*MultinomialNB)(nil)

// minAlpha is the smoothing floor applied when alpha is too small to keep log
// probabilities finite.
const minAlpha = 1e-10

// MultinomialNB is naive Bayes for count or indicator features.
type MultinomialNB struct {
	state *model.StateManager

	alpha      float64
	fitPrior   bool
	classPrior []float64

	classes_        []int
	classCount_     []float64
	featureCount_   *mat.Dense // nClasses × nFeatures
	featureLogProb_ *mat.Dense
	classLogPrior_  []float64
	nSamplesSeen_   int
}

// MultinomialNBOption configures a MultinomialNB.
type MultinomialNBOption func(*MultinomialNB)

// WithAlpha sets the additive (Laplace/Lidstone) smoothing. Default 1.
func WithAlpha(alpha float64) MultinomialNBOption {
	return func(nb *MultinomialNB) {
		nb.alpha = alpha
	}
}

// WithFitPrior sets whether class priors are learned. When false, priors are uniform.
func WithFitPrior(fit bool) MultinomialNBOption {
	return func(nb *MultinomialNB) {
		nb.fitPrior = fit
	}
}

// WithClassPrior fixes the class priors, ordered as the sorted classes.
func WithClassPrior(prior []float64) MultinomialNBOption {
	return func(nb *MultinomialNB) {
		nb.classPrior = append([]float64(nil), prior...)
	}
}

// NewMultinomialNB creates a MultinomialNB with alpha=1 and learned priors.
func NewMultinomialNB(opts ...MultinomialNBOption) *MultinomialNB {
	nb := &MultinomialNB{
		state:    model.NewStateManager(),
		alpha:    1.0,
		fitPrior: true,
	}
	for _, opt := range opts {
		opt(nb)
	}
	return nb
}

// Fit discards any previous state and learns from X and y.
func (nb *MultinomialNB) Fit(X, y mat.Matrix) error {
	if _, _, err := checkXY("MultinomialNB.Fit", X, y); err != nil {
		return err
	}
	nb.state.Reset()
	nb.classes_ = nil
	return nb.PartialFit(X, y, uniqueLabels(y))
}

// PartialFit updates the counts with one batch. classes must list every label on the
// first call and may be nil afterwards.
func (nb *MultinomialNB) PartialFit(X, y mat.Matrix, classes []int) error {
	n, d, err := checkXY("MultinomialNB.PartialFit", X, y)
	if err != nil {
		return err
	}
	if nb.alpha < 0 {
		return errors.NewValidationError("alpha", "must be non-negative", nb.alpha)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			if X.At(i, j) < 0 {
				return errors.NewValueError("MultinomialNB.PartialFit", "negative values in X")
			}
		}
	}

	// Labels and shapes are checked against a local view first so that a rejected
	// batch leaves the counts untouched.
	first := nb.classes_ == nil
	known := nb.classes_
	if first {
		if len(classes) == 0 {
			return errors.NewValueError("MultinomialNB.PartialFit", "classes must be passed on the first call")
		}
		known = append([]int(nil), classes...)
		sort.Ints(known)
		if nb.classPrior != nil && len(nb.classPrior) != len(known) {
			return errors.NewDimensionError("MultinomialNB.PartialFit", len(known), len(nb.classPrior), 1)
		}
	} else if err := nb.state.CheckFeatures("MultinomialNB.PartialFit", X); err != nil {
		return err
	}

	idx := make([]int, n)
	for i := range idx {
		label := int(math.Round(y.At(i, 0)))
		c := sort.SearchInts(known, label)
		if c == len(known) || known[c] != label {
			return errors.NewValueError("MultinomialNB.PartialFit", fmt.Sprintf("label %d not in classes %v", label, known))
		}
		idx[i] = c
	}

	if first {
		nb.classes_ = known
		nb.classCount_ = make([]float64, len(known))
		nb.featureCount_ = mat.NewDense(len(known), d, nil)
		nb.nSamplesSeen_ = 0
	}
	for i, c := range idx {
		nb.classCount_[c]++
		for j := 0; j < d; j++ {
			nb.featureCount_.Set(c, j, nb.featureCount_.At(c, j)+X.At(i, j))
		}
	}
	nb.nSamplesSeen_ += n

	nb.updateLogProbs()
	nb.state.SetDimensions(d, nb.nSamplesSeen_)
	nb.state.SetFitted()

	log.GetLogger().Debug("fitted",
		log.ModelNameKey, "MultinomialNB",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, nb.nSamplesSeen_,
		log.FeaturesKey, d,
		log.ClassesKey, len(nb.classes_),
	)
	return nil
}

func (nb *MultinomialNB) updateLogProbs() {
	alpha := nb.alpha
	if alpha < minAlpha {
		errors.Warn(errors.NewValueError("MultinomialNB", fmt.Sprintf("alpha too small, setting alpha = %g", minAlpha)))
		alpha = minAlpha
	}

	k, d := nb.featureCount_.Dims()
	nb.featureLogProb_ = mat.NewDense(k, d, nil)
	for c := 0; c < k; c++ {
		total := alpha * float64(d)
		for j := 0; j < d; j++ {
			total += nb.featureCount_.At(c, j)
		}
		for j := 0; j < d; j++ {
			nb.featureLogProb_.Set(c, j, math.Log(nb.featureCount_.At(c, j)+alpha)-math.Log(total))
		}
	}

	nb.classLogPrior_ = make([]float64, k)
	switch {
	case nb.classPrior != nil:
		for c, p := range nb.classPrior {
			nb.classLogPrior_[c] = math.Log(p)
		}
	case nb.fitPrior:
		var total float64
		for _, cnt := range nb.classCount_ {
			total += cnt
		}
		for c, cnt := range nb.classCount_ {
			nb.classLogPrior_[c] = math.Log(cnt) - math.Log(total)
		}
	default:
		for c := range nb.classLogPrior_ {
			nb.classLogPrior_[c] = -math.Log(float64(k))
		}
	}
}

func (nb *MultinomialNB) jointLogLikelihood(op string, X mat.Matrix) (*mat.Dense, error) {
	if err := nb.state.RequireFitted("MultinomialNB", op); err != nil {
		return nil, err
	}
	if err := nb.state.CheckFeatures("MultinomialNB."+op, X); err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	jll := mat.NewDense(n, len(nb.classes_), nil)
	jll.Mul(X, nb.featureLogProb_.T())
	for i := 0; i < n; i++ {
		for c, lp := range nb.classLogPrior_ {
			jll.Set(i, c, jll.At(i, c)+lp)
		}
	}
	return jll, nil
}

// Predict returns the maximum a posteriori class for each row.
func (nb *MultinomialNB) Predict(X mat.Matrix) (mat.Matrix, error) {
	jll, err := nb.jointLogLikelihood("Predict", X)
	if err != nil {
		return nil, err
	}
	return argmaxLabels(jll, nb.classes_), nil
}

// PredictLogProba returns log posteriors, one column per class.
func (nb *MultinomialNB) PredictLogProba(X mat.Matrix) (mat.Matrix, error) {
	jll, err := nb.jointLogLikelihood("PredictLogProba", X)
	if err != nil {
		return nil, err
	}
	normalizeLog(jll)
	return jll, nil
}

// PredictProba returns posteriors, one column per class.
func (nb *MultinomialNB) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	jll, err := nb.jointLogLikelihood("PredictProba", X)
	if err != nil {
		return nil, err
	}
	normalizeLog(jll)
	return expMatrix(jll), nil
}

// Score returns the mean accuracy.
func (nb *MultinomialNB) Score(X, y mat.Matrix) (float64, error) {
	pred, err := nb.Predict(X)
	if err != nil {
		return 0, err
	}
	return accuracy(pred, y)
}

// Classes returns the sorted class labels.
func (nb *MultinomialNB) Classes() []int {
	return append([]int(nil), nb.classes_...)
}

// NSamplesSeen returns the number of rows consumed by Fit and PartialFit.
func (nb *MultinomialNB) NSamplesSeen() int {
	return nb.nSamplesSeen_
}

// FeatureLogProb returns log P(feature | class), nClasses × nFeatures.
func (nb *MultinomialNB) FeatureLogProb() *mat.Dense {
	if nb.featureLogProb_ == nil {
		return nil
	}
	return mat.DenseCopyOf(nb.featureLogProb_)
}

// ClassLogPrior returns log P(class).
func (nb *MultinomialNB) ClassLogPrior() []float64 {
	return append([]float64(nil), nb.classLogPrior_...)
}

// GetParams returns the hyperparameters.
func (nb *MultinomialNB) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"alpha":       nb.alpha,
		"fit_prior":   nb.fitPrior,
		"class_prior": nb.classPrior,
	}
}
