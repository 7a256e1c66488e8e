package naive_bayes

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/casebook/core/model"
	"github.com/YuminosukeSato/casebook/pkg/errors"
	"github.com/YuminosukeSato/casebook/pkg/log"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var _ model.Classifier = (*GaussianNB)(nil)

// GaussianNB models each feature as a per-class normal distribution.
type GaussianNB struct {
	state *model.StateManager

	varSmoothing float64
	priors       []float64

	classes_    []int
	classPrior_ []float64
	theta_      *mat.Dense // nClasses × nFeatures means
	var_        *mat.Dense // nClasses × nFeatures variances
	epsilon_    float64
}

// GaussianNBOption configures a GaussianNB.
type GaussianNBOption func(*GaussianNB)

// WithVarSmoothing sets the share of the largest feature variance added to every
// variance. Default 1e-9.
func WithVarSmoothing(v float64) GaussianNBOption {
	return func(nb *GaussianNB) {
		nb.varSmoothing = v
	}
}

// WithPriors fixes the class priors, ordered as the sorted classes.
func WithPriors(priors []float64) GaussianNBOption {
	return func(nb *GaussianNB) {
		nb.priors = append([]float64(nil), priors...)
	}
}

// NewGaussianNB creates a GaussianNB.
func NewGaussianNB(opts ...GaussianNBOption) *GaussianNB {
	nb := &GaussianNB{
		state:        model.NewStateManager(),
		varSmoothing: 1e-9,
	}
	for _, opt := range opts {
		opt(nb)
	}
	return nb
}

// Fit estimates the per-class means, variances and priors.
func (nb *GaussianNB) Fit(X, y mat.Matrix) error {
	n, d, err := checkXY("GaussianNB.Fit", X, y)
	if err != nil {
		return err
	}
	if nb.varSmoothing < 0 {
		return errors.NewValidationError("var_smoothing", "must be non-negative", nb.varSmoothing)
	}
	nb.state.Reset()

	classes := uniqueLabels(y)
	k := len(classes)
	if nb.priors != nil {
		if len(nb.priors) != k {
			return errors.NewDimensionError("GaussianNB.Fit", k, len(nb.priors), 1)
		}
		var sum float64
		for _, p := range nb.priors {
			if p < 0 {
				return errors.NewValidationError("priors", "must be non-negative", nb.priors)
			}
			sum += p
		}
		if math.Abs(sum-1) > 1e-8 {
			return errors.NewValidationError("priors", "must sum to 1", sum)
		}
	}

	col := make([]float64, n)
	maxVar := 0.0
	for j := 0; j < d; j++ {
		mat.Col(col, j, X)
		if _, v := stat.PopMeanVariance(col, nil); v > maxVar {
			maxVar = v
		}
	}
	nb.epsilon_ = nb.varSmoothing * maxVar

	rowsByClass := make([][]int, k)
	for i := 0; i < n; i++ {
		c := sort.SearchInts(classes, int(math.Round(y.At(i, 0))))
		rowsByClass[c] = append(rowsByClass[c], i)
	}

	nb.theta_ = mat.NewDense(k, d, nil)
	nb.var_ = mat.NewDense(k, d, nil)
	for c, rows := range rowsByClass {
		vals := make([]float64, len(rows))
		for j := 0; j < d; j++ {
			for r, i := range rows {
				vals[r] = X.At(i, j)
			}
			m, v := stat.PopMeanVariance(vals, nil)
			nb.theta_.Set(c, j, m)
			nb.var_.Set(c, j, v+nb.epsilon_)
		}
	}

	nb.classPrior_ = make([]float64, k)
	if nb.priors != nil {
		copy(nb.classPrior_, nb.priors)
	} else {
		for c, rows := range rowsByClass {
			nb.classPrior_[c] = float64(len(rows)) / float64(n)
		}
	}
	nb.classes_ = classes

	nb.state.SetDimensions(d, n)
	nb.state.SetFitted()
	log.GetLogger().Debug("fitted",
		log.ModelNameKey, "GaussianNB",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, d,
		log.ClassesKey, k,
	)
	return nil
}

func (nb *GaussianNB) jointLogLikelihood(op string, X mat.Matrix) (*mat.Dense, error) {
	if err := nb.state.RequireFitted("GaussianNB", op); err != nil {
		return nil, err
	}
	if err := nb.state.CheckFeatures("GaussianNB."+op, X); err != nil {
		return nil, err
	}
	n, d := X.Dims()
	k := len(nb.classes_)
	jll := mat.NewDense(n, k, nil)
	for c := 0; c < k; c++ {
		norm := 0.0
		for j := 0; j < d; j++ {
			norm += math.Log(2 * math.Pi * nb.var_.At(c, j))
		}
		base := math.Log(nb.classPrior_[c]) - 0.5*norm
		for i := 0; i < n; i++ {
			sq := 0.0
			for j := 0; j < d; j++ {
				diff := X.At(i, j) - nb.theta_.At(c, j)
				sq += diff * diff / nb.var_.At(c, j)
			}
			jll.Set(i, c, base-0.5*sq)
		}
	}
	return jll, nil
}

// Predict returns the maximum a posteriori class for each row.
func (nb *GaussianNB) Predict(X mat.Matrix) (mat.Matrix, error) {
	jll, err := nb.jointLogLikelihood("Predict", X)
	if err != nil {
		return nil, err
	}
	return argmaxLabels(jll, nb.classes_), nil
}

// PredictLogProba returns log posteriors, one column per class.
func (nb *GaussianNB) PredictLogProba(X mat.Matrix) (mat.Matrix, error) {
	jll, err := nb.jointLogLikelihood("PredictLogProba", X)
	if err != nil {
		return nil, err
	}
	normalizeLog(jll)
	return jll, nil
}

// PredictProba returns posteriors, one column per class.
func (nb *GaussianNB) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	jll, err := nb.jointLogLikelihood("PredictProba", X)
	if err != nil {
		return nil, err
	}
	normalizeLog(jll)
	return expMatrix(jll), nil
}

// Score returns the mean accuracy.
func (nb *GaussianNB) Score(X, y mat.Matrix) (float64, error) {
	pred, err := nb.Predict(X)
	if err != nil {
		return 0, err
	}
	return accuracy(pred, y)
}

// Classes returns the sorted class labels.
func (nb *GaussianNB) Classes() []int {
	return append([]int(nil), nb.classes_...)
}

// Theta returns the per-class feature means.
func (nb *GaussianNB) Theta() *mat.Dense {
	if nb.theta_ == nil {
		return nil
	}
	return mat.DenseCopyOf(nb.theta_)
}

// Var returns the smoothed per-class feature variances.
func (nb *GaussianNB) Var() *mat.Dense {
	if nb.var_ == nil {
		return nil
	}
	return mat.DenseCopyOf(nb.var_)
}

// ClassPrior returns the class priors used for prediction.
func (nb *GaussianNB) ClassPrior() []float64 {
	return append([]float64(nil), nb.classPrior_...)
}

// GetParams returns the hyperparameters.
func (nb *GaussianNB) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"var_smoothing": nb.varSmoothing,
		"priors":        nb.priors,
	}
}
