package linear_model

import (
	"fmt"
	"math"
	"sort"

	"github.com/YuminosukeSato/casebook/core/model"
	"github.com/YuminosukeSato/casebook/metrics"
	"github.com/YuminosukeSato/casebook/pkg/errors"
	"github.com/YuminosukeSato/casebook/pkg/log"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

var (
	_ model.Classifier    = (*LogisticRegression)(nil)
	_ model.ParamAccessor = (*LogisticRegression)(nil)
)

// LogisticRegression is L2-regularized logistic regression fitted with L-BFGS.
// Binary problems learn one coefficient row; multiclass problems use either a
// multinomial (softmax) model or one-vs-rest.
type LogisticRegression struct {
	state *model.StateManager

	penalty      string  // "l2" or "none"
	C            float64 // inverse regularization strength
	fitIntercept bool
	maxIter      int
	tol          float64
	multiClass   string // "auto", "ovr" or "multinomial"

	// Learned parameters. coef_ has one row for binary problems and one row per
	// class otherwise.
	coef_      [][]float64
	intercept_ []float64
	classes_   []int
	nClasses_  int
	nIter_     []int
	// softmax_ records whether coef_ came from the multinomial solver.
	softmax_ bool
}

// LogisticRegressionOption is a functional option for LogisticRegression.
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a LogisticRegression with scikit-learn defaults.
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		penalty:      "l2",
		C:            1.0,
		fitIntercept: true,
		maxIter:      100,
		tol:          1e-4,
		multiClass:   "auto",
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRPenalty sets the regularization type.
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.penalty = penalty
	}
}

// WithLRC sets the inverse regularization strength.
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.C = c
	}
}

// WithLogisticFitIntercept sets whether to fit an intercept.
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.fitIntercept = fit
	}
}

// WithLRMaxIter sets the L-BFGS iteration cap.
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.maxIter = maxIter
	}
}

// WithLRTol sets the gradient norm at which L-BFGS stops.
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.tol = tol
	}
}

// WithLRMultiClass selects "auto", "ovr" or "multinomial".
func WithLRMultiClass(multiClass string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.multiClass = multiClass
	}
}

func (lr *LogisticRegression) validate() error {
	switch {
	case lr.penalty != "l2" && lr.penalty != "none":
		return errors.NewValidationError("penalty", "only 'l2' and 'none' are supported", lr.penalty)
	case lr.C <= 0:
		return errors.NewValidationError("C", "must be positive", lr.C)
	case lr.maxIter <= 0:
		return errors.NewValidationError("max_iter", "must be positive", lr.maxIter)
	case lr.multiClass != "auto" && lr.multiClass != "ovr" && lr.multiClass != "multinomial":
		return errors.NewValidationError("multi_class", "must be 'auto', 'ovr' or 'multinomial'", lr.multiClass)
	}
	return nil
}

// Fit trains the model. y holds integer class labels in its single column.
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	if err := lr.validate(); err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("LogisticRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if nSamples != yRows {
		return errors.NewDimensionError("LogisticRegression.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("LogisticRegression.Fit", 1, yCols, 1)
	}

	classes := uniqueLabels(y)
	if len(classes) < 2 {
		return errors.NewValueError("LogisticRegression.Fit",
			fmt.Sprintf("needs samples of at least 2 classes, got %d", len(classes)))
	}
	k := len(classes)

	Xd := mat.DenseCopyOf(X)
	labels := make([]int, nSamples)
	for i := range labels {
		labels[i] = sort.SearchInts(classes, int(math.Round(y.At(i, 0))))
	}

	// Learned state is committed only after every problem is solved, so a failed
	// refit leaves the previous fit usable.
	var (
		coef      [][]float64
		intercept []float64
		nIter     []int
		softmax   bool
	)
	switch {
	case k == 2:
		target := make([]float64, nSamples)
		for i, l := range labels {
			target[i] = float64(l)
		}
		w, b, iters := lr.fitBinary(Xd, target)
		coef = [][]float64{w}
		intercept = []float64{b}
		nIter = []int{iters}
	case lr.multiClass == "ovr":
		coef = make([][]float64, k)
		intercept = make([]float64, k)
		nIter = make([]int, k)
		for c := 0; c < k; c++ {
			target := make([]float64, nSamples)
			for i, l := range labels {
				if l == c {
					target[i] = 1
				}
			}
			coef[c], intercept[c], nIter[c] = lr.fitBinary(Xd, target)
		}
	default:
		var iters int
		coef, intercept, iters = lr.fitMultinomial(Xd, labels, k)
		nIter = []int{iters}
		softmax = true
	}

	lr.classes_ = classes
	lr.nClasses_ = k
	lr.coef_ = coef
	lr.intercept_ = intercept
	lr.nIter_ = nIter
	lr.softmax_ = softmax
	lr.state.SetDimensions(nFeatures, nSamples)
	lr.state.SetFitted()

	log.GetLogger().Debug("fitted",
		log.ModelNameKey, "LogisticRegression",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		log.ClassesKey, lr.nClasses_,
		log.IterationKey, lr.nIter_,
	)
	return nil
}

// uniqueLabels returns the sorted distinct integer labels in the first column of y.
func uniqueLabels(y mat.Matrix) []int {
	rows, _ := y.Dims()
	seen := make(map[int]struct{})
	for i := 0; i < rows; i++ {
		seen[int(math.Round(y.At(i, 0)))] = struct{}{}
	}
	classes := make([]int, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	return classes
}

func (lr *LogisticRegression) alpha() float64 {
	if lr.penalty == "none" {
		return 0
	}
	return 1 / lr.C
}

// minimize runs L-BFGS from zero and returns the best point found. A line search that
// stops making progress near the optimum is accepted; hitting maxIter warns.
func (lr *LogisticRegression) minimize(dim int, f func([]float64) float64, grad func(g, x []float64)) ([]float64, int) {
	settings := &optimize.Settings{
		GradientThreshold: lr.tol,
		MajorIterations:   lr.maxIter,
	}
	res, err := optimize.Minimize(optimize.Problem{Func: f, Grad: grad}, make([]float64, dim), settings, &optimize.LBFGS{})
	if res == nil {
		errors.Warn(errors.NewConvergenceWarning("lbfgs", 0, err.Error()))
		return make([]float64, dim), 0
	}
	if res.Status == optimize.IterationLimit {
		errors.Warn(errors.NewConvergenceWarning("lbfgs", res.MajorIterations, "increase max_iter or scale the data"))
	}
	return res.X, res.MajorIterations
}

// fitBinary minimizes sum(log(1+exp(z)) - t*z) + alpha/2 * ||w||² with z = Xw + b.
func (lr *LogisticRegression) fitBinary(X *mat.Dense, target []float64) ([]float64, float64, int) {
	n, d := X.Dims()
	alpha := lr.alpha()
	z := make([]float64, n)

	linear := func(x []float64) {
		for i := 0; i < n; i++ {
			s := 0.0
			if lr.fitIntercept {
				s = x[d]
			}
			row := X.RawRowView(i)
			for j, v := range row {
				s += v * x[j]
			}
			z[i] = s
		}
	}
	f := func(x []float64) float64 {
		linear(x)
		loss := 0.0
		for i := 0; i < n; i++ {
			loss += log1pExp(z[i]) - target[i]*z[i]
		}
		for j := 0; j < d; j++ {
			loss += 0.5 * alpha * x[j] * x[j]
		}
		return loss
	}
	grad := func(g, x []float64) {
		linear(x)
		for j := range g {
			g[j] = 0
		}
		for i := 0; i < n; i++ {
			r := sigmoid(z[i]) - target[i]
			row := X.RawRowView(i)
			for j, v := range row {
				g[j] += r * v
			}
			if lr.fitIntercept {
				g[d] += r
			}
		}
		for j := 0; j < d; j++ {
			g[j] += alpha * x[j]
		}
	}

	dim := d
	if lr.fitIntercept {
		dim++
	}
	x, iters := lr.minimize(dim, f, grad)
	b := 0.0
	if lr.fitIntercept {
		b = x[d]
	}
	return append([]float64(nil), x[:d]...), b, iters
}

// fitMultinomial minimizes the softmax cross-entropy with one weight row per class.
func (lr *LogisticRegression) fitMultinomial(X *mat.Dense, labels []int, k int) ([][]float64, []float64, int) {
	n, d := X.Dims()
	alpha := lr.alpha()
	stride := d
	if lr.fitIntercept {
		stride++
	}
	scores := make([]float64, k)

	classScores := func(x []float64, row []float64) {
		for c := 0; c < k; c++ {
			w := x[c*stride : (c+1)*stride]
			s := 0.0
			if lr.fitIntercept {
				s = w[d]
			}
			for j, v := range row {
				s += v * w[j]
			}
			scores[c] = s
		}
	}
	f := func(x []float64) float64 {
		loss := 0.0
		for i := 0; i < n; i++ {
			classScores(x, X.RawRowView(i))
			loss += errors.LogSumExp(scores) - scores[labels[i]]
		}
		for c := 0; c < k; c++ {
			for j := 0; j < d; j++ {
				w := x[c*stride+j]
				loss += 0.5 * alpha * w * w
			}
		}
		return loss
	}
	grad := func(g, x []float64) {
		for j := range g {
			g[j] = 0
		}
		for i := 0; i < n; i++ {
			row := X.RawRowView(i)
			classScores(x, row)
			lse := errors.LogSumExp(scores)
			for c := 0; c < k; c++ {
				r := math.Exp(scores[c] - lse)
				if c == labels[i] {
					r--
				}
				gc := g[c*stride : (c+1)*stride]
				for j, v := range row {
					gc[j] += r * v
				}
				if lr.fitIntercept {
					gc[d] += r
				}
			}
		}
		for c := 0; c < k; c++ {
			for j := 0; j < d; j++ {
				g[c*stride+j] += alpha * x[c*stride+j]
			}
		}
	}

	x, iters := lr.minimize(k*stride, f, grad)
	coef := make([][]float64, k)
	intercept := make([]float64, k)
	for c := 0; c < k; c++ {
		coef[c] = append([]float64(nil), x[c*stride:c*stride+d]...)
		if lr.fitIntercept {
			intercept[c] = x[c*stride+d]
		}
	}
	return coef, intercept, iters
}

// DecisionFunction returns the raw linear scores: one column for binary problems,
// one per class otherwise.
func (lr *LogisticRegression) DecisionFunction(X mat.Matrix) (*mat.Dense, error) {
	if err := lr.state.RequireFitted("LogisticRegression", "DecisionFunction"); err != nil {
		return nil, err
	}
	if err := lr.state.CheckFeatures("LogisticRegression.DecisionFunction", X); err != nil {
		return nil, err
	}

	n, d := X.Dims()
	out := mat.NewDense(n, len(lr.coef_), nil)
	for i := 0; i < n; i++ {
		for c, w := range lr.coef_ {
			s := lr.intercept_[c]
			for j := 0; j < d; j++ {
				s += X.At(i, j) * w[j]
			}
			out.Set(i, c, s)
		}
	}
	return out, nil
}

// PredictProba returns one column per class in Classes order. One-vs-rest scores are
// normalized to sum to one.
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	scores, err := lr.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	n, _ := scores.Dims()
	probas := mat.NewDense(n, lr.nClasses_, nil)

	row := make([]float64, lr.nClasses_)
	for i := 0; i < n; i++ {
		switch {
		case lr.nClasses_ == 2:
			p := sigmoid(scores.At(i, 0))
			row[0], row[1] = 1-p, p
		case !lr.softmax_:
			sum := 0.0
			for c := range row {
				row[c] = sigmoid(scores.At(i, c))
				sum += row[c]
			}
			for c := range row {
				row[c] /= sum
			}
		default:
			mat.Row(row, i, scores)
			lse := errors.LogSumExp(row)
			for c := range row {
				row[c] = math.Exp(row[c] - lse)
			}
		}
		probas.SetRow(i, row)
	}
	return probas, nil
}

// Predict returns the most probable class label for each row.
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	probas, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, _ := probas.Dims()
	pred := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		best := 0
		for c := 1; c < lr.nClasses_; c++ {
			if probas.At(i, c) > probas.At(i, best) {
				best = c
			}
		}
		pred.Set(i, 0, float64(lr.classes_[best]))
	}
	return pred, nil
}

// Score returns the mean accuracy on X and y.
func (lr *LogisticRegression) Score(X, y mat.Matrix) (float64, error) {
	pred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyMatrix(y, pred)
}

// Classes returns the sorted class labels seen in Fit.
func (lr *LogisticRegression) Classes() []int {
	return append([]int(nil), lr.classes_...)
}

// Coef returns a copy of the coefficient rows.
func (lr *LogisticRegression) Coef() [][]float64 {
	out := make([][]float64, len(lr.coef_))
	for i, row := range lr.coef_ {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// Intercept returns a copy of the intercepts.
func (lr *LogisticRegression) Intercept() []float64 {
	return append([]float64(nil), lr.intercept_...)
}

// NIter returns the L-BFGS iterations used per fitted problem.
func (lr *LogisticRegression) NIter() []int {
	return append([]int(nil), lr.nIter_...)
}

// GetParams returns the model hyperparameters.
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.C,
		"fit_intercept": lr.fitIntercept,
		"max_iter":      lr.maxIter,
		"tol":           lr.tol,
		"multi_class":   lr.multiClass,
	}
}

// SetParams sets hyperparameters by name. Values are validated on the next Fit. A
// wrongly typed or unknown key leaves the model unchanged.
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	next := *lr
	for key, value := range params {
		switch key {
		case "penalty", "multi_class":
			v, ok := value.(string)
			if !ok {
				return errors.NewValidationError(key, "must be a string", value)
			}
			if key == "penalty" {
				next.penalty = v
			} else {
				next.multiClass = v
			}
		case "C", "tol":
			v, ok := value.(float64)
			if !ok {
				return errors.NewValidationError(key, "must be a float64", value)
			}
			if key == "C" {
				next.C = v
			} else {
				next.tol = v
			}
		case "fit_intercept":
			v, ok := value.(bool)
			if !ok {
				return errors.NewValidationError(key, "must be a bool", value)
			}
			next.fitIntercept = v
		case "max_iter":
			v, ok := value.(int)
			if !ok {
				return errors.NewValidationError(key, "must be an int", value)
			}
			next.maxIter = v
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	*lr = next
	return nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// log1pExp computes log(1 + exp(z)) without overflow.
func log1pExp(z float64) float64 {
	if z > 0 {
		return z + math.Log1p(math.Exp(-z))
	}
	return math.Log1p(math.Exp(z))
}
