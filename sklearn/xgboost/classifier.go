package xgboost

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/casebook/metrics"
	"github.com/YuminosukeSato/casebook/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// probabilities are clipped before taking logs
const probEps = 1e-15

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

type logistic struct{}

func (logistic) name() string       { return "binary:logistic" }
func (logistic) metricName() string { return "logloss" }

func (logistic) baseMargin(y []float64, baseScore float64) float64 {
	p := baseScore
	if math.IsNaN(p) {
		p = 0
		for _, v := range y {
			p += v
		}
		p /= float64(len(y))
	}
	p = errors.ClipValue(p, probEps, 1-probEps)
	return math.Log(p / (1 - p))
}

func (logistic) gradHess(y, margin, grad, hess []float64) {
	for i := range y {
		p := sigmoid(margin[i])
		grad[i] = p - y[i]
		hess[i] = math.Max(p*(1-p), 1e-16)
	}
}

func (logistic) metric(y, margin []float64) float64 {
	sum := 0.0
	for i := range y {
		p := errors.ClipValue(sigmoid(margin[i]), probEps, 1-probEps)
		sum -= y[i]*math.Log(p) + (1-y[i])*math.Log(1-p)
	}
	return sum / float64(len(y))
}

// XGBClassifier is a gradient boosted tree classifier with the binary:logistic
// objective.
type XGBClassifier struct {
	booster
	classes_ []int
}

// NewXGBClassifier creates a binary classifier with the XGBoost defaults.
func NewXGBClassifier(opts ...Option) *XGBClassifier {
	return &XGBClassifier{booster: newBooster("XGBClassifier", logistic{}, opts)}
}

// encode maps the two labels of y to 0 and 1.
func encode(op string, y []float64) ([]float64, []int, error) {
	seen := make(map[int]struct{})
	for _, v := range y {
		seen[int(math.Round(v))] = struct{}{}
	}
	classes := make([]int, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	if len(classes) != 2 {
		return nil, nil, errors.NewValueError(op, "binary:logistic needs exactly 2 classes")
	}
	out := make([]float64, len(y))
	for i, v := range y {
		if int(math.Round(v)) == classes[1] {
			out[i] = 1
		}
	}
	return out, classes, nil
}

// Fit trains the booster on a binary target.
func (c *XGBClassifier) Fit(X, y mat.Matrix) error {
	target, err := checkXY("XGBClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	encoded, classes, err := encode("XGBClassifier.Fit", target)
	if err != nil {
		return err
	}
	if err := c.fit(X, encoded, nil, nil); err != nil {
		return err
	}
	c.classes_ = classes
	return nil
}

// FitWithEval trains on (X, y) while tracking log loss on (XEval, yEval).
func (c *XGBClassifier) FitWithEval(X, y, XEval, yEval mat.Matrix) error {
	target, err := checkXY("XGBClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	encoded, classes, err := encode("XGBClassifier.Fit", target)
	if err != nil {
		return err
	}
	evalTarget, err := checkEval("XGBClassifier.FitWithEval", X, XEval, yEval)
	if err != nil {
		return err
	}
	evalEncoded := make([]float64, len(evalTarget))
	for i, v := range evalTarget {
		if int(math.Round(v)) == classes[1] {
			evalEncoded[i] = 1
		}
	}
	if err := c.fit(X, encoded, XEval, evalEncoded); err != nil {
		return err
	}
	c.classes_ = classes
	return nil
}

// PredictProba returns [P(classes[0]), P(classes[1])] per row.
func (c *XGBClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	m, err := c.margins("PredictProba", X)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(m), 2, nil)
	for i, z := range m {
		p := sigmoid(z)
		out.Set(i, 0, 1-p)
		out.Set(i, 1, p)
	}
	return out, nil
}

// Predict thresholds the positive class probability at 0.5.
func (c *XGBClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	m, err := c.margins("Predict", X)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(m), 1, nil)
	for i, z := range m {
		label := c.classes_[0]
		if z > 0 {
			label = c.classes_[1]
		}
		out.Set(i, 0, float64(label))
	}
	return out, nil
}

// Score returns the mean accuracy.
func (c *XGBClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := c.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyMatrix(y, pred)
}

// Classes returns the two class labels.
func (c *XGBClassifier) Classes() []int {
	return append([]int(nil), c.classes_...)
}
