package tree

import (
	"fmt"
	"math"
	"sort"

	"github.com/YuminosukeSato/casebook/core/model"
	"github.com/YuminosukeSato/casebook/metrics"
	"github.com/YuminosukeSato/casebook/pkg/errors"
	"github.com/YuminosukeSato/casebook/pkg/log"
	"gonum.org/v1/gonum/mat"
)

var (
	_ model.Classifier     = (*DecisionTreeClassifier)(nil)
	_ model.WeightedFitter = (*DecisionTreeClassifier)(nil)
	_ model.ParamAccessor  = (*DecisionTreeClassifier)(nil)
)

// DecisionTreeClassifier is a CART classification tree.
type DecisionTreeClassifier struct {
	params
	state *model.StateManager

	tree_     *structure
	classes_  []int
	nClasses_ int
}

// NewDecisionTreeClassifier creates a classifier using the gini criterion.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		params: defaultParams("gini"),
		state:  model.NewStateManager(),
	}
	for _, opt := range opts {
		opt(&dt.params)
	}
	return dt
}

// Fit grows the tree with unit sample weights.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	return dt.FitWeighted(X, y, nil)
}

// FitWeighted grows the tree with per-row weights. Rows with zero weight are ignored.
func (dt *DecisionTreeClassifier) FitWeighted(X, y mat.Matrix, sampleWeight []float64) error {
	n, d, err := checkXY("DecisionTreeClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if err := dt.params.validate(false); err != nil {
		return err
	}
	weights, err := sampleWeights("DecisionTreeClassifier.Fit", n, sampleWeight)
	if err != nil {
		return err
	}
	dt.state.Reset()

	raw := make([]int, n)
	seen := make(map[int]struct{})
	for i := 0; i < n; i++ {
		raw[i] = int(math.Round(y.At(i, 0)))
		seen[raw[i]] = struct{}{}
	}
	classes := make([]int, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	labels := make([]int, n)
	for i, c := range raw {
		labels[i] = sort.SearchInts(classes, c)
	}

	crit, _ := classCriterionFor(dt.criterion)
	b := newBuilder(&dt.params, X, weights)
	b.labels = labels
	b.nClasses = len(classes)
	b.crit = crit
	t := b.build()
	t.prune(dt.ccpAlpha)

	dt.tree_ = t
	dt.classes_ = classes
	dt.nClasses_ = len(classes)
	dt.state.SetDimensions(d, n)
	dt.state.SetFitted()

	log.GetLogger().Debug("fitted",
		log.ModelNameKey, "DecisionTreeClassifier",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, d,
		log.ClassesKey, dt.nClasses_,
		"depth", t.depth(),
		"leaves", t.nLeaves(),
	)
	return nil
}

func (dt *DecisionTreeClassifier) leafDistributions(op string, X mat.Matrix) (*mat.Dense, error) {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", op); err != nil {
		return nil, err
	}
	if err := dt.state.CheckFeatures("DecisionTreeClassifier."+op, X); err != nil {
		return nil, err
	}
	n, d := X.Dims()
	out := mat.NewDense(n, dt.nClasses_, nil)
	row := make([]float64, d)
	for i := 0; i < n; i++ {
		mat.Row(row, i, X)
		leaf := &dt.tree_.nodes[dt.tree_.apply(row)]
		for k, c := range leaf.value {
			out.Set(i, k, c/leaf.weight)
		}
	}
	return out, nil
}

// PredictProba returns the class distribution of the leaf reached by each row.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	return dt.leafDistributions("PredictProba", X)
}

// Predict returns the majority class of the leaf reached by each row.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := dt.leafDistributions("Predict", X)
	if err != nil {
		return nil, err
	}
	n, k := proba.Dims()
	pred := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		best := 0
		for c := 1; c < k; c++ {
			if proba.At(i, c) > proba.At(i, best) {
				best = c
			}
		}
		pred.Set(i, 0, float64(dt.classes_[best]))
	}
	return pred, nil
}

// Score returns the mean accuracy.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyMatrix(y, pred)
}

// Classes returns the sorted class labels.
func (dt *DecisionTreeClassifier) Classes() []int {
	return append([]int(nil), dt.classes_...)
}

// GetDepth returns the depth of the fitted tree. A single leaf has depth 0.
func (dt *DecisionTreeClassifier) GetDepth() int {
	if dt.tree_ == nil {
		return 0
	}
	return dt.tree_.depth()
}

// GetNLeaves returns the number of leaves of the fitted tree.
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	if dt.tree_ == nil {
		return 0
	}
	return dt.tree_.nLeaves()
}

// GetFeatureImportances returns the normalized impurity decrease per feature.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	if dt.tree_ == nil {
		return nil
	}
	return dt.tree_.featureImportances()
}

// CostComplexityPruningPath grows an unpruned tree on X and y and returns the
// effective alphas at which its subtrees are pruned away.
func (dt *DecisionTreeClassifier) CostComplexityPruningPath(X, y mat.Matrix) (*PruningPath, error) {
	full := &DecisionTreeClassifier{params: dt.params, state: model.NewStateManager()}
	full.ccpAlpha = 0
	if err := full.Fit(X, y); err != nil {
		return nil, errors.Wrap(err, "cost complexity pruning path")
	}
	return full.tree_.pruningPath(), nil
}

// ExportText renders the fitted tree as indented rules.
func (dt *DecisionTreeClassifier) ExportText(featureNames []string) (string, error) {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", "ExportText"); err != nil {
		return "", err
	}
	return dt.tree_.exportText(featureNames, func(n *node) string {
		best := 0
		for k := range n.value {
			if n.value[k] > n.value[best] {
				best = k
			}
		}
		return fmt.Sprintf("class: %d", dt.classes_[best])
	}), nil
}

// GetParams returns the hyperparameters.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return dt.params.getParams()
}

// SetParams updates hyperparameters. The model must be refitted afterwards.
func (dt *DecisionTreeClassifier) SetParams(values map[string]interface{}) error {
	return dt.params.setParams(values)
}
