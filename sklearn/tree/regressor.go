package tree

import (
	"fmt"

	"github.com/YuminosukeSato/casebook/core/model"
	"github.com/YuminosukeSato/casebook/metrics"
	"github.com/YuminosukeSato/casebook/pkg/errors"
	"github.com/YuminosukeSato/casebook/pkg/log"
	"gonum.org/v1/gonum/mat"
)

var (
	_ model.Regressor      = (*DecisionTreeRegressor)(nil)
	_ model.WeightedFitter = (*DecisionTreeRegressor)(nil)
	_ model.ParamAccessor  = (*DecisionTreeRegressor)(nil)
)

// DecisionTreeRegressor is a CART regression tree minimizing squared error.
type DecisionTreeRegressor struct {
	params
	state *model.StateManager

	tree_ *structure
}

// NewDecisionTreeRegressor creates a regressor using the squared_error criterion.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	dt := &DecisionTreeRegressor{
		params: defaultParams("squared_error"),
		state:  model.NewStateManager(),
	}
	for _, opt := range opts {
		opt(&dt.params)
	}
	return dt
}

// Fit grows the tree with unit sample weights.
func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	return dt.FitWeighted(X, y, nil)
}

// FitWeighted grows the tree with per-row weights. Rows with zero weight are ignored.
func (dt *DecisionTreeRegressor) FitWeighted(X, y mat.Matrix, sampleWeight []float64) error {
	n, d, err := checkXY("DecisionTreeRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if err := dt.params.validate(true); err != nil {
		return err
	}
	weights, err := sampleWeights("DecisionTreeRegressor.Fit", n, sampleWeight)
	if err != nil {
		return err
	}
	dt.state.Reset()

	target := make([]float64, n)
	mat.Col(target, 0, y)

	b := newBuilder(&dt.params, X, weights)
	b.target = target
	t := b.build()
	t.prune(dt.ccpAlpha)

	dt.tree_ = t
	dt.state.SetDimensions(d, n)
	dt.state.SetFitted()

	log.GetLogger().Debug("fitted",
		log.ModelNameKey, "DecisionTreeRegressor",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, d,
		"depth", t.depth(),
		"leaves", t.nLeaves(),
	)
	return nil
}

// Apply returns the index of the leaf reached by each row.
func (dt *DecisionTreeRegressor) Apply(X mat.Matrix) ([]int, error) {
	if err := dt.state.RequireFitted("DecisionTreeRegressor", "Apply"); err != nil {
		return nil, err
	}
	if err := dt.state.CheckFeatures("DecisionTreeRegressor.Apply", X); err != nil {
		return nil, err
	}
	n, d := X.Dims()
	leaves := make([]int, n)
	row := make([]float64, d)
	for i := 0; i < n; i++ {
		mat.Row(row, i, X)
		leaves[i] = dt.tree_.apply(row)
	}
	return leaves, nil
}

// SetLeafValue overwrites the prediction stored in a leaf returned by Apply.
// Boosting uses it for line-search leaf updates.
func (dt *DecisionTreeRegressor) SetLeafValue(leaf int, value float64) error {
	if err := dt.state.RequireFitted("DecisionTreeRegressor", "SetLeafValue"); err != nil {
		return err
	}
	if leaf < 0 || leaf >= len(dt.tree_.nodes) || !dt.tree_.nodes[leaf].isLeaf() {
		return errors.NewValueError("DecisionTreeRegressor.SetLeafValue", fmt.Sprintf("node %d is not a leaf", leaf))
	}
	dt.tree_.nodes[leaf].value = []float64{value}
	return nil
}

// Predict returns the mean target of the leaf reached by each row.
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	leaves, err := dt.Apply(X)
	if err != nil {
		return nil, err
	}
	pred := mat.NewDense(len(leaves), 1, nil)
	for i, leaf := range leaves {
		pred.Set(i, 0, dt.tree_.nodes[leaf].value[0])
	}
	return pred, nil
}

// Score returns the coefficient of determination R².
func (dt *DecisionTreeRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// GetDepth returns the depth of the fitted tree.
func (dt *DecisionTreeRegressor) GetDepth() int {
	if dt.tree_ == nil {
		return 0
	}
	return dt.tree_.depth()
}

// GetNLeaves returns the number of leaves of the fitted tree.
func (dt *DecisionTreeRegressor) GetNLeaves() int {
	if dt.tree_ == nil {
		return 0
	}
	return dt.tree_.nLeaves()
}

// GetFeatureImportances returns the normalized variance reduction per feature.
func (dt *DecisionTreeRegressor) GetFeatureImportances() []float64 {
	if dt.tree_ == nil {
		return nil
	}
	return dt.tree_.featureImportances()
}

// CostComplexityPruningPath grows an unpruned tree and returns its pruning path.
func (dt *DecisionTreeRegressor) CostComplexityPruningPath(X, y mat.Matrix) (*PruningPath, error) {
	full := &DecisionTreeRegressor{params: dt.params, state: model.NewStateManager()}
	full.ccpAlpha = 0
	if err := full.Fit(X, y); err != nil {
		return nil, errors.Wrap(err, "cost complexity pruning path")
	}
	return full.tree_.pruningPath(), nil
}

// ExportText renders the fitted tree as indented rules.
func (dt *DecisionTreeRegressor) ExportText(featureNames []string) (string, error) {
	if err := dt.state.RequireFitted("DecisionTreeRegressor", "ExportText"); err != nil {
		return "", err
	}
	return dt.tree_.exportText(featureNames, func(n *node) string {
		return fmt.Sprintf("value: [%.2f]", n.value[0])
	}), nil
}

// GetParams returns the hyperparameters.
func (dt *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return dt.params.getParams()
}

// SetParams updates hyperparameters. The model must be refitted afterwards.
func (dt *DecisionTreeRegressor) SetParams(values map[string]interface{}) error {
	return dt.params.setParams(values)
}
