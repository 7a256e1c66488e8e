// Package tree implements CART decision trees for classification and regression
// with minimal cost-complexity pruning.
package tree

import (
	"fmt"
	"math"
	"strings"

	"github.com/YuminosukeSato/casebook/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

type params struct {
	criterion       string
	maxDepth        int // 0 grows until leaves are pure
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int // 0 considers every feature
	randomState     uint64
	ccpAlpha        float64
}

func defaultParams(criterion string) params {
	return params{
		criterion:       criterion,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}
}

// Option configures a decision tree.
type Option func(*params)

// WithCriterion sets the split quality measure: "gini" or "entropy" for classifiers,
// "squared_error" for regressors.
func WithCriterion(criterion string) Option {
	return func(p *params) { p.criterion = criterion }
}

// WithMaxDepth limits the tree depth. 0 means unlimited.
func WithMaxDepth(depth int) Option {
	return func(p *params) { p.maxDepth = depth }
}

// WithMinSamplesSplit sets the minimum number of rows required to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(p *params) { p.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of rows in each leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(p *params) { p.minSamplesLeaf = n }
}

// WithMaxFeatures sets how many features are drawn at each split. 0 means all.
func WithMaxFeatures(n int) Option {
	return func(p *params) { p.maxFeatures = n }
}

// WithRandomState seeds the feature sampling.
func WithRandomState(seed uint64) Option {
	return func(p *params) { p.randomState = seed }
}

// WithCCPAlpha sets the complexity parameter for minimal cost-complexity pruning.
func WithCCPAlpha(alpha float64) Option {
	return func(p *params) { p.ccpAlpha = alpha }
}

func (p *params) validate(regression bool) error {
	if regression {
		if p.criterion != "squared_error" {
			return errors.NewValidationError("criterion", "must be 'squared_error'", p.criterion)
		}
	} else if _, ok := classCriterionFor(p.criterion); !ok {
		return errors.NewValidationError("criterion", "must be 'gini' or 'entropy'", p.criterion)
	}
	if p.maxDepth < 0 {
		return errors.NewValidationError("max_depth", "must be >= 0", p.maxDepth)
	}
	if p.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be >= 2", p.minSamplesSplit)
	}
	if p.minSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", p.minSamplesLeaf)
	}
	if p.maxFeatures < 0 {
		return errors.NewValidationError("max_features", "must be >= 0", p.maxFeatures)
	}
	if p.ccpAlpha < 0 || math.IsNaN(p.ccpAlpha) {
		return errors.NewValidationError("ccp_alpha", "must be non-negative", p.ccpAlpha)
	}
	return nil
}

func (p *params) getParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         p.criterion,
		"max_depth":         p.maxDepth,
		"min_samples_split": p.minSamplesSplit,
		"min_samples_leaf":  p.minSamplesLeaf,
		"max_features":      p.maxFeatures,
		"random_state":      p.randomState,
		"ccp_alpha":         p.ccpAlpha,
	}
}

// setParams applies values only when every key is known and well typed.
func (p *params) setParams(values map[string]interface{}) error {
	next := *p
	for key, value := range values {
		switch key {
		case "criterion":
			v, ok := value.(string)
			if !ok {
				return errors.NewValidationError(key, "must be a string", value)
			}
			next.criterion = v
		case "max_depth", "min_samples_split", "min_samples_leaf", "max_features":
			v, ok := value.(int)
			if !ok {
				return errors.NewValidationError(key, "must be an int", value)
			}
			switch key {
			case "max_depth":
				next.maxDepth = v
			case "min_samples_split":
				next.minSamplesSplit = v
			case "min_samples_leaf":
				next.minSamplesLeaf = v
			default:
				next.maxFeatures = v
			}
		case "random_state":
			switch v := value.(type) {
			case uint64:
				next.randomState = v
			case int:
				next.randomState = uint64(v)
			default:
				return errors.NewValidationError(key, "must be an integer", value)
			}
		case "ccp_alpha":
			v, ok := value.(float64)
			if !ok {
				return errors.NewValidationError(key, "must be a float64", value)
			}
			next.ccpAlpha = v
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	*p = next
	return nil
}

// sampleWeights validates caller weights or returns unit weights.
func sampleWeights(op string, n int, w []float64) ([]float64, error) {
	if w == nil {
		out := make([]float64, n)
		for i := range out {
			out[i] = 1
		}
		return out, nil
	}
	if len(w) != n {
		return nil, errors.NewDimensionError(op, n, len(w), 0)
	}
	positive := false
	for _, v := range w {
		if v < 0 || math.IsNaN(v) {
			return nil, errors.NewValueError(op, "sample weights must be non-negative")
		}
		if v > 0 {
			positive = true
		}
	}
	if !positive {
		return nil, errors.NewValueError(op, "sample weights sum to zero")
	}
	return append([]float64(nil), w...), nil
}

func checkXY(op string, X, y mat.Matrix) (int, int, error) {
	n, d := X.Dims()
	if n == 0 || d == 0 {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if yRows != n {
		return 0, 0, errors.NewDimensionError(op, n, yRows, 0)
	}
	if yCols != 1 {
		return 0, 0, errors.NewDimensionError(op, 1, yCols, 1)
	}
	return n, d, nil
}

// exportText renders the reachable tree in the indented style of sklearn's export_text.
func (s *structure) exportText(featureNames []string, leaf func(n *node) string) string {
	var b strings.Builder
	name := func(f int) string {
		if f < len(featureNames) {
			return featureNames[f]
		}
		return fmt.Sprintf("feature_%d", f)
	}
	var rec func(i, depth int)
	rec = func(i, depth int) {
		n := &s.nodes[i]
		indent := strings.Repeat("|   ", depth) + "|--- "
		if n.isLeaf() {
			b.WriteString(indent + leaf(n) + "\n")
			return
		}
		fmt.Fprintf(&b, "%s%s <= %.2f\n", indent, name(n.feature), n.threshold)
		rec(n.left, depth+1)
		fmt.Fprintf(&b, "%s%s >  %.2f\n", indent, name(n.feature), n.threshold)
		rec(n.right, depth+1)
	}
	rec(0, 0)
	return b.String()
}
