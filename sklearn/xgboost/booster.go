package xgboost

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/casebook/core/model"
	"github.com/YuminosukeSato/casebook/pkg/errors"
	"github.com/YuminosukeSato/casebook/pkg/log"
	"gonum.org/v1/gonum/mat"
)

var (
	_ model.Classifier = (*XGBClassifier)(nil)
	_ model.Regressor  = (*XGBRegressor)(nil)
)

// objective supplies the first and second derivatives of a loss with respect to the
// raw margin.
type objective interface {
	name() string
	metricName() string
	// baseMargin converts base_score, or the target when base_score is NaN, to a margin.
	baseMargin(y []float64, baseScore float64) float64
	gradHess(y, margin, grad, hess []float64)
	metric(y, margin []float64) float64
}

// EvalResult records the evaluation metric after every boosting round.
type EvalResult struct {
	Metric     string
	Train      []float64
	Validation []float64
}

type booster struct {
	Params
	modelName string
	obj       objective
	state     *model.StateManager

	baseMargin_    float64
	trees_         []*regTree
	evals_         EvalResult
	bestIteration_ int
}

func newBooster(name string, obj objective, opts []Option) booster {
	p := DefaultParams()
	for _, opt := range opts {
		opt(&p)
	}
	return booster{Params: p, modelName: name, obj: obj, state: model.NewStateManager()}
}

func columnsOf(X mat.Matrix) [][]float64 {
	n, d := X.Dims()
	cols := make([][]float64, d)
	for j := range cols {
		cols[j] = make([]float64, n)
		mat.Col(cols[j], j, X)
	}
	return cols
}

func checkXY(op string, X, y mat.Matrix) ([]float64, error) {
	n, d := X.Dims()
	if n == 0 || d == 0 {
		return nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if yRows != n {
		return nil, errors.NewDimensionError(op, n, yRows, 0)
	}
	if yCols != 1 {
		return nil, errors.NewDimensionError(op, 1, yCols, 1)
	}
	target := make([]float64, n)
	mat.Col(target, 0, y)
	return target, nil
}

// checkEval validates an evaluation set against the training matrix X.
func checkEval(op string, X, XEval, yEval mat.Matrix) ([]float64, error) {
	_, d := X.Dims()
	if _, dEval := XEval.Dims(); dEval != d {
		return nil, errors.NewDimensionError(op, d, dEval, 1)
	}
	return checkXY(op, XEval, yEval)
}

// fit trains on (X, y). When Xeval is non-nil its metric is recorded each round and
// drives early stopping.
func (b *booster) fit(X mat.Matrix, y []float64, Xeval mat.Matrix, yEval []float64) error {
	if err := b.Params.Validate(); err != nil {
		return err
	}
	n, d := X.Dims()
	if Xeval != nil {
		if _, dEval := Xeval.Dims(); dEval != d {
			return errors.NewDimensionError(b.modelName+".FitWithEval", d, dEval, 1)
		}
	}
	b.state.Reset()

	cols := columnsOf(X)
	b.baseMargin_ = b.obj.baseMargin(y, b.BaseScore)
	margin := make([]float64, n)
	for i := range margin {
		margin[i] = b.baseMargin_
	}
	var evalCols [][]float64
	var evalMargin []float64
	if Xeval != nil {
		evalCols = columnsOf(Xeval)
		evalMargin = make([]float64, len(yEval))
		for i := range evalMargin {
			evalMargin[i] = b.baseMargin_
		}
	}

	rng := rand.New(rand.NewPCG(b.Seed, b.Seed))
	grad := make([]float64, n)
	hess := make([]float64, n)
	b.trees_ = b.trees_[:0]
	b.evals_ = EvalResult{Metric: b.obj.metricName()}
	b.bestIteration_ = 0
	bestScore := math.Inf(1)

	for m := 0; m < b.NEstimators; m++ {
		b.obj.gradHess(y, margin, grad, hess)

		rows := sampleIndices(rng, n, b.Subsample)
		columns := sampleIndices(rng, d, b.ColsampleByTree)
		builder := &treeBuilder{p: &b.Params, cols: cols, grad: grad, hess: hess, columns: columns, out: &regTree{}}
		builder.grow(rows, 0)
		if builder.err != nil {
			return errors.Wrapf(builder.err, "%s round %d", b.modelName, m)
		}
		t := builder.out
		b.trees_ = append(b.trees_, t)

		row := make([]float64, d)
		for i := range margin {
			for j := range row {
				row[j] = cols[j][i]
			}
			margin[i] += t.predictRow(row)
		}
		if err := errors.CheckNumericalStability(b.modelName+".Fit", margin, m); err != nil {
			return err
		}
		b.evals_.Train = append(b.evals_.Train, b.obj.metric(y, margin))

		if evalCols == nil {
			continue
		}
		for i := range evalMargin {
			for j := range row {
				row[j] = evalCols[j][i]
			}
			evalMargin[i] += t.predictRow(row)
		}
		score := b.obj.metric(yEval, evalMargin)
		b.evals_.Validation = append(b.evals_.Validation, score)
		if score < bestScore {
			bestScore = score
			b.bestIteration_ = m
		}
		if b.EarlyStoppingRounds > 0 && m-b.bestIteration_ >= b.EarlyStoppingRounds {
			log.GetLogger().Info("early stopping",
				log.ModelNameKey, b.modelName,
				log.IterationKey, m,
				"best_iteration", b.bestIteration_,
			)
			b.trees_ = b.trees_[:b.bestIteration_+1]
			break
		}
	}
	if evalCols == nil || b.EarlyStoppingRounds == 0 {
		b.bestIteration_ = len(b.trees_) - 1
	}

	b.state.SetDimensions(d, n)
	b.state.SetFitted()
	log.GetLogger().Debug("fitted",
		log.ModelNameKey, b.modelName,
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, d,
		log.EstimatorsKey, len(b.trees_),
		log.LossKey, b.evals_.Train[len(b.evals_.Train)-1],
	)
	return nil
}

// sampleIndices draws round(fraction*n) distinct sorted indices, or all of them.
func sampleIndices(rng *rand.Rand, n int, fraction float64) []int {
	k := n
	if fraction < 1 {
		k = max(1, int(math.Round(fraction*float64(n))))
	}
	var idx []int
	if k == n {
		idx = make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	idx = rng.Perm(n)[:k]
	sort.Ints(idx)
	return idx
}

func (b *booster) margins(op string, X mat.Matrix) ([]float64, error) {
	if err := b.state.RequireFitted(b.modelName, op); err != nil {
		return nil, err
	}
	if err := b.state.CheckFeatures(b.modelName+"."+op, X); err != nil {
		return nil, err
	}
	n, d := X.Dims()
	out := make([]float64, n)
	row := make([]float64, d)
	for i := 0; i < n; i++ {
		mat.Row(row, i, X)
		m := b.baseMargin_
		for _, t := range b.trees_ {
			m += t.predictRow(row)
		}
		out[i] = m
	}
	return out, nil
}

// EvalHistory returns the per-round metric on the training data and, after
// FitWithEval, on the validation data.
func (b *booster) EvalHistory() EvalResult {
	return EvalResult{
		Metric:     b.evals_.Metric,
		Train:      append([]float64(nil), b.evals_.Train...),
		Validation: append([]float64(nil), b.evals_.Validation...),
	}
}

// BestIteration returns the round with the lowest validation metric, or the last
// round when no validation data was given.
func (b *booster) BestIteration() int {
	return b.bestIteration_
}

// NTrees returns the number of trees kept in the model.
func (b *booster) NTrees() int {
	return len(b.trees_)
}

// FeatureImportances returns the total split gain per feature, normalized to sum to 1.
func (b *booster) FeatureImportances() []float64 {
	d, _ := b.state.GetDimensions()
	imp := make([]float64, d)
	total := 0.0
	for _, t := range b.trees_ {
		for _, n := range t.nodes {
			if n.feature >= 0 {
				imp[n.feature] += n.gain
				total += n.gain
			}
		}
	}
	if total > 0 {
		for j := range imp {
			imp[j] /= total
		}
	}
	return imp
}

// MaxDepthReached returns the depth of the deepest tree.
func (b *booster) MaxDepthReached() int {
	depth := 0
	for _, t := range b.trees_ {
		depth = max(depth, t.depth())
	}
	return depth
}

// GetParams returns the hyperparameters keyed by their XGBoost names.
func (b *booster) GetParams() map[string]interface{} {
	m := b.Params.Map()
	m["objective"] = b.obj.name()
	return m
}
