package ensemble

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/casebook/core/model"
	"github.com/YuminosukeSato/casebook/metrics"
	"github.com/YuminosukeSato/casebook/pkg/errors"
	"github.com/YuminosukeSato/casebook/pkg/log"
	"github.com/YuminosukeSato/casebook/sklearn/tree"
	"gonum.org/v1/gonum/mat"
)

var (
	_ model.Classifier = (*BaggingClassifier)(nil)
	_ model.Regressor  = (*BaggingRegressor)(nil)
)

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

func sortedClasses(y mat.Matrix) []int {
	n, _ := y.Dims()
	seen := make(map[int]struct{})
	for i := 0; i < n; i++ {
		seen[int(math.Round(y.At(i, 0)))] = struct{}{}
	}
	classes := make([]int, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	return classes
}

func argmaxRows(proba mat.Matrix, classes []int) *mat.Dense {
	n, k := proba.Dims()
	pred := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		best := 0
		for c := 1; c < k; c++ {
			if proba.At(i, c) > proba.At(i, best) {
				best = c
			}
		}
		pred.Set(i, 0, float64(classes[best]))
	}
	return pred
}

// addAligned adds a member's probabilities into sum, mapping the member's classes
// onto the ensemble's class columns.
func addAligned(sum *mat.Dense, proba mat.Matrix, memberClasses, classes []int, scale float64) {
	n, _ := proba.Dims()
	for k, c := range memberClasses {
		col := sort.SearchInts(classes, c)
		for i := 0; i < n; i++ {
			sum.Set(i, col, sum.At(i, col)+scale*proba.At(i, k))
		}
	}
}

func meanImportances(d int, members [][]float64) []float64 {
	out := make([]float64, d)
	if len(members) == 0 {
		return out
	}
	for _, imp := range members {
		for j, v := range imp {
			out[j] += v
		}
	}
	total := 0.0
	for j := range out {
		out[j] /= float64(len(members))
		total += out[j]
	}
	if total > 0 {
		for j := range out {
			out[j] /= total
		}
	}
	return out
}

// baggedClassifier averages the class probabilities of trees fitted on resampled rows.
type baggedClassifier struct {
	name  string
	cfg   config
	state *model.StateManager

	estimators_ []*tree.DecisionTreeClassifier
	classes_    []int
}

func (b *baggedClassifier) Fit(X, y mat.Matrix) error {
	n, d, err := checkXY(b.name+".Fit", X, y)
	if err != nil {
		return err
	}
	if err := b.cfg.validate(); err != nil {
		return err
	}
	b.state.Reset()

	seeds := memberSeeds(b.cfg.randomState, b.cfg.nEstimators)
	members := make([]*tree.DecisionTreeClassifier, b.cfg.nEstimators)
	err = fitMembers(b.name, b.cfg.nJobs, len(members), func(i int) error {
		rng := newRNG(seeds[i])
		w := sampleWeights(rng, n, b.cfg.maxSamples, b.cfg.bootstrap)
		t := tree.NewDecisionTreeClassifier(b.cfg.treeOptions(d, rng.Uint64())...)
		if err := t.FitWeighted(X, y, w); err != nil {
			return errors.Wrapf(err, "%s member %d", b.name, i)
		}
		members[i] = t
		return nil
	})
	if err != nil {
		return err
	}

	b.estimators_ = members
	b.classes_ = sortedClasses(y)
	b.state.SetDimensions(d, n)
	b.state.SetFitted()

	log.GetLogger().Debug("fitted",
		log.ModelNameKey, b.name,
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, d,
		log.ClassesKey, len(b.classes_),
		log.EstimatorsKey, len(members),
	)
	return nil
}

func (b *baggedClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := b.state.RequireFitted(b.name, "PredictProba"); err != nil {
		return nil, err
	}
	if err := b.state.CheckFeatures(b.name+".PredictProba", X); err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	sum := mat.NewDense(n, len(b.classes_), nil)
	scale := 1 / float64(len(b.estimators_))
	for _, t := range b.estimators_ {
		proba, err := t.PredictProba(X)
		if err != nil {
			return nil, err
		}
		addAligned(sum, proba, t.Classes(), b.classes_, scale)
	}
	return sum, nil
}

func (b *baggedClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := b.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return argmaxRows(proba, b.classes_), nil
}

func (b *baggedClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := b.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyMatrix(y, pred)
}

func (b *baggedClassifier) Classes() []int {
	return append([]int(nil), b.classes_...)
}

// Estimators returns the fitted member trees.
func (b *baggedClassifier) Estimators() []*tree.DecisionTreeClassifier {
	return append([]*tree.DecisionTreeClassifier(nil), b.estimators_...)
}

// FeatureImportances averages the member importances.
func (b *baggedClassifier) FeatureImportances() []float64 {
	d, _ := b.state.GetDimensions()
	imps := make([][]float64, 0, len(b.estimators_))
	for _, t := range b.estimators_ {
		imps = append(imps, t.GetFeatureImportances())
	}
	return meanImportances(d, imps)
}

func (b *baggedClassifier) GetParams() map[string]interface{} {
	return b.cfg.params()
}

// baggedRegressor averages the predictions of trees fitted on resampled rows.
type baggedRegressor struct {
	name  string
	cfg   config
	state *model.StateManager

	estimators_ []*tree.DecisionTreeRegressor
}

func (b *baggedRegressor) Fit(X, y mat.Matrix) error {
	n, d, err := checkXY(b.name+".Fit", X, y)
	if err != nil {
		return err
	}
	if err := b.cfg.validate(); err != nil {
		return err
	}
	b.state.Reset()

	seeds := memberSeeds(b.cfg.randomState, b.cfg.nEstimators)
	members := make([]*tree.DecisionTreeRegressor, b.cfg.nEstimators)
	err = fitMembers(b.name, b.cfg.nJobs, len(members), func(i int) error {
		rng := newRNG(seeds[i])
		w := sampleWeights(rng, n, b.cfg.maxSamples, b.cfg.bootstrap)
		t := tree.NewDecisionTreeRegressor(b.cfg.treeOptions(d, rng.Uint64())...)
		if err := t.FitWeighted(X, y, w); err != nil {
			return errors.Wrapf(err, "%s member %d", b.name, i)
		}
		members[i] = t
		return nil
	})
	if err != nil {
		return err
	}

	b.estimators_ = members
	b.state.SetDimensions(d, n)
	b.state.SetFitted()

	log.GetLogger().Debug("fitted",
		log.ModelNameKey, b.name,
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, d,
		log.EstimatorsKey, len(members),
	)
	return nil
}

func (b *baggedRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := b.state.RequireFitted(b.name, "Predict"); err != nil {
		return nil, err
	}
	if err := b.state.CheckFeatures(b.name+".Predict", X); err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	sum := mat.NewDense(n, 1, nil)
	for _, t := range b.estimators_ {
		pred, err := t.Predict(X)
		if err != nil {
			return nil, err
		}
		sum.Add(sum, pred)
	}
	sum.Scale(1/float64(len(b.estimators_)), sum)
	return sum, nil
}

func (b *baggedRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := b.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// Estimators returns the fitted member trees.
func (b *baggedRegressor) Estimators() []*tree.DecisionTreeRegressor {
	return append([]*tree.DecisionTreeRegressor(nil), b.estimators_...)
}

// FeatureImportances averages the member importances.
func (b *baggedRegressor) FeatureImportances() []float64 {
	d, _ := b.state.GetDimensions()
	imps := make([][]float64, 0, len(b.estimators_))
	for _, t := range b.estimators_ {
		imps = append(imps, t.GetFeatureImportances())
	}
	return meanImportances(d, imps)
}

func (b *baggedRegressor) GetParams() map[string]interface{} {
	return b.cfg.params()
}

// BaggingClassifier fits full decision trees on bootstrap samples and averages their
// class probabilities.
type BaggingClassifier struct {
	baggedClassifier
}

// NewBaggingClassifier creates a BaggingClassifier with 10 members.
func NewBaggingClassifier(opts ...Option) *BaggingClassifier {
	return &BaggingClassifier{baggedClassifier{
		name: "BaggingClassifier",
		cfg: newConfig(config{
			nEstimators:  10,
			learningRate: 1,
			maxSamples:   1,
			bootstrap:    true,
			subsample:    1,
		}, opts),
		state: model.NewStateManager(),
	}}
}

// BaggingRegressor fits full regression trees on bootstrap samples and averages
// their predictions.
type BaggingRegressor struct {
	baggedRegressor
}

// NewBaggingRegressor creates a BaggingRegressor with 10 members.
func NewBaggingRegressor(opts ...Option) *BaggingRegressor {
	return &BaggingRegressor{baggedRegressor{
		name: "BaggingRegressor",
		cfg: newConfig(config{
			nEstimators:  10,
			learningRate: 1,
			maxSamples:   1,
			bootstrap:    true,
			subsample:    1,
		}, opts),
		state: model.NewStateManager(),
	}}
}
