// Package ensemble implements bagging, random forests, AdaBoost and gradient boosting
// on top of the decision trees in sklearn/tree.
package ensemble

import (
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/casebook/core/parallel"
	"github.com/YuminosukeSato/casebook/pkg/errors"
	"github.com/YuminosukeSato/casebook/sklearn/tree"
)

// config carries the hyperparameters of every ensemble. Each constructor fills its own
// defaults and ignores fields it does not use.
type config struct {
	nEstimators  int
	learningRate float64
	randomState  uint64
	nJobs        int

	// bagging and forests
	maxSamples   float64
	bootstrap    bool
	maxFeatures  string
	maxFeaturesN int

	// subsample fraction for gradient boosting
	subsample float64

	// member trees
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	criterion       string
}

// Option configures an ensemble.
type Option func(*config)

// WithNEstimators sets the number of members or boosting rounds.
func WithNEstimators(n int) Option {
	return func(c *config) { c.nEstimators = n }
}

// WithLearningRate sets the shrinkage applied to each boosting round.
func WithLearningRate(lr float64) Option {
	return func(c *config) { c.learningRate = lr }
}

// WithRandomState seeds bootstrap draws, feature sampling and subsampling.
func WithRandomState(seed uint64) Option {
	return func(c *config) { c.randomState = seed }
}

// WithNJobs caps the goroutines used to fit members. 0 uses every CPU.
func WithNJobs(n int) Option {
	return func(c *config) { c.nJobs = n }
}

// WithMaxSamples sets the fraction of rows drawn for each bagged member.
func WithMaxSamples(fraction float64) Option {
	return func(c *config) { c.maxSamples = fraction }
}

// WithBootstrap selects sampling with (true) or without (false) replacement.
func WithBootstrap(bootstrap bool) Option {
	return func(c *config) { c.bootstrap = bootstrap }
}

// WithMaxFeatures sets per-split feature sampling: "sqrt", "log2" or "all".
func WithMaxFeatures(spec string) Option {
	return func(c *config) {
		c.maxFeatures = spec
		c.maxFeaturesN = 0
	}
}

// WithMaxFeaturesN samples exactly n features per split.
func WithMaxFeaturesN(n int) Option {
	return func(c *config) { c.maxFeaturesN = n }
}

// WithSubsample sets the row fraction used by each gradient boosting round.
func WithSubsample(fraction float64) Option {
	return func(c *config) { c.subsample = fraction }
}

// WithMaxDepth limits the depth of member trees. 0 means unlimited.
func WithMaxDepth(depth int) Option {
	return func(c *config) { c.maxDepth = depth }
}

// WithMinSamplesSplit sets min_samples_split of member trees.
func WithMinSamplesSplit(n int) Option {
	return func(c *config) { c.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets min_samples_leaf of member trees.
func WithMinSamplesLeaf(n int) Option {
	return func(c *config) { c.minSamplesLeaf = n }
}

// WithCriterion sets the split criterion of member classification trees.
func WithCriterion(criterion string) Option {
	return func(c *config) { c.criterion = criterion }
}

func newConfig(defaults config, opts []Option) config {
	c := defaults
	if c.minSamplesSplit == 0 {
		c.minSamplesSplit = 2
	}
	if c.minSamplesLeaf == 0 {
		c.minSamplesLeaf = 1
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c *config) validate() error {
	if c.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", c.nEstimators)
	}
	if c.learningRate <= 0 {
		return errors.NewValidationError("learning_rate", "must be positive", c.learningRate)
	}
	if c.maxSamples <= 0 || c.maxSamples > 1 {
		return errors.NewValidationError("max_samples", "must be in (0, 1]", c.maxSamples)
	}
	if c.subsample <= 0 || c.subsample > 1 {
		return errors.NewValidationError("subsample", "must be in (0, 1]", c.subsample)
	}
	switch c.maxFeatures {
	case "", "all", "sqrt", "log2":
	default:
		return errors.NewValidationError("max_features", "must be 'sqrt', 'log2' or 'all'", c.maxFeatures)
	}
	if c.maxFeaturesN < 0 {
		return errors.NewValidationError("max_features", "must be >= 0", c.maxFeaturesN)
	}
	return nil
}

// featuresPerSplit resolves max_features against d columns.
func (c *config) featuresPerSplit(d int) int {
	if c.maxFeaturesN > 0 {
		return min(c.maxFeaturesN, d)
	}
	switch c.maxFeatures {
	case "sqrt":
		return max(1, int(math.Sqrt(float64(d))))
	case "log2":
		return max(1, int(math.Log2(float64(d))))
	}
	return d
}

func (c *config) treeOptions(d int, seed uint64) []tree.Option {
	opts := []tree.Option{
		tree.WithMaxDepth(c.maxDepth),
		tree.WithMinSamplesSplit(c.minSamplesSplit),
		tree.WithMinSamplesLeaf(c.minSamplesLeaf),
		tree.WithRandomState(seed),
	}
	if k := c.featuresPerSplit(d); k < d {
		opts = append(opts, tree.WithMaxFeatures(k))
	}
	if c.criterion != "" {
		opts = append(opts, tree.WithCriterion(c.criterion))
	}
	return opts
}

func (c *config) params() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      c.nEstimators,
		"learning_rate":     c.learningRate,
		"random_state":      c.randomState,
		"max_samples":       c.maxSamples,
		"bootstrap":         c.bootstrap,
		"max_features":      c.maxFeatures,
		"subsample":         c.subsample,
		"max_depth":         c.maxDepth,
		"min_samples_split": c.minSamplesSplit,
		"min_samples_leaf":  c.minSamplesLeaf,
	}
}

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// memberSeeds draws one seed per member from the ensemble seed so results do not
// depend on the order members are fitted in.
func memberSeeds(seed uint64, n int) []uint64 {
	rng := newRNG(seed)
	seeds := make([]uint64, n)
	for i := range seeds {
		seeds[i] = rng.Uint64()
	}
	return seeds
}

// sampleWeights draws round(fraction*n) rows and returns the draw counts per row.
func sampleWeights(rng *rand.Rand, n int, fraction float64, replace bool) []float64 {
	draws := max(1, int(math.Round(fraction*float64(n))))
	w := make([]float64, n)
	if replace {
		for k := 0; k < draws; k++ {
			w[rng.IntN(n)]++
		}
		return w
	}
	for _, i := range rng.Perm(n)[:draws] {
		w[i] = 1
	}
	return w
}

// fitMembers runs fit for every member index with at most nJobs in flight and returns
// the first error. A panicking member surfaces as a *errors.PanicError.
func fitMembers(name string, nJobs, n int, fit func(i int) error) error {
	return parallel.ForEach(name+" member", nJobs, n, fit)
}
