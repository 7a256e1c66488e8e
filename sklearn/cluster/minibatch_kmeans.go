// Package cluster provides unsupervised clustering.
package cluster

import (
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/casebook/core/model"
	"github.com/YuminosukeSato/casebook/pkg/errors"
	"github.com/YuminosukeSato/casebook/pkg/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// MiniBatchKMeans is k-means fitted on random mini-batches with per-center learning
// rates 1/count, compatible with scikit-learn's MiniBatchKMeans.
type MiniBatchKMeans struct {
	state *model.StateManager

	nClusters        int
	init             string // "k-means++" or "random"
	maxIter          int
	batchSize        int
	nInit            int
	tol              float64
	maxNoImprovement int
	randomState      uint64

	clusterCenters_ [][]float64
	counts_         []int
	labels_         []int
	inertia_        float64
	nIter_          int

	rng *rand.Rand
}

// KMeansOption configures MiniBatchKMeans.
type KMeansOption func(*MiniBatchKMeans)

// WithNClusters sets the number of clusters. Default 8.
func WithNClusters(n int) KMeansOption {
	return func(k *MiniBatchKMeans) { k.nClusters = n }
}

// WithInit selects "k-means++" (default) or "random" seeding.
func WithInit(init string) KMeansOption {
	return func(k *MiniBatchKMeans) { k.init = init }
}

// WithMaxIter caps the number of mini-batch steps per restart. Default 100.
func WithMaxIter(n int) KMeansOption {
	return func(k *MiniBatchKMeans) { k.maxIter = n }
}

// WithBatchSize sets the mini-batch size. Default 1024.
func WithBatchSize(n int) KMeansOption {
	return func(k *MiniBatchKMeans) { k.batchSize = n }
}

// WithNInit sets the number of restarts; the lowest inertia wins. Default 3.
func WithNInit(n int) KMeansOption {
	return func(k *MiniBatchKMeans) { k.nInit = n }
}

// WithTol sets the minimum inertia improvement that resets the patience counter.
func WithTol(tol float64) KMeansOption {
	return func(k *MiniBatchKMeans) { k.tol = tol }
}

// WithRandomState seeds initialization and batch sampling.
func WithRandomState(seed uint64) KMeansOption {
	return func(k *MiniBatchKMeans) { k.randomState = seed }
}

// NewMiniBatchKMeans creates an unfitted model.
func NewMiniBatchKMeans(opts ...KMeansOption) *MiniBatchKMeans {
	k := &MiniBatchKMeans{
		state:            model.NewStateManager(),
		nClusters:        8,
		init:             "k-means++",
		maxIter:          100,
		batchSize:        1024,
		nInit:            3,
		maxNoImprovement: 10,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

func (k *MiniBatchKMeans) validate(nSamples int) error {
	if k.nClusters < 1 {
		return errors.NewValidationError("n_clusters", "must be >= 1", k.nClusters)
	}
	if k.init != "k-means++" && k.init != "random" {
		return errors.NewValidationError("init", "must be 'k-means++' or 'random'", k.init)
	}
	if k.maxIter < 1 {
		return errors.NewValidationError("max_iter", "must be >= 1", k.maxIter)
	}
	if k.batchSize < 1 {
		return errors.NewValidationError("batch_size", "must be >= 1", k.batchSize)
	}
	if k.nInit < 1 {
		return errors.NewValidationError("n_init", "must be >= 1", k.nInit)
	}
	if nSamples < k.nClusters {
		return errors.NewValidationError("n_samples", "must be at least n_clusters", nSamples)
	}
	return nil
}

// Fit clusters the rows of X, keeping the best of nInit restarts.
func (k *MiniBatchKMeans) Fit(X mat.Matrix) error {
	n, d := X.Dims()
	if n == 0 || d == 0 {
		return errors.NewModelError("MiniBatchKMeans.Fit", "empty data", errors.ErrEmptyData)
	}
	if err := k.validate(n); err != nil {
		return err
	}
	k.state.Reset()
	k.rng = rand.New(rand.NewPCG(k.randomState, k.randomState))
	rows := denseRows(X)

	k.inertia_ = math.Inf(1)
	for run := 0; run < k.nInit; run++ {
		centers, counts, nIter := k.fitOnce(rows)
		inertia := inertiaOf(rows, centers)
		if inertia < k.inertia_ {
			k.clusterCenters_, k.counts_, k.inertia_, k.nIter_ = centers, counts, inertia, nIter
		}
	}
	k.labels_ = assign(rows, k.clusterCenters_)

	k.state.SetDimensions(d, n)
	k.state.SetFitted()
	log.GetLogger().Debug("fitted",
		log.ModelNameKey, "MiniBatchKMeans",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, d,
		log.IterationKey, k.nIter_,
		"inertia", k.inertia_,
	)
	return nil
}

func (k *MiniBatchKMeans) fitOnce(rows [][]float64) ([][]float64, []int, int) {
	centers := k.seed(rows)
	counts := make([]int, k.nClusters)
	batch := min(k.batchSize, len(rows))

	best := math.Inf(1)
	stale, iter := 0, 0
	for iter = 1; iter <= k.maxIter; iter++ {
		perm := k.rng.Perm(len(rows))[:batch]
		step(rows, perm, centers, counts)

		inertia := inertiaOf(rows, centers)
		if best-inertia > k.tol {
			best = inertia
			stale = 0
		} else {
			stale++
			if stale >= k.maxNoImprovement {
				break
			}
		}
	}
	return centers, counts, min(iter, k.maxIter)
}

// step moves each batch row's nearest center toward it with rate 1/count.
func step(rows [][]float64, batch []int, centers [][]float64, counts []int) {
	for _, i := range batch {
		c := nearest(rows[i], centers)
		counts[c]++
		eta := 1 / float64(counts[c])
		for j, v := range rows[i] {
			centers[c][j] += eta * (v - centers[c][j])
		}
	}
}

func (k *MiniBatchKMeans) seed(rows [][]float64) [][]float64 {
	centers := make([][]float64, k.nClusters)
	if k.init == "random" {
		for c, i := range k.rng.Perm(len(rows))[:k.nClusters] {
			centers[c] = append([]float64(nil), rows[i]...)
		}
		return centers
	}

	// k-means++: sample each new center with probability proportional to D(x)²
	centers[0] = append([]float64(nil), rows[k.rng.IntN(len(rows))]...)
	d2 := make([]float64, len(rows))
	for c := 1; c < k.nClusters; c++ {
		for i, r := range rows {
			d2[i] = sqDist(r, centers[nearest(r, centers[:c])])
		}
		total := floats.Sum(d2)
		pick := len(rows) - 1
		if total > 0 {
			target := k.rng.Float64() * total
			acc := 0.0
			for i, v := range d2 {
				acc += v
				if acc >= target {
					pick = i
					break
				}
			}
		} else {
			pick = k.rng.IntN(len(rows))
		}
		centers[c] = append([]float64(nil), rows[pick]...)
	}
	return centers
}

// PartialFit runs one mini-batch step over all rows of X. The first call seeds the
// centers.
func (k *MiniBatchKMeans) PartialFit(X mat.Matrix) error {
	n, d := X.Dims()
	if n == 0 || d == 0 {
		return errors.NewModelError("MiniBatchKMeans.PartialFit", "empty data", errors.ErrEmptyData)
	}
	rows := denseRows(X)
	if !k.state.IsFitted() {
		if err := k.validate(n); err != nil {
			return err
		}
		k.rng = rand.New(rand.NewPCG(k.randomState, k.randomState))
		k.clusterCenters_ = k.seed(rows)
		k.counts_ = make([]int, k.nClusters)
		k.state.SetDimensions(d, 0)
	} else if err := k.state.CheckFeatures("MiniBatchKMeans.PartialFit", X); err != nil {
		return err
	}

	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	step(rows, all, k.clusterCenters_, k.counts_)
	k.nIter_++
	k.labels_ = assign(rows, k.clusterCenters_)
	k.inertia_ = inertiaOf(rows, k.clusterCenters_)

	_, seen := k.state.GetDimensions()
	k.state.SetDimensions(d, seen+n)
	k.state.SetFitted()
	return nil
}

// Predict returns the index of the nearest center for each row.
func (k *MiniBatchKMeans) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := k.state.RequireFitted("MiniBatchKMeans", "Predict"); err != nil {
		return nil, err
	}
	if err := k.state.CheckFeatures("MiniBatchKMeans.Predict", X); err != nil {
		return nil, err
	}
	labels := assign(denseRows(X), k.clusterCenters_)
	out := mat.NewDense(len(labels), 1, nil)
	for i, l := range labels {
		out.Set(i, 0, float64(l))
	}
	return out, nil
}

// FitPredict fits on X and returns the training labels.
func (k *MiniBatchKMeans) FitPredict(X mat.Matrix) (mat.Matrix, error) {
	if err := k.Fit(X); err != nil {
		return nil, err
	}
	return k.Predict(X)
}

// Transform returns the Euclidean distance from each row to every center.
func (k *MiniBatchKMeans) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := k.state.RequireFitted("MiniBatchKMeans", "Transform"); err != nil {
		return nil, err
	}
	if err := k.state.CheckFeatures("MiniBatchKMeans.Transform", X); err != nil {
		return nil, err
	}
	rows := denseRows(X)
	out := mat.NewDense(len(rows), k.nClusters, nil)
	for i, r := range rows {
		for c, center := range k.clusterCenters_ {
			out.Set(i, c, floats.Distance(r, center, 2))
		}
	}
	return out, nil
}

// ClusterCenters returns a copy of the centers.
func (k *MiniBatchKMeans) ClusterCenters() [][]float64 {
	out := make([][]float64, len(k.clusterCenters_))
	for i, c := range k.clusterCenters_ {
		out[i] = append([]float64(nil), c...)
	}
	return out
}

// Labels returns the cluster of each training row.
func (k *MiniBatchKMeans) Labels() []int { return append([]int(nil), k.labels_...) }

// Inertia is the sum of squared distances of the training rows to their centers.
func (k *MiniBatchKMeans) Inertia() float64 { return k.inertia_ }

// NIter is the number of mini-batch steps of the winning restart.
func (k *MiniBatchKMeans) NIter() int { return k.nIter_ }

// GetParams returns the hyperparameters.
func (k *MiniBatchKMeans) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_clusters":   k.nClusters,
		"init":         k.init,
		"max_iter":     k.maxIter,
		"batch_size":   k.batchSize,
		"n_init":       k.nInit,
		"tol":          k.tol,
		"random_state": k.randomState,
	}
}

func denseRows(X mat.Matrix) [][]float64 {
	n, _ := X.Dims()
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = mat.Row(nil, i, X)
	}
	return rows
}

func sqDist(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

func nearest(x []float64, centers [][]float64) int {
	best, bestD := 0, math.Inf(1)
	for c, center := range centers {
		if d := sqDist(x, center); d < bestD {
			best, bestD = c, d
		}
	}
	return best
}

func assign(rows [][]float64, centers [][]float64) []int {
	labels := make([]int, len(rows))
	for i, r := range rows {
		labels[i] = nearest(r, centers)
	}
	return labels
}

func inertiaOf(rows [][]float64, centers [][]float64) float64 {
	s := 0.0
	for _, r := range rows {
		s += sqDist(r, centers[nearest(r, centers)])
	}
	return s
}
