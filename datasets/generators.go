package datasets

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/casebook/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// NewRand returns the seeded generator every case study draws from.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// Uniform draws n values from U(lo, hi).
func Uniform(rng *rand.Rand, n int, lo, hi float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + (hi-lo)*rng.Float64()
	}
	return out
}

// Normal draws n values from N(mean, std²).
func Normal(rng *rand.Rand, n int, mean, std float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = mean + std*rng.NormFloat64()
	}
	return out
}

// Bernoulli draws one 0/1 outcome per probability.
func Bernoulli(rng *rand.Rand, p []float64) []float64 {
	out := make([]float64, len(p))
	for i, pi := range p {
		if rng.Float64() < pi {
			out[i] = 1
		}
	}
	return out
}

func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = lo
		return out
	}
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + step*float64(i)
	}
	return out
}

// shuffleRows applies one random permutation to the rows of X and y.
func shuffleRows(rng *rand.Rand, X, y *mat.Dense) {
	n, _ := X.Dims()
	rng.Shuffle(n, func(i, j int) {
		ri, rj := mat.Row(nil, i, X), mat.Row(nil, j, X)
		X.SetRow(i, rj)
		X.SetRow(j, ri)
		yi, yj := y.At(i, 0), y.At(j, 0)
		y.Set(i, 0, yj)
		y.Set(j, 0, yi)
	})
}

// MakeMoons returns n points on two interleaved half circles with Gaussian noise.
// Label 0 is the outer moon and label 1 the inner one. Rows are shuffled.
func MakeMoons(rng *rand.Rand, n int, noise float64) (*mat.Dense, *mat.Dense, error) {
	if n < 2 {
		return nil, nil, errors.NewValidationError("n_samples", "must be >= 2", n)
	}
	nOut := n / 2
	nIn := n - nOut
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i, a := range linspace(0, math.Pi, nOut) {
		X.Set(i, 0, math.Cos(a))
		X.Set(i, 1, math.Sin(a))
	}
	for k, a := range linspace(0, math.Pi, nIn) {
		i := nOut + k
		X.Set(i, 0, 1-math.Cos(a))
		X.Set(i, 1, 1-math.Sin(a)-0.5)
		y.Set(i, 0, 1)
	}
	shuffleRows(rng, X, y)
	if noise > 0 {
		for i := 0; i < n; i++ {
			X.Set(i, 0, X.At(i, 0)+noise*rng.NormFloat64())
			X.Set(i, 1, X.At(i, 1)+noise*rng.NormFloat64())
		}
	}
	return X, y, nil
}

// MakeBlobs draws n points split evenly across isotropic Gaussian clusters. The label
// of a point is the index of its center. Rows are shuffled.
func MakeBlobs(rng *rand.Rand, n int, centers [][]float64, std float64) (*mat.Dense, *mat.Dense, error) {
	if len(centers) == 0 {
		return nil, nil, errors.NewValidationError("centers", "must not be empty", centers)
	}
	if n < len(centers) {
		return nil, nil, errors.NewValidationError("n_samples", "must be at least the number of centers", n)
	}
	d := len(centers[0])
	for _, c := range centers {
		if len(c) != d {
			return nil, nil, errors.NewDimensionError("MakeBlobs", d, len(c), 1)
		}
	}
	X := mat.NewDense(n, d, nil)
	y := mat.NewDense(n, 1, nil)
	per := n / len(centers)
	extra := n % len(centers)
	i := 0
	for k, c := range centers {
		count := per
		if k < extra {
			count++
		}
		for ; count > 0; count-- {
			for j := 0; j < d; j++ {
				X.Set(i, j, c[j]+std*rng.NormFloat64())
			}
			y.Set(i, 0, float64(k))
			i++
		}
	}
	shuffleRows(rng, X, y)
	return X, y, nil
}

// MakeSine draws x ~ U(0, 2π) sorted ascending and y = sin(x) + N(0, noise²).
func MakeSine(rng *rand.Rand, n int, noise float64) (*mat.Dense, *mat.Dense) {
	xs := Uniform(rng, n, 0, 2*math.Pi)
	sort.Float64s(xs)
	X := mat.NewDense(n, 1, xs)
	y := mat.NewDense(n, 1, nil)
	for i, x := range xs {
		y.Set(i, 0, math.Sin(x)+noise*rng.NormFloat64())
	}
	return X, y
}
