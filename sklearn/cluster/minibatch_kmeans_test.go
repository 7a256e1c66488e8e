package cluster

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/YuminosukeSato/casebook/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// threeBlobs returns tight clusters around (0,0), (10,0) and (0,10), 20 points each,
// laid out blob by blob.
func threeBlobs() *mat.Dense {
	rng := rand.New(rand.NewPCG(3, 3))
	centers := [][]float64{{0, 0}, {10, 0}, {0, 10}}
	X := mat.NewDense(60, 2, nil)
	for c, center := range centers {
		for i := 0; i < 20; i++ {
			X.Set(c*20+i, 0, center[0]+0.3*rng.NormFloat64())
			X.Set(c*20+i, 1, center[1]+0.3*rng.NormFloat64())
		}
	}
	return X
}

func TestMiniBatchKMeansRecoversBlobs(t *testing.T) {
	X := threeBlobs()
	for _, init := range []string{"k-means++", "random"} {
		t.Run(init, func(t *testing.T) {
			km := NewMiniBatchKMeans(WithNClusters(3), WithInit(init), WithNInit(20), WithBatchSize(30), WithRandomState(1))
			pred, err := km.FitPredict(X)
			if err != nil {
				t.Fatalf("FitPredict() error = %v", err)
			}

			// every blob lands in one cluster and the three clusters are distinct
			seen := map[int]bool{}
			for c := 0; c < 3; c++ {
				first := int(pred.At(c*20, 0))
				for i := 1; i < 20; i++ {
					if got := int(pred.At(c*20+i, 0)); got != first {
						t.Fatalf("blob %d split across clusters %d and %d", c, first, got)
					}
				}
				if seen[first] {
					t.Fatalf("cluster %d used by two blobs", first)
				}
				seen[first] = true
			}

			// 60 points with per-axis std 0.3 give inertia near 60*2*0.09
			if km.Inertia() > 25 {
				t.Errorf("Inertia() = %v, want small", km.Inertia())
			}
			if len(km.Labels()) != 60 {
				t.Errorf("len(Labels()) = %d, want 60", len(km.Labels()))
			}
			if km.NIter() < 1 {
				t.Errorf("NIter() = %d, want >= 1", km.NIter())
			}
		})
	}
}

func TestMiniBatchKMeansTransform(t *testing.T) {
	X := threeBlobs()
	km := NewMiniBatchKMeans(WithNClusters(3), WithRandomState(7))
	if err := km.Fit(X); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	centers := km.ClusterCenters()
	dist, err := km.Transform(mat.NewDense(1, 2, centers[1]))
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if r, c := dist.Dims(); r != 1 || c != 3 {
		t.Fatalf("Transform() dims = %dx%d, want 1x3", r, c)
	}
	if math.Abs(dist.At(0, 1)) > 1e-12 {
		t.Errorf("distance to own center = %v, want 0", dist.At(0, 1))
	}
	pred, err := km.Predict(mat.NewDense(1, 2, centers[2]))
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if pred.At(0, 0) != 2 {
		t.Errorf("Predict(center 2) = %v, want 2", pred.At(0, 0))
	}
}

func TestMiniBatchKMeansPartialFit(t *testing.T) {
	X := threeBlobs()
	km := NewMiniBatchKMeans(WithNClusters(3), WithRandomState(2))
	for i := 0; i < 5; i++ {
		if err := km.PartialFit(X); err != nil {
			t.Fatalf("PartialFit() error = %v", err)
		}
	}
	if km.NIter() != 5 {
		t.Errorf("NIter() = %d, want 5", km.NIter())
	}
	if _, err := km.Predict(mat.NewDense(1, 3, nil)); err == nil {
		t.Error("expected a feature mismatch error")
	}
}

func TestMiniBatchKMeansErrors(t *testing.T) {
	km := NewMiniBatchKMeans(WithNClusters(3))
	if _, err := km.Predict(mat.NewDense(1, 2, nil)); err == nil {
		t.Error("expected NotFittedError")
	} else {
		var nf *errors.NotFittedError
		if !errors.As(err, &nf) {
			t.Errorf("error = %v, want NotFittedError", err)
		}
	}

	if err := km.Fit(mat.NewDense(2, 2, nil)); err == nil {
		t.Error("expected an error for fewer samples than clusters")
	}
	if err := NewMiniBatchKMeans(WithInit("forgy")).Fit(threeBlobs()); err == nil {
		t.Error("expected an error for an unknown init")
	}
}
