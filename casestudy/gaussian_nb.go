package casestudy

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/YuminosukeSato/casebook/core/model"
	"github.com/YuminosukeSato/casebook/datasets"
	"github.com/YuminosukeSato/casebook/metrics"
	"github.com/YuminosukeSato/casebook/model_selection"
	"github.com/YuminosukeSato/casebook/pkg/errors"
	"github.com/YuminosukeSato/casebook/plotting"
	"github.com/YuminosukeSato/casebook/preprocessing"
	"github.com/YuminosukeSato/casebook/sklearn/cluster"
	"github.com/YuminosukeSato/casebook/sklearn/naive_bayes"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
)

var gaussianNBStudy = CaseStudy{
	Name:  "gaussian-nb",
	Title: "Gaussian Naive Bayes on three blobs",
	Data:  blobsData,
	run:   runGaussianNB,
}

var blobCenters = [][]float64{{-4, -2}, {0, 4}, {4, -1}}

var blobNames = []string{"A", "B", "C"}

func blobsData(rng *rand.Rand) (*datasets.Frame, error) {
	X, y, err := datasets.MakeBlobs(rng, 300, blobCenters, 1.5)
	if err != nil {
		return nil, err
	}
	df, err := datasets.FromMatrix([]string{"x1", "x2"}, X)
	if err != nil {
		return nil, err
	}
	return df, df.AddColumn("label", col(y, 0))
}

func runGaussianNB(_ context.Context, env *Env, rng *rand.Rand, df *datasets.Frame, r *Result) error {
	X, err := df.Matrix("x1", "x2")
	if err != nil {
		return err
	}
	y, err := df.Matrix("label")
	if err != nil {
		return err
	}
	split, err := model_selection.TrainTestSplit(X, y, 0.3, rng, model_selection.WithStratify(true))
	if err != nil {
		return err
	}

	nb := naive_bayes.NewGaussianNB()
	if err := nb.Fit(split.XTrain, split.YTrain); err != nil {
		return errors.Wrap(err, "fit GaussianNB")
	}
	pred, err := nb.Predict(split.XTest)
	if err != nil {
		return err
	}
	if _, err := evaluateClassifier(r, "GaussianNB", split.YTest, pred, blobNames); err != nil {
		return err
	}

	// the same blobs without labels, clustered in standardized units
	var scaler model.InverseTransformer = preprocessing.NewStandardScalerDefault()
	scaled, err := scaler.FitTransform(split.XTrain)
	if err != nil {
		return errors.Wrap(err, "standardize features")
	}
	km := cluster.NewMiniBatchKMeans(
		cluster.WithNClusters(len(blobCenters)),
		cluster.WithNInit(10),
		cluster.WithRandomState(env.Seed),
	)
	clusters, err := km.FitPredict(scaled)
	if err != nil {
		return errors.Wrap(err, "fit MiniBatchKMeans")
	}
	purity, err := metrics.ClusterPurity(metrics.ColumnVec(split.YTrain, 0), metrics.ColumnVec(clusters, 0))
	if err != nil {
		return err
	}
	r.AddMetric("MiniBatchKMeans purity", purity)
	r.AddMetric("MiniBatchKMeans inertia", km.Inertia())

	centers := km.ClusterCenters()
	scaledCenters := mat.NewDense(len(centers), len(centers[0]), nil)
	for i, c := range centers {
		scaledCenters.SetRow(i, c)
	}
	original, err := scaler.InverseTransform(scaledCenters)
	if err != nil {
		return err
	}
	var table strings.Builder
	fmt.Fprintf(&table, "%8s %8s %8s\n", "cluster", "x1", "x2")
	for i := range centers {
		fmt.Fprintf(&table, "%8d %8.3f %8.3f\n", i, original.At(i, 0), original.At(i, 1))
	}
	r.AddSection("MiniBatchKMeans centers", table.String())

	names := map[int]string{0: "A", 1: "B", 2: "C"}
	if err := env.plot(r, "blobs_truth.png", func() (*plot.Plot, error) {
		return plotting.ScatterByClass("Test set: true class", split.XTest, labelsOf(split.YTest), names)
	}); err != nil {
		return err
	}
	if err := env.plot(r, "blobs_predicted.png", func() (*plot.Plot, error) {
		return plotting.ScatterByClass("Test set: GaussianNB prediction", split.XTest, labelsOf(pred), names)
	}); err != nil {
		return err
	}
	return env.plot(r, "blobs_kmeans.png", func() (*plot.Plot, error) {
		return plotting.ScatterByClass("Training set: MiniBatchKMeans clusters", split.XTrain, labelsOf(clusters), nil)
	})
}
