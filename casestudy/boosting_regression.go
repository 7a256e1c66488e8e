package casestudy

import (
	"context"
	"math/rand/v2"

	"github.com/YuminosukeSato/casebook/core/model"
	"github.com/YuminosukeSato/casebook/datasets"
	"github.com/YuminosukeSato/casebook/metrics"
	"github.com/YuminosukeSato/casebook/model_selection"
	"github.com/YuminosukeSato/casebook/pkg/errors"
	"github.com/YuminosukeSato/casebook/plotting"
	"github.com/YuminosukeSato/casebook/sklearn/ensemble"
	"github.com/YuminosukeSato/casebook/sklearn/tree"
	"github.com/YuminosukeSato/casebook/sklearn/xgboost"
	"gonum.org/v1/plot"
)

var boostingRegressionStudy = CaseStudy{
	Name:  "boosting-regression",
	Title: "A single tree against gradient boosting on a noisy sine",
	Data:  sineData,
	run:   runBoostingRegression,
}

func sineData(rng *rand.Rand) (*datasets.Frame, error) {
	X, y := datasets.MakeSine(rng, 200, 0.2)
	return datasets.NewFrame([]string{"x", "y"}, [][]float64{col(X, 0), col(y, 0)})
}

func runBoostingRegression(ctx context.Context, env *Env, rng *rand.Rand, df *datasets.Frame, r *Result) error {
	X, err := df.Matrix("x")
	if err != nil {
		return err
	}
	y, err := df.Matrix("y")
	if err != nil {
		return err
	}
	split, err := model_selection.TrainTestSplit(X, y, 0.25, rng)
	if err != nil {
		return err
	}

	gb := ensemble.NewGradientBoostingRegressor(
		ensemble.WithNEstimators(100),
		ensemble.WithLearningRate(0.1),
		ensemble.WithMaxDepth(3),
		ensemble.WithRandomState(env.Seed),
	)
	models := []struct {
		name string
		m    model.Regressor
	}{
		{"DecisionTreeRegressor", tree.NewDecisionTreeRegressor(tree.WithMaxDepth(4), tree.WithRandomState(env.Seed))},
		{"GradientBoostingRegressor", gb},
		{"XGBRegressor", xgboost.NewXGBRegressor(
			xgboost.WithNEstimators(100),
			xgboost.WithLearningRate(0.1),
			xgboost.WithMaxDepth(3),
			xgboost.WithSeed(env.Seed),
		)},
	}

	// test points sorted by x so predictions draw as curves
	order := argsort(col(split.XTest, 0))
	xs := permute(col(split.XTest, 0), order)
	series := []plotting.Series{{Name: "truth", X: xs, Y: permute(col(split.YTest, 0), order), Kind: plotting.Points}}

	scores := make(map[string][]float64, len(models))
	names := make([]string, len(models))
	for i, entry := range models {
		if err := ctx.Err(); err != nil {
			return err
		}
		names[i] = entry.name
		if err := entry.m.Fit(split.XTrain, split.YTrain); err != nil {
			return errors.Wrapf(err, "fit %s", entry.name)
		}
		pred, err := entry.m.Predict(split.XTest)
		if err != nil {
			return err
		}
		r2, err := metrics.R2ScoreMatrix(split.YTest, pred)
		if err != nil {
			return err
		}
		mse, err := metrics.MSEMatrix(split.YTest, pred)
		if err != nil {
			return err
		}
		scores[entry.name] = []float64{r2, mse}
		r.AddMetric(entry.name+" R²", r2)
		series = append(series, plotting.Series{Name: entry.name, X: xs, Y: permute(col(pred, 0), order), Kind: plotting.Line})
	}
	r.AddSection("Test scores", scoreTable([]string{"R²", "MSE"}, scores, names))

	// test error per boosting stage next to the training loss
	stages, err := gb.StagedPredict(split.XTest)
	if err != nil {
		return err
	}
	testLoss := make([]float64, len(stages))
	for i, s := range stages {
		if testLoss[i], err = metrics.MSEMatrix(split.YTest, s); err != nil {
			return err
		}
	}
	trainLoss := gb.TrainScore()
	best := 0
	for i := range testLoss {
		if testLoss[i] < testLoss[best] {
			best = i
		}
	}
	r.AddMetric("GradientBoostingRegressor best stage", float64(best+1))
	r.AddMetric("GradientBoostingRegressor best stage test MSE", testLoss[best])

	if err := env.plot(r, "sine_fits.png", func() (*plot.Plot, error) {
		return plotting.LineSeries("Noisy sine: truth and predictions", "x", "y", series...)
	}); err != nil {
		return err
	}
	return env.plot(r, "gb_loss.png", func() (*plot.Plot, error) {
		rounds := make([]float64, len(stages))
		for i := range rounds {
			rounds[i] = float64(i + 1)
		}
		return plotting.LineSeries("GradientBoostingRegressor loss", "boosting round", "MSE",
			plotting.Series{Name: "train", X: rounds, Y: trainLoss, Kind: plotting.Line},
			plotting.Series{Name: "test", X: rounds, Y: testLoss, Kind: plotting.Line},
		)
	})
}
