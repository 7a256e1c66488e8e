package casestudy

import (
	"context"
	"math/rand/v2"

	"github.com/YuminosukeSato/casebook/datasets"
	"github.com/YuminosukeSato/casebook/metrics"
	"github.com/YuminosukeSato/casebook/model_selection"
	"github.com/YuminosukeSato/casebook/pkg/errors"
	"github.com/YuminosukeSato/casebook/plotting"
	"github.com/YuminosukeSato/casebook/sklearn/linear_model"
	"gonum.org/v1/plot"
)

var salaryStudy = CaseStudy{
	Name:  "salary",
	Title: "Salary vs. years of experience (linear regression)",
	Data:  salaryData,
	run:   runSalary,
}

func salaryData(rng *rand.Rand) (*datasets.Frame, error) {
	const n = 100
	years := datasets.Uniform(rng, n, 0, 10)
	noise := datasets.Normal(rng, n, 0, 5000)
	salary := make([]float64, n)
	for i, x := range years {
		salary[i] = 30000 + 9000*x + noise[i]
	}
	return datasets.NewFrame([]string{"years", "salary"}, [][]float64{years, salary})
}

func runSalary(_ context.Context, env *Env, rng *rand.Rand, df *datasets.Frame, r *Result) error {
	X, err := df.Matrix("years")
	if err != nil {
		return err
	}
	y, err := df.Matrix("salary")
	if err != nil {
		return err
	}
	split, err := model_selection.TrainTestSplit(X, y, 0.2, rng)
	if err != nil {
		return err
	}

	lr := linear_model.NewLinearRegression()
	if err := lr.Fit(split.XTrain, split.YTrain); err != nil {
		return errors.Wrap(err, "fit LinearRegression")
	}
	pred, err := lr.Predict(split.XTest)
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
	r.AddMetric("R²", r2)
	r.AddMetric("MSE", mse)
	r.AddMetric("slope", lr.Coef()[0])
	r.AddMetric("intercept", lr.Intercept())

	if err := env.writeWeights(r, lr); err != nil {
		return err
	}

	return env.plot(r, "salary.png", func() (*plot.Plot, error) {
		lineX := []float64{0, 10}
		lineY := []float64{lr.Intercept(), lr.Intercept() + 10*lr.Coef()[0]}
		return plotting.LineSeries("Salary vs. experience", "years", "salary",
			plotting.Series{Name: "test", X: col(split.XTest, 0), Y: col(split.YTest, 0), Kind: plotting.Points},
			plotting.Series{Name: "fit", X: lineX, Y: lineY, Kind: plotting.Line},
		)
	})
}
