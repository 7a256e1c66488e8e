package casestudy

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/YuminosukeSato/casebook/core/model"
	"github.com/YuminosukeSato/casebook/datasets"
	"github.com/YuminosukeSato/casebook/metrics"
	"github.com/YuminosukeSato/casebook/model_selection"
	"github.com/YuminosukeSato/casebook/pkg/errors"
	"github.com/YuminosukeSato/casebook/plotting"
	"github.com/YuminosukeSato/casebook/sklearn/ensemble"
	"github.com/YuminosukeSato/casebook/sklearn/linear_model"
	"github.com/YuminosukeSato/casebook/sklearn/tree"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
)

var pidGainsStudy = CaseStudy{
	Name:  "pid-gains",
	Title: "Predicting Ziegler–Nichols PID gains from plant parameters",
	Data:  pidGainsData,
	run:   runPIDGains,
}

var (
	pidFeatures = []string{"K", "T", "L"}
	pidTargets  = []string{"Kp", "Ki", "Kd"}
)

// zieglerNichols returns the reaction-curve PID gains for a first-order-plus-dead-time
// plant with gain k, time constant t and dead time l.
func zieglerNichols(k, t, l float64) (kp, ki, kd float64) {
	kp = 1.2 * t / (k * l)
	ki = kp / (2 * l)
	kd = 0.5 * kp * l
	return kp, ki, kd
}

func pidGainsData(rng *rand.Rand) (*datasets.Frame, error) {
	const n = 300
	k := datasets.Uniform(rng, n, 0.5, 5)
	t := datasets.Uniform(rng, n, 1, 20)
	l := datasets.Uniform(rng, n, 0.2, 5)
	noise := datasets.Normal(rng, 3*n, 0, 0.02)

	kp, ki, kd := make([]float64, n), make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		p, in, d := zieglerNichols(k[i], t[i], l[i])
		kp[i] = p * (1 + noise[3*i])
		ki[i] = in * (1 + noise[3*i+1])
		kd[i] = d * (1 + noise[3*i+2])
	}
	return datasets.NewFrame(
		append(append([]string{}, pidFeatures...), pidTargets...),
		[][]float64{k, t, l, kp, ki, kd},
	)
}

func runPIDGains(ctx context.Context, env *Env, rng *rand.Rand, df *datasets.Frame, r *Result) error {
	X, err := df.Matrix(pidFeatures...)
	if err != nil {
		return err
	}
	Y, err := df.Matrix(pidTargets...)
	if err != nil {
		return err
	}
	split, err := model_selection.TrainTestSplit(X, Y, 0.2, rng)
	if err != nil {
		return err
	}

	scores := map[string][]float64{}
	models := []string{"LinearRegression", "DecisionTreeRegressor", "RandomForestRegressor"}

	// one multi-output linear model
	lr := linear_model.NewLinearRegression()
	if err := lr.Fit(split.XTrain, split.YTrain); err != nil {
		return errors.Wrap(err, "fit LinearRegression")
	}
	lrPred, err := lr.Predict(split.XTest)
	if err != nil {
		return err
	}
	for j := range pidTargets {
		s, err := metrics.R2Score(metrics.ColumnVec(split.YTest, j), metrics.ColumnVec(lrPred, j))
		if err != nil {
			return err
		}
		scores["LinearRegression"] = append(scores["LinearRegression"], s)
	}

	// trees are single-output, so one model per target
	forestPreds := make([][]float64, len(pidTargets))
	for j, target := range pidTargets {
		if err := ctx.Err(); err != nil {
			return err
		}
		yTrain := mat.NewDense(len(col(split.YTrain, j)), 1, col(split.YTrain, j))
		yTest := mat.NewDense(len(col(split.YTest, j)), 1, col(split.YTest, j))

		perTarget := []struct {
			name string
			m    model.Regressor
		}{
			{"DecisionTreeRegressor", tree.NewDecisionTreeRegressor(tree.WithMaxDepth(8), tree.WithRandomState(env.Seed))},
			{"RandomForestRegressor", ensemble.NewRandomForestRegressor(
				ensemble.WithNEstimators(50),
				ensemble.WithRandomState(env.Seed),
			)},
		}
		for _, entry := range perTarget {
			if err := entry.m.Fit(split.XTrain, yTrain); err != nil {
				return errors.Wrapf(err, "fit %s for %s", entry.name, target)
			}
			pred, err := entry.m.Predict(split.XTest)
			if err != nil {
				return err
			}
			s, err := metrics.R2ScoreMatrix(yTest, pred)
			if err != nil {
				return err
			}
			scores[entry.name] = append(scores[entry.name], s)
			if entry.name == "RandomForestRegressor" {
				forestPreds[j] = col(pred, 0)
			}
		}
	}

	for _, m := range models {
		for j, target := range pidTargets {
			r.AddMetric(fmt.Sprintf("%s R² %s", m, target), scores[m][j])
		}
	}
	r.AddSection("R² by target", scoreTable(pidTargets, scores, models))

	for j, target := range pidTargets {
		truth, pred := col(split.YTest, j), forestPreds[j]
		file := fmt.Sprintf("pid_%s.png", target)
		if err := env.plot(r, file, func() (*plot.Plot, error) {
			return plotting.ScatterTruthVsPred("RandomForestRegressor: "+target, truth, pred)
		}); err != nil {
			return err
		}
	}
	return nil
}
