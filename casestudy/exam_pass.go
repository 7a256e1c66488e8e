package casestudy

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/casebook/datasets"
	"github.com/YuminosukeSato/casebook/model_selection"
	"github.com/YuminosukeSato/casebook/pkg/errors"
	"github.com/YuminosukeSato/casebook/plotting"
	"github.com/YuminosukeSato/casebook/sklearn/linear_model"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
)

var examPassStudy = CaseStudy{
	Name:  "exam-pass",
	Title: "Passing an exam from hours studied (logistic regression)",
	Data:  examPassData,
	run:   runExamPass,
}

func sigmoid(z float64) float64 { return 1 / (1 + math.Exp(-z)) }

func examPassData(rng *rand.Rand) (*datasets.Frame, error) {
	const n = 200
	hours := datasets.Uniform(rng, n, 0, 10)
	p := make([]float64, n)
	for i, h := range hours {
		p[i] = sigmoid(1.5 * (h - 5))
	}
	pass := datasets.Bernoulli(rng, p)
	return datasets.NewFrame([]string{"hours", "pass"}, [][]float64{hours, pass})
}

func runExamPass(_ context.Context, env *Env, rng *rand.Rand, df *datasets.Frame, r *Result) error {
	X, err := df.Matrix("hours")
	if err != nil {
		return err
	}
	y, err := df.Matrix("pass")
	if err != nil {
		return err
	}
	split, err := model_selection.TrainTestSplit(X, y, 0.25, rng, model_selection.WithStratify(true))
	if err != nil {
		return err
	}

	cv, err := model_selection.CrossValScore(func() model_selection.ScoredEstimator {
		return linear_model.NewLogisticRegression()
	}, X, y, model_selection.NewStratifiedKFold(5, true, env.Seed))
	if err != nil {
		return errors.Wrap(err, "cross-validate LogisticRegression")
	}
	r.AddMetric("5-fold CV accuracy", cv.Mean())
	r.AddMetric("5-fold CV accuracy std", cv.Std())

	clf := linear_model.NewLogisticRegression()
	if err := clf.Fit(split.XTrain, split.YTrain); err != nil {
		return errors.Wrap(err, "fit LogisticRegression")
	}
	pred, err := clf.Predict(split.XTest)
	if err != nil {
		return err
	}
	if _, err := evaluateClassifier(r, "LogisticRegression", split.YTest, pred, []string{"fail", "pass"}); err != nil {
		return err
	}
	coef, intercept := clf.Coef()[0][0], clf.Intercept()[0]
	r.AddMetric("coefficient", coef)
	r.AddMetric("intercept", intercept)
	if coef != 0 {
		r.AddMetric("hours for 50% pass", -intercept/coef)
	}

	return env.plot(r, "pass_probability.png", func() (*plot.Plot, error) {
		const points = 101
		grid := mat.NewDense(points, 1, nil)
		xs := make([]float64, points)
		for i := range xs {
			xs[i] = 10 * float64(i) / (points - 1)
			grid.Set(i, 0, xs[i])
		}
		proba, err := clf.PredictProba(grid)
		if err != nil {
			return nil, err
		}
		return plotting.LineSeries("P(pass | hours)", "hours", "probability",
			plotting.Series{Name: "observed", X: col(split.XTest, 0), Y: col(split.YTest, 0), Kind: plotting.Points},
			plotting.Series{Name: "P(pass)", X: xs, Y: col(proba, 1), Kind: plotting.Line},
		)
	})
}
