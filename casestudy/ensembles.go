package casestudy

import (
	"context"
	"math/rand/v2"
	"slices"

	"github.com/YuminosukeSato/casebook/core/model"
	"github.com/YuminosukeSato/casebook/datasets"
	"github.com/YuminosukeSato/casebook/metrics"
	"github.com/YuminosukeSato/casebook/pkg/errors"
	"github.com/YuminosukeSato/casebook/plotting"
	"github.com/YuminosukeSato/casebook/sklearn/ensemble"
	"github.com/YuminosukeSato/casebook/sklearn/tree"
	"github.com/YuminosukeSato/casebook/sklearn/xgboost"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
)

var ensemblesStudy = CaseStudy{
	Name:  "ensembles",
	Title: "Bagging, forests and boosting on two moons",
	Data:  moonsData(400, 0.3),
	run:   runEnsembles,
}

// evalFitter records a validation curve while fitting.
type evalFitter interface {
	FitWithEval(X, y, XEval, yEval mat.Matrix) error
}

func runEnsembles(ctx context.Context, env *Env, rng *rand.Rand, df *datasets.Frame, r *Result) error {
	split, err := moonsSplit(df, rng)
	if err != nil {
		return err
	}
	seed := env.Seed

	ada := ensemble.NewAdaBoostClassifier(
		ensemble.WithNEstimators(100),
		ensemble.WithLearningRate(0.5),
		ensemble.WithRandomState(seed),
	)
	xgb := xgboost.NewXGBClassifier(
		xgboost.WithNEstimators(100),
		xgboost.WithLearningRate(0.1),
		xgboost.WithMaxDepth(3),
		xgboost.WithSeed(seed),
	)
	models := []struct {
		name string
		m    model.Classifier
	}{
		{"DecisionTree", tree.NewDecisionTreeClassifier(tree.WithMaxDepth(5), tree.WithRandomState(seed))},
		{"Bagging", ensemble.NewBaggingClassifier(ensemble.WithNEstimators(50), ensemble.WithRandomState(seed))},
		{"RandomForest", ensemble.NewRandomForestClassifier(ensemble.WithNEstimators(100), ensemble.WithRandomState(seed))},
		{"AdaBoost", ada},
		{"GradientBoosting", ensemble.NewGradientBoostingClassifier(ensemble.WithRandomState(seed))},
		{"XGBoost", xgb},
	}

	scores := make(map[string][]float64, len(models))
	order := make([]string, len(models))
	best := 0
	for i, entry := range models {
		if err := ctx.Err(); err != nil {
			return err
		}
		order[i] = entry.name
		if ev, ok := entry.m.(evalFitter); ok {
			err = ev.FitWithEval(split.XTrain, split.YTrain, split.XTest, split.YTest)
		} else {
			err = entry.m.Fit(split.XTrain, split.YTrain)
		}
		if err != nil {
			return errors.Wrapf(err, "fit %s", entry.name)
		}
		train, err := entry.m.Score(split.XTrain, split.YTrain)
		if err != nil {
			return err
		}
		test, err := entry.m.Score(split.XTest, split.YTest)
		if err != nil {
			return err
		}
		scores[entry.name] = []float64{train, test}
		r.AddMetric(entry.name+" accuracy", test)
		if test > scores[models[best].name][1] {
			best = i
		}
	}
	r.AddSection("Accuracy", scoreTable([]string{"train", "test"}, scores, order))
	r.AddMetric("AdaBoost rounds", float64(len(ada.EstimatorWeights())))

	bestName, bestModel := models[best].name, models[best].m
	pred, err := bestModel.Predict(split.XTest)
	if err != nil {
		return err
	}
	if _, err := evaluateClassifier(r, bestName, split.YTest, pred, nil); err != nil {
		return err
	}
	proba, err := bestModel.PredictProba(split.XTest)
	if err != nil {
		return err
	}
	if pos := slices.Index(bestModel.Classes(), 1); pos >= 0 {
		auc, err := metrics.AUC(metrics.ColumnVec(split.YTest, 0), metrics.ColumnVec(proba, pos))
		if err != nil {
			return err
		}
		r.AddMetric(bestName+" test AUC", auc)
	}

	stagedTrain, err := ada.StagedScore(split.XTrain, split.YTrain)
	if err != nil {
		return err
	}
	stagedTest, err := ada.StagedScore(split.XTest, split.YTest)
	if err != nil {
		return err
	}
	if err := env.plot(r, "adaboost_staged.png", func() (*plot.Plot, error) {
		rounds := make([]float64, len(stagedTrain))
		for i := range rounds {
			rounds[i] = float64(i + 1)
		}
		return plotting.LineSeries("AdaBoost staged accuracy", "boosting round", "accuracy",
			plotting.Series{Name: "train", X: rounds, Y: stagedTrain, Kind: plotting.Line},
			plotting.Series{Name: "test", X: rounds, Y: stagedTest, Kind: plotting.Line},
		)
	}); err != nil {
		return err
	}

	hist := xgb.EvalHistory()
	if len(hist.Validation) > 0 {
		r.AddMetric("XGBoost final validation "+hist.Metric, hist.Validation[len(hist.Validation)-1])
		if err := env.plot(r, "xgboost_logloss.png", func() (*plot.Plot, error) {
			rounds := make([]float64, len(hist.Train))
			for i := range rounds {
				rounds[i] = float64(i + 1)
			}
			return plotting.LineSeries("XGBoost "+hist.Metric, "boosting round", hist.Metric,
				plotting.Series{Name: "train", X: rounds, Y: hist.Train, Kind: plotting.Line},
				plotting.Series{Name: "validation", X: rounds, Y: hist.Validation, Kind: plotting.Line},
			)
		}); err != nil {
			return err
		}
	}

	return env.plot(r, "best_predictions.png", func() (*plot.Plot, error) {
		return plotting.ScatterByClass(bestName+" predictions on the test set", split.XTest, labelsOf(pred), nil)
	})
}
