package casestudy

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/YuminosukeSato/casebook/datasets"
	"github.com/YuminosukeSato/casebook/model_selection"
	"github.com/YuminosukeSato/casebook/pkg/errors"
	"github.com/YuminosukeSato/casebook/plotting"
	"github.com/YuminosukeSato/casebook/sklearn/tree"
	"gonum.org/v1/plot"
)

var treePruningStudy = CaseStudy{
	Name:  "tree-pruning",
	Title: "Cost-complexity pruning of a decision tree on two moons",
	Data:  moonsData(300, 0.3),
	run:   runTreePruning,
}

func moonsData(n int, noise float64) func(rng *rand.Rand) (*datasets.Frame, error) {
	return func(rng *rand.Rand) (*datasets.Frame, error) {
		X, y, err := datasets.MakeMoons(rng, n, noise)
		if err != nil {
			return nil, err
		}
		df, err := datasets.FromMatrix([]string{"x1", "x2"}, X)
		if err != nil {
			return nil, err
		}
		return df, df.AddColumn("label", col(y, 0))
	}
}

func moonsSplit(df *datasets.Frame, rng *rand.Rand) (*model_selection.Split, error) {
	X, err := df.Matrix("x1", "x2")
	if err != nil {
		return nil, err
	}
	y, err := df.Matrix("label")
	if err != nil {
		return nil, err
	}
	return model_selection.TrainTestSplit(X, y, 0.3, rng, model_selection.WithStratify(true))
}

func runTreePruning(ctx context.Context, env *Env, rng *rand.Rand, df *datasets.Frame, r *Result) error {
	split, err := moonsSplit(df, rng)
	if err != nil {
		return err
	}

	path, err := tree.NewDecisionTreeClassifier(tree.WithRandomState(env.Seed)).
		CostComplexityPruningPath(split.XTrain, split.YTrain)
	if err != nil {
		return errors.Wrap(err, "pruning path")
	}

	n := len(path.CCPAlphas)
	train, test, leaves := make([]float64, n), make([]float64, n), make([]float64, n)
	var table strings.Builder
	fmt.Fprintf(&table, "%12s %8s %8s %8s\n", "ccp_alpha", "leaves", "train", "test")
	best := 0
	dt := tree.NewDecisionTreeClassifier(tree.WithRandomState(env.Seed))
	for i, alpha := range path.CCPAlphas {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := setParam(dt, "ccp_alpha", alpha); err != nil {
			return err
		}
		if err := dt.Fit(split.XTrain, split.YTrain); err != nil {
			return errors.Wrapf(err, "fit tree with ccp_alpha=%g", alpha)
		}
		if train[i], err = dt.Score(split.XTrain, split.YTrain); err != nil {
			return err
		}
		if test[i], err = dt.Score(split.XTest, split.YTest); err != nil {
			return err
		}
		leaves[i] = float64(dt.GetNLeaves())
		fmt.Fprintf(&table, "%12.6f %8d %8.4f %8.4f\n", alpha, dt.GetNLeaves(), train[i], test[i])
		// ties go to the larger alpha, i.e. the smaller tree
		if test[i] >= test[best] {
			best = i
		}
	}

	r.AddMetric("pruning path length", float64(n))
	r.AddMetric("unpruned leaves", leaves[0])
	r.AddMetric("unpruned test accuracy", test[0])
	r.AddMetric("best ccp_alpha", path.CCPAlphas[best])
	r.AddMetric("best leaves", leaves[best])
	r.AddMetric("best train accuracy", train[best])
	r.AddMetric("best test accuracy", test[best])
	r.AddSection("Accuracy along the pruning path", table.String())

	if err := env.plot(r, "accuracy_vs_alpha.png", func() (*plot.Plot, error) {
		return plotting.LineSeries("Accuracy vs. ccp_alpha", "ccp_alpha", "accuracy",
			plotting.Series{Name: "train", X: path.CCPAlphas, Y: train, Kind: plotting.LinePoints},
			plotting.Series{Name: "test", X: path.CCPAlphas, Y: test, Kind: plotting.LinePoints},
		)
	}); err != nil {
		return err
	}
	return env.plot(r, "impurity_vs_alpha.png", func() (*plot.Plot, error) {
		return plotting.LineSeries("Total leaf impurity vs. effective alpha", "effective alpha", "total impurity",
			plotting.Series{Name: "impurity", X: path.CCPAlphas, Y: path.Impurities, Kind: plotting.LinePoints},
		)
	})
}
