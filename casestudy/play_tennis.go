package casestudy

import (
	"context"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"strings"

	"github.com/YuminosukeSato/casebook/datasets"
	"github.com/YuminosukeSato/casebook/pkg/errors"
	"github.com/YuminosukeSato/casebook/preprocessing"
	"github.com/YuminosukeSato/casebook/sklearn/naive_bayes"
	"github.com/YuminosukeSato/casebook/sklearn/tree"
	"gonum.org/v1/gonum/mat"
)

var playTennisStudy = CaseStudy{
	Name:  "play-tennis",
	Title: "Play tennis? Naive Bayes and an entropy tree on a categorical table",
	Data:  tennisData,
	run:   runPlayTennis,
}

var (
	tennisFeatures = []string{"Outlook", "Temperature", "Humidity", "Wind"}
	tennisTarget   = "Play"
)

func tennisData(*rand.Rand) (*datasets.Frame, error) {
	df, _, err := encodeTennis()
	return df, err
}

// encodeTennis label-encodes every column of the table. levels maps a column name to its
// sorted levels, so that code i of column c is levels[c][i].
func encodeTennis() (*datasets.Frame, map[string][]string, error) {
	table := datasets.PlayTennis()
	levels := make(map[string][]string, len(table.Columns))
	names := table.Names()
	cols := make([][]float64, len(names))
	for j, name := range names {
		c, err := table.Column(name)
		if err != nil {
			return nil, nil, err
		}
		le := preprocessing.NewLabelEncoder()
		codes, err := le.FitTransform(c.Values)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "encode %s", name)
		}
		levels[name] = le.Classes()
		cols[j] = make([]float64, len(codes))
		for i, code := range codes {
			cols[j][i] = float64(code)
		}
	}
	df, err := datasets.NewFrame(names, cols)
	return df, levels, err
}

func runPlayTennis(_ context.Context, env *Env, _ *rand.Rand, df *datasets.Frame, r *Result) error {
	_, levels, err := encodeTennis()
	if err != nil {
		return err
	}
	if env.ExportData {
		if err := datasets.PlayTennis().WriteCSV(filepath.Join(env.OutDir, "play_tennis.csv")); err != nil {
			return err
		}
		r.Artifacts = append(r.Artifacts, "play_tennis.csv")
	}

	codes, err := df.Matrix(tennisFeatures...)
	if err != nil {
		return err
	}
	y, err := df.Matrix(tennisTarget)
	if err != nil {
		return err
	}

	enc := preprocessing.NewOneHotEncoder()
	X, err := enc.FitTransform(codes)
	if err != nil {
		return errors.Wrap(err, "one-hot encode")
	}
	featureLevels := make([][]string, len(tennisFeatures))
	for j, f := range tennisFeatures {
		featureLevels[j] = levels[f]
	}
	names, err := enc.GetFeatureNamesOut(tennisFeatures, featureLevels)
	if err != nil {
		return err
	}
	r.AddSection("One-hot features", strings.Join(names, "\n"))

	classNames := levels[tennisTarget]

	nb := naive_bayes.NewMultinomialNB()
	if err := nb.Fit(X, y); err != nil {
		return errors.Wrap(err, "fit MultinomialNB")
	}
	nbPred, err := nb.Predict(X)
	if err != nil {
		return err
	}
	if _, err := evaluateClassifier(r, "MultinomialNB", y, nbPred, classNames); err != nil {
		return err
	}

	dt := tree.NewDecisionTreeClassifier(tree.WithCriterion("entropy"), tree.WithRandomState(env.Seed))
	if err := dt.Fit(X, y); err != nil {
		return errors.Wrap(err, "fit DecisionTreeClassifier")
	}
	dtPred, err := dt.Predict(X)
	if err != nil {
		return err
	}
	if _, err := evaluateClassifier(r, "DecisionTreeClassifier", y, dtPred, classNames); err != nil {
		return err
	}
	r.AddMetric("tree depth", float64(dt.GetDepth()))
	r.AddMetric("tree leaves", float64(dt.GetNLeaves()))
	text, err := dt.ExportText(names)
	if err != nil {
		return err
	}
	r.AddSection("Decision tree", text)

	// the textbook query day
	query := map[string]string{"Outlook": "Sunny", "Temperature": "Cool", "Humidity": "High", "Wind": "Strong"}
	row := mat.NewDense(1, len(tennisFeatures), nil)
	for j, f := range tennisFeatures {
		code := indexOf(levels[f], query[f])
		if code < 0 {
			return errors.NewValueError("play-tennis", fmt.Sprintf("unknown level %q for %s", query[f], f))
		}
		row.Set(0, j, float64(code))
	}
	qX, err := enc.Transform(row)
	if err != nil {
		return err
	}
	proba, err := nb.PredictProba(qX)
	if err != nil {
		return err
	}
	yes := indexOf(classNames, "Yes")
	if yes >= 0 {
		r.AddMetric("MultinomialNB P(Yes | Sunny, Cool, High, Strong)", proba.At(0, yes))
	}
	return nil
}

func indexOf(values []string, v string) int {
	for i, s := range values {
		if s == v {
			return i
		}
	}
	return -1
}
