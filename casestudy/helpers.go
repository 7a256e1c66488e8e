package casestudy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/YuminosukeSato/casebook/core/model"
	"github.com/YuminosukeSato/casebook/metrics"
	"github.com/YuminosukeSato/casebook/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

func col(m mat.Matrix, j int) []float64 {
	return mat.Col(nil, j, m)
}

func labelsOf(m mat.Matrix) []int {
	c := col(m, 0)
	out := make([]int, len(c))
	for i, v := range c {
		out[i] = int(v)
	}
	return out
}

// evaluateClassifier adds "<prefix> accuracy" plus confusion matrix and report sections.
// names, when non-nil, labels the classes in sorted label order.
func evaluateClassifier(r *Result, prefix string, yTrue, yPred mat.Matrix, names []string) (float64, error) {
	t, p := metrics.ColumnVec(yTrue, 0), metrics.ColumnVec(yPred, 0)

	acc, err := metrics.Accuracy(t, p)
	if err != nil {
		return 0, errors.Wrapf(err, "%s accuracy", prefix)
	}
	r.AddMetric(prefix+" accuracy", acc)

	cm, labels, err := metrics.ConfusionMatrix(t, p)
	if err != nil {
		return 0, errors.Wrapf(err, "%s confusion matrix", prefix)
	}
	cmNames := metrics.IntLabels(labels)
	reportNames := []string(nil)
	if len(names) == len(labels) {
		cmNames = names
		reportNames = names
	}
	r.AddSection(prefix+" confusion matrix", metrics.FormatConfusionMatrix(cm, cmNames))

	report, err := metrics.ClassificationReport(t, p, reportNames, 2)
	if err != nil {
		return 0, errors.Wrapf(err, "%s classification report", prefix)
	}
	r.AddSection(prefix+" classification report", report.String())
	return acc, nil
}

// setParam updates one hyperparameter of m by its scikit-learn name.
func setParam(m model.ParamAccessor, key string, value interface{}) error {
	if err := m.SetParams(map[string]interface{}{key: value}); err != nil {
		return errors.Wrapf(err, "set %s", key)
	}
	return nil
}

// scoreTable renders rows of scores as an aligned text table with one column per header.
func scoreTable(headers []string, rows map[string][]float64, order []string) string {
	if order == nil {
		for name := range rows {
			order = append(order, name)
		}
		sort.Strings(order)
	}
	width := len("model")
	for _, name := range order {
		width = max(width, len(name))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-*s", width, "model")
	for _, h := range headers {
		fmt.Fprintf(&b, " %10s", h)
	}
	b.WriteString("\n")
	for _, name := range order {
		fmt.Fprintf(&b, "%-*s", width, name)
		for _, v := range rows[name] {
			fmt.Fprintf(&b, " %10.4f", v)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// argsort returns the indices that sort x ascending.
func argsort(x []float64) []int {
	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return x[idx[a]] < x[idx[b]] })
	return idx
}

func permute(x []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = x[j]
	}
	return out
}
