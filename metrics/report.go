package metrics

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/casebook/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ReportRow is one line of a classification report.
type ReportRow struct {
	Name      string
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Report is the structured form of a classification report.
type Report struct {
	Classes     []ReportRow
	Accuracy    float64
	MacroAvg    ReportRow
	WeightedAvg ReportRow
	Digits      int
}

// ClassificationReport builds per-class precision, recall, F1 and support together with
// accuracy, macro and support-weighted averages. targetNames, when non-nil, must have one
// entry per label in sorted label order.
func ClassificationReport(yTrue, yPred *mat.VecDense, targetNames []string, digits int) (*Report, error) {
	scores, err := PrecisionRecallFScore(yTrue, yPred)
	if err != nil {
		return nil, errors.Wrap(err, "ClassificationReport")
	}
	if targetNames != nil && len(targetNames) != len(scores.Labels) {
		return nil, errors.NewDimensionError("ClassificationReport", len(scores.Labels), len(targetNames), 1)
	}
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return nil, errors.Wrap(err, "ClassificationReport")
	}
	if digits <= 0 {
		digits = 2
	}

	rep := &Report{
		Accuracy:    acc,
		Digits:      digits,
		MacroAvg:    ReportRow{Name: "macro avg"},
		WeightedAvg: ReportRow{Name: "weighted avg"},
	}
	k := float64(len(scores.Labels))
	total := 0
	for i, label := range scores.Labels {
		name := strconv.Itoa(label)
		if targetNames != nil {
			name = targetNames[i]
		}
		row := ReportRow{
			Name:      name,
			Precision: scores.Precision[i],
			Recall:    scores.Recall[i],
			F1:        scores.F1[i],
			Support:   scores.Support[i],
		}
		rep.Classes = append(rep.Classes, row)

		total += row.Support
		w := float64(row.Support)
		rep.MacroAvg.Precision += row.Precision / k
		rep.MacroAvg.Recall += row.Recall / k
		rep.MacroAvg.F1 += row.F1 / k
		rep.WeightedAvg.Precision += row.Precision * w
		rep.WeightedAvg.Recall += row.Recall * w
		rep.WeightedAvg.F1 += row.F1 * w
	}
	rep.MacroAvg.Support = total
	rep.WeightedAvg.Support = total
	if total > 0 {
		rep.WeightedAvg.Precision /= float64(total)
		rep.WeightedAvg.Recall /= float64(total)
		rep.WeightedAvg.F1 /= float64(total)
	}
	return rep, nil
}

// String renders the report in the scikit-learn text layout.
func (r *Report) String() string {
	width := len(r.WeightedAvg.Name)
	for _, row := range r.Classes {
		if len(row.Name) > width {
			width = len(row.Name)
		}
	}
	digits := r.Digits
	if width < digits {
		width = digits
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%*s  %9s %9s %9s %9s\n\n", width, "", "precision", "recall", "f1-score", "support")

	writeRow := func(row ReportRow) {
		fmt.Fprintf(&b, "%*s  %9.*f %9.*f %9.*f %9d\n",
			width, row.Name, digits, row.Precision, digits, row.Recall, digits, row.F1, row.Support)
	}
	for _, row := range r.Classes {
		writeRow(row)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%*s  %9s %9s %9.*f %9d\n", width, "accuracy", "", "", digits, r.Accuracy, r.MacroAvg.Support)
	writeRow(r.MacroAvg)
	writeRow(r.WeightedAvg)
	return b.String()
}

// FormatConfusionMatrix renders cm with labels as row and column headers. Rows are true
// labels and columns are predictions.
func FormatConfusionMatrix(cm mat.Matrix, labels []string) string {
	width := len("true\\pred")
	for _, l := range labels {
		if len(l) > width {
			width = len(l)
		}
	}
	r, c := cm.Dims()
	cell := width
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if n := len(strconv.Itoa(int(cm.At(i, j)))); n > cell {
				cell = n
			}
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-*s", width, "true\\pred")
	for j := 0; j < c; j++ {
		fmt.Fprintf(&b, " %*s", cell, labelAt(labels, j))
	}
	b.WriteString("\n")
	for i := 0; i < r; i++ {
		fmt.Fprintf(&b, "%-*s", width, labelAt(labels, i))
		for j := 0; j < c; j++ {
			fmt.Fprintf(&b, " %*d", cell, int(cm.At(i, j)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func labelAt(labels []string, i int) string {
	if i < len(labels) {
		return labels[i]
	}
	return strconv.Itoa(i)
}

// IntLabels converts integer labels to their decimal strings.
func IntLabels(labels []int) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = strconv.Itoa(l)
	}
	return out
}
