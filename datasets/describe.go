package datasets

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/YuminosukeSato/casebook/pkg/errors"
	"github.com/montanaflynn/stats"
)

// ColumnSummary holds the describe() statistics of one column.
type ColumnSummary struct {
	Count  int
	Mean   float64
	Std    float64 // sample standard deviation
	Min    float64
	Q25    float64
	Median float64
	Q75    float64
	Max    float64
}

// Summary is the describe() table of a frame.
type Summary struct {
	Names   []string
	Columns []ColumnSummary
}

// Describe computes count, mean, std, min, quartiles and max for every column.
func (f *Frame) Describe() (*Summary, error) {
	if f.NRows() == 0 {
		return nil, errors.NewModelError("Frame.Describe", "empty frame", errors.ErrEmptyData)
	}
	s := &Summary{Names: f.Names()}
	for j, col := range f.cols {
		cs, err := describeColumn(col)
		if err != nil {
			return nil, errors.Wrapf(err, "describe %s", f.names[j])
		}
		s.Columns = append(s.Columns, cs)
	}
	return s, nil
}

func describeColumn(col []float64) (ColumnSummary, error) {
	data := stats.Float64Data(col)
	cs := ColumnSummary{Count: len(col)}
	var err error
	if cs.Mean, err = stats.Mean(data); err != nil {
		return cs, err
	}
	if len(col) > 1 {
		if cs.Std, err = stats.StandardDeviationSample(data); err != nil {
			return cs, err
		}
	}
	if cs.Min, err = stats.Min(data); err != nil {
		return cs, err
	}
	if cs.Max, err = stats.Max(data); err != nil {
		return cs, err
	}
	if cs.Median, err = stats.Median(data); err != nil {
		return cs, err
	}
	sorted := append(stats.Float64Data(nil), data...)
	sort.Sort(sorted)
	cs.Q25 = quantile(sorted, 0.25)
	cs.Q75 = quantile(sorted, 0.75)
	return cs, nil
}

// quantile interpolates linearly between the order statistics around (n-1)*p, which
// is what pandas reports in describe(). sorted must be ascending and non-empty.
func quantile(sorted stats.Float64Data, p float64) float64 {
	h := float64(sorted.Len()-1) * p
	lo := int(math.Floor(h))
	if lo+1 >= sorted.Len() {
		return sorted.Get(lo)
	}
	return sorted.Get(lo) + (h-float64(lo))*(sorted.Get(lo+1)-sorted.Get(lo))
}

// String renders the summary with statistics as rows and columns as columns.
func (s *Summary) String() string {
	width := 12
	for _, name := range s.Names {
		width = max(width, len(name)+2)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-7s", "")
	for _, name := range s.Names {
		fmt.Fprintf(&b, "%*s", width, name)
	}
	b.WriteString("\n")

	rows := []struct {
		label string
		get   func(ColumnSummary) float64
	}{
		{"count", func(c ColumnSummary) float64 { return float64(c.Count) }},
		{"mean", func(c ColumnSummary) float64 { return c.Mean }},
		{"std", func(c ColumnSummary) float64 { return c.Std }},
		{"min", func(c ColumnSummary) float64 { return c.Min }},
		{"25%", func(c ColumnSummary) float64 { return c.Q25 }},
		{"50%", func(c ColumnSummary) float64 { return c.Median }},
		{"75%", func(c ColumnSummary) float64 { return c.Q75 }},
		{"max", func(c ColumnSummary) float64 { return c.Max }},
	}
	for _, r := range rows {
		fmt.Fprintf(&b, "%-7s", r.label)
		for _, c := range s.Columns {
			fmt.Fprintf(&b, "%*.4f", width, r.get(c))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Correlation returns the Pearson correlation of two columns.
func (f *Frame) Correlation(a, b string) (float64, error) {
	x, err := f.Column(a)
	if err != nil {
		return 0, err
	}
	y, err := f.Column(b)
	if err != nil {
		return 0, err
	}
	return stats.Pearson(x, y)
}
