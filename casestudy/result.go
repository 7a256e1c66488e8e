package casestudy

import (
	"fmt"
	"strings"
)

// Metric is one named score in a result table.
type Metric struct {
	Name  string
	Value float64
}

// Section is a block of preformatted text, such as a confusion matrix.
type Section struct {
	Heading string
	Body    string
}

// Result is what a case study reports back: ordered metrics, text sections and the
// artifact files it wrote, relative to its output directory.
type Result struct {
	Name      string
	Title     string
	Metrics   []Metric
	Sections  []Section
	Artifacts []string
}

// AddMetric appends a metric, keeping insertion order.
func (r *Result) AddMetric(name string, value float64) {
	r.Metrics = append(r.Metrics, Metric{Name: name, Value: value})
}

// AddSection appends a text section.
func (r *Result) AddSection(heading, body string) {
	r.Sections = append(r.Sections, Section{Heading: heading, Body: body})
}

// Metric returns the first metric with the given name.
func (r *Result) Metric(name string) (float64, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m.Value, true
		}
	}
	return 0, false
}

// Markdown renders the result as a standalone markdown document.
func (r *Result) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", r.Title)
	fmt.Fprintf(&b, "Case study `%s`.\n\n", r.Name)

	if len(r.Metrics) > 0 {
		b.WriteString("## Metrics\n\n| metric | value |\n|---|---:|\n")
		for _, m := range r.Metrics {
			fmt.Fprintf(&b, "| %s | %.4f |\n", m.Name, m.Value)
		}
		b.WriteString("\n")
	}

	for _, s := range r.Sections {
		fmt.Fprintf(&b, "## %s\n\n```\n%s\n```\n\n", s.Heading, strings.TrimRight(s.Body, "\n"))
	}

	if len(r.Artifacts) > 0 {
		b.WriteString("## Artifacts\n\n")
		for _, a := range r.Artifacts {
			if strings.HasSuffix(a, ".png") || strings.HasSuffix(a, ".svg") {
				fmt.Fprintf(&b, "![%s](%s)\n\n", a, a)
				continue
			}
			fmt.Fprintf(&b, "- [%s](%s)\n", a, a)
		}
		b.WriteString("\n")
	}
	return b.String()
}
