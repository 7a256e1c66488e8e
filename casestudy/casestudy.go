// Package casestudy holds the notebooks: small scripts that simulate or hand-craft a
// dataset, fit library estimators, score them and plot the outcome. A case study owns
// no algorithm; it only wires datasets, sklearn, metrics and plotting together.
package casestudy

import (
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/casebook/core/model"
	"github.com/YuminosukeSato/casebook/datasets"
	"github.com/YuminosukeSato/casebook/pkg/errors"
	"github.com/YuminosukeSato/casebook/pkg/log"
	"github.com/YuminosukeSato/casebook/plotting"
	"gonum.org/v1/plot"
)

// Env is what a case study may touch while it runs.
type Env struct {
	Seed       uint64
	OutDir     string // must exist; artifacts are written here
	Plots      bool
	ExportData bool
	Logger     log.Logger
}

func (e *Env) logger() log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.GetLogger()
}

// plot builds and saves a chart when plots are enabled. build is not called otherwise.
func (e *Env) plot(r *Result, file string, build func() (*plot.Plot, error)) error {
	if !e.Plots {
		return nil
	}
	p, err := build()
	if err != nil {
		return errors.Wrapf(err, "plot %s", file)
	}
	if err := plotting.Save(p, filepath.Join(e.OutDir, file)); err != nil {
		return err
	}
	r.Artifacts = append(r.Artifacts, file)
	return nil
}

// exportFrame writes data.csv and data.xlsx when data export is enabled.
func (e *Env) exportFrame(r *Result, f *datasets.Frame) error {
	if !e.ExportData {
		return nil
	}
	if err := f.WriteCSV(filepath.Join(e.OutDir, "data.csv")); err != nil {
		return err
	}
	if err := f.WriteXLSX(filepath.Join(e.OutDir, "data.xlsx")); err != nil {
		return err
	}
	r.Artifacts = append(r.Artifacts, "data.csv", "data.xlsx")
	return nil
}

func (e *Env) writeWeights(r *Result, m model.WeightExporter) error {
	w, err := m.ExportWeights()
	if err != nil {
		return err
	}
	data, err := w.ToJSON()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(e.OutDir, "weights.json"), data, 0o644); err != nil {
		return errors.Wrap(err, "write weights.json")
	}
	r.Artifacts = append(r.Artifacts, "weights.json")
	return nil
}

// RunFunc is the body of a case study. It receives the generated dataset and the rng
// Data drew from, and fills r.
type RunFunc func(ctx context.Context, env *Env, rng *rand.Rand, df *datasets.Frame, r *Result) error

// CaseStudy is one registered notebook.
type CaseStudy struct {
	Name  string
	Title string

	// Data generates the study's dataset. It is the first consumer of rng, so
	// Data(datasets.NewRand(seed)) reproduces what Run sees for the same seed.
	Data func(rng *rand.Rand) (*datasets.Frame, error)

	run RunFunc
}

// New assembles a case study that is not part of the built-in registry.
func New(name, title string, data func(rng *rand.Rand) (*datasets.Frame, error), run RunFunc) CaseStudy {
	return CaseStudy{Name: name, Title: title, Data: data, run: run}
}

// Run executes the study end to end.
func (cs CaseStudy) Run(ctx context.Context, env *Env) (*Result, error) {
	rng := datasets.NewRand(env.Seed)
	df, err := cs.Data(rng)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: generate data", cs.Name)
	}
	r := &Result{Name: cs.Name, Title: cs.Title}
	if err := describeInto(r, df); err != nil {
		return nil, errors.Wrapf(err, "%s: describe", cs.Name)
	}
	if err := env.exportFrame(r, df); err != nil {
		return nil, errors.Wrapf(err, "%s: export data", cs.Name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := cs.run(ctx, env, rng, df, r); err != nil {
		return nil, errors.Wrapf(err, "%s", cs.Name)
	}
	env.logger().Debug("case study finished",
		log.CaseStudyKey, cs.Name,
		"metrics", len(r.Metrics),
		"artifacts", len(r.Artifacts),
	)
	return r, nil
}

func describeInto(r *Result, df *datasets.Frame) error {
	summary, err := df.Describe()
	if err != nil {
		return err
	}
	r.AddSection("Dataset", summary.String())
	return nil
}

var registry = []CaseStudy{
	salaryStudy,
	pidGainsStudy,
	examPassStudy,
	playTennisStudy,
	gaussianNBStudy,
	treePruningStudy,
	ensemblesStudy,
	boostingRegressionStudy,
}

// All returns every case study in notebook order.
func All() []CaseStudy {
	out := make([]CaseStudy, len(registry))
	copy(out, registry)
	return out
}

// Lookup finds a case study by name.
func Lookup(name string) (CaseStudy, error) {
	for _, cs := range registry {
		if cs.Name == name {
			return cs, nil
		}
	}
	return CaseStudy{}, errors.NewValidationError("case_study", "unknown name", name)
}

// Names lists the registered names in notebook order.
func Names() []string {
	names := make([]string, len(registry))
	for i, cs := range registry {
		names[i] = cs.Name
	}
	return names
}
