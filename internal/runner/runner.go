// Package runner executes case studies concurrently and writes their reports under
// <out>/<run-id>/<case>/.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/YuminosukeSato/casebook/casestudy"
	"github.com/YuminosukeSato/casebook/internal/config"
	"github.com/YuminosukeSato/casebook/pkg/errors"
	"github.com/YuminosukeSato/casebook/pkg/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Outcome is the fate of one case study within a run.
type Outcome struct {
	Name     string
	Dir      string
	Result   *casestudy.Result
	Err      error
	Duration time.Duration
}

// Summary collects the outcomes of a run in the order the studies were requested.
type Summary struct {
	RunID    string
	Dir      string
	Outcomes []Outcome
}

// Failed returns the outcomes that ended in an error.
func (s *Summary) Failed() []Outcome {
	var out []Outcome
	for _, o := range s.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Runner runs case studies with the settings of one invocation.
type Runner struct {
	cfg    *config.Config
	logger log.Logger
	runID  string
}

// New creates a runner with a fresh time-ordered run id.
func New(cfg *config.Config, logger log.Logger) *Runner {
	if logger == nil {
		logger = log.GetLogger()
	}
	return &Runner{cfg: cfg, logger: logger, runID: newRunID()}
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

// RunID returns the id used for the output directory.
func (r *Runner) RunID() string { return r.runID }

// Run executes the studies with at most cfg.Jobs in flight. A failing study does not
// stop the others; its error is recorded in its Outcome. The returned error is non-nil
// only when the run itself could not proceed, e.g. on cancellation.
func (r *Runner) Run(ctx context.Context, studies []casestudy.CaseStudy) (*Summary, error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}
	if len(studies) == 0 {
		return nil, errors.NewValueError("runner.Run", "no case studies selected")
	}
	runDir := filepath.Join(r.cfg.OutDir, r.runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create %s", runDir)
	}

	logger := r.logger.With(log.ComponentKey, "runner", log.RunIDKey, r.runID)
	logger.Info("run started",
		"case_studies", len(studies),
		"jobs", r.cfg.Jobs,
		log.RandomSeedKey, r.cfg.Seed,
	)
	start := time.Now()

	summary := &Summary{RunID: r.runID, Dir: runDir, Outcomes: make([]Outcome, len(studies))}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Jobs)
	for i, cs := range studies {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			o := r.runOne(gctx, logger, runDir, cs)
			mu.Lock()
			summary.Outcomes[i] = o
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, errors.Wrap(err, "run interrupted")
	}
	if err := ctx.Err(); err != nil {
		return summary, errors.Wrap(err, "run interrupted")
	}

	if err := writeIndex(runDir, summary); err != nil {
		return summary, err
	}
	logger.Info("run finished",
		"failed", len(summary.Failed()),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return summary, nil
}

func (r *Runner) runOne(ctx context.Context, parent log.Logger, runDir string, cs casestudy.CaseStudy) Outcome {
	logger := parent.With(log.CaseStudyKey, cs.Name)
	o := Outcome{Name: cs.Name, Dir: filepath.Join(runDir, cs.Name)}
	start := time.Now()

	o.Err = errors.SafeExecute(cs.Name, func() error {
		if err := os.MkdirAll(o.Dir, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", o.Dir)
		}
		env := &casestudy.Env{
			Seed:       r.cfg.Seed,
			OutDir:     o.Dir,
			Plots:      r.cfg.Plots,
			ExportData: r.cfg.ExportData,
			Logger:     logger,
		}
		res, err := cs.Run(ctx, env)
		if err != nil {
			return err
		}
		o.Result = res
		return writeReport(o.Dir, res)
	})
	o.Duration = time.Since(start)

	if o.Err != nil {
		logger.Error("case study failed", o.Err, log.DurationMsKey, o.Duration.Milliseconds())
		return o
	}
	logger.Info("case study finished",
		"metrics", len(o.Result.Metrics),
		"artifacts", len(o.Result.Artifacts),
		log.DurationMsKey, o.Duration.Milliseconds(),
	)
	return o
}

// writeIndex writes index.md and index.html linking every case study report.
func writeIndex(runDir string, s *Summary) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# casebook run %s\n\n", s.RunID)
	b.WriteString("| case study | status | seconds | headline |\n|---|---|---:|---|\n")
	for _, o := range s.Outcomes {
		status, headline := "ok", ""
		if o.Err != nil {
			status = "failed"
			headline = strings.ReplaceAll(o.Err.Error(), "|", "/")
		} else if o.Result != nil && len(o.Result.Metrics) > 0 {
			m := o.Result.Metrics[0]
			headline = fmt.Sprintf("%s = %.4f", m.Name, m.Value)
		}
		link := o.Name
		if o.Err == nil {
			link = fmt.Sprintf("[%s](%s/report.html)", o.Name, o.Name)
		}
		fmt.Fprintf(&b, "| %s | %s | %.2f | %s |\n", link, status, o.Duration.Seconds(), headline)
	}
	return writeMarkdown(runDir, "index", "casebook run "+s.RunID, b.String())
}
