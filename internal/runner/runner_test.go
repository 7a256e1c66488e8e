package runner

import (
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/YuminosukeSato/casebook/casestudy"
	"github.com/YuminosukeSato/casebook/datasets"
	"github.com/YuminosukeSato/casebook/internal/config"
	"github.com/YuminosukeSato/casebook/pkg/errors"
	"github.com/YuminosukeSato/casebook/pkg/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tinyData(rng *rand.Rand) (*datasets.Frame, error) {
	return datasets.NewFrame([]string{"x"}, [][]float64{datasets.Uniform(rng, 10, 0, 1)})
}

func okStudy(name string) casestudy.CaseStudy {
	return casestudy.New(name, "ok "+name, tinyData,
		func(_ context.Context, _ *casestudy.Env, _ *rand.Rand, df *datasets.Frame, r *casestudy.Result) error {
			r.AddMetric("rows", float64(df.NRows()))
			return nil
		})
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.OutDir = t.TempDir()
	cfg.Jobs = 2
	cfg.Plots = false
	return cfg
}

func TestRunWritesReports(t *testing.T) {
	cfg := testConfig(t)
	logger, _ := log.NewTestLogger(log.LevelDebug)
	r := New(cfg, logger)
	_, err := uuid.Parse(r.RunID())
	require.NoError(t, err)

	summary, err := r.Run(context.Background(), []casestudy.CaseStudy{okStudy("a"), okStudy("b"), okStudy("c")})
	require.NoError(t, err)
	assert.Empty(t, summary.Failed())
	assert.Equal(t, filepath.Join(cfg.OutDir, r.RunID()), summary.Dir)

	for i, name := range []string{"a", "b", "c"} {
		o := summary.Outcomes[i]
		assert.Equal(t, name, o.Name)
		require.NotNil(t, o.Result)
		for _, f := range []string{"report.md", "report.html"} {
			assert.FileExists(t, filepath.Join(summary.Dir, name, f))
			assert.Contains(t, o.Result.Artifacts, f)
		}
	}
	html, err := os.ReadFile(filepath.Join(summary.Dir, "a", "report.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "<title>ok a</title>")
	assert.Contains(t, string(html), "<table>")

	assert.FileExists(t, filepath.Join(summary.Dir, "index.md"))
	assert.FileExists(t, filepath.Join(summary.Dir, "index.html"))
	assert.True(t, logger.ContainsMessage("run finished"))
	assert.True(t, logger.ContainsField(log.RunIDKey, r.RunID()))
}

func TestRunIsolatesFailures(t *testing.T) {
	failing := casestudy.New("fails", "fails", tinyData,
		func(context.Context, *casestudy.Env, *rand.Rand, *datasets.Frame, *casestudy.Result) error {
			return errors.NewValueError("fails", "boom")
		})
	panicking := casestudy.New("panics", "panics", tinyData,
		func(context.Context, *casestudy.Env, *rand.Rand, *datasets.Frame, *casestudy.Result) error {
			panic("kaboom")
		})

	logger, _ := log.NewTestLogger(log.LevelInfo)
	summary, err := New(testConfig(t), logger).Run(context.Background(),
		[]casestudy.CaseStudy{failing, okStudy("fine"), panicking})
	require.NoError(t, err)

	failed := summary.Failed()
	require.Len(t, failed, 2)
	assert.Equal(t, "fails", failed[0].Name)
	var ve *errors.ValueError
	assert.True(t, errors.As(failed[0].Err, &ve))

	assert.Equal(t, "panics", failed[1].Name)
	var pe *errors.PanicError
	assert.True(t, errors.As(failed[1].Err, &pe))

	assert.Nil(t, summary.Outcomes[1].Err)
	assert.True(t, logger.ContainsMessage("case study failed"))
}

func TestRunRealCaseStudy(t *testing.T) {
	cs, err := casestudy.Lookup("salary")
	require.NoError(t, err)

	cfg := testConfig(t)
	cfg.Plots = true
	summary, err := New(cfg, nil).Run(context.Background(), []casestudy.CaseStudy{cs})
	require.NoError(t, err)
	require.Empty(t, summary.Failed())

	dir := summary.Outcomes[0].Dir
	assert.FileExists(t, filepath.Join(dir, "salary.png"))
	assert.FileExists(t, filepath.Join(dir, "weights.json"))
	assert.FileExists(t, filepath.Join(dir, "report.html"))
}

func TestRunValidation(t *testing.T) {
	cfg := testConfig(t)
	_, err := New(cfg, nil).Run(context.Background(), nil)
	assert.Error(t, err)

	cfg.Jobs = 0
	_, err = New(cfg, nil).Run(context.Background(), []casestudy.CaseStudy{okStudy("a")})
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(testConfig(t), nil).Run(ctx, []casestudy.CaseStudy{okStudy("a")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunIDsAreUnique(t *testing.T) {
	cfg := testConfig(t)
	assert.NotEqual(t, New(cfg, nil).RunID(), New(cfg, nil).RunID())
}
