package plotting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestLineSeriesSave(t *testing.T) {
	p, err := LineSeries("accuracy", "alpha", "score",
		Series{Name: "train", X: []float64{0, 1, 2}, Y: []float64{1, 0.9, 0.8}},
		Series{Name: "test", X: []float64{0, 1, 2}, Y: []float64{0.7, 0.8, 0.75}, Kind: LinePoints},
	)
	require.NoError(t, err)

	dir := t.TempDir()
	for _, name := range []string{"a.png", "a.svg"} {
		path := filepath.Join(dir, name)
		require.NoError(t, Save(p, path))
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
	assert.Error(t, Save(p, filepath.Join(dir, "a.gif")))
}

func TestLineSeriesMismatch(t *testing.T) {
	_, err := LineSeries("bad", "x", "y", Series{X: []float64{1, 2}, Y: []float64{1}})
	assert.Error(t, err)
}

func TestScatterTruthVsPred(t *testing.T) {
	p, err := ScatterTruthVsPred("fit", []float64{1, 2, 3}, []float64{1.1, 1.9, 3.2})
	require.NoError(t, err)
	assert.Equal(t, "fit", p.Title.Text)

	_, err = ScatterTruthVsPred("empty", nil, nil)
	assert.Error(t, err)
}

func TestScatterByClass(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{0, 0, 1, 1, 5, 5, 6, 6})
	p, err := ScatterByClass("blobs", X, []int{1, 1, 0, 0}, map[int]string{0: "left"})
	require.NoError(t, err)
	require.NoError(t, Save(p, filepath.Join(t.TempDir(), "blobs.png")))

	_, err = ScatterByClass("bad", mat.NewDense(2, 1, nil), []int{0, 1}, nil)
	assert.Error(t, err)
	_, err = ScatterByClass("bad", X, []int{0}, nil)
	assert.Error(t, err)
}
