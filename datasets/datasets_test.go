package datasets

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameBasics(t *testing.T) {
	f, err := NewFrame([]string{"x", "y"}, [][]float64{{1, 2, 3}, {2, 4, 6}})
	require.NoError(t, err)
	assert.Equal(t, 3, f.NRows())
	assert.Equal(t, 2, f.NCols())

	require.NoError(t, f.AddColumn("z", []float64{0, 0, 1}))
	assert.Error(t, f.AddColumn("z", []float64{1, 1, 1}), "duplicate name")
	assert.Error(t, f.AddColumn("w", []float64{1}), "length mismatch")

	m, err := f.Matrix("y", "x")
	require.NoError(t, err)
	r, c := m.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 6.0, m.At(2, 0))
	assert.Equal(t, 3.0, m.At(2, 1))

	_, err = f.Matrix("missing")
	assert.Error(t, err)

	head := f.Head(2)
	assert.Equal(t, 2, head.NRows())
	assert.Equal(t, []float64{1, 2, 0}, head.Row(0))

	col, err := f.Column("x")
	require.NoError(t, err)
	col[0] = 100
	again, _ := f.Column("x")
	assert.Equal(t, 1.0, again[0], "Column must return a copy")

	corr, err := f.Correlation("x", "y")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, corr, 1e-12)
}

func TestNewFrameMismatch(t *testing.T) {
	_, err := NewFrame([]string{"a"}, [][]float64{{1}, {2}})
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	f, err := NewFrame([]string{"v"}, [][]float64{{1, 2, 3, 4, 5}})
	require.NoError(t, err)
	s, err := f.Describe()
	require.NoError(t, err)
	require.Len(t, s.Columns, 1)

	c := s.Columns[0]
	assert.Equal(t, 5, c.Count)
	assert.InDelta(t, 3.0, c.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(2.5), c.Std, 1e-12)
	assert.Equal(t, 1.0, c.Min)
	assert.Equal(t, 3.0, c.Median)
	assert.Equal(t, 5.0, c.Max)
	assert.Equal(t, 2.0, c.Q25)
	assert.Equal(t, 4.0, c.Q75)

	text := s.String()
	assert.Contains(t, text, "count")
	assert.Contains(t, text, "75%")
	assert.Contains(t, text, "3.0000")
}

func TestDescribeQuartilesInterpolate(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		q25, q75 float64
	}{
		{"four values", []float64{4, 1, 3, 2}, 1.75, 3.25},
		{"single value", []float64{7}, 7, 7},
		{"two values", []float64{0, 10}, 2.5, 7.5},
		{"unsorted with repeats", []float64{5, 1, 1, 9, 3, 3}, 1.5, 4.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFrame([]string{"v"}, [][]float64{tt.values})
			require.NoError(t, err)
			s, err := f.Describe()
			require.NoError(t, err)
			assert.InDelta(t, tt.q25, s.Columns[0].Q25, 1e-12)
			assert.InDelta(t, tt.q75, s.Columns[0].Q75, 1e-12)
		})
	}
}

func TestGenerators(t *testing.T) {
	rng := NewRand(42)

	u := Uniform(rng, 100, 2, 3)
	for _, v := range u {
		assert.True(t, v >= 2 && v < 3)
	}

	X, y, err := MakeMoons(rng, 101, 0)
	require.NoError(t, err)
	n, d := X.Dims()
	assert.Equal(t, 101, n)
	assert.Equal(t, 2, d)
	ones := 0
	for i := 0; i < n; i++ {
		if y.At(i, 0) == 1 {
			ones++
			// inner moon without noise: (1-cos a, 0.5-sin a)
			assert.InDelta(t, 1.0, math.Hypot(X.At(i, 0)-1, X.At(i, 1)-0.5), 1e-9)
		} else {
			assert.InDelta(t, 1.0, math.Hypot(X.At(i, 0), X.At(i, 1)), 1e-9)
		}
	}
	assert.Equal(t, 51, ones)

	Xb, yb, err := MakeBlobs(rng, 31, [][]float64{{0, 0}, {10, 10}, {-10, 10}}, 0.5)
	require.NoError(t, err)
	counts := map[float64]int{}
	for i := 0; i < 31; i++ {
		counts[yb.At(i, 0)]++
		k := int(yb.At(i, 0))
		centers := [][]float64{{0, 0}, {10, 10}, {-10, 10}}
		assert.InDelta(t, centers[k][0], Xb.At(i, 0), 3)
	}
	assert.Equal(t, map[float64]int{0: 11, 1: 10, 2: 10}, counts)

	_, _, err = MakeBlobs(rng, 10, [][]float64{{0}, {1, 2}}, 1)
	assert.Error(t, err)

	Xs, ys := MakeSine(rng, 50, 0)
	for i := 1; i < 50; i++ {
		assert.LessOrEqual(t, Xs.At(i-1, 0), Xs.At(i, 0))
	}
	assert.InDelta(t, math.Sin(Xs.At(7, 0)), ys.At(7, 0), 1e-12)
}

func TestGeneratorsDeterministic(t *testing.T) {
	a, _, _ := MakeMoons(NewRand(7), 20, 0.1)
	b, _, _ := MakeMoons(NewRand(7), 20, 0.1)
	assert.Equal(t, a.RawMatrix().Data, b.RawMatrix().Data)
}

func TestPlayTennis(t *testing.T) {
	tbl := PlayTennis()
	assert.Equal(t, 14, tbl.NRows())
	assert.Equal(t, []string{"Outlook", "Temperature", "Humidity", "Wind", "Play"}, tbl.Names())

	play, err := tbl.Column("Play")
	require.NoError(t, err)
	yes := 0
	for _, v := range play.Values {
		if v == "Yes" {
			yes++
		}
	}
	assert.Equal(t, 9, yes)

	outlook, _ := tbl.Column("Outlook")
	assert.Equal(t, []string{"Sunny", "Overcast", "Rain"}, outlook.Levels())

	_, err = tbl.Column("Day")
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFrame([]string{"a", "b"}, [][]float64{{1, 2.5}, {3, 4}})
	require.NoError(t, err)

	path := filepath.Join(dir, "data.csv")
	require.NoError(t, f.WriteCSV(path))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}, {"1", "3"}, {"2.5", "4"}}, records)

	tennis := filepath.Join(dir, "tennis.csv")
	require.NoError(t, PlayTennis().WriteCSV(tennis))
	info, err := os.Stat(tennis)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestWriteXLSXRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.xlsx")
	f, err := NewFrame([]string{"hours", "pass"}, [][]float64{{1.5, 2, 3.25}, {0, 1, 1}})
	require.NoError(t, err)
	require.NoError(t, f.WriteXLSX(path))

	back, err := ReadXLSX(path)
	require.NoError(t, err)
	assert.Equal(t, f.Names(), back.Names())
	hours, err := back.Column("hours")
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 2, 3.25}, hours)
}
