// Package plotting draws the scatter and line charts the case studies save next to
// their reports.
package plotting

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/YuminosukeSato/casebook/pkg/errors"
	"github.com/YuminosukeSato/casebook/pkg/log"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Default figure size.
const (
	Width  = 6 * vg.Inch
	Height = 4 * vg.Inch
)

// Kind selects how a series is drawn.
type Kind int

const (
	Line Kind = iota
	Points
	LinePoints
)

// Series is one named (x, y) sequence.
type Series struct {
	Name string
	X, Y []float64
	Kind Kind
}

func xys(op string, x, y []float64) (plotter.XYs, error) {
	if len(x) != len(y) {
		return nil, errors.NewDimensionError(op, len(x), len(y), 0)
	}
	if len(x) == 0 {
		return nil, errors.NewModelError(op, "empty series", errors.ErrEmptyData)
	}
	pts := make(plotter.XYs, len(x))
	for i := range x {
		pts[i] = plotter.XY{X: x[i], Y: y[i]}
	}
	return pts, nil
}

func newPlot(title, xlabel, ylabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = ylabel
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	return p
}

// LineSeries draws every series on one set of axes with a legend.
func LineSeries(title, xlabel, ylabel string, series ...Series) (*plot.Plot, error) {
	p := newPlot(title, xlabel, ylabel)
	for i, s := range series {
		pts, err := xys("LineSeries", s.X, s.Y)
		if err != nil {
			return nil, errors.Wrapf(err, "series %q", s.Name)
		}
		var thumbs []plot.Thumbnailer
		if s.Kind == Line || s.Kind == LinePoints {
			l, err := plotter.NewLine(pts)
			if err != nil {
				return nil, err
			}
			l.Color = plotutil.Color(i)
			l.Width = vg.Points(1.5)
			p.Add(l)
			thumbs = append(thumbs, l)
		}
		if s.Kind == Points || s.Kind == LinePoints {
			sc, err := plotter.NewScatter(pts)
			if err != nil {
				return nil, err
			}
			sc.Color = plotutil.Color(i)
			sc.Shape = plotutil.Shape(i)
			p.Add(sc)
			thumbs = append(thumbs, sc)
		}
		if s.Name != "" {
			p.Legend.Add(s.Name, thumbs...)
		}
	}
	return p, nil
}

// ScatterTruthVsPred plots predictions against true values with the y = x reference.
func ScatterTruthVsPred(title string, truth, pred []float64) (*plot.Plot, error) {
	pts, err := xys("ScatterTruthVsPred", truth, pred)
	if err != nil {
		return nil, err
	}
	p := newPlot(title, "true value", "predicted value")

	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, err
	}
	sc.Color = plotutil.Color(0)
	sc.Shape = draw.CircleGlyph{}
	p.Add(sc)

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, pt := range pts {
		lo = math.Min(lo, math.Min(pt.X, pt.Y))
		hi = math.Max(hi, math.Max(pt.X, pt.Y))
	}
	ref, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return nil, err
	}
	ref.Color = plotutil.Color(1)
	ref.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(ref)
	p.Legend.Add("samples", sc)
	p.Legend.Add("y = x", ref)
	return p, nil
}

// ScatterByClass plots the first two columns of X with one color per label.
// names, when given, label the legend entries in label order.
func ScatterByClass(title string, X mat.Matrix, labels []int, names map[int]string) (*plot.Plot, error) {
	n, d := X.Dims()
	if d < 2 {
		return nil, errors.NewDimensionError("ScatterByClass", 2, d, 1)
	}
	if len(labels) != n {
		return nil, errors.NewDimensionError("ScatterByClass", n, len(labels), 0)
	}
	groups := make(map[int]plotter.XYs)
	var order []int
	for i, c := range labels {
		if _, ok := groups[c]; !ok {
			order = append(order, c)
		}
		groups[c] = append(groups[c], plotter.XY{X: X.At(i, 0), Y: X.At(i, 1)})
	}
	sort.Ints(order)

	p := newPlot(title, "x0", "x1")
	for k, c := range order {
		sc, err := plotter.NewScatter(groups[c])
		if err != nil {
			return nil, err
		}
		sc.Color = plotutil.Color(k)
		sc.Shape = plotutil.Shape(k)
		p.Add(sc)
		name := names[c]
		if name == "" {
			name = fmt.Sprintf("class %d", c)
		}
		p.Legend.Add(name, sc)
	}
	return p, nil
}

// Save writes the plot at the default size. The format follows the extension and
// must be .png or .svg.
func Save(p *plot.Plot, path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".png" && ext != ".svg" {
		return errors.NewValidationError("path", "extension must be .png or .svg", path)
	}
	if err := p.Save(Width, Height, path); err != nil {
		return errors.Wrapf(err, "save plot %s", path)
	}
	log.GetLogger().Debug("plot saved",
		log.OperationKey, log.OperationPlot,
		log.ArtifactKey, path,
	)
	return nil
}
