package preprocessing

import (
	"fmt"
	"sort"

	"github.com/YuminosukeSato/casebook/core/model"
	"github.com/YuminosukeSato/casebook/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var _ model.Transformer = (*OneHotEncoder)(nil)

// LabelEncoder maps string levels to integer codes in sorted order.
type LabelEncoder struct {
	state *model.StateManager

	classes_ []string
	index    map[string]int
}

// NewLabelEncoder creates an unfitted LabelEncoder.
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{state: model.NewStateManager()}
}

// Fit learns the sorted set of distinct levels.
func (le *LabelEncoder) Fit(y []string) error {
	if len(y) == 0 {
		return errors.NewModelError("LabelEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	seen := make(map[string]struct{}, len(y))
	for _, v := range y {
		seen[v] = struct{}{}
	}
	le.classes_ = make([]string, 0, len(seen))
	for v := range seen {
		le.classes_ = append(le.classes_, v)
	}
	sort.Strings(le.classes_)

	le.index = make(map[string]int, len(le.classes_))
	for i, v := range le.classes_ {
		le.index[v] = i
	}
	le.state.SetDimensions(1, len(y))
	le.state.SetFitted()
	return nil
}

// Transform returns the code of each level. Unseen levels are an error.
func (le *LabelEncoder) Transform(y []string) ([]int, error) {
	if err := le.state.RequireFitted("LabelEncoder", "Transform"); err != nil {
		return nil, err
	}
	codes := make([]int, len(y))
	for i, v := range y {
		code, ok := le.index[v]
		if !ok {
			return nil, errors.NewValueError("LabelEncoder.Transform", fmt.Sprintf("y contains previously unseen label %q", v))
		}
		codes[i] = code
	}
	return codes, nil
}

// FitTransform fits on y and encodes it.
func (le *LabelEncoder) FitTransform(y []string) ([]int, error) {
	if err := le.Fit(y); err != nil {
		return nil, err
	}
	return le.Transform(y)
}

// InverseTransform maps codes back to levels.
func (le *LabelEncoder) InverseTransform(codes []int) ([]string, error) {
	if err := le.state.RequireFitted("LabelEncoder", "InverseTransform"); err != nil {
		return nil, err
	}
	out := make([]string, len(codes))
	for i, c := range codes {
		if c < 0 || c >= len(le.classes_) {
			return nil, errors.NewValueError("LabelEncoder.InverseTransform", fmt.Sprintf("code %d out of range [0, %d)", c, len(le.classes_)))
		}
		out[i] = le.classes_[c]
	}
	return out, nil
}

// Classes returns the learned levels; Classes()[code] is the level of code.
func (le *LabelEncoder) Classes() []string {
	return append([]string(nil), le.classes_...)
}

// OneHotOption configures a OneHotEncoder.
type OneHotOption func(*OneHotEncoder)

// WithHandleUnknown sets the policy for categories not seen in Fit: "error" (default)
// or "ignore", which encodes them as an all-zero block.
func WithHandleUnknown(policy string) OneHotOption {
	return func(e *OneHotEncoder) {
		e.handleUnknown = policy
	}
}

// OneHotEncoder expands integer-coded categorical columns into indicator columns.
type OneHotEncoder struct {
	state *model.StateManager

	// Categories_[j] holds the sorted codes seen in column j.
	Categories_ [][]int

	handleUnknown string
	offsets       []int
	lookup        []map[int]int
}

// NewOneHotEncoder creates a OneHotEncoder.
func NewOneHotEncoder(opts ...OneHotOption) *OneHotEncoder {
	e := &OneHotEncoder{
		state:         model.NewStateManager(),
		handleUnknown: "error",
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fit learns the categories of every column.
func (e *OneHotEncoder) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("OneHotEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	if e.handleUnknown != "error" && e.handleUnknown != "ignore" {
		return errors.NewValidationError("handle_unknown", "must be 'error' or 'ignore'", e.handleUnknown)
	}

	e.Categories_ = make([][]int, c)
	e.lookup = make([]map[int]int, c)
	e.offsets = make([]int, c+1)
	for j := 0; j < c; j++ {
		seen := make(map[int]struct{})
		for i := 0; i < r; i++ {
			seen[int(X.At(i, j))] = struct{}{}
		}
		cats := make([]int, 0, len(seen))
		for v := range seen {
			cats = append(cats, v)
		}
		sort.Ints(cats)

		e.Categories_[j] = cats
		e.lookup[j] = make(map[int]int, len(cats))
		for k, v := range cats {
			e.lookup[j][v] = k
		}
		e.offsets[j+1] = e.offsets[j] + len(cats)
	}

	e.state.SetDimensions(c, r)
	e.state.SetFitted()
	return nil
}

// Transform returns the dense indicator matrix.
func (e *OneHotEncoder) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := e.state.RequireFitted("OneHotEncoder", "Transform"); err != nil {
		return nil, err
	}
	if err := e.state.CheckFeatures("OneHotEncoder.Transform", X); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	out := mat.NewDense(r, e.offsets[c], nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			code := int(X.At(i, j))
			k, ok := e.lookup[j][code]
			if !ok {
				if e.handleUnknown == "ignore" {
					continue
				}
				return nil, errors.NewValueError("OneHotEncoder.Transform", fmt.Sprintf("found unknown category %d in column %d", code, j))
			}
			out.Set(i, e.offsets[j]+k, 1)
		}
	}
	return out, nil
}

// FitTransform fits on X and encodes it.
func (e *OneHotEncoder) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := e.Fit(X); err != nil {
		return nil, err
	}
	return e.Transform(X)
}

// GetFeatureNamesOut names each indicator column "<input>_<level>". levels[j], when
// provided, maps the codes of column j to display names; otherwise the code is used.
func (e *OneHotEncoder) GetFeatureNamesOut(inputFeatures []string, levels [][]string) ([]string, error) {
	if err := e.state.RequireFitted("OneHotEncoder", "GetFeatureNamesOut"); err != nil {
		return nil, err
	}
	if len(inputFeatures) != len(e.Categories_) {
		return nil, errors.NewDimensionError("OneHotEncoder.GetFeatureNamesOut", len(e.Categories_), len(inputFeatures), 1)
	}

	names := make([]string, 0, e.offsets[len(e.Categories_)])
	for j, cats := range e.Categories_ {
		for _, code := range cats {
			level := fmt.Sprint(code)
			if j < len(levels) && code >= 0 && code < len(levels[j]) {
				level = levels[j][code]
			}
			names = append(names, inputFeatures[j]+"_"+level)
		}
	}
	return names, nil
}
