package metrics

import (
	"math"
	"strings"
	"testing"

	"github.com/YuminosukeSato/casebook/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

func TestConfusionMatrix(t *testing.T) {
	yTrue := mat.NewVecDense(6, []float64{0, 0, 1, 1, 2, 2})
	yPred := mat.NewVecDense(6, []float64{0, 1, 1, 1, 2, 0})

	cm, labels, err := ConfusionMatrix(yTrue, yPred)
	if err != nil {
		t.Fatalf("ConfusionMatrix() error = %v", err)
	}
	if len(labels) != 3 || labels[0] != 0 || labels[2] != 2 {
		t.Fatalf("labels = %v, want [0 1 2]", labels)
	}
	want := mat.NewDense(3, 3, []float64{
		1, 1, 0,
		0, 2, 0,
		1, 0, 1,
	})
	if !mat.Equal(cm, want) {
		t.Errorf("ConfusionMatrix() =\n%v\nwant\n%v", mat.Formatted(cm), mat.Formatted(want))
	}

	if _, _, err := ConfusionMatrix(nil, yPred); err == nil {
		t.Error("expected error for nil input")
	}
}

func TestPrecisionRecallFScore(t *testing.T) {
	yTrue := mat.NewVecDense(6, []float64{0, 0, 0, 1, 1, 1})
	yPred := mat.NewVecDense(6, []float64{0, 0, 1, 1, 1, 1})

	s, err := PrecisionRecallFScore(yTrue, yPred)
	if err != nil {
		t.Fatalf("PrecisionRecallFScore() error = %v", err)
	}
	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"precision 0", s.Precision[0], 1.0},
		{"recall 0", s.Recall[0], 2.0 / 3.0},
		{"f1 0", s.F1[0], 0.8},
		{"precision 1", s.Precision[1], 0.75},
		{"recall 1", s.Recall[1], 1.0},
		{"f1 1", s.F1[1], 6.0 / 7.0},
	}
	for _, tt := range tests {
		if math.Abs(tt.got-tt.want) > 1e-9 {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
	if s.Support[0] != 3 || s.Support[1] != 3 {
		t.Errorf("Support = %v, want [3 3]", s.Support)
	}
}

func TestPrecisionUndefinedWarns(t *testing.T) {
	var warned []error
	errors.SetWarningHandler(func(w error) { warned = append(warned, w) })
	defer errors.SetWarningHandler(func(error) {})

	yTrue := mat.NewVecDense(4, []float64{0, 0, 1, 1})
	yPred := mat.NewVecDense(4, []float64{0, 0, 0, 0})

	s, err := PrecisionRecallFScore(yTrue, yPred)
	if err != nil {
		t.Fatalf("PrecisionRecallFScore() error = %v", err)
	}
	if s.Precision[1] != 0 || s.F1[1] != 0 {
		t.Errorf("undefined precision should be 0, got p=%v f1=%v", s.Precision[1], s.F1[1])
	}
	if len(warned) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(warned))
	}
	var umw *errors.UndefinedMetricWarning
	if !errors.As(warned[0], &umw) || umw.Metric != "precision" {
		t.Errorf("unexpected warning %v", warned[0])
	}
}

func TestClassificationReport(t *testing.T) {
	yTrue := mat.NewVecDense(6, []float64{0, 0, 0, 1, 1, 1})
	yPred := mat.NewVecDense(6, []float64{0, 0, 1, 1, 1, 1})

	rep, err := ClassificationReport(yTrue, yPred, []string{"fail", "pass"}, 2)
	if err != nil {
		t.Fatalf("ClassificationReport() error = %v", err)
	}
	if math.Abs(rep.Accuracy-5.0/6.0) > 1e-9 {
		t.Errorf("Accuracy = %v", rep.Accuracy)
	}
	if math.Abs(rep.MacroAvg.Precision-0.875) > 1e-9 {
		t.Errorf("macro precision = %v, want 0.875", rep.MacroAvg.Precision)
	}
	if rep.WeightedAvg.Support != 6 {
		t.Errorf("weighted support = %d, want 6", rep.WeightedAvg.Support)
	}

	text := rep.String()
	for _, want := range []string{
		"   precision    recall  f1-score   support",
		"        fail       1.00      0.67      0.80         3",
		"        pass       0.75      1.00      0.86         3",
		"    accuracy                           0.83         6",
		"   macro avg       0.88      0.83      0.83         6",
		"weighted avg       0.88      0.83      0.83         6",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing line %q:\n%s", want, text)
		}
	}

	if _, err := ClassificationReport(yTrue, yPred, []string{"only-one"}, 2); err == nil {
		t.Error("expected error for wrong number of target names")
	}
}

func TestFormatConfusionMatrix(t *testing.T) {
	cm := mat.NewDense(2, 2, []float64{3, 1, 0, 4})
	got := FormatConfusionMatrix(cm, []string{"no", "yes"})
	lines := strings.Split(strings.TrimSpace(got), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d:\n%s", len(lines), got)
	}
	if !strings.HasPrefix(lines[1], "no") || !strings.HasSuffix(lines[2], "4") {
		t.Errorf("unexpected layout:\n%s", got)
	}
}

func TestR2ScoreMatrix(t *testing.T) {
	yTrue := mat.NewDense(4, 2, []float64{1, 10, 2, 20, 3, 30, 4, 40})
	yPred := mat.NewDense(4, 2, []float64{1, 10, 2, 20, 3, 30, 4, 40})
	got, err := R2ScoreMatrix(yTrue, yPred)
	if err != nil || math.Abs(got-1) > 1e-12 {
		t.Errorf("R2ScoreMatrix() = %v, %v; want 1", got, err)
	}

	yPred2 := mat.NewDense(4, 2, []float64{2.5, 10, 2.5, 20, 2.5, 30, 2.5, 40})
	got, err = R2ScoreMatrix(yTrue, yPred2)
	if err != nil || math.Abs(got-0.5) > 1e-12 {
		t.Errorf("R2ScoreMatrix() = %v, %v; want 0.5", got, err)
	}

	if _, err := R2ScoreMatrix(yTrue, mat.NewDense(4, 1, nil)); err == nil {
		t.Error("expected error for column mismatch")
	}
}

func TestClusterPurity(t *testing.T) {
	tests := []struct {
		name     string
		yTrue    []float64
		clusters []float64
		want     float64
	}{
		{"relabelled perfect clustering", []float64{0, 0, 1, 1, 2, 2}, []float64{5, 5, 3, 3, 9, 9}, 1},
		{"one stray point", []float64{0, 0, 0, 1, 1, 1}, []float64{0, 0, 1, 1, 1, 1}, 5.0 / 6},
		{"single cluster", []float64{0, 1, 1, 1}, []float64{0, 0, 0, 0}, 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ClusterPurity(mat.NewVecDense(len(tt.yTrue), tt.yTrue), mat.NewVecDense(len(tt.clusters), tt.clusters))
			if err != nil {
				t.Fatalf("ClusterPurity() error = %v", err)
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("ClusterPurity() = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := ClusterPurity(mat.NewVecDense(2, nil), mat.NewVecDense(3, nil)); err == nil {
		t.Error("expected a dimension error")
	}
}
