package errors

import (
	"fmt"
	"math"
	"strings"
	"testing"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "casebook: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			err:     nil,
			wantMsg: "casebook: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			formatted := fmt.Sprintf("%+v", err)
			if !strings.Contains(formatted, "errors_test.go") {
				t.Error("Expected stack trace to contain test file name")
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	tests := []struct {
		axis int
		want string
	}{
		{0, "casebook: Predict: dimension mismatch on axis 0 (rows). Expected 10, got 9"},
		{1, "casebook: Predict: dimension mismatch on axis 1 (features). Expected 10, got 9"},
	}

	for _, tt := range tests {
		err := NewDimensionError("Predict", 10, 9, tt.axis)
		if err.Error() != tt.want {
			t.Errorf("Error() = %v, want %v", err.Error(), tt.want)
		}
		var dimErr *DimensionError
		if !As(err, &dimErr) {
			t.Error("Error should be castable to *DimensionError")
		}
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("LinearRegression", "Predict")

	want := "casebook: LinearRegression: this model is not fitted yet. Call Fit() before using Predict()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var notFittedErr *NotFittedError
	if !As(err, &notFittedErr) {
		t.Error("Error should be castable to *NotFittedError")
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("test_size", "must be in (0, 1)", 1.5)

	want := "casebook: validation failed for parameter 'test_size': must be in (0, 1) (got: 1.5)"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}
}

func TestWarnRouting(t *testing.T) {
	var got []error
	SetZerologWarnFunc(func(w error) { got = append(got, w) })
	defer SetZerologWarnFunc(nil)

	Warn(NewUndefinedMetricWarning("precision", "no predicted samples", 0))
	Warn(NewConvergenceWarning("LogisticRegression", 100, ""))

	if len(got) != 2 {
		t.Fatalf("expected 2 routed warnings, got %d", len(got))
	}
	if !strings.Contains(got[0].Error(), "'precision' is ill-defined") {
		t.Errorf("unexpected warning text: %v", got[0])
	}
	if !strings.Contains(got[1].Error(), "failed to converge after 100 iterations") {
		t.Errorf("unexpected warning text: %v", got[1])
	}
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "in %s: expected %d, got %d", "Predict", 10, 5)

	if !Is(wrapped, ErrEmptyData) {
		t.Error("Expected Is(wrapped, ErrEmptyData) to be true")
	}
	if !strings.Contains(wrapped.Error(), "in Predict: expected 10, got 5") {
		t.Errorf("unexpected message %q", wrapped.Error())
	}
}

func TestCheckNumericalStability(t *testing.T) {
	if err := CheckNumericalStability("gradient", []float64{1, 2, 3}, 0); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := CheckNumericalStability("gradient", []float64{1, math.NaN()}, 7)
	var numErr *NumericalInstabilityError
	if !As(err, &numErr) {
		t.Fatalf("expected NumericalInstabilityError, got %v", err)
	}
	if numErr.Iteration != 7 {
		t.Errorf("Iteration = %d, want 7", numErr.Iteration)
	}
	if err := CheckScalar("loss", math.Inf(1), 1); err == nil {
		t.Error("expected error for +Inf")
	}
}

func TestLogSumExp(t *testing.T) {
	got := LogSumExp([]float64{1000, 1000})
	want := 1000 + math.Log(2)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("LogSumExp = %v, want %v", got, want)
	}
	if !math.IsInf(LogSumExp(nil), -1) {
		t.Error("LogSumExp(nil) should be -Inf")
	}
}
