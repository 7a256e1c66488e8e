package parallel

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/YuminosukeSato/casebook/pkg/errors"
)

func TestParallelizeCoversEveryIndex(t *testing.T) {
	for _, items := range []int{0, 1, 7, 100, 1001} {
		seen := make([]int32, items)
		err := Parallelize("cover", items, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&seen[i], 1)
			}
		})
		if err != nil {
			t.Fatalf("items=%d: %v", items, err)
		}
		for i, c := range seen {
			if c != 1 {
				t.Fatalf("items=%d: index %d visited %d times", items, i, c)
			}
		}
	}
}

func TestParallelizeN(t *testing.T) {
	var calls int32
	if err := ParallelizeN("chunks", 3, 10, func(start, end int) {
		atomic.AddInt32(&calls, 1)
	}); err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Errorf("expected 3 chunks, got %d", calls)
	}
}

func TestParallelizeWithThreshold(t *testing.T) {
	var calls int32
	err := ParallelizeWithThreshold("inline", 5, 10, func(start, end int) {
		atomic.AddInt32(&calls, 1)
		if start != 0 || end != 5 {
			t.Errorf("sequential path got range [%d,%d)", start, end)
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("expected a single inline call, got %d", calls)
	}
}

func TestParallelizeRecoversChunkPanic(t *testing.T) {
	for _, threshold := range []int{0, 100} {
		err := ParallelizeWithThreshold("split search", 16, threshold, func(start, end int) {
			if start == 0 {
				panic("bad column")
			}
		})
		var pe *errors.PanicError
		if !errors.As(err, &pe) {
			t.Fatalf("threshold %d: got %v, want PanicError", threshold, err)
		}
		if pe.Operation != "split search" || pe.PanicValue != "bad column" {
			t.Errorf("threshold %d: PanicError = %v", threshold, pe)
		}
	}
}

func TestForEachReturnsFirstError(t *testing.T) {
	var ran int32
	err := ForEach("members", 1, 10, func(i int) error {
		atomic.AddInt32(&ran, 1)
		if i == 2 {
			return fmt.Errorf("member %d failed", i)
		}
		return nil
	})
	if err == nil || err.Error() != "member 2 failed" {
		t.Fatalf("ForEach error = %v, want member 2 failed", err)
	}
	if ran >= 10 {
		t.Errorf("ran %d calls, want the rest skipped after the failure", ran)
	}
}

func TestForEachRecoversPanic(t *testing.T) {
	var done int32
	err := ForEach("members", 4, 8, func(i int) error {
		if i == 5 {
			var m map[string]int
			m["x"] = 1
		}
		atomic.AddInt32(&done, 1)
		return nil
	})
	var pe *errors.PanicError
	if !errors.As(err, &pe) || pe.Operation != "members" {
		t.Fatalf("ForEach error = %v, want PanicError for members", err)
	}
}

func TestForEachNoWork(t *testing.T) {
	if err := ForEach("empty", 0, 0, func(int) error { return nil }); err != nil {
		t.Errorf("ForEach on no items = %v", err)
	}
}
