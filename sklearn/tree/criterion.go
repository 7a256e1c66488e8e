package tree

import "math"

// impurity of a weighted class histogram.
type classCriterion func(counts []float64, total float64) float64

func gini(counts []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	sum := 0.0
	for _, c := range counts {
		p := c / total
		sum += p * p
	}
	return 1 - sum
}

func entropy(counts []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	h := 0.0
	for _, c := range counts {
		if c > 0 {
			p := c / total
			h -= p * math.Log2(p)
		}
	}
	return h
}

func classCriterionFor(name string) (classCriterion, bool) {
	switch name {
	case "gini":
		return gini, true
	case "entropy", "log_loss":
		return entropy, true
	}
	return nil, false
}

// squaredError returns the weighted variance given sum(w), sum(w*y) and sum(w*y*y).
func squaredError(w, wy, wyy float64) float64 {
	if w <= 0 {
		return 0
	}
	mean := wy / w
	v := wyy/w - mean*mean
	if v < 0 {
		return 0
	}
	return v
}
