package metrics

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/casebook/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// logLossEps keeps log() away from 0 and 1.
const logLossEps = 1e-15

func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError(op, "nil vector")
	}
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

func checkBinaryLabels(op string, y *mat.VecDense) error {
	for i := 0; i < y.Len(); i++ {
		if v := y.AtVec(i); v != 0 && v != 1 {
			return errors.NewValueError(op, "labels must be 0 or 1")
		}
	}
	return nil
}

// Accuracy returns the fraction of exact label matches.
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// AccuracyMatrix is Accuracy over the first column of two matrices.
func AccuracyMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := firstColumns("AccuracyMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return Accuracy(t, p)
}

// ClassificationError returns 1 - Accuracy.
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, errors.Wrap(err, "ClassificationError")
	}
	return 1 - acc, nil
}

// AUC returns the area under the ROC curve for binary labels and positive-class scores.
// It is computed as the Mann-Whitney statistic with tied scores sharing their average
// rank. When only one class is present the value is undefined and 0.5 is returned.
func AUC(yTrue, yScore *mat.VecDense) (float64, error) {
	n, err := checkPair("AUC", yTrue, yScore)
	if err != nil {
		return 0, err
	}
	if err := checkBinaryLabels("AUC", yTrue); err != nil {
		return 0, err
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return yScore.AtVec(idx[a]) < yScore.AtVec(idx[b])
	})

	var nPos, nNeg int
	var rankSumPos float64
	for i := 0; i < n; {
		j := i
		for j+1 < n && yScore.AtVec(idx[j+1]) == yScore.AtVec(idx[i]) {
			j++
		}
		// ranks are 1-based; ties [i, j] share the mean rank
		avgRank := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			if yTrue.AtVec(idx[k]) == 1 {
				nPos++
				rankSumPos += avgRank
			} else {
				nNeg++
			}
		}
		i = j + 1
	}

	if nPos == 0 || nNeg == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("AUC", "only one class present in y_true", 0.5))
		return 0.5, nil
	}

	u := rankSumPos - float64(nPos*(nPos+1))/2
	return u / float64(nPos*nNeg), nil
}

// AUCMatrix is AUC over the first column of two matrices.
func AUCMatrix(yTrue, yScore mat.Matrix) (float64, error) {
	t, s, err := firstColumns("AUCMatrix", yTrue, yScore)
	if err != nil {
		return 0, err
	}
	return AUC(t, s)
}

// BinaryLogLoss returns the mean negative log-likelihood of binary labels given
// positive-class probabilities. Probabilities are clipped to [eps, 1-eps].
func BinaryLogLoss(yTrue, yProb *mat.VecDense) (float64, error) {
	n, err := checkPair("BinaryLogLoss", yTrue, yProb)
	if err != nil {
		return 0, err
	}
	if err := checkBinaryLabels("BinaryLogLoss", yTrue); err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		p := errors.ClipValue(yProb.AtVec(i), logLossEps, 1-logLossEps)
		if yTrue.AtVec(i) == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(n), nil
}

func firstColumns(op string, a, b mat.Matrix) (*mat.VecDense, *mat.VecDense, error) {
	if a == nil || b == nil {
		return nil, nil, errors.NewValueError(op, "nil matrix")
	}
	ra, ca := a.Dims()
	rb, cb := b.Dims()
	if ra == 0 || ca == 0 || rb == 0 || cb == 0 {
		return nil, nil, errors.NewValueError(op, "empty matrix")
	}
	if ra != rb {
		return nil, nil, errors.NewDimensionError(op, ra, rb, 0)
	}
	return ColumnVec(a, 0), ColumnVec(b, 0), nil
}

// Labels returns the sorted union of the integer labels in yTrue and yPred.
func Labels(yTrue, yPred *mat.VecDense) []int {
	seen := make(map[int]struct{})
	for _, v := range []*mat.VecDense{yTrue, yPred} {
		if v == nil {
			continue
		}
		for i := 0; i < v.Len(); i++ {
			seen[int(math.Round(v.AtVec(i)))] = struct{}{}
		}
	}
	labels := make([]int, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Ints(labels)
	return labels
}

// ConfusionMatrix counts samples by (true label, predicted label). Row i and column j
// correspond to labels[i] and labels[j], where labels is the sorted label union.
func ConfusionMatrix(yTrue, yPred *mat.VecDense) (*mat.Dense, []int, error) {
	n, err := checkPair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return nil, nil, err
	}
	labels := Labels(yTrue, yPred)
	pos := make(map[int]int, len(labels))
	for i, l := range labels {
		pos[l] = i
	}

	k := len(labels)
	cm := mat.NewDense(k, k, nil)
	for i := 0; i < n; i++ {
		r := pos[int(math.Round(yTrue.AtVec(i)))]
		c := pos[int(math.Round(yPred.AtVec(i)))]
		cm.Set(r, c, cm.At(r, c)+1)
	}
	return cm, labels, nil
}

// ClassScores holds per-label precision, recall, F1 and support, aligned with Labels.
type ClassScores struct {
	Labels    []int
	Precision []float64
	Recall    []float64
	F1        []float64
	Support   []int
}

// PrecisionRecallFScore computes per-label scores from the confusion matrix.
// Precision for a label never predicted and recall for a label never present are
// ill-defined; both emit UndefinedMetricWarning and are set to 0.
func PrecisionRecallFScore(yTrue, yPred *mat.VecDense) (*ClassScores, error) {
	cm, labels, err := ConfusionMatrix(yTrue, yPred)
	if err != nil {
		return nil, errors.Wrap(err, "PrecisionRecallFScore")
	}

	k := len(labels)
	s := &ClassScores{
		Labels:    labels,
		Precision: make([]float64, k),
		Recall:    make([]float64, k),
		F1:        make([]float64, k),
		Support:   make([]int, k),
	}
	for i := 0; i < k; i++ {
		tp := cm.At(i, i)
		var predicted, actual float64
		for j := 0; j < k; j++ {
			predicted += cm.At(j, i)
			actual += cm.At(i, j)
		}
		s.Support[i] = int(actual)

		if predicted == 0 {
			errors.Warn(errors.NewUndefinedMetricWarning("precision", "no predicted samples for a label", 0))
		} else {
			s.Precision[i] = tp / predicted
		}
		if actual == 0 {
			errors.Warn(errors.NewUndefinedMetricWarning("recall", "no true samples for a label", 0))
		} else {
			s.Recall[i] = tp / actual
		}
		if p, r := s.Precision[i], s.Recall[i]; p+r > 0 {
			s.F1[i] = 2 * p * r / (p + r)
		}
	}
	return s, nil
}

// ClusterPurity scores a clustering against true labels: each cluster is credited with
// its most frequent label and the credited counts are divided by n. Cluster ids and
// labels need not share values.
func ClusterPurity(yTrue, clusters *mat.VecDense) (float64, error) {
	n, err := checkPair("ClusterPurity", yTrue, clusters)
	if err != nil {
		return 0, err
	}
	counts := make(map[int]map[int]int)
	for i := 0; i < n; i++ {
		c := int(math.Round(clusters.AtVec(i)))
		if counts[c] == nil {
			counts[c] = make(map[int]int)
		}
		counts[c][int(math.Round(yTrue.AtVec(i)))]++
	}
	credited := 0
	for _, byLabel := range counts {
		best := 0
		for _, k := range byLabel {
			best = max(best, k)
		}
		credited += best
	}
	return float64(credited) / float64(n), nil
}
