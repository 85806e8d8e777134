// Package metrics computes the classification performance measures reported by
// the pipeline. All functions work at full precision; rounding happens at the
// reporting boundary only.
package metrics

import (
	"sort"

	"hfoutcome/pkg/errors"
)

// classCounts returns the number of positive and negative labels, or a
// DegenerateSampleError when only one class is present.
func classCounts(op string, yTrue []float64) (pos, neg int, err error) {
	if len(yTrue) == 0 {
		return 0, 0, errors.Wrap(errors.ErrEmptyData, op)
	}
	for _, v := range yTrue {
		if v == 1 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 {
		return 0, 0, errors.NewDegenerateSampleError(op, 0, len(yTrue))
	}
	if neg == 0 {
		return 0, 0, errors.NewDegenerateSampleError(op, 1, len(yTrue))
	}
	return pos, neg, nil
}

// AUC computes the area under the ROC curve by the rank statistic, with tied
// scores receiving their average rank.
func AUC(yTrue, score []float64) (float64, error) {
	if len(yTrue) != len(score) {
		return 0, errors.Newf("metrics: AUC: length mismatch %d vs %d", len(yTrue), len(score))
	}
	pos, neg, err := classCounts("AUC", yTrue)
	if err != nil {
		return 0, err
	}

	order := make([]int, len(score))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return score[order[a]] < score[order[b]] })

	// Average ranks over tie groups, then sum positive ranks.
	n := len(order)
	rankSum := 0.0
	for i := 0; i < n; {
		j := i
		for j < n && score[order[j]] == score[order[i]] {
			j++
		}
		avgRank := float64(i+j+1) / 2.0 // ranks are 1-based
		for k := i; k < j; k++ {
			if yTrue[order[k]] == 1 {
				rankSum += avgRank
			}
		}
		i = j
	}

	p := float64(pos)
	return (rankSum - p*(p+1)/2) / (p * float64(neg)), nil
}

// MSE computes the mean squared error between labels and predicted
// probabilities (the Brier score for binary outcomes).
func MSE(yTrue, score []float64) (float64, error) {
	if len(yTrue) == 0 {
		return 0, errors.Wrap(errors.ErrEmptyData, "MSE")
	}
	if len(yTrue) != len(score) {
		return 0, errors.Newf("metrics: MSE: length mismatch %d vs %d", len(yTrue), len(score))
	}

	var sum float64
	for i := range yTrue {
		diff := yTrue[i] - score[i]
		sum += diff * diff
	}
	return sum / float64(len(yTrue)), nil
}

// AUCPR computes the area under the precision-recall curve by step
// integration (average precision).
func AUCPR(yTrue, score []float64) (float64, error) {
	if len(yTrue) != len(score) {
		return 0, errors.Newf("metrics: AUCPR: length mismatch %d vs %d", len(yTrue), len(score))
	}
	pos, _, err := classCounts("AUCPR", yTrue)
	if err != nil {
		return 0, err
	}

	order := make([]int, len(score))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return score[order[a]] > score[order[b]] })

	// Walk thresholds from highest score down, accumulating precision at each
	// recall step. Tied scores enter together.
	ap := 0.0
	tp, fp := 0, 0
	prevRecall := 0.0
	n := len(order)
	for i := 0; i < n; {
		j := i
		for j < n && score[order[j]] == score[order[i]] {
			j++
		}
		for k := i; k < j; k++ {
			if yTrue[order[k]] == 1 {
				tp++
			} else {
				fp++
			}
		}
		recall := float64(tp) / float64(pos)
		precision := float64(tp) / float64(tp+fp)
		ap += (recall - prevRecall) * precision
		prevRecall = recall
		i = j
	}

	return ap, nil
}

// OperatingPoint is the F1-optimal threshold with its precision and recall.
type OperatingPoint struct {
	Threshold float64
	F1        float64
	Precision float64
	Recall    float64
}

// BestF1 scans the full precision-recall-F1 curve over all observed score
// thresholds (predict positive when score >= threshold) and returns the point
// maximizing F1. Ties keep the smallest threshold. Recall is the true-positive
// rate at that threshold.
func BestF1(yTrue, score []float64) (OperatingPoint, error) {
	if len(yTrue) != len(score) {
		return OperatingPoint{}, errors.Newf("metrics: BestF1: length mismatch %d vs %d", len(yTrue), len(score))
	}
	pos, _, err := classCounts("BestF1", yTrue)
	if err != nil {
		return OperatingPoint{}, err
	}

	thresholds := make([]float64, len(score))
	copy(thresholds, score)
	sort.Float64s(thresholds)
	thresholds = dedup(thresholds)

	best := OperatingPoint{F1: -1}
	for _, t := range thresholds {
		tp, fp := 0, 0
		for i := range score {
			if score[i] >= t {
				if yTrue[i] == 1 {
					tp++
				} else {
					fp++
				}
			}
		}
		if tp+fp == 0 {
			continue
		}
		precision := float64(tp) / float64(tp+fp)
		recall := float64(tp) / float64(pos)
		if precision+recall == 0 {
			continue
		}
		f1 := 2 * precision * recall / (precision + recall)
		if f1 > best.F1 {
			best = OperatingPoint{Threshold: t, F1: f1, Precision: precision, Recall: recall}
		}
	}

	if best.F1 < 0 {
		return OperatingPoint{}, errors.Newf("metrics: BestF1: no valid operating point")
	}
	return best, nil
}

func dedup(sorted []float64) []float64 {
	out := sorted[:0]
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			out = append(out, v)
		}
	}
	return out
}
