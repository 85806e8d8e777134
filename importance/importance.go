// Package importance exports ranked feature explanations for a fitted model:
// the backend's native importance and the mean absolute per-record attribution.
package importance

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"hfoutcome/engine"
	"hfoutcome/pkg/errors"
)

// Entry is one (feature, score) row of a ranked table.
type Entry struct {
	Feature string
	Score   float64
}

// Tables holds both ranked explanations for one model.
type Tables struct {
	Importance []Entry // native relative importance
	MeanShap   []Entry // mean |attribution| across evaluation records
}

// Rank sorts (feature, score) pairs descending by score; ties fall back to
// feature name ascending so output order is deterministic.
func Rank(features []string, scores []float64) ([]Entry, error) {
	if len(features) != len(scores) {
		return nil, errors.Newf("importance: %d features but %d scores", len(features), len(scores))
	}

	entries := make([]Entry, len(features))
	for i := range features {
		entries[i] = Entry{Feature: features[i], Score: scores[i]}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Feature < entries[j].Feature
	})
	return entries, nil
}

// Compute builds both ranked tables for the model against the evaluation set.
// features names the columns of X in order.
func Compute(model engine.Model, X *mat.Dense, features []string) (*Tables, error) {
	rows, cols := X.Dims()
	if cols != len(features) {
		return nil, errors.Newf("importance: matrix has %d columns but %d feature names", cols, len(features))
	}
	if rows == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "importance.Compute")
	}

	native, err := Rank(features, model.Importance())
	if err != nil {
		return nil, err
	}

	attr, err := model.Attribution(X)
	if err != nil {
		return nil, err
	}

	meanAbs := make([]float64, cols)
	for j := 0; j < cols; j++ {
		var sum float64
		for i := 0; i < rows; i++ {
			sum += math.Abs(attr.At(i, j))
		}
		meanAbs[j] = sum / float64(rows)
	}

	shap, err := Rank(features, meanAbs)
	if err != nil {
		return nil, err
	}

	return &Tables{Importance: native, MeanShap: shap}, nil
}
