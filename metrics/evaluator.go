package metrics

import (
	"gonum.org/v1/gonum/mat"

	"hfoutcome/engine"
)

// Report holds the full metric vector for one scored sample. Values are kept
// at full precision; the reporting layer rounds.
type Report struct {
	AUC       float64
	MSE       float64
	AUCPR     float64
	F1        float64
	Precision float64
	Recall    float64
	Threshold float64
}

// Vector returns the report as (name, value) pairs in reporting order.
func (r *Report) Vector() []struct {
	Name  string
	Value float64
} {
	return []struct {
		Name  string
		Value float64
	}{
		{"auc", r.AUC},
		{"mse", r.MSE},
		{"aucpr", r.AUCPR},
		{"f1", r.F1},
		{"precision", r.Precision},
		{"recall", r.Recall},
	}
}

// Compute derives the full metric vector from labels and predicted
// probabilities. It fails with DegenerateSampleError when the sample holds a
// single class.
func Compute(yTrue, score []float64) (*Report, error) {
	auc, err := AUC(yTrue, score)
	if err != nil {
		return nil, err
	}
	mse, err := MSE(yTrue, score)
	if err != nil {
		return nil, err
	}
	aucpr, err := AUCPR(yTrue, score)
	if err != nil {
		return nil, err
	}
	op, err := BestF1(yTrue, score)
	if err != nil {
		return nil, err
	}

	return &Report{
		AUC:       auc,
		MSE:       mse,
		AUCPR:     aucpr,
		F1:        op.F1,
		Precision: op.Precision,
		Recall:    op.Recall,
		Threshold: op.Threshold,
	}, nil
}

// Evaluate scores the model on X and computes the metric vector against y.
func Evaluate(model engine.Model, X *mat.Dense, y []float64) (*Report, error) {
	score, err := model.Score(X)
	if err != nil {
		return nil, err
	}
	return Compute(y, score)
}
