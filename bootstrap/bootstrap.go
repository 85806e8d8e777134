// Package bootstrap quantifies model robustness with seeded resampling of the
// held-out test split and two-sided 95% percentile confidence intervals.
package bootstrap

import (
	"math/rand/v2"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"hfoutcome/engine"
	"hfoutcome/metrics"
	"hfoutcome/pkg/errors"
)

// Interval is a two-sided percentile confidence bound.
type Interval struct {
	Lower float64
	Upper float64
}

// Report pairs the full-sample point estimates with per-metric intervals.
// Point values come from the complete test split, never from resample means.
type Report struct {
	Point      *metrics.Report
	Intervals  map[string]Interval
	Replicates int
	Excluded   int
}

// Evaluator draws bootstrap replicates and derives percentile intervals.
type Evaluator struct {
	Replicates int
	Logger     zerolog.Logger
}

// New creates an evaluator with the default replicate count.
func New() *Evaluator {
	return &Evaluator{Replicates: 1000, Logger: zerolog.Nop()}
}

// Evaluate scores the model once on the full test split, then draws R
// same-size resamples with replacement. Each replicate shares one index draw
// across all metrics, so the metric vector is jointly consistent per
// replicate. Degenerate replicates are excluded; if they exceed half of R the
// run fails with UnreliableBootstrapError. For a fixed seed the report is
// identical across runs.
func (e *Evaluator) Evaluate(model engine.Model, X *mat.Dense, y []float64, seed int64) (*Report, error) {
	replicates := e.Replicates
	if replicates <= 0 {
		replicates = 1000
	}

	// The model is scored exactly once; a resample of records is the same
	// multiset as a resample of (label, score) pairs, so replicates reuse the
	// full-split scores instead of materializing resampled datasets.
	score, err := model.Score(X)
	if err != nil {
		return nil, err
	}

	point, err := metrics.Compute(y, score)
	if err != nil {
		return nil, err
	}

	n := len(y)
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))

	names := metricNames(point)
	samples := make(map[string][]float64, len(names))
	for _, name := range names {
		samples[name] = make([]float64, 0, replicates)
	}

	resampledY := make([]float64, n)
	resampledScore := make([]float64, n)
	excluded := 0

	for r := 0; r < replicates; r++ {
		for i := 0; i < n; i++ {
			idx := rng.IntN(n)
			resampledY[i] = y[idx]
			resampledScore[i] = score[idx]
		}

		report, err := metrics.Compute(resampledY, resampledScore)
		if err != nil {
			var degen *errors.DegenerateSampleError
			if errors.As(err, &degen) {
				excluded++
				continue
			}
			return nil, err
		}
		for _, entry := range report.Vector() {
			samples[entry.Name] = append(samples[entry.Name], entry.Value)
		}
	}

	e.Logger.Debug().
		Int("replicates", replicates).
		Int("excluded", excluded).
		Msg("bootstrap resampling finished")

	return assemble(point, samples, excluded, replicates)
}

// assemble derives the percentile intervals, enforcing the reliability rule.
func assemble(point *metrics.Report, samples map[string][]float64, excluded, replicates int) (*Report, error) {
	if excluded*2 > replicates {
		return nil, errors.NewUnreliableBootstrapError(excluded, replicates)
	}

	intervals := make(map[string]Interval, len(samples))
	for name, values := range samples {
		if len(values) == 0 {
			continue
		}
		sorted := make([]float64, len(values))
		copy(sorted, values)
		sort.Float64s(sorted)
		intervals[name] = Interval{
			Lower: stat.Quantile(0.025, stat.Empirical, sorted, nil),
			Upper: stat.Quantile(0.975, stat.Empirical, sorted, nil),
		}
	}

	return &Report{
		Point:      point,
		Intervals:  intervals,
		Replicates: replicates,
		Excluded:   excluded,
	}, nil
}

func metricNames(r *metrics.Report) []string {
	vector := r.Vector()
	names := make([]string, len(vector))
	for i, entry := range vector {
		names[i] = entry.Name
	}
	return names
}
