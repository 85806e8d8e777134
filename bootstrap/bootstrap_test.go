package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"hfoutcome/engine"
	"hfoutcome/engine/gbdt"
	"hfoutcome/metrics"
	"hfoutcome/pkg/errors"
)

func trainedModel(t *testing.T) (engine.Model, *mat.Dense, []float64) {
	t.Helper()

	X := mat.NewDense(100, 2, nil)
	y := make([]float64, 100)
	for i := 0; i < 100; i++ {
		x0 := float64(i%50) / 50.0
		X.Set(i, 0, x0)
		X.Set(i, 1, float64(i%11)/11.0)
		if x0 > 0.5 {
			y[i] = 1
		}
	}

	cfg := engine.Config{NumRounds: 10, LearningRate: 0.2, MaxDepth: 3, MinLeaf: 5, Lambda: 1}
	model, err := gbdt.New().Train(context.Background(), X, y, cfg)
	require.NoError(t, err)
	return model, X, y
}

func TestEvaluateProducesOrderedIntervals(t *testing.T) {
	model, X, y := trainedModel(t)

	ev := New()
	ev.Replicates = 200
	report, err := ev.Evaluate(model, X, y, 42)
	require.NoError(t, err)

	assert.Equal(t, 200, report.Replicates)
	require.NotNil(t, report.Point)

	for name, iv := range report.Intervals {
		assert.LessOrEqual(t, iv.Lower, iv.Upper, "metric %s interval inverted", name)
	}
	// All six reported metrics get an interval.
	assert.Len(t, report.Intervals, 6)
}

func TestEvaluateDeterministicForFixedSeed(t *testing.T) {
	model, X, y := trainedModel(t)

	ev := New()
	ev.Replicates = 150

	a, err := ev.Evaluate(model, X, y, 7)
	require.NoError(t, err)
	b, err := ev.Evaluate(model, X, y, 7)
	require.NoError(t, err)

	assert.Equal(t, a.Point, b.Point)
	assert.Equal(t, a.Intervals, b.Intervals)
	assert.Equal(t, a.Excluded, b.Excluded)
}

func TestEvaluatePointFromFullSample(t *testing.T) {
	model, X, y := trainedModel(t)

	ev := New()
	ev.Replicates = 50
	report, err := ev.Evaluate(model, X, y, 3)
	require.NoError(t, err)

	score, err := model.Score(X)
	require.NoError(t, err)
	want, err := metrics.Compute(y, score)
	require.NoError(t, err)

	assert.Equal(t, want, report.Point)
}

func TestEvaluateDegenerateTestSplit(t *testing.T) {
	model, X, _ := trainedModel(t)
	allNegative := make([]float64, 100)

	ev := New()
	_, err := ev.Evaluate(model, X, allNegative, 1)
	require.Error(t, err)

	var degen *errors.DegenerateSampleError
	assert.True(t, errors.As(err, &degen))
}

func TestAssembleRejectsMajorityExclusion(t *testing.T) {
	point := &metrics.Report{AUC: 0.8}
	samples := map[string][]float64{"auc": {0.7, 0.8, 0.9}}

	_, err := assemble(point, samples, 501, 1000)
	require.Error(t, err)

	var unreliable *errors.UnreliableBootstrapError
	require.True(t, errors.As(err, &unreliable))
	assert.Equal(t, 501, unreliable.Excluded)
}

func TestAssembleToleratesMinorityExclusion(t *testing.T) {
	point := &metrics.Report{AUC: 0.8}
	samples := map[string][]float64{"auc": {0.5, 0.6, 0.7, 0.8, 0.9}}

	report, err := assemble(point, samples, 499, 1000)
	require.NoError(t, err)

	iv := report.Intervals["auc"]
	assert.LessOrEqual(t, iv.Lower, iv.Upper)
	assert.GreaterOrEqual(t, iv.Lower, 0.5)
	assert.LessOrEqual(t, iv.Upper, 0.9)
	assert.Equal(t, 499, report.Excluded)
}

// noisyModel trains on overlapping classes so resampled metrics genuinely
// vary across replicates.
func noisyModel(t *testing.T) (engine.Model, *mat.Dense, []float64) {
	t.Helper()

	X := mat.NewDense(100, 2, nil)
	y := make([]float64, 100)
	for i := 0; i < 100; i++ {
		x0 := float64(i%50) / 50.0
		X.Set(i, 0, x0)
		X.Set(i, 1, float64(i%11)/11.0)
		if x0 > 0.5 {
			y[i] = 1
		}
		if i%9 == 0 {
			y[i] = 1 - y[i]
		}
	}

	cfg := engine.Config{NumRounds: 10, LearningRate: 0.2, MaxDepth: 3, MinLeaf: 5, Lambda: 1}
	model, err := gbdt.New().Train(context.Background(), X, y, cfg)
	require.NoError(t, err)
	return model, X, y
}

func TestIntervalWidthConcentratesWithMoreReplicates(t *testing.T) {
	model, X, y := noisyModel(t)

	widths := func(replicates int) []float64 {
		ev := New()
		ev.Replicates = replicates
		out := make([]float64, 0, 10)
		for seed := int64(1); seed <= 10; seed++ {
			report, err := ev.Evaluate(model, X, y, seed)
			require.NoError(t, err)
			iv := report.Intervals["auc"]
			require.Greater(t, iv.Upper, iv.Lower)
			out = append(out, iv.Upper-iv.Lower)
		}
		return out
	}

	small := widths(200)
	large := widths(2000)

	// More replicates pin the percentile endpoints down: widths from
	// independent seeds converge on a common value and scatter far less.
	assert.InEpsilon(t, stat.Mean(small, nil), stat.Mean(large, nil), 0.25)
	assert.Less(t, stat.StdDev(large, nil), stat.StdDev(small, nil))
}
