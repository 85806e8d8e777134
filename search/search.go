// Package search explores a hyperparameter space under a budget and promotes
// the best cross-validated configuration to a model trained on the full split.
package search

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"hfoutcome/engine"
	"hfoutcome/metrics"
	"hfoutcome/pkg/errors"
)

// Result is one evaluated candidate configuration with its cross-validated
// stopping-metric score. Index records evaluation order.
type Result struct {
	Index  int
	Params map[string]float64
	Config engine.Config
	Score  float64
}

// Run is the outcome of one search: every successful candidate best-first
// (ties broken by earliest evaluated), and the winner retrained on the full
// training split.
type Run struct {
	Results []Result
	Best    Result
	Model   engine.Model
}

// Engine drives budgeted random search with k-fold cross-validation.
type Engine struct {
	Backend engine.Engine
	Folds   int
	Logger  zerolog.Logger
}

// New creates a search engine over the given backend with default folds.
func New(backend engine.Engine) *Engine {
	return &Engine{Backend: backend, Folds: 5, Logger: zerolog.Nop()}
}

// Search samples configurations from space until the budget stops it, then
// retrains the top candidate on all of X. For a fixed seed the candidate
// sequence and the returned model are deterministic. label names the unit for
// error reporting only.
func (e *Engine) Search(ctx context.Context, ws *engine.Workspace, label string, X *mat.Dense, y []float64, space Space, budget Budget, seed int64) (*Run, error) {
	if err := space.Validate(); err != nil {
		return nil, err
	}
	if err := budget.Validate(); err != nil {
		return nil, err
	}

	folds := e.Folds
	if folds < 2 {
		folds = 5
	}

	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	foldRng := rand.New(rand.NewPCG(uint64(seed)+1, uint64(seed)+1))
	cvFolds := stratifiedFolds(y, folds, foldRng)

	var deadline time.Time
	if budget.MaxRuntime > 0 {
		deadline = time.Now().Add(budget.MaxRuntime)
	}

	var (
		results      []Result
		attempted    int
		lastErr      error
		bestScore    = math.Inf(-1)
		sinceImprove int
	)

	for attempted < budget.MaxModels {
		// Wall-clock budget is enforced between candidate evaluations, never
		// mid-training.
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			break
		}
		if budget.Patience > 0 && sinceImprove >= budget.Patience {
			break
		}

		params := space.sample(rng)
		attempted++

		cfg, err := engine.ConfigFromParams(params, seed)
		if err != nil {
			return nil, err
		}

		score, err := e.crossValidate(ctx, X, y, cvFolds, cfg, budget.StoppingMetric())
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			// Candidate failed to train; skip it and keep searching.
			lastErr = err
			e.Logger.Debug().Err(err).Int("candidate", attempted).Msg("candidate skipped")
			continue
		}

		results = append(results, Result{Index: attempted - 1, Params: params, Config: cfg, Score: score})

		if improved(score, bestScore, budget.Tolerance) {
			bestScore = score
			sinceImprove = 0
		} else {
			sinceImprove++
		}
	}

	if len(results) == 0 {
		return nil, errors.NewSearchExhaustedError(label, attempted, lastErr)
	}

	// Best-first; stable sort keeps earliest-evaluated ahead on ties.
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	best := results[0]

	model, err := e.Backend.Train(ctx, X, y, best.Config)
	if err != nil {
		return nil, errors.Wrapf(err, "search: retraining winning configuration for %q", label)
	}
	if ws != nil {
		ws.Track(model)
	}

	e.Logger.Info().
		Str("label", label).
		Int("evaluated", attempted).
		Int("trained", len(results)).
		Float64("best_score", best.Score).
		Msg("search finished")

	return &Run{Results: results, Best: best, Model: model}, nil
}

// improved reports whether score beats the previous best by at least the
// tolerance; a gain of exactly the tolerance counts.
func improved(score, best, tolerance float64) bool {
	return score-best >= tolerance
}

// crossValidate trains one candidate on every fold and returns the mean
// stopping-metric value on the held-out folds. Fold models are released as
// soon as they are scored so a long search never accumulates artifacts.
func (e *Engine) crossValidate(ctx context.Context, X *mat.Dense, y []float64, folds []Fold, cfg engine.Config, metric string) (float64, error) {
	var sum float64
	for _, fold := range folds {
		trainX, trainY := subset(X, y, fold.TrainIndices)
		testX, testY := subset(X, y, fold.TestIndices)

		model, err := e.Backend.Train(ctx, trainX, trainY, cfg)
		if err != nil {
			return 0, err
		}

		score, err := model.Score(testX)
		model.Release()
		if err != nil {
			return 0, err
		}

		value, err := foldMetric(metric, testY, score)
		if err != nil {
			return 0, err
		}
		sum += value
	}
	return sum / float64(len(folds)), nil
}

func foldMetric(name string, yTrue, score []float64) (float64, error) {
	switch name {
	case "auc":
		return metrics.AUC(yTrue, score)
	case "aucpr":
		return metrics.AUCPR(yTrue, score)
	default:
		return 0, errors.NewConfigurationError("search.budget.metric", "unsupported stopping metric", name)
	}
}
