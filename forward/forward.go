// Package forward implements greedy wrapper-style feature-group selection:
// starting from the baseline domain, each iteration trains one fixed
// configuration per remaining candidate domain concurrently and permanently
// accepts the best-performing one.
package forward

import (
	"context"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"hfoutcome/dataset"
	"hfoutcome/engine"
	"hfoutcome/metrics"
	"hfoutcome/pkg/errors"
)

// Phase is the selector's lifecycle state.
type Phase int

const (
	PhaseInitial Phase = iota
	PhaseIterating
	PhaseDone
)

// HistoryRow records one accepted domain with its held-out performance.
type HistoryRow struct {
	Domain  string
	AUC     float64
	MSE     float64
	Elapsed time.Duration
}

// State is the selection state for one outcome run. Domains only ever move
// from Pool to History; the selected feature set grows monotonically.
type State struct {
	Phase    Phase
	Selected []string
	History  []HistoryRow
	Pool     []string
}

// Selector runs forward selection with a single fixed training configuration
// per candidate (no hyperparameter search).
type Selector struct {
	Backend engine.Engine
	Config  engine.Config
	Workers int
	Logger  zerolog.Logger
}

// New creates a selector bounded by the available compute units.
func New(backend engine.Engine, cfg engine.Config) *Selector {
	return &Selector{Backend: backend, Config: cfg, Workers: runtime.NumCPU(), Logger: zerolog.Nop()}
}

type candidateResult struct {
	domain  string
	auc     float64
	mse     float64
	elapsed time.Duration
}

// Run executes the full selection for one outcome label. domains declares the
// candidate groups, groups maps each domain to its features (as resolved
// against the dataset), and train/test are the shared read-only splits.
// Iterations are strictly sequential; candidates within an iteration run
// concurrently and are reduced only after the full join.
func (s *Selector) Run(ctx context.Context, domains *dataset.DomainSet, groups map[string][]string, train, test *dataset.Dataset, label string) (*State, error) {
	baseline := domains.Baseline()
	baseFeatures, ok := groups[baseline]
	if !ok || len(baseFeatures) == 0 {
		return nil, errors.NewConfigurationError("forward.baseline", "baseline domain resolves to no features", baseline)
	}

	state := &State{Phase: PhaseInitial}
	state.Selected = append(state.Selected, baseFeatures...)

	for name := range groups {
		if name != baseline {
			state.Pool = append(state.Pool, name)
		}
	}
	sort.Slice(state.Pool, func(i, j int) bool {
		return domains.Priority(state.Pool[i]) < domains.Priority(state.Pool[j])
	})

	yTrain, err := train.Column(label)
	if err != nil {
		return nil, err
	}
	yTest, err := test.Column(label)
	if err != nil {
		return nil, err
	}

	workers := s.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	for len(state.Pool) > 0 {
		state.Phase = PhaseIterating

		results := make([]candidateResult, len(state.Pool))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)

		for i, domain := range state.Pool {
			i, domain := i, domain
			g.Go(func() error {
				res, err := s.evaluateCandidate(gctx, state.Selected, groups[domain], train, test, yTrain, yTest)
				if err != nil {
					return errors.Wrapf(err, "forward: candidate domain %q", domain)
				}
				res.domain = domain
				results[i] = res
				return nil
			})
		}
		// Full join barrier: the greedy reduction only sees complete results.
		if err := g.Wait(); err != nil {
			return nil, err
		}

		best := 0
		for i := 1; i < len(results); i++ {
			if better(results[i], results[best], domains) {
				best = i
			}
		}
		accepted := results[best]

		state.History = append(state.History, HistoryRow{
			Domain:  accepted.domain,
			AUC:     accepted.auc,
			MSE:     accepted.mse,
			Elapsed: accepted.elapsed,
		})
		state.Selected = append(state.Selected, groups[accepted.domain]...)
		state.Pool = removeDomain(state.Pool, accepted.domain)

		s.Logger.Info().
			Str("label", label).
			Str("domain", accepted.domain).
			Float64("auc", accepted.auc).
			Int("remaining", len(state.Pool)).
			Msg("domain accepted")
	}

	state.Phase = PhaseDone
	return state, nil
}

// evaluateCandidate trains the fixed configuration on selected+candidate
// features and scores it on the held-out split. The model is released before
// returning.
func (s *Selector) evaluateCandidate(ctx context.Context, selected, candidate []string, train, test *dataset.Dataset, yTrain, yTest []float64) (candidateResult, error) {
	features := make([]string, 0, len(selected)+len(candidate))
	features = append(features, selected...)
	features = append(features, candidate...)

	trainX, err := train.Matrix(features)
	if err != nil {
		return candidateResult{}, err
	}
	testX, err := test.Matrix(features)
	if err != nil {
		return candidateResult{}, err
	}

	start := time.Now()
	model, err := s.Backend.Train(ctx, trainX, yTrain, s.Config)
	if err != nil {
		return candidateResult{}, err
	}
	defer model.Release()

	score, err := model.Score(testX)
	if err != nil {
		return candidateResult{}, err
	}
	elapsed := time.Since(start)

	auc, err := metrics.AUC(yTest, score)
	if err != nil {
		return candidateResult{}, err
	}
	mse, err := metrics.MSE(yTest, score)
	if err != nil {
		return candidateResult{}, err
	}

	return candidateResult{auc: auc, mse: mse, elapsed: elapsed}, nil
}

// better implements greedy acceptance order: max AUC, ties by lowest MSE, then
// by the domain's declared priority.
func better(a, b candidateResult, domains *dataset.DomainSet) bool {
	if a.auc != b.auc {
		return a.auc > b.auc
	}
	if a.mse != b.mse {
		return a.mse < b.mse
	}
	return domains.Priority(a.domain) < domains.Priority(b.domain)
}

func removeDomain(pool []string, domain string) []string {
	out := pool[:0]
	for _, d := range pool {
		if d != domain {
			out = append(out, d)
		}
	}
	return out
}
