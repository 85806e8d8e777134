// Package pipeline sequences model search, bootstrap evaluation and
// explanation across patient subgroups and outcome labels, and runs the
// forward domain-selection procedure per outcome.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"hfoutcome/bootstrap"
	"hfoutcome/config"
	"hfoutcome/dataset"
	"hfoutcome/engine"
	"hfoutcome/forward"
	"hfoutcome/importance"
	"hfoutcome/pkg/errors"
	"hfoutcome/search"
)

// Unit identifies one (subgroup, outcome) cell of the main pipeline.
type Unit struct {
	Subgroup string
	Outcome  string
}

// UnitFailure records a unit that aborted; the run continues past it.
type UnitFailure struct {
	Unit Unit
	Err  error
}

// UnitResult is the successful output of one unit.
type UnitResult struct {
	Unit       Unit
	Bootstrap  *bootstrap.Report
	Importance *importance.Tables
	BestParams map[string]float64
	ModelPath  string
}

// RunResult aggregates the whole main pipeline run.
type RunResult struct {
	Reports  []*SubgroupReport
	Results  []UnitResult
	Failures []UnitFailure
}

// Pipeline owns the collaborators and configuration of a full run.
type Pipeline struct {
	Backend    engine.Engine
	Searcher   *search.Engine
	Booter     *bootstrap.Evaluator
	Domains    *dataset.DomainSet
	Space      search.Space
	Budget     search.Budget
	ForwardCfg engine.Config
	Outcomes   []string
	Seed       int64
	Workers    int
	ModelDir   string
	Logger     zerolog.Logger
}

// New wires a pipeline from configuration and a boosting backend.
func New(cfg *config.Config, backend engine.Engine, logger zerolog.Logger) (*Pipeline, error) {
	domains, err := cfg.DomainSet()
	if err != nil {
		return nil, err
	}

	searcher := search.New(backend)
	searcher.Folds = cfg.Folds()
	searcher.Logger = logger

	booter := bootstrap.New()
	booter.Replicates = cfg.Replicates()
	booter.Logger = logger

	return &Pipeline{
		Backend:    backend,
		Searcher:   searcher,
		Booter:     booter,
		Domains:    domains,
		Space:      cfg.Space(),
		Budget:     cfg.Budget(),
		ForwardCfg: cfg.ForwardConfig(),
		Outcomes:   cfg.Outcomes,
		Seed:       cfg.Seed,
		Workers:    runtime.NumCPU(),
		Logger:     logger,
	}, nil
}

// Run processes every (subgroup, outcome) unit: hyperparameter search, full
// evaluation with bootstrap intervals, and importance export. Units are
// independent and run concurrently; a failed unit is recorded and the run
// continues.
func (p *Pipeline) Run(ctx context.Context, splits []dataset.Split) (*RunResult, error) {
	if len(splits) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "pipeline.Run")
	}

	workers := p.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var (
		mu       sync.Mutex
		results  []UnitResult
		failures []UnitFailure
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, split := range splits {
		for _, outcome := range p.Outcomes {
			split, outcome := split, outcome
			unit := Unit{Subgroup: split.Name, Outcome: outcome}
			g.Go(func() error {
				res, err := p.runUnit(gctx, unit, split.Train, split.Test, outcome)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					p.Logger.Error().Err(err).
						Str("subgroup", unit.Subgroup).
						Str("outcome", unit.Outcome).
						Msg("unit failed")
					failures = append(failures, UnitFailure{Unit: unit, Err: err})
					return nil
				}
				results = append(results, *res)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Unit.Subgroup != results[j].Unit.Subgroup {
			return results[i].Unit.Subgroup < results[j].Unit.Subgroup
		}
		return outcomeIndex(p.Outcomes, results[i].Unit.Outcome) < outcomeIndex(p.Outcomes, results[j].Unit.Outcome)
	})

	return &RunResult{
		Reports:  p.consolidate(splits, results),
		Results:  results,
		Failures: failures,
	}, nil
}

// runUnit executes one (subgroup, outcome) cell inside its own workspace so
// every model trained for the unit is released on all exit paths.
func (p *Pipeline) runUnit(ctx context.Context, unit Unit, train, test *dataset.Dataset, outcome string) (_ *UnitResult, err error) {
	ws := engine.NewWorkspace(fmt.Sprintf("subgroup=%s/outcome=%s", unit.Subgroup, unit.Outcome))
	defer ws.Close()

	features, err := p.featureList(train)
	if err != nil {
		return nil, err
	}

	trainX, err := train.Matrix(features)
	if err != nil {
		return nil, err
	}
	trainY, err := train.Column(outcome)
	if err != nil {
		return nil, err
	}

	label := unit.Subgroup + "/" + outcome
	run, err := p.Searcher.Search(ctx, ws, label, trainX, trainY, p.Space, p.Budget, p.Seed)
	if err != nil {
		return nil, err
	}

	testX, err := test.Matrix(features)
	if err != nil {
		return nil, err
	}
	testY, err := test.Column(outcome)
	if err != nil {
		return nil, err
	}

	br, err := p.Booter.Evaluate(run.Model, testX, testY, p.Seed)
	if err != nil {
		return nil, err
	}

	tables, err := importance.Compute(run.Model, testX, features)
	if err != nil {
		return nil, err
	}

	result := &UnitResult{
		Unit:       unit,
		Bootstrap:  br,
		Importance: tables,
		BestParams: run.Best.Params,
	}

	if p.ModelDir != "" {
		path := filepath.Join(p.ModelDir, fmt.Sprintf("%s_%s.json", unit.Subgroup, unit.Outcome))
		if err := run.Model.Save(path); err != nil {
			return nil, err
		}
		result.ModelPath = path
	}

	ws.Release(run.Model)
	return result, nil
}

// RunSelection executes forward domain selection on the given split for each
// outcome, fully independently. A failed outcome is recorded; the rest run.
func (p *Pipeline) RunSelection(ctx context.Context, split dataset.Split, outcomes []string) (map[string]*forward.State, []UnitFailure) {
	selector := forward.New(p.Backend, p.ForwardCfg)
	selector.Workers = p.Workers
	selector.Logger = p.Logger

	states := make(map[string]*forward.State, len(outcomes))
	var failures []UnitFailure

	for _, outcome := range outcomes {
		features, err := p.featureList(split.Train)
		if err == nil {
			var groups map[string][]string
			groups, err = p.Domains.Resolve(features)
			if err == nil {
				var state *forward.State
				state, err = selector.Run(ctx, p.Domains, groups, split.Train, split.Test, outcome)
				if err == nil {
					states[outcome] = state
					continue
				}
			}
		}
		p.Logger.Error().Err(err).Str("outcome", outcome).Msg("forward selection failed")
		failures = append(failures, UnitFailure{Unit: Unit{Subgroup: split.Name, Outcome: outcome}, Err: err})
	}

	return states, failures
}

// featureList returns the model features of a dataset: every column that is
// not a declared outcome label, in deterministic order.
func (p *Pipeline) featureList(ds *dataset.Dataset) ([]string, error) {
	var features []string
	for _, col := range ds.Columns() {
		if !isOutcome(p.Outcomes, col) {
			features = append(features, col)
		}
	}
	if len(features) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "pipeline: no feature columns")
	}
	// Fail fast if any feature falls outside the declared domains.
	if _, err := p.Domains.Resolve(features); err != nil {
		return nil, err
	}
	return features, nil
}

// consolidate builds one report per subgroup in the input subgroup order.
func (p *Pipeline) consolidate(splits []dataset.Split, results []UnitResult) []*SubgroupReport {
	bySubgroup := make(map[string]*SubgroupReport, len(splits))
	reports := make([]*SubgroupReport, 0, len(splits))
	for _, split := range splits {
		r := &SubgroupReport{Subgroup: split.Name}
		bySubgroup[split.Name] = r
		reports = append(reports, r)
	}

	for _, res := range results {
		r := bySubgroup[res.Unit.Subgroup]
		if r == nil {
			continue
		}
		r.Rows = append(r.Rows, newOutcomeRow(res.Unit.Outcome, res.Bootstrap))
	}
	return reports
}

func outcomeIndex(outcomes []string, outcome string) int {
	for i, o := range outcomes {
		if o == outcome {
			return i
		}
	}
	return len(outcomes)
}

func isOutcome(outcomes []string, col string) bool {
	for _, o := range outcomes {
		if o == col {
			return true
		}
	}
	return false
}
