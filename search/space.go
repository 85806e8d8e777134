package search

import (
	"math"
	"math/rand/v2"
	"time"

	"hfoutcome/pkg/errors"
)

// Param is one dimension of the hyperparameter space: either a discrete set of
// choices or a continuous [Min, Max] range.
type Param struct {
	Name    string
	Choices []float64
	Min     float64
	Max     float64
	Integer bool
}

// Space is the set of parameter dimensions sampled during search.
type Space struct {
	Params []Param
}

// Validate rejects empty or inverted ranges.
func (s Space) Validate() error {
	if len(s.Params) == 0 {
		return errors.NewConfigurationError("search.space", "no parameters declared", 0)
	}
	seen := make(map[string]bool, len(s.Params))
	for _, p := range s.Params {
		if p.Name == "" {
			return errors.NewConfigurationError("search.space", "parameter name must not be empty", p)
		}
		if seen[p.Name] {
			return errors.NewConfigurationError("search.space", "duplicate parameter", p.Name)
		}
		seen[p.Name] = true
		if len(p.Choices) == 0 && p.Min >= p.Max {
			return errors.NewConfigurationError("search.space", "empty range", p.Name)
		}
	}
	return nil
}

// sample draws one configuration from the space.
func (s Space) sample(rng *rand.Rand) map[string]float64 {
	params := make(map[string]float64, len(s.Params))
	for _, p := range s.Params {
		var v float64
		if len(p.Choices) > 0 {
			v = p.Choices[rng.IntN(len(p.Choices))]
		} else {
			v = p.Min + rng.Float64()*(p.Max-p.Min)
			if p.Integer {
				v = math.Round(v)
			}
		}
		params[p.Name] = v
	}
	return params
}

// Budget bounds one search run. A zero MaxRuntime or Patience disables that
// criterion; MaxModels must always be positive so the search terminates.
type Budget struct {
	MaxRuntime time.Duration
	MaxModels  int
	Metric     string
	Tolerance  float64
	Patience   int
}

// Validate rejects budgets that cannot guarantee termination.
func (b Budget) Validate() error {
	if b.MaxModels <= 0 {
		return errors.NewConfigurationError("search.budget.max_models", "must be positive", b.MaxModels)
	}
	if b.MaxRuntime < 0 {
		return errors.NewConfigurationError("search.budget.max_runtime", "must not be negative", b.MaxRuntime)
	}
	if b.Tolerance < 0 {
		return errors.NewConfigurationError("search.budget.tolerance", "must not be negative", b.Tolerance)
	}
	if b.Patience < 0 {
		return errors.NewConfigurationError("search.budget.patience", "must not be negative", b.Patience)
	}
	switch b.Metric {
	case "", "auc", "aucpr":
	default:
		return errors.NewConfigurationError("search.budget.metric", "unsupported stopping metric", b.Metric)
	}
	return nil
}

// StoppingMetric returns the configured stopping metric, defaulting to AUC.
func (b Budget) StoppingMetric() string {
	if b.Metric == "" {
		return "auc"
	}
	return b.Metric
}
