// Package config loads and validates the pipeline configuration file.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"hfoutcome/dataset"
	"hfoutcome/engine"
	"hfoutcome/pkg/errors"
	"hfoutcome/search"
)

// DomainConfig declares one feature domain by exact names or a column prefix.
type DomainConfig struct {
	Name     string   `yaml:"name"`
	Priority int      `yaml:"priority"`
	Features []string `yaml:"features"`
	Prefix   string   `yaml:"prefix"`
}

// ParamConfig declares one hyperparameter dimension.
type ParamConfig struct {
	Name    string    `yaml:"name"`
	Choices []float64 `yaml:"choices"`
	Min     float64   `yaml:"min"`
	Max     float64   `yaml:"max"`
	Integer bool      `yaml:"integer"`
}

// BudgetConfig bounds one hyperparameter search run.
type BudgetConfig struct {
	MaxRuntimeSecs int     `yaml:"max_runtime_secs"`
	MaxModels      int     `yaml:"max_models"`
	Metric         string  `yaml:"metric"`
	Tolerance      float64 `yaml:"tolerance"`
	Patience       int     `yaml:"patience"`
}

// TrainConfig is a fixed boosting configuration. Lambda is a pointer so an
// explicit 0 (unregularized) is distinguishable from an omitted value, which
// defaults to 1.
type TrainConfig struct {
	NumRounds    int      `yaml:"num_rounds"`
	LearningRate float64  `yaml:"learning_rate"`
	MaxDepth     int      `yaml:"max_depth"`
	MinLeaf      int      `yaml:"min_leaf"`
	Lambda       *float64 `yaml:"lambda"`
}

// Config is the full configuration surface of a pipeline run.
type Config struct {
	Seed                int64    `yaml:"seed"`
	LogLevel            string   `yaml:"log_level"`
	CVFolds             int      `yaml:"cv_folds"`
	BootstrapReplicates int      `yaml:"bootstrap_replicates"`
	Outcomes            []string `yaml:"outcomes"`
	ForwardOutcomes     []string `yaml:"forward_outcomes"`
	Subgroups           []string `yaml:"subgroups"`
	BaselineDomain      string   `yaml:"baseline_domain"`

	Domains []DomainConfig `yaml:"domains"`

	Search struct {
		Budget BudgetConfig  `yaml:"budget"`
		Space  []ParamConfig `yaml:"space"`
	} `yaml:"search"`

	ForwardTraining TrainConfig `yaml:"forward_training"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: read file")
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "config: parse yaml")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration before any work starts; all problems are
// ConfigurationErrors.
func (c *Config) Validate() error {
	if len(c.Outcomes) == 0 {
		return errors.NewConfigurationError("outcomes", "at least one outcome label required", len(c.Outcomes))
	}
	if len(c.Subgroups) == 0 {
		return errors.NewConfigurationError("subgroups", "at least one subgroup required", len(c.Subgroups))
	}
	if c.CVFolds < 0 || c.CVFolds == 1 {
		return errors.NewConfigurationError("cv_folds", "must be 0 (default) or at least 2", c.CVFolds)
	}
	if c.BootstrapReplicates < 0 {
		return errors.NewConfigurationError("bootstrap_replicates", "must not be negative", c.BootstrapReplicates)
	}
	for _, outcome := range c.ForwardOutcomes {
		if !contains(c.Outcomes, outcome) {
			return errors.NewConfigurationError("forward_outcomes", "not a declared outcome", outcome)
		}
	}
	if l := c.ForwardTraining.Lambda; l != nil && *l < 0 {
		return errors.NewConfigurationError("forward_training.lambda", "must not be negative", *l)
	}
	if _, err := c.DomainSet(); err != nil {
		return err
	}
	if err := c.Space().Validate(); err != nil {
		return err
	}
	if err := c.Budget().Validate(); err != nil {
		return err
	}
	return nil
}

// DomainSet builds the validated domain partition.
func (c *Config) DomainSet() (*dataset.DomainSet, error) {
	domains := make([]dataset.Domain, len(c.Domains))
	for i, d := range c.Domains {
		domains[i] = dataset.Domain{
			Name:     d.Name,
			Priority: d.Priority,
			Names:    d.Features,
			Prefix:   d.Prefix,
		}
	}
	return dataset.NewDomainSet(c.BaselineDomain, domains)
}

// Space builds the hyperparameter space.
func (c *Config) Space() search.Space {
	params := make([]search.Param, len(c.Search.Space))
	for i, p := range c.Search.Space {
		params[i] = search.Param{
			Name:    p.Name,
			Choices: p.Choices,
			Min:     p.Min,
			Max:     p.Max,
			Integer: p.Integer,
		}
	}
	return search.Space{Params: params}
}

// Budget builds the search budget.
func (c *Config) Budget() search.Budget {
	return search.Budget{
		MaxRuntime: time.Duration(c.Search.Budget.MaxRuntimeSecs) * time.Second,
		MaxModels:  c.Search.Budget.MaxModels,
		Metric:     c.Search.Budget.Metric,
		Tolerance:  c.Search.Budget.Tolerance,
		Patience:   c.Search.Budget.Patience,
	}
}

// ForwardConfig builds the fixed configuration used by forward selection.
func (c *Config) ForwardConfig() engine.Config {
	lambda := 1.0
	if c.ForwardTraining.Lambda != nil {
		lambda = *c.ForwardTraining.Lambda
	}
	return engine.Config{
		NumRounds:    c.ForwardTraining.NumRounds,
		LearningRate: c.ForwardTraining.LearningRate,
		MaxDepth:     c.ForwardTraining.MaxDepth,
		MinLeaf:      c.ForwardTraining.MinLeaf,
		Lambda:       lambda,
		Seed:         c.Seed,
	}
}

// Replicates returns the bootstrap replicate count with its default.
func (c *Config) Replicates() int {
	if c.BootstrapReplicates == 0 {
		return 1000
	}
	return c.BootstrapReplicates
}

// Folds returns the cross-validation fold count with its default.
func (c *Config) Folds() int {
	if c.CVFolds == 0 {
		return 5
	}
	return c.CVFolds
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
