// Package engine defines the narrow capability interface the pipeline expects
// from a gradient-boosting backend: train a classifier from a configuration,
// score it, and explain it. Any conforming backend can be substituted without
// touching the search, bootstrap or selection logic.
package engine

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"hfoutcome/pkg/errors"
)

// Config is one boosting configuration. Zero values of the count and rate
// fields select the defaults applied by the backend; Lambda 0 is meaningful
// (unregularized) and a negative Lambda is invalid.
type Config struct {
	NumRounds    int     `json:"num_rounds"`
	LearningRate float64 `json:"learning_rate"`
	MaxDepth     int     `json:"max_depth"`
	MinLeaf      int     `json:"min_leaf"`
	Lambda       float64 `json:"lambda"`
	Seed         int64   `json:"seed"`
}

// Parameter names accepted by ConfigFromParams. These are the dimensions a
// hyperparameter space may range over.
const (
	ParamNumRounds    = "num_rounds"
	ParamLearningRate = "learning_rate"
	ParamMaxDepth     = "max_depth"
	ParamMinLeaf      = "min_leaf"
	ParamLambda       = "lambda"
)

// ConfigFromParams maps a sampled parameter assignment onto a Config.
// Unknown parameter names are configuration errors.
func ConfigFromParams(params map[string]float64, seed int64) (Config, error) {
	cfg := Config{Seed: seed}
	for name, value := range params {
		switch name {
		case ParamNumRounds:
			cfg.NumRounds = int(value)
		case ParamLearningRate:
			cfg.LearningRate = value
		case ParamMaxDepth:
			cfg.MaxDepth = int(value)
		case ParamMinLeaf:
			cfg.MinLeaf = int(value)
		case ParamLambda:
			cfg.Lambda = value
		default:
			return Config{}, errors.NewConfigurationError("hyperparameters", "unknown parameter", name)
		}
	}
	return cfg, nil
}

// Model is a trained, scorable classifier. Implementations are immutable after
// training except for Release, which frees internal buffers.
type Model interface {
	// Score returns the predicted positive-class probability per record.
	Score(X *mat.Dense) ([]float64, error)

	// Importance returns the per-feature relative importance as reported
	// natively by the backend, normalized to sum to one.
	Importance() []float64

	// Attribution returns per-record, per-feature signed contributions to the
	// model output, one row per record of X.
	Attribution(X *mat.Dense) (*mat.Dense, error)

	// Save persists the model to path so it can be reloaded and rescored
	// identically.
	Save(path string) error

	// Release frees the model's internal buffers. The model must not be used
	// afterwards.
	Release()
}

// Engine trains models. The context is checked between boosting rounds, not
// preemptively mid-round.
type Engine interface {
	Train(ctx context.Context, X *mat.Dense, y []float64, cfg Config) (Model, error)
}
