package gbdt

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"

	"hfoutcome/engine"
	"hfoutcome/pkg/errors"
)

const hessianFloor = 1e-16

// Engine trains binary gbdt classifiers. It is stateless and safe for
// concurrent use; each Train call owns its buffers.
type Engine struct{}

// New creates the default boosting engine.
func New() *Engine { return &Engine{} }

var _ engine.Engine = (*Engine)(nil)

// Train fits an ensemble to binary labels in y. The exact greedy split search
// is fully deterministic, so identical inputs always yield identical models.
// The context is checked between boosting rounds.
func (e *Engine) Train(ctx context.Context, X *mat.Dense, y []float64, cfg engine.Config) (engine.Model, error) {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "gbdt.Train")
	}
	if len(y) != rows {
		return nil, errors.Newf("gbdt: label length %d does not match %d records", len(y), rows)
	}

	positives := 0
	for _, v := range y {
		switch v {
		case 0:
		case 1:
			positives++
		default:
			return nil, errors.Newf("gbdt: label %g is not binary", v)
		}
	}
	if positives == 0 || positives == rows {
		return nil, errors.Newf("gbdt: training labels contain a single class")
	}
	if cfg.Lambda < 0 {
		return nil, errors.NewConfigurationError("lambda", "must not be negative", cfg.Lambda)
	}

	cfg = withDefaults(cfg)

	// Log-odds of the positive rate, as the additive baseline.
	initScore := math.Log(float64(positives) / float64(rows-positives))

	raw := make([]float64, rows)
	for i := range raw {
		raw[i] = initScore
	}

	builder := &treeBuilder{
		X:         X,
		grad:      make([]float64, rows),
		hess:      make([]float64, rows),
		maxDepth:  cfg.MaxDepth,
		minLeaf:   cfg.MinLeaf,
		lambda:    cfg.Lambda,
		shrinkage: cfg.LearningRate,
	}

	indices := make([]int, rows)
	for i := range indices {
		indices[i] = i
	}

	model := &Model{NumFeatures: cols, InitScore: initScore, Trees: make([]Tree, 0, cfg.NumRounds)}
	rowBuf := make([]float64, cols)

	for round := 0; round < cfg.NumRounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrapf(err, "gbdt: training canceled at round %d", round)
		}

		for i := 0; i < rows; i++ {
			p := sigmoid(raw[i])
			builder.grad[i] = p - y[i]
			h := p * (1 - p)
			if h < hessianFloor {
				h = hessianFloor
			}
			builder.hess[i] = h
		}

		tree := builder.build(indices)
		model.Trees = append(model.Trees, tree)

		for i := 0; i < rows; i++ {
			mat.Row(rowBuf, i, X)
			raw[i] += tree.predict(rowBuf)
		}
	}

	return model, nil
}

func withDefaults(cfg engine.Config) engine.Config {
	if cfg.NumRounds <= 0 {
		cfg.NumRounds = 100
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.1
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 3
	}
	if cfg.MinLeaf <= 0 {
		cfg.MinLeaf = 20
	}
	// Lambda keeps its value: 0 is valid unregularized training, and the
	// configuration layer owns the default.
	return cfg
}
