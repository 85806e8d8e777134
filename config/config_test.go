package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hfoutcome/pkg/errors"
)

const validYAML = `
seed: 42
log_level: info
cv_folds: 5
bootstrap_replicates: 500
outcomes: [death_1y, death_5y]
forward_outcomes: [death_1y]
subgroups: [all, lvef_reduced]
baseline_domain: demo
domains:
  - name: demo
    priority: 0
    features: [age, sex]
  - name: lab
    priority: 1
    prefix: lab_
search:
  budget:
    max_runtime_secs: 60
    max_models: 20
    metric: auc
    tolerance: 0.001
    patience: 5
  space:
    - name: num_rounds
      choices: [50, 100]
    - name: learning_rate
      min: 0.01
      max: 0.3
forward_training:
  num_rounds: 50
  learning_rate: 0.1
  max_depth: 3
  min_leaf: 10
  lambda: 1.0
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, 500, cfg.Replicates())
	assert.Equal(t, 5, cfg.Folds())
	assert.Equal(t, []string{"death_1y", "death_5y"}, cfg.Outcomes)

	budget := cfg.Budget()
	assert.Equal(t, 60*time.Second, budget.MaxRuntime)
	assert.Equal(t, 20, budget.MaxModels)

	domains, err := cfg.DomainSet()
	require.NoError(t, err)
	assert.Equal(t, "demo", domains.Baseline())

	space := cfg.Space()
	assert.Len(t, space.Params, 2)

	fwd := cfg.ForwardConfig()
	assert.Equal(t, 50, fwd.NumRounds)
	assert.Equal(t, int64(42), fwd.Seed)
}

func TestLoadRejectsUnknownForwardOutcome(t *testing.T) {
	bad := validYAML + "\n"
	cfg, err := Load(writeConfig(t, bad))
	require.NoError(t, err)
	cfg.ForwardOutcomes = []string{"never_declared"}

	err = cfg.Validate()
	require.Error(t, err)
	var cfgErr *errors.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestValidateRejectsEmptyOutcomes(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	cfg.Outcomes = nil
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsSingleFold(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	cfg.CVFolds = 1
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsEmptyRange(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	cfg.Search.Space[1].Min = 0.3
	cfg.Search.Space[1].Max = 0.3
	err = cfg.Validate()
	require.Error(t, err)

	var cfgErr *errors.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestDefaultsApplied(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	cfg.BootstrapReplicates = 0
	cfg.CVFolds = 0
	assert.Equal(t, 1000, cfg.Replicates())
	assert.Equal(t, 5, cfg.Folds())
}

func TestForwardLambdaDefaultsAndZero(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)
	assert.Equal(t, 1.0, cfg.ForwardConfig().Lambda)

	// An omitted lambda defaults; an explicit 0 stays unregularized.
	cfg.ForwardTraining.Lambda = nil
	assert.Equal(t, 1.0, cfg.ForwardConfig().Lambda)

	zero := 0.0
	cfg.ForwardTraining.Lambda = &zero
	assert.Equal(t, 0.0, cfg.ForwardConfig().Lambda)
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsNegativeForwardLambda(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	negative := -1.0
	cfg.ForwardTraining.Lambda = &negative
	err = cfg.Validate()
	require.Error(t, err)

	var cfgErr *errors.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}
