package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"hfoutcome/pkg/errors"
)

type fakeModel struct {
	released bool
}

func (f *fakeModel) Score(_ *mat.Dense) ([]float64, error)        { return nil, nil }
func (f *fakeModel) Importance() []float64                        { return nil }
func (f *fakeModel) Attribution(_ *mat.Dense) (*mat.Dense, error) { return nil, nil }
func (f *fakeModel) Save(_ string) error                          { return nil }
func (f *fakeModel) Release()                                     { f.released = true }

func TestWorkspaceReleaseOnClose(t *testing.T) {
	var warned error
	errors.SetWarningHandler(func(w error) { warned = w })
	defer errors.SetWarningHandler(nil)

	ws := NewWorkspace("test-unit")
	a := &fakeModel{}
	b := &fakeModel{}
	ws.Track(a)
	ws.Track(b)

	ws.Close()

	assert.True(t, a.released)
	assert.True(t, b.released)

	var cleanup *errors.ResourceCleanupWarning
	require.True(t, errors.As(warned, &cleanup))
	assert.Equal(t, 2, cleanup.Artifacts)
}

func TestWorkspaceExplicitReleaseAvoidsWarning(t *testing.T) {
	var warned error
	errors.SetWarningHandler(func(w error) { warned = w })
	defer errors.SetWarningHandler(nil)

	ws := NewWorkspace("test-unit")
	m := &fakeModel{}
	ws.Track(m)
	ws.Release(m)

	assert.True(t, m.released)

	ws.Close()
	assert.Nil(t, warned)
}

func TestConfigFromParams(t *testing.T) {
	cfg, err := ConfigFromParams(map[string]float64{
		ParamNumRounds:    50,
		ParamLearningRate: 0.05,
		ParamMaxDepth:     4,
		ParamLambda:       2.5,
	}, 7)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.NumRounds)
	assert.Equal(t, 0.05, cfg.LearningRate)
	assert.Equal(t, 4, cfg.MaxDepth)
	assert.Equal(t, 2.5, cfg.Lambda)
	assert.Equal(t, int64(7), cfg.Seed)
}

func TestConfigFromParamsRejectsUnknown(t *testing.T) {
	_, err := ConfigFromParams(map[string]float64{"bagging": 0.5}, 0)
	require.Error(t, err)

	var cfg *errors.ConfigurationError
	assert.True(t, errors.As(err, &cfg))
}
