package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hfoutcome/pkg/errors"
)

func TestNewValidatesColumnLengths(t *testing.T) {
	_, err := New(map[string][]float64{
		"age":  {60, 71, 55},
		"lvef": {35, 50},
	})
	require.Error(t, err)

	var cfg *errors.ConfigurationError
	assert.True(t, errors.As(err, &cfg))
}

func TestMatrixOrderAndValues(t *testing.T) {
	ds, err := New(map[string][]float64{
		"age":  {60, 71},
		"lvef": {35, 50},
		"y":    {1, 0},
	})
	require.NoError(t, err)

	m, err := ds.Matrix([]string{"lvef", "age"})
	require.NoError(t, err)

	rows, cols := m.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 2, cols)
	assert.Equal(t, 35.0, m.At(0, 0))
	assert.Equal(t, 60.0, m.At(0, 1))
	assert.Equal(t, 50.0, m.At(1, 0))
}

func TestSubsetAllowsRepeatedIndices(t *testing.T) {
	ds, err := New(map[string][]float64{"y": {0, 1, 1}})
	require.NoError(t, err)

	sub, err := ds.Subset([]int{2, 2, 0})
	require.NoError(t, err)
	assert.Equal(t, 3, sub.NumRecords())

	col, err := sub.Column("y")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 0}, col)
}

func TestSubsetRejectsOutOfRange(t *testing.T) {
	ds, err := New(map[string][]float64{"y": {0, 1}})
	require.NoError(t, err)

	_, err = ds.Subset([]int{0, 5})
	assert.Error(t, err)
}

func TestDatasetIsCopiedOnConstruction(t *testing.T) {
	src := []float64{1, 2, 3}
	ds, err := New(map[string][]float64{"y": src})
	require.NoError(t, err)

	src[0] = 99
	col, err := ds.Column("y")
	require.NoError(t, err)
	assert.Equal(t, 1.0, col[0])
}
