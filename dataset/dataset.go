// Package dataset provides the immutable column-major data frame consumed by
// training, evaluation and selection. Ingestion and categorical encoding happen
// upstream; this package only carries already-typed numeric columns.
package dataset

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"hfoutcome/pkg/errors"
)

// Dataset is an ordered set of records stored column-major. Record content is
// never mutated after construction; subsetting copies rows into a new frame.
type Dataset struct {
	n       int
	order   []string
	columns map[string][]float64
}

// New builds a Dataset from named columns. All columns must share one length.
func New(columns map[string][]float64) (*Dataset, error) {
	if len(columns) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "dataset.New")
	}

	order := make([]string, 0, len(columns))
	for name := range columns {
		order = append(order, name)
	}
	sort.Strings(order)

	n := -1
	stored := make(map[string][]float64, len(columns))
	for _, name := range order {
		col := columns[name]
		if n == -1 {
			n = len(col)
		} else if len(col) != n {
			return nil, errors.NewConfigurationError("dataset", "columns have unequal lengths", name)
		}
		c := make([]float64, len(col))
		copy(c, col)
		stored[name] = c
	}
	if n == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "dataset.New")
	}

	return &Dataset{n: n, order: order, columns: stored}, nil
}

// NumRecords returns the number of records.
func (d *Dataset) NumRecords() int { return d.n }

// Columns returns the column names in deterministic order.
func (d *Dataset) Columns() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Has reports whether the named column exists.
func (d *Dataset) Has(name string) bool {
	_, ok := d.columns[name]
	return ok
}

// Column returns the values of one column.
func (d *Dataset) Column(name string) ([]float64, error) {
	col, ok := d.columns[name]
	if !ok {
		return nil, errors.Newf("dataset: unknown column %q", name)
	}
	out := make([]float64, len(col))
	copy(out, col)
	return out, nil
}

// Matrix materializes the named feature columns as an n x len(features) dense
// matrix, in the given feature order.
func (d *Dataset) Matrix(features []string) (*mat.Dense, error) {
	if len(features) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "dataset.Matrix")
	}
	m := mat.NewDense(d.n, len(features), nil)
	for j, name := range features {
		col, ok := d.columns[name]
		if !ok {
			return nil, errors.Newf("dataset: unknown feature %q", name)
		}
		for i := 0; i < d.n; i++ {
			m.Set(i, j, col[i])
		}
	}
	return m, nil
}

// Subset builds a new Dataset holding the records at the given indices, in
// order. Indices may repeat, which is how bootstrap resamples are drawn.
func (d *Dataset) Subset(indices []int) (*Dataset, error) {
	if len(indices) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "dataset.Subset")
	}
	for _, idx := range indices {
		if idx < 0 || idx >= d.n {
			return nil, errors.Newf("dataset: index %d out of range [0,%d)", idx, d.n)
		}
	}

	columns := make(map[string][]float64, len(d.columns))
	for name, col := range d.columns {
		sub := make([]float64, len(indices))
		for i, idx := range indices {
			sub[i] = col[idx]
		}
		columns[name] = sub
	}

	order := make([]string, len(d.order))
	copy(order, d.order)
	return &Dataset{n: len(indices), order: order, columns: columns}, nil
}

// Split pairs the train and test partitions of one patient subgroup.
type Split struct {
	Name  string
	Train *Dataset
	Test  *Dataset
}
