package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"hfoutcome/pkg/errors"
)

// FromCSV reads a headered numeric CSV into a Dataset. Every cell must parse
// as a float; typing and encoding of raw clinical exports happen upstream.
func FromCSV(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "dataset: read csv header")
	}
	names := make([]string, len(header))
	copy(names, header)

	columns := make(map[string][]float64, len(names))
	for _, name := range names {
		if _, dup := columns[name]; dup {
			return nil, errors.NewConfigurationError("dataset", "duplicate csv column", name)
		}
		columns[name] = nil
	}

	row := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "dataset: read csv row %d", row)
		}
		for i, cell := range record {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "dataset: row %d column %q", row, names[i])
			}
			columns[names[i]] = append(columns[names[i]], v)
		}
		row++
	}

	return New(columns)
}

// LoadCSV reads a Dataset from a CSV file on disk.
func LoadCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "dataset: open csv")
	}
	defer f.Close()
	return FromCSV(f)
}
