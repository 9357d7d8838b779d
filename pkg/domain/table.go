package domain

import (
	"fmt"
	"strconv"

	"github.com/modelyard/modelyard/pkg/utils/slices"
)

// Table is an in-memory tabular dataset with named columns in stable order.
//
// Cells are kept as raw text; numeric interpretation is decided per column
// at the point of use.
type Table struct {
	ColumnNames []string
	Rows        [][]string
}

func (t *Table) NumRows() int {
	return len(t.Rows)
}

func (t *Table) ColumnIndex(name string) int {
	return slices.IndexOf(t.ColumnNames, name)
}

func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// Column returns the cells of the named column, top to bottom.
func (t *Table) Column(name string) ([]string, error) {
	at := t.ColumnIndex(name)
	if at < 0 {
		return nil, fmt.Errorf("%w: no column '%s'", ErrValidation, name)
	}
	return slices.Map(t.Rows, func(row []string) string { return row[at] }), nil
}

// NumericColumn parses the named column as float64s.
func (t *Table) NumericColumn(name string) ([]float64, error) {
	raw, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	return slices.MapUntilError(raw, func(cell string) (float64, error) {
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: column '%s' is not numeric: %v", ErrValidation, name, err)
		}
		return v, nil
	})
}

// IsNumericColumn reports whether every cell of the column parses as float64.
func (t *Table) IsNumericColumn(name string) bool {
	raw, err := t.Column(name)
	if err != nil {
		return false
	}
	for _, cell := range raw {
		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			return false
		}
	}
	return true
}

// DistinctCount counts distinct cell values of the column.
func (t *Table) DistinctCount(name string) (int, error) {
	raw, err := t.Column(name)
	if err != nil {
		return 0, err
	}
	seen := map[string]struct{}{}
	for _, cell := range raw {
		seen[cell] = struct{}{}
	}
	return len(seen), nil
}

// Pick returns a new table holding the given rows, in the given order.
// Row data is shared, not copied.
func (t *Table) Pick(rowIndexes []int) *Table {
	return &Table{
		ColumnNames: t.ColumnNames,
		Rows: slices.Map(rowIndexes, func(at int) []string {
			return t.Rows[at]
		}),
	}
}

// Slice returns rows [lo, hi) as a new table sharing row data.
func (t *Table) Slice(lo, hi int) *Table {
	return &Table{ColumnNames: t.ColumnNames, Rows: t.Rows[lo:hi]}
}
