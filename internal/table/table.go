// Package table defines the tabular query result passed between the cache,
// router and repository layers.
package table

import "encoding/json"

// Table is a column-ordered query result. It is the unit of caching: the
// JSON encoding round-trips through Redis without losing column order.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

func New(columns []string) Table {
	return Table{Columns: columns, Rows: [][]any{}}
}

// Empty returns a zero-row table with no columns. Repositories return it
// on total failure so callers never see an error.
func Empty() Table {
	return Table{Columns: []string{}, Rows: [][]any{}}
}

func (t Table) Len() int {
	return len(t.Rows)
}

func (t Table) IsEmpty() bool {
	return len(t.Rows) == 0
}

// Append adds a row. Rows shorter or longer than the column set are kept
// as-is; scanning code is responsible for shape.
func (t *Table) Append(row []any) {
	t.Rows = append(t.Rows, row)
}

// Truncate limits the table to at most n rows. Non-positive n is a no-op.
func (t *Table) Truncate(n int) {
	if n > 0 && len(t.Rows) > n {
		t.Rows = t.Rows[:n]
	}
}

func (t Table) Marshal() ([]byte, error) {
	return json.Marshal(t)
}

func Unmarshal(data []byte) (Table, error) {
	var t Table
	if err := json.Unmarshal(data, &t); err != nil {
		return Table{}, err
	}
	if t.Columns == nil {
		t.Columns = []string{}
	}
	if t.Rows == nil {
		t.Rows = [][]any{}
	}
	return t, nil
}
