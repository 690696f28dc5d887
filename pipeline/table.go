package pipeline

import (
	"fmt"
	"io"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Table holds uploaded or entered rows as text, keyed by column name.
// Values are never type-converted so a table writes back exactly what was read.
type Table struct {
	df      dataframe.DataFrame
	columns map[string]int
}

// NewTable builds a table from a header and rows of equal width.
func NewTable(header []string, records [][]string) (*Table, error) {
	if len(header) == 0 {
		return nil, fmt.Errorf("table has no columns")
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("table has no rows")
	}
	all := make([][]string, 0, len(records)+1)
	all = append(all, header)
	for i, record := range records {
		if len(record) != len(header) {
			return nil, fmt.Errorf("row %d has %d fields, header has %d", i+1, len(record), len(header))
		}
		all = append(all, record)
	}
	df := dataframe.LoadRecords(all,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues([]string{}),
	)
	if df.Err != nil {
		return nil, df.Err
	}
	return fromDataFrame(df), nil
}

func fromDataFrame(df dataframe.DataFrame) *Table {
	names := df.Names()
	columns := make(map[string]int, len(names))
	for i, name := range names {
		columns[name] = i
	}
	return &Table{df: df, columns: columns}
}

func (t *Table) Len() int { return t.df.Nrow() }

func (t *Table) Columns() []string { return t.df.Names() }

func (t *Table) HasColumn(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// Value returns the text stored at row for the named column.
func (t *Table) Value(row int, column string) (string, bool) {
	idx, ok := t.columns[column]
	if !ok || row < 0 || row >= t.df.Nrow() {
		return "", false
	}
	return t.df.Elem(row, idx).String(), true
}

// Rows returns the data rows without the header.
func (t *Table) Rows() [][]string {
	records := t.df.Records()
	return records[1:]
}

// WithColumn returns a copy of the table with the named column set to values,
// replacing an existing column of the same name.
func (t *Table) WithColumn(name string, values []string) (*Table, error) {
	if len(values) != t.Len() {
		return nil, fmt.Errorf("column %s has %d values for %d rows", name, len(values), t.Len())
	}
	df := t.df.Mutate(series.New(values, series.String, name))
	if df.Err != nil {
		return nil, df.Err
	}
	return fromDataFrame(df), nil
}

// WriteCSV writes a header row followed by every data row, comma separated.
func (t *Table) WriteCSV(w io.Writer) error {
	return t.df.WriteCSV(w, dataframe.WriteHeader(true))
}
