package sqliteutil

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

// Row is one result row whose values are addressable by column name while
// keeping the column order reported by the query.
type Row struct {
	columns []string
	index   map[string]int
	values  []any
}

// NewRow pairs columns with values. Extra values are dropped and missing ones
// read as NULL.
func NewRow(columns []string, values []any) Row {
	row := Row{
		columns: append([]string(nil), columns...),
		index:   make(map[string]int, len(columns)),
		values:  make([]any, len(columns)),
	}
	for i, column := range columns {
		if _, seen := row.index[column]; !seen {
			row.index[column] = i
		}
		if i < len(values) {
			row.values[i] = values[i]
		}
	}
	return row
}

// Columns returns the ordered column names.
func (r Row) Columns() []string {
	return append([]string(nil), r.columns...)
}

// Len returns the number of columns.
func (r Row) Len() int {
	return len(r.columns)
}

// Get returns the raw value of column and whether the column exists.
func (r Row) Get(column string) (any, bool) {
	i, ok := r.index[column]
	if !ok {
		return nil, false
	}
	return r.values[i], true
}

// String returns the display form of column, or "" when absent or NULL.
func (r Row) String(column string) string {
	value, _ := r.Get(column)
	return FormatValue(value)
}

// Strings returns the display form of every value in column order.
func (r Row) Strings() []string {
	out := make([]string, len(r.values))
	for i, value := range r.values {
		out[i] = FormatValue(value)
	}
	return out
}

// FormatValue renders a driver value for HTML and CSV output. NULL is "".
func FormatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}

// ScanRows drains rows into Row values. It does not close rows.
func ScanRows(rows *sql.Rows) ([]string, []Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("read columns: %w", err)
	}
	out := []Row{}
	for rows.Next() {
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}
		for i, value := range values {
			// The driver may reuse byte buffers between rows.
			if b, ok := value.([]byte); ok {
				values[i] = append([]byte(nil), b...)
			}
		}
		out = append(out, NewRow(columns, values))
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate rows: %w", err)
	}
	return columns, out, nil
}
