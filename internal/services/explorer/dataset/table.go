package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/louisbranch/sqlitedesk/internal/platform/storage/sqliteutil"
)

// Table is a fully read table.
type Table struct {
	Name    string
	Columns []string
	Rows    []sqliteutil.Row
}

// WriteCSV writes the table as UTF-8 CSV: a header row, then one record per
// row with NULL as an empty field.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range t.Rows {
		if err := cw.Write(row.Strings()); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// CSVFilename returns the download name for table, replacing characters that
// are unsafe in a Content-Disposition filename.
func CSVFilename(table string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(table))
	name = strings.Trim(name, ".")
	if name == "" {
		name = "table"
	}
	return name + ".csv"
}
