// Package sqliteutil holds the SQLite plumbing shared by the cars store and the
// dataset explorer: opening existing files, schema introspection, identifier
// quoting and name-addressable row scanning.
package sqliteutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

var (
	// ErrStoreMissing indicates the backing database file does not exist.
	ErrStoreMissing = errors.New("sqlite store not found")
	// ErrTableMissing indicates schema introspection found no such table.
	ErrTableMissing = errors.New("table not found")
)

// Queryer is the read surface shared by *sql.DB, *sql.Conn and *sql.Tx.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Column describes one column reported by PRAGMA table_info.
type Column struct {
	Name       string
	Type       string
	NotNull    bool
	PrimaryKey bool
}

// DSN builds the driver connection string for a database file.
func DSN(path string) string {
	return filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

// OpenExisting opens the SQLite file at path. It never creates a database:
// a missing file yields an error matching ErrStoreMissing.
func OpenExisting(ctx context.Context, path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrStoreMissing, path)
		}
		return nil, fmt.Errorf("stat sqlite db: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("sqlite db %s is a directory", path)
	}
	sqlDB, err := sql.Open(DriverName, DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return sqlDB, nil
}

// OpenMemory opens a private in-memory database. The pool is pinned to one
// connection because every new :memory: connection is a separate database.
func OpenMemory(ctx context.Context) (*sql.DB, error) {
	sqlDB, err := sql.Open(DriverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetConnMaxIdleTime(0)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite memory db: %w", err)
	}
	return sqlDB, nil
}

// QuoteIdent quotes name for use as a table or column identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// TableColumns returns the ordered columns of table.
func TableColumns(ctx context.Context, q Queryer, table string) ([]Column, error) {
	rows, err := q.QueryContext(ctx, "PRAGMA table_info("+QuoteIdent(table)+")")
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var (
			cid       int
			column    Column
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &column.Name, &column.Type, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("table info %s: %w", table, err)
		}
		column.NotNull = notNull != 0
		column.PrimaryKey = pk != 0
		columns = append(columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTableMissing, table)
	}
	return columns, nil
}

// timeDeclTypes are the declared types whose TEXT values the driver parses
// into time.Time.
var timeDeclTypes = map[string]struct{}{
	"DATE":      {},
	"DATETIME":  {},
	"TIMESTAMP": {},
}

// SelectExpr returns the result expression that reads the column as stored.
// Date and time typed columns are read through CAST so the value keeps its
// stored text instead of being reparsed by the driver.
func (c Column) SelectExpr() string {
	quoted := QuoteIdent(c.Name)
	if _, ok := timeDeclTypes[strings.ToUpper(strings.TrimSpace(c.Type))]; ok {
		return "CAST(" + quoted + " AS TEXT) AS " + quoted
	}
	return quoted
}

// SelectList joins the result expressions of columns for a SELECT clause.
func SelectList(columns []Column) string {
	exprs := make([]string, len(columns))
	for i, column := range columns {
		exprs[i] = column.SelectExpr()
	}
	return strings.Join(exprs, ", ")
}

// SelectAll returns a query reading every column of table as stored, in
// schema order. Callers append WHERE and ORDER BY clauses.
func SelectAll(ctx context.Context, q Queryer, table string) (string, error) {
	columns, err := TableColumns(ctx, q, table)
	if err != nil {
		return "", err
	}
	return "SELECT " + SelectList(columns) + " FROM " + QuoteIdent(table), nil
}

// ColumnNames returns the ordered column names of table.
func ColumnNames(ctx context.Context, q Queryer, table string) ([]string, error) {
	columns, err := TableColumns(ctx, q, table)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(columns))
	for i, column := range columns {
		names[i] = column.Name
	}
	return names, nil
}

// Tables returns the user tables of the database sorted by name.
func Tables(ctx context.Context, q Queryer) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT name
		   FROM sqlite_master
		  WHERE type = 'table'
		    AND name NOT LIKE 'sqlite\_%' ESCAPE '\'
		  ORDER BY name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

// IsNotADatabase reports whether err means the file is not a SQLite database.
func IsNotADatabase(err error) bool {
	return hasPrimaryCode(err, sqlite3lib.SQLITE_NOTADB) ||
		(err != nil && strings.Contains(strings.ToLower(err.Error()), "file is not a database"))
}

// IsConstraintViolation reports whether err is a constraint or datatype
// mismatch failure raised by SQLite for a single statement.
func IsConstraintViolation(err error) bool {
	return hasPrimaryCode(err, sqlite3lib.SQLITE_CONSTRAINT) || hasPrimaryCode(err, sqlite3lib.SQLITE_MISMATCH)
}

func hasPrimaryCode(err error, code int) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code()&0xff == code
}
