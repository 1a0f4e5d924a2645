package sqliteutil

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestOpenExistingRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := OpenExisting(context.Background(), " "); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestOpenExistingReportsMissingStoreWithoutCreatingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cars.db")
	_, err := OpenExisting(context.Background(), path)
	if !errors.Is(err, ErrStoreMissing) {
		t.Fatalf("err = %v, want %v", err, ErrStoreMissing)
	}
	if _, statErr := os.Stat(path); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("expected no file to be created, stat err = %v", statErr)
	}
}

func TestOpenExistingRejectsDirectory(t *testing.T) {
	t.Parallel()

	if _, err := OpenExisting(context.Background(), t.TempDir()); err == nil {
		t.Fatal("expected directory error")
	}
}

func TestTableColumnsAndTables(t *testing.T) {
	t.Parallel()

	db := openFixture(t, `
CREATE TABLE b_table (x TEXT);
CREATE TABLE sqlite1 (x TEXT);
CREATE TABLE sqlitedata (x TEXT);
CREATE TABLE "a table" (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  "odd ""name""" TEXT NOT NULL DEFAULT 'x',
  price REAL
);
`)
	ctx := context.Background()

	tables, err := Tables(ctx, db)
	if err != nil {
		t.Fatalf("tables: %v", err)
	}
	if want := []string{"a table", "b_table", "sqlite1", "sqlitedata"}; !reflect.DeepEqual(tables, want) {
		t.Fatalf("tables = %v, want %v", tables, want)
	}

	columns, err := TableColumns(ctx, db, "a table")
	if err != nil {
		t.Fatalf("table columns: %v", err)
	}
	if len(columns) != 3 {
		t.Fatalf("columns = %d, want 3", len(columns))
	}
	if !columns[0].PrimaryKey || columns[0].Name != "id" {
		t.Fatalf("column 0 = %+v, want id primary key", columns[0])
	}
	if columns[1].Name != `odd "name"` || !columns[1].NotNull {
		t.Fatalf("column 1 = %+v", columns[1])
	}

	names, err := ColumnNames(ctx, db, "a table")
	if err != nil {
		t.Fatalf("column names: %v", err)
	}
	if want := []string{"id", `odd "name"`, "price"}; !reflect.DeepEqual(names, want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
}

func TestSelectAllKeepsStoredText(t *testing.T) {
	t.Parallel()

	db := openFixture(t, `
CREATE TABLE events (
  id INTEGER PRIMARY KEY,
  day DATE,
  at datetime,
  stamp TIMESTAMP,
  n INTEGER,
  raw BLOB
);
INSERT INTO events (id, day, at, stamp, n, raw) VALUES
  (1, '2024-01-02', '2024-01-02 03:04:05', 'not a time', 7, x'6869'),
  (2, NULL, NULL, NULL, NULL, NULL);
`)
	ctx := context.Background()

	query, err := SelectAll(ctx, db, "events")
	if err != nil {
		t.Fatalf("select all: %v", err)
	}
	rows, err := db.QueryContext(ctx, query+` ORDER BY "id"`)
	if err != nil {
		t.Fatalf("query %q: %v", query, err)
	}
	defer rows.Close()
	columns, records, err := ScanRows(rows)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if want := []string{"id", "day", "at", "stamp", "n", "raw"}; !reflect.DeepEqual(columns, want) {
		t.Fatalf("columns = %v, want %v", columns, want)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	want := []string{"1", "2024-01-02", "2024-01-02 03:04:05", "not a time", "7", "hi"}
	if got := records[0].Strings(); !reflect.DeepEqual(got, want) {
		t.Fatalf("row = %v, want %v", got, want)
	}
	if got := records[1].Strings(); !reflect.DeepEqual(got, []string{"2", "", "", "", "", ""}) {
		t.Fatalf("null row = %v", got)
	}
	if value, _ := records[0].Get("n"); value != int64(7) {
		t.Fatalf("integer column = %#v, want int64 7", value)
	}
}

func TestSelectExprCastsOnlyTimeColumns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		column Column
		want   string
	}{
		{column: Column{Name: "day", Type: "DATE"}, want: `CAST("day" AS TEXT) AS "day"`},
		{column: Column{Name: "at", Type: " datetime "}, want: `CAST("at" AS TEXT) AS "at"`},
		{column: Column{Name: "stamp", Type: "TIMESTAMP"}, want: `CAST("stamp" AS TEXT) AS "stamp"`},
		{column: Column{Name: "name", Type: "TEXT"}, want: `"name"`},
		{column: Column{Name: "untyped"}, want: `"untyped"`},
	}
	for _, tc := range tests {
		if got := tc.column.SelectExpr(); got != tc.want {
			t.Fatalf("SelectExpr(%+v) = %q, want %q", tc.column, got, tc.want)
		}
	}
}

func TestTableColumnsMissingTable(t *testing.T) {
	t.Parallel()

	db := openFixture(t, `CREATE TABLE t (x TEXT);`)
	_, err := TableColumns(context.Background(), db, "nope")
	if !errors.Is(err, ErrTableMissing) {
		t.Fatalf("err = %v, want %v", err, ErrTableMissing)
	}
}

func TestScanRowsAddressesByColumnName(t *testing.T) {
	t.Parallel()

	db := openFixture(t, `
CREATE TABLE t (id INTEGER, name TEXT, price REAL, note TEXT, raw BLOB);
INSERT INTO t VALUES (1, 'Civic', 19999.5, NULL, x'6869');
INSERT INTO t VALUES (2, 'Golf', 21000, 'used', NULL);
`)
	rows, err := db.QueryContext(context.Background(), `SELECT * FROM t ORDER BY id`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()

	columns, out, err := ScanRows(rows)
	if err != nil {
		t.Fatalf("scan rows: %v", err)
	}
	if want := []string{"id", "name", "price", "note", "raw"}; !reflect.DeepEqual(columns, want) {
		t.Fatalf("columns = %v, want %v", columns, want)
	}
	if len(out) != 2 {
		t.Fatalf("rows = %d, want 2", len(out))
	}
	if got := out[0].String("name"); got != "Civic" {
		t.Fatalf("name = %q, want Civic", got)
	}
	if got := out[0].String("price"); got != "19999.5" {
		t.Fatalf("price = %q, want 19999.5", got)
	}
	if got := out[0].String("note"); got != "" {
		t.Fatalf("NULL note = %q, want empty", got)
	}
	if got := out[0].String("raw"); got != "hi" {
		t.Fatalf("raw = %q, want hi", got)
	}
	if got := out[1].Strings(); !reflect.DeepEqual(got, []string{"2", "Golf", "21000", "used", ""}) {
		t.Fatalf("strings = %v", got)
	}
	if _, ok := out[1].Get("missing"); ok {
		t.Fatal("expected missing column lookup to fail")
	}
}

func TestQuoteIdent(t *testing.T) {
	t.Parallel()

	if got := QuoteIdent(`cars"; DROP TABLE x; --`); got != `"cars""; DROP TABLE x; --"` {
		t.Fatalf("QuoteIdent = %s", got)
	}
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	db := openFixture(t, `CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT NOT NULL UNIQUE);`)
	ctx := context.Background()
	if _, err := db.ExecContext(ctx, `INSERT INTO t (name) VALUES (NULL)`); !IsConstraintViolation(err) {
		t.Fatalf("expected constraint violation, got %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO t (id, name) VALUES ('abc', 'x')`); !IsConstraintViolation(err) {
		t.Fatalf("expected datatype mismatch, got %v", err)
	}
	if IsConstraintViolation(nil) || IsNotADatabase(nil) {
		t.Fatal("nil error must not classify")
	}

	path := filepath.Join(t.TempDir(), "garbage.db")
	if err := os.WriteFile(path, []byte("definitely not sqlite, just some bytes padded out to look like a header....."), 0o600); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	garbage, err := OpenExisting(ctx, path)
	if err == nil {
		defer garbage.Close()
		_, err = Tables(ctx, garbage)
	}
	if !IsNotADatabase(err) {
		t.Fatalf("expected not-a-database error, got %v", err)
	}
}

func openFixture(t *testing.T, script string) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.db")
	seed, err := sql.Open(DriverName, path)
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	if _, err := seed.Exec(script); err != nil {
		t.Fatalf("seed fixture: %v", err)
	}
	if err := seed.Close(); err != nil {
		t.Fatalf("close fixture: %v", err)
	}
	db, err := OpenExisting(context.Background(), path)
	if err != nil {
		t.Fatalf("open existing: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
