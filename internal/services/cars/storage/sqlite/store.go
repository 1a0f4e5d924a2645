// Package sqlite provides the SQLite-backed cars record store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/louisbranch/sqlitedesk/internal/platform/otel"
	"github.com/louisbranch/sqlitedesk/internal/platform/storage/sqliteutil"
	"github.com/louisbranch/sqlitedesk/internal/services/cars/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Config names the database file and the table shape the store serves.
type Config struct {
	Path           string
	Table          string
	IDColumn       string
	CategoryColumn string
}

// Store serves one table of an existing SQLite file. Every operation opens
// and closes its own handle, so the file is never held between requests.
type Store struct {
	cfg    Config
	tracer trace.Tracer
}

var _ storage.RecordStore = (*Store)(nil)

// Open validates cfg and checks that the database file and table exist with
// the configured identity and category columns.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	cfg.Path = strings.TrimSpace(cfg.Path)
	cfg.Table = strings.TrimSpace(cfg.Table)
	cfg.IDColumn = strings.TrimSpace(cfg.IDColumn)
	cfg.CategoryColumn = strings.TrimSpace(cfg.CategoryColumn)
	switch {
	case cfg.Path == "":
		return nil, fmt.Errorf("storage path is required")
	case cfg.Table == "":
		return nil, fmt.Errorf("table name is required")
	case cfg.IDColumn == "":
		return nil, fmt.Errorf("id column is required")
	case cfg.CategoryColumn == "":
		return nil, fmt.Errorf("category column is required")
	}
	store := &Store{cfg: cfg, tracer: otel.Tracer("cars/storage")}
	columns, err := store.Columns(ctx)
	if err != nil {
		return nil, err
	}
	for _, required := range []string{cfg.IDColumn, cfg.CategoryColumn} {
		if !containsColumn(columns, required) {
			return nil, fmt.Errorf("table %s has no column %s", cfg.Table, required)
		}
	}
	return store, nil
}

// Columns returns the table columns in schema order.
func (s *Store) Columns(ctx context.Context) (columns []string, err error) {
	ctx, span := s.start(ctx, "Columns")
	defer func() { otel.EndSpan(span, err) }()

	err = s.withDB(ctx, func(db *sql.DB) error {
		var innerErr error
		columns, innerErr = sqliteutil.ColumnNames(ctx, db, s.cfg.Table)
		return innerErr
	})
	return columns, err
}

// Categories returns the distinct non-NULL values of the category column as
// their stored text, which is the form List compares against.
func (s *Store) Categories(ctx context.Context) (categories []string, err error) {
	ctx, span := s.start(ctx, "Categories")
	defer func() { otel.EndSpan(span, err) }()

	category := sqliteutil.QuoteIdent(s.cfg.CategoryColumn)
	query := "SELECT DISTINCT " + categoryText(s.cfg.CategoryColumn) + " FROM " + sqliteutil.QuoteIdent(s.cfg.Table) +
		" WHERE " + category + " IS NOT NULL"
	err = s.withDB(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query)
		if err != nil {
			return fmt.Errorf("list categories: %w", err)
		}
		defer rows.Close()

		categories = []string{}
		for rows.Next() {
			var value string
			if err := rows.Scan(&value); err != nil {
				return fmt.Errorf("scan category: %w", err)
			}
			categories = append(categories, value)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate categories: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(categories)
	return categories, nil
}

// List returns every row, or only rows in category unless it selects all.
func (s *Store) List(ctx context.Context, category string) (records []storage.Record, err error) {
	ctx, span := s.start(ctx, "List", attribute.String("cars.category", category))
	defer func() { otel.EndSpan(span, err) }()

	err = s.withDB(ctx, func(db *sql.DB) error {
		query, err := sqliteutil.SelectAll(ctx, db, s.cfg.Table)
		if err != nil {
			return err
		}
		var args []any
		if !storage.IsAllCategories(category) {
			query += " WHERE " + categoryText(s.cfg.CategoryColumn) + " = ?"
			args = append(args, category)
		}
		query += " ORDER BY " + sqliteutil.QuoteIdent(s.cfg.IDColumn) + " ASC"
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("list records: %w", err)
		}
		defer rows.Close()
		_, records, err = sqliteutil.ScanRows(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Get returns the row with identity id.
func (s *Store) Get(ctx context.Context, id int64) (record storage.Record, err error) {
	ctx, span := s.start(ctx, "Get", attribute.Int64("cars.id", id))
	defer func() { otel.EndSpan(span, err) }()

	err = s.withDB(ctx, func(db *sql.DB) error {
		query, err := sqliteutil.SelectAll(ctx, db, s.cfg.Table)
		if err != nil {
			return err
		}
		query += " WHERE " + sqliteutil.QuoteIdent(s.cfg.IDColumn) + " = ?"
		rows, err := db.QueryContext(ctx, query, id)
		if err != nil {
			return fmt.Errorf("get record %d: %w", id, err)
		}
		defer rows.Close()
		_, records, err := sqliteutil.ScanRows(rows)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return storage.ErrNotFound
		}
		record = records[0]
		return nil
	})
	return record, err
}

// Create inserts exactly the submitted columns and returns the new identity.
func (s *Store) Create(ctx context.Context, values storage.Values) (id int64, err error) {
	ctx, span := s.start(ctx, "Create", attribute.Int("cars.columns", len(values)))
	defer func() { otel.EndSpan(span, err) }()

	err = s.withDB(ctx, func(db *sql.DB) error {
		columns, args, err := s.writableValues(ctx, db, values)
		if err != nil {
			return err
		}
		quoted := make([]string, len(columns))
		for i, column := range columns {
			quoted[i] = sqliteutil.QuoteIdent(column)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
		query := "INSERT INTO " + sqliteutil.QuoteIdent(s.cfg.Table) +
			" (" + strings.Join(quoted, ", ") + ") VALUES (" + placeholders + ")"
		result, err := db.ExecContext(ctx, query, args...)
		if err != nil {
			return classifyWriteError("create record", err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("create record: last insert id: %w", err)
		}
		return nil
	})
	return id, err
}

// Update sets exactly the submitted columns on the row with identity id.
func (s *Store) Update(ctx context.Context, id int64, values storage.Values) (err error) {
	ctx, span := s.start(ctx, "Update",
		attribute.Int64("cars.id", id),
		attribute.Int("cars.columns", len(values)),
	)
	defer func() { otel.EndSpan(span, err) }()

	return s.withDB(ctx, func(db *sql.DB) error {
		columns, args, err := s.writableValues(ctx, db, values)
		if err != nil {
			return err
		}
		assignments := make([]string, len(columns))
		for i, column := range columns {
			assignments[i] = sqliteutil.QuoteIdent(column) + " = ?"
		}
		query := "UPDATE " + sqliteutil.QuoteIdent(s.cfg.Table) +
			" SET " + strings.Join(assignments, ", ") +
			" WHERE " + sqliteutil.QuoteIdent(s.cfg.IDColumn) + " = ?"
		result, err := db.ExecContext(ctx, query, append(args, id)...)
		if err != nil {
			return classifyWriteError(fmt.Sprintf("update record %d", id), err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("update record %d: rows affected: %w", id, err)
		}
		if affected == 0 {
			return storage.ErrNotFound
		}
		return nil
	})
}

// Delete removes the row with identity id. Absent rows are ignored.
func (s *Store) Delete(ctx context.Context, id int64) (err error) {
	ctx, span := s.start(ctx, "Delete", attribute.Int64("cars.id", id))
	defer func() { otel.EndSpan(span, err) }()

	query := "DELETE FROM " + sqliteutil.QuoteIdent(s.cfg.Table) +
		" WHERE " + sqliteutil.QuoteIdent(s.cfg.IDColumn) + " = ?"
	return s.withDB(ctx, func(db *sql.DB) error {
		if _, err := db.ExecContext(ctx, query, id); err != nil {
			return classifyWriteError(fmt.Sprintf("delete record %d", id), err)
		}
		return nil
	})
}

// writableValues checks values against a fresh schema snapshot and returns
// the submitted columns in schema order with their arguments.
func (s *Store) writableValues(ctx context.Context, db *sql.DB, values storage.Values) ([]string, []any, error) {
	if len(values) == 0 {
		return nil, nil, storage.ErrNoValues
	}
	schema, err := sqliteutil.ColumnNames(ctx, db, s.cfg.Table)
	if err != nil {
		return nil, nil, err
	}
	writable := make(map[string]struct{}, len(schema))
	for _, column := range schema {
		if column != s.cfg.IDColumn {
			writable[column] = struct{}{}
		}
	}
	var unknown []string
	for column := range values {
		if _, ok := writable[column]; !ok {
			unknown = append(unknown, column)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, nil, fmt.Errorf("%w: %s", storage.ErrUnknownColumn, strings.Join(unknown, ", "))
	}

	columns := make([]string, 0, len(values))
	args := make([]any, 0, len(values))
	for _, column := range schema {
		value, ok := values[column]
		if !ok {
			continue
		}
		columns = append(columns, column)
		args = append(args, value)
	}
	return columns, args, nil
}

func (s *Store) start(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("db.sql.table", s.cfg.Table))
	return s.tracer.Start(ctx, "cars.store."+operation, trace.WithAttributes(attrs...))
}

func (s *Store) withDB(ctx context.Context, fn func(*sql.DB) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db, err := sqliteutil.OpenExisting(ctx, s.cfg.Path)
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()
	return fn(db)
}

// categoryText reads the category column as text so filter values match the
// options listed by Categories whatever the stored type.
func categoryText(column string) string {
	return "CAST(" + sqliteutil.QuoteIdent(column) + " AS TEXT)"
}

func classifyWriteError(op string, err error) error {
	if sqliteutil.IsConstraintViolation(err) {
		return fmt.Errorf("%s: %w: %w", op, storage.ErrConstraint, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func containsColumn(columns []string, name string) bool {
	for _, column := range columns {
		if column == name {
			return true
		}
	}
	return false
}

// IsMissing reports whether err means the database file is gone.
func IsMissing(err error) bool {
	return errors.Is(err, sqliteutil.ErrStoreMissing)
}
