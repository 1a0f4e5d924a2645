// Package dataset loads uploaded SQLite databases and SQL scripts and reads
// their tables for display and CSV export.
package dataset

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/louisbranch/sqlitedesk/internal/platform/id"
	"github.com/louisbranch/sqlitedesk/internal/platform/otel"
	"github.com/louisbranch/sqlitedesk/internal/platform/storage/sqliteutil"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrUnsupportedType indicates the upload extension is not .sql, .db or .sqlite.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrMalformedScript indicates a .sql upload failed to execute.
	ErrMalformedScript = errors.New("malformed sql script")
	// ErrInvalidDatabase indicates a database upload is not a readable SQLite file.
	ErrInvalidDatabase = errors.New("invalid sqlite database")
	// ErrUnknownTable indicates a table name outside the dataset's tables.
	ErrUnknownTable = errors.New("unknown table")
	// ErrClosed indicates the dataset was already closed.
	ErrClosed = errors.New("dataset closed")
)

// Kind tells how a dataset was loaded.
type Kind string

const (
	KindScript   Kind = "script"
	KindDatabase Kind = "database"
)

// cacheKey identifies one memoized table read by upload content and name.
type cacheKey struct {
	digest string
	table  string
}

// Dataset is one uploaded database opened for reading.
type Dataset struct {
	filename string
	kind     Kind
	digest   string
	size     int
	path     string
	db       *sql.DB
	tracer   trace.Tracer

	mu     sync.Mutex
	closed bool
	tables []string
	cache  map[cacheKey]*Table
}

// Load opens data according to the extension of filename. Scripts run on a
// fresh in-memory database. Database files are written to a uniquely named
// file in dir, which Close removes.
func Load(ctx context.Context, dir string, filename string, data []byte) (ds *Dataset, err error) {
	tracer := otel.Tracer("explorer/dataset")
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))
	ctx, span := tracer.Start(ctx, "explorer.dataset.Load", trace.WithAttributes(
		attribute.String("explorer.file.ext", ext),
		attribute.Int("explorer.file.bytes", len(data)),
	))
	defer func() { otel.EndSpan(span, err) }()

	sum := sha256.Sum256(data)
	ds = &Dataset{
		filename: filepath.Base(strings.TrimSpace(filename)),
		digest:   hex.EncodeToString(sum[:]),
		size:     len(data),
		tracer:   tracer,
		cache:    map[cacheKey]*Table{},
	}
	switch ext {
	case ".sql":
		ds.kind = KindScript
		ds.db, err = loadScript(ctx, data)
	case ".db", ".sqlite":
		ds.kind = KindDatabase
		ds.path, ds.db, err = loadDatabase(ctx, dir, ext, data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
	if err != nil {
		return nil, err
	}
	return ds, nil
}

func loadScript(ctx context.Context, data []byte) (*sql.DB, error) {
	db, err := sqliteutil.OpenMemory(ctx)
	if err != nil {
		return nil, err
	}
	script := string(data)
	if strings.TrimSpace(script) == "" {
		return db, nil
	}
	if _, err := db.ExecContext(ctx, script); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", ErrMalformedScript, err)
	}
	return db, nil
}

func loadDatabase(ctx context.Context, dir string, ext string, data []byte) (string, *sql.DB, error) {
	if strings.TrimSpace(dir) == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", nil, fmt.Errorf("create upload dir: %w", err)
	}
	uploadID, err := id.NewID()
	if err != nil {
		return "", nil, err
	}
	path := filepath.Join(dir, "upload-"+uploadID+ext)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", nil, fmt.Errorf("write upload: %w", err)
	}
	db, err := sqliteutil.OpenExisting(ctx, path)
	if err == nil {
		// Reading the schema is the first access that parses the file header.
		_, err = sqliteutil.Tables(ctx, db)
		if err != nil {
			_ = db.Close()
		}
	}
	if err != nil {
		_ = os.Remove(path)
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidDatabase, err)
	}
	return path, db, nil
}

// Filename returns the base name of the uploaded file.
func (d *Dataset) Filename() string {
	return d.filename
}

// Kind reports how the dataset was loaded.
func (d *Dataset) Kind() Kind {
	return d.kind
}

// Digest returns the hex SHA-256 of the uploaded bytes.
func (d *Dataset) Digest() string {
	return d.digest
}

// Size returns the upload size in bytes.
func (d *Dataset) Size() int {
	return d.size
}

// Tables returns the user tables sorted by name.
func (d *Dataset) Tables(ctx context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	tables, err := d.tablesLocked(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(tables), nil
}

func (d *Dataset) tablesLocked(ctx context.Context) ([]string, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if d.tables != nil {
		return d.tables, nil
	}
	tables, err := sqliteutil.Tables(ctx, d.db)
	if err != nil {
		return nil, err
	}
	d.tables = tables
	return tables, nil
}

// Table reads the whole table. Results are memoized for the life of the
// dataset, so selecting the same table again does not query SQLite.
func (d *Dataset) Table(ctx context.Context, name string) (table *Table, err error) {
	ctx, span := d.tracer.Start(ctx, "explorer.dataset.Table", trace.WithAttributes(
		attribute.String("db.sql.table", name),
	))
	defer func() { otel.EndSpan(span, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()
	tables, err := d.tablesLocked(ctx)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(tables, name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}
	key := cacheKey{digest: d.digest, table: name}
	if cached, ok := d.cache[key]; ok {
		span.SetAttributes(attribute.Bool("explorer.cache.hit", true))
		return cached, nil
	}

	query, err := sqliteutil.SelectAll(ctx, d.db, name)
	if err != nil {
		return nil, fmt.Errorf("read table %s: %w", name, err)
	}
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read table %s: %w", name, err)
	}
	defer rows.Close()
	columns, records, err := sqliteutil.ScanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("read table %s: %w", name, err)
	}
	table = &Table{Name: name, Columns: columns, Rows: records}
	d.cache[key] = table
	return table, nil
}

// Close releases the database and removes any scratch file. It is safe to
// call more than once.
func (d *Dataset) Close() error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.cache = nil
	var errs []error
	if d.db != nil {
		if err := d.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dataset db: %w", err))
		}
	}
	if d.path != "" {
		if err := os.Remove(d.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove dataset file: %w", err))
		}
	}
	return errors.Join(errs...)
}
