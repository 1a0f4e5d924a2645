// Package storage defines persistence contracts for the cars table.
package storage

import (
	"context"
	"errors"

	"github.com/louisbranch/sqlitedesk/internal/platform/storage/sqliteutil"
)

// AllCategories is the filter value that selects every row.
const AllCategories = "All"

var (
	// ErrNotFound indicates no row has the requested identity.
	ErrNotFound = errors.New("record not found")
	// ErrUnknownColumn indicates submitted values name a column the table
	// does not have, or one that cannot be written.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrNoValues indicates a write was submitted without any column values.
	ErrNoValues = errors.New("no column values")
	// ErrConstraint indicates SQLite rejected a write with a constraint or
	// datatype failure.
	ErrConstraint = errors.New("constraint violation")
)

// Record is one table row addressable by column name.
type Record = sqliteutil.Row

// Values maps column names to submitted text values.
type Values map[string]string

// RecordStore reads and writes rows of the cars table.
type RecordStore interface {
	// Columns returns the table columns in schema order.
	Columns(ctx context.Context) ([]string, error)
	// Categories returns the distinct non-NULL category values, sorted.
	Categories(ctx context.Context) ([]string, error)
	// List returns every row when category is empty or AllCategories,
	// otherwise only rows in that category.
	List(ctx context.Context, category string) ([]Record, error)
	Get(ctx context.Context, id int64) (Record, error)
	// Create inserts values and returns the identity SQLite assigned.
	Create(ctx context.Context, values Values) (int64, error)
	Update(ctx context.Context, id int64, values Values) error
	// Delete removes the row. Deleting an absent id is not an error.
	Delete(ctx context.Context, id int64) error
}

// IsAllCategories reports whether category selects the unfiltered list.
func IsAllCategories(category string) bool {
	return category == "" || category == AllCategories
}
