package recordstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/and161185/nevi/internal/errs"
	"github.com/jackc/pgx/v5"
)

// Row is a single result row keyed by column name.
type Row map[string]any

// Store runs generated statements over a pool. It holds no state besides the pool and is
// safe for concurrent use.
type Store struct{ pool Pool }

// New wraps an existing pool.
func New(pool Pool) *Store { return &Store{pool: pool} }

// Close closes the underlying pool.
func (s *Store) Close() { s.pool.Close() }

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return &StoreError{Op: "ping", Err: err}
	}
	return nil
}

// QueryOption adjusts multi-row reads.
type QueryOption func(*queryOpts)

type queryOpts struct {
	orderBy Column
	desc    bool
	limit   int
}

// OrderBy sorts the result set by col.
func OrderBy(col Column, desc bool) QueryOption {
	return func(o *queryOpts) { o.orderBy, o.desc = col, desc }
}

// Limit caps the number of returned rows. Non-positive values are ignored.
func Limit(n int) QueryOption {
	return func(o *queryOpts) { o.limit = n }
}

func (o queryOpts) sql() string {
	var sb strings.Builder
	if o.orderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(o.orderBy.quoted())
		if o.desc {
			sb.WriteString(" DESC")
		}
	}
	if o.limit > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(o.limit))
	}
	return sb.String()
}

func selectSQL(table Table, cols Selector, where Cond, args *[]any) string {
	return "SELECT " + cols.sql() + " FROM " + table.quoted() + whereClause(where, args)
}

// FetchOne returns the first row matching where, or errs.ErrNotFound when nothing matches.
func (s *Store) FetchOne(ctx context.Context, table Table, cols Selector, where Cond) (Row, error) {
	var args []any
	q := selectSQL(table, cols, where, &args) + " LIMIT 1"
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, &StoreError{Op: "fetch one", Table: table, Err: err}
	}
	row, err := pgx.CollectOneRow(rows, pgx.RowToMap)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, &StoreError{Op: "fetch one", Table: table, Err: err}
	}
	return Row(row), nil
}

// FetchAll returns every row matching where. A nil where selects the whole table.
func (s *Store) FetchAll(ctx context.Context, table Table, cols Selector, where Cond, opts ...QueryOption) ([]Row, error) {
	var o queryOpts
	for _, opt := range opts {
		opt(&o)
	}
	var args []any
	q := selectSQL(table, cols, where, &args) + o.sql()
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, &StoreError{Op: "fetch all", Table: table, Err: err}
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, &StoreError{Op: "fetch all", Table: table, Err: err}
	}
	out := make([]Row, len(maps))
	for i, m := range maps {
		out[i] = Row(m)
	}
	return out, nil
}

// FetchKeyed reads the matching rows and builds a key -> value lookup from two of their columns.
// Rows are folded in result order, so a later row sharing a key overwrites an earlier one.
func FetchKeyed[K comparable, V any](ctx context.Context, s *Store, table Table, cols Selector, where Cond, key, value Column) (map[K]V, error) {
	rows, err := s.FetchAll(ctx, table, cols, where)
	if err != nil {
		return nil, err
	}
	out := make(map[K]V, len(rows))
	for _, r := range rows {
		k, ok := r[string(key)].(K)
		if !ok {
			return nil, fmt.Errorf("recordstore: key column %q has type %T", key, r[string(key)])
		}
		v, ok := r[string(value)].(V)
		if !ok && r[string(value)] != nil {
			return nil, fmt.Errorf("recordstore: value column %q has type %T", value, r[string(value)])
		}
		out[k] = v
	}
	return out, nil
}

// Count returns the number of rows matching where.
func (s *Store) Count(ctx context.Context, table Table, cols Selector, where Cond) (int64, error) {
	var args []any
	q := "SELECT COUNT(*) FROM (" + selectSQL(table, cols, where, &args) + ") AS matched"
	var n int64
	if err := s.pool.QueryRow(ctx, q, args...).Scan(&n); err != nil {
		return 0, &StoreError{Op: "count", Table: table, Err: err}
	}
	return n, nil
}

// Insert adds one row. values are bound positionally against cols.
func (s *Store) Insert(ctx context.Context, table Table, cols []Column, values []any) error {
	if len(cols) != len(values) || len(cols) == 0 {
		return fmt.Errorf("insert %s: %w", table, errs.ErrArity)
	}
	placeholders := make([]string, len(values))
	for i := range values {
		placeholders[i] = "$" + strconv.Itoa(i+1)
	}
	q := "INSERT INTO " + table.quoted() + " (" + joinColumns(cols) + ") VALUES (" + strings.Join(placeholders, ", ") + ")"
	if _, err := s.pool.Exec(ctx, q, values...); err != nil {
		if isUniqueViolation(err) {
			return errs.ErrAlreadyExists
		}
		return &StoreError{Op: "insert", Table: table, Err: err}
	}
	return nil
}

// Update sets each column to its positional value on every row matching where and
// returns the number of affected rows. A nil where is rejected.
func (s *Store) Update(ctx context.Context, table Table, cols []Column, values []any, where Cond) (int64, error) {
	if len(cols) != len(values) || len(cols) == 0 {
		return 0, fmt.Errorf("update %s: %w", table, errs.ErrArity)
	}
	if unrestricted(where) {
		return 0, fmt.Errorf("update %s: condition required", table)
	}
	args := make([]any, 0, len(values))
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c.quoted() + " = " + bind(&args, values[i])
	}
	q := "UPDATE " + table.quoted() + " SET " + strings.Join(sets, ", ") + whereClause(where, &args)
	tag, err := s.pool.Exec(ctx, q, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, errs.ErrAlreadyExists
		}
		return 0, &StoreError{Op: "update", Table: table, Err: err}
	}
	return tag.RowsAffected(), nil
}

// Delete removes every row matching where and returns the number removed. A nil where is rejected.
func (s *Store) Delete(ctx context.Context, table Table, where Cond) (int64, error) {
	if unrestricted(where) {
		return 0, fmt.Errorf("delete %s: condition required", table)
	}
	var args []any
	q := "DELETE FROM " + table.quoted() + whereClause(where, &args)
	tag, err := s.pool.Exec(ctx, q, args...)
	if err != nil {
		return 0, &StoreError{Op: "delete", Table: table, Err: err}
	}
	return tag.RowsAffected(), nil
}
