package recordstore

import (
	"strings"

	"github.com/jackc/pgx/v5"
)

// Table names a relation.
type Table string

// Column names an attribute of a relation.
type Column string

func (t Table) quoted() string  { return pgx.Identifier{string(t)}.Sanitize() }
func (c Column) quoted() string { return pgx.Identifier{string(c)}.Sanitize() }

// Selector chooses the columns returned by a read. The zero value selects all columns.
type Selector []Column

// Star selects every column.
var Star Selector

// Columns builds a selector from the given columns.
func Columns(cols ...Column) Selector { return Selector(cols) }

func (s Selector) sql() string {
	if len(s) == 0 {
		return "*"
	}
	return joinColumns(s)
}

func joinColumns(cols []Column) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = c.quoted()
	}
	return strings.Join(parts, ", ")
}
