package recordstore

import (
	"strconv"
	"strings"
)

// Cond is a boolean expression over columns. Values inside a Cond are always bound as
// positional parameters; the expression text itself only ever contains quoted identifiers,
// operators and placeholders.
//
// A nil Cond matches every row.
type Cond interface {
	render(sb *strings.Builder, args *[]any)
}

type cmpCond struct {
	col Column
	op  string
	val any
}

func (c cmpCond) render(sb *strings.Builder, args *[]any) {
	sb.WriteString(c.col.quoted())
	sb.WriteString(" ")
	sb.WriteString(c.op)
	sb.WriteString(" ")
	sb.WriteString(bind(args, c.val))
}

type inCond struct {
	col  Column
	vals []any
}

func (c inCond) render(sb *strings.Builder, args *[]any) {
	if len(c.vals) == 0 {
		sb.WriteString("FALSE")
		return
	}
	sb.WriteString(c.col.quoted())
	sb.WriteString(" IN (")
	for i, v := range c.vals {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(bind(args, v))
	}
	sb.WriteString(")")
}

type nullCond struct {
	col Column
	not bool
}

func (c nullCond) render(sb *strings.Builder, _ *[]any) {
	sb.WriteString(c.col.quoted())
	if c.not {
		sb.WriteString(" IS NOT NULL")
		return
	}
	sb.WriteString(" IS NULL")
}

type groupCond struct {
	sep   string
	empty string
	conds []Cond
}

func (g groupCond) render(sb *strings.Builder, args *[]any) {
	conds := make([]Cond, 0, len(g.conds))
	for _, c := range g.conds {
		if c != nil {
			conds = append(conds, c)
		}
	}
	if len(conds) == 0 {
		sb.WriteString(g.empty)
		return
	}
	if len(conds) == 1 {
		conds[0].render(sb, args)
		return
	}
	for i, c := range conds {
		if i > 0 {
			sb.WriteString(g.sep)
		}
		sb.WriteString("(")
		c.render(sb, args)
		sb.WriteString(")")
	}
}

func bind(args *[]any, v any) string {
	*args = append(*args, v)
	return "$" + strconv.Itoa(len(*args))
}

// All matches every row.
func All() Cond { return nil }

// Eq matches rows where col equals v.
func Eq(col Column, v any) Cond { return cmpCond{col: col, op: "=", val: v} }

// Ne matches rows where col differs from v.
func Ne(col Column, v any) Cond { return cmpCond{col: col, op: "<>", val: v} }

// Lt matches rows where col < v.
func Lt(col Column, v any) Cond { return cmpCond{col: col, op: "<", val: v} }

// Lte matches rows where col <= v.
func Lte(col Column, v any) Cond { return cmpCond{col: col, op: "<=", val: v} }

// Gt matches rows where col > v.
func Gt(col Column, v any) Cond { return cmpCond{col: col, op: ">", val: v} }

// Gte matches rows where col >= v.
func Gte(col Column, v any) Cond { return cmpCond{col: col, op: ">=", val: v} }

// NotDistinct matches rows where col equals v, treating NULL as equal to NULL.
func NotDistinct(col Column, v any) Cond {
	return cmpCond{col: col, op: "IS NOT DISTINCT FROM", val: v}
}

// In matches rows where col equals any of vals. An empty list matches nothing.
func In(col Column, vals ...any) Cond { return inCond{col: col, vals: vals} }

// IsNull matches rows where col is NULL.
func IsNull(col Column) Cond { return nullCond{col: col} }

// NotNull matches rows where col is not NULL.
func NotNull(col Column) Cond { return nullCond{col: col, not: true} }

// And matches rows satisfying every cond. Nil members are ignored.
func And(conds ...Cond) Cond { return groupCond{sep: " AND ", empty: "TRUE", conds: conds} }

// Or matches rows satisfying at least one cond. Nil members are ignored.
func Or(conds ...Cond) Cond { return groupCond{sep: " OR ", empty: "FALSE", conds: conds} }

// unrestricted reports whether cond can match every row: a nil cond, an empty And,
// or a group whose members leave the table unfiltered.
func unrestricted(cond Cond) bool {
	if cond == nil {
		return true
	}
	g, ok := cond.(groupCond)
	if !ok {
		return false
	}
	and := g.sep == " AND "
	for _, c := range g.conds {
		if c == nil {
			continue
		}
		if unrestricted(c) != and {
			return !and
		}
	}
	return and
}

// whereClause renders cond as " WHERE ..." (or nothing for a nil cond), appending values to args.
func whereClause(cond Cond, args *[]any) string {
	if cond == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(" WHERE ")
	cond.render(&sb, args)
	return sb.String()
}
