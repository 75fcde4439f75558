// Package store provides the generic row-query contract the pricing core
// consumes, and its Postgres implementation. The contract is deliberately
// narrow: single-table selects with equality/range/pattern filters, ordering,
// and limiting, returning loosely typed rows.
package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Op is a filter operator.
type Op string

const (
	OpEq    Op = "eq"
	OpGte   Op = "gte"
	OpLte   Op = "lte"
	OpLike  Op = "like"
	OpILike Op = "ilike"
)

// Filter constrains a single column.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

// Query describes a single-table select.
type Query struct {
	Table      string
	Columns    []string // empty means *
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// Row is a loosely typed record as returned by the backing store.
type Row = map[string]any

// Querier executes row queries. The pricing core depends on this interface
// rather than on a concrete database client.
type Querier interface {
	Query(ctx context.Context, q Query) ([]Row, error)
}

var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// SQL renders the query as parameterized SQL. Identifiers are validated
// against a conservative pattern; values always travel as parameters.
func (q Query) SQL() (string, []any, error) {
	if !identPattern.MatchString(q.Table) {
		return "", nil, fmt.Errorf("invalid table name: %q", q.Table)
	}

	cols := "*"
	if len(q.Columns) > 0 {
		for _, c := range q.Columns {
			if !identPattern.MatchString(c) {
				return "", nil, fmt.Errorf("invalid column name: %q", c)
			}
		}
		cols = strings.Join(q.Columns, ", ")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", cols, q.Table)

	args := make([]any, 0, len(q.Filters))
	for i, f := range q.Filters {
		if !identPattern.MatchString(f.Column) {
			return "", nil, fmt.Errorf("invalid filter column: %q", f.Column)
		}

		var op string
		switch f.Op {
		case OpEq:
			op = "="
		case OpGte:
			op = ">="
		case OpLte:
			op = "<="
		case OpLike:
			op = "LIKE"
		case OpILike:
			op = "ILIKE"
		default:
			return "", nil, fmt.Errorf("unsupported filter op: %q", f.Op)
		}

		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		args = append(args, f.Value)
		fmt.Fprintf(&sb, "%s %s $%d", f.Column, op, len(args))
	}

	if q.OrderBy != "" {
		if !identPattern.MatchString(q.OrderBy) {
			return "", nil, fmt.Errorf("invalid order column: %q", q.OrderBy)
		}
		fmt.Fprintf(&sb, " ORDER BY %s", q.OrderBy)
		if q.Descending {
			sb.WriteString(" DESC")
		}
	}

	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}

	return sb.String(), args, nil
}
