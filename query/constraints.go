// Package query describes live query constraints: ordering, cursor, page size
// and filters. A Constraints value is immutable once built and compares by
// value through its Key.
package query

import (
	"fmt"
	"strings"
	"time"
)

// Direction is the sort direction of an ordering clause.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Op is a filter comparison operator.
type Op string

const (
	Eq  Op = "=="
	Ne  Op = "!="
	Lt  Op = "<"
	Lte Op = "<="
	Gt  Op = ">"
	Gte Op = ">="
)

// Order is a single (field, direction) ordering clause.
type Order struct {
	Field     string
	Direction Direction
}

// Filter restricts matches to documents whose Field compares to Value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Constraints is the full definition of a live query against a collection.
type Constraints struct {
	// OrderBy is the ordered list of ordering clauses. The first clause
	// selects the store index.
	OrderBy []Order

	// StartAfter holds the ordering field values of the cursor item.
	// Results begin strictly after it in the established order.
	StartAfter []any

	// Limit is the page size (0 = no limit).
	Limit int32

	// Where lists filters applied to every match.
	Where []Filter
}

// Option mutates a Constraints value under construction.
type Option func(*Constraints)

// New builds Constraints from options, in order.
func New(opts ...Option) Constraints {
	var c Constraints
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// OrderBy appends an ordering clause.
func OrderBy(field string, dir Direction) Option {
	return func(c *Constraints) {
		c.OrderBy = append(c.OrderBy, Order{Field: field, Direction: dir})
	}
}

// StartAfter sets the cursor to the given ordering field values.
func StartAfter(values ...any) Option {
	return func(c *Constraints) {
		c.StartAfter = append([]any(nil), values...)
	}
}

// Limit sets the page size.
func Limit(n int32) Option {
	return func(c *Constraints) {
		c.Limit = n
	}
}

// Where appends a filter.
func Where(field string, op Op, value any) Option {
	return func(c *Constraints) {
		c.Where = append(c.Where, Filter{Field: field, Op: op, Value: value})
	}
}

// Primary returns the first ordering clause, if any.
func (c Constraints) Primary() (Order, bool) {
	if len(c.OrderBy) == 0 {
		return Order{}, false
	}
	return c.OrderBy[0], true
}

// Key returns a deterministic string describing the constraints. Two
// Constraints values with equal keys describe the same query.
func (c Constraints) Key() string {
	var b strings.Builder
	for i, o := range c.OrderBy {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "order(%s %s)", o.Field, o.Direction)
	}
	if len(c.StartAfter) > 0 {
		b.WriteString("|after(")
		for i, v := range c.StartAfter {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(FormatValue(v))
		}
		b.WriteByte(')')
	}
	if c.Limit > 0 {
		fmt.Fprintf(&b, "|limit(%d)", c.Limit)
	}
	for _, f := range c.Where {
		fmt.Fprintf(&b, "|where(%s %s %s)", f.Field, f.Op, FormatValue(f.Value))
	}
	return b.String()
}

// FormatValue renders a constraint value for use in keys. Times are
// rendered in UTC with nanosecond precision so equal instants match.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if t == nil {
			return "null"
		}
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%T:%v", v, v)
	}
}
