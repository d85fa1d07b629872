package docstore

import (
	"fmt"
	"reflect"
	"strings"
)

// MaxInValues is the cardinality limit of an In filter.
const MaxInValues = 10

// DocumentID is a pseudo field which refers to the document id.
const DocumentID = "__name__"

// Op ...
type Op string

// Filter operators.
const (
	Equal          Op = "=="
	Less           Op = "<"
	LessOrEqual    Op = "<="
	Greater        Op = ">"
	GreaterOrEqual Op = ">="
	In             Op = "in"
)

// Direction ...
type Direction int

const (
	// Asc ...
	Asc Direction = iota + 1
	// Desc ...
	Desc
)

// Filter ...
type Filter struct {
	Field string
	Op    Op
	Value interface{}
}

// Order ...
type Order struct {
	Field     string
	Direction Direction
}

// Query describes a read over one collection. Builder methods return copies.
type Query struct {
	Collection string
	Filters    []Filter
	Orders     []Order
	// Size limits the result, 0 means unlimited.
	Size int
}

// Collection starts a query over collection path.
func Collection(path string) Query {
	return Query{Collection: path}
}

// Where ...
func (q Query) Where(field string, op Op, value interface{}) Query {
	q.Filters = append(append(make([]Filter, 0, len(q.Filters)+1), q.Filters...), Filter{
		Field: field,
		Op:    op,
		Value: value,
	})
	return q
}

// OrderBy ...
func (q Query) OrderBy(field string, d Direction) Query {
	q.Orders = append(append(make([]Order, 0, len(q.Orders)+1), q.Orders...), Order{
		Field:     field,
		Direction: d,
	})
	return q
}

// Limit ...
func (q Query) Limit(n int) Query {
	q.Size = n
	return q
}

// Validate checks the query against backend limits.
func (q Query) Validate() error {
	if q.Collection == "" || strings.Count(q.Collection, "/")%2 != 0 {
		return fmt.Errorf("%w: %q is not a collection path", ErrInvalidQuery, q.Collection)
	}

	if q.Size < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidQuery)
	}

	for _, f := range q.Filters {
		switch f.Op {
		case Equal, Less, LessOrEqual, Greater, GreaterOrEqual:
		case In:
			values, ok := Values(f.Value)
			if !ok {
				return fmt.Errorf("%w: %s in requires a slice", ErrInvalidQuery, f.Field)
			}
			if len(values) == 0 || len(values) > MaxInValues {
				return fmt.Errorf("%w: %s in requires 1..%d values, got %d", ErrInvalidQuery, f.Field, MaxInValues, len(values))
			}
		default:
			return fmt.Errorf("%w: unknown operator %q", ErrInvalidQuery, f.Op)
		}
	}

	for _, o := range q.Orders {
		if o.Direction != Asc && o.Direction != Desc {
			return fmt.Errorf("%w: unknown direction for %s", ErrInvalidQuery, o.Field)
		}
	}

	return nil
}

// Key returns a string which identifies the query. Equal queries have equal keys.
func (q Query) Key() string {
	var b strings.Builder

	b.WriteString(q.Collection)
	for _, f := range q.Filters {
		fmt.Fprintf(&b, "|%s%s%v", f.Field, f.Op, f.Value)
	}
	for _, o := range q.Orders {
		fmt.Fprintf(&b, "|^%s:%d", o.Field, o.Direction)
	}
	fmt.Fprintf(&b, "|#%d", q.Size)

	return b.String()
}

// Values converts a slice of any type into []interface{}.
func Values(v interface{}) ([]interface{}, bool) {
	if v, ok := v.([]interface{}); ok {
		return v, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}

	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}

	return out, true
}

// Chunk splits ids into groups which fit an In filter of size n.
func Chunk(ids []string, n int) [][]string {
	if n <= 0 || n > MaxInValues {
		n = MaxInValues
	}

	out := make([][]string, 0, (len(ids)+n-1)/n)
	for len(ids) > 0 {
		end := n
		if len(ids) < end {
			end = len(ids)
		}
		out = append(out, ids[:end:end])
		ids = ids[end:]
	}

	return out
}
