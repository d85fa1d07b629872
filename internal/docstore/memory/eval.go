package memory

import (
	"sort"
	"time"

	"github.com/ting-rn/ting-sync/internal/docstore"
)

// field returns value of the field and whether the document has it.
func field(d *docstore.Document, name string) (interface{}, bool) {
	if name == docstore.DocumentID {
		return d.ID, true
	}

	v, ok := d.Data[name]
	return v, ok
}

func matches(d *docstore.Document, filters []docstore.Filter) bool {
	for _, f := range filters {
		v, ok := field(d, f.Field)
		if !ok {
			return false
		}

		switch f.Op {
		case docstore.In:
			values, _ := docstore.Values(f.Value)
			found := false
			for _, want := range values {
				if c, ok := compare(v, want); ok && c == 0 {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			c, ok := compare(v, f.Value)
			if !ok {
				return false
			}
			if !satisfies(f.Op, c) {
				return false
			}
		}
	}

	return true
}

func satisfies(op docstore.Op, c int) bool {
	switch op {
	case docstore.Equal:
		return c == 0
	case docstore.Less:
		return c < 0
	case docstore.LessOrEqual:
		return c <= 0
	case docstore.Greater:
		return c > 0
	case docstore.GreaterOrEqual:
		return c >= 0
	default:
		return false
	}
}

// run evaluates query over documents of its collection.
func run(docs []*docstore.Document, q docstore.Query) []*docstore.Document {
	out := make([]*docstore.Document, 0, len(docs))

	for _, d := range docs {
		if !matches(d, q.Filters) {
			continue
		}

		// documents without an ordered field are excluded, like in firestore
		ordered := true
		for _, o := range q.Orders {
			if _, ok := field(d, o.Field); !ok {
				ordered = false
				break
			}
		}

		if ordered {
			out = append(out, d)
		}
	}

	last := docstore.Asc
	if len(q.Orders) > 0 {
		last = q.Orders[len(q.Orders)-1].Direction
	}

	sort.SliceStable(out, func(i, j int) bool {
		for _, o := range q.Orders {
			a, _ := field(out[i], o.Field)
			b, _ := field(out[j], o.Field)

			c, _ := compare(a, b)
			if c == 0 {
				continue
			}

			if o.Direction == docstore.Desc {
				return c > 0
			}
			return c < 0
		}

		if last == docstore.Desc {
			return out[i].ID > out[j].ID
		}
		return out[i].ID < out[j].ID
	})

	if q.Size > 0 && len(out) > q.Size {
		out = out[:q.Size]
	}

	return out
}

// compare compares two values of the same kind. ok is false when kinds differ.
func compare(a, b interface{}) (int, bool) {
	if af, ok := number(a); ok {
		bf, ok := number(b)
		if !ok {
			return 0, false
		}
		return compareFloat(af, bf), true
	}

	switch a := a.(type) {
	case string:
		b, ok := b.(string)
		if !ok {
			return 0, false
		}
		switch {
		case a < b:
			return -1, true
		case a > b:
			return 1, true
		default:
			return 0, true
		}
	case bool:
		b, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case a == b:
			return 0, true
		case !a:
			return -1, true
		default:
			return 1, true
		}
	case time.Time:
		b, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		switch {
		case a.Before(b):
			return -1, true
		case a.After(b):
			return 1, true
		default:
			return 0, true
		}
	case nil:
		return 0, b == nil
	default:
		return 0, false
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func number(v interface{}) (float64, bool) {
	switch v := v.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
