package postgres

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/ting-rn/ting-sync/internal/docstore"
)

// timeLayout has fixed width, so stored timestamps sort lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var fieldRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// args collects positional parameters.
type args []interface{}

func (a *args) add(v interface{}) string {
	*a = append(*a, v)
	return fmt.Sprintf("$%d", len(*a))
}

// where builds the WHERE clause of q. Documents missing an ordered field are excluded.
func where(q docstore.Query, a *args) (string, error) {
	conds := []string{"collection = " + a.add(q.Collection)}

	for _, f := range q.Filters {
		c, err := condition(f, a)
		if err != nil {
			return "", err
		}
		conds = append(conds, c)
	}

	for _, o := range q.Orders {
		if o.Field == docstore.DocumentID {
			continue
		}
		if !fieldRe.MatchString(o.Field) {
			return "", fmt.Errorf("%w: bad field name %q", docstore.ErrInvalidQuery, o.Field)
		}
		conds = append(conds, fmt.Sprintf("data ? '%s'", o.Field))
	}

	return strings.Join(conds, " AND "), nil
}

func condition(f docstore.Filter, a *args) (string, error) {
	if f.Field == docstore.DocumentID {
		if f.Op == docstore.In {
			values, _ := docstore.Values(f.Value)
			ids := make([]string, 0, len(values))
			for _, v := range values {
				s, ok := v.(string)
				if !ok {
					return "", fmt.Errorf("%w: document id must be a string", docstore.ErrInvalidQuery)
				}
				ids = append(ids, s)
			}
			return "id = ANY(" + a.add(pq.Array(ids)) + ")", nil
		}

		s, ok := f.Value.(string)
		if !ok {
			return "", fmt.Errorf("%w: document id must be a string", docstore.ErrInvalidQuery)
		}
		return fmt.Sprintf("id %s %s", sqlOp(f.Op), a.add(s)), nil
	}

	if !fieldRe.MatchString(f.Field) {
		return "", fmt.Errorf("%w: bad field name %q", docstore.ErrInvalidQuery, f.Field)
	}

	ref := fmt.Sprintf("data->'%s'", f.Field)

	switch f.Op {
	case docstore.In:
		values, _ := docstore.Values(f.Value)
		raw := make([]string, 0, len(values))
		for _, v := range values {
			b, err := json.Marshal(encodeValue(v))
			if err != nil {
				return "", fmt.Errorf("%w: %s", docstore.ErrInvalidQuery, err.Error())
			}
			raw = append(raw, string(b))
		}
		return fmt.Sprintf("%s = ANY(%s::jsonb[])", ref, a.add(pq.Array(raw))), nil
	case docstore.Equal:
		b, err := json.Marshal(encodeValue(f.Value))
		if err != nil {
			return "", fmt.Errorf("%w: %s", docstore.ErrInvalidQuery, err.Error())
		}
		return fmt.Sprintf("%s = %s::jsonb", ref, a.add(string(b))), nil
	default:
		v := encodeValue(f.Value)
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("%w: %s", docstore.ErrInvalidQuery, err.Error())
		}

		// jsonb orders values of different types, values of other types must not match
		return fmt.Sprintf("jsonb_typeof(%s) = %s AND %s %s %s::jsonb",
			ref, a.add(jsonType(v)), ref, sqlOp(f.Op), a.add(string(b))), nil
	}
}

func sqlOp(op docstore.Op) string {
	if op == docstore.Equal {
		return "="
	}
	return string(op)
}

func jsonType(v interface{}) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case nil:
		return "null"
	default:
		return "number"
	}
}

func orderBy(q docstore.Query) string {
	if len(q.Orders) == 0 {
		return " ORDER BY id"
	}

	parts := make([]string, 0, len(q.Orders)+1)
	for _, o := range q.Orders {
		ref := "id"
		if o.Field != docstore.DocumentID {
			ref = fmt.Sprintf("data->'%s'", o.Field)
		}
		parts = append(parts, ref+" "+direction(o.Direction))
	}

	// ties are broken by id in the direction of the last order
	parts = append(parts, "id "+direction(q.Orders[len(q.Orders)-1].Direction))

	return " ORDER BY " + strings.Join(parts, ", ")
}

func direction(d docstore.Direction) string {
	if d == docstore.Desc {
		return "DESC"
	}
	return "ASC"
}

// selectQuery builds SQL for q.
func selectQuery(q docstore.Query) (string, []interface{}, error) {
	var a args

	w, err := where(q, &a)
	if err != nil {
		return "", nil, err
	}

	s := "SELECT id, data, version FROM documents WHERE " + w + orderBy(q)
	if q.Size > 0 {
		s += " LIMIT " + a.add(q.Size)
	}

	return s, a, nil
}

// countQuery builds SQL which counts documents matching q.
func countQuery(q docstore.Query) (string, []interface{}, error) {
	var a args

	w, err := where(q.Limit(0), &a)
	if err != nil {
		return "", nil, err
	}

	s := "SELECT count(*) FROM documents WHERE " + w
	if q.Size > 0 {
		s = fmt.Sprintf("SELECT count(*) FROM (SELECT 1 FROM documents WHERE %s LIMIT %s) t", w, a.add(q.Size))
	}

	return s, a, nil
}

func encodeValue(v interface{}) interface{} {
	switch v := v.(type) {
	case time.Time:
		return v.UTC().Format(timeLayout)
	case *time.Time:
		if v == nil {
			return nil
		}
		return v.UTC().Format(timeLayout)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, e := range v {
			out[k] = encodeValue(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i := range v {
			out[i] = encodeValue(v[i])
		}
		return out
	default:
		return v
	}
}

func encode(data map[string]interface{}) ([]byte, error) {
	b, err := json.Marshal(encodeValue(data))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return b, nil
}

func decode(b []byte) (map[string]interface{}, error) {
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return m, nil
}
