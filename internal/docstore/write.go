package docstore

import (
	"fmt"
	"time"
)

// WriteKind ...
type WriteKind int

const (
	// SetWrite replaces the document.
	SetWrite WriteKind = iota + 1
	// MergeWrite creates the document or overlays the given fields.
	MergeWrite
	// UpdateWrite overlays the given fields, the document must exist.
	UpdateWrite
	// DeleteWrite removes the document. Deleting a missing document is not an error.
	DeleteWrite
)

// Write is one mutation of a batch or a transaction.
type Write struct {
	Kind WriteKind
	Path string
	Data map[string]interface{}
}

// Set ...
func Set(path string, data map[string]interface{}) Write {
	return Write{Kind: SetWrite, Path: path, Data: data}
}

// Merge ...
func Merge(path string, data map[string]interface{}) Write {
	return Write{Kind: MergeWrite, Path: path, Data: data}
}

// Update ...
func Update(path string, data map[string]interface{}) Write {
	return Write{Kind: UpdateWrite, Path: path, Data: data}
}

// Delete ...
func Delete(path string) Write {
	return Write{Kind: DeleteWrite, Path: path}
}

type serverTimestamp struct{}

// ServerTimestamp is replaced with the commit time by the backend.
var ServerTimestamp interface{} = serverTimestamp{}

// IsServerTimestamp ...
func IsServerTimestamp(v interface{}) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// Increment atomically adds its value to a numeric field. Missing field counts as zero.
type Increment int64

// Apply computes document data after applying w.
// It is used by backends which do not have native merge semantics.
func Apply(current map[string]interface{}, exists bool, w Write, now time.Time) (map[string]interface{}, bool, error) {
	switch w.Kind {
	case DeleteWrite:
		return nil, false, nil
	case SetWrite:
		return resolve(nil, w.Data, now), true, nil
	case MergeWrite:
		if !exists {
			current = nil
		}
		return resolve(current, w.Data, now), true, nil
	case UpdateWrite:
		if !exists {
			return nil, false, fmt.Errorf("%w: %s", ErrNotFound, w.Path)
		}
		return resolve(current, w.Data, now), true, nil
	default:
		return nil, false, fmt.Errorf("unknown write kind %d", w.Kind)
	}
}

func resolve(base, fields map[string]interface{}, now time.Time) map[string]interface{} {
	out := Clone(base)
	if out == nil {
		out = make(map[string]interface{}, len(fields))
	}

	for k, v := range fields {
		switch v := v.(type) {
		case serverTimestamp:
			out[k] = now
		case Increment:
			out[k] = increment(out[k], int64(v))
		default:
			out[k] = cloneValue(v)
		}
	}

	return out
}

func increment(v interface{}, by int64) interface{} {
	switch v := v.(type) {
	case int:
		return int64(v) + by
	case int32:
		return int64(v) + by
	case int64:
		return v + by
	case float64:
		return v + float64(by)
	default:
		return by
	}
}

// Clone returns a copy of document data which shares nothing with the source.
func Clone(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}

	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}

	return out
}

func cloneValue(v interface{}) interface{} {
	switch v := v.(type) {
	case map[string]interface{}:
		return Clone(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i := range v {
			out[i] = cloneValue(v[i])
		}
		return out
	case []string:
		return append([]string(nil), v...)
	default:
		return v
	}
}
