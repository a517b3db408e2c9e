package synth

import (
	"bytes"
	"encoding/json"
)

// Builder assembles response values of type V. Object keys arrive in
// response order.
type Builder[V any] interface {
	Null() V
	// Leaf wraps an already serialized scalar or enum value.
	Leaf(v any) (V, error)
	List(items []V) V
	Object(keys []string, values []V) V
}

// Plain builds maps and slices. Key order is lost.
type Plain struct{}

func (Plain) Null() any               { return nil }
func (Plain) Leaf(v any) (any, error) { return v, nil }
func (Plain) List(items []any) any    { return items }

func (Plain) Object(keys []string, values []any) any {
	out := make(map[string]any, len(keys))
	for i, k := range keys {
		out[k] = values[i]
	}
	return out
}

// Raw builds JSON directly and keeps key order.
type Raw struct{}

var rawNull = json.RawMessage("null")

func (Raw) Null() json.RawMessage { return rawNull }

func (Raw) Leaf(v any) (json.RawMessage, error) {
	return json.Marshal(v)
}

func (Raw) List(items []json.RawMessage) json.RawMessage {
	var b bytes.Buffer
	b.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			b.WriteByte(',')
		}
		b.Write(item)
	}
	b.WriteByte(']')
	return b.Bytes()
}

func (Raw) Object(keys []string, values []json.RawMessage) json.RawMessage {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		key, _ := json.Marshal(k)
		b.Write(key)
		b.WriteByte(':')
		b.Write(values[i])
	}
	b.WriteByte('}')
	return b.Bytes()
}
