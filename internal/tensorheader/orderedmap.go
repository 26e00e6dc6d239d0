package tensorheader

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/elliotchance/orderedmap/v2"
)

// OrderedMap is a string-keyed JSON object that remembers the order its
// keys were inserted or decoded in. encoding/json has no notion of key
// order on decode (it lands in a plain map), so round-tripping a JSON
// object's key order requires scanning tokens ourselves; this type does
// that once and keeps the corpus's own ordered-map data structure
// (github.com/elliotchance/orderedmap/v2) as the backing store so every
// other operation (Get/Set/Delete/iteration) is the library's, not ours.
type OrderedMap[V any] struct {
	m *orderedmap.OrderedMap[string, V]
}

// NewOrderedMap returns an empty, ready-to-use OrderedMap.
func NewOrderedMap[V any]() *OrderedMap[V] {
	return &OrderedMap[V]{m: orderedmap.NewOrderedMap[string, V]()}
}

// Get returns the value for key and whether it was present.
func (o *OrderedMap[V]) Get(key string) (V, bool) {
	return o.m.Get(key)
}

// Set inserts or overwrites the value for key, preserving the key's
// original position if it already existed.
func (o *OrderedMap[V]) Set(key string, value V) {
	o.m.Set(key, value)
}

// Delete removes key, if present.
func (o *OrderedMap[V]) Delete(key string) {
	o.m.Delete(key)
}

// Len returns the number of entries.
func (o *OrderedMap[V]) Len() int {
	return o.m.Len()
}

// Keys returns the keys in insertion/decode order.
func (o *OrderedMap[V]) Keys() []string {
	return o.m.Keys()
}

// Range calls fn for each entry in order, stopping early if fn returns
// false.
func (o *OrderedMap[V]) Range(fn func(key string, value V) bool) {
	for el := o.m.Front(); el != nil; el = el.Next() {
		if !fn(el.Key, el.Value) {
			return
		}
	}
}

// MarshalJSON writes the entries as a JSON object in order.
func (o *OrderedMap[V]) MarshalJSON() ([]byte, error) {
	if o == nil || o.m == nil {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	var rangeErr error
	o.Range(func(key string, value V) bool {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		keyBytes, err := json.Marshal(key)
		if err != nil {
			rangeErr = err
			return false
		}
		valBytes, err := json.Marshal(value)
		if err != nil {
			rangeErr = err
			return false
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		buf.Write(valBytes)
		return true
	})
	if rangeErr != nil {
		return nil, rangeErr
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, preserving the key order it appears
// in on the wire. It rejects anything other than a JSON object.
func (o *OrderedMap[V]) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return fmt.Errorf("tensorheader: expected JSON object, got %v", tok)
	}

	m := orderedmap.NewOrderedMap[string, V]()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("tensorheader: expected string key, got %v", keyTok)
		}
		var value V
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("tensorheader: decoding value for key %q: %w", key, err)
		}
		m.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	o.m = m
	return nil
}
