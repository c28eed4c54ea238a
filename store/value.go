// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Value is a payload value.  It is one of Undefined, Null, Bool, Number,
// String, List or Map; no other implementations exist.
type Value interface {
	isValue()
}

// Undefined is the absence of a value.  Backends cannot store it, so the
// Adapter replaces it with UndefinedMarker before writing and restores it on
// read.
type Undefined struct{}

// Null is an explicit null.
type Null struct{}

// Bool is a boolean value.
type Bool bool

// Number is a numeric value.
type Number float64

// String is a string value.
type String string

// List is an ordered sequence of values.
type List []Value

// Map is a mapping of string keys to values.  Payloads are Maps.
type Map map[string]Value

func (Undefined) isValue() {}
func (Null) isValue()      {}
func (Bool) isValue()      {}
func (Number) isValue()    {}
func (String) isValue()    {}
func (List) isValue()      {}
func (Map) isValue()       {}

// ValueOf converts plain Go data into a Value.  Supported inputs are nil,
// bool, string, the numeric kinds, json.Number, []interface{}, []string,
// map[string]interface{}, map[string]string and Values.
func ValueOf(v interface{}) (Value, error) {
	const op = "store.ValueOf"
	switch t := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(t), nil
	case int:
		return Number(t), nil
	case int8:
		return Number(t), nil
	case int16:
		return Number(t), nil
	case int32:
		return Number(t), nil
	case int64:
		return Number(t), nil
	case uint:
		return Number(t), nil
	case uint8:
		return Number(t), nil
	case uint16:
		return Number(t), nil
	case uint32:
		return Number(t), nil
	case uint64:
		return Number(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("%s: invalid number %q: %w", op, t, ErrInvalidParameter)
		}
		return Number(f), nil
	case []string:
		l := make(List, 0, len(t))
		for _, s := range t {
			l = append(l, String(s))
		}
		return l, nil
	case []interface{}:
		l := make(List, 0, len(t))
		for i, e := range t {
			ev, err := ValueOf(e)
			if err != nil {
				return nil, fmt.Errorf("%s: index %d: %w", op, i, err)
			}
			l = append(l, ev)
		}
		return l, nil
	case map[string]string:
		m := make(Map, len(t))
		for k, s := range t {
			m[k] = String(s)
		}
		return m, nil
	case map[string]interface{}:
		m := make(Map, len(t))
		for k, e := range t {
			ev, err := ValueOf(e)
			if err != nil {
				return nil, fmt.Errorf("%s: key %q: %w", op, k, err)
			}
			m[k] = ev
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%s: unsupported type %T: %w", op, v, ErrInvalidParameter)
	}
}

// MapOf converts a map[string]interface{} into a Map.
func MapOf(m map[string]interface{}) (Map, error) {
	if m == nil {
		return nil, nil
	}
	v, err := ValueOf(m)
	if err != nil {
		return nil, err
	}
	return v.(Map), nil
}

// Interface converts a Value back into plain Go data.  Both Undefined and Null
// become nil, and Undefined entries are dropped from maps.
func Interface(v Value) interface{} {
	switch t := v.(type) {
	case Bool:
		return bool(t)
	case Number:
		return float64(t)
	case String:
		return string(t)
	case List:
		l := make([]interface{}, 0, len(t))
		for _, e := range t {
			l = append(l, Interface(e))
		}
		return l
	case Map:
		m := make(map[string]interface{}, len(t))
		for k, e := range t {
			if _, ok := e.(Undefined); ok {
				continue
			}
			m[k] = Interface(e)
		}
		return m
	default:
		return nil
	}
}

// Equal reports whether a and b are deeply equal.
func Equal(a, b Value) bool {
	switch at := a.(type) {
	case Undefined:
		_, ok := b.(Undefined)
		return ok
	case Null:
		_, ok := b.(Null)
		return ok
	case Bool:
		bt, ok := b.(Bool)
		return ok && at == bt
	case Number:
		bt, ok := b.(Number)
		return ok && at == bt
	case String:
		bt, ok := b.(String)
		return ok && at == bt
	case List:
		bt, ok := b.(List)
		if !ok || len(at) != len(bt) {
			return false
		}
		for i := range at {
			if !Equal(at[i], bt[i]) {
				return false
			}
		}
		return true
	case Map:
		bt, ok := b.(Map)
		if !ok || len(at) != len(bt) {
			return false
		}
		for k, av := range at {
			bv, ok := bt[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return a == nil && b == nil
	}
}

// Clone returns a deep copy of v.
func Clone(v Value) Value {
	switch t := v.(type) {
	case List:
		if t == nil {
			return List(nil)
		}
		l := make(List, len(t))
		for i, e := range t {
			l[i] = Clone(e)
		}
		return l
	case Map:
		return t.Clone()
	default:
		return v
	}
}

// Clone returns a deep copy of the map.
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	c := make(Map, len(m))
	for k, e := range m {
		c[k] = Clone(e)
	}
	return c
}

// Lookup resolves a dotted path such as "a.b.c" through nested maps.
func (m Map) Lookup(path string) (Value, bool) {
	var cur Value = m
	for _, part := range strings.Split(path, ".") {
		cm, ok := cur.(Map)
		if !ok {
			return nil, false
		}
		if cur, ok = cm[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// MarshalJSON omits Undefined entries.
func (m Map) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	out := make(map[string]Value, len(m))
	for k, e := range m {
		if _, ok := e.(Undefined); ok {
			continue
		}
		out[k] = e
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a JSON object.
func (m *Map) UnmarshalJSON(data []byte) error {
	v, err := decodeJSON(data)
	if err != nil {
		return err
	}
	switch t := v.(type) {
	case Map:
		*m = t
	case Null:
		*m = nil
	default:
		return fmt.Errorf("store.(Map).UnmarshalJSON: not an object: %w", ErrInvalidParameter)
	}
	return nil
}

// MarshalJSON renders Undefined elements as null.
func (l List) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("null"), nil
	}
	out := make([]Value, len(l))
	for i, e := range l {
		if _, ok := e.(Undefined); ok {
			e = Null{}
		}
		out[i] = e
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a JSON array.
func (l *List) UnmarshalJSON(data []byte) error {
	v, err := decodeJSON(data)
	if err != nil {
		return err
	}
	switch t := v.(type) {
	case List:
		*l = t
	case Null:
		*l = nil
	default:
		return fmt.Errorf("store.(List).UnmarshalJSON: not an array: %w", ErrInvalidParameter)
	}
	return nil
}

func (Null) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

func (Undefined) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

func decodeJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return ValueOf(raw)
}
