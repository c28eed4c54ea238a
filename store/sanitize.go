// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package store

// UndefinedMarker is stored in place of Undefined, which backends cannot
// represent.  A payload that contains this exact string as real data will read
// back as Undefined.
const UndefinedMarker = "custom.type.firestore"

// ToStorage returns a copy of the payload with every Undefined value, at any
// depth, replaced by UndefinedMarker.  The payload is not modified.
func ToStorage(payload Map) Map {
	return replaceMap(payload, Undefined{}, String(UndefinedMarker))
}

// FromStorage returns a copy of the stored payload with every UndefinedMarker
// value, at any depth, replaced by Undefined.  The payload is not modified.
func FromStorage(payload Map) Map {
	return replaceMap(payload, String(UndefinedMarker), Undefined{})
}

func replaceMap(m Map, from, to Value) Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = replace(v, from, to)
	}
	return out
}

func replaceList(l List, from, to Value) List {
	if l == nil {
		return nil
	}
	out := make(List, len(l))
	for i, v := range l {
		out[i] = replace(v, from, to)
	}
	return out
}

// replace substitutes v when it is the from sentinel and then descends into
// whatever value is left.
func replace(v, from, to Value) Value {
	if isSentinel(v, from) {
		v = to
	}
	switch t := v.(type) {
	case Map:
		return replaceMap(t, from, to)
	case List:
		return replaceList(t, from, to)
	default:
		return v
	}
}

// isSentinel is strict equality against a scalar sentinel.
func isSentinel(v, sentinel Value) bool {
	switch s := sentinel.(type) {
	case Undefined:
		_, ok := v.(Undefined)
		return ok
	case String:
		vs, ok := v.(String)
		return ok && vs == s
	default:
		return false
	}
}
