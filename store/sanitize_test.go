// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToStorage(t *testing.T) {
	t.Parallel()
	marker := String(UndefinedMarker)
	tests := []struct {
		name    string
		payload Map
		want    Map
	}{
		{
			name:    "nil",
			payload: nil,
			want:    nil,
		},
		{
			name:    "empty",
			payload: Map{},
			want:    Map{},
		},
		{
			name:    "top-level",
			payload: Map{"a": Undefined{}, "b": String("b"), "c": Null{}},
			want:    Map{"a": marker, "b": String("b"), "c": Null{}},
		},
		{
			name: "nested",
			payload: Map{
				"m": Map{"x": Undefined{}, "y": Map{"z": Undefined{}}},
				"l": List{Undefined{}, Number(1), List{Undefined{}}, Map{"k": Undefined{}}},
			},
			want: Map{
				"m": Map{"x": marker, "y": Map{"z": marker}},
				"l": List{marker, Number(1), List{marker}, Map{"k": marker}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			got := ToStorage(tt.payload)
			assert.Truef(Equal(tt.want, got), "got %v, want %v", got, tt.want)
			if tt.want == nil {
				assert.Nil(got)
			}
		})
	}
}

func TestFromStorage(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	stored := Map{
		"a": String(UndefinedMarker),
		"b": List{String(UndefinedMarker), String("other")},
		"c": Map{"d": Map{"e": String(UndefinedMarker)}},
	}
	got := FromStorage(stored)
	want := Map{
		"a": Undefined{},
		"b": List{Undefined{}, String("other")},
		"c": Map{"d": Map{"e": Undefined{}}},
	}
	assert.Truef(Equal(want, got), "got %v", got)
}

func TestSanitize_roundTrip(t *testing.T) {
	t.Parallel()
	payloads := []Map{
		{},
		{"accountId": String("test1"), "exp": Number(1606219200), "loginTs": Number(1.5)},
		{"claims": Map{"email": Undefined{}, "rejected": List{}}, "scope": String("openid email")},
		{"deep": List{List{List{Map{"x": List{Undefined{}, Null{}, Bool(false)}}}}}},
		{"authorizations": Map{"client": Map{"sid": Undefined{}, "grantId": String("g1"), "persistsLogout": Bool(true)}}},
	}
	for _, p := range payloads {
		assert.Truef(t, Equal(p, FromStorage(ToStorage(p))), "round trip of %v", p)
	}
}

func TestSanitize_doesNotMutate(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	inner := List{Undefined{}}
	nested := Map{"x": Undefined{}, "l": inner}
	p := Map{"a": Undefined{}, "n": nested}

	stored := ToStorage(p)
	assert.Equal(Undefined{}, p["a"])
	assert.Equal(Undefined{}, nested["x"])
	assert.Equal(Undefined{}, inner[0])

	restored := FromStorage(stored)
	assert.Equal(String(UndefinedMarker), stored["a"])
	assert.Equal(String(UndefinedMarker), stored["n"].(Map)["x"])
	assert.Equal(Undefined{}, restored["a"])
}

func TestSanitize_markerConflict(t *testing.T) {
	t.Parallel()
	// real data equal to the marker cannot be told apart from Undefined
	p := Map{"note": String(UndefinedMarker)}
	got := FromStorage(ToStorage(p))
	assert.Equal(t, Undefined{}, got["note"])
}
