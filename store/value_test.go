// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package store

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueOf(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		in        interface{}
		want      Value
		wantIsErr error
	}{
		{name: "nil", in: nil, want: Null{}},
		{name: "bool", in: true, want: Bool(true)},
		{name: "string", in: "s", want: String("s")},
		{name: "int", in: 3600, want: Number(3600)},
		{name: "uint8", in: uint8(7), want: Number(7)},
		{name: "float", in: 1.5, want: Number(1.5)},
		{name: "json-number", in: json.Number("42"), want: Number(42)},
		{name: "bad-json-number", in: json.Number("x"), wantIsErr: ErrInvalidParameter},
		{name: "value", in: Undefined{}, want: Undefined{}},
		{name: "strings", in: []string{"openid", "email"}, want: List{String("openid"), String("email")}},
		{
			name: "nested",
			in:   map[string]interface{}{"a": []interface{}{1, "b", nil}, "m": map[string]string{"k": "v"}},
			want: Map{"a": List{Number(1), String("b"), Null{}}, "m": Map{"k": String("v")}},
		},
		{name: "unsupported", in: struct{}{}, wantIsErr: ErrInvalidParameter},
		{name: "unsupported-nested", in: []interface{}{make(chan int)}, wantIsErr: ErrInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := ValueOf(tt.in)
			if tt.wantIsErr != nil {
				require.Error(err)
				assert.Truef(errors.Is(err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, err)
				return
			}
			require.NoError(err)
			assert.Truef(Equal(tt.want, got), "got %v, want %v", got, tt.want)
		})
	}
}

func TestInterface(t *testing.T) {
	t.Parallel()
	got := Interface(Map{
		"a": Undefined{},
		"b": Null{},
		"c": List{Bool(true), Number(2), String("s")},
	})
	assert.Equal(t, map[string]interface{}{
		"b": nil,
		"c": []interface{}{true, float64(2), "s"},
	}, got)
}

func TestEqual(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	assert.True(Equal(Undefined{}, Undefined{}))
	assert.False(Equal(Undefined{}, Null{}))
	assert.False(Equal(String("1"), Number(1)))
	assert.False(Equal(List{Number(1)}, List{Number(1), Number(2)}))
	assert.False(Equal(Map{"a": Null{}}, Map{"b": Null{}}))
	assert.True(Equal(Map{"a": List{Map{}}}, Map{"a": List{Map{}}}))
	assert.True(Equal(nil, nil))
	assert.False(Equal(nil, Null{}))
}

func TestMap_Lookup(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	m := Map{"a": Map{"b": Map{"c": String("v")}}, "s": String("x")}
	v, ok := m.Lookup("a.b.c")
	assert.True(ok)
	assert.Equal(String("v"), v)
	_, ok = m.Lookup("a.missing")
	assert.False(ok)
	_, ok = m.Lookup("s.deeper")
	assert.False(ok)
}

func TestMap_JSON(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	m := Map{
		"skip":  Undefined{},
		"null":  Null{},
		"list":  List{Undefined{}, Number(1)},
		"inner": Map{"skip": Undefined{}, "b": Bool(false)},
	}
	b, err := json.Marshal(m)
	require.NoError(err)
	assert.JSONEq(`{"null":null,"list":[null,1],"inner":{"b":false}}`, string(b))

	var got Map
	require.NoError(json.Unmarshal(b, &got))
	assert.True(Equal(Map{
		"null":  Null{},
		"list":  List{Null{}, Number(1)},
		"inner": Map{"b": Bool(false)},
	}, got), "got %v", got)

	assert.Error(json.Unmarshal([]byte(`[1]`), &got))
	var l List
	assert.Error(json.Unmarshal([]byte(`{}`), &l))
}

func TestClone(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	m := Map{"l": List{Map{"k": String("v")}}}
	c := m.Clone()
	c["l"].(List)[0].(Map)["k"] = String("changed")
	assert.Equal(String("v"), m["l"].(List)[0].(Map)["k"])
	assert.Nil(Map(nil).Clone())
}

func TestMapOf(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	m, err := MapOf(map[string]interface{}{
		"uid":    "u1",
		"n":      3,
		"scopes": []interface{}{"openid", nil},
		"claims": map[string]interface{}{"email_verified": true},
	})
	require.NoError(err)
	assert.True(Equal(Map{
		"uid":    String("u1"),
		"n":      Number(3),
		"scopes": List{String("openid"), Null{}},
		"claims": Map{"email_verified": Bool(true)},
	}, m), "got %v", m)

	m, err = MapOf(nil)
	require.NoError(err)
	assert.Nil(m)

	_, err = MapOf(map[string]interface{}{"bad": struct{}{}})
	require.Error(err)
	assert.True(errors.Is(err, ErrInvalidParameter))
}
