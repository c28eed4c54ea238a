// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hashicorp/capstore/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run runs the CLI against a leveldb store in dir and returns its output.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	base := []string{"capstore", "--backend", "leveldb", "--path", dir, "--log-level", "error"}
	err := app.Run(append(base, args...))
	return out.String(), err
}

func TestCLI_tokenLifecycle(t *testing.T) {
	assert, require := assert.New(t), require.New(t)
	dir := t.TempDir()

	_, err := run(t, dir, "upsert", "-t", "AccessToken", "--id", "tok1",
		"--payload", `{"uid":"u1","grantId":"g1"}`, "--expires-in", "1h")
	require.NoError(err)

	out, err := run(t, dir, "find", "-t", "AccessToken", "--id", "tok1")
	require.NoError(err)
	var got map[string]interface{}
	require.NoError(json.Unmarshal([]byte(out), &got))
	assert.Equal(map[string]interface{}{"uid": "u1", "grantId": "g1"}, got)

	out, err = run(t, dir, "find", "-t", "AccessToken", "--uid", "u1")
	require.NoError(err)
	assert.Contains(out, `"grantId": "g1"`)

	_, err = run(t, dir, "consume", "-t", "AccessToken", "--id", "tok1")
	require.NoError(err)
	_, err = run(t, dir, "find", "-t", "AccessToken", "--id", "tok1")
	require.Error(err)
	assert.True(errors.Is(err, errNotFound))

	_, err = run(t, dir, "destroy", "-t", "AccessToken", "--id", "tok1", "--id", "never-existed")
	require.NoError(err)
}

func TestCLI_revoke(t *testing.T) {
	assert, require := assert.New(t), require.New(t)
	dir := t.TempDir()
	for _, tc := range []struct{ id, grant string }{{"a", "G1"}, {"b", "G1"}, {"c", "G2"}} {
		_, err := run(t, dir, "upsert", "-t", "RefreshToken", "--id", tc.id, "--payload", `{"grantId":"`+tc.grant+`"}`)
		require.NoError(err)
	}
	_, err := run(t, dir, "revoke", "-t", "RefreshToken", "--grant-id", "G1")
	require.NoError(err)

	_, err = run(t, dir, "find", "-t", "RefreshToken", "--id", "a")
	assert.True(errors.Is(err, errNotFound))
	_, err = run(t, dir, "find", "-t", "RefreshToken", "--id", "c")
	assert.NoError(err)
}

func TestCLI_sweep(t *testing.T) {
	assert, require := assert.New(t), require.New(t)
	dir := t.TempDir()
	for _, id := range []string{"s1", "s2"} {
		_, err := run(t, dir, "upsert", "-t", "Session", "--id", id)
		require.NoError(err)
	}
	_, err := run(t, dir, "upsert", "-t", "Grant", "--id", "g1")
	require.NoError(err)

	_, err = run(t, dir, "--env", "production", "sweep")
	require.Error(err)
	assert.True(errors.Is(err, store.ErrProductionSweep))

	out, err := run(t, dir, "sweep")
	require.NoError(err)
	assert.Contains(out, "deleted 2 records")

	_, err = run(t, dir, "find", "-t", "Grant", "--id", "g1")
	assert.NoError(err)

	out, err = run(t, dir, "sweep", "--record-type", "Grant")
	require.NoError(err)
	assert.Contains(out, "deleted 1 records")
}

func TestCLI_find_requiresOneKey(t *testing.T) {
	_, err := run(t, t.TempDir(), "find", "-t", "Session", "--id", "a", "--uid", "b")
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrInvalidParameter))
}

func TestCLI_accounts(t *testing.T) {
	require := require.New(t)
	out, err := run(t, t.TempDir(), "accounts")
	require.NoError(err)
	dec := json.NewDecoder(bytes.NewBufferString(out))
	var subs []string
	for dec.More() {
		var c map[string]interface{}
		require.NoError(dec.Decode(&c))
		subs = append(subs, c["sub"].(string))
	}
	assert.Equal(t, []string{"test1", "test2"}, subs)
}
