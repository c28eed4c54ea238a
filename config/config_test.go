// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hashicorp/capstore/store"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		env          map[string]string
		want         *Config
		wantErr      bool
		wantContains []string
	}{
		{
			name: "defaults",
			env:  map[string]string{},
			want: Default(),
		},
		{
			name: "all-set",
			env: map[string]string{
				EnvEnvironment:      "staging",
				EnvBackend:          "LevelDB",
				EnvPath:             "/var/lib/capstore",
				EnvNamespacePrefix:  "dev_",
				EnvLogLevel:         "trace",
				EnvSweepRecordTypes: " Session, Grant ,,",
				EnvSweepPageSize:    "50",
				EnvReapInterval:     "30s",
				EnvCacheMB:          "16",
			},
			want: &Config{
				Environment:      "staging",
				Backend:          BackendLevelDB,
				Path:             "/var/lib/capstore",
				NamespacePrefix:  "dev_",
				LogLevel:         "trace",
				SweepRecordTypes: []string{"Session", "Grant"},
				SweepPageSize:    50,
				ReapInterval:     30 * time.Second,
				CacheMB:          16,
			},
		},
		{
			name: "node-env-fallback",
			env:  map[string]string{EnvNodeEnvironment: "production"},
			want: func() *Config {
				c := Default()
				c.Environment = "production"
				return c
			}(),
		},
		{
			name: "capstore-env-wins",
			env:  map[string]string{EnvNodeEnvironment: "production", EnvEnvironment: "development"},
			want: Default(),
		},
		{
			name: "every-problem-reported",
			env: map[string]string{
				EnvBackend:       "leveldb",
				EnvLogLevel:      "loud",
				EnvSweepPageSize: "many",
				EnvReapInterval:  "soon",
				EnvCacheMB:       "big",
			},
			wantErr: true,
			wantContains: []string{
				EnvSweepPageSize,
				EnvReapInterval,
				EnvCacheMB,
				"requires a path",
				"unknown log level",
			},
		},
		{
			name:         "unknown-backend",
			env:          map[string]string{EnvBackend: "firestore"},
			wantErr:      true,
			wantContains: []string{`unknown backend "firestore"`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := Load(lookupFrom(tt.env))
			if tt.wantErr {
				require.Error(err)
				assert.True(errors.Is(err, ErrInvalidConfig))
				for _, s := range tt.wantContains {
					assert.Contains(err.Error(), s)
				}
				return
			}
			require.NoError(err)
			assert.Equal(tt.want, got)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	c := Default()
	assert.NoError(c.Validate())

	c.SweepPageSize = 0
	c.ReapInterval = 0
	c.NamespacePrefix = ""
	c.CacheMB = -1
	err := c.Validate()
	assert.Error(err)
	assert.Contains(err.Error(), "page size")
	assert.Contains(err.Error(), "reap interval")
	assert.Contains(err.Error(), "namespace prefix")
	assert.Contains(err.Error(), "cache size")
}

func TestConfig_IsProduction(t *testing.T) {
	t.Parallel()
	c := Default()
	assert.False(t, c.IsProduction())
	c.Environment = store.EnvProduction
	assert.True(t, c.IsProduction())
}

func TestConfig_OpenBackend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	logger := hclog.NewNullLogger()
	for _, backend := range []string{BackendMemory, BackendLevelDB} {
		backend := backend
		t.Run(backend, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			c := Default()
			c.Backend = backend
			c.Path = t.TempDir()
			c.CacheMB = 8
			b, err := c.OpenBackend(logger)
			require.NoError(err)
			defer b.Close()

			a, err := store.NewAdapter("Session", b, c.StoreOptions(logger)...)
			require.NoError(err)
			require.NoError(a.Upsert(ctx, "s1", store.Map{"uid": store.String("u1")}, time.Minute))
			got, err := a.FindByUID(ctx, "u1")
			require.NoError(err)
			assert.NotNil(got)

			s, err := store.NewSweeper(b, c.SweepOptions(logger)...)
			require.NoError(err)
			n, err := s.Sweep(ctx, c.SweepRecordTypes...)
			require.NoError(err)
			assert.Equal(1, n)
		})
	}
	t.Run("unknown", func(t *testing.T) {
		c := Default()
		c.Backend = "nope"
		_, err := c.OpenBackend(logger)
		assert.True(t, errors.Is(err, ErrInvalidConfig))
	})
}
