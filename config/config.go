// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package config loads the store's configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/capstore/store"
	"github.com/hashicorp/capstore/store/leveldb"
	"github.com/hashicorp/capstore/store/memory"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
)

// Environment variables read by Load.
const (
	EnvEnvironment      = "CAPSTORE_ENV"
	EnvNodeEnvironment  = "NODE_ENV"
	EnvBackend          = "CAPSTORE_BACKEND"
	EnvPath             = "CAPSTORE_PATH"
	EnvNamespacePrefix  = "CAPSTORE_NAMESPACE_PREFIX"
	EnvLogLevel         = "CAPSTORE_LOG_LEVEL"
	EnvSweepRecordTypes = "CAPSTORE_SWEEP_RECORD_TYPES"
	EnvSweepPageSize    = "CAPSTORE_SWEEP_PAGE_SIZE"
	EnvReapInterval     = "CAPSTORE_REAP_INTERVAL"
	EnvCacheMB          = "CAPSTORE_CACHE_MB"
)

// Supported backends.
const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
)

// Defaults used when a variable is not set.
const (
	DefaultEnvironment  = "development"
	DefaultBackend      = BackendMemory
	DefaultLogLevel     = "info"
	DefaultReapInterval = time.Minute
)

// ErrInvalidConfig is returned when the configuration fails validation.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the store's configuration.
type Config struct {
	// Environment is the deployment environment.  Sweeps are refused in
	// "production".
	Environment string

	// Backend is either "memory" or "leveldb".
	Backend string

	// Path is the leveldb directory.  Required for the leveldb backend.
	Path string

	// NamespacePrefix is prepended to record type names.
	NamespacePrefix string

	// LogLevel is an hclog level name.
	LogLevel string

	// SweepRecordTypes are the record types emptied by a bootstrap sweep.
	SweepRecordTypes []string

	// SweepPageSize is the number of records deleted per sweep batch.
	SweepPageSize int

	// ReapInterval is how often the backend purges expired records.
	ReapInterval time.Duration

	// CacheMB is the leveldb block cache size in megabytes.  Zero keeps
	// goleveldb's default.
	CacheMB int
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Environment:      DefaultEnvironment,
		Backend:          DefaultBackend,
		NamespacePrefix:  store.DefaultNamespacePrefix,
		LogLevel:         DefaultLogLevel,
		SweepRecordTypes: append([]string(nil), store.DefaultSweepRecordTypes...),
		SweepPageSize:    store.DefaultSweepPageSize,
		ReapInterval:     DefaultReapInterval,
	}
}

// FromEnv loads and validates the configuration from the process
// environment.
func FromEnv() (*Config, error) {
	return Load(os.LookupEnv)
}

// Load loads and validates the configuration using lookup to read
// environment variables.  Every problem found is reported.
func Load(lookup func(string) (string, bool)) (*Config, error) {
	const op = "config.Load"
	c := Default()
	var retErr *multierror.Error

	if v, ok := lookup(EnvEnvironment); ok && v != "" {
		c.Environment = v
	} else if v, ok := lookup(EnvNodeEnvironment); ok && v != "" {
		c.Environment = v
	}
	if v, ok := lookup(EnvBackend); ok && v != "" {
		c.Backend = strings.ToLower(v)
	}
	if v, ok := lookup(EnvPath); ok {
		c.Path = v
	}
	if v, ok := lookup(EnvNamespacePrefix); ok && v != "" {
		c.NamespacePrefix = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup(EnvSweepRecordTypes); ok && v != "" {
		c.SweepRecordTypes = splitList(v)
	}
	if v, ok := lookup(EnvSweepPageSize); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			retErr = multierror.Append(retErr, fmt.Errorf("%s: %s is not a number: %q", op, EnvSweepPageSize, v))
		} else {
			c.SweepPageSize = n
		}
	}
	if v, ok := lookup(EnvReapInterval); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			retErr = multierror.Append(retErr, fmt.Errorf("%s: %s is not a duration: %q", op, EnvReapInterval, v))
		} else {
			c.ReapInterval = d
		}
	}
	if v, ok := lookup(EnvCacheMB); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			retErr = multierror.Append(retErr, fmt.Errorf("%s: %s is not a number: %q", op, EnvCacheMB, v))
		} else {
			c.CacheMB = n
		}
	}
	if err := c.Validate(); err != nil {
		retErr = multierror.Append(retErr, err)
	}
	if err := retErr.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}
	return c, nil
}

// Validate reports every problem with the configuration.
func (c *Config) Validate() error {
	const op = "config.(Config).Validate"
	var retErr *multierror.Error
	switch c.Backend {
	case BackendMemory:
	case BackendLevelDB:
		if c.Path == "" {
			retErr = multierror.Append(retErr, fmt.Errorf("%s: the %s backend requires a path", op, BackendLevelDB))
		}
	default:
		retErr = multierror.Append(retErr, fmt.Errorf("%s: unknown backend %q", op, c.Backend))
	}
	if c.NamespacePrefix == "" {
		retErr = multierror.Append(retErr, fmt.Errorf("%s: missing namespace prefix", op))
	}
	if hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		retErr = multierror.Append(retErr, fmt.Errorf("%s: unknown log level %q", op, c.LogLevel))
	}
	if c.SweepPageSize < 1 {
		retErr = multierror.Append(retErr, fmt.Errorf("%s: sweep page size must be positive", op))
	}
	if c.ReapInterval <= 0 {
		retErr = multierror.Append(retErr, fmt.Errorf("%s: reap interval must be positive", op))
	}
	if c.CacheMB < 0 {
		retErr = multierror.Append(retErr, fmt.Errorf("%s: cache size must not be negative", op))
	}
	return retErr.ErrorOrNil()
}

// IsProduction reports whether the environment is production.
func (c *Config) IsProduction() bool {
	return c.Environment == store.EnvProduction
}

// Logger returns a root logger at the configured level.
func (c *Config) Logger(name string) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:  name,
		Level: hclog.LevelFromString(c.LogLevel),
	})
}

// OpenBackend opens the configured backend.
func (c *Config) OpenBackend(logger hclog.Logger) (store.Backend, error) {
	const op = "config.(Config).OpenBackend"
	switch c.Backend {
	case BackendMemory:
		return memory.New(
			memory.WithLogger(logger),
			memory.WithReapInterval(c.ReapInterval),
		), nil
	case BackendLevelDB:
		b, err := leveldb.Open(c.Path,
			leveldb.WithLogger(logger),
			leveldb.WithReapInterval(c.ReapInterval),
			leveldb.WithCache(c.CacheMB),
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%s: unknown backend %q: %w", op, c.Backend, ErrInvalidConfig)
	}
}

// StoreOptions returns the store options implied by the configuration.
func (c *Config) StoreOptions(logger hclog.Logger) []store.Option {
	return []store.Option{
		store.WithNamespacePrefix(c.NamespacePrefix),
		store.WithLogger(logger),
	}
}

// SweepOptions returns the sweep options implied by the configuration.
func (c *Config) SweepOptions(logger hclog.Logger) []store.Option {
	return []store.Option{
		store.WithNamespacePrefix(c.NamespacePrefix),
		store.WithLogger(logger),
		store.WithPageSize(c.SweepPageSize),
		store.WithEnvironment(c.Environment),
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
