// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package store

import (
	"time"

	"github.com/hashicorp/go-hclog"
)

// DefaultNamespacePrefix is prepended to every record type name to form its
// namespace.
const DefaultNamespacePrefix = "OIDC__"

// DefaultSweepPageSize is the number of records deleted per batch by a sweep.
const DefaultSweepPageSize = 100

// EnvProduction is the environment name in which sweeps are refused.
const EnvProduction = "production"

// DefaultSweepRecordTypes are the record types swept when none are given.
var DefaultSweepRecordTypes = []string{"Session", "AuthorizationCode", "AccessToken"}

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(opts)
	}
}

// adapterOptions is the set of available options for an Adapter and Registry
type adapterOptions struct {
	withNamespacePrefix string
	withLogger          hclog.Logger
	withNowFunc         func() time.Time
}

func adapterDefaults() adapterOptions {
	return adapterOptions{
		withNamespacePrefix: DefaultNamespacePrefix,
		withLogger:          hclog.NewNullLogger(),
		withNowFunc:         time.Now,
	}
}

func getAdapterOpts(opt ...Option) adapterOptions {
	opts := adapterDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// sweepOptions is the set of available options for a Sweeper
type sweepOptions struct {
	withNamespacePrefix string
	withLogger          hclog.Logger
	withPageSize        int
	withEnvironment     string
}

func sweepDefaults() sweepOptions {
	return sweepOptions{
		withNamespacePrefix: DefaultNamespacePrefix,
		withLogger:          hclog.NewNullLogger(),
		withPageSize:        DefaultSweepPageSize,
	}
}

func getSweepOpts(opt ...Option) sweepOptions {
	opts := sweepDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithNamespacePrefix overrides DefaultNamespacePrefix.  Supported by
// NewAdapter, NewRegistry and NewSweeper.
func WithNamespacePrefix(prefix string) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *adapterOptions:
			v.withNamespacePrefix = prefix
		case *sweepOptions:
			v.withNamespacePrefix = prefix
		}
	}
}

// WithLogger provides an optional logger.  A nil logger is ignored.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if l == nil {
			return
		}
		switch v := o.(type) {
		case *adapterOptions:
			v.withLogger = l
		case *sweepOptions:
			v.withLogger = l
		}
	}
}

// WithNow provides an optional clock used for expiry and consumption times.
func WithNow(fn func() time.Time) Option {
	return func(o interface{}) {
		if fn == nil {
			return
		}
		if v, ok := o.(*adapterOptions); ok {
			v.withNowFunc = fn
		}
	}
}

// WithPageSize sets how many records a sweep deletes per batch.  Values less
// than one are ignored.
func WithPageSize(n int) Option {
	return func(o interface{}) {
		if n < 1 {
			return
		}
		if v, ok := o.(*sweepOptions); ok {
			v.withPageSize = n
		}
	}
}

// WithEnvironment names the environment a sweep runs in.  Sweeps are refused
// when it is EnvProduction.
func WithEnvironment(env string) Option {
	return func(o interface{}) {
		if v, ok := o.(*sweepOptions); ok {
			v.withEnvironment = env
		}
	}
}

