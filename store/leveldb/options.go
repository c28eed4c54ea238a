// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package leveldb

import (
	"time"

	"github.com/hashicorp/go-hclog"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

type options struct {
	withLogger       hclog.Logger
	withReapInterval time.Duration
	withNowFunc      func() time.Time
	withCacheMB      int
}

func optsDefaults() options {
	return options{
		withLogger:  hclog.NewNullLogger(),
		withNowFunc: time.Now,
	}
}

func getOpts(opt ...Option) options {
	opts := optsDefaults()
	for _, o := range opt {
		if o == nil {
			continue
		}
		o(&opts)
	}
	return opts
}

// WithLogger provides an optional logger
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if v, ok := o.(*options); ok && l != nil {
			v.withLogger = l
		}
	}
}

// WithReapInterval starts a background purge of expired documents at the
// given interval.  By default no purge runs and expired documents are only
// hidden.
func WithReapInterval(d time.Duration) Option {
	return func(o interface{}) {
		if v, ok := o.(*options); ok {
			v.withReapInterval = d
		}
	}
}

// WithNow provides an optional clock used to decide expiry.
func WithNow(fn func() time.Time) Option {
	return func(o interface{}) {
		if v, ok := o.(*options); ok && fn != nil {
			v.withNowFunc = fn
		}
	}
}

// WithCache sets the leveldb block cache size in megabytes.
func WithCache(mb int) Option {
	return func(o interface{}) {
		if v, ok := o.(*options); ok {
			v.withCacheMB = mb
		}
	}
}
