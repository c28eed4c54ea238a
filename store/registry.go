// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package store

import (
	"fmt"
	"sync"
)

// Registry hands out one Adapter per record type, creating it on first use.
type Registry struct {
	m        sync.Mutex
	backend  Backend
	opts     []Option
	adapters map[string]*Adapter
}

// NewRegistry creates a Registry whose adapters share the backend and
// options.
//
// Supported options: WithNamespacePrefix, WithLogger, WithNow
func NewRegistry(b Backend, opt ...Option) (*Registry, error) {
	const op = "store.NewRegistry"
	if b == nil {
		return nil, fmt.Errorf("%s: missing backend: %w", op, ErrInvalidParameter)
	}
	return &Registry{
		backend:  b,
		opts:     opt,
		adapters: map[string]*Adapter{},
	}, nil
}

// Adapter returns the Adapter for the record type.
func (r *Registry) Adapter(recordType string) (*Adapter, error) {
	r.m.Lock()
	defer r.m.Unlock()
	if a, ok := r.adapters[recordType]; ok {
		return a, nil
	}
	a, err := NewAdapter(recordType, r.backend, r.opts...)
	if err != nil {
		return nil, err
	}
	r.adapters[recordType] = a
	return a, nil
}

// Storage returns the Adapter for the record type as a Storage.  It matches
// the shape of an engine's adapter factory.
func (r *Registry) Storage(recordType string) (Storage, error) {
	a, err := r.Adapter(recordType)
	if err != nil {
		return nil, err
	}
	return a, nil
}
