// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package memory provides an in-process store.Backend.  It is intended for
// development and tests; nothing survives a restart.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/capstore/store"
	"github.com/hashicorp/go-hclog"
)

// DefaultReapInterval is how often expired documents are purged.
const DefaultReapInterval = time.Minute

// Backend is an in-memory store.Backend.  Expired documents are hidden from
// reads immediately and purged by a background reaper.
type Backend struct {
	m          sync.RWMutex
	namespaces map[string]map[string]*store.Document
	closed     bool

	logger   hclog.Logger
	now      func() time.Time
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

var (
	_ store.Backend = (*Backend)(nil)
	_ store.Reaper  = (*Backend)(nil)
)

// New creates a Backend and starts its reaper.  Call Close to stop it.
//
// Supported options: WithLogger, WithReapInterval, WithNow
func New(opt ...Option) *Backend {
	opts := getOpts(opt...)
	b := &Backend{
		namespaces: map[string]map[string]*store.Document{},
		logger:     opts.withLogger,
		now:        opts.withNowFunc,
		interval:   opts.withReapInterval,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go b.reapLoop()
	return b
}

// Get implements store.Backend.
func (b *Backend) Get(ctx context.Context, namespace, id string) (*store.Document, error) {
	const op = "memory.(Backend).Get"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.m.RLock()
	defer b.m.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("%s: %w", op, store.ErrClosed)
	}
	d, ok := b.live(namespace, id)
	if !ok {
		return nil, fmt.Errorf("%s: %s/%s: %w", op, namespace, id, store.ErrNotFound)
	}
	return d.Clone(), nil
}

// Merge implements store.Backend.
func (b *Backend) Merge(ctx context.Context, namespace, id string, u store.Update) error {
	return b.write(ctx, "memory.(Backend).Merge", namespace, id, u, true)
}

// Update implements store.Backend.
func (b *Backend) Update(ctx context.Context, namespace, id string, u store.Update) error {
	return b.write(ctx, "memory.(Backend).Update", namespace, id, u, false)
}

func (b *Backend) write(ctx context.Context, op, namespace, id string, u store.Update, create bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("%s: missing id: %w", op, store.ErrInvalidParameter)
	}
	b.m.Lock()
	defer b.m.Unlock()
	if b.closed {
		return fmt.Errorf("%s: %w", op, store.ErrClosed)
	}
	d, ok := b.live(namespace, id)
	switch {
	case !ok && !create:
		return fmt.Errorf("%s: %s/%s: %w", op, namespace, id, store.ErrNotFound)
	case !ok:
		// an expired document is replaced rather than revived
		d = &store.Document{ID: id, Payload: store.Map{}}
	}
	d.Apply(u)
	ns, ok := b.namespaces[namespace]
	if !ok {
		ns = map[string]*store.Document{}
		b.namespaces[namespace] = ns
	}
	ns[id] = d
	return nil
}

// Delete implements store.Backend.
func (b *Backend) Delete(ctx context.Context, namespace, id string) error {
	const op = "memory.(Backend).Delete"
	if err := ctx.Err(); err != nil {
		return err
	}
	b.m.Lock()
	defer b.m.Unlock()
	if b.closed {
		return fmt.Errorf("%s: %w", op, store.ErrClosed)
	}
	delete(b.namespaces[namespace], id)
	return nil
}

// DeleteBatch implements store.Backend.  The batch is applied inside a single
// critical section.
func (b *Backend) DeleteBatch(ctx context.Context, namespace string, ids []string) error {
	const op = "memory.(Backend).DeleteBatch"
	if err := ctx.Err(); err != nil {
		return err
	}
	b.m.Lock()
	defer b.m.Unlock()
	if b.closed {
		return fmt.Errorf("%s: %w", op, store.ErrClosed)
	}
	ns := b.namespaces[namespace]
	for _, id := range ids {
		delete(ns, id)
	}
	return nil
}

// Query implements store.Backend.
func (b *Backend) Query(ctx context.Context, namespace string, q store.Query) ([]*store.Document, error) {
	const op = "memory.(Backend).Query"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if q.Field == "" {
		return nil, fmt.Errorf("%s: missing field: %w", op, store.ErrInvalidParameter)
	}
	b.m.RLock()
	defer b.m.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("%s: %w", op, store.ErrClosed)
	}
	var found []*store.Document
	for _, id := range b.sortedIDs(namespace) {
		d, ok := b.live(namespace, id)
		if !ok || !q.Matches(d) {
			continue
		}
		found = append(found, d.Clone())
		if q.Limit > 0 && len(found) == q.Limit {
			break
		}
	}
	return found, nil
}

// List implements store.Backend.
func (b *Backend) List(ctx context.Context, namespace, afterID string, limit int) ([]*store.Document, error) {
	const op = "memory.(Backend).List"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit < 1 {
		return nil, fmt.Errorf("%s: limit must be positive: %w", op, store.ErrInvalidParameter)
	}
	b.m.RLock()
	defer b.m.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("%s: %w", op, store.ErrClosed)
	}
	var docs []*store.Document
	for _, id := range b.sortedIDs(namespace) {
		if id <= afterID {
			continue
		}
		d, ok := b.live(namespace, id)
		if !ok {
			continue
		}
		docs = append(docs, d.Clone())
		if len(docs) == limit {
			break
		}
	}
	return docs, nil
}

// Close stops the reaper.  Subsequent calls return store.ErrClosed.
func (b *Backend) Close() error {
	const op = "memory.(Backend).Close"
	b.m.Lock()
	if b.closed {
		b.m.Unlock()
		return fmt.Errorf("%s: %w", op, store.ErrClosed)
	}
	b.closed = true
	b.m.Unlock()
	close(b.stop)
	<-b.done
	return nil
}

// Len returns the number of stored documents in the namespace, expired ones
// included.
func (b *Backend) Len(namespace string) int {
	b.m.RLock()
	defer b.m.RUnlock()
	return len(b.namespaces[namespace])
}

// Reap purges every expired document and returns how many were removed.
func (b *Backend) Reap(ctx context.Context) (int, error) {
	const op = "memory.(Backend).Reap"
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	b.m.Lock()
	defer b.m.Unlock()
	if b.closed {
		return 0, fmt.Errorf("%s: %w", op, store.ErrClosed)
	}
	now := b.now()
	purged := 0
	for name, ns := range b.namespaces {
		for id, d := range ns {
			if d.IsExpired(now) {
				delete(ns, id)
				purged++
			}
		}
		if len(ns) == 0 {
			delete(b.namespaces, name)
		}
	}
	return purged, nil
}

func (b *Backend) reapLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			n, err := b.Reap(context.Background())
			switch {
			case errors.Is(err, store.ErrClosed):
				return
			case err != nil:
				b.logger.Error("unable to purge expired documents", "error", err)
			case n > 0:
				b.logger.Debug("purged expired documents", "count", n)
			}
		}
	}
}

// live returns the stored document unless it is missing or expired.  Callers
// must hold the lock.
func (b *Backend) live(namespace, id string) (*store.Document, bool) {
	d, ok := b.namespaces[namespace][id]
	if !ok || d.IsExpired(b.now()) {
		return nil, false
	}
	return d, true
}

// sortedIDs must be called with the lock held.
func (b *Backend) sortedIDs(namespace string) []string {
	ns := b.namespaces[namespace]
	ids := make([]string, 0, len(ns))
	for id := range ns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
