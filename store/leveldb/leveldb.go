// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package leveldb provides a persistent store.Backend on top of goleveldb.
//
// Documents are stored as JSON under the key "<namespace>\x00<id>", so a
// namespace is a contiguous key range ordered by id.  Multi-document deletes
// are written as a single leveldb batch and read-modify-write operations run
// inside a leveldb transaction.
package leveldb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/capstore/store"
	"github.com/hashicorp/go-hclog"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const keySeparator = 0x00

// Backend is a goleveldb backed store.Backend.  Expired documents are hidden
// from reads immediately and purged by Reap, which runs periodically when a
// reap interval is configured.
type Backend struct {
	db *leveldb.DB

	logger   hclog.Logger
	now      func() time.Time
	interval time.Duration

	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

var (
	_ store.Backend = (*Backend)(nil)
	_ store.Reaper  = (*Backend)(nil)
)

// Open opens, creating when needed, the database in the directory at path.
//
// Supported options: WithLogger, WithReapInterval, WithNow, WithCache
func Open(path string, opt ...Option) (*Backend, error) {
	const op = "leveldb.Open"
	if path == "" {
		return nil, fmt.Errorf("%s: missing path: %w", op, store.ErrInvalidParameter)
	}
	opts := getOpts(opt...)
	db, err := leveldb.OpenFile(path, dbOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to open %q: %w", op, path, err)
	}
	return newBackend(db, opts), nil
}

// OpenStorage opens the database on a goleveldb storage, for example
// storage.NewMemStorage() in tests.
//
// Supported options: WithLogger, WithReapInterval, WithNow, WithCache
func OpenStorage(stor storage.Storage, opt ...Option) (*Backend, error) {
	const op = "leveldb.OpenStorage"
	if stor == nil {
		return nil, fmt.Errorf("%s: missing storage: %w", op, store.ErrInvalidParameter)
	}
	opts := getOpts(opt...)
	db, err := leveldb.Open(stor, dbOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return newBackend(db, opts), nil
}

func dbOptions(opts options) *opt.Options {
	o := &opt.Options{}
	if opts.withCacheMB > 0 {
		o.BlockCacheCapacity = opts.withCacheMB * opt.MiB
	}
	return o
}

func newBackend(db *leveldb.DB, opts options) *Backend {
	b := &Backend{
		db:       db,
		logger:   opts.withLogger,
		now:      opts.withNowFunc,
		interval: opts.withReapInterval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if b.interval > 0 {
		go b.reapLoop()
	} else {
		close(b.done)
	}
	return b
}

// Get implements store.Backend.
func (b *Backend) Get(ctx context.Context, namespace, id string) (*store.Document, error) {
	const op = "leveldb.(Backend).Get"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := b.db.Get(docKey(namespace, id), nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		return nil, fmt.Errorf("%s: %s/%s: %w", op, namespace, id, store.ErrNotFound)
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, translate(err))
	}
	d, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %s/%s: %w", op, namespace, id, err)
	}
	if d.IsExpired(b.now()) {
		return nil, fmt.Errorf("%s: %s/%s: %w", op, namespace, id, store.ErrNotFound)
	}
	return d, nil
}

// Merge implements store.Backend.
func (b *Backend) Merge(ctx context.Context, namespace, id string, u store.Update) error {
	return b.write(ctx, "leveldb.(Backend).Merge", namespace, id, u, true)
}

// Update implements store.Backend.
func (b *Backend) Update(ctx context.Context, namespace, id string, u store.Update) error {
	return b.write(ctx, "leveldb.(Backend).Update", namespace, id, u, false)
}

func (b *Backend) write(ctx context.Context, op, namespace, id string, u store.Update, create bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("%s: missing id: %w", op, store.ErrInvalidParameter)
	}
	tr, err := b.db.OpenTransaction()
	if err != nil {
		return fmt.Errorf("%s: unable to open transaction: %w", op, translate(err))
	}
	key := docKey(namespace, id)
	var d *store.Document
	raw, err := tr.Get(key, nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
	case err != nil:
		tr.Discard()
		return fmt.Errorf("%s: %w", op, translate(err))
	default:
		if d, err = decode(raw); err != nil {
			tr.Discard()
			return fmt.Errorf("%s: %s/%s: %w", op, namespace, id, err)
		}
		if d.IsExpired(b.now()) {
			d = nil
		}
	}
	if d == nil {
		if !create {
			tr.Discard()
			return fmt.Errorf("%s: %s/%s: %w", op, namespace, id, store.ErrNotFound)
		}
		d = &store.Document{ID: id, Payload: store.Map{}}
	}
	d.Apply(u)
	enc, err := json.Marshal(d)
	if err != nil {
		tr.Discard()
		return fmt.Errorf("%s: unable to encode %s/%s: %w", op, namespace, id, err)
	}
	if err := tr.Put(key, enc, nil); err != nil {
		tr.Discard()
		return fmt.Errorf("%s: %w", op, translate(err))
	}
	if err := tr.Commit(); err != nil {
		tr.Discard()
		return fmt.Errorf("%s: unable to commit: %w", op, translate(err))
	}
	return nil
}

// Delete implements store.Backend.
func (b *Backend) Delete(ctx context.Context, namespace, id string) error {
	const op = "leveldb.(Backend).Delete"
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.db.Delete(docKey(namespace, id), nil); err != nil {
		return fmt.Errorf("%s: %w", op, translate(err))
	}
	return nil
}

// DeleteBatch implements store.Backend.  The deletes are written as one
// leveldb batch, which is applied atomically.
func (b *Backend) DeleteBatch(ctx context.Context, namespace string, ids []string) error {
	const op = "leveldb.(Backend).DeleteBatch"
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	batch := new(leveldb.Batch)
	for _, id := range ids {
		batch.Delete(docKey(namespace, id))
	}
	if err := b.db.Write(batch, nil); err != nil {
		return fmt.Errorf("%s: %w", op, translate(err))
	}
	return nil
}

// Query implements store.Backend.  There are no secondary indexes; the
// namespace is scanned in id order.
func (b *Backend) Query(ctx context.Context, namespace string, q store.Query) ([]*store.Document, error) {
	const op = "leveldb.(Backend).Query"
	if q.Field == "" {
		return nil, fmt.Errorf("%s: missing field: %w", op, store.ErrInvalidParameter)
	}
	var found []*store.Document
	err := b.scan(ctx, namespace, "", func(d *store.Document) bool {
		if q.Matches(d) {
			found = append(found, d)
		}
		return q.Limit == 0 || len(found) < q.Limit
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return found, nil
}

// List implements store.Backend.
func (b *Backend) List(ctx context.Context, namespace, afterID string, limit int) ([]*store.Document, error) {
	const op = "leveldb.(Backend).List"
	if limit < 1 {
		return nil, fmt.Errorf("%s: limit must be positive: %w", op, store.ErrInvalidParameter)
	}
	var docs []*store.Document
	err := b.scan(ctx, namespace, afterID, func(d *store.Document) bool {
		docs = append(docs, d)
		return len(docs) < limit
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return docs, nil
}

// scan calls fn with every live document in the namespace whose id is greater
// than afterID, in id order, until fn returns false.
func (b *Backend) scan(ctx context.Context, namespace, afterID string, fn func(*store.Document) bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	prefix := nsPrefix(namespace)
	it := b.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()
	ok := it.First()
	if afterID != "" {
		after := docKey(namespace, afterID)
		ok = it.Seek(after)
		if ok && bytes.Equal(it.Key(), after) {
			ok = it.Next()
		}
	}
	now := b.now()
	for ; ok; ok = it.Next() {
		d, err := decode(it.Value())
		if err != nil {
			return fmt.Errorf("key %q: %w", it.Key(), err)
		}
		if d.IsExpired(now) {
			continue
		}
		if !fn(d) {
			break
		}
	}
	return translate(it.Error())
}

// Reap purges every expired document and returns how many were removed.  The
// scan and the deletes run in one transaction, which holds off writers, so a
// document rewritten after it expired is never purged.
func (b *Backend) Reap(ctx context.Context) (int, error) {
	const op = "leveldb.(Backend).Reap"
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	tr, err := b.db.OpenTransaction()
	if err != nil {
		return 0, fmt.Errorf("%s: unable to open transaction: %w", op, translate(err))
	}
	now := b.now()
	var expired [][]byte
	it := tr.NewIterator(nil, nil)
	for it.Next() {
		d, err := decode(it.Value())
		if err != nil {
			b.logger.Warn("skipping undecodable document", "key", string(it.Key()), "error", err)
			continue
		}
		if d.IsExpired(now) {
			expired = append(expired, append([]byte(nil), it.Key()...))
		}
	}
	it.Release()
	if err := it.Error(); err != nil {
		tr.Discard()
		return 0, fmt.Errorf("%s: %w", op, translate(err))
	}
	if len(expired) == 0 {
		tr.Discard()
		return 0, nil
	}
	for _, k := range expired {
		if err := tr.Delete(k, nil); err != nil {
			tr.Discard()
			return 0, fmt.Errorf("%s: %w", op, translate(err))
		}
	}
	if err := tr.Commit(); err != nil {
		tr.Discard()
		return 0, fmt.Errorf("%s: unable to commit: %w", op, translate(err))
	}
	return len(expired), nil
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
			case err != nil:
				b.logger.Error("unable to purge expired documents", "error", err)
			case n > 0:
				b.logger.Debug("purged expired documents", "count", n)
			}
		}
	}
}

// Close stops the reaper and closes the database.
func (b *Backend) Close() error {
	const op = "leveldb.(Backend).Close"
	closed := true
	b.closeOnce.Do(func() {
		closed = false
		close(b.stop)
	})
	if closed {
		return fmt.Errorf("%s: %w", op, store.ErrClosed)
	}
	<-b.done
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func nsPrefix(namespace string) []byte {
	k := make([]byte, 0, len(namespace)+1)
	k = append(k, namespace...)
	return append(k, keySeparator)
}

func docKey(namespace, id string) []byte {
	return append(nsPrefix(namespace), id...)
}

func decode(raw []byte) (*store.Document, error) {
	var d store.Document
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("unable to decode document: %w", err)
	}
	if d.Payload == nil {
		d.Payload = store.Map{}
	}
	return &d, nil
}

// translate maps goleveldb's closed error onto store.ErrClosed.
func translate(err error) error {
	if errors.Is(err, leveldb.ErrClosed) {
		return fmt.Errorf("%v: %w", err, store.ErrClosed)
	}
	return err
}
