// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package store

import (
	"context"
	"strings"
	"time"
)

// Document is a record as persisted by a Backend.
type Document struct {
	// ID is the primary key within the document's namespace.
	ID string `json:"id"`

	// Payload is the sanitized payload.  It never contains Undefined.
	Payload Map `json:"payload"`

	// ExpiresAt is when the backend may purge the document (optional).
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`

	// Consumed is the unix time, in seconds, at which the document was
	// consumed.  Nil means it has not been consumed.
	Consumed *int64 `json:"consumed,omitempty"`
}

// IsExpired reports whether the document has an expiry at or before now.
func (d *Document) IsExpired(now time.Time) bool {
	return d.ExpiresAt != nil && !now.Before(*d.ExpiresAt)
}

// Field resolves a dotted field path against the document.  Paths under
// "payload." are resolved through the payload.
func (d *Document) Field(path string) (Value, bool) {
	switch {
	case path == "id":
		return String(d.ID), true
	case path == "payload":
		return d.Payload, true
	case strings.HasPrefix(path, "payload."):
		return d.Payload.Lookup(strings.TrimPrefix(path, "payload."))
	default:
		return nil, false
	}
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := &Document{
		ID:      d.ID,
		Payload: d.Payload.Clone(),
	}
	if d.ExpiresAt != nil {
		t := *d.ExpiresAt
		c.ExpiresAt = &t
	}
	if d.Consumed != nil {
		n := *d.Consumed
		c.Consumed = &n
	}
	return c
}

// Apply overlays the fields set in u onto the document.
func (d *Document) Apply(u Update) {
	if u.Payload != nil {
		d.Payload = u.Payload.Clone()
	}
	if u.ExpiresAt != nil {
		t := *u.ExpiresAt
		d.ExpiresAt = &t
	}
	if u.Consumed != nil {
		n := *u.Consumed
		d.Consumed = &n
	}
}

// Update is a set of top-level fields to write.  Nil fields are left as they
// are stored.
type Update struct {
	Payload   Map
	ExpiresAt *time.Time
	Consumed  *int64
}

// Query is an equality filter on a dotted document field, such as
// "payload.uid".
type Query struct {
	Field  string
	Equals Value

	// Limit caps the number of documents returned.  Zero means no limit.
	Limit int
}

// Matches reports whether the document satisfies the query.
func (q Query) Matches(d *Document) bool {
	v, ok := d.Field(q.Field)
	return ok && Equal(v, q.Equals)
}

// Backend is a document store partitioned by namespace.  Implementations must
// be safe for concurrent use and must hide expired documents from every read.
type Backend interface {
	// Get returns the document, or ErrNotFound when it does not exist or has
	// expired.
	Get(ctx context.Context, namespace, id string) (*Document, error)

	// Merge overlays u onto the document, creating it when absent.
	Merge(ctx context.Context, namespace, id string, u Update) error

	// Update overlays u onto an existing document and returns ErrNotFound
	// when it does not exist.
	Update(ctx context.Context, namespace, id string, u Update) error

	// Delete removes the document.  Deleting a missing document is not an
	// error.
	Delete(ctx context.Context, namespace, id string) error

	// Query returns the documents matching q ordered by id.
	Query(ctx context.Context, namespace string, q Query) ([]*Document, error)

	// DeleteBatch removes all of the documents atomically: either every
	// delete is committed or none is.
	DeleteBatch(ctx context.Context, namespace string, ids []string) error

	// List returns up to limit documents with ids greater than afterID,
	// ordered by id.
	List(ctx context.Context, namespace, afterID string, limit int) ([]*Document, error)

	// Close releases the backend's resources.
	Close() error
}

// Reaper is implemented by backends that can purge expired documents on
// demand.  Reap returns how many documents were purged.
type Reaper interface {
	Reap(ctx context.Context) (int, error)
}
