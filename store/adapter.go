// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Well known payload fields used for lookups.
const (
	FieldUserCode = "payload.userCode"
	FieldUID      = "payload.uid"
	FieldGrantID  = "payload.grantId"
)

// Storage is the interface an OIDC engine expects of the store for each record
// type.  Find operations return a nil Map when there is no record or the
// record has been consumed.
type Storage interface {
	Upsert(ctx context.Context, id string, payload Map, expiresIn time.Duration) error
	Find(ctx context.Context, id string) (Map, error)
	FindByUserCode(ctx context.Context, userCode string) (Map, error)
	FindByUID(ctx context.Context, uid string) (Map, error)
	Consume(ctx context.Context, id string) error
	Destroy(ctx context.Context, id string) error
	RevokeByGrantID(ctx context.Context, grantID string) error
}

var _ Storage = (*Adapter)(nil)

// Adapter stores the records of a single record type in a Backend.  Errors
// from the Backend are returned unchanged.
type Adapter struct {
	recordType string
	namespace  string
	backend    Backend
	logger     hclog.Logger
	now        func() time.Time
}

// Namespace returns the namespace for a record type using the given prefix.
// Spaces in the record type become underscores.
func Namespace(prefix, recordType string) string {
	return prefix + strings.ReplaceAll(recordType, " ", "_")
}

// NewAdapter creates an Adapter for the record type.
//
// Supported options: WithNamespacePrefix, WithLogger, WithNow
func NewAdapter(recordType string, b Backend, opt ...Option) (*Adapter, error) {
	const op = "store.NewAdapter"
	if recordType == "" {
		return nil, fmt.Errorf("%s: missing record type: %w", op, ErrInvalidParameter)
	}
	if b == nil {
		return nil, fmt.Errorf("%s: missing backend: %w", op, ErrInvalidParameter)
	}
	opts := getAdapterOpts(opt...)
	ns := Namespace(opts.withNamespacePrefix, recordType)
	return &Adapter{
		recordType: recordType,
		namespace:  ns,
		backend:    b,
		logger:     opts.withLogger.With("namespace", ns),
		now:        opts.withNowFunc,
	}, nil
}

// RecordType returns the record type the adapter was created for.
func (a *Adapter) RecordType() string { return a.recordType }

// Namespace returns the adapter's namespace.
func (a *Adapter) Namespace() string { return a.namespace }

// Upsert stores the payload at id, merging it into an existing record.  The
// record expires after expiresIn when it is positive and never expires
// otherwise.
func (a *Adapter) Upsert(ctx context.Context, id string, payload Map, expiresIn time.Duration) error {
	const op = "store.(Adapter).Upsert"
	if id == "" {
		return fmt.Errorf("%s: missing id: %w", op, ErrInvalidParameter)
	}
	if payload == nil {
		payload = Map{}
	}
	u := Update{Payload: ToStorage(payload)}
	if expiresIn > 0 {
		exp := a.now().Add(expiresIn)
		u.ExpiresAt = &exp
	}
	a.logger.Trace("upsert", "id", id, "expires_in", expiresIn)
	return a.backend.Merge(ctx, a.namespace, id, u)
}

// Find returns the payload stored at id, or nil when there is no such record
// or it has been consumed.
func (a *Adapter) Find(ctx context.Context, id string) (Map, error) {
	const op = "store.(Adapter).Find"
	if id == "" {
		return nil, fmt.Errorf("%s: missing id: %w", op, ErrInvalidParameter)
	}
	d, err := a.backend.Get(ctx, a.namespace, id)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return a.visible(d), nil
}

// FindByUserCode returns the payload of the record whose userCode matches,
// or nil when there is none or it has been consumed.
func (a *Adapter) FindByUserCode(ctx context.Context, userCode string) (Map, error) {
	return a.findOne(ctx, FieldUserCode, userCode)
}

// FindByUID returns the payload of the record whose uid matches, or nil when
// there is none or it has been consumed.
func (a *Adapter) FindByUID(ctx context.Context, uid string) (Map, error) {
	return a.findOne(ctx, FieldUID, uid)
}

func (a *Adapter) findOne(ctx context.Context, field, value string) (Map, error) {
	docs, err := a.backend.Query(ctx, a.namespace, Query{Field: field, Equals: String(value), Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return a.visible(docs[0]), nil
}

// visible applies the consumption rule shared by the Find operations.
func (a *Adapter) visible(d *Document) Map {
	if d.Consumed != nil {
		a.logger.Trace("record consumed", "id", d.ID)
		return nil
	}
	p := FromStorage(d.Payload)
	if p == nil {
		p = Map{}
	}
	return p
}

// Destroy deletes the record at id.  Destroying a missing record is a no-op.
func (a *Adapter) Destroy(ctx context.Context, id string) error {
	const op = "store.(Adapter).Destroy"
	if id == "" {
		return fmt.Errorf("%s: missing id: %w", op, ErrInvalidParameter)
	}
	a.logger.Trace("destroy", "id", id)
	return a.backend.Delete(ctx, a.namespace, id)
}

// RevokeByGrantID deletes every record whose grantId matches in a single
// atomic batch.
func (a *Adapter) RevokeByGrantID(ctx context.Context, grantID string) error {
	docs, err := a.backend.Query(ctx, a.namespace, Query{Field: FieldGrantID, Equals: String(grantID)})
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	if err := a.backend.DeleteBatch(ctx, a.namespace, ids); err != nil {
		return err
	}
	a.logger.Debug("revoked grant", "grant_id", grantID, "records", len(ids))
	return nil
}

// Consume marks the record at id as consumed.  The record is kept but is no
// longer returned by the Find operations.  Consuming a missing record is a
// no-op.
func (a *Adapter) Consume(ctx context.Context, id string) error {
	const op = "store.(Adapter).Consume"
	if id == "" {
		return fmt.Errorf("%s: missing id: %w", op, ErrInvalidParameter)
	}
	_, err := a.backend.Get(ctx, a.namespace, id)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil
	case err != nil:
		return err
	}
	consumed := a.now().Unix()
	err = a.backend.Update(ctx, a.namespace, id, Update{Consumed: &consumed})
	if errors.Is(err, ErrNotFound) {
		// destroyed since the read
		return nil
	}
	if err == nil {
		a.logger.Trace("consume", "id", id, "consumed", consumed)
	}
	return err
}
