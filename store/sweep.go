// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package store

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
)

// Sweeper empties whole record types.  It exists to give local development a
// clean store on start up and refuses to run in production.
type Sweeper struct {
	backend     Backend
	prefix      string
	pageSize    int
	environment string
	logger      hclog.Logger
}

// NewSweeper creates a Sweeper for the backend.
//
// Supported options: WithNamespacePrefix, WithPageSize, WithEnvironment,
// WithLogger
func NewSweeper(b Backend, opt ...Option) (*Sweeper, error) {
	const op = "store.NewSweeper"
	if b == nil {
		return nil, fmt.Errorf("%s: missing backend: %w", op, ErrInvalidParameter)
	}
	opts := getSweepOpts(opt...)
	return &Sweeper{
		backend:     b,
		prefix:      opts.withNamespacePrefix,
		pageSize:    opts.withPageSize,
		environment: opts.withEnvironment,
		logger:      opts.withLogger,
	}, nil
}

// Sweep deletes every record of the given record types, or of
// DefaultSweepRecordTypes when none are given, and returns how many records
// were deleted.  A failure in one record type does not stop the others; all
// failures are returned together.
//
// Backends hide expired records from List, so when the backend is a Reaper
// the expired records of every namespace are purged first and are not
// counted.  Other backends may keep expired records after a sweep.
func (s *Sweeper) Sweep(ctx context.Context, recordTypes ...string) (int, error) {
	const op = "store.(Sweeper).Sweep"
	if s.environment == EnvProduction {
		return 0, fmt.Errorf("%s: %w", op, ErrProductionSweep)
	}
	if len(recordTypes) == 0 {
		recordTypes = DefaultSweepRecordTypes
	}
	var retErr *multierror.Error
	if r, ok := s.backend.(Reaper); ok {
		n, err := r.Reap(ctx)
		if err != nil {
			retErr = multierror.Append(retErr, fmt.Errorf("%s: unable to purge expired records: %w", op, err))
		} else {
			s.logger.Debug("purged expired records", "records", n)
		}
	}
	total := 0
	for _, rt := range recordTypes {
		ns := Namespace(s.prefix, rt)
		n, err := s.sweepNamespace(ctx, ns)
		total += n
		if err != nil {
			retErr = multierror.Append(retErr, fmt.Errorf("%s: namespace %q: %w", op, ns, err))
			continue
		}
		s.logger.Info("swept namespace", "namespace", ns, "records", n)
	}
	return total, retErr.ErrorOrNil()
}

func (s *Sweeper) sweepNamespace(ctx context.Context, ns string) (int, error) {
	deleted := 0
	for {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		// every listed page is deleted, so the next page always starts at
		// the beginning of the namespace
		docs, err := s.backend.List(ctx, ns, "", s.pageSize)
		if err != nil {
			return deleted, err
		}
		if len(docs) == 0 {
			return deleted, nil
		}
		ids := make([]string, 0, len(docs))
		for _, d := range docs {
			ids = append(ids, d.ID)
		}
		if err := s.backend.DeleteBatch(ctx, ns, ids); err != nil {
			return deleted, err
		}
		deleted += len(ids)
		s.logger.Debug("deleted page", "namespace", ns, "records", len(ids))
	}
}
