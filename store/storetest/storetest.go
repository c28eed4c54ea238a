// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package storetest provides test suites that every store.Backend must pass.
package storetest

import (
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/capstore/store"
)

// OpenFunc opens an empty backend whose notion of the current time is the
// given clock.  The suites close the backend when the test ends.
type OpenFunc func(t *testing.T, clock *Clock) store.Backend

// Clock is a manually advanced clock.
type Clock struct {
	m   sync.Mutex
	now time.Time
}

// NewClock returns a clock set to now.
func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

// Now returns the clock's time.
func (c *Clock) Now() time.Time {
	c.m.Lock()
	defer c.m.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.m.Lock()
	defer c.m.Unlock()
	c.now = c.now.Add(d)
}

func open(t *testing.T, fn OpenFunc) (store.Backend, *Clock) {
	t.Helper()
	clock := NewClock(time.Date(2020, time.November, 24, 12, 0, 0, 0, time.UTC))
	b := fn(t, clock)
	t.Cleanup(func() { _ = b.Close() })
	return b, clock
}
