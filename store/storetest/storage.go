// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hashicorp/capstore/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStorageSuite runs the store.Adapter contract against the backends
// opened by fn.
func TestStorageSuite(t *testing.T, fn OpenFunc) {
	ctx := context.Background()

	newAdapter := func(t *testing.T, recordType string) (*store.Adapter, store.Backend, *Clock) {
		t.Helper()
		b, clock := open(t, fn)
		a, err := store.NewAdapter(recordType, b, store.WithNow(clock.Now))
		require.NoError(t, err)
		return a, b, clock
	}

	t.Run("upsert-find-consume-destroy", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		a, b, _ := newAdapter(t, "AccessToken")
		want := store.Map{"uid": store.String("u1"), "grantId": store.String("g1")}
		require.NoError(a.Upsert(ctx, "tok1", want, time.Hour))

		got, err := a.Find(ctx, "tok1")
		require.NoError(err)
		assert.True(store.Equal(want, got), "got %v", got)

		require.NoError(a.Consume(ctx, "tok1"))
		got, err = a.Find(ctx, "tok1")
		require.NoError(err)
		assert.Nil(got)

		// consumed records remain until destroyed
		_, err = b.Get(ctx, a.Namespace(), "tok1")
		require.NoError(err)

		require.NoError(a.Destroy(ctx, "tok1"))
		_, err = b.Get(ctx, a.Namespace(), "tok1")
		assert.True(errors.Is(err, store.ErrNotFound))
		require.NoError(a.Destroy(ctx, "tok1"))
	})

	t.Run("undefined-survives-round-trip", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		a, b, _ := newAdapter(t, "Session")
		want := store.Map{
			"accountId": store.Undefined{},
			"nested":    store.Map{"deep": store.List{store.Undefined{}, store.Map{"x": store.Undefined{}}}},
			"kept":      store.Null{},
		}
		require.NoError(a.Upsert(ctx, "s1", want, 0))

		d, err := b.Get(ctx, a.Namespace(), "s1")
		require.NoError(err)
		v, ok := d.Payload.Lookup("accountId")
		require.True(ok)
		assert.True(store.Equal(store.String(store.UndefinedMarker), v))

		got, err := a.Find(ctx, "s1")
		require.NoError(err)
		assert.True(store.Equal(want, got), "got %v", got)
		_, isUndefined := got["accountId"].(store.Undefined)
		assert.True(isUndefined)
	})

	t.Run("expiry", func(t *testing.T) {
		tests := []struct {
			name      string
			expiresIn time.Duration
			wantSet   bool
		}{
			{name: "positive", expiresIn: time.Hour, wantSet: true},
			{name: "zero", expiresIn: 0},
			{name: "negative", expiresIn: -time.Second},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				assert, require := assert.New(t), require.New(t)
				a, b, clock := newAdapter(t, "Grant")
				require.NoError(a.Upsert(ctx, "g", store.Map{}, tt.expiresIn))
				d, err := b.Get(ctx, a.Namespace(), "g")
				require.NoError(err)
				if !tt.wantSet {
					assert.Nil(d.ExpiresAt)
					return
				}
				require.NotNil(d.ExpiresAt)
				assert.True(clock.Now().Add(tt.expiresIn).Equal(*d.ExpiresAt))

				clock.Advance(tt.expiresIn)
				got, err := a.Find(ctx, "g")
				require.NoError(err)
				assert.Nil(got)
			})
		}
	})

	t.Run("find-by-user-code-and-uid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		a, _, _ := newAdapter(t, "DeviceCode")
		require.NoError(a.Upsert(ctx, "d1", store.Map{"userCode": store.String("ABCD"), "uid": store.String("u1")}, time.Hour))

		got, err := a.FindByUserCode(ctx, "ABCD")
		require.NoError(err)
		assert.True(store.Equal(store.String("u1"), got["uid"]))
		got, err = a.FindByUID(ctx, "u1")
		require.NoError(err)
		assert.True(store.Equal(store.String("ABCD"), got["userCode"]))

		got, err = a.FindByUserCode(ctx, "nope")
		require.NoError(err)
		assert.Nil(got)
		got, err = a.FindByUID(ctx, "nope")
		require.NoError(err)
		assert.Nil(got)

		require.NoError(a.Consume(ctx, "d1"))
		got, err = a.FindByUserCode(ctx, "ABCD")
		require.NoError(err)
		assert.Nil(got)
		got, err = a.FindByUID(ctx, "u1")
		require.NoError(err)
		assert.Nil(got)
	})

	t.Run("index-lookup-returns-one-record", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		a, _, _ := newAdapter(t, "Interaction")
		require.NoError(a.Upsert(ctx, "i1", store.Map{"uid": store.String("dup"), "n": store.Number(1)}, 0))
		require.NoError(a.Upsert(ctx, "i2", store.Map{"uid": store.String("dup"), "n": store.Number(2)}, 0))
		first, err := a.FindByUID(ctx, "dup")
		require.NoError(err)
		require.NotNil(first)
		again, err := a.FindByUID(ctx, "dup")
		require.NoError(err)
		assert.True(store.Equal(first, again))
	})

	t.Run("revoke-by-grant-id", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		a, _, _ := newAdapter(t, "RefreshToken")
		for id, grant := range map[string]string{"r1": "G1", "r2": "G1", "r3": "G1", "r4": "G2"} {
			require.NoError(a.Upsert(ctx, id, store.Map{"grantId": store.String(grant)}, time.Hour))
		}
		require.NoError(a.RevokeByGrantID(ctx, "G1"))
		for _, id := range []string{"r1", "r2", "r3"} {
			got, err := a.Find(ctx, id)
			require.NoError(err)
			assert.Nilf(got, "%s should be revoked", id)
		}
		got, err := a.Find(ctx, "r4")
		require.NoError(err)
		assert.NotNil(got)

		require.NoError(a.RevokeByGrantID(ctx, "G-none"))
	})

	t.Run("upsert-merges", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		a, b, clock := newAdapter(t, "Session")
		require.NoError(a.Upsert(ctx, "s", store.Map{"a": store.String("1")}, time.Hour))
		require.NoError(a.Upsert(ctx, "s", store.Map{"b": store.String("2")}, 0))
		d, err := b.Get(ctx, a.Namespace(), "s")
		require.NoError(err)
		assert.True(store.Equal(store.Map{"b": store.String("2")}, d.Payload))
		require.NotNil(d.ExpiresAt, "an upsert without expiry keeps the stored expiry")
		assert.True(clock.Now().Add(time.Hour).Equal(*d.ExpiresAt))

		require.NoError(a.Consume(ctx, "s"))
		require.NoError(a.Upsert(ctx, "s", store.Map{"c": store.String("3")}, 0))
		got, err := a.Find(ctx, "s")
		require.NoError(err)
		assert.Nil(got, "an upsert does not clear consumption")
	})

	t.Run("consume-missing", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		a, b, _ := newAdapter(t, "AuthorizationCode")
		require.NoError(a.Consume(ctx, "missing"))
		_, err := b.Get(ctx, a.Namespace(), "missing")
		assert.True(errors.Is(err, store.ErrNotFound))
	})

	t.Run("consume-records-seconds", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		a, b, clock := newAdapter(t, "AuthorizationCode")
		require.NoError(a.Upsert(ctx, "c", store.Map{}, time.Minute))
		require.NoError(a.Consume(ctx, "c"))
		d, err := b.Get(ctx, a.Namespace(), "c")
		require.NoError(err)
		require.NotNil(d.Consumed)
		assert.Equal(clock.Now().Unix(), *d.Consumed)
	})
}
