// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hashicorp/capstore/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testNamespace = "OIDC__Test"

func int64Ptr(i int64) *int64 { return &i }

func timePtr(t time.Time) *time.Time { return &t }

// TestBackendSuite runs the store.Backend contract against the backends
// opened by fn.
func TestBackendSuite(t *testing.T, fn OpenFunc) {
	ctx := context.Background()

	t.Run("get-missing", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		b, _ := open(t, fn)
		d, err := b.Get(ctx, testNamespace, "missing")
		require.Error(err)
		assert.Truef(errors.Is(err, store.ErrNotFound), "wanted \"%s\" but got \"%s\"", store.ErrNotFound, err)
		assert.Nil(d)
	})

	t.Run("merge-creates", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		b, clock := open(t, fn)
		exp := clock.Now().Add(time.Hour)
		require.NoError(b.Merge(ctx, testNamespace, "a", store.Update{
			Payload:   store.Map{"uid": store.String("u1"), "n": store.Number(1)},
			ExpiresAt: &exp,
		}))
		d, err := b.Get(ctx, testNamespace, "a")
		require.NoError(err)
		assert.Equal("a", d.ID)
		assert.True(store.Equal(store.Map{"uid": store.String("u1"), "n": store.Number(1)}, d.Payload), "payload = %v", d.Payload)
		require.NotNil(d.ExpiresAt)
		assert.True(exp.Equal(*d.ExpiresAt))
		assert.Nil(d.Consumed)
	})

	t.Run("merge-overlays-top-level-fields", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		b, clock := open(t, fn)
		exp := clock.Now().Add(time.Hour)
		require.NoError(b.Merge(ctx, testNamespace, "a", store.Update{
			Payload:   store.Map{"a": store.String("1"), "b": store.String("2")},
			ExpiresAt: &exp,
		}))
		require.NoError(b.Update(ctx, testNamespace, "a", store.Update{Consumed: int64Ptr(42)}))
		require.NoError(b.Merge(ctx, testNamespace, "a", store.Update{
			Payload: store.Map{"a": store.String("3")},
		}))
		d, err := b.Get(ctx, testNamespace, "a")
		require.NoError(err)
		assert.True(store.Equal(store.Map{"a": store.String("3")}, d.Payload), "payload = %v", d.Payload)
		require.NotNil(d.ExpiresAt)
		assert.True(exp.Equal(*d.ExpiresAt))
		require.NotNil(d.Consumed)
		assert.Equal(int64(42), *d.Consumed)
	})

	t.Run("update-missing", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		b, _ := open(t, fn)
		err := b.Update(ctx, testNamespace, "missing", store.Update{Consumed: int64Ptr(1)})
		require.Error(err)
		assert.True(errors.Is(err, store.ErrNotFound))
		_, err = b.Get(ctx, testNamespace, "missing")
		assert.True(errors.Is(err, store.ErrNotFound))
	})

	t.Run("consumed-at-zero", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		b, _ := open(t, fn)
		require.NoError(b.Merge(ctx, testNamespace, "a", store.Update{Payload: store.Map{}}))
		require.NoError(b.Update(ctx, testNamespace, "a", store.Update{Consumed: int64Ptr(0)}))
		d, err := b.Get(ctx, testNamespace, "a")
		require.NoError(err)
		require.NotNil(d.Consumed, "a zero consumption time is still a consumption")
		assert.Equal(int64(0), *d.Consumed)
	})

	t.Run("delete", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		b, _ := open(t, fn)
		require.NoError(b.Delete(ctx, testNamespace, "missing"))
		require.NoError(b.Merge(ctx, testNamespace, "a", store.Update{Payload: store.Map{}}))
		require.NoError(b.Merge(ctx, testNamespace, "b", store.Update{Payload: store.Map{}}))
		require.NoError(b.Delete(ctx, testNamespace, "a"))
		_, err := b.Get(ctx, testNamespace, "a")
		assert.True(errors.Is(err, store.ErrNotFound))
		_, err = b.Get(ctx, testNamespace, "b")
		assert.NoError(err)
	})

	t.Run("query", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		b, _ := open(t, fn)
		for _, id := range []string{"c", "a", "b", "d"} {
			grant := "G1"
			if id == "d" {
				grant = "G2"
			}
			require.NoError(b.Merge(ctx, testNamespace, id, store.Update{
				Payload: store.Map{"grantId": store.String(grant), "nested": store.Map{"k": store.String(id)}},
			}))
		}
		docs, err := b.Query(ctx, testNamespace, store.Query{Field: "payload.grantId", Equals: store.String("G1")})
		require.NoError(err)
		assert.Equal([]string{"a", "b", "c"}, ids(docs))

		docs, err = b.Query(ctx, testNamespace, store.Query{Field: "payload.grantId", Equals: store.String("G1"), Limit: 1})
		require.NoError(err)
		assert.Equal([]string{"a"}, ids(docs))

		docs, err = b.Query(ctx, testNamespace, store.Query{Field: "payload.nested.k", Equals: store.String("d")})
		require.NoError(err)
		assert.Equal([]string{"d"}, ids(docs))

		docs, err = b.Query(ctx, testNamespace, store.Query{Field: "payload.grantId", Equals: store.String("G3")})
		require.NoError(err)
		assert.Empty(docs)

		_, err = b.Query(ctx, testNamespace, store.Query{})
		assert.True(errors.Is(err, store.ErrInvalidParameter))
	})

	t.Run("delete-batch", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		b, _ := open(t, fn)
		for _, id := range []string{"a", "b", "c"} {
			require.NoError(b.Merge(ctx, testNamespace, id, store.Update{Payload: store.Map{}}))
		}
		require.NoError(b.DeleteBatch(ctx, testNamespace, []string{"a", "c", "missing"}))
		docs, err := b.List(ctx, testNamespace, "", 10)
		require.NoError(err)
		assert.Equal([]string{"b"}, ids(docs))
		require.NoError(b.DeleteBatch(ctx, testNamespace, nil))
	})

	t.Run("list-pages", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		b, _ := open(t, fn)
		for i := 0; i < 5; i++ {
			require.NoError(b.Merge(ctx, testNamespace, fmt.Sprintf("id-%d", i), store.Update{Payload: store.Map{}}))
		}
		page, err := b.List(ctx, testNamespace, "", 2)
		require.NoError(err)
		assert.Equal([]string{"id-0", "id-1"}, ids(page))
		page, err = b.List(ctx, testNamespace, "id-1", 2)
		require.NoError(err)
		assert.Equal([]string{"id-2", "id-3"}, ids(page))
		page, err = b.List(ctx, testNamespace, "id-3", 2)
		require.NoError(err)
		assert.Equal([]string{"id-4"}, ids(page))
		page, err = b.List(ctx, testNamespace, "id-4", 2)
		require.NoError(err)
		assert.Empty(page)

		_, err = b.List(ctx, testNamespace, "", 0)
		assert.True(errors.Is(err, store.ErrInvalidParameter))
	})

	t.Run("namespaces-are-isolated", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		b, _ := open(t, fn)
		require.NoError(b.Merge(ctx, "OIDC__Session", "a", store.Update{Payload: store.Map{"uid": store.String("u")}}))
		require.NoError(b.Merge(ctx, "OIDC__Session_2", "b", store.Update{Payload: store.Map{"uid": store.String("u")}}))
		_, err := b.Get(ctx, "OIDC__Session", "b")
		assert.True(errors.Is(err, store.ErrNotFound))
		docs, err := b.Query(ctx, "OIDC__Session", store.Query{Field: "payload.uid", Equals: store.String("u")})
		require.NoError(err)
		assert.Equal([]string{"a"}, ids(docs))
		docs, err = b.List(ctx, "OIDC__Session", "", 10)
		require.NoError(err)
		assert.Equal([]string{"a"}, ids(docs))
	})

	t.Run("expired-documents-are-hidden", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		b, clock := open(t, fn)
		require.NoError(b.Merge(ctx, testNamespace, "short", store.Update{
			Payload:   store.Map{"uid": store.String("u")},
			ExpiresAt: timePtr(clock.Now().Add(time.Minute)),
		}))
		require.NoError(b.Merge(ctx, testNamespace, "forever", store.Update{
			Payload: store.Map{"uid": store.String("u")},
		}))
		clock.Advance(2 * time.Minute)

		_, err := b.Get(ctx, testNamespace, "short")
		assert.True(errors.Is(err, store.ErrNotFound))
		docs, err := b.Query(ctx, testNamespace, store.Query{Field: "payload.uid", Equals: store.String("u")})
		require.NoError(err)
		assert.Equal([]string{"forever"}, ids(docs))
		docs, err = b.List(ctx, testNamespace, "", 10)
		require.NoError(err)
		assert.Equal([]string{"forever"}, ids(docs))

		err = b.Update(ctx, testNamespace, "short", store.Update{Consumed: int64Ptr(1)})
		assert.True(errors.Is(err, store.ErrNotFound))

		// merging into an expired document starts a new one
		require.NoError(b.Merge(ctx, testNamespace, "short", store.Update{Payload: store.Map{"v": store.Number(2)}}))
		d, err := b.Get(ctx, testNamespace, "short")
		require.NoError(err)
		assert.Nil(d.ExpiresAt)
		assert.True(store.Equal(store.Map{"v": store.Number(2)}, d.Payload))
	})

	t.Run("returned-documents-are-copies", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		b, _ := open(t, fn)
		p := store.Map{"nested": store.Map{"k": store.String("v")}}
		require.NoError(b.Merge(ctx, testNamespace, "a", store.Update{Payload: p}))
		p["nested"].(store.Map)["k"] = store.String("changed")

		d, err := b.Get(ctx, testNamespace, "a")
		require.NoError(err)
		d.Payload["nested"].(store.Map)["k"] = store.String("changed again")

		d, err = b.Get(ctx, testNamespace, "a")
		require.NoError(err)
		assert.True(store.Equal(store.Map{"nested": store.Map{"k": store.String("v")}}, d.Payload), "payload = %v", d.Payload)
	})

	t.Run("cancelled-context", func(t *testing.T) {
		assert := assert.New(t)
		b, _ := open(t, fn)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := b.Get(cctx, testNamespace, "a")
		assert.True(errors.Is(err, context.Canceled))
		err = b.Merge(cctx, testNamespace, "a", store.Update{Payload: store.Map{}})
		assert.True(errors.Is(err, context.Canceled))
	})

	t.Run("closed", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		b, _ := open(t, fn)
		require.NoError(b.Close())
		_, err := b.Get(ctx, testNamespace, "a")
		assert.True(errors.Is(err, store.ErrClosed), "got %v", err)
		assert.True(errors.Is(b.Close(), store.ErrClosed))
	})
}

func ids(docs []*store.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out
}
