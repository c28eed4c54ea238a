// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package account

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	t.Run("empty", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s := NewStore()
		assert.Empty(s.Accounts())
		a, err := s.FindAccount(ctx, "test1")
		require.NoError(err)
		assert.Nil(a)
	})
	t.Run("WithSeedAccounts", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s := NewStore(WithSeedAccounts())
		accounts := s.Accounts()
		require.Len(accounts, 2)
		assert.Equal("test1", accounts[0].ID)
		assert.Equal("test2", accounts[1].ID)
		a, err := s.FindAccount(ctx, "test2")
		require.NoError(err)
		require.NotNil(a)
		assert.Equal("test2@email.com", a.Profile.Email)
	})
	t.Run("stores-are-independent", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s1, s2 := NewStore(), NewStore()
		_, err := s1.FindByLogin(ctx, "alice")
		require.NoError(err)
		a, err := s2.FindAccount(ctx, "alice")
		require.NoError(err)
		assert.Nil(a)
	})
}

func TestStore_FindByLogin(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	s := NewStore()
	a1, err := s.FindByLogin(ctx, "alice")
	require.NoError(err)
	assert.Equal("alice", a1.ID)
	assert.Nil(a1.Profile)

	a2, err := s.FindByLogin(ctx, "alice")
	require.NoError(err)
	assert.Same(a1, a2)

	found, err := s.FindAccount(ctx, "alice")
	require.NoError(err)
	assert.Same(a1, found)

	_, err = s.FindByLogin(ctx, "")
	assert.True(errors.Is(err, ErrInvalidParameter))
}

func TestStore_FindByFederated(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	s := NewStore()
	claims := Profile{Subject: "1234", Email: "fed@example.com", EmailVerified: true, Name: "Fed"}
	a, err := s.FindByFederated(ctx, "google", claims)
	require.NoError(err)
	assert.Equal("google.1234", a.ID)
	assert.Equal("fed@example.com", a.Profile.Email)

	again, err := s.FindByFederated(ctx, "google", Profile{Subject: "1234", Email: "changed@example.com"})
	require.NoError(err)
	assert.Same(a, again)
	assert.Equal("fed@example.com", again.Profile.Email)

	_, err = s.FindByFederated(ctx, "", claims)
	assert.True(errors.Is(err, ErrInvalidParameter))
	_, err = s.FindByFederated(ctx, "google", Profile{})
	assert.True(errors.Is(err, ErrInvalidParameter))
}

func TestStore_Add(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	s := NewStore()
	a, err := s.Add("", &Profile{Name: "generated"})
	require.NoError(err)
	assert.NotEmpty(a.ID)
	found, err := s.FindAccount(ctx, a.ID)
	require.NoError(err)
	assert.Same(a, found)

	b, err := s.Add("fixed", nil)
	require.NoError(err)
	assert.Equal("fixed", b.ID)
}

func TestAccount_Claims(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		account *Account
		want    Claims
	}{
		{
			name:    "no-profile",
			account: &Account{ID: "anon"},
			want: Claims{
				"sub":            "anon",
				"email":          "none@email.com",
				"email_verified": false,
				"family_name":    "fn",
				"given_name":     "gv",
				"name":           "name",
			},
		},
		{
			name:    "profile",
			account: seedAccounts()[0],
			want: Claims{
				"sub":            "test1",
				"email":          "test1@email.com",
				"email_verified": true,
				"family_name":    "Robot",
				"given_name":     "Name1",
				"name":           "Abc",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.account.Claims("id_token", []string{"openid", "email"}))
		})
	}
}
