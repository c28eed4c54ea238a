// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package account provides the accounts an identity provider authenticates
// and the claims it releases about them.
package account

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/capstore/id"
	"github.com/hashicorp/go-hclog"
)

// Claims are the claims released about an account.
type Claims map[string]interface{}

// Profile is what is known about the person behind an account.
type Profile struct {
	Subject       string `json:"sub,omitempty"`
	Address       string `json:"address,omitempty"`
	Birthdate     string `json:"birthdate,omitempty"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	FamilyName    string `json:"family_name,omitempty"`
	GivenName     string `json:"given_name,omitempty"`
	Name          string `json:"name,omitempty"`
	PhoneNumber   string `json:"phone_number,omitempty"`
}

// Account is an account known to the identity provider.
type Account struct {
	ID      string
	Profile *Profile
}

// Claims returns the account's claims.  The sub claim is always present.
// Accounts without a profile get placeholder claims.  use is either
// "id_token" or "userinfo"; scope is the granted scope.  Neither narrows the
// claims, which the engine masks by scope itself.
func (a *Account) Claims(use string, scope []string) Claims {
	if a.Profile == nil {
		return Claims{
			"sub":            a.ID,
			"email":          "none@email.com",
			"email_verified": false,
			"family_name":    "fn",
			"given_name":     "gv",
			"name":           "name",
		}
	}
	return Claims{
		"sub":            a.ID,
		"email":          a.Profile.Email,
		"email_verified": a.Profile.EmailVerified,
		"family_name":    a.Profile.FamilyName,
		"given_name":     a.Profile.GivenName,
		"name":           a.Profile.Name,
	}
}

// Store holds accounts in memory, indexed by account id and by login.
type Store struct {
	m        sync.Mutex
	accounts map[string]*Account
	logins   map[string]*Account
	logger   hclog.Logger
}

// NewStore creates an account Store.
//
// Supported options: WithSeedAccounts, WithLogger
func NewStore(opt ...Option) *Store {
	opts := getOpts(opt...)
	s := &Store{
		accounts: map[string]*Account{},
		logins:   map[string]*Account{},
		logger:   opts.withLogger,
	}
	for _, a := range opts.withAccounts {
		s.accounts[a.ID] = a
	}
	return s
}

// Add registers an account, replacing any account with the same id.  An empty
// id is replaced by a generated one.
func (s *Store) Add(id string, p *Profile) (*Account, error) {
	s.m.Lock()
	defer s.m.Unlock()
	return s.add(id, p)
}

func (s *Store) add(accountID string, p *Profile) (*Account, error) {
	const op = "account.(Store).Add"
	if accountID == "" {
		var err error
		if accountID, err = id.New(""); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	a := &Account{ID: accountID, Profile: p}
	s.accounts[accountID] = a
	s.logger.Trace("added account", "account_id", accountID)
	return a, nil
}

// FindByLogin returns the account for the login, creating it on first use.
func (s *Store) FindByLogin(ctx context.Context, loginID string) (*Account, error) {
	const op = "account.(Store).FindByLogin"
	if loginID == "" {
		return nil, fmt.Errorf("%s: missing login: %w", op, ErrInvalidParameter)
	}
	return s.findOrCreateLogin(loginID, nil)
}

// FindByFederated returns the account for a subject of an upstream
// provider, creating it with the upstream claims on first use.
func (s *Store) FindByFederated(ctx context.Context, provider string, claims Profile) (*Account, error) {
	const op = "account.(Store).FindByFederated"
	switch {
	case provider == "":
		return nil, fmt.Errorf("%s: missing provider: %w", op, ErrInvalidParameter)
	case claims.Subject == "":
		return nil, fmt.Errorf("%s: missing subject: %w", op, ErrInvalidParameter)
	}
	return s.findOrCreateLogin(fmt.Sprintf("%s.%s", provider, claims.Subject), &claims)
}

func (s *Store) findOrCreateLogin(loginID string, p *Profile) (*Account, error) {
	s.m.Lock()
	defer s.m.Unlock()
	if a, ok := s.logins[loginID]; ok {
		return a, nil
	}
	a, err := s.add(loginID, p)
	if err != nil {
		return nil, err
	}
	s.logins[loginID] = a
	return a, nil
}

// FindAccount returns the account with the id, or nil when there is none.
func (s *Store) FindAccount(ctx context.Context, id string) (*Account, error) {
	s.m.Lock()
	defer s.m.Unlock()
	return s.accounts[id], nil
}

// Accounts returns every account ordered by id.
func (s *Store) Accounts() []*Account {
	s.m.Lock()
	defer s.m.Unlock()
	out := make([]*Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
