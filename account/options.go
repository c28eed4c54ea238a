// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package account

import "github.com/hashicorp/go-hclog"

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

type options struct {
	withAccounts []*Account
	withLogger   hclog.Logger
}

func getOpts(opt ...Option) options {
	opts := options{
		withLogger: hclog.NewNullLogger(),
	}
	for _, o := range opt {
		if o == nil {
			continue
		}
		o(&opts)
	}
	return opts
}

// WithSeedAccounts adds the development accounts test1 and test2.
func WithSeedAccounts() Option {
	return func(o interface{}) {
		if v, ok := o.(*options); ok {
			v.withAccounts = append(v.withAccounts, seedAccounts()...)
		}
	}
}

// WithLogger provides an optional logger
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if v, ok := o.(*options); ok && l != nil {
			v.withLogger = l
		}
	}
}

func seedAccounts() []*Account {
	return []*Account{
		{
			ID: "test1",
			Profile: &Profile{
				Address:       "address1",
				Birthdate:     "1987-10-16",
				Email:         "test1@email.com",
				EmailVerified: true,
				FamilyName:    "Robot",
				GivenName:     "Name1",
				Name:          "Abc",
				PhoneNumber:   "88888888888",
			},
		},
		{
			ID: "test2",
			Profile: &Profile{
				Address:       "address2",
				Birthdate:     "1995-01-23",
				Email:         "test2@email.com",
				EmailVerified: false,
				FamilyName:    "Robot",
				GivenName:     "Name2",
				Name:          "Def",
				PhoneNumber:   "99999999999",
			},
		},
	}
}
