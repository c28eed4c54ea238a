// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hashicorp/capstore/store"
	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v2"
)

var (
	recordTypeFlag = &cli.StringFlag{
		Name:     "record-type",
		Aliases:  []string{"t"},
		Usage:    "record type, for example Session or AccessToken",
		Required: true,
	}
	idFlag = &cli.StringFlag{
		Name:  "id",
		Usage: "record id",
	}
	idsFlag = &cli.StringSliceFlag{
		Name:     "id",
		Usage:    "record id (may be repeated)",
		Required: true,
	}
	payloadFlag = &cli.StringFlag{
		Name:  "payload",
		Usage: "record payload as a JSON object",
		Value: "{}",
	}
	expiresInFlag = &cli.DurationFlag{
		Name:  "expires-in",
		Usage: "expire the record after this long; zero never expires",
	}
	userCodeFlag = &cli.StringFlag{
		Name:  "user-code",
		Usage: "find by payload.userCode",
	}
	uidFlag = &cli.StringFlag{
		Name:  "uid",
		Usage: "find by payload.uid",
	}
	grantIDFlag = &cli.StringFlag{
		Name:     "grant-id",
		Usage:    "grant whose records are revoked",
		Required: true,
	}
	sweepRecordTypesFlag = &cli.StringSliceFlag{
		Name:  "record-type",
		Usage: "record type to empty (may be repeated); defaults to the configured list",
	}
)

var errNotFound = errors.New("not found")

var commandSweep = &cli.Command{
	Name:  "sweep",
	Usage: "delete every record of the given record types",
	Description: `
Empties whole record types to give a development store a clean state.
The sweep is refused when the environment is production.`,
	Flags: []cli.Flag{sweepRecordTypesFlag},
	Action: func(ctx *cli.Context) error {
		rt, err := setup(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()
		if rt.conf.IsProduction() {
			return fmt.Errorf("sweep: %w", store.ErrProductionSweep)
		}
		recordTypes := ctx.StringSlice(sweepRecordTypesFlag.Name)
		if len(recordTypes) == 0 {
			recordTypes = rt.conf.SweepRecordTypes
		}
		s, err := store.NewSweeper(rt.backend, rt.conf.SweepOptions(rt.logger.Named("sweep"))...)
		if err != nil {
			return err
		}
		n, err := s.Sweep(ctx.Context, recordTypes...)
		fmt.Fprintf(ctx.App.Writer, "deleted %d records\n", n)
		return err
	},
}

var commandUpsert = &cli.Command{
	Name:  "upsert",
	Usage: "store a record, merging it into an existing one",
	Flags: []cli.Flag{recordTypeFlag, idFlag, payloadFlag, expiresInFlag},
	Action: func(ctx *cli.Context) error {
		var payload store.Map
		if err := json.Unmarshal([]byte(ctx.String(payloadFlag.Name)), &payload); err != nil {
			return fmt.Errorf("upsert: invalid payload: %w", err)
		}
		return withAdapter(ctx, func(a *store.Adapter) error {
			return a.Upsert(ctx.Context, ctx.String(idFlag.Name), payload, ctx.Duration(expiresInFlag.Name))
		})
	},
}

var commandFind = &cli.Command{
	Name:  "find",
	Usage: "print a record's payload",
	Description: `
Exactly one of --id, --user-code and --uid must be given.  Consumed
records are reported as not found.`,
	Flags: []cli.Flag{recordTypeFlag, idFlag, userCodeFlag, uidFlag},
	Action: func(ctx *cli.Context) error {
		set := 0
		for _, f := range []string{idFlag.Name, userCodeFlag.Name, uidFlag.Name} {
			if ctx.IsSet(f) {
				set++
			}
		}
		if set != 1 {
			return fmt.Errorf("find: exactly one of --id, --user-code and --uid is required: %w", store.ErrInvalidParameter)
		}
		return withAdapter(ctx, func(a *store.Adapter) error {
			var p store.Map
			var err error
			switch {
			case ctx.IsSet(idFlag.Name):
				p, err = a.Find(ctx.Context, ctx.String(idFlag.Name))
			case ctx.IsSet(userCodeFlag.Name):
				p, err = a.FindByUserCode(ctx.Context, ctx.String(userCodeFlag.Name))
			default:
				p, err = a.FindByUID(ctx.Context, ctx.String(uidFlag.Name))
			}
			if err != nil {
				return err
			}
			if p == nil {
				return fmt.Errorf("find: %s: %w", a.Namespace(), errNotFound)
			}
			enc := json.NewEncoder(ctx.App.Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		})
	},
}

var commandConsume = &cli.Command{
	Name:  "consume",
	Usage: "mark records as consumed",
	Flags: []cli.Flag{recordTypeFlag, idsFlag},
	Action: func(ctx *cli.Context) error {
		return withAdapter(ctx, func(a *store.Adapter) error {
			return eachID(ctx, a.Consume)
		})
	},
}

var commandDestroy = &cli.Command{
	Name:  "destroy",
	Usage: "delete records",
	Flags: []cli.Flag{recordTypeFlag, idsFlag},
	Action: func(ctx *cli.Context) error {
		return withAdapter(ctx, func(a *store.Adapter) error {
			return eachID(ctx, a.Destroy)
		})
	},
}

var commandRevoke = &cli.Command{
	Name:  "revoke",
	Usage: "delete every record of a grant",
	Flags: []cli.Flag{recordTypeFlag, grantIDFlag},
	Action: func(ctx *cli.Context) error {
		return withAdapter(ctx, func(a *store.Adapter) error {
			return a.RevokeByGrantID(ctx.Context, ctx.String(grantIDFlag.Name))
		})
	},
}

var commandAccounts = &cli.Command{
	Name:  "accounts",
	Usage: "print the claims of the development accounts",
	Action: func(ctx *cli.Context) error {
		rt, err := setup(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()
		enc := json.NewEncoder(ctx.App.Writer)
		for _, a := range rt.accounts.Accounts() {
			if err := enc.Encode(a.Claims("userinfo", nil)); err != nil {
				return err
			}
		}
		return nil
	},
}

func withAdapter(ctx *cli.Context, fn func(*store.Adapter) error) error {
	rt, err := setup(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	a, err := rt.registry.Adapter(ctx.String(recordTypeFlag.Name))
	if err != nil {
		return err
	}
	return fn(a)
}

// eachID applies fn to every --id, reporting all failures.
func eachID(ctx *cli.Context, fn func(ctx context.Context, id string) error) error {
	var retErr *multierror.Error
	for _, id := range ctx.StringSlice(idsFlag.Name) {
		if err := fn(ctx.Context, id); err != nil {
			retErr = multierror.Append(retErr, fmt.Errorf("%s: %w", id, err))
		}
	}
	return retErr.ErrorOrNil()
}
