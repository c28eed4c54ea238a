// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Command capstore maintains the records of an identity provider's token
// store: it runs the development bootstrap sweep and lets an operator
// inspect, consume, destroy and revoke records.
package main

import (
	"fmt"
	"os"

	"github.com/hashicorp/capstore/account"
	"github.com/hashicorp/capstore/config"
	"github.com/hashicorp/capstore/store"
	"github.com/hashicorp/go-hclog"
	"github.com/urfave/cli/v2"
)

// Global flags.  When set they override the environment configuration.
var (
	envFlag = &cli.StringFlag{
		Name:  "env",
		Usage: "deployment environment; sweeps are refused in production",
	}
	backendFlag = &cli.StringFlag{
		Name:  "backend",
		Usage: "storage backend: memory or leveldb",
	}
	pathFlag = &cli.StringFlag{
		Name:  "path",
		Usage: "leveldb directory",
	}
	prefixFlag = &cli.StringFlag{
		Name:  "namespace-prefix",
		Usage: "prefix of every record type namespace",
	}
	logLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "trace, debug, info, warn or error",
	}
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "capstore",
		Usage: "maintain an identity provider's token store",
		Flags: []cli.Flag{
			envFlag,
			backendFlag,
			pathFlag,
			prefixFlag,
			logLevelFlag,
		},
		Commands: []*cli.Command{
			commandSweep,
			commandUpsert,
			commandFind,
			commandConsume,
			commandDestroy,
			commandRevoke,
			commandAccounts,
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runtime is what a command needs to reach the store.
type runtime struct {
	conf     *config.Config
	logger   hclog.Logger
	backend  store.Backend
	registry *store.Registry
	accounts *account.Store
}

// setup loads the configuration, applies flag overrides and opens the
// backend.  Callers must Close the runtime.
func setup(ctx *cli.Context) (*runtime, error) {
	conf, err := config.Load(func(k string) (string, bool) {
		v, ok := os.LookupEnv(k)
		if fv, set := flagOverride(ctx, k); set {
			return fv, true
		}
		return v, ok
	})
	if err != nil {
		return nil, err
	}
	logger := conf.Logger("capstore")
	b, err := conf.OpenBackend(logger.Named("backend"))
	if err != nil {
		return nil, err
	}
	r, err := store.NewRegistry(b, conf.StoreOptions(logger.Named("store"))...)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	return &runtime{
		conf:     conf,
		logger:   logger,
		backend:  b,
		registry: r,
		accounts: account.NewStore(account.WithSeedAccounts(), account.WithLogger(logger.Named("account"))),
	}, nil
}

func flagOverride(ctx *cli.Context, envVar string) (string, bool) {
	var f *cli.StringFlag
	switch envVar {
	case config.EnvEnvironment:
		f = envFlag
	case config.EnvBackend:
		f = backendFlag
	case config.EnvPath:
		f = pathFlag
	case config.EnvNamespacePrefix:
		f = prefixFlag
	case config.EnvLogLevel:
		f = logLevelFlag
	default:
		return "", false
	}
	if !ctx.IsSet(f.Name) {
		return "", false
	}
	return ctx.String(f.Name), true
}

// Close closes the backend.
func (r *runtime) Close() error {
	return r.backend.Close()
}
