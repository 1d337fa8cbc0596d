// Copyright 2023-2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bufbuild/dnscache"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type lookupFlags struct {
	cache       string
	defaultPort uint16
	timeout     time.Duration
}

func newLookupCommand(root *rootFlags) *cobra.Command {
	flags := new(lookupFlags)
	cmd := &cobra.Command{
		Use:   "lookup [-c config_file] [--cache name] host[:port]...",
		Short: "Resolve hosts through a DNS cache and print their addresses.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, logger, err := root.setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return runLookup(cmd.Context(), cmd, config, logger, flags, args)
		},
		DisableFlagsInUseLine: true,
	}
	fs := cmd.Flags()
	fs.StringVar(&flags.cache, "cache", "", "name of the cache to use (default: the first configured cache)")
	fs.Uint16VarP(&flags.defaultPort, "port", "p", 443, "port used for hosts given without one")
	fs.DurationVarP(&flags.timeout, "timeout", "t", 10*time.Second, "how long to wait for all hosts to resolve")
	return cmd
}

type lookupResult struct {
	index int
	info  *dnscache.HostInfo
}

func runLookup(
	ctx context.Context,
	cmd *cobra.Command,
	config *fileConfig,
	logger *zap.Logger,
	flags *lookupFlags,
	hosts []string,
) (retErr error) {
	app, err := newApp(config, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil && retErr == nil {
			retErr = err
		}
	}()
	handle, err := app.getCache(flags.cache)
	if err != nil {
		return err
	}
	defer func() { _ = handle.Close() }()
	cache := handle.Cache()

	results := make(chan lookupResult, len(hosts))
	for i, host := range hosts {
		worker := cache.Worker(i % cache.NumWorkers())
		worker.Dispatcher().Post(func() {
			report := func() {
				info, _ := worker.Host(host)
				results <- lookupResult{index: i, info: info}
			}
			if worker.Load(host, flags.defaultPort, dnscache.LoadCallbacksFunc(report)) == nil {
				report()
			}
		})
	}

	ctx, cancel := context.WithTimeout(ctx, flags.timeout)
	defer cancel()
	resolved := make([]*dnscache.HostInfo, len(hosts))
	done := make([]bool, len(hosts))
	for range hosts {
		select {
		case result := <-results:
			resolved[result.index] = result.info
			done[result.index] = true
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}

	unresolved := 0
	out := cmd.OutOrStdout()
	for i, host := range hosts {
		switch {
		case !done[i]:
			unresolved++
			fmt.Fprintf(out, "%s -> timed out\n", host)
		case resolved[i] == nil:
			unresolved++
			fmt.Fprintf(out, "%s -> unresolved\n", host)
		default:
			fmt.Fprintf(out, "%s -> %s\n", host, resolved[i].Address())
		}
	}
	if unresolved > 0 {
		return fmt.Errorf("%d of %d hosts could not be resolved", unresolved, len(hosts))
	}
	return nil
}
