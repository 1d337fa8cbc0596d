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
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bufbuild/dnscache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type watchFlags struct {
	cache         string
	defaultPort   uint16
	touchInterval time.Duration
	metricsAddr   string
}

func newWatchCommand(root *rootFlags) *cobra.Command {
	flags := new(watchFlags)
	cmd := &cobra.Command{
		Use:   "watch [-c config_file] [--touch-interval d] host[:port]...",
		Short: "Load hosts into a DNS cache and report every change until interrupted.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, logger, err := root.setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if flags.metricsAddr != "" {
				config.MetricsAddr = flags.metricsAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd.OutOrStdout(), config, logger, flags, args)
		},
		DisableFlagsInUseLine: true,
	}
	fs := cmd.Flags()
	fs.StringVar(&flags.cache, "cache", "", "name of the cache to use (default: the first configured cache)")
	fs.Uint16VarP(&flags.defaultPort, "port", "p", 443, "port used for hosts given without one")
	fs.DurationVar(&flags.touchInterval, "touch-interval", 0,
		"if set, load the hosts again at this interval so that they are never evicted")
	fs.StringVar(&flags.metricsAddr, "metrics-addr", "", "address to serve /metrics on, overriding the config file")
	return cmd
}

func runWatch(
	ctx context.Context,
	out io.Writer,
	config *fileConfig,
	logger *zap.Logger,
	flags *watchFlags,
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

	updates := cache.AddUpdateCallbacks(&printingCallbacks{out: out})
	defer updates.Release()
	loadAll(cache, hosts, flags.defaultPort)

	grp, grpCtx := errgroup.WithContext(ctx)
	if config.MetricsAddr != "" {
		listener, err := net.Listen("tcp", config.MetricsAddr)
		if err != nil {
			return fmt.Errorf("failed to listen for metrics: %w", err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))
		server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		grp.Go(func() error {
			logger.Info("starting metrics http server", zap.Stringer("addr", listener.Addr()))
			if err := server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		grp.Go(func() error {
			<-grpCtx.Done()
			return server.Close()
		})
	}
	if flags.touchInterval > 0 {
		grp.Go(func() error {
			ticker := time.NewTicker(flags.touchInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					loadAll(cache, hosts, flags.defaultPort)
				case <-grpCtx.Done():
					return nil
				}
			}
		})
	}
	grp.Go(func() error {
		<-grpCtx.Done()
		return nil
	})
	return grp.Wait()
}

// loadAll loads every host, spread across the workers. Loads of hosts
// that are already cached just mark them as used.
func loadAll(cache *dnscache.Cache, hosts []string, defaultPort uint16) {
	for i, host := range hosts {
		worker := cache.Worker(i % cache.NumWorkers())
		worker.Dispatcher().Post(func() {
			worker.Load(host, defaultPort, dnscache.LoadCallbacksFunc(func() {}))
		})
	}
}

type printingCallbacks struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *printingCallbacks) OnHostAddOrUpdate(host string, info *dnscache.HostInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "+ %s -> %s\n", host, info.Address())
}

func (p *printingCallbacks) OnHostRemove(host string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "- %s\n", host)
}
