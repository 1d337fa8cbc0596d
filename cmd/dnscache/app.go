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
	"errors"
	"fmt"
	"net"

	"github.com/bufbuild/dnscache"
	"github.com/bufbuild/dnscache/event"
	"github.com/bufbuild/dnscache/resolver"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// app is everything a command needs to use DNS caches: the dispatchers,
// the resolver, and a manager that hands out caches from the config.
type app struct {
	config   *fileConfig
	logger   *zap.Logger
	registry *prometheus.Registry
	main     *event.Dispatcher
	workers  []*event.Dispatcher
	manager  *dnscache.Manager
}

func newApp(config *fileConfig, logger *zap.Logger) (*app, error) {
	res, err := newResolver(config.Resolver)
	if err != nil {
		return nil, fmt.Errorf("failed to init resolver: %w", err)
	}
	a := &app{
		config:   config,
		logger:   logger,
		registry: newMetricsReg(),
		main:     event.NewDispatcher("main"),
	}
	for i := range config.Workers {
		a.workers = append(a.workers, event.NewDispatcher(fmt.Sprintf("worker-%d", i)))
	}
	a.manager = dnscache.NewManager(a.main, a.workers,
		dnscache.WithResolver(res),
		dnscache.WithLogger(logger),
		dnscache.WithMetrics(a.registry),
	)
	return a, nil
}

func newResolver(config resolverConfig) (resolver.Resolver, error) {
	options := []resolver.Option{
		resolver.WithLookupTimeout(config.Timeout),
		resolver.WithNetwork(config.Network),
	}
	if len(config.Servers) == 0 {
		return resolver.NewNetResolver(net.DefaultResolver, options...), nil
	}
	return resolver.NewDNSClientResolver(config.Servers, options...)
}

func newMetricsReg() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())
	return reg
}

// getCache returns a handle to the named cache, or to the first configured
// cache if name is empty.
func (a *app) getCache(name string) (*dnscache.CacheHandle, error) {
	config, err := a.config.cache(name)
	if err != nil {
		return nil, err
	}
	return a.manager.GetCache(config)
}

func (a *app) Close() error {
	err := a.manager.Close()
	for _, worker := range a.workers {
		err = errors.Join(err, worker.Close())
	}
	return errors.Join(err, a.main.Close())
}
