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

package dnscache

import (
	"net"

	"github.com/bufbuild/dnscache/resolver"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option is an option used to customize the behavior of a cache. Options
// given to [NewManager] apply to every cache the manager creates.
type Option interface {
	apply(*cacheOptions)
}

// WithResolver configures the resolver used to look up hosts. If no
// WithResolver option is provided, a resolver backed by
// [net.DefaultResolver] is used.
func WithResolver(res resolver.Resolver) Option {
	return optionFunc(func(opts *cacheOptions) {
		opts.resolver = res
	})
}

// WithLogger configures the logger used by the cache. If no WithLogger
// option is provided, or the logger is nil, nothing is logged.
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(opts *cacheOptions) {
		opts.logger = logger
	})
}

// WithMetrics registers the cache's metrics with the given registerer.
// Every metric carries a "cache" label with the cache name. The metrics
// are unregistered when the cache is closed.
//
// If no WithMetrics option is provided, no metrics are recorded.
func WithMetrics(registerer prometheus.Registerer) Option {
	return optionFunc(func(opts *cacheOptions) {
		opts.registerer = registerer
	})
}

type optionFunc func(*cacheOptions)

func (f optionFunc) apply(opts *cacheOptions) {
	f(opts)
}

type cacheOptions struct {
	resolver   resolver.Resolver
	logger     *zap.Logger
	registerer prometheus.Registerer
}

func newCacheOptions(options []Option) cacheOptions {
	var opts cacheOptions
	for _, opt := range options {
		opt.apply(&opts)
	}
	if opts.resolver == nil {
		opts.resolver = resolver.NewNetResolver(net.DefaultResolver)
	}
	if opts.logger == nil {
		opts.logger = zap.NewNop()
	}
	return opts
}
