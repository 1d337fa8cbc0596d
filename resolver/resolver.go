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

package resolver

import (
	"context"
	"net"
	"net/netip"
	"sync"
	"time"
)

const defaultLookupTimeout = 5 * time.Second

// Resolver is the single-shot name resolution collaborator used by the DNS
// cache.
type Resolver interface {
	// Resolve looks up the addresses of host, honoring the given address
	// family policy. The given onComplete callback is invoked exactly once
	// with the resolved addresses, unless the returned query is cancelled
	// first. An empty slice means resolution failed.
	//
	// The callback may be invoked on any goroutine, including inline, before
	// Resolve returns. In that case Resolve may return a nil Query.
	Resolve(host string, family LookupFamily, onComplete func([]netip.Addr)) Query
}

// Query is an outstanding resolution.
type Query interface {
	// Cancel abandons the query. Once Cancel returns, the query's completion
	// callback will not be invoked.
	Cancel()
}

// Func is an adapter that allows a function to be used as a Resolver.
type Func func(host string, family LookupFamily, onComplete func([]netip.Addr)) Query

// Resolve implements Resolver.
func (f Func) Resolve(host string, family LookupFamily, onComplete func([]netip.Addr)) Query {
	return f(host, family, onComplete)
}

// Option configures the resolvers created by this package.
type Option interface {
	apply(*resolverOptions)
}

// WithLookupTimeout bounds each lookup. If no WithLookupTimeout option is
// used, a default of 5 seconds applies.
func WithLookupTimeout(timeout time.Duration) Option {
	return optionFunc(func(opts *resolverOptions) {
		opts.timeout = timeout
	})
}

// WithNetwork selects the transport used to reach DNS servers by resolvers
// created with NewDNSClientResolver. It must be "udp" or "tcp"; the default
// is "udp". It has no effect on NewNetResolver.
func WithNetwork(network string) Option {
	return optionFunc(func(opts *resolverOptions) {
		opts.network = network
	})
}

type optionFunc func(*resolverOptions)

func (f optionFunc) apply(opts *resolverOptions) {
	f(opts)
}

type resolverOptions struct {
	timeout time.Duration
	network string
}

func newResolverOptions(options []Option) resolverOptions {
	var opts resolverOptions
	for _, opt := range options {
		opt.apply(&opts)
	}
	if opts.timeout <= 0 {
		opts.timeout = defaultLookupTimeout
	}
	if opts.network == "" {
		opts.network = "udp"
	}
	return opts
}

// NewNetResolver creates a resolver that uses a [net.Resolver]. Every query
// runs on its own goroutine.
func NewNetResolver(resolver *net.Resolver, options ...Option) Resolver {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &netResolver{
		resolver: resolver,
		opts:     newResolverOptions(options),
	}
}

type netResolver struct {
	resolver *net.Resolver
	opts     resolverOptions
}

func (r *netResolver) Resolve(host string, family LookupFamily, onComplete func([]netip.Addr)) Query {
	return startQuery(r.opts.timeout, onComplete, func(ctx context.Context) []netip.Addr {
		addresses, err := r.resolver.LookupNetIP(ctx, family.network(), host)
		if err != nil {
			return nil
		}
		return filterFamily(addresses, family)
	})
}

// asyncQuery runs a lookup on a background goroutine. The completion
// callback runs with mu held, so it never runs after Cancel returns.
type asyncQuery struct {
	cancel context.CancelFunc

	mu sync.Mutex
	// +checklocks:mu
	cancelled bool
}

func startQuery(
	timeout time.Duration,
	onComplete func([]netip.Addr),
	lookup func(ctx context.Context) []netip.Addr,
) *asyncQuery {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	query := &asyncQuery{cancel: cancel}
	go func() {
		defer cancel()
		addresses := lookup(ctx)
		query.mu.Lock()
		defer query.mu.Unlock()
		if query.cancelled {
			return
		}
		onComplete(addresses)
	}()
	return query
}

func (q *asyncQuery) Cancel() {
	q.mu.Lock()
	q.cancelled = true
	q.mu.Unlock()
	q.cancel()
}
