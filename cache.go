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
	"context"
	"errors"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bufbuild/dnscache/event"
	"github.com/bufbuild/dnscache/internal"
	"github.com/bufbuild/dnscache/resolver"
	"go.uber.org/zap"
)

// Cache is a DNS cache shared by a set of worker dispatchers. All
// resolution, refresh, and eviction happens on the main dispatcher. Each
// worker reads its own snapshot of the resolved hosts; see [Worker].
type Cache struct {
	config   Config
	main     *event.Dispatcher
	clock    internal.Clock
	epoch    time.Time // base of every host's last-used offset
	resolver resolver.Resolver
	logger   *zap.Logger
	metrics  *cacheMetrics
	workers  []*Worker

	subscribers subscriberList
	closed      atomic.Bool
	closeOnce   sync.Once

	// Only accessed on the main dispatcher. Set to nil on close.
	hosts       map[string]*primaryHost
	lastQueryID uint64
}

// New creates a cache which does its bookkeeping on main and serves the
// given worker dispatchers. The cache does not take ownership of any of
// the dispatchers.
func New(main *event.Dispatcher, workers []*event.Dispatcher, config Config, options ...Option) (*Cache, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config = config.WithDefaults()
	opts := newCacheOptions(options)
	metrics, err := newCacheMetrics(opts.registerer, config.Name)
	if err != nil {
		return nil, err
	}
	cache := &Cache{
		config:   config,
		main:     main,
		clock:    main.Clock(),
		epoch:    main.Clock().Now(),
		resolver: opts.resolver,
		logger:   opts.logger.Named("dnscache").With(zap.String("cache", config.Name)),
		metrics:  metrics,
		hosts:    map[string]*primaryHost{},
	}
	cache.workers = make([]*Worker, len(workers))
	for i, dispatcher := range workers {
		cache.workers[i] = newWorker(cache, i, dispatcher)
	}
	cache.logger.Info("created DNS cache",
		zap.Stringer("dns_lookup_family", config.LookupFamily),
		zap.Duration("dns_refresh_rate", config.RefreshRate),
		zap.Duration("host_ttl", config.HostTTL),
		zap.Int("workers", len(workers)),
	)
	return cache, nil
}

// Config returns the cache's config, with defaults applied.
func (c *Cache) Config() Config {
	return c.config
}

// Worker returns the view for the i-th worker dispatcher given to New.
func (c *Cache) Worker(i int) *Worker {
	return c.workers[i]
}

// NumWorkers returns the number of worker dispatchers given to New.
func (c *Cache) NumWorkers() int {
	return len(c.workers)
}

// AddUpdateCallbacks registers callbacks that are notified of every host
// that is added, updated, or removed, until the returned handle is
// released. Callbacks run on the main dispatcher, in the order they were
// registered.
func (c *Cache) AddUpdateCallbacks(callbacks UpdateCallbacks) *UpdateCallbacksHandle {
	return c.subscribers.add(callbacks)
}

// Close tears down the cache. Outstanding queries are cancelled, and
// pending loads are dropped without their callbacks being called. Close
// does not close any dispatcher. It must not be called from the main
// dispatcher, including from an [UpdateCallbacks] method, since it waits
// for teardown to run there.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		err := c.main.Run(context.Background(), c.teardown)
		if errors.Is(err, event.ErrClosed) {
			// Nothing else can be running on main once it is closed.
			_ = c.main.Close()
			c.teardown()
		}
		for _, worker := range c.workers {
			worker.dropPending()
		}
		c.subscribers.clear()
		c.metrics.unregister()
		c.logger.Info("closed DNS cache")
	})
	return nil
}

func (c *Cache) teardown() {
	for _, primary := range c.hosts {
		if primary.query != nil {
			primary.query.Cancel()
		}
		primary.refreshTimer.Disable()
	}
	c.hosts = nil
}

// startCacheLoad runs on main for every load that missed a worker's
// snapshot.
func (c *Cache) startCacheLoad(worker *Worker, hostPort string, defaultPort uint16) {
	if c.hosts == nil {
		return
	}
	if primary, ok := c.hosts[hostPort]; ok {
		primary.lastUsed.touch()
		switch {
		case primary.resolving:
			c.logger.Debug("resolution already in flight", zap.String("host", hostPort))
		case primary.info != nil:
			// The worker missed a publish that is still on its way.
			c.postCompletePending(worker, hostPort)
		default:
			c.startResolve(hostPort, primary)
		}
		return
	}
	hostToResolve, port := parseHostPort(hostPort, defaultPort)
	primary := newPrimaryHost(c.clock, c.epoch, hostToResolve, port)
	primary.refreshTimer = c.main.NewTimer(func() {
		c.onReResolve(hostPort)
	})
	c.hosts[hostPort] = primary
	c.startResolve(hostPort, primary)
}

func (c *Cache) startResolve(hostPort string, primary *primaryHost) {
	c.lastQueryID++
	queryID := c.lastQueryID
	primary.resolving = true
	primary.queryID = queryID
	c.metrics.queryAttempt()
	c.logger.Debug("starting DNS resolution",
		zap.String("host", hostPort),
		zap.String("host_to_resolve", primary.hostToResolve),
	)
	// The completion is always posted, even when the resolver answers
	// inline, so it never runs inside Resolve.
	primary.query = c.resolver.Resolve(primary.hostToResolve, c.config.LookupFamily, func(addresses []netip.Addr) {
		c.main.Post(func() {
			c.finishResolve(hostPort, queryID, addresses)
		})
	})
}

func (c *Cache) finishResolve(hostPort string, queryID uint64, addresses []netip.Addr) {
	if c.hosts == nil {
		return
	}
	primary, ok := c.hosts[hostPort]
	if !ok || !primary.resolving || primary.queryID != queryID {
		return
	}
	primary.resolving = false
	primary.query = nil

	changed := false
	if len(addresses) == 0 {
		c.logger.Warn("DNS resolution returned no addresses", zap.String("host", hostPort))
	} else {
		address := netip.AddrPortFrom(addresses[0], primary.port)
		c.logger.Debug("DNS resolution complete",
			zap.String("host", hostPort),
			zap.Stringer("address", address),
			zap.Int("num_addresses", len(addresses)),
		)
		switch {
		case primary.info == nil:
			c.metrics.hostAdded()
			changed = true
		case primary.info.Address() != address:
			c.metrics.addressChanged()
			changed = true
		}
		if changed {
			primary.info = primary.newInfo(address)
		}
	}

	primary.refreshTimer.Enable(c.config.RefreshRate)
	if changed {
		c.logger.Info("host address added or updated",
			zap.String("host", hostPort),
			zap.Stringer("address", primary.info.Address()),
		)
		c.publish()
		info := primary.info
		c.subscribers.each(func(callbacks UpdateCallbacks) {
			callbacks.OnHostAddOrUpdate(hostPort, info)
		})
	}
	for _, worker := range c.workers {
		c.postCompletePending(worker, hostPort)
	}
}

func (c *Cache) onReResolve(hostPort string) {
	if c.hosts == nil {
		return
	}
	primary, ok := c.hosts[hostPort]
	if !ok || primary.resolving {
		return
	}
	idle := primary.lastUsed.idle()
	c.logger.Debug("checking host TTL",
		zap.String("host", hostPort),
		zap.Duration("idle", idle),
		zap.Duration("host_ttl", c.config.HostTTL),
	)
	if idle < c.config.HostTTL {
		c.startResolve(hostPort, primary)
		return
	}
	primary.refreshTimer.Disable()
	delete(c.hosts, hostPort)
	if primary.info == nil {
		// Never resolved, so never published.
		return
	}
	c.logger.Info("removing unused host", zap.String("host", hostPort))
	c.metrics.hostRemoved()
	c.publish()
	c.subscribers.each(func(callbacks UpdateCallbacks) {
		callbacks.OnHostRemove(hostPort)
	})
}

// publish sends a new snapshot of the resolved hosts to every worker.
func (c *Cache) publish() {
	hosts := make(hostMap, len(c.hosts))
	for hostPort, primary := range c.hosts {
		if primary.info != nil {
			hosts[hostPort] = primary.info
		}
	}
	c.metrics.setNumHosts(len(hosts))
	for _, worker := range c.workers {
		worker.dispatcher.Post(func() {
			worker.update(hosts)
		})
	}
}

func (c *Cache) postCompletePending(worker *Worker, hostPort string) {
	worker.dispatcher.Post(func() {
		worker.completePending(hostPort)
	})
}
