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
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bufbuild/dnscache/event"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrConfigConflict is returned (wrapped) by [Manager.GetCache] when a
	// cache with the same name but a different config already exists.
	ErrConfigConflict = errors.New("conflicting DNS cache config")
	// ErrManagerClosed is returned by [Manager.GetCache] after the manager
	// is closed.
	ErrManagerClosed = errors.New("DNS cache manager is closed")
)

// Manager is a registry of caches, keyed by name, which all share the same
// main and worker dispatchers. Closing a cache waits on the main
// dispatcher, so neither [Manager.Close] nor [CacheHandle.Close] may be
// called from it.
type Manager struct {
	main    *event.Dispatcher
	workers []*event.Dispatcher
	options []Option

	mu sync.Mutex
	// +checklocks:mu
	caches map[string]*managedCache
	// +checklocks:mu
	closed bool
}

type managedCache struct {
	cache *Cache
	refs  int // guarded by Manager.mu
}

// NewManager creates a manager. The given options apply to every cache it
// creates.
func NewManager(main *event.Dispatcher, workers []*event.Dispatcher, options ...Option) *Manager {
	return &Manager{
		main:    main,
		workers: workers,
		options: options,
		caches:  map[string]*managedCache{},
	}
}

// GetCache returns a handle to the cache with the given config's name,
// creating the cache if necessary. If the cache already exists, its config
// must equal the given one after defaults are applied, or else an error
// wrapping [ErrConfigConflict] is returned.
//
// The cache is closed once every handle to it is closed.
func (m *Manager) GetCache(config Config) (*CacheHandle, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config = config.WithDefaults()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrManagerClosed
	}
	if entry, ok := m.caches[config.Name]; ok {
		if existing := entry.cache.Config(); existing != config {
			return nil, fmt.Errorf("%w: config specified DNS cache %q with different settings: %s",
				ErrConfigConflict, config.Name, existing.diff(config))
		}
		entry.refs++
		return &CacheHandle{manager: m, entry: entry}, nil
	}
	cache, err := New(m.main, m.workers, config, m.options...)
	if err != nil {
		return nil, err
	}
	entry := &managedCache{cache: cache, refs: 1}
	m.caches[config.Name] = entry
	return &CacheHandle{manager: m, entry: entry}, nil
}

// Close closes every cache created by the manager, regardless of any open
// handles. GetCache fails after Close. Like [Cache.Close], it must not be
// called from the main dispatcher, including from update callbacks.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	caches := m.caches
	m.caches = nil
	m.mu.Unlock()

	grp, _ := errgroup.WithContext(context.Background())
	for _, entry := range caches {
		grp.Go(entry.cache.Close)
	}
	return grp.Wait()
}

func (m *Manager) release(entry *managedCache) error {
	m.mu.Lock()
	entry.refs--
	last := entry.refs == 0 && m.caches[entry.cache.Config().Name] == entry
	if last {
		delete(m.caches, entry.cache.Config().Name)
	}
	m.mu.Unlock()
	if !last {
		return nil
	}
	return entry.cache.Close()
}

// CacheHandle is a reference to a cache held by a [Manager].
type CacheHandle struct {
	manager *Manager
	entry   *managedCache
	closed  atomic.Bool
}

// Cache returns the referenced cache.
func (h *CacheHandle) Cache() *Cache {
	return h.entry.cache
}

// Close releases the reference. If it was the last one, the cache is
// closed and its name becomes available for a new cache. Calling Close
// more than once has no further effect.
//
// Closing the last reference blocks on the main dispatcher, so it
// deadlocks if done from the main dispatcher, such as from an
// [UpdateCallbacks] method. Close from another goroutine instead.
func (h *CacheHandle) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	return h.manager.release(h.entry)
}
