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
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/bufbuild/dnscache/event"
	"go.uber.org/zap"
)

type hostMap = map[string]*HostInfo

// Worker is a cache's view for one worker dispatcher. It holds a snapshot
// of the resolved hosts, which the cache replaces wholesale whenever a
// host is added, updated, or removed. Reads never block.
type Worker struct {
	cache      *Cache
	index      int
	dispatcher *event.Dispatcher

	// Only ever replaced, never modified.
	hosts atomic.Pointer[hostMap]

	mu sync.Mutex
	// +checklocks:mu
	pending []*LoadHandle
}

func newWorker(cache *Cache, index int, dispatcher *event.Dispatcher) *Worker {
	w := &Worker{
		cache:      cache,
		index:      index,
		dispatcher: dispatcher,
	}
	empty := hostMap{}
	w.hosts.Store(&empty)
	return w
}

// Dispatcher returns the dispatcher on which this worker's load callbacks
// run.
func (w *Worker) Dispatcher() *event.Dispatcher {
	return w.dispatcher
}

// Load requests the address of hostPort, which is a host name with an
// optional port. If hostPort has no port, defaultPort is used.
//
// If the host is already resolved, Load marks it as used and returns nil.
// The caller can then get the address from [Worker.Host]. Otherwise Load
// returns a handle, and cb is called on the worker's dispatcher once
// resolution finishes. When Load is called from the worker's dispatcher,
// cb never runs before Load returns.
//
// Load returns nil, and never calls cb, once the cache is closed.
func (w *Worker) Load(hostPort string, defaultPort uint16, cb LoadCallbacks) *LoadHandle {
	if w.cache.closed.Load() {
		return nil
	}
	if info, ok := w.Host(hostPort); ok {
		w.cache.logger.Debug("cache hit", zap.String("host", hostPort), zap.Int("worker", w.index))
		info.Touch()
		return nil
	}
	w.cache.logger.Debug("cache miss, starting load", zap.String("host", hostPort), zap.Int("worker", w.index))
	handle := &LoadHandle{
		worker:    w,
		host:      hostPort,
		callbacks: cb,
	}
	if !w.addPending(handle) {
		return nil
	}
	if !w.cache.main.Post(func() {
		w.cache.startCacheLoad(w, hostPort, defaultPort)
	}) {
		handle.Release()
		return nil
	}
	return handle
}

// addPending queues handle for completion. It reports false, leaving
// nothing queued, if the cache closed in the meantime.
func (w *Worker) addPending(handle *LoadHandle) bool {
	w.mu.Lock()
	w.pending = append(w.pending, handle)
	w.mu.Unlock()
	// Close sets closed before dropping pending loads, so either it sees
	// this handle or we see closed.
	if w.cache.closed.Load() {
		handle.Release()
		return false
	}
	return true
}

// Host returns the resolved host for the given key, as passed to Load,
// from the current snapshot. It does not mark the host as used.
func (w *Worker) Host(hostPort string) (*HostInfo, bool) {
	info, ok := (*w.hosts.Load())[hostPort]
	return info, ok
}

// Hosts returns a copy of the current snapshot.
func (w *Worker) Hosts() map[string]*HostInfo {
	return maps.Clone(*w.hosts.Load())
}

func (w *Worker) update(hosts hostMap) {
	w.hosts.Store(&hosts)
}

func (w *Worker) removePending(handle *LoadHandle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = slices.DeleteFunc(w.pending, func(pending *LoadHandle) bool {
		return pending == handle
	})
}

// completePending runs on the worker's dispatcher. Callbacks run in the
// order the loads were made.
func (w *Worker) completePending(hostPort string) {
	if w.cache.closed.Load() {
		return
	}
	var ready []*LoadHandle
	w.mu.Lock()
	w.pending = slices.DeleteFunc(w.pending, func(pending *LoadHandle) bool {
		if pending.host == hostPort {
			ready = append(ready, pending)
			return true
		}
		return false
	})
	w.mu.Unlock()
	for _, handle := range ready {
		handle.complete()
	}
}

func (w *Worker) dropPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = nil
}
