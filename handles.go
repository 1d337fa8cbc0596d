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
	"slices"
	"sync"
	"sync/atomic"
)

// LoadCallbacks is notified when a load that missed the cache is done.
type LoadCallbacks interface {
	// OnLoadComplete is called on the worker's dispatcher once resolution
	// of the host finished. Resolution may have failed, in which case the
	// host is still absent from [Worker.Host].
	OnLoadComplete()
}

// LoadCallbacksFunc is an adapter that allows a function to be used as
// LoadCallbacks.
type LoadCallbacksFunc func()

// OnLoadComplete implements LoadCallbacks.
func (f LoadCallbacksFunc) OnLoadComplete() {
	f()
}

// UpdateCallbacks is notified of every change to the hosts in a cache.
// Methods are called on the cache's main dispatcher.
type UpdateCallbacks interface {
	// OnHostAddOrUpdate is called when a host is resolved for the first
	// time, or resolves to a different address than before.
	OnHostAddOrUpdate(host string, info *HostInfo)
	// OnHostRemove is called when a host is evicted for being unused.
	OnHostRemove(host string)
}

const (
	loadPending int32 = iota
	loadCompleted
	loadReleased
)

// LoadHandle represents a load that is waiting for resolution.
type LoadHandle struct {
	worker    *Worker
	host      string
	callbacks LoadCallbacks
	state     atomic.Int32
}

// Release cancels the load. Its callback will not be called after Release
// returns. Releasing a load that already completed does nothing. It is
// safe to call Release more than once, on a nil handle, or after the cache
// is closed.
func (h *LoadHandle) Release() {
	if h == nil {
		return
	}
	if h.state.CompareAndSwap(loadPending, loadReleased) {
		h.worker.removePending(h)
	}
}

func (h *LoadHandle) complete() {
	if h.state.CompareAndSwap(loadPending, loadCompleted) {
		h.callbacks.OnLoadComplete()
	}
}

// UpdateCallbacksHandle represents a registered UpdateCallbacks.
type UpdateCallbacksHandle struct {
	list *subscriberList
	id   uint64
}

// Release unregisters the callbacks. It is safe to call Release more than
// once, on a nil handle, or after the cache is closed.
func (h *UpdateCallbacksHandle) Release() {
	if h == nil {
		return
	}
	h.list.remove(h.id)
}

type subscriber struct {
	id        uint64
	callbacks UpdateCallbacks
	released  *atomic.Bool
}

// subscriberList holds update callbacks in registration order. Entries are
// addressed by id, so handles never point into the list itself.
type subscriberList struct {
	mu sync.Mutex
	// +checklocks:mu
	nextID uint64
	// +checklocks:mu
	entries []subscriber
}

func (l *subscriberList) add(callbacks UpdateCallbacks) *UpdateCallbacksHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	l.entries = append(l.entries, subscriber{
		id:        l.nextID,
		callbacks: callbacks,
		released:  &atomic.Bool{},
	})
	return &UpdateCallbacksHandle{list: l, id: l.nextID}
}

func (l *subscriberList) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = slices.DeleteFunc(l.entries, func(entry subscriber) bool {
		if entry.id == id {
			entry.released.Store(true)
			return true
		}
		return false
	})
}

func (l *subscriberList) clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, entry := range l.entries {
		entry.released.Store(true)
	}
	l.entries = nil
}

// each calls fn for every registered subscriber. A subscriber released
// while the loop runs, even by an earlier fn, is skipped.
func (l *subscriberList) each(fn func(UpdateCallbacks)) {
	l.mu.Lock()
	entries := slices.Clone(l.entries)
	l.mu.Unlock()
	for _, entry := range entries {
		if !entry.released.Load() {
			fn(entry.callbacks)
		}
	}
}
