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

package event

import (
	"context"
	"errors"
	"sync"

	"github.com/bufbuild/dnscache/internal"
)

// ErrClosed is returned when work is submitted to a closed dispatcher.
var ErrClosed = errors.New("dispatcher is closed")

// Dispatcher is a single-goroutine event loop. Functions given to Post
// run one at a time, in the order they were posted, on the dispatcher's
// own goroutine. State that is only ever touched from posted functions
// therefore needs no further synchronization.
type Dispatcher struct {
	name  string
	clock internal.Clock

	wake chan struct{}
	done chan struct{}

	mu sync.Mutex
	// +checklocks:mu
	queue []func()
	// +checklocks:mu
	closed bool
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption interface {
	apply(*Dispatcher)
}

// WithClock sets the time source used by the dispatcher's timers. This is
// intended for tests, which use a fake clock to control when timers fire.
func WithClock(clock internal.Clock) DispatcherOption {
	return dispatcherOptionFunc(func(d *Dispatcher) {
		d.clock = clock
	})
}

// NewDispatcher creates a dispatcher and starts its goroutine. The name is
// only used for diagnostics.
func NewDispatcher(name string, options ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		name:  name,
		clock: internal.NewRealClock(),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	for _, opt := range options {
		opt.apply(d)
	}
	go d.loop()
	return d
}

type dispatcherOptionFunc func(*Dispatcher)

func (f dispatcherOptionFunc) apply(d *Dispatcher) {
	f(d)
}

// Name returns the name the dispatcher was created with.
func (d *Dispatcher) Name() string {
	return d.name
}

// Clock returns the time source used by the dispatcher's timers.
func (d *Dispatcher) Clock() internal.Clock {
	return d.clock
}

// Post queues fn to run on the dispatcher goroutine. It never blocks. It
// returns false, and fn will never run, if the dispatcher is closed.
func (d *Dispatcher) Post(fn func()) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	d.queue = append(d.queue, fn)
	d.mu.Unlock()
	select {
	case d.wake <- struct{}{}:
	default:
	}
	return true
}

// Run posts fn and waits for it to complete. It must not be called from
// the dispatcher goroutine itself, since that would deadlock.
func (d *Dispatcher) Run(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !d.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrClosed
	}
	select {
	case <-finished:
		return nil
	case <-d.done:
		// The loop may have exited with fn still queued.
		select {
		case <-finished:
			return nil
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the dispatcher. Functions that were queued but have not yet
// started are discarded. Close waits for the dispatcher goroutine to exit
// and must not be called from it.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	alreadyClosed := d.closed
	d.closed = true
	d.mu.Unlock()
	if !alreadyClosed {
		select {
		case d.wake <- struct{}{}:
		default:
		}
	}
	<-d.done
	return nil
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for range d.wake {
		for {
			d.mu.Lock()
			if d.closed {
				d.queue = nil
				d.mu.Unlock()
				return
			}
			if len(d.queue) == 0 {
				d.mu.Unlock()
				break
			}
			fn := d.queue[0]
			d.queue[0] = nil
			d.queue = d.queue[1:]
			d.mu.Unlock()
			fn()
		}
	}
}
