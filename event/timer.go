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
	"time"

	"github.com/bufbuild/dnscache/internal"
)

// Timer is a one-shot timer whose callback runs on a dispatcher goroutine.
//
// A Timer is owned by its dispatcher: Enable, Disable, and Enabled must
// only be called from functions running on that dispatcher.
type Timer struct {
	dispatcher *Dispatcher
	callback   func()

	timer internal.Timer
	// Incremented on every Enable and Disable, so that a fire which was
	// already posted for an earlier arming is recognized as stale.
	generation uint64
}

// NewTimer creates a disabled timer that runs cb on d when it fires.
func (d *Dispatcher) NewTimer(cb func()) *Timer {
	return &Timer{dispatcher: d, callback: cb}
}

// Enable arms the timer to fire after duration, replacing any previous
// arming.
func (t *Timer) Enable(duration time.Duration) {
	t.stop()
	t.generation++
	generation := t.generation
	t.timer = t.dispatcher.clock.AfterFunc(duration, func() {
		t.dispatcher.Post(func() {
			t.fire(generation)
		})
	})
}

// Disable disarms the timer. A fire that is already queued on the
// dispatcher will not invoke the callback.
func (t *Timer) Disable() {
	t.stop()
	t.generation++
}

// Enabled reports whether the timer is armed and has not fired yet.
func (t *Timer) Enabled() bool {
	return t.timer != nil
}

func (t *Timer) stop() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *Timer) fire(generation uint64) {
	if generation != t.generation || t.timer == nil {
		return
	}
	t.timer = nil
	t.callback()
}
