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
	"sync"
	"testing"
	"time"

	"github.com/bufbuild/dnscache/internal/clocktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherRunsInOrder(t *testing.T) {
	t.Parallel()
	dispatcher := NewDispatcher("test")
	t.Cleanup(func() { require.NoError(t, dispatcher.Close()) })

	var got []int
	for i := range 100 {
		require.True(t, dispatcher.Post(func() {
			got = append(got, i)
		}))
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)
	require.NoError(t, dispatcher.Run(ctx, func() {}))

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestDispatcherConcurrentPost(t *testing.T) {
	t.Parallel()
	dispatcher := NewDispatcher("test")
	t.Cleanup(func() { require.NoError(t, dispatcher.Close()) })

	var count int
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				// count is only touched on the dispatcher goroutine.
				dispatcher.Post(func() { count++ })
			}
		}()
	}
	wg.Wait()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)
	var final int
	require.NoError(t, dispatcher.Run(ctx, func() { final = count }))
	assert.Equal(t, 800, final)
}

func TestDispatcherClose(t *testing.T) {
	t.Parallel()
	dispatcher := NewDispatcher("test")
	require.NoError(t, dispatcher.Close())
	// Closing twice is fine.
	require.NoError(t, dispatcher.Close())

	assert.False(t, dispatcher.Post(func() {
		t.Error("posted function must not run after close")
	}))
	err := dispatcher.Run(context.Background(), func() {})
	require.ErrorIs(t, err, ErrClosed)
}

func TestTimer(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	testClock := clocktest.NewFakeClock()
	dispatcher := NewDispatcher("test", WithClock(testClock))
	t.Cleanup(func() { require.NoError(t, dispatcher.Close()) })

	fired := make(chan struct{}, 1)
	var timer *Timer
	require.NoError(t, dispatcher.Run(ctx, func() {
		timer = dispatcher.NewTimer(func() { fired <- struct{}{} })
		assert.False(t, timer.Enabled())
		timer.Enable(time.Minute)
		assert.True(t, timer.Enabled())
	}))

	testClock.Advance(time.Minute - time.Nanosecond)
	mustNotFire(t, dispatcher, fired)

	testClock.Advance(time.Nanosecond)
	select {
	case <-fired:
	case <-ctx.Done():
		t.Fatal("expected timer to fire")
	}
	require.NoError(t, dispatcher.Run(ctx, func() {
		assert.False(t, timer.Enabled())
	}))
}

func TestTimerDisable(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	testClock := clocktest.NewFakeClock()
	dispatcher := NewDispatcher("test", WithClock(testClock))
	t.Cleanup(func() { require.NoError(t, dispatcher.Close()) })

	fired := make(chan struct{}, 1)
	var timer *Timer
	require.NoError(t, dispatcher.Run(ctx, func() {
		timer = dispatcher.NewTimer(func() { fired <- struct{}{} })
		timer.Enable(time.Minute)
		timer.Disable()
		assert.False(t, timer.Enabled())
	}))
	testClock.Advance(time.Hour)
	mustNotFire(t, dispatcher, fired)

	// Re-arming replaces the earlier deadline.
	require.NoError(t, dispatcher.Run(ctx, func() {
		timer.Enable(time.Minute)
		timer.Enable(2 * time.Minute)
	}))
	testClock.Advance(time.Minute)
	mustNotFire(t, dispatcher, fired)
	testClock.Advance(time.Minute)
	select {
	case <-fired:
	case <-ctx.Done():
		t.Fatal("expected timer to fire")
	}
}

func mustNotFire(t *testing.T, dispatcher *Dispatcher, fired <-chan struct{}) {
	t.Helper()
	// Give the clock's AfterFunc goroutine a moment of real time to post,
	// then drain the dispatcher.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, dispatcher.Run(context.Background(), func() {}))
	select {
	case <-fired:
		t.Fatal("expected timer not to fire")
	default:
	}
}
