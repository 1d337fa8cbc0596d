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

// Package event provides a minimal event loop, the [Dispatcher], which runs
// posted functions serially on a dedicated goroutine, along with one-shot
// timers whose callbacks are delivered on that same goroutine.
//
// The DNS cache uses one dispatcher as its coordinating loop, which owns all
// resolution state and timers, and one dispatcher per worker, onto which
// snapshot updates and load completions are posted. Handing work from one
// loop to another is always done with [Dispatcher.Post], never by calling
// into another loop's state directly.
package event
