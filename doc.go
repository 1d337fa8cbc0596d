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

// Package dnscache provides a host name resolution cache for proxies,
// which need the address for a "host:port" on every connection attempt
// but should not issue a DNS lookup for each one.
//
// A [Cache] resolves hosts on demand through a [resolver.Resolver],
// re-resolves them on a fixed interval, and evicts hosts that go unused
// for longer than a TTL. It is shared by a set of worker dispatchers (see
// package [event]), each of which gets a [Worker]. A worker reads hosts
// from its own immutable snapshot, so lookups on the hot path take no
// locks. All resolution and bookkeeping happens on a single main
// dispatcher, which publishes a new snapshot to every worker whenever a
// host is added, updated, or removed.
//
// # Loading Hosts
//
// To get the address of a host, call [Worker.Load]. If the host is
// already in the worker's snapshot, Load returns nil and the address can be
// read with [Worker.Host]. Otherwise, Load returns a [LoadHandle] and calls
// back on the worker's dispatcher once resolution is done:
//
//	handle := worker.Load("example.com:443", 443, dnscache.LoadCallbacksFunc(func() {
//	    if info, ok := worker.Host("example.com:443"); ok {
//	        connect(info.Address())
//	    } else {
//	        fail()
//	    }
//	}))
//
// Many loads of the same host, from any number of workers, share a single
// DNS query. Releasing the handle cancels the load.
//
// # Managing Caches
//
// A [Manager] hands out caches by name, so that independent components
// which are configured with the same cache share it. Asking for an
// existing name with a different [Config] is an error.
package dnscache
