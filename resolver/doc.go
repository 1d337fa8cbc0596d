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

// Package resolver provides the name resolution collaborator used by the
// DNS cache. Name resolution is the process of turning a host name into
// one or more IP addresses.
//
// It contains the core interface ([Resolver]) that can be implemented to
// plug a custom resolution strategy into the cache. A Resolver performs a
// single lookup per call and reports the result through a callback; the
// cache is responsible for caching, re-resolving, and expiring results.
//
// # Default Implementations
//
// This package contains two implementations. [NewNetResolver] uses a
// [net.Resolver], and so honors the system's resolver configuration.
// [NewDNSClientResolver] sends A and AAAA queries directly to a fixed list
// of DNS servers.
//
// # Address Families
//
// Every lookup is given a [LookupFamily], which controls which addresses
// are returned when a name has both A and AAAA records. For example, with
// [V4Preferred], only IPv4 addresses are returned if there are any, and
// IPv6 addresses are returned otherwise.
package resolver
