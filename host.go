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
	"net"
	"net/netip"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bufbuild/dnscache/event"
	"github.com/bufbuild/dnscache/internal"
	"github.com/bufbuild/dnscache/resolver"
)

// HostInfo is what is currently known about a resolved host. The address
// never changes; when a host resolves to a new address, a new HostInfo
// replaces the old one. Holders of the old HostInfo keep seeing the old
// address.
//
// All HostInfo values for a host share one last-used timestamp, so a touch
// through a stale HostInfo still keeps the host alive.
type HostInfo struct {
	address  netip.AddrPort
	lastUsed *lastUse
}

// Address returns the resolved address and port.
func (h *HostInfo) Address() netip.AddrPort {
	return h.address
}

// Touch marks the host as used now. It may be called from any goroutine.
func (h *HostInfo) Touch() {
	h.lastUsed.touch()
}

// LastUsed returns when the host was last used.
func (h *HostInfo) LastUsed() time.Time {
	return h.lastUsed.time()
}

// lastUse is a host's last-used time, stored as an offset from the cache's
// epoch. Offsets are taken with clock.Since, so they follow the monotonic
// clock and wall clock steps never affect idle times.
type lastUse struct {
	clock  internal.Clock
	epoch  time.Time
	offset atomic.Int64
}

func newLastUse(clock internal.Clock, epoch time.Time) *lastUse {
	l := &lastUse{clock: clock, epoch: epoch}
	l.touch()
	return l
}

func (l *lastUse) touch() {
	l.offset.Store(int64(l.clock.Since(l.epoch)))
}

func (l *lastUse) time() time.Time {
	return l.epoch.Add(time.Duration(l.offset.Load()))
}

// idle returns how long ago the host was last used.
func (l *lastUse) idle() time.Duration {
	return l.clock.Since(l.epoch) - time.Duration(l.offset.Load())
}

// primaryHost is the authoritative state for one host. It is only
// accessed from the cache's main dispatcher, except for lastUsed.
type primaryHost struct {
	hostToResolve string
	port          uint16
	lastUsed      *lastUse
	refreshTimer  *event.Timer

	// nil until the first successful resolve.
	info *HostInfo

	resolving bool
	queryID   uint64
	// May be nil while resolving, if the resolver had nothing to cancel.
	query resolver.Query
}

func newPrimaryHost(clock internal.Clock, epoch time.Time, hostToResolve string, port uint16) *primaryHost {
	return &primaryHost{
		hostToResolve: hostToResolve,
		port:          port,
		lastUsed:      newLastUse(clock, epoch),
	}
}

func (p *primaryHost) newInfo(address netip.AddrPort) *HostInfo {
	return &HostInfo{
		address:  address,
		lastUsed: p.lastUsed,
	}
}

// parseHostPort splits hostPort into the name to resolve and a port. If
// hostPort has no port, defaultPort is used. A port that is not a valid
// number stays part of the name, so "foo.com:abc" resolves "foo.com:abc"
// on the default port.
func parseHostPort(hostPort string, defaultPort uint16) (string, uint16) {
	host, portStr, err := net.SplitHostPort(hostPort)
	if err != nil {
		if strings.HasPrefix(hostPort, "[") && strings.HasSuffix(hostPort, "]") {
			return hostPort[1 : len(hostPort)-1], defaultPort
		}
		return hostPort, defaultPort
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return hostPort, defaultPort
	}
	return host, uint16(port)
}
