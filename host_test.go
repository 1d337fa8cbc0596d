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
	"net/netip"
	"testing"
	"time"

	"github.com/bufbuild/dnscache/internal"
	"github.com/bufbuild/dnscache/internal/clocktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHostPort(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name     string
		hostPort string
		wantHost string
		wantPort uint16
	}{
		{name: "no port", hostPort: "foo.com", wantHost: "foo.com", wantPort: 80},
		{name: "port", hostPort: "foo.com:8080", wantHost: "foo.com", wantPort: 8080},
		{name: "invalid port", hostPort: "foo.com:abc", wantHost: "foo.com:abc", wantPort: 80},
		{name: "port out of range", hostPort: "foo.com:65536", wantHost: "foo.com:65536", wantPort: 80},
		{name: "empty port", hostPort: "foo.com:", wantHost: "foo.com:", wantPort: 80},
		{name: "ipv4", hostPort: "10.0.0.1:443", wantHost: "10.0.0.1", wantPort: 443},
		{name: "bracketed ipv6", hostPort: "[::1]:443", wantHost: "::1", wantPort: 443},
		{name: "bracketed ipv6 without port", hostPort: "[::1]", wantHost: "::1", wantPort: 80},
		{name: "bare ipv6", hostPort: "fe80::1", wantHost: "fe80::1", wantPort: 80},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			host, port := parseHostPort(testCase.hostPort, 80)
			assert.Equal(t, testCase.wantHost, host)
			assert.Equal(t, testCase.wantPort, port)
		})
	}
}

func TestHostInfoSharesLastUsed(t *testing.T) {
	t.Parallel()
	clock := clocktest.NewFakeClock()
	epoch := clock.Now()
	clock.Advance(time.Second)
	start := clock.Now()
	primary := newPrimaryHost(clock, epoch, "foo.com", 80)
	assert.Equal(t, start.UnixNano(), primary.lastUsed.time().UnixNano())

	oldInfo := primary.newInfo(netip.MustParseAddrPort("10.0.0.1:80"))
	newInfo := primary.newInfo(netip.MustParseAddrPort("10.0.0.2:80"))

	clock.Advance(time.Minute)
	assert.Equal(t, time.Minute, primary.lastUsed.idle())
	oldInfo.Touch()
	assert.Equal(t, start.Add(time.Minute).UnixNano(), primary.lastUsed.time().UnixNano())
	assert.Equal(t, time.Duration(0), primary.lastUsed.idle())
	assert.Equal(t, primary.lastUsed.time(), newInfo.LastUsed())

	clock.Advance(time.Minute)
	primary.lastUsed.touch()
	assert.Equal(t, start.Add(2*time.Minute).UnixNano(), oldInfo.LastUsed().UnixNano())
	assert.Equal(t, "10.0.0.1:80", oldInfo.Address().String())
}

func TestLastUsedIsMonotonic(t *testing.T) {
	t.Parallel()
	clock := internal.NewRealClock()
	epoch := clock.Now()
	require.Contains(t, epoch.String(), "m=")
	primary := newPrimaryHost(clock, epoch, "foo.com", 80)
	info := primary.newInfo(netip.MustParseAddrPort("10.0.0.1:80"))
	info.Touch()
	// A reading without its monotonic part would compare by wall clock.
	assert.Contains(t, info.LastUsed().String(), "m=")
	assert.Contains(t, primary.lastUsed.time().String(), "m=")
	idle := primary.lastUsed.idle()
	assert.GreaterOrEqual(t, idle, time.Duration(0))
	assert.Less(t, idle, time.Minute)
}
