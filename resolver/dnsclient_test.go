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

package resolver

import (
	"net"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDNSClientResolver(t *testing.T) {
	t.Parallel()

	addr := startDNSServer(t, dns.RcodeSuccess,
		"example.com. 60 IN A 10.0.0.100",
		"example.com. 60 IN AAAA fe80::1",
		"example.com. 60 IN A 10.0.0.101",
		"example.com. 60 IN AAAA fe80::2",
		"v4.example.com. 60 IN A 10.0.0.102",
		"v6.example.com. 60 IN AAAA fe80::3",
	)
	res, err := NewDNSClientResolver([]string{addr}, WithLookupTimeout(time.Second))
	require.NoError(t, err)

	ip4Only := []netip.Addr{netip.MustParseAddr("10.0.0.100"), netip.MustParseAddr("10.0.0.101")}
	ip6Only := []netip.Addr{netip.MustParseAddr("fe80::1"), netip.MustParseAddr("fe80::2")}
	testResolveAddresses(t, res, "example.com", Auto, ip6Only)
	testResolveAddresses(t, res, "example.com", V4Only, ip4Only)
	testResolveAddresses(t, res, "example.com", V6Only, ip6Only)
	testResolveAddresses(t, res, "example.com", V4Preferred, ip4Only)
	testResolveAddresses(t, res, "example.com", All, append(ip4Only, ip6Only...))

	testResolveAddresses(t, res, "v4.example.com", Auto, []netip.Addr{netip.MustParseAddr("10.0.0.102")})
	testResolveAddresses(t, res, "v4.example.com", V6Only, nil)
	testResolveAddresses(t, res, "v6.example.com", V4Preferred, []netip.Addr{netip.MustParseAddr("fe80::3")})
	testResolveAddresses(t, res, "v6.example.com", V4Only, nil)
	testResolveAddresses(t, res, "missing.example.com", All, nil)
}

func TestDNSClientResolverFallback(t *testing.T) {
	t.Parallel()

	refusing := startDNSServer(t, dns.RcodeRefused)
	answering := startDNSServer(t, dns.RcodeSuccess, "example.com. 60 IN A 10.0.0.100")
	res, err := NewDNSClientResolver([]string{refusing, answering}, WithLookupTimeout(time.Second))
	require.NoError(t, err)
	testResolveAddresses(t, res, "example.com", V4Only, []netip.Addr{netip.MustParseAddr("10.0.0.100")})

	res, err = NewDNSClientResolver([]string{refusing}, WithLookupTimeout(time.Second))
	require.NoError(t, err)
	testResolveAddresses(t, res, "example.com", V4Only, nil)
}

func TestDNSClientResolverLiteral(t *testing.T) {
	t.Parallel()

	// No server is listening; literals must not be sent anywhere.
	res, err := NewDNSClientResolver([]string{"127.0.0.1:1"})
	require.NoError(t, err)
	var called atomic.Bool
	query := res.Resolve("::ffff:10.1.2.3", V4Only, func(addresses []netip.Addr) {
		called.Store(true)
		assert.Equal(t, []netip.Addr{netip.MustParseAddr("10.1.2.3")}, addresses)
	})
	assert.Nil(t, query)
	assert.True(t, called.Load())
}

func TestNewDNSClientResolverOptions(t *testing.T) {
	t.Parallel()

	_, err := NewDNSClientResolver(nil)
	require.ErrorIs(t, err, errNoServers)
	_, err = NewDNSClientResolver([]string{"1.1.1.1"}, WithNetwork("sctp"))
	require.ErrorContains(t, err, "invalid network")
	_, err = NewDNSClientResolver([]string{"dns.example.com"})
	require.ErrorContains(t, err, "invalid DNS server #0")

	res, err := NewDNSClientResolver([]string{"1.1.1.1", "[2606:4700::1111]:5353", "::1"}, WithNetwork("tcp"))
	require.NoError(t, err)
	clientResolver, ok := res.(*dnsClientResolver)
	require.True(t, ok)
	assert.Equal(t, []string{"1.1.1.1:53", "[2606:4700::1111]:5353", "[::1]:53"}, clientResolver.servers)
	assert.Equal(t, "tcp", clientResolver.client.Net)
	assert.Equal(t, defaultLookupTimeout, clientResolver.client.Timeout)
}

// startDNSServer runs a DNS server on a loopback UDP port which answers
// every query with rcode and whichever of records match the question.
func startDNSServer(t *testing.T, rcode int, records ...string) string {
	t.Helper()

	answers := make([]dns.RR, 0, len(records))
	for _, record := range records {
		rr, err := dns.NewRR(record)
		require.NoError(t, err)
		answers = append(answers, rr)
	}
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	server := &dns.Server{
		PacketConn:        conn,
		NotifyStartedFunc: func() { close(started) },
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
			resp := new(dns.Msg)
			resp.SetRcode(req, rcode)
			if rcode == dns.RcodeSuccess {
				question := req.Question[0]
				for _, rr := range answers {
					header := rr.Header()
					if header.Rrtype == question.Qtype && dns.CanonicalName(header.Name) == dns.CanonicalName(question.Name) {
						resp.Answer = append(resp.Answer, rr)
					}
				}
			}
			_ = w.WriteMsg(resp)
		}),
	}
	go func() {
		_ = server.ActivateAndServe()
	}()
	t.Cleanup(func() {
		_ = server.Shutdown()
	})
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("DNS server did not start")
	}
	return conn.LocalAddr().String()
}
