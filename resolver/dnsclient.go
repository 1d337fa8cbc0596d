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
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/miekg/dns"
	"golang.org/x/sync/errgroup"
)

var errNoServers = errors.New("no DNS servers configured")

// NewDNSClientResolver creates a resolver that sends A and AAAA queries
// directly to the given DNS servers, instead of going through the system
// resolver. Servers are tried in order until one of them answers
// successfully. A server address without a port is assumed to use port 53.
func NewDNSClientResolver(servers []string, options ...Option) (Resolver, error) {
	if len(servers) == 0 {
		return nil, errNoServers
	}
	opts := newResolverOptions(options)
	if opts.network != "udp" && opts.network != "tcp" {
		return nil, fmt.Errorf("invalid network %q: must be udp or tcp", opts.network)
	}
	normalized := make([]string, 0, len(servers))
	for i, server := range servers {
		addrPort, err := netip.ParseAddrPort(server)
		if err != nil {
			addr, addrErr := netip.ParseAddr(server)
			if addrErr != nil {
				return nil, fmt.Errorf("invalid DNS server #%d %q: %w", i, server, err)
			}
			addrPort = netip.AddrPortFrom(addr, 53)
		}
		normalized = append(normalized, addrPort.String())
	}
	return &dnsClientResolver{
		client: &dns.Client{
			Net:     opts.network,
			Timeout: opts.timeout,
		},
		servers: normalized,
		opts:    opts,
	}, nil
}

type dnsClientResolver struct {
	client  *dns.Client
	servers []string
	opts    resolverOptions
}

func (r *dnsClientResolver) Resolve(host string, family LookupFamily, onComplete func([]netip.Addr)) Query {
	if addr, err := netip.ParseAddr(host); err == nil {
		// Literal addresses need no query.
		onComplete(filterFamily([]netip.Addr{addr}, family))
		return nil
	}
	return startQuery(r.opts.timeout, onComplete, func(ctx context.Context) []netip.Addr {
		return r.lookup(ctx, dns.Fqdn(host), family)
	})
}

func (r *dnsClientResolver) lookup(ctx context.Context, name string, family LookupFamily) []netip.Addr {
	var ip4Addresses, ip6Addresses []netip.Addr
	switch family {
	case V4Only:
		ip4Addresses = r.query(ctx, name, dns.TypeA)
	case V6Only:
		ip6Addresses = r.query(ctx, name, dns.TypeAAAA)
	case V4Preferred:
		ip4Addresses = r.query(ctx, name, dns.TypeA)
		if len(ip4Addresses) == 0 {
			ip6Addresses = r.query(ctx, name, dns.TypeAAAA)
		}
	case All:
		grp, grpCtx := errgroup.WithContext(ctx)
		grp.Go(func() error {
			ip4Addresses = r.query(grpCtx, name, dns.TypeA)
			return nil
		})
		grp.Go(func() error {
			ip6Addresses = r.query(grpCtx, name, dns.TypeAAAA)
			return nil
		})
		_ = grp.Wait()
	default:
		ip6Addresses = r.query(ctx, name, dns.TypeAAAA)
		if len(ip6Addresses) == 0 {
			ip4Addresses = r.query(ctx, name, dns.TypeA)
		}
	}
	return filterFamily(append(ip4Addresses, ip6Addresses...), family)
}

// query returns the addresses from the first server that answers with
// NOERROR. Any other outcome moves on to the next server.
func (r *dnsClientResolver) query(ctx context.Context, name string, qtype uint16) []netip.Addr {
	msg := new(dns.Msg)
	msg.SetQuestion(name, qtype)
	msg.RecursionDesired = true
	for _, server := range r.servers {
		if ctx.Err() != nil {
			return nil
		}
		resp, _, err := r.client.ExchangeContext(ctx, msg, server)
		if err != nil || resp.Rcode != dns.RcodeSuccess {
			continue
		}
		var addresses []netip.Addr
		for _, rr := range resp.Answer {
			var ip net.IP
			switch rr := rr.(type) {
			case *dns.A:
				ip = rr.A
			case *dns.AAAA:
				ip = rr.AAAA
			default:
				continue
			}
			if addr, ok := netip.AddrFromSlice(ip); ok {
				addresses = append(addresses, addr.Unmap())
			}
		}
		return addresses
	}
	return nil
}
