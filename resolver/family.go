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
	"fmt"
	"net/netip"
	"strings"
)

// LookupFamily is the address family policy applied when resolving, based
// on which kinds of records a name has.
type LookupFamily int

const (
	// Auto prefers IPv6 addresses. If no IPv6 addresses are resolved,
	// IPv4 addresses are used.
	Auto LookupFamily = iota

	// V4Only will result in only IPv4 addresses being used.
	V4Only

	// V6Only will result in only IPv6 addresses being used.
	V6Only

	// V4Preferred prefers IPv4 addresses. If no IPv4 addresses are
	// resolved, IPv6 addresses are used.
	V4Preferred

	// All will result in all addresses being used, IPv4 addresses first.
	All
)

//nolint:gochecknoglobals
var familyNames = map[LookupFamily]string{
	Auto:        "AUTO",
	V4Only:      "V4_ONLY",
	V6Only:      "V6_ONLY",
	V4Preferred: "V4_PREFERRED",
	All:         "ALL",
}

// String returns the configuration spelling of the family, such as "V4_ONLY".
func (f LookupFamily) String() string {
	if name, ok := familyNames[f]; ok {
		return name
	}
	return fmt.Sprintf("LookupFamily(%d)", int(f))
}

// MarshalText implements [encoding.TextMarshaler].
func (f LookupFamily) MarshalText() ([]byte, error) {
	if _, ok := familyNames[f]; !ok {
		return nil, fmt.Errorf("invalid lookup family %d", int(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler]. Names are matched
// case-insensitively.
func (f *LookupFamily) UnmarshalText(text []byte) error {
	name := strings.ToUpper(strings.TrimSpace(string(text)))
	for family, familyName := range familyNames {
		if familyName == name {
			*f = family
			return nil
		}
	}
	return fmt.Errorf("unknown lookup family %q", string(text))
}

// network returns the network argument for [net.Resolver.LookupNetIP].
func (f LookupFamily) network() string {
	switch f {
	case V4Only:
		return "ip4"
	case V6Only:
		return "ip6"
	default:
		return "ip"
	}
}

// filterFamily applies the family policy to a set of resolved addresses.
// IPv4-mapped IPv6 addresses are treated as (and converted to) IPv4.
func filterFamily(addresses []netip.Addr, family LookupFamily) []netip.Addr {
	var ip4Addresses, ip6Addresses []netip.Addr
	for _, address := range addresses {
		address = address.Unmap()
		if address.Is4() {
			ip4Addresses = append(ip4Addresses, address)
		} else if address.Is6() {
			ip6Addresses = append(ip6Addresses, address)
		}
	}
	switch family {
	case V4Only:
		return ip4Addresses
	case V6Only:
		return ip6Addresses
	case V4Preferred:
		if len(ip4Addresses) > 0 {
			return ip4Addresses
		}
		return ip6Addresses
	case All:
		return append(ip4Addresses, ip6Addresses...)
	default:
		if len(ip6Addresses) > 0 {
			return ip6Addresses
		}
		return ip4Addresses
	}
}
