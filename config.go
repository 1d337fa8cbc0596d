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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bufbuild/dnscache/resolver"
)

const (
	defaultRefreshRate = 60 * time.Second
	defaultHostTTL     = 300 * time.Second
)

// ErrInvalidConfig is returned (wrapped) when a Config fails validation.
var ErrInvalidConfig = errors.New("invalid DNS cache config")

// Config describes one DNS cache. Two caches with the same name must have
// equal configs; see [Manager.GetCache].
type Config struct {
	// Name identifies the cache within a Manager. It is required.
	Name string `yaml:"name"`
	// LookupFamily is passed to the resolver on every lookup. The zero
	// value is [resolver.Auto].
	LookupFamily resolver.LookupFamily `yaml:"dns_lookup_family"`
	// RefreshRate is the interval at which hosts are re-resolved. If
	// zero, 60 seconds is used.
	RefreshRate time.Duration `yaml:"dns_refresh_rate"`
	// HostTTL is how long a host may go unused before it is evicted. If
	// zero, 5 minutes is used.
	HostTTL time.Duration `yaml:"host_ttl"`
}

// Validate reports whether the config can be used to create a cache.
func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if _, err := c.LookupFamily.MarshalText(); err != nil {
		return fmt.Errorf("%w: cache %q: %w", ErrInvalidConfig, c.Name, err)
	}
	if c.RefreshRate < 0 {
		return fmt.Errorf("%w: cache %q: dns_refresh_rate must not be negative", ErrInvalidConfig, c.Name)
	}
	if c.HostTTL < 0 {
		return fmt.Errorf("%w: cache %q: host_ttl must not be negative", ErrInvalidConfig, c.Name)
	}
	return nil
}

// WithDefaults returns a copy of c with defaults filled in for zero values.
func (c Config) WithDefaults() Config {
	if c.RefreshRate == 0 {
		c.RefreshRate = defaultRefreshRate
	}
	if c.HostTTL == 0 {
		c.HostTTL = defaultHostTTL
	}
	return c
}

// diff describes the settings that differ between c and other, such as
// "dns_lookup_family V4_ONLY != V6_ONLY". It returns an empty string if
// the configs are equal.
func (c Config) diff(other Config) string {
	var diffs []string
	if c.LookupFamily != other.LookupFamily {
		diffs = append(diffs, fmt.Sprintf("dns_lookup_family %v != %v", c.LookupFamily, other.LookupFamily))
	}
	if c.RefreshRate != other.RefreshRate {
		diffs = append(diffs, fmt.Sprintf("dns_refresh_rate %v != %v", c.RefreshRate, other.RefreshRate))
	}
	if c.HostTTL != other.HostTTL {
		diffs = append(diffs, fmt.Sprintf("host_ttl %v != %v", c.HostTTL, other.HostTTL))
	}
	return strings.Join(diffs, ", ")
}
