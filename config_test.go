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
	"testing"
	"time"

	"github.com/bufbuild/dnscache/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()
	require.NoError(t, Config{Name: "foo"}.Validate())
	require.NoError(t, Config{Name: "foo", LookupFamily: resolver.All, RefreshRate: time.Second, HostTTL: time.Second}.Validate())

	err := Config{}.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorContains(t, err, "name is required")

	err = Config{Name: "foo", RefreshRate: -time.Second}.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorContains(t, err, "dns_refresh_rate")

	err = Config{Name: "foo", HostTTL: -time.Second}.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorContains(t, err, "host_ttl")

	err = Config{Name: "foo", LookupFamily: resolver.LookupFamily(99)}.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorContains(t, err, "invalid lookup family 99")
}

func TestConfigWithDefaults(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Config{
		Name:         "foo",
		LookupFamily: resolver.Auto,
		RefreshRate:  60 * time.Second,
		HostTTL:      300 * time.Second,
	}, Config{Name: "foo"}.WithDefaults())

	custom := Config{Name: "foo", LookupFamily: resolver.V6Only, RefreshRate: time.Second, HostTTL: time.Minute}
	assert.Equal(t, custom, custom.WithDefaults())
}

func TestConfigDiff(t *testing.T) {
	t.Parallel()
	base := Config{Name: "foo"}.WithDefaults()
	assert.Empty(t, base.diff(base))

	other := base
	other.LookupFamily = resolver.V6Only
	other.HostTTL = time.Minute
	assert.Equal(t, "dns_lookup_family AUTO != V6_ONLY, host_ttl 5m0s != 1m0s", base.diff(other))
}
