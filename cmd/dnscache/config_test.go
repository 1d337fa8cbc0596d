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

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bufbuild/dnscache"
	"github.com/bufbuild/dnscache/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
log:
  level: debug
resolver:
  servers: ["1.1.1.1", "8.8.8.8:53"]
  network: tcp
  timeout: 2s
workers: 3
caches:
  - name: internal
    dns_lookup_family: v4_only
    dns_refresh_rate: 10s
    host_ttl: 1m
  - name: external
`)
	config, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", config.Log.Level)
	assert.Equal(t, []string{"1.1.1.1", "8.8.8.8:53"}, config.Resolver.Servers)
	assert.Equal(t, "tcp", config.Resolver.Network)
	assert.Equal(t, 2*time.Second, config.Resolver.Timeout)
	assert.Equal(t, 3, config.Workers)
	assert.Equal(t, []dnscache.Config{
		{
			Name:         "internal",
			LookupFamily: resolver.V4Only,
			RefreshRate:  10 * time.Second,
			HostTTL:      time.Minute,
		},
		{
			Name:         "external",
			LookupFamily: resolver.Auto,
			RefreshRate:  60 * time.Second,
			HostTTL:      5 * time.Minute,
		},
	}, config.Caches)

	cache, err := config.cache("")
	require.NoError(t, err)
	assert.Equal(t, "internal", cache.Name)
	cache, err = config.cache("external")
	require.NoError(t, err)
	assert.Equal(t, "external", cache.Name)
	_, err = config.cache("missing")
	require.Error(t, err)
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()
	config, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "info", config.Log.Level)
	assert.False(t, config.Log.Production)
	assert.Empty(t, config.Resolver.Servers)
	assert.Equal(t, "udp", config.Resolver.Network)
	assert.Equal(t, 5*time.Second, config.Resolver.Timeout)
	assert.Positive(t, config.Workers)
	assert.Equal(t, []dnscache.Config{{
		Name:        defaultCacheName,
		RefreshRate: 60 * time.Second,
		HostTTL:     5 * time.Minute,
	}}, config.Caches)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name   string
		config string
	}{
		{
			name:   "unknown key",
			config: "log:\n  colour: true\n",
		},
		{
			name:   "unknown family",
			config: "caches:\n  - name: a\n    dns_lookup_family: V5_ONLY\n",
		},
		{
			name:   "duplicate names",
			config: "caches:\n  - name: a\n  - name: a\n    host_ttl: 1s\n",
		},
		{
			name:   "missing name",
			config: "caches:\n  - host_ttl: 1s\n",
		},
		{
			name:   "negative ttl",
			config: "caches:\n  - name: a\n    host_ttl: -1s\n",
		},
		{
			name:   "no workers",
			config: "workers: 0\n",
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			_, err := loadConfig(writeConfig(t, testCase.config))
			require.Error(t, err)
		})
	}
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}
