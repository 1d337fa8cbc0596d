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
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/bufbuild/dnscache"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const defaultCacheName = "default"

type fileConfig struct {
	Log         logConfig         `yaml:"log"`
	Resolver    resolverConfig    `yaml:"resolver"`
	Workers     int               `yaml:"workers"`
	MetricsAddr string            `yaml:"metrics_addr"`
	Caches      []dnscache.Config `yaml:"caches"`
}

type logConfig struct {
	Level      string `yaml:"level"`
	Production bool   `yaml:"production"`
}

type resolverConfig struct {
	// Servers are queried directly if set. Otherwise the system resolver
	// is used.
	Servers []string      `yaml:"servers"`
	Network string        `yaml:"network"`
	Timeout time.Duration `yaml:"timeout"`
}

// loadConfig reads the config file at filePath, if any, on top of the
// defaults. Settings may also come from DNSCACHE_* environment variables,
// such as DNSCACHE_LOG_LEVEL.
func loadConfig(filePath string) (*fileConfig, error) {
	v := viper.New()
	v.SetDefault("log.level", "info")
	v.SetDefault("log.production", false)
	v.SetDefault("resolver.network", "udp")
	v.SetDefault("resolver.timeout", "5s")
	v.SetDefault("workers", runtime.GOMAXPROCS(0))
	v.SetDefault("metrics_addr", "")
	v.SetEnvPrefix("dnscache")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if len(filePath) > 0 {
		v.SetConfigFile(filePath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	decoderOpt := func(cfg *mapstructure.DecoderConfig) {
		cfg.ErrorUnused = true
		cfg.TagName = "yaml"
		cfg.WeaklyTypedInput = true
		cfg.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
		)
	}

	cfg := new(fileConfig)
	if err := v.Unmarshal(cfg, decoderOpt); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalize validates the config and fills in defaults.
func (c *fileConfig) normalize() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if len(c.Caches) == 0 {
		c.Caches = []dnscache.Config{{Name: defaultCacheName}}
	}
	seen := make(map[string]struct{}, len(c.Caches))
	for i, cache := range c.Caches {
		if err := cache.Validate(); err != nil {
			return fmt.Errorf("invalid cache #%d: %w", i, err)
		}
		if _, dup := seen[cache.Name]; dup {
			return fmt.Errorf("duplicated cache name %s", cache.Name)
		}
		seen[cache.Name] = struct{}{}
		c.Caches[i] = cache.WithDefaults()
	}
	return nil
}

// cache returns the config of the named cache. An empty name selects the
// first cache.
func (c *fileConfig) cache(name string) (dnscache.Config, error) {
	if name == "" {
		return c.Caches[0], nil
	}
	for _, cache := range c.Caches {
		if cache.Name == name {
			return cache, nil
		}
	}
	return dnscache.Config{}, fmt.Errorf("no cache named %q in config", name)
}
