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

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootFlags struct {
	config   string
	logLevel string
}

func newRootCommand() *cobra.Command {
	flags := new(rootFlags)
	rootCmd := &cobra.Command{
		Use:          "dnscache",
		Short:        "Resolve hosts through a refreshing, TTL-evicting DNS cache.",
		SilenceUsage: true,
	}
	fs := rootCmd.PersistentFlags()
	fs.StringVarP(&flags.config, "config", "c", "", "config file")
	fs.StringVar(&flags.logLevel, "log-level", "", "log level, overriding the config file")

	rootCmd.AddCommand(
		newLookupCommand(flags),
		newWatchCommand(flags),
		newConfigCommand(flags),
	)
	return rootCmd
}

// setup loads the config and builds the logger it describes.
func (f *rootFlags) setup() (*fileConfig, *zap.Logger, error) {
	config, err := loadConfig(f.config)
	if err != nil {
		return nil, nil, fmt.Errorf("fail to load config, %w", err)
	}
	if f.logLevel != "" {
		config.Log.Level = f.logLevel
	}
	logger, err := newLogger(config.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init logger, %w", err)
	}
	return config, logger, nil
}

func newLogger(config logConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(config.Level)
	if err != nil {
		return nil, err
	}
	var zapConfig zap.Config
	if config.Production {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = level
	return zapConfig.Build()
}
