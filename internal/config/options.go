// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

package config

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Options are the tool-level settings of one invocation. They come from
// flags and SHIPMASTER_* environment variables, never from the deployment
// config file.
type Options struct {
	Config   string `mapstructure:"config"`
	Settings string `mapstructure:"settings"`
	Verbose  bool   `mapstructure:"verbose"`
	LogLevel string `mapstructure:"log-level"`
	Lang     string `mapstructure:"lang"`
	Parallel int    `mapstructure:"parallel"`
}

// LoadOptions merges defaults, environment variables and the command's
// flags into T. Flags win over the environment, the environment wins over
// defaults.
func LoadOptions[T any](cmd *cobra.Command, defaults map[string]any) (T, error) {
	var o T
	v := viper.New()

	// 1. Set defaults
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// 2. Read from environment variables
	v.SetEnvPrefix("shipmaster")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	// 3. cli
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return o, err
	}

	if err := v.Unmarshal(&o); err != nil {
		return o, err
	}
	return o, nil
}
