// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/toeirei/shipmaster/internal/config"
	"github.com/toeirei/shipmaster/internal/i18n"
	"github.com/toeirei/shipmaster/internal/logging"
)

// newInitCmd creates the 'init' command, which writes a sample config and
// an empty settings file. Existing files are left alone.
func newInitCmd(rt *invocation) *cobra.Command {
	return &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a sample shipmaster.yaml and settings.json",
		Long: `Writes a commented starting point for a new project. The files are
created in the given directory, or the current one. Files that already
exist are never overwritten.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			configPath := filepath.Join(dir, config.DefaultConfigName)
			if rt.opts.Config != "" && len(args) == 0 {
				configPath = rt.opts.Config
			}
			settingsPath := filepath.Join(filepath.Dir(configPath), config.DefaultSettingsName)
			if rt.opts.Settings != "" {
				settingsPath = rt.opts.Settings
			}

			sample := config.NewSample()
			if err := created(cmd, configPath, config.WriteConfigFile(configPath, &sample)); err != nil {
				return err
			}
			settings := map[string]any{"public": map[string]any{}}
			return created(cmd, settingsPath, config.WriteSettingsFile(settingsPath, settings))
		},
	}
}

func created(cmd *cobra.Command, path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrExist):
		logging.Warnf("%s", i18n.T("init.exists", path))
		return nil
	case err != nil:
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), i18n.T("init.created", path))
	return nil
}
