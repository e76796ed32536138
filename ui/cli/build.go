// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/toeirei/shipmaster/internal/build"
	"github.com/toeirei/shipmaster/internal/config"
)

// newBuildCmd creates the 'build' command, which produces the app bundle
// without deploying it.
func newBuildCmd(rt *invocation) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Build the app bundle",
		Long: `Runs the build tool in app.path with app.buildOptions and archives the
output to <buildLocation>/bundle.tar.gz. Without a configured
buildLocation a fresh directory below the system temp dir is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			artifact, err := rt.buildApp(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), artifact)
			return nil
		},
	}
}

// buildOptions returns the app's build options with paths resolved and
// defaults applied.
func (rt *invocation) buildOptions(app *config.AppConfig) (config.BuildOptions, error) {
	opts := app.BuildOptions
	if opts.BuildLocation == "" {
		opts.BuildLocation = build.DefaultBuildLocation()
	} else {
		opts.BuildLocation = rt.api.ResolvePath(opts.BuildLocation)
	}
	// An explicit --settings file feeds mobile builds that have no inline
	// settings.
	if rt.opts.Settings != "" && opts.MobileSettings == nil && !opts.ServerOnly {
		settings, err := rt.api.Settings()
		if err != nil {
			return opts, err
		}
		opts.MobileSettings = settings
	}
	return opts, nil
}

func (rt *invocation) buildApp(cmd *cobra.Command) (string, error) {
	app, err := rt.api.App()
	if err != nil {
		return "", err
	}
	opts, err := rt.buildOptions(app)
	if err != nil {
		return "", err
	}
	return runBuild(cmd.Context(), app.Path, opts, rt.api.Verbose(), cmd.OutOrStdout(), cmd.ErrOrStderr())
}
