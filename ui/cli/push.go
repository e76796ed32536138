// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/spf13/cobra"
	"github.com/toeirei/shipmaster/internal/build"
	"github.com/toeirei/shipmaster/internal/config"
	"github.com/toeirei/shipmaster/internal/deploy"
	"github.com/toeirei/shipmaster/internal/fatal"
	"github.com/toeirei/shipmaster/internal/i18n"
	"github.com/toeirei/shipmaster/internal/logging"
)

// RemoteBundlePath is where the bundle of app name is uploaded.
func RemoteBundlePath(name string) string {
	return path.Join("/opt", name, "tmp", build.ArtifactName)
}

// newPushCmd creates the 'push' command: build the bundle, or reuse the
// last one, and upload it to every server of the app module.
func newPushCmd(rt *invocation) *cobra.Command {
	var cached bool
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Build the app and upload the bundle to its servers",
		Long: `Builds the app bundle and uploads it to every server listed under
app.servers. With --cached-build an existing bundle in the configured
buildLocation is uploaded as is.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := rt.api.App()
			if err != nil {
				return err
			}

			view, err := rt.api.WithSessions(config.SectionApp)
			if err != nil {
				return err
			}
			sessions, err := view.Sessions()
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				return fatal.New(fatal.Environment, nil, i18n.T("push.no_servers"))
			}

			artifact := ""
			if cached {
				artifact = rt.cachedArtifact(app)
			}
			if artifact == "" {
				if artifact, err = rt.buildApp(cmd); err != nil {
					return err
				}
			}

			remote := RemoteBundlePath(app.Name)
			results, err := view.Each(cmd.Context(), func(ctx context.Context, s deploy.Session) error {
				logging.Infof("%s", i18n.T("push.uploading", s.Name()))
				return s.Upload(ctx, artifact, remote)
			})
			if err != nil {
				return err
			}

			report, failed := renderResults(remote, results, nil)
			fmt.Fprint(cmd.OutOrStdout(), report)
			if failed > 0 {
				return errors.New(i18n.T("push.failed", failed))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&cached, "cached-build", false, "reuse the bundle in buildLocation if it exists")
	return cmd
}

// cachedArtifact returns the bundle left by an earlier build, or "" when
// there is none to reuse.
func (rt *invocation) cachedArtifact(app *config.AppConfig) string {
	if app.BuildOptions.BuildLocation == "" {
		return ""
	}
	artifact := build.ArtifactPath(rt.api.ResolvePath(app.BuildOptions.BuildLocation))
	if _, err := os.Stat(artifact); err != nil {
		logging.Infof("%s", i18n.T("push.no_cache", artifact))
		return ""
	}
	logging.Infof("%s", i18n.T("push.cached", artifact))
	return artifact
}
