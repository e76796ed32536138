// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

// main.go sets up the root command, the flags shared by every subcommand
// and the per-invocation state they work on.

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"

	"github.com/spf13/cobra"
	"github.com/toeirei/shipmaster/buildvars"
	"github.com/toeirei/shipmaster/internal/build"
	"github.com/toeirei/shipmaster/internal/config"
	"github.com/toeirei/shipmaster/internal/core"
	"github.com/toeirei/shipmaster/internal/i18n"
	"github.com/toeirei/shipmaster/internal/logging"
	"github.com/toeirei/shipmaster/internal/state"
)

const modulePath = "github.com/toeirei/shipmaster"

// Seams for tests.
var (
	newAPI = core.New

	runBuild = func(ctx context.Context, appPath string, opts config.BuildOptions, verbose bool, stdout, stderr io.Writer) (string, error) {
		p := build.New()
		p.Stdout, p.Stderr = stdout, stderr
		return p.Build(ctx, appPath, opts, verbose)
	}
)

// invocation is the state of one invocation, filled in before any subcommand
// runs.
type invocation struct {
	opts config.Options
	api  *core.API
}

// Execute runs the CLI. Interrupts cancel the command's context. The caller
// decides the exit status from the returned error.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// NewRootCmd creates the root command with all subcommands. Each call
// returns an independent tree, which keeps tests isolated.
func NewRootCmd() *cobra.Command {
	rt := &invocation{}
	cmd := &cobra.Command{
		Use:   "shipmaster",
		Short: "Shipmaster builds an application and ships it to your servers over SSH.",
		Long: `Shipmaster reads shipmaster.yaml, builds the application bundle with the
configured build tool and distributes it to the servers each module
references. Credentials come from a pem file, a password or a running
ssh-agent, in that order.`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE: rt.setup,
	}
	cmd.Version = compositeVersion()

	pf := cmd.PersistentFlags()
	pf.String("config", "", "path to the config file (default ./shipmaster.yaml)")
	pf.String("settings", "", "path to the settings file (default settings.json next to the config)")
	pf.BoolP("verbose", "v", false, "verbose output; the build tool writes straight to the terminal")
	pf.String("log-level", "", `log level ("debug", "info", "warn", "error")`)
	pf.String("lang", "en", "language of diagnostic messages")
	pf.Int("parallel", 0, "servers to work on at once during push and ping (0 means all)")

	cmd.AddCommand(
		newInitCmd(rt),
		newValidateCmd(rt),
		newBuildCmd(rt),
		newPushCmd(rt),
		newPingCmd(rt),
		newVersionCmd(),
	)
	for _, sub := range cmd.Commands() {
		rt.cleanupAfter(sub)
	}
	return cmd
}

func (rt *invocation) setup(cmd *cobra.Command, _ []string) error {
	opts, err := config.LoadOptions[config.Options](cmd, map[string]any{"lang": "en"})
	if err != nil {
		return fmt.Errorf("error loading options: %w", err)
	}
	rt.opts = opts

	logging.SetVerbose(opts.Verbose)
	if err := logging.SetLevel(opts.LogLevel); err != nil {
		return err
	}
	i18n.Init(opts.Lang)

	rt.api = newAPI(core.Options{
		ConfigPath:   opts.Config,
		SettingsPath: opts.Settings,
		Verbose:      opts.Verbose,
		Parallel:     opts.Parallel,
	})
	logging.Debugf("base %s, config %s, settings %s", rt.api.Base(), rt.api.ConfigPath(), rt.api.SettingsPath())
	return nil
}

// cleanupAfter makes c release sessions and cached passphrases when its RunE
// returns, whether it failed or not. Cobra skips post-run hooks on error.
func (rt *invocation) cleanupAfter(c *cobra.Command) {
	run := c.RunE
	if run == nil {
		return
	}
	c.RunE = func(cmd *cobra.Command, args []string) error {
		defer rt.teardown()
		return run(cmd, args)
	}
}

func (rt *invocation) teardown() {
	defer state.Passphrases.Clear()
	if rt.api == nil {
		return
	}
	if err := rt.api.Close(); err != nil {
		logging.Debugf("closing sessions: %v", err)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			v, c, d := resolveBuildVersion(nil)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "version: %s\n", v)
			fmt.Fprintf(out, "commit: %s\n", c)
			if d != "" {
				fmt.Fprintf(out, "built: %s\n", d)
			}
		},
	}
}

func compositeVersion() string {
	v, c, d := resolveBuildVersion(nil)
	if c != "" && c != "dev" {
		v += " (" + c + ")"
	}
	if d != "" {
		v += " built: " + d
	}
	return v
}

// resolveBuildVersion computes the best-available version, commit and build
// date for the running binary. If info is nil, it reads build info from the
// runtime.
func resolveBuildVersion(info *debug.BuildInfo) (versionOut, commitOut, dateOut string) {
	resolvedVersion := buildvars.VersionOrDefault("dev")
	resolvedCommit := buildvars.Commit
	resolvedDate := buildvars.Date

	if info == nil {
		if found, ok := debug.ReadBuildInfo(); ok {
			info = found
		}
	}

	if info != nil {
		if resolvedVersion == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			resolvedVersion = info.Main.Version
		}
		// Some build paths only record the version on the dependency entry.
		if resolvedVersion == "dev" {
			for _, dep := range info.Deps {
				if dep.Path == modulePath && dep.Version != "" {
					resolvedVersion = dep.Version
					break
				}
			}
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if s.Value != "" {
					resolvedCommit = s.Value
				}
			case "vcs.time":
				if s.Value != "" {
					resolvedDate = s.Value
				}
			}
		}
	}

	if resolvedVersion == "dev" && buildvars.Commit != "dev" && buildvars.Commit != "" {
		resolvedVersion = buildvars.Commit
	}
	return resolvedVersion, resolvedCommit, resolvedDate
}
