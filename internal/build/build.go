// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

// Package build drives the external build tool and archives its output.
package build

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/toeirei/shipmaster/internal/archive"
	"github.com/toeirei/shipmaster/internal/config"
	"github.com/toeirei/shipmaster/internal/fatal"
	"github.com/toeirei/shipmaster/internal/i18n"
	"github.com/toeirei/shipmaster/internal/logging"
)

const (
	// DefaultExecutable is the build tool used when none is configured.
	DefaultExecutable = "meteor"
	// Architecture is the server platform bundles are built for.
	Architecture = "os.linux.x86_64"
	// AppMarker must exist below an application root.
	AppMarker = ".meteor/release"
	// BundleDir is the directory the build tool writes below the build location.
	BundleDir = "bundle"
	// ArtifactName is the archive written next to BundleDir.
	ArtifactName = "bundle.tar.gz"
	// SettingsName is read from the app root for mobile builds.
	SettingsName = "settings.json"
)

// Seams for tests.
var (
	execCommand = exec.CommandContext
	goos        = runtime.GOOS
)

// ArchiveFunc packs sourceDir into dest.
type ArchiveFunc func(ctx context.Context, sourceDir, dest string) error

// Pipeline runs one build. Stdout and Stderr receive the tool's output when
// not verbose; verbose builds write to the process streams directly.
type Pipeline struct {
	Stdout  io.Writer
	Stderr  io.Writer
	Archive ArchiveFunc
}

// New returns a pipeline that forwards output to the process streams and
// archives with the archive package.
func New() *Pipeline {
	return &Pipeline{Stdout: os.Stdout, Stderr: os.Stderr, Archive: archive.Archive}
}

// DefaultBuildLocation is a fresh directory name under the system temp dir.
func DefaultBuildLocation() string {
	return filepath.Join(os.TempDir(), uuid.NewString())
}

// ArtifactPath is where a build in buildLocation leaves its archive.
func ArtifactPath(buildLocation string) string {
	return filepath.Join(buildLocation, ArtifactName)
}

// ErrMobileSettings is returned when mobileSettings cannot be encoded as JSON.
var ErrMobileSettings = errors.New("mobileSettings cannot be encoded as JSON")

// Args returns the build tool arguments for opts.
func Args(appPath string, opts config.BuildOptions) ([]string, error) {
	args := []string{"build", "--directory", opts.BuildLocation, "--architecture", Architecture}

	if opts.Debug {
		args = append(args, "--debug")
	}
	if opts.MobileSettings != nil {
		settings, err := json.Marshal(opts.MobileSettings)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMobileSettings, err)
		}
		args = append(args, "--mobile-settings", string(settings))
	}
	if opts.ServerOnly {
		args = append(args, "--server-only")
	} else if opts.MobileSettings == nil {
		args = append(args, "--mobile-settings", filepath.Join(appPath, SettingsName))
	}
	if opts.Server != "" {
		args = append(args, "--server", opts.Server)
	}
	if opts.AllowIncompatibleUpdate {
		args = append(args, "--allow-incompatible-update")
	}
	return args, nil
}

// Command returns the executable and full argument list for targetOS. On
// Windows the tool is started through cmd.exe.
func Command(appPath string, opts config.BuildOptions, targetOS string) (string, []string, error) {
	executable := opts.Executable
	if executable == "" {
		executable = DefaultExecutable
	}
	args, err := Args(appPath, opts)
	if err != nil {
		return "", nil, err
	}
	if targetOS == "windows" {
		return "cmd.exe", append([]string{"/c", executable}, args...), nil
	}
	return executable, args, nil
}

// Build checks that appPath is an application root, runs the build tool in
// it and archives the output. It returns the artifact path.
func (p *Pipeline) Build(ctx context.Context, appPath string, opts config.BuildOptions, verbose bool) (string, error) {
	if err := checkApp(appPath); err != nil {
		return "", err
	}
	if opts.BuildLocation == "" {
		opts.BuildLocation = DefaultBuildLocation()
	}

	name, args, err := Command(appPath, opts, goos)
	if err != nil {
		return "", fatal.New(fatal.Environment, err, i18n.T("build.bad_mobile_settings"))
	}
	cmdline := strings.Join(append([]string{name}, args...), " ")
	logging.Infof("building app bundle at %s", opts.BuildLocation)
	logging.Debugf("running %s in %s", cmdline, appPath)

	if code := p.run(ctx, appPath, name, args, cmdline, verbose); code != 0 {
		if err := ctx.Err(); err != nil {
			return "", fatal.New(fatal.Build, err, i18n.T("build.failed"))
		}
		return "", fatal.New(fatal.Build, &exitError{code: code}, i18n.T("build.failed"))
	}

	source := filepath.Join(opts.BuildLocation, BundleDir)
	artifact := ArtifactPath(opts.BuildLocation)
	logging.Debugf("archiving %s to %s", source, artifact)
	if err := p.Archive(ctx, source, artifact); err != nil {
		return "", fatal.New(fatal.Archive, err, i18n.T("archive.failed", source))
	}
	logging.Infof("bundle written to %s", artifact)
	return artifact, nil
}

// run executes the build tool and returns its exit code. A tool that cannot
// be started counts as a failed build.
func (p *Pipeline) run(ctx context.Context, dir, name string, args []string, cmdline string, verbose bool) int {
	cmd := execCommand(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "METEOR_HEADLESS=1")

	var wg sync.WaitGroup
	if verbose {
		cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	} else {
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return spawnFailed(cmdline, err)
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			return spawnFailed(cmdline, err)
		}
		forward(&wg, p.Stdout, stdout)
		forward(&wg, p.Stderr, stderr)
	}

	if err := cmd.Start(); err != nil {
		return spawnFailed(cmdline, err)
	}
	// The pipes must be drained before Wait closes them.
	wg.Wait()
	err := cmd.Wait()
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		return exitErr.ExitCode()
	}
	logging.Debugf("build tool ended with %v", err)
	return 1
}

func forward(wg *sync.WaitGroup, dst io.Writer, src io.Reader) {
	if dst == nil {
		dst = io.Discard
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = io.Copy(dst, src)
	}()
}

func spawnFailed(cmdline string, err error) int {
	logging.Errorf("%s: %v", i18n.T("build.spawn_failed"), err)
	logging.Errorf("command: %s", cmdline)
	logging.Errorf("%s", i18n.T("build.spawn_hint"))
	return 1
}

func checkApp(appPath string) error {
	if _, err := os.Stat(appPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fatal.New(fatal.Environment, err, i18n.T("build.app_not_found", appPath))
		}
		return fatal.New(fatal.Environment, err, i18n.T("build.app_stat_failed", appPath))
	}
	if _, err := os.Stat(filepath.Join(appPath, filepath.FromSlash(AppMarker))); err != nil {
		return fatal.New(fatal.Environment, err, i18n.T("build.not_an_app", appPath, AppMarker))
	}
	return nil
}

type exitError struct{ code int }

func (e *exitError) Error() string {
	return fmt.Sprintf("build tool exited with status %d", e.code)
}
