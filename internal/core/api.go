// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

// Package core is the entry point commands use to reach configuration,
// settings and sessions. Everything is loaded lazily and at most once per
// process.
package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/toeirei/shipmaster/internal/config"
	"github.com/toeirei/shipmaster/internal/deploy"
	"github.com/toeirei/shipmaster/internal/fatal"
	"github.com/toeirei/shipmaster/internal/i18n"
	"github.com/toeirei/shipmaster/internal/logging"
	"github.com/toeirei/shipmaster/internal/session"
	"github.com/toeirei/shipmaster/internal/validate"
	"github.com/toeirei/shipmaster/util/mapst"
	"golang.org/x/sync/errgroup"
)

// Options configure a new API.
type Options struct {
	// Base is the project directory; empty means the working directory.
	Base         string
	ConfigPath   string
	SettingsPath string
	Verbose      bool
	// Parallel bounds how many sessions Each works on at once; zero or
	// less means no bound.
	Parallel int
	// Broker defaults to an SSH broker.
	Broker deploy.Broker
	// Engine defaults to validate.Default().
	Engine *validate.Engine
}

// state is shared by an API and every view derived from it.
type state struct {
	loader   *config.Loader
	engine   *validate.Engine
	resolver *session.Resolver

	validateOnce sync.Once
	problems     []validate.Problem

	sessionsUsed atomic.Bool
}

// ErrNoApp is returned when a command needs the app section and there is none.
var ErrNoApp = errors.New("app section missing")

// API gives commands access to the project. Views returned by WithSessions
// share all state with their parent and differ only in the sessions they
// expose.
type API struct {
	*state
	verbose  bool
	parallel int

	// scoped is nil for the unscoped API.
	scoped  map[string]deploy.Session
	modules []string
}

// New returns an API. Nothing is read until it is needed.
func New(opts Options) *API {
	broker := opts.Broker
	if broker == nil {
		broker = deploy.NewSSHBroker()
	}
	engine := opts.Engine
	if engine == nil {
		engine = validate.Default()
	}
	loader := config.NewLoader(opts.Base, opts.ConfigPath, opts.SettingsPath)
	return &API{
		state: &state{
			loader:   loader,
			engine:   engine,
			resolver: session.NewResolver(loader, broker),
		},
		verbose:  opts.Verbose,
		parallel: opts.Parallel,
	}
}

// Base is the directory relative config paths resolve against.
func (a *API) Base() string { return a.loader.Base() }

// Verbose reports whether verbose output was requested.
func (a *API) Verbose() bool { return a.verbose }

// ConfigPath is the config file location.
func (a *API) ConfigPath() string { return a.loader.ConfigPath() }

// SettingsPath is the settings file location.
func (a *API) SettingsPath() string { return a.loader.SettingsPath() }

// ResolvePath resolves parts against the base directory.
func (a *API) ResolvePath(parts ...string) string { return a.loader.ResolvePath(parts...) }

// Config loads the configuration. The first successful load validates it and
// logs any problems; problems never stop the run.
func (a *API) Config() (*config.Config, error) {
	cfg, err := a.loader.Config()
	if err != nil {
		return nil, err
	}
	a.check(cfg, true)
	return cfg, nil
}

// Problems returns the validation findings for the configuration. Problems
// found here first are returned without being logged.
func (a *API) Problems() ([]validate.Problem, error) {
	cfg, err := a.loader.Config()
	if err != nil {
		return nil, err
	}
	a.check(cfg, false)
	return a.problems, nil
}

func (a *API) check(cfg *config.Config, report bool) {
	a.validateOnce.Do(func() {
		logging.Debugf("validating sections: %s", strings.Join(cfg.Sections(), ", "))
		a.problems = a.engine.Validate(cfg)
		if !report || len(a.problems) == 0 {
			return
		}
		logging.Warnf("%s", i18n.T("validate.header"))
		for _, p := range a.problems {
			logging.Warnf("  - %s", p)
		}
	})
}

// Settings loads the settings file.
func (a *API) Settings() (map[string]any, error) {
	return a.loader.Settings()
}

// App returns the app section with its path resolved against the base.
func (a *API) App() (*config.AppConfig, error) {
	cfg, err := a.Config()
	if err != nil {
		return nil, err
	}
	app, ok, err := cfg.App()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fatal.New(fatal.Environment, ErrNoApp, i18n.T("core.no_app", a.ConfigPath()))
	}
	app.Path = a.ResolvePath(app.Path)
	return app, nil
}

// Sessions returns every session of this view. The unscoped API returns one
// session per configured server.
func (a *API) Sessions() (map[string]deploy.Session, error) {
	if a.scoped != nil {
		return a.scoped, nil
	}
	if _, err := a.Config(); err != nil {
		return nil, err
	}
	a.sessionsUsed.Store(true)
	return a.resolver.All()
}

// Modules lists the modules a scoped view was created for.
func (a *API) Modules() []string { return a.modules }

// WithSessions returns a view whose Sessions are limited to the servers
// referenced by modules. The receiver is not modified.
func (a *API) WithSessions(modules ...string) (*API, error) {
	if _, err := a.Config(); err != nil {
		return nil, err
	}
	a.sessionsUsed.Store(true)
	selected, err := a.resolver.Select(modules...)
	if err != nil {
		return nil, err
	}
	view := *a
	view.scoped = selected
	view.modules = append([]string(nil), modules...)
	return &view, nil
}

// Each calls fn for every session of the view concurrently, at most Parallel
// at a time, and waits for all of them. Results are keyed by server name; a
// nil entry means success. A failing server does not cancel the others, so
// fn errors are only reported through the results.
func (a *API) Each(ctx context.Context, fn func(ctx context.Context, s deploy.Session) error) (map[string]error, error) {
	sessions, err := a.Sessions()
	if err != nil {
		return nil, err
	}
	names := mapst.SortedKeys(sessions)

	var mu sync.Mutex
	results := make(map[string]error, len(names))
	var g errgroup.Group
	if a.parallel > 0 {
		g.SetLimit(a.parallel)
	}
	for _, name := range names {
		name := name
		s := sessions[name]
		g.Go(func() error {
			err := fn(ctx, s)
			mu.Lock()
			results[name] = err
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results, ctx.Err()
}

// Close closes every session that was created. It does nothing when no
// command asked for sessions.
func (a *API) Close() error {
	if !a.sessionsUsed.Load() {
		return nil
	}
	sessions, err := a.resolver.All()
	if err != nil {
		return nil
	}
	var errs []error
	for _, name := range mapst.SortedKeys(sessions) {
		if err := sessions[name].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
