// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

// Package session turns the "servers" section into broker sessions and
// scopes them to the modules a command works on.
package session

import (
	"os"
	"sync"

	"github.com/toeirei/shipmaster/internal/config"
	"github.com/toeirei/shipmaster/internal/deploy"
	"github.com/toeirei/shipmaster/internal/fatal"
	"github.com/toeirei/shipmaster/internal/i18n"
	"github.com/toeirei/shipmaster/internal/logging"
	"github.com/toeirei/shipmaster/internal/security"
)

// AgentSocketEnv names the variable that points at the SSH agent.
const AgentSocketEnv = "SSH_AUTH_SOCK"

// ConfigSource is the part of the loader the resolver needs.
type ConfigSource interface {
	Config() (*config.Config, error)
	ResolvePath(parts ...string) string
}

// Seams for tests.
var (
	getenv   = os.Getenv
	stat     = os.Stat
	readFile = os.ReadFile
)

// Resolver builds one session per configured server, once per process.
type Resolver struct {
	src    ConfigSource
	broker deploy.Broker

	once     sync.Once
	sessions map[string]deploy.Session
	err      error
}

// NewResolver returns a resolver that creates sessions through broker.
func NewResolver(src ConfigSource, broker deploy.Broker) *Resolver {
	return &Resolver{src: src, broker: broker}
}

// All returns a session for every server in the config. The map is built on
// the first call; later calls return the same map or the same error.
func (r *Resolver) All() (map[string]deploy.Session, error) {
	r.once.Do(func() {
		r.sessions, r.err = r.build()
	})
	return r.sessions, r.err
}

// Select returns the sessions referenced by the "servers" key of each named
// module. Unknown modules contribute nothing. With no modules the result is
// empty.
func (r *Resolver) Select(modules ...string) (map[string]deploy.Session, error) {
	all, err := r.All()
	if err != nil {
		return nil, err
	}
	cfg, err := r.src.Config()
	if err != nil {
		return nil, err
	}

	selected := make(map[string]deploy.Session)
	for _, module := range modules {
		refs, ok := cfg.ServerRefs(module)
		if !ok {
			logging.Debugf("module %q has no section, no servers selected for it", module)
			continue
		}
		for _, name := range refs {
			s, ok := all[name]
			if !ok {
				logging.Debugf("module %q references unknown server %q", module, name)
				continue
			}
			selected[name] = s
		}
	}
	return selected, nil
}

func (r *Resolver) build() (map[string]deploy.Session, error) {
	cfg, err := r.src.Config()
	if err != nil {
		return nil, err
	}

	sessions := make(map[string]deploy.Session)
	for _, name := range cfg.ServerNames() {
		target, err := r.target(cfg, name)
		if err != nil {
			return nil, err
		}
		s, err := r.broker.NewSession(target)
		if err != nil {
			return nil, fatal.New(fatal.Environment, err, i18n.T("session.broker_failed", name))
		}
		logging.Debugf("session for %s (%s) uses %s auth", name, target.Host, target.Auth.Method())
		sessions[name] = s
	}
	return sessions, nil
}

// target applies the credential priority: pem, then password, then a
// running SSH agent.
func (r *Resolver) target(cfg *config.Config, name string) (deploy.Target, error) {
	entry, err := cfg.Server(name)
	if err != nil {
		return deploy.Target{}, fatal.New(fatal.Environment, err, i18n.T("session.decode_failed", name))
	}
	if entry.Host == "" {
		return deploy.Target{}, fatal.New(fatal.Environment, nil, i18n.T("session.no_host", name))
	}

	t := deploy.Target{
		Name: name,
		Host: entry.Host,
		Auth: deploy.Auth{Username: entry.Username},
		Opts: entry.Opts,
	}
	if t.Opts.KnownHosts != "" {
		t.Opts.KnownHosts = r.src.ResolvePath(t.Opts.KnownHosts)
	}

	switch {
	case entry.PEM != "":
		p := r.src.ResolvePath(entry.PEM)
		key, err := readFile(p)
		if err != nil {
			return deploy.Target{}, fatal.New(fatal.Environment, err, i18n.T("session.pem_unreadable", p, name))
		}
		t.Auth.PEM = security.Secret(key)
	case entry.Password != "":
		t.Auth.Password = security.FromString(entry.Password)
	default:
		sock := getenv(AgentSocketEnv)
		if sock == "" {
			return deploy.Target{}, fatal.New(fatal.Environment, nil, i18n.T("session.no_credentials", name))
		}
		if _, err := stat(sock); err != nil {
			return deploy.Target{}, fatal.New(fatal.Environment, err, i18n.T("session.no_credentials", name))
		}
		t.Auth.AgentSocket = sock
	}
	return t, nil
}
