// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

// Package testutil holds test doubles shared across packages.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/toeirei/shipmaster/internal/deploy"
	"github.com/toeirei/shipmaster/util/mapst"
)

// FakeBroker records every target it is asked to open and hands out
// FakeSessions.
type FakeBroker struct {
	// Err, if set, is returned by NewSession.
	Err error
	// RunFunc, if set, is installed on every session created.
	RunFunc func(cmd string) (*deploy.Result, error)
	// UploadErrs sets FakeSession.UploadErr by server name.
	UploadErrs map[string]error

	mu       sync.Mutex
	Targets  []deploy.Target
	Sessions map[string]*FakeSession
}

// NewFakeBroker returns an empty broker.
func NewFakeBroker() *FakeBroker {
	return &FakeBroker{Sessions: map[string]*FakeSession{}}
}

// NewSession implements deploy.Broker.
func (b *FakeBroker) NewSession(t deploy.Target) (deploy.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return nil, b.Err
	}
	b.Targets = append(b.Targets, t)
	s := &FakeSession{Target: t, RunFunc: b.RunFunc, UploadErr: b.UploadErrs[t.Name]}
	if b.Sessions == nil {
		b.Sessions = map[string]*FakeSession{}
	}
	b.Sessions[t.Name] = s
	return s, nil
}

// Target returns the recorded target for name.
func (b *FakeBroker) Target(name string) (deploy.Target, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range b.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return deploy.Target{}, false
}

// FakeSession implements deploy.Session in memory.
type FakeSession struct {
	Target  deploy.Target
	RunFunc func(cmd string) (*deploy.Result, error)
	// UploadErr, if set, is returned by Upload.
	UploadErr error

	mu       sync.Mutex
	Commands []string
	Uploads  map[string][]byte
	closed   bool
}

func (s *FakeSession) Name() string { return s.Target.Name }
func (s *FakeSession) Host() string { return s.Target.Host }

// Run records cmd and answers through RunFunc, or echoes cmd.
func (s *FakeSession) Run(ctx context.Context, cmd string) (*deploy.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.Commands = append(s.Commands, cmd)
	s.mu.Unlock()
	if s.RunFunc != nil {
		return s.RunFunc(cmd)
	}
	return &deploy.Result{Stdout: cmd + "\n"}, nil
}

// Upload reads localPath and keeps its content under remotePath.
func (s *FakeSession) Upload(ctx context.Context, localPath, remotePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.UploadErr != nil {
		return s.UploadErr
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Uploads == nil {
		s.Uploads = map[string][]byte{}
	}
	s.Uploads[remotePath] = data
	return nil
}

// Close marks the session closed.
func (s *FakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *FakeSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// SessionNames returns the sorted names of sessions.
func SessionNames(sessions map[string]deploy.Session) []string {
	return mapst.SortedKeys(sessions)
}

// WriteFile writes content to dir/name, creating parents, and returns the
// full path.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(p), err)
	}
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}
