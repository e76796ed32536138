// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteConfigFile_RoundTripsThroughLoader(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, DefaultConfigName)
	sample := NewSample()

	if err := WriteConfigFile(path, &sample); err != nil {
		t.Fatalf("WriteConfigFile: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("config written with %o, want 600", perm)
	}

	cfg, err := NewLoader(base, "", "").Config()
	if err != nil {
		t.Fatalf("reading the sample back: %v", err)
	}
	one, err := cfg.Server("one")
	if err != nil || one.Host != "1.2.3.4" {
		t.Fatalf("Server(one) = %+v, %v", one, err)
	}
	if refs, _ := cfg.ServerRefs("app"); len(refs) != 1 || refs[0] != "one" {
		t.Fatalf("app refs = %v", refs)
	}
}

func TestWriteConfigFile_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigName)
	writeFile(t, path, "keep: me\n")
	sample := NewSample()

	if err := WriteConfigFile(path, &sample); err == nil {
		t.Fatalf("expected an error when the file exists")
	}
	data, _ := os.ReadFile(path)
	if string(data) != "keep: me\n" {
		t.Fatalf("existing file was modified: %q", data)
	}
}

func TestScrub_MasksSecretsWithoutMutating(t *testing.T) {
	raw := map[string]any{
		"servers": map[string]any{
			"one": map[string]any{"host": "h", "password": "hunter2", "pem": "/k"},
		},
		"app": map[string]any{"env": map[string]any{"MONGO_URL": "mongodb://u:p@h"}},
	}
	out := Scrub(raw)

	one := out["servers"].(map[string]any)["one"].(map[string]any)
	if one["password"] == "hunter2" || one["pem"] == "/k" {
		t.Fatalf("secrets not scrubbed: %v", one)
	}
	if one["host"] != "h" {
		t.Fatalf("non-secret changed: %v", one)
	}
	if out["app"].(map[string]any)["env"].(map[string]any)["MONGO_URL"] != "***" {
		t.Fatalf("env not scrubbed")
	}
	if raw["servers"].(map[string]any)["one"].(map[string]any)["password"] != "hunter2" {
		t.Fatalf("Scrub mutated its input")
	}
}
