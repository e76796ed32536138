// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-yaml"
)

// Sample is the configuration written by "shipmaster init".
type Sample struct {
	Servers map[string]ServerEntry `yaml:"servers"`
	App     AppConfig              `yaml:"app"`
	Mongo   MongoConfig            `yaml:"mongo"`
	Proxy   ProxyConfig            `yaml:"proxy"`
}

// NewSample returns a starting configuration with one server.
func NewSample() Sample {
	refs := map[string]any{"one": map[string]any{}}
	return Sample{
		Servers: map[string]ServerEntry{
			"one": {
				Host:     "1.2.3.4",
				Username: "root",
				PEM:      "~/.ssh/id_rsa",
			},
		},
		App: AppConfig{
			Name:    "app",
			Path:    "../app",
			Servers: refs,
			BuildOptions: BuildOptions{
				ServerOnly: true,
			},
			Env: map[string]any{
				"ROOT_URL":  "http://app.com",
				"MONGO_URL": "mongodb://mongodb/meteor",
			},
			Docker: DockerOptions{
				Image: "zodern/meteor:root",
			},
			EnableUploadProgressBar: true,
		},
		Mongo: MongoConfig{
			Version: "7.0.12",
			Servers: refs,
		},
		Proxy: ProxyConfig{
			Domains: "app.com,www.app.com",
			SSL: SSLOptions{
				LetsEncryptEmail: "admin@app.com",
				ForceSSL:         true,
			},
		},
	}
}

// WriteConfigFile marshals c as YAML to path. The file is created with 0600
// since it may contain passwords. Existing files are never overwritten.
func WriteConfigFile[T any](path string, c *T) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return writeNew(path, data)
}

// WriteSettingsFile writes settings as indented JSON to path.
func WriteSettingsFile(path string, settings map[string]any) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return writeNew(path, append(data, '\n'))
}

// Scrub returns a deep copy of the section tree with secrets masked:
// server passwords and pem paths, and every app env value.
func Scrub(sections map[string]any) map[string]any {
	out, _ := deepCopy(sections).(map[string]any)
	if out == nil {
		out = map[string]any{}
	}
	if servers, ok := out[SectionServers].(map[string]any); ok {
		for _, raw := range servers {
			entry, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			if _, ok := entry["password"]; ok {
				entry["password"] = "password"
			}
			if _, ok := entry["pem"]; ok {
				entry["pem"] = "~/.ssh/pem"
			}
		}
	}
	if app, ok := out[SectionApp].(map[string]any); ok {
		if env, ok := app["env"].(map[string]any); ok {
			for key := range env {
				env[key] = "***"
			}
		}
	}
	return out
}

// MarshalSections renders a section tree as YAML with sorted keys.
func MarshalSections(sections map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(sections))
	for k := range sections {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := make(yaml.MapSlice, 0, len(keys))
	for _, k := range keys {
		ordered = append(ordered, yaml.MapItem{Key: k, Value: sections[k]})
	}
	return yaml.Marshal(ordered)
}

func writeNew(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create directory %s: %w", dir, err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = deepCopy(val)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = deepCopy(val)
		}
		return s
	default:
		return v
	}
}
