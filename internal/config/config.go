// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

package config

import (
	"fmt"
	"sort"

	"github.com/toeirei/shipmaster/util/mapst"
)

// Config is a parsed deployment configuration. It keeps the raw section tree
// so that validation can inspect values that do not decode, and offers typed
// views over the sections the core understands.
type Config struct {
	// Path is the file the configuration was read from.
	Path     string
	sections map[string]any
}

// New wraps an already parsed section tree.
func New(path string, sections map[string]any) *Config {
	if sections == nil {
		sections = map[string]any{}
	}
	return &Config{Path: path, sections: sections}
}

// Sections returns the top-level section names in sorted order.
func (c *Config) Sections() []string {
	return mapst.SortedKeys(c.sections)
}

// Section returns the raw value of a top-level section.
func (c *Config) Section(name string) (any, bool) {
	v, ok := c.sections[name]
	return v, ok
}

// Raw returns the underlying tree. Callers must treat it as read-only.
func (c *Config) Raw() map[string]any { return c.sections }

// ServerNames returns the names under "servers", sorted.
func (c *Config) ServerNames() []string {
	m, _ := c.sections[SectionServers].(map[string]any)
	return mapst.SortedKeys(m)
}

// Server decodes a single entry of the "servers" section.
func (c *Config) Server(name string) (ServerEntry, error) {
	var entry ServerEntry
	m, _ := c.sections[SectionServers].(map[string]any)
	raw, ok := m[name]
	if !ok {
		return entry, fmt.Errorf("server %q is not configured", name)
	}
	if _, err := Decode(raw, &entry); err != nil {
		return entry, err
	}
	return entry, nil
}

// App decodes the "app" section. ok is false when the section is absent.
func (c *Config) App() (app *AppConfig, ok bool, err error) {
	raw, present := c.sections[SectionApp]
	if !present {
		return nil, false, nil
	}
	app = &AppConfig{}
	if _, err := Decode(raw, app); err != nil {
		return nil, true, fmt.Errorf("decode app section: %w", err)
	}
	return app, true, nil
}

// ServerRefs returns the server names a module section references through
// its "servers" key, which may be a mapping of name to options or a list of
// names. ok is false when the module has no section.
func (c *Config) ServerRefs(module string) (names []string, ok bool) {
	raw, present := c.sections[module]
	if !present {
		return nil, false
	}
	section, _ := raw.(map[string]any)
	return RefNames(section[SectionServers]), true
}

// RefNames extracts server names from a "servers" reference value.
func RefNames(v any) []string {
	var names []string
	switch refs := v.(type) {
	case map[string]any:
		for name := range refs {
			names = append(names, name)
		}
	case []any:
		for _, item := range refs {
			if s, ok := item.(string); ok {
				names = append(names, s)
			}
		}
	case []string:
		names = append(names, refs...)
	}
	sort.Strings(names)
	return names
}
