// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

// Package validate checks a deployment configuration section by section and
// reports every problem it finds. Validation is advisory: callers decide what
// to do with the problems, and nothing here stops a run.
package validate

import (
	"github.com/toeirei/shipmaster/internal/config"
)

// Problem is one finding. Path is dotted and starts with the section name,
// e.g. "servers.web1.pem".
type Problem struct {
	Message string
	Path    string
}

func (p Problem) String() string {
	if p.Path == "" {
		return p.Message
	}
	return p.Path + ": " + p.Message
}

// SectionValidator inspects the raw value of one section. Paths of the
// returned problems are relative to the section.
type SectionValidator func(section any) []Problem

// Engine runs the registered section validators.
type Engine struct {
	order      []string
	validators map[string]SectionValidator
}

// NewEngine returns an engine with no validators.
func NewEngine() *Engine {
	return &Engine{validators: map[string]SectionValidator{}}
}

// Default returns an engine with the built-in section validators.
func Default() *Engine {
	e := NewEngine()
	e.Register(config.SectionServers, Servers)
	e.Register(config.SectionApp, App)
	e.Register(config.SectionMongo, Mongo)
	e.Register(config.SectionProxy, Proxy)
	return e
}

// Register adds or replaces the validator for a section. Sections are
// validated in the order they were first registered.
func (e *Engine) Register(section string, v SectionValidator) {
	if _, exists := e.validators[section]; !exists {
		e.order = append(e.order, section)
	}
	e.validators[section] = v
}

// Validate runs every validator whose section is present in cfg and returns
// all problems. An empty result means the configuration is valid.
func (e *Engine) Validate(cfg *config.Config) []Problem {
	var problems []Problem
	for _, name := range e.order {
		section, ok := cfg.Section(name)
		if !ok {
			continue
		}
		for _, p := range e.validators[name](section) {
			p.Path = join(name, p.Path)
			problems = append(problems, p)
		}
	}
	return problems
}

func join(prefix, path string) string {
	switch {
	case prefix == "":
		return path
	case path == "":
		return prefix
	default:
		return prefix + "." + path
	}
}
