// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

// i18n-linter checks that every message key passed to i18n.T exists in the
// primary locale, that other locales carry the same keys, and lists keys no
// code refers to.
package main

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	localesDir    = "internal/i18n/locales"
	primaryLocale = "en.yaml"
)

var keyCall = regexp.MustCompile(`i18n\.T\("([^"]+)"`)

// report is the outcome of one lint run.
type report struct {
	Missing  []string            // used in code, absent from the primary locale
	Orphaned []string            // in the primary locale, unused
	Gaps     map[string][]string // secondary locale -> keys it lacks
}

func (r report) failed() bool {
	return len(r.Missing) > 0 || len(r.Gaps) > 0
}

func main() {
	r, err := lint(".", localesDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "i18n-linter: %v\n", err)
		os.Exit(2)
	}
	writeReport(os.Stdout, r)
	if r.failed() {
		os.Exit(1)
	}
}

func lint(root, locales string) (report, error) {
	used, err := usedKeys(root)
	if err != nil {
		return report{}, err
	}
	primary, err := localeKeys(filepath.Join(locales, primaryLocale))
	if err != nil {
		return report{}, fmt.Errorf("primary locale: %w", err)
	}

	r := report{
		Missing:  difference(used, primary),
		Orphaned: difference(primary, used),
		Gaps:     map[string][]string{},
	}

	files, err := filepath.Glob(filepath.Join(locales, "*.yaml"))
	if err != nil {
		return report{}, err
	}
	for _, f := range files {
		if filepath.Base(f) == primaryLocale {
			continue
		}
		keys, err := localeKeys(f)
		if err != nil {
			return report{}, fmt.Errorf("%s: %w", f, err)
		}
		if gaps := difference(primary, keys); len(gaps) > 0 {
			r.Gaps[filepath.Base(f)] = gaps
		}
	}
	return r, nil
}

// usedKeys collects the literal keys of i18n.T calls in non-test Go files
// below root. The tools directory is skipped.
func usedKeys(root string) (map[string]struct{}, error) {
	keys := map[string]struct{}{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (name == "tools" || strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		for _, m := range keyCall.FindAllStringSubmatch(string(content), -1) {
			keys[m[1]] = struct{}{}
		}
		return nil
	})
	return keys, err
}

// localeKeys reads a locale file and returns its keys. Nested mappings are
// flattened with dots, so "a: {b: x}" and "a.b: x" are the same key.
func localeKeys(path string) (map[string]struct{}, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := yaml.Unmarshal(content, &data); err != nil {
		return nil, err
	}
	keys := map[string]struct{}{}
	flatten("", data, keys)
	return keys, nil
}

func flatten(prefix string, node any, keys map[string]struct{}) {
	m, ok := node.(map[string]any)
	if !ok {
		if prefix != "" {
			keys[prefix] = struct{}{}
		}
		return
	}
	for k, v := range m {
		if prefix != "" {
			k = prefix + "." + k
		}
		flatten(k, v, keys)
	}
}

// difference returns the sorted keys of a that are not in b.
func difference(a, b map[string]struct{}) []string {
	var out []string
	for k := range a {
		if _, ok := b[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func writeReport(w io.Writer, r report) {
	section := func(title string, keys []string) {
		fmt.Fprintf(w, "%s:\n", title)
		if len(keys) == 0 {
			fmt.Fprintln(w, "  none")
			return
		}
		for _, k := range keys {
			fmt.Fprintf(w, "  - %s\n", k)
		}
	}
	section("missing from "+primaryLocale, r.Missing)
	section("orphaned in "+primaryLocale, r.Orphaned)

	locales := make([]string, 0, len(r.Gaps))
	for l := range r.Gaps {
		locales = append(locales, l)
	}
	sort.Strings(locales)
	for _, l := range locales {
		section("missing from "+l, r.Gaps[l])
	}
}
