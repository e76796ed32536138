// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/toeirei/shipmaster/internal/i18n"
	"github.com/toeirei/shipmaster/internal/validate"
	"github.com/toeirei/shipmaster/util/mapst"
)

const (
	colorSubtle    = lipgloss.Color("240")
	colorHighlight = lipgloss.Color("81")
	colorError     = lipgloss.Color("196")
	colorSuccess   = lipgloss.Color("40")
)

var (
	titleStyle   = lipgloss.NewStyle().Foreground(colorHighlight).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError)
	successStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	subtleStyle  = lipgloss.NewStyle().Foreground(colorSubtle)
	pathStyle    = lipgloss.NewStyle().Bold(true)
)

// renderProblems formats validation problems as a bulleted list under a
// header, or a single success line when there are none.
func renderProblems(problems []validate.Problem) string {
	if len(problems) == 0 {
		return successStyle.Render(i18n.T("validate.ok")) + "\n"
	}
	var b strings.Builder
	b.WriteString(errorStyle.Render(i18n.T("validate.header")) + "\n")
	for _, p := range problems {
		if p.Path == "" {
			fmt.Fprintf(&b, "  - %s\n", p.Message)
			continue
		}
		fmt.Fprintf(&b, "  - %s: %s\n", pathStyle.Render(p.Path), p.Message)
	}
	return b.String()
}

// renderResults formats per-server outcomes, sorted by server name. detail
// holds optional text shown next to a success.
func renderResults(title string, results map[string]error, detail map[string]string) (string, int) {
	var b strings.Builder
	b.WriteString(titleStyle.Render(title) + "\n")
	failed := 0
	for _, name := range mapst.SortedKeys(results) {
		if err := results[name]; err != nil {
			failed++
			fmt.Fprintf(&b, "  %s %s: %s\n", errorStyle.Render("✗"), name, err)
			continue
		}
		line := fmt.Sprintf("  %s %s", successStyle.Render("✓"), name)
		if d := strings.TrimSpace(detail[name]); d != "" {
			line += " " + subtleStyle.Render(d)
		}
		b.WriteString(line + "\n")
	}
	return b.String(), failed
}
