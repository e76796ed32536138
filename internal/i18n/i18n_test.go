// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

package i18n

import (
	"strings"
	"testing"
)

func TestT_FormatsCatalogueMessage(t *testing.T) {
	Init("en")
	got := T("session.no_credentials", "web1")
	want := `server "web1" doesn't have password, ssh-agent or pem`
	if got != want {
		t.Fatalf("T() = %q, want %q", got, want)
	}
}

func TestT_UnknownIDFallsBack(t *testing.T) {
	Init("en")
	if got := T("does.not.exist"); got != "does.not.exist" {
		t.Fatalf("unknown id should be returned verbatim, got %q", got)
	}
}

func TestT_UnsupportedLanguageUsesEnglish(t *testing.T) {
	Init("xx")
	defer Init("en")
	if got := T("validate.ok"); !strings.Contains(got, "valid") {
		t.Fatalf("expected english fallback, got %q", got)
	}
}
