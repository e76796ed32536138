// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

package fatal

import (
	"errors"
	"fmt"
	"os"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"msg only", New(Build, nil, "build failed"), "build failed"},
		{"err only", New(Archive, errors.New("disk full"), ""), "disk full"},
		{"both", New(Environment, os.ErrNotExist, "cannot read a.pem"), "cannot read a.pem: file does not exist"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	base := New(Build, nil, "exit status 1")
	wrapped := fmt.Errorf("push: %w", base)

	if !Is(wrapped, Build) {
		t.Fatalf("expected wrapped error to be a build error")
	}
	if Is(wrapped, Archive) {
		t.Fatalf("wrapped build error reported as archive error")
	}
	if KindOf(errors.New("plain")) != 0 {
		t.Fatalf("plain errors must have no kind")
	}
}

func TestUnwrapReachesCause(t *testing.T) {
	err := New(Environment, os.ErrNotExist, "missing")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("errors.Is should see the wrapped cause")
	}
	if ExitCode(err) != 1 || ExitCode(nil) != 0 {
		t.Fatalf("unexpected exit codes")
	}
}
