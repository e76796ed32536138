// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

// Package fatal defines the errors that end a Shipmaster run. Library code
// returns them like any other error; only the entrypoint turns them into a
// process exit.
package fatal

import (
	"errors"
	"fmt"
)

// Kind classifies a fatal error.
type Kind int

const (
	// Environment covers missing paths, unreadable files and unusable
	// credentials.
	Environment Kind = iota + 1
	// Build is a failed build subprocess.
	Build
	// Archive is a failed packaging step.
	Archive
)

func (k Kind) String() string {
	switch k {
	case Environment:
		return "environment"
	case Build:
		return "build"
	case Archive:
		return "archive"
	default:
		return "unknown"
	}
}

// Error is a user-facing failure. Msg is printed as is; Err is kept for
// errors.Is/As and debug output.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	if e.Msg == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Msg, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a fatal error of the given kind wrapping err.
func New(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf reports the kind of the first fatal error in err's chain, or 0.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

// Is reports whether err carries a fatal error of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ExitCode is the process status for err. Every fatal kind exits 1; there is
// no retryable class.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
