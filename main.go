// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

// Command-line entrypoint for Shipmaster.
//
// Usage:
//
//	go run . [command] [flags]
//	./shipmaster [command] [flags]
//
// See --help for the available commands.
package main

import (
	"os"

	"github.com/toeirei/shipmaster/internal/fatal"
	"github.com/toeirei/shipmaster/internal/logging"
	"github.com/toeirei/shipmaster/ui/cli"
)

// main is the only place the process exits with a failure status.
func main() {
	if err := cli.Execute(); err != nil {
		if kind := fatal.KindOf(err); kind != 0 {
			logging.Debugf("%s error", kind)
		}
		logging.Errorf("%v", err)
		os.Exit(fatal.ExitCode(err))
	}
}
