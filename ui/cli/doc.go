// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.
//
// Package cli implements the command-line interface for Shipmaster using Cobra.
// Commands stay thin: they parse flags, then delegate to the core API, the
// build pipeline and the session broker.
package cli
