//go:build !windows
// +build !windows

// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

package deploy

import (
	"net"

	"golang.org/x/crypto/ssh/agent"
)

// dialAgent connects to the SSH agent listening on the unix socket at sock.
// The returned function closes the connection.
func dialAgent(sock string) (agent.Agent, func() error, error) {
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, nil, err
	}
	return agent.NewClient(conn), conn.Close, nil
}
