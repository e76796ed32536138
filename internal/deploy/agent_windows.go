//go:build windows
// +build windows

// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

package deploy

import (
	"github.com/Microsoft/go-winio"
	"github.com/davidmz/go-pageant"
	"golang.org/x/crypto/ssh/agent"
)

const defaultAgentPipe = `\\.\pipe\openssh-ssh-agent`

// dialAgent connects to the agent named by sock. Pageant is preferred when
// it is running; otherwise sock is treated as an OpenSSH named pipe.
func dialAgent(sock string) (agent.Agent, func() error, error) {
	if pageant.Available() {
		return pageant.New(), func() error { return nil }, nil
	}
	if sock == "" {
		sock = defaultAgentPipe
	}
	conn, err := winio.DialPipe(sock, nil)
	if err != nil {
		return nil, nil, err
	}
	return agent.NewClient(conn), conn.Close, nil
}
