// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

package validate

import (
	"strings"

	"github.com/toeirei/shipmaster/internal/config"
	"github.com/toeirei/shipmaster/util/mapst"
)

// PublicKeyExt is the suffix that marks a public key file.
const PublicKeyExt = ".pub"

// Servers validates the "servers" section: a mapping of server name to
// connection settings.
func Servers(section any) []Problem {
	servers := asMap(section)
	if servers == nil {
		return []Problem{{Message: "must be an object of named servers"}}
	}

	var problems []Problem
	for _, name := range mapst.SortedKeys(servers) {
		for _, p := range server(servers[name]) {
			p.Path = join(name, p.Path)
			problems = append(problems, p)
		}
	}
	return problems
}

func server(raw any) []Problem {
	var entry config.ServerEntry
	problems, _ := schema(raw, &entry)

	// Checked on the raw value so it is reported even when other fields of
	// the entry do not decode.
	if pem, ok := asMap(raw)["pem"].(string); ok && strings.HasSuffix(pem, PublicKeyExt) {
		problems = append(problems, Problem{
			Message: "needs to be a path to a private key, remove the " + PublicKeyExt + " extension",
			Path:    "pem",
		})
	}
	return problems
}
