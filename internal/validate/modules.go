// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

package validate

import (
	"encoding/json"
	"strings"

	"github.com/toeirei/shipmaster/internal/config"
)

// App validates the "app" section.
func App(section any) []Problem {
	var app config.AppConfig
	problems, ok := schema(section, &app)
	if !ok {
		return problems
	}

	problems = append(problems, serverRefs(app.Servers)...)

	raw := asMap(section)
	if opts := asMap(raw["buildOptions"]); opts != nil {
		problems = append(problems, mobileSettings(problems, opts)...)
	}

	env, present := raw["env"]
	if present && asMap(env) == nil {
		// Reported by the decoder.
		return problems
	}
	rootURL, present := asMap(env)["ROOT_URL"]
	switch {
	case !present:
		problems = append(problems, Problem{Message: "is required", Path: "env.ROOT_URL"})
	default:
		s, _ := rootURL.(string)
		lower := strings.ToLower(s)
		if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
			problems = append(problems, Problem{Message: `must be a valid url with "http://" or "https://"`, Path: "env.ROOT_URL"})
		}
	}
	return problems
}

// mobileSettings checks buildOptions.mobileSettings, which is handed to the
// build tool as JSON.
func mobileSettings(found []Problem, opts map[string]any) []Problem {
	const path = "buildOptions.mobileSettings"
	ms, present := opts["mobileSettings"]
	if !present || touched(found, path) {
		return nil
	}
	if asMap(ms) == nil {
		return []Problem{{Message: "must be an object", Path: path}}
	}
	if _, err := json.Marshal(ms); err != nil {
		return []Problem{{Message: "must be encodable as JSON (object keys must be strings)", Path: path}}
	}
	return nil
}

// Mongo validates the "mongo" section.
func Mongo(section any) []Problem {
	var mongo config.MongoConfig
	problems, ok := schema(section, &mongo)
	if !ok {
		return problems
	}
	return append(problems, serverRefs(mongo.Servers)...)
}

// Proxy validates the "proxy" section.
func Proxy(section any) []Problem {
	var proxy config.ProxyConfig
	problems, ok := schema(section, &proxy)
	if !ok {
		return problems
	}
	ssl := proxy.SSL
	if !touched(problems, "ssl.crt") && !touched(problems, "ssl.key") && (ssl.Crt == "") != (ssl.Key == "") {
		missing := "ssl.key"
		if ssl.Crt == "" {
			missing = "ssl.crt"
		}
		problems = append(problems, Problem{Message: "is required when ssl.crt or ssl.key is set", Path: missing})
	}
	return problems
}

// serverRefs checks the shape of a module's "servers" reference. Whether the
// names exist is decided when sessions are selected.
func serverRefs(v any) []Problem {
	switch refs := v.(type) {
	case nil:
		return nil
	case map[string]any:
		if len(refs) == 0 {
			return []Problem{{Message: "must reference at least one server", Path: "servers"}}
		}
	case []any:
		if len(refs) == 0 {
			return []Problem{{Message: "must reference at least one server", Path: "servers"}}
		}
		for _, item := range refs {
			if _, ok := item.(string); !ok {
				return []Problem{{Message: "must be a list of server names", Path: "servers"}}
			}
		}
	default:
		return []Problem{{Message: "must be an object or a list of server names", Path: "servers"}}
	}
	return nil
}
