// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"github.com/toeirei/shipmaster/internal/deploy"
	"github.com/toeirei/shipmaster/internal/i18n"
)

// pingCommand runs on every host to prove the session works.
const pingCommand = "uname -a"

// newPingCmd creates the 'ping' command, which connects to the servers of
// the given modules, or all servers, and runs a trivial command.
func newPingCmd(rt *invocation) *cobra.Command {
	return &cobra.Command{
		Use:   "ping [module...]",
		Short: "Check that every server can be reached",
		Long: `Opens a session to each server and runs "uname -a". Without arguments
every configured server is checked; otherwise only the servers referenced
by the named modules.`,
		RunE: func(cmd *cobra.Command, modules []string) error {
			view := rt.api
			if len(modules) > 0 {
				var err error
				if view, err = rt.api.WithSessions(modules...); err != nil {
					return err
				}
			}

			var mu sync.Mutex
			outputs := map[string]string{}
			results, err := view.Each(cmd.Context(), func(ctx context.Context, s deploy.Session) error {
				res, err := s.Run(ctx, pingCommand)
				if err != nil {
					return err
				}
				mu.Lock()
				outputs[s.Name()] = strings.TrimSpace(res.Stdout)
				mu.Unlock()
				return nil
			})
			if err != nil {
				return err
			}

			title := pingCommand
			if mods := view.Modules(); len(mods) > 0 {
				title += " (" + strings.Join(mods, ", ") + ")"
			}
			report, failed := renderResults(title, results, outputs)
			fmt.Fprint(cmd.OutOrStdout(), report)
			if failed > 0 {
				return errors.New(i18n.T("ping.failed", failed))
			}
			return nil
		},
	}
}
