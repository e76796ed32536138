// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/toeirei/shipmaster/internal/config"
	"github.com/toeirei/shipmaster/internal/i18n"
)

// newValidateCmd creates the 'validate' command. It prints every problem in
// the config and fails when there is at least one.
func newValidateCmd(rt *invocation) *cobra.Command {
	var show, scrub bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the config for problems",
		Long: `Validates every known section of the config and lists all problems found.
With --show the parsed config is printed first; --scrub masks passwords,
pem paths and app environment values in that output.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			problems, err := rt.api.Problems()
			if err != nil {
				return err
			}

			if show {
				cfg, err := rt.api.Config()
				if err != nil {
					return err
				}
				sections := cfg.Raw()
				if scrub {
					sections = config.Scrub(sections)
				}
				data, err := config.MarshalSections(sections)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\n", data)
			}

			fmt.Fprint(out, renderProblems(problems))
			if len(problems) > 0 {
				return errors.New(i18n.T("validate.problem_count", len(problems)))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&show, "show", false, "print the parsed config")
	cmd.Flags().BoolVar(&scrub, "scrub", false, "mask secrets in --show output")
	return cmd
}
