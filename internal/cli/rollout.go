package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/treykane/lagoon-alias/internal/alias"
	"github.com/treykane/lagoon-alias/internal/model"
	"github.com/treykane/lagoon-alias/internal/tasks"
)

// envLagoonEnvironment is set by Lagoon inside every environment container.
const envLagoonEnvironment = "LAGOON_ENVIRONMENT"

func newRolloutCmd(a *app, use, short string) *cobra.Command {
	stage := tasks.PostRollout
	if strings.HasPrefix(use, "pre-") {
		stage = tasks.PreRollout
	}
	var (
		envName string
		local   bool
	)
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _ := a.settings()
			list := s.PostRolloutTasks
			if stage == tasks.PreRollout {
				list = s.PreRolloutTasks
			}

			out := cmd.OutOrStdout()
			runner := &tasks.Runner{Out: out, TTY: isTerminal(out), Logger: a.logger}
			target := tasks.Target{Local: local, KeyPath: s.SSHKeyPath}

			if !local && len(list) > 0 {
				if envName == "" {
					envName = os.Getenv(envLagoonEnvironment)
				}
				if envName == "" {
					return fmt.Errorf("--env is required unless --local is set or %s is defined", envLagoonEnvironment)
				}
				res, _, err := a.discover(cmd.Context())
				if err != nil {
					return err
				}
				if res.Warning != nil {
					return fmt.Errorf("cannot resolve environment %q: %w", envName, res.Warning)
				}
				found, ok := alias.Find(res.Aliases, envName)
				if !ok {
					return fmt.Errorf("environment %q not found in project %s", envName, s.ProjectName)
				}
				target.Alias = found
			}

			rep, err := runner.Run(cmd.Context(), stage, list, target)
			if err != nil {
				return err
			}
			if len(list) > 0 {
				a.logger.Info("rollout tasks finished", "stage", string(stage), "ran", rep.Ran, "skipped", rep.Skipped, "target", describeTarget(target))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&envName, "env", "", "environment name or namespace to run the tasks in (default $LAGOON_ENVIRONMENT)")
	cmd.Flags().BoolVar(&local, "local", false, "run the tasks on this machine instead of over ssh")
	return cmd
}

func describeTarget(t tasks.Target) string {
	if t.Local {
		return "local"
	}
	if t.Alias == (model.Alias{}) {
		return "-"
	}
	return t.Alias.Destination()
}
