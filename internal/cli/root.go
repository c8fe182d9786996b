// Package cli provides the command-line interface for lagoon-alias.
package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/treykane/lagoon-alias/internal/appconfig"
	"github.com/treykane/lagoon-alias/internal/model"
	"github.com/treykane/lagoon-alias/internal/pipeline"
)

// app holds state shared by every subcommand of one invocation.
type app struct {
	projectRoot string
	verbose     bool
	runID       string
	logger      *slog.Logger
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	a := &app{logger: slog.Default()}
	root := &cobra.Command{
		Use:           "lagoon-alias",
		Short:         "Discover Lagoon environments and generate drush/ssh aliases",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.runID = uuid.NewString()
			a.logger = NewCommandLogger(cmd.ErrOrStderr(), a.verbose).With("run_id", a.runID)
			slog.SetDefault(a.logger)
		},
	}
	root.PersistentFlags().StringVar(&a.projectRoot, "project-root", "", "directory holding .lagoon.yml (default: nearest ancestor of the working directory)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newAliasesCmd(a))
	root.AddCommand(newGenerateAliasesCmd(a))
	root.AddCommand(newJWTCmd(a))
	root.AddCommand(newRolloutCmd(a, "pre-rollout-tasks", "Run pre-rollout tasks from .lagoon.yml"))
	root.AddCommand(newRolloutCmd(a, "post-rollout-tasks", "Run post-rollout tasks from .lagoon.yml"))
	root.AddCommand(newCacheCmd(a))
	root.AddCommand(newDoctorCmd(a))
	return root
}

// root resolves the project root from the flag or the working directory.
func (a *app) root() string {
	if a.projectRoot != "" {
		return a.projectRoot
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return appconfig.FindProjectRoot(wd)
}

// settings resolves the effective settings. An unreadable .lagoon.yml is
// logged and treated as empty so environment variables can still apply; the
// error is returned for callers that report it.
func (a *app) settings() (model.Settings, error) {
	local, err := appconfig.LoadLagoonYml(a.root())
	if err != nil {
		a.logger.Warn("ignoring unreadable .lagoon.yml", "error", err)
		local = appconfig.MapSource{}
	}
	return appconfig.Resolve(local, appconfig.EnvironMap(os.Environ())), err
}

// openPipeline wires the discovery pipeline for s.
func (a *app) openPipeline(ctx context.Context, s model.Settings) (*pipeline.Pipeline, error) {
	return pipeline.Open(ctx, s, pipeline.Options{Logger: a.logger, RunID: a.runID})
}

// discover runs the pipeline once. A recoverable failure is already logged by
// the pipeline and comes back in Result.Warning.
func (a *app) discover(ctx context.Context) (pipeline.Result, model.Settings, error) {
	s, _ := a.settings()
	p, err := a.openPipeline(ctx, s)
	if err != nil {
		return pipeline.Result{}, s, err
	}
	defer p.Close()
	res, err := p.Run(ctx, s)
	return res, s, err
}
