// Package tasks runs the pre- and post-rollout tasks declared in .lagoon.yml,
// either inside a remote environment over SSH or on the local machine.
package tasks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/treykane/lagoon-alias/internal/model"
	"github.com/treykane/lagoon-alias/internal/sshclient"
)

// Stage names a rollout phase as spelled in .lagoon.yml.
type Stage string

const (
	PreRollout  Stage = "pre-rollout"
	PostRollout Stage = "post-rollout"
)

// CLIService is the only service whose tasks can be run from here.
const CLIService = "cli"

// ExecFunc runs a process to completion.
type ExecFunc func(ctx context.Context, name string, args []string) error

// Target says where tasks run. Alias is ignored when Local is set.
type Target struct {
	Local   bool
	Alias   model.Alias
	KeyPath string
}

// Report summarises a stage.
type Report struct {
	Ran     int
	Skipped int
}

// Runner executes task lists.
type Runner struct {
	// Out receives task output. Defaults to os.Stdout.
	Out io.Writer
	// TTY requests a pseudo-terminal locally and a remote tty (-t).
	TTY bool
	// Exec defaults to streaming through sshclient.Stream.
	Exec   ExecFunc
	Logger *slog.Logger
}

func (r *Runner) exec() ExecFunc {
	if r.Exec != nil {
		return r.Exec
	}
	out := r.Out
	if out == nil {
		out = os.Stdout
	}
	return func(ctx context.Context, name string, args []string) error {
		return sshclient.Stream(ctx, name, args, sshclient.StreamOptions{Stdout: out, PTY: r.TTY})
	}
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Run executes tasks in order and stops at the first failure. Tasks for any
// service other than cli are skipped with a warning. An empty list is a
// warning, not an error.
func (r *Runner) Run(ctx context.Context, stage Stage, tasks []model.Task, target Target) (Report, error) {
	var rep Report
	if len(tasks) == 0 {
		r.logger().Warn(fmt.Sprintf("No %s tasks found in .lagoon.yml", stage))
		return rep, nil
	}
	exec := r.exec()
	for i, task := range tasks {
		label := task.Name
		if label == "" {
			label = fmt.Sprintf("%s task %d", stage, i+1)
		}
		if !strings.EqualFold(strings.TrimSpace(task.Service), CLIService) {
			r.logger().Warn("Only commands in the 'cli' service can be run", "task", label, "service", task.Service)
			rep.Skipped++
			continue
		}
		if strings.TrimSpace(task.Command) == "" {
			r.logger().Warn("skipping task without a command", "task", label)
			rep.Skipped++
			continue
		}

		name, args := r.Command(task, target)
		r.logger().Info("running task", "stage", string(stage), "task", label, "local", target.Local)
		if err := exec(ctx, name, args); err != nil {
			return rep, fmt.Errorf("%s %q failed: %w", stage, label, err)
		}
		rep.Ran++
	}
	return rep, nil
}

// Command returns the process that runs task against target.
func (r *Runner) Command(task model.Task, target Target) (string, []string) {
	if target.Local {
		return "sh", []string{"-c", task.Command}
	}
	args := strings.Fields(target.Alias.SSHOptions)
	if r.TTY {
		args = append(args, "-t")
	}
	if target.KeyPath != "" {
		args = append(args, "-i", target.KeyPath)
	}
	args = append(args, target.Alias.Destination(), task.Command)
	return "ssh", args
}
