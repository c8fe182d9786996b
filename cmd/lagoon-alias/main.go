// Package main is the entry point for the lagoon-alias binary.
//
// lagoon-alias discovers the environments of a Lagoon project and turns them
// into drush site aliases or OpenSSH host entries. It reads .lagoon.yml from
// the project root, obtains an API token over SSH, and queries the Lagoon
// GraphQL API.
//
// Usage:
//
//	lagoon-alias aliases               # list @lagoon.<namespace> aliases
//	lagoon-alias generate-aliases FILE # write a drush site-alias file
//	lagoon-alias jwt                   # print an API token
//	lagoon-alias doctor                # check local setup
//
// The command tree is built in internal/cli. This file handles signals and
// top-level error reporting.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/treykane/lagoon-alias/internal/cli"
	"github.com/treykane/lagoon-alias/internal/security"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		slog.Debug("command failed", "detail", security.DebugMessage(err))
		fmt.Fprintln(os.Stderr, security.UserMessage(err, true))
		stop()
		os.Exit(1)
	}
}
