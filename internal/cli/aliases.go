package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/treykane/lagoon-alias/internal/alias"
	"github.com/treykane/lagoon-alias/internal/security"
)

const (
	formatYAML      = "yaml"
	formatSSHConfig = "ssh-config"
)

func newAliasesCmd(a *app) *cobra.Command {
	var table bool
	cmd := &cobra.Command{
		Use:     "aliases",
		Aliases: []string{"la"},
		Short:   "List remote aliases for the project's Lagoon environments",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, s, err := a.discover(cmd.Context())
			if err != nil {
				return err
			}
			if res.Warning != nil {
				return nil
			}
			out := cmd.OutOrStdout()
			if table {
				return alias.Table(out, res.Aliases, s.AliasNamespace)
			}
			for _, line := range alias.Lines(res.Aliases, s.AliasNamespace, isTerminal(out)) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&table, "table", false, "show aliases with their targets as a table")
	return cmd
}

func newGenerateAliasesCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:     "generate-aliases [file]",
		Aliases: []string{"lg"},
		Short:   "Print or write a drush site-alias file (or OpenSSH config) for the project",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != formatYAML && format != formatSSHConfig {
				return fmt.Errorf("unknown format %q (want %s or %s)", format, formatYAML, formatSSHConfig)
			}
			res, s, err := a.discover(cmd.Context())
			if err != nil {
				return err
			}
			if res.Warning != nil {
				return nil
			}

			var contents []byte
			switch format {
			case formatSSHConfig:
				contents = []byte(alias.SSHConfig(res.Aliases, s.AliasNamespace))
			default:
				contents, err = alias.DrushYAML(res.Aliases)
				if err != nil {
					a.logger.Warn("unable to render alias yaml", "error", err)
					return nil
				}
			}

			if len(args) == 0 {
				_, err := cmd.OutOrStdout().Write(contents)
				return err
			}
			if err := writeFileAtomic(args[0], contents, 0o644); err != nil {
				return security.NewClassifiedError("unable to write aliases to "+args[0], err.Error())
			}
			a.logger.Info("wrote aliases", "file", args[0], "count", len(res.Aliases))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", formatYAML, "output format: yaml or ssh-config")
	return cmd
}

// writeFileAtomic replaces path with data so readers never see a partial
// file.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
