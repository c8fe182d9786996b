package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/treykane/lagoon-alias/internal/appconfig"
	"github.com/treykane/lagoon-alias/internal/cache"
)

func newCacheCmd(a *app) *cobra.Command {
	root := &cobra.Command{Use: "cache", Short: "Manage the token and environment cache"}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached token and environment list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _ := a.settings()
			if s.CacheBackend == cache.BackendMemory {
				fmt.Fprintln(cmd.OutOrStdout(), "memory cache lives only for one run; nothing persistent to clear")
				return nil
			}
			p, err := a.openPipeline(cmd.Context(), s)
			if err != nil {
				return err
			}
			defer p.Close()
			if err := p.Cache().Clear(); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			dir, _ := appconfig.CacheDir()
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %s cache in %s\n", s.CacheBackend, dir)
			return nil
		},
	}
	root.AddCommand(clearCmd)
	return root
}
