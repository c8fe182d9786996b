package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/treykane/lagoon-alias/internal/token"
)

func newJWTCmd(a *app) *cobra.Command {
	var claims bool
	cmd := &cobra.Command{
		Use:   "jwt",
		Short: "Print a Lagoon API token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _ := a.settings()
			p, err := a.openPipeline(cmd.Context(), s)
			if err != nil {
				return err
			}
			defer p.Close()

			tok, err := p.Tokens().Token(cmd.Context(), s)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !claims {
				fmt.Fprintln(out, tok)
				return nil
			}
			c, err := token.Claims(tok)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(c)
		},
	}
	cmd.Flags().BoolVar(&claims, "claims", false, "print the token's decoded claims as JSON instead of the token")
	return cmd
}
