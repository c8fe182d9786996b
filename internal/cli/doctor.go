package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/treykane/lagoon-alias/internal/appconfig"
	"github.com/treykane/lagoon-alias/internal/doctor"
)

var severityStyles = map[doctor.Severity]lipgloss.Style{
	doctor.SeverityHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	doctor.SeverityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	doctor.SeverityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
}

func newDoctorCmd(a *app) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check local configuration, ssh and cache permissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, ymlErr := a.settings()
			dir, _ := appconfig.CacheDir()
			report := doctor.Run(doctor.Inputs{
				ProjectRoot:  a.root(),
				Settings:     s,
				LagoonYmlErr: ymlErr,
				CacheDir:     dir,
			})

			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			if len(report.Issues) == 0 {
				fmt.Fprintln(out, "no issues found")
				return nil
			}
			styled := isTerminal(out)
			for _, issue := range report.Issues {
				label := "[" + strings.ToUpper(string(issue.Severity)) + "]"
				if styled {
					label = severityStyles[issue.Severity].Render(label)
				}
				fmt.Fprintf(out, "%s %s %s: %s\n", label, issue.Check, issue.Target, issue.Message)
				if issue.Recommendation != "" {
					fmt.Fprintf(out, "    -> %s\n", issue.Recommendation)
				}
			}
			if report.HasHigh() {
				fmt.Fprintln(out, "alias discovery will not work until the high severity issues are fixed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}
