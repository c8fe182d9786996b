package alias

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"github.com/treykane/lagoon-alias/internal/model"
	"github.com/treykane/lagoon-alias/internal/util"
	"gopkg.in/yaml.v3"
)

var productionStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("3")).
	Background(lipgloss.Color("0"))

// Label is the drush form of an alias, e.g. "@lagoon.acme-master".
func Label(a model.Alias, ns string) string {
	return "@" + util.DefaultString(ns, util.DefaultAliasNamespace) + "." + a.Name
}

// Lines renders one line per alias, marking production. When styled is set
// the marker is highlighted for a terminal.
func Lines(aliases []model.Alias, ns string, styled bool) []string {
	lines := make([]string, 0, len(aliases))
	for _, a := range aliases {
		line := Label(a, ns)
		if a.IsProduction {
			marker := "(production)"
			if styled {
				marker = productionStyle.Render(marker)
			}
			line += " " + marker
		}
		lines = append(lines, line)
	}
	return lines
}

type drushSite struct {
	Host  string     `yaml:"host"`
	User  string     `yaml:"user"`
	Paths drushPaths `yaml:"paths"`
	SSH   drushSSH   `yaml:"ssh"`
}

type drushPaths struct {
	Files string `yaml:"files"`
}

type drushSSH struct {
	Options string `yaml:"options"`
	TTY     string `yaml:"tty"`
}

// DrushYAML renders a drush site-alias file keyed by environment name, in
// alias order. A repeated environment name keeps its first position and its
// last definition.
func DrushYAML(aliases []model.Alias) ([]byte, error) {
	doc := &yaml.Node{Kind: yaml.MappingNode}
	index := map[string]int{}
	for _, a := range aliases {
		var value yaml.Node
		if err := value.Encode(drushSite{
			Host:  a.TargetHost,
			User:  a.TargetUser,
			Paths: drushPaths{Files: a.FilesPath},
			SSH:   drushSSH{Options: a.SSHOptions, TTY: "false"},
		}); err != nil {
			return nil, fmt.Errorf("encode alias %s: %w", a.Environment, err)
		}
		if i, ok := index[a.Environment]; ok {
			doc.Content[i+1] = &value
			continue
		}
		index[a.Environment] = len(doc.Content)
		doc.Content = append(doc.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: a.Environment},
			&value)
	}
	if len(doc.Content) == 0 {
		return []byte("{}\n"), nil
	}
	return yaml.Marshal(doc)
}

// SSHConfig renders OpenSSH Host blocks named "<ns>.<namespace>", separated
// by blank lines.
func SSHConfig(aliases []model.Alias, ns string) string {
	ns = util.DefaultString(ns, util.DefaultAliasNamespace)
	blocks := make([]string, 0, len(aliases))
	for _, a := range aliases {
		blocks = append(blocks, formatHostBlock(ns+"."+a.Name, a))
	}
	return strings.Join(blocks, "\n")
}

// formatHostBlock produces one Host block. Only non-empty, non-default fields
// are included.
func formatHostBlock(name string, a model.Alias) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Host %s\n", name)
	if a.TargetHost != "" && a.TargetHost != name {
		fmt.Fprintf(&b, "  HostName %s\n", a.TargetHost)
	}
	if a.TargetUser != "" {
		fmt.Fprintf(&b, "  User %s\n", a.TargetUser)
	}
	if a.Port != 0 && a.Port != 22 {
		fmt.Fprintf(&b, "  Port %d\n", a.Port)
	}
	b.WriteString("  UserKnownHostsFile /dev/null\n")
	b.WriteString("  StrictHostKeyChecking no\n")
	b.WriteString("  LogLevel FATAL\n")
	return b.String()
}

// Table writes an ASCII table of aliases to w.
func Table(w io.Writer, aliases []model.Alias, ns string) error {
	table := tablewriter.NewWriter(w)
	table.Header("Alias", "Environment", "Destination", "Port", "Production")

	for _, a := range aliases {
		prod := ""
		if a.IsProduction {
			prod = "yes"
		}
		if err := table.Append(Label(a, ns), a.Environment, a.Destination(), strconv.Itoa(a.Port), util.EmptyDash(prod)); err != nil {
			return err
		}
	}
	return table.Render()
}
