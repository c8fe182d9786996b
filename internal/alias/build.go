// Package alias turns Lagoon environment records into drush/ssh aliases and
// renders them.
package alias

import (
	"fmt"
	"strings"

	"github.com/treykane/lagoon-alias/internal/model"
	"github.com/treykane/lagoon-alias/internal/util"
)

// Build derives one Alias per named environment, in API order. It is pure:
// the same input always yields the same output.
func Build(pe model.ProjectEnvironments, s model.Settings) []model.Alias {
	defaultHost := util.DefaultString(s.SSHEndpoint.Host, util.DefaultSSHHost)
	defaultPort := s.SSHEndpoint.Port
	if defaultPort == 0 {
		defaultPort = util.DefaultSSHPort
	}
	filesPath := util.DefaultString(s.FilesPath, util.DefaultFilesPath)

	out := make([]model.Alias, 0, len(pe.Environments))
	for _, env := range pe.Environments {
		if strings.TrimSpace(env.Name) == "" {
			continue
		}
		ns := util.DefaultString(env.Namespace, env.Name)
		host := util.DefaultString(env.SSHHost, defaultHost)
		port := env.SSHPort
		if port == 0 {
			port = defaultPort
		}
		out = append(out, model.Alias{
			Name:         ns,
			Environment:  env.Name,
			IsProduction: pe.ProductionEnvironment != "" && env.Name == pe.ProductionEnvironment,
			TargetHost:   host,
			TargetUser:   ns,
			Port:         port,
			FilesPath:    filesPath,
			SSHOptions:   SSHOptions(port),
		})
	}
	return out
}

// SSHOptions is the option string drush passes to ssh for an alias.
func SSHOptions(port int) string {
	return fmt.Sprintf("-o UserKnownHostsFile=/dev/null -o StrictHostKeyChecking=no -o LogLevel=FATAL -p %d", port)
}

// Find returns the alias for an environment name or namespace.
func Find(aliases []model.Alias, name string) (model.Alias, bool) {
	for _, a := range aliases {
		if a.Environment == name || a.Name == name {
			return a, true
		}
	}
	return model.Alias{}, false
}
