package lagoonapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/treykane/lagoon-alias/internal/model"
)

type graphQLResponse struct {
	Data struct {
		Project *projectPayload `json:"project"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type projectPayload struct {
	ProductionEnvironment        string               `json:"productionEnvironment"`
	StandbyProductionEnvironment string               `json:"standbyProductionEnvironment"`
	ProductionAlias              string               `json:"productionAlias"`
	StandbyAlias                 string               `json:"standbyAlias"`
	Environments                 []environmentPayload `json:"environments"`
}

type environmentPayload struct {
	Name                    string             `json:"name"`
	KubernetesNamespaceName string             `json:"kubernetesNamespaceName"`
	OpenshiftProjectName    string             `json:"openshiftProjectName"`
	Kubernetes              *kubernetesPayload `json:"kubernetes"`
}

type kubernetesPayload struct {
	SSHHost string   `json:"sshHost"`
	SSHPort flexPort `json:"sshPort"`
}

// flexPort accepts a port as a JSON number or a numeric string. Anything
// else decodes to zero, meaning "use the default".
type flexPort int

func (p *flexPort) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*p = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(strings.TrimSpace(s))
	}
	n, err := strconv.Atoi(string(b))
	if err != nil || n < 1 || n > 65535 {
		*p = 0
		return nil
	}
	*p = flexPort(n)
	return nil
}

// Parse converts a GraphQL response body into ProjectEnvironments. A null
// project or empty environment list is a valid empty result. A body that is
// not JSON, or that carries GraphQL errors, is an error.
func Parse(body []byte) (model.ProjectEnvironments, error) {
	var resp graphQLResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.ProjectEnvironments{}, fmt.Errorf("decode response: %w", err)
	}
	if len(resp.Errors) > 0 {
		msg := strings.TrimSpace(resp.Errors[0].Message)
		if msg == "" {
			msg = "unknown graphql error"
		}
		return model.ProjectEnvironments{}, errors.New(msg)
	}

	p := resp.Data.Project
	if p == nil {
		return model.ProjectEnvironments{}, nil
	}
	pe := model.ProjectEnvironments{
		ProductionEnvironment:        p.ProductionEnvironment,
		StandbyProductionEnvironment: p.StandbyProductionEnvironment,
		ProductionAlias:              p.ProductionAlias,
		StandbyAlias:                 p.StandbyAlias,
	}
	for _, env := range p.Environments {
		rec := model.EnvironmentRecord{
			Name:      env.Name,
			Namespace: namespace(env),
		}
		if env.Kubernetes != nil {
			rec.SSHHost = strings.TrimSpace(env.Kubernetes.SSHHost)
			rec.SSHPort = int(env.Kubernetes.SSHPort)
		}
		pe.Environments = append(pe.Environments, rec)
	}
	return pe, nil
}

// namespace picks the first populated of kubernetesNamespaceName,
// openshiftProjectName and name. Older Lagoon releases only report the
// OpenShift field.
func namespace(env environmentPayload) string {
	for _, v := range []string{env.KubernetesNamespaceName, env.OpenshiftProjectName, env.Name} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
