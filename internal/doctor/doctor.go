package doctor

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/treykane/lagoon-alias/internal/appconfig"
	"github.com/treykane/lagoon-alias/internal/model"
	"github.com/treykane/lagoon-alias/internal/security"
	"github.com/treykane/lagoon-alias/internal/sshclient"
	"github.com/treykane/lagoon-alias/internal/tasks"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type Issue struct {
	Severity       Severity `json:"severity"`
	Check          string   `json:"check"`
	Target         string   `json:"target"`
	Message        string   `json:"message"`
	Recommendation string   `json:"recommendation"`
}

type Report struct {
	Issues []Issue `json:"issues"`
}

// HasHigh reports whether any issue would stop alias discovery.
func (r Report) HasHigh() bool {
	for _, i := range r.Issues {
		if i.Severity == SeverityHigh {
			return true
		}
	}
	return false
}

// Inputs is what the checks look at. LagoonYmlErr carries the error from
// loading .lagoon.yml, if any.
type Inputs struct {
	ProjectRoot  string
	Settings     model.Settings
	LagoonYmlErr error
	CacheDir     string
	// LookPath defaults to sshclient.EnsureSSHBinary.
	LookPath func() error
}

// Run executes local diagnostics for lagoon-alias. It makes no network calls.
func Run(in Inputs) Report {
	var issues []Issue
	s := in.Settings

	if s.SSHTransport != appconfig.TransportNative {
		look := in.LookPath
		if look == nil {
			look = sshclient.EnsureSSHBinary
		}
		if err := look(); err != nil {
			issues = append(issues, Issue{
				Severity:       SeverityHigh,
				Check:          "ssh-binary",
				Target:         "PATH",
				Message:        err.Error(),
				Recommendation: "install the OpenSSH client or set LAGOON_SSH_TRANSPORT=native",
			})
		}
	} else if s.SSHKeyPath == "" && os.Getenv("SSH_AUTH_SOCK") == "" {
		issues = append(issues, Issue{
			Severity:       SeverityHigh,
			Check:          "ssh-credentials",
			Target:         "native transport",
			Message:        "no identity file and no ssh agent available",
			Recommendation: "set LAGOON_SSH_KEY or start an ssh agent",
		})
	}

	issues = append(issues, lagoonYmlIssues(in)...)

	if err := appconfig.RequireProject(s); err != nil {
		issues = append(issues, Issue{
			Severity:       SeverityHigh,
			Check:          "project",
			Target:         appconfig.LagoonYmlName,
			Message:        err.Error(),
			Recommendation: "add `project: <name>` to .lagoon.yml or set LAGOON_PROJECT",
		})
	}

	if u, err := url.Parse(s.APIEndpoint); err != nil || u.Host == "" {
		issues = append(issues, Issue{
			Severity:       SeverityHigh,
			Check:          "api-endpoint",
			Target:         s.APIEndpoint,
			Message:        "API endpoint is not a valid URL",
			Recommendation: "fix `api` in .lagoon.yml or LAGOON_OVERRIDE_API",
		})
	} else if u.Scheme != "https" {
		issues = append(issues, Issue{
			Severity:       SeverityMedium,
			Check:          "api-endpoint",
			Target:         s.APIEndpoint,
			Message:        "API endpoint does not use https; the bearer token is sent in clear",
			Recommendation: "use an https endpoint",
		})
	}

	issues = append(issues, taskIssues(s)...)

	audit := security.RunLocalAudit(security.AuditTargets{CacheDir: in.CacheDir, SSHKeyPath: s.SSHKeyPath})
	for _, f := range audit.Findings {
		sev := SeverityLow
		if f.Severity == security.SeverityMedium {
			sev = SeverityMedium
		}
		if f.Severity == security.SeverityHigh {
			sev = SeverityHigh
		}
		issues = append(issues, Issue{
			Severity:       sev,
			Check:          "security-audit",
			Target:         f.Target,
			Message:        f.Message,
			Recommendation: f.Recommendation,
		})
	}

	sort.Slice(issues, func(i, j int) bool {
		ri := severityRank(issues[i].Severity)
		rj := severityRank(issues[j].Severity)
		if ri != rj {
			return ri > rj
		}
		if issues[i].Check != issues[j].Check {
			return issues[i].Check < issues[j].Check
		}
		if issues[i].Target != issues[j].Target {
			return issues[i].Target < issues[j].Target
		}
		return issues[i].Message < issues[j].Message
	})
	return Report{Issues: issues}
}

func lagoonYmlIssues(in Inputs) []Issue {
	target := filepath.Join(in.ProjectRoot, appconfig.LagoonYmlName)
	if in.LagoonYmlErr != nil {
		return []Issue{{
			Severity:       SeverityHigh,
			Check:          "lagoon-yml",
			Target:         target,
			Message:        in.LagoonYmlErr.Error(),
			Recommendation: "fix the YAML syntax in .lagoon.yml",
		}}
	}
	if in.ProjectRoot == "" {
		return nil
	}
	if _, err := os.Stat(target); errors.Is(err, os.ErrNotExist) {
		return []Issue{{
			Severity:       SeverityLow,
			Check:          "lagoon-yml",
			Target:         target,
			Message:        ".lagoon.yml not found; relying on environment variables",
			Recommendation: "run from the project root or pass --project-root",
		}}
	}
	return nil
}

func taskIssues(s model.Settings) []Issue {
	var issues []Issue
	check := func(stage tasks.Stage, list []model.Task) {
		for i, t := range list {
			if strings.EqualFold(strings.TrimSpace(t.Service), tasks.CLIService) {
				continue
			}
			name := t.Name
			if name == "" {
				name = fmt.Sprintf("#%d", i+1)
			}
			issues = append(issues, Issue{
				Severity:       SeverityLow,
				Check:          "rollout-task",
				Target:         fmt.Sprintf("%s %s", stage, name),
				Message:        fmt.Sprintf("service %q is not cli; the task will be skipped", t.Service),
				Recommendation: "only cli service tasks can run through lagoon-alias",
			})
		}
	}
	check(tasks.PreRollout, s.PreRolloutTasks)
	check(tasks.PostRollout, s.PostRolloutTasks)
	return issues
}

func severityRank(s Severity) int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	default:
		return 1
	}
}
