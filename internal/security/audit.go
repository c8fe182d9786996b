package security

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type Finding struct {
	Severity       Severity `json:"severity"`
	Target         string   `json:"target"`
	Message        string   `json:"message"`
	Recommendation string   `json:"recommendation"`
}

type AuditReport struct {
	Findings []Finding `json:"findings"`
}

func (r AuditReport) HasHigh() bool {
	for _, f := range r.Findings {
		if f.Severity == SeverityHigh {
			return true
		}
	}
	return false
}

// AuditTargets lists the local files that hold credentials or cached
// credentials. Empty fields are skipped.
type AuditTargets struct {
	CacheDir   string
	SSHKeyPath string
}

// RunLocalAudit inspects the permissions of the token cache and the SSH
// identity used for the token command.
func RunLocalAudit(targets AuditTargets) AuditReport {
	var findings []Finding

	if targets.CacheDir != "" {
		checkPathPerm(&findings, targets.CacheDir, 0o700, false)
		entries, err := os.ReadDir(targets.CacheDir)
		if err == nil {
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				checkPathPerm(&findings, filepath.Join(targets.CacheDir, e.Name()), 0o600, true)
			}
		}
	}

	if key := strings.TrimSpace(targets.SSHKeyPath); key != "" {
		if strings.HasPrefix(key, "~/") {
			if home, err := os.UserHomeDir(); err == nil {
				key = filepath.Join(home, key[2:])
			}
		}
		if _, err := os.Stat(key); os.IsNotExist(err) {
			findings = append(findings, Finding{
				Severity:       SeverityHigh,
				Target:         key,
				Message:        "LAGOON_SSH_KEY points at a missing file",
				Recommendation: "fix LAGOON_SSH_KEY or unset it to use the ssh agent",
			})
		} else {
			checkPathPerm(&findings, key, 0o600, true)
		}
	}

	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Severity != findings[j].Severity {
			return severityRank(findings[i].Severity) > severityRank(findings[j].Severity)
		}
		if findings[i].Target != findings[j].Target {
			return findings[i].Target < findings[j].Target
		}
		return findings[i].Message < findings[j].Message
	})
	return AuditReport{Findings: findings}
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

func checkPathPerm(findings *[]Finding, path string, max os.FileMode, isFile bool) {
	st, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		*findings = append(*findings, Finding{
			Severity:       SeverityLow,
			Target:         path,
			Message:        fmt.Sprintf("unable to inspect permissions: %v", err),
			Recommendation: "verify path and permissions manually",
		})
		return
	}
	mode := st.Mode().Perm()
	if mode&^max != 0 {
		kind := "directory"
		if isFile {
			kind = "file"
		}
		*findings = append(*findings, Finding{
			Severity:       SeverityMedium,
			Target:         path,
			Message:        fmt.Sprintf("%s permissions are too broad (%#o)", kind, mode),
			Recommendation: fmt.Sprintf("restrict permissions to %#o or tighter", max),
		})
	}
}
